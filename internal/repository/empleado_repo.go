package repository

import (
	"context"

	"clubpos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EmpleadoRepository is the read/write contract for staff. Employee CRUD is an
// external concern; this interface carries only what auth and sync consume.
type EmpleadoRepository interface {
	Create(ctx context.Context, e *model.Empleado) error
	FindByUsername(ctx context.Context, username string) (*model.Empleado, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.Empleado, error)
	// FindActivoByIdentificador matches an active employee by email or DNI.
	FindActivoByIdentificador(ctx context.Context, identificador string) (*model.Empleado, error)
	List(ctx context.Context) ([]model.Empleado, error)
}

type empleadoRepo struct{ db *gorm.DB }

func NewEmpleadoRepository(db *gorm.DB) EmpleadoRepository { return &empleadoRepo{db: db} }

func (r *empleadoRepo) Create(ctx context.Context, e *model.Empleado) error {
	return translate(r.db.WithContext(ctx).Create(e).Error)
}

func (r *empleadoRepo) FindByUsername(ctx context.Context, username string) (*model.Empleado, error) {
	var e model.Empleado
	// Accept login by username OR email (case-insensitive email match)
	err := r.db.WithContext(ctx).
		Where("(username = ? OR LOWER(email) = LOWER(?)) AND activo = true", username, username).
		First(&e).Error
	return &e, err
}

func (r *empleadoRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Empleado, error) {
	var e model.Empleado
	err := r.db.WithContext(ctx).First(&e, "id = ?", id).Error
	return &e, err
}

func (r *empleadoRepo) FindActivoByIdentificador(ctx context.Context, identificador string) (*model.Empleado, error) {
	var e model.Empleado
	err := r.db.WithContext(ctx).
		Where("(LOWER(email) = LOWER(?) OR dni = ?) AND activo = true", identificador, identificador).
		First(&e).Error
	return &e, err
}

func (r *empleadoRepo) List(ctx context.Context) ([]model.Empleado, error) {
	var empleados []model.Empleado
	err := r.db.WithContext(ctx).Where("activo = true").Order("nombre ASC").Find(&empleados).Error
	return empleados, err
}
