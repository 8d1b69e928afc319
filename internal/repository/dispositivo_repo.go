package repository

import (
	"context"
	"time"

	"clubpos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DispositivoRepository interface {
	Create(ctx context.Context, d *model.Dispositivo) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Dispositivo, error)
	List(ctx context.Context, soloActivos bool) ([]model.Dispositivo, error)
	Update(ctx context.Context, d *model.Dispositivo) error
	// AsignarPairing writes a fresh token/code pair. Returns ErrDuplicado when
	// the code collides with another live code.
	AsignarPairing(ctx context.Context, id uuid.UUID, token, codigo string, expira time.Time) error
	// LimpiarPairingsVencidos clears pairing material past its expiry.
	LimpiarPairingsVencidos(ctx context.Context, ahora time.Time) (int64, error)
	// CanjearPairing consumes a live token or code in a single statement, so
	// two terminals racing on the same code cannot both succeed.
	CanjearPairing(ctx context.Context, columna, valor string, ahora time.Time) (*model.Dispositivo, error)
	FindPermanentePorEmpleado(ctx context.Context, empleadoID uuid.UUID) (*model.Dispositivo, error)
	FindTemporalPorEmpleado(ctx context.Context, empleadoID uuid.UUID) (*model.Dispositivo, error)
	// ClaimDisponible binds the employee to the first free device, preferring
	// shared-tablet devices. Rows locked by a concurrent claim are skipped.
	ClaimDisponible(ctx context.Context, empleadoID uuid.UUID, ahora time.Time) (*model.Dispositivo, error)
	// Desvincular clears the employee binding. Permanent bindings are only
	// cleared when forzar is set.
	Desvincular(ctx context.Context, id uuid.UUID, forzar bool) error
	TouchUltimoAcceso(ctx context.Context, id uuid.UUID, en time.Time) error
	MarcarSincronizacion(ctx context.Context, id uuid.UUID, en time.Time) error
}

type dispositivoRepo struct{ db *gorm.DB }

func NewDispositivoRepository(db *gorm.DB) DispositivoRepository {
	return &dispositivoRepo{db: db}
}

func (r *dispositivoRepo) Create(ctx context.Context, d *model.Dispositivo) error {
	return translate(r.db.WithContext(ctx).Create(d).Error)
}

func (r *dispositivoRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Dispositivo, error) {
	var d model.Dispositivo
	err := r.db.WithContext(ctx).Preload("EmpleadoAsignado").First(&d, "id = ?", id).Error
	return &d, err
}

func (r *dispositivoRepo) List(ctx context.Context, soloActivos bool) ([]model.Dispositivo, error) {
	q := r.db.WithContext(ctx).Preload("EmpleadoAsignado")
	if soloActivos {
		q = q.Where("activo = true")
	}
	var out []model.Dispositivo
	err := q.Order("nombre ASC").Find(&out).Error
	return out, err
}

func (r *dispositivoRepo) Update(ctx context.Context, d *model.Dispositivo) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Save(d).Error)
}

func (r *dispositivoRepo) AsignarPairing(ctx context.Context, id uuid.UUID, token, codigo string, expira time.Time) error {
	res := r.db.WithContext(ctx).Model(&model.Dispositivo{}).Where("id = ?", id).Updates(map[string]interface{}{
		"pairing_token":     token,
		"pairing_codigo":    codigo,
		"pairing_expira_en": expira,
	})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *dispositivoRepo) LimpiarPairingsVencidos(ctx context.Context, ahora time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.Dispositivo{}).
		Where("pairing_expira_en IS NOT NULL AND pairing_expira_en <= ?", ahora).
		Updates(map[string]interface{}{
			"pairing_token":     nil,
			"pairing_codigo":    nil,
			"pairing_expira_en": nil,
		})
	return res.RowsAffected, res.Error
}

func (r *dispositivoRepo) CanjearPairing(ctx context.Context, columna, valor string, ahora time.Time) (*model.Dispositivo, error) {
	if columna != "pairing_token" && columna != "pairing_codigo" {
		return nil, gorm.ErrInvalidField
	}
	var rows []model.Dispositivo
	res := r.db.WithContext(ctx).Model(&rows).
		Clauses(clause.Returning{}).
		Where(columna+" = ? AND pairing_expira_en > ? AND activo = true", valor, ahora).
		Updates(map[string]interface{}{
			"pairing_token":     nil,
			"pairing_codigo":    nil,
			"pairing_expira_en": nil,
			"ultimo_acceso":     ahora,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 || len(rows) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &rows[0], nil
}

func (r *dispositivoRepo) FindPermanentePorEmpleado(ctx context.Context, empleadoID uuid.UUID) (*model.Dispositivo, error) {
	var d model.Dispositivo
	err := r.db.WithContext(ctx).
		Where("empleado_asignado_id = ? AND asignacion_permanente = true AND activo = true", empleadoID).
		First(&d).Error
	return &d, err
}

func (r *dispositivoRepo) FindTemporalPorEmpleado(ctx context.Context, empleadoID uuid.UUID) (*model.Dispositivo, error) {
	var d model.Dispositivo
	err := r.db.WithContext(ctx).
		Where("empleado_asignado_id = ? AND asignacion_permanente = false AND activo = true", empleadoID).
		Order("ultimo_acceso DESC NULLS LAST").
		First(&d).Error
	return &d, err
}

func (r *dispositivoRepo) ClaimDisponible(ctx context.Context, empleadoID uuid.UUID, ahora time.Time) (*model.Dispositivo, error) {
	var d model.Dispositivo
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("activo = true AND asignacion_permanente = false AND empleado_asignado_id IS NULL").
			Order("modo_tablet_compartida DESC, ultimo_acceso ASC NULLS FIRST").
			First(&d).Error; err != nil {
			return err
		}
		d.EmpleadoAsignadoID = &empleadoID
		d.UltimoAcceso = &ahora
		return tx.Model(&model.Dispositivo{}).Where("id = ?", d.ID).Updates(map[string]interface{}{
			"empleado_asignado_id": empleadoID,
			"ultimo_acceso":        ahora,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *dispositivoRepo) Desvincular(ctx context.Context, id uuid.UUID, forzar bool) error {
	q := r.db.WithContext(ctx).Model(&model.Dispositivo{}).Where("id = ?", id)
	if !forzar {
		q = q.Where("asignacion_permanente = false")
	}
	res := q.Updates(map[string]interface{}{
		"empleado_asignado_id":  nil,
		"asignacion_permanente": false,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *dispositivoRepo) TouchUltimoAcceso(ctx context.Context, id uuid.UUID, en time.Time) error {
	return r.db.WithContext(ctx).Model(&model.Dispositivo{}).Where("id = ?", id).
		UpdateColumn("ultimo_acceso", en).Error
}

func (r *dispositivoRepo) MarcarSincronizacion(ctx context.Context, id uuid.UUID, en time.Time) error {
	return r.db.WithContext(ctx).Model(&model.Dispositivo{}).Where("id = ?", id).
		UpdateColumns(map[string]interface{}{"ultima_sincronizacion": en, "ultimo_acceso": en}).Error
}
