package infra

import (
	"fmt"
	"time"

	"clubpos/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase establishes a GORM connection backed by pgx, runs AutoMigrate to
// create / update all tables, then applies the idempotent SQL patches that GORM
// cannot express (partial unique indexes).
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if err := RunMigrations(db); err != nil {
		return nil, err
	}
	return db, nil
}

// RunMigrations creates the schema. Integration tests call it directly on a
// fresh container database.
func RunMigrations(db *gorm.DB) error {
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS pgcrypto`).Error; err != nil {
		return fmt.Errorf("pgcrypto: %w", err)
	}
	if err := db.AutoMigrate(
		&model.Empleado{},
		&model.Dispositivo{},
		&model.Producto{},
		&model.SesionCaja{},
		&model.MovimientoCaja{},
		&model.Venta{},
		&model.VentaItem{},
		&model.MovimientoStock{},
		&model.VentaPendiente{},
		&model.EventoAuditoria{},
	); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}
	if err := applySchemaPatches(db); err != nil {
		return fmt.Errorf("schema patches: %w", err)
	}
	return nil
}

// applySchemaPatches runs idempotent DDL statements that GORM AutoMigrate cannot
// express. Each statement uses IF NOT EXISTS so re-running on an already-patched
// DB is safe.
func applySchemaPatches(db *gorm.DB) error {
	patches := []struct{ descr, sql string }{
		// pairing secrets are single use: no two live devices may share one
		{"uniq pairing token", `
CREATE UNIQUE INDEX IF NOT EXISTS idx_dispositivos_pairing_token
    ON dispositivos (pairing_token) WHERE pairing_token IS NOT NULL`},
		{"uniq pairing code", `
CREATE UNIQUE INDEX IF NOT EXISTS idx_dispositivos_pairing_codigo
    ON dispositivos (pairing_codigo) WHERE pairing_codigo IS NOT NULL`},
		// an employee holds at most one permanent device
		{"uniq permanent binding", `
CREATE UNIQUE INDEX IF NOT EXISTS idx_dispositivos_empleado_permanente
    ON dispositivos (empleado_asignado_id) WHERE asignacion_permanente`},
		// one open session per register name
		{"uniq open session per register", `
CREATE UNIQUE INDEX IF NOT EXISTS idx_sesiones_caja_abierta
    ON sesiones_caja (nombre_caja) WHERE estado = 'abierta'`},
		// retry cron query
		{"pending retry index", `
CREATE INDEX IF NOT EXISTS idx_ventas_pendientes_reintento
    ON ventas_pendientes (proximo_intento_en)
    WHERE sincronizada = false AND proximo_intento_en IS NOT NULL`},
	}
	for _, p := range patches {
		if err := db.Exec(p.sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", p.descr, err)
		}
	}
	return nil
}
