// Package migrate applies the schema as an ordered list of named steps,
// recording each in the migrations table the admin dashboard lists.
package migrate

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"portalsalud/internal/models"
)

type step struct {
	name string
	run  func(db *gorm.DB) error
}

func automigrate(dst ...interface{}) func(db *gorm.DB) error {
	return func(db *gorm.DB) error { return db.AutoMigrate(dst...) }
}

var steps = []step{
	{"0001_create_users_table", automigrate(&models.User{})},
	{"0002_create_addresses_table", automigrate(&models.Address{})},
	{"0003_create_gestiones_table", automigrate(&models.Gestion{})},
	{"0004_create_facturas_table", automigrate(&models.Factura{})},
	{"0005_create_request_logs_table", automigrate(&models.RequestLog{})},
	{"0006_create_sessions_table", automigrate(&models.Session{})},
	{"0007_create_cartilla_tables", automigrate(
		&models.Province{}, &models.Localidad{}, &models.Specialty{},
		&models.Provider{}, &models.ProviderPlan{})},
	{"0008_create_cache_table", automigrate(&models.CacheEntry{})},
	{"0009_create_jobs_tables", automigrate(&models.Job{}, &models.FailedJob{})},
}

// Run applies every step not yet recorded, all under one batch number.
func Run(db *gorm.DB, lg *zap.SugaredLogger) error {
	if err := db.AutoMigrate(&models.Migration{}); err != nil {
		return err
	}

	var applied []string
	if err := db.Model(&models.Migration{}).Pluck("migration", &applied).Error; err != nil {
		return err
	}
	done := make(map[string]bool, len(applied))
	for _, name := range applied {
		done[name] = true
	}

	var maxBatch int
	db.Model(&models.Migration{}).Select("COALESCE(MAX(batch), 0)").Scan(&maxBatch)
	batch := maxBatch + 1

	for _, s := range steps {
		if done[s.name] {
			continue
		}
		if err := s.run(db); err != nil {
			return err
		}
		if err := db.Create(&models.Migration{Migration: s.name, Batch: batch}).Error; err != nil {
			return err
		}
		lg.Infow("migrated", "migration", s.name, "batch", batch)
	}
	return nil
}
