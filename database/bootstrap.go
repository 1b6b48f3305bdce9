// database/bootstrap.go
package database

import (
	"fmt"
	"time"

	sqlite "github.com/glebarez/sqlite" // CGO-free driver
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"cropcheck/config"
	"cropcheck/entities"
	"cropcheck/pkg/reference"
)

// Open connects to the configured store and migrates the schema.
func Open(cfg config.AppConfig, log *zap.Logger) (*gorm.DB, error) {
	var dial gorm.Dialector
	switch cfg.DBDriver {
	case "mysql":
		if cfg.DBDSN == "" {
			return nil, fmt.Errorf("DB_DSN is required for mysql")
		}
		dial = mysql.Open(cfg.DBDSN)
	case "sqlite", "":
		dial = sqlite.Open(cfg.DBPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}

	db, err := gorm.Open(dial, &gorm.Config{Logger: NewGormLogger(log.Named("gorm"), 200*time.Millisecond)})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.DBDriver, err)
	}
	if err := tune(db); err != nil {
		return nil, err
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// tune serializes SQLite writers on one connection so read-then-write
// transactions (quota, round numbering) cannot interleave.
func tune(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	if db.Dialector.Name() == "sqlite" {
		sqlDB.SetMaxOpenConns(1)
		return nil
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	return nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&entities.Field{},
		&entities.Zone{},
		&entities.InspectionRound{},
		&entities.ImageRecord{},
		&entities.Finding{},
		&entities.Recommendation{},
		&entities.Fertilizer{},
		&entities.NutrientDeficiency{},
	); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	if err := ensureOpenRoundIndex(db); err != nil {
		return fmt.Errorf("open round index: %w", err)
	}
	return nil
}

// ensureOpenRoundIndex adds a partial unique index allowing one open round per
// (field, zone). Stores written before the index existed may hold several
// open rounds; all but the newest are closed first. MySQL has no partial
// indexes and relies on the row lock taken in StartRound instead.
func ensureOpenRoundIndex(db *gorm.DB) error {
	if db.Dialector.Name() != "sqlite" {
		return nil
	}
	var name string
	if err := db.Raw(`SELECT name FROM sqlite_master WHERE type='index' AND name='ux_round_open'`).Scan(&name).Error; err != nil {
		return fmt.Errorf("check index exist: %w", err)
	}
	if name != "" {
		return nil
	}

	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(`
UPDATE inspection_rounds SET status = ?
 WHERE status = ?
   AND inspection_id NOT IN (
       SELECT MAX(inspection_id) FROM inspection_rounds WHERE status = ? GROUP BY field_id, zone_id
   )`, entities.RoundClosed, entities.RoundOpen, entities.RoundOpen).Error; err != nil {
			return err
		}
		return tx.Exec(`CREATE UNIQUE INDEX ux_round_open ON inspection_rounds(field_id, zone_id) WHERE status = 'open'`).Error
	})
}

// SeedReference loads reference rows into empty tables. Tables that already
// hold data are left alone.
func SeedReference(db *gorm.DB, s reference.Seed) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&entities.NutrientDeficiency{}).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 && len(s.Nutrients) > 0 {
			if err := tx.Create(&s.Nutrients).Error; err != nil {
				return fmt.Errorf("seed nutrients: %w", err)
			}
		}
		if err := tx.Model(&entities.Fertilizer{}).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 && len(s.Fertilizers) > 0 {
			if err := tx.Create(&s.Fertilizers).Error; err != nil {
				return fmt.Errorf("seed fertilizers: %w", err)
			}
		}
		return nil
	})
}
