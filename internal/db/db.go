package db

import (
	"fmt"
	"log"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/lojf/gymclass/internal/config"
	"github.com/lojf/gymclass/internal/models"
)

var conn *gorm.DB

func Init(cfg config.Config) error {
	gdb, err := Open(cfg.DBDriver, cfg.DBDSN, NewLogger(cfg.DBLogLevel, cfg.DBSlowThreshold))
	if err != nil {
		return err
	}
	if err := Migrate(gdb); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	conn = gdb
	log.Printf("database ready (%s)", cfg.DBDriver)
	return nil
}

func Conn() *gorm.DB {
	return conn
}

// Open connects with the named driver ("sqlite" or "postgres").
func Open(driver, dsn string, lg logger.Interface) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.New(postgres.Config{
			DSN:                  dsn,
			PreferSimpleProtocol: true,
		})
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", driver)
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger:         lg,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	if driver == "sqlite" {
		// SQLite works best with a single writer; cap the pool accordingly.
		sqlDB, err := gdb.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
		sqlDB.SetConnMaxLifetime(0)
	}
	return gdb, nil
}

// Indexes GORM cannot express in struct tags. Partial unique indexes back the
// (schedule, day) expansion key, the one-live-booking-per-user rule and the
// one-attendance-per-session rule.
var indexes = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_session_schedule_day ON class_sessions(schedule_id, session_date) WHERE schedule_id IS NOT NULL`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_reservation_user_session ON reservations(user_id, session_id) WHERE status <> 'CANCELLED'`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_attendance_user_session ON attendances(user_id, session_id) WHERE session_id IS NOT NULL`,
	`CREATE INDEX IF NOT EXISTS idx_session_club_day ON class_sessions(club_id, session_date)`,
	`CREATE INDEX IF NOT EXISTS idx_reservation_session_status ON reservations(session_id, status)`,
	`CREATE INDEX IF NOT EXISTS idx_membership_user_club ON memberships(user_id, club_id, status)`,
}

func Migrate(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(
		&models.Club{},
		&models.Activity{},
		&models.Trainer{},
		&models.Schedule{},
		&models.Session{},
		&models.Reservation{},
		&models.MembershipPlan{},
		&models.Membership{},
		&models.Attendance{},
	); err != nil {
		return err
	}
	for _, stmt := range indexes {
		if err := gdb.Exec(stmt).Error; err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}
