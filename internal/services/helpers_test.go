package services

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/lojf/gymclass/internal/db"
	"github.com/lojf/gymclass/internal/models"
)

// clock is a settable time source for the service.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

// openTestDB returns an isolated in-file SQLite database in a temp directory.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "test.db") + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"
	gdb, err := db.Open("sqlite", dsn, logger.Default.LogMode(logger.Silent))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gdb
}

// fixture is one club with an active activity and trainer.
type fixture struct {
	svc     *Service
	db      *gorm.DB
	clock   *clock
	club    models.Club
	act     models.Activity
	trainer models.Trainer
}

// newFixture starts the clock at 2023-12-31 10:00 UTC, the day before the
// first Monday of 2024.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	gdb := openTestDB(t)
	c := &clock{t: time.Date(2023, 12, 31, 10, 0, 0, 0, time.UTC)}
	f := &fixture{
		db:    gdb,
		clock: c,
		svc: New(gdb, Options{
			Now:              c.Now,
			Loc:              time.UTC,
			LockTimeout:      5 * time.Second,
			MaxExpansionDays: 366,
		}),
	}

	f.club = models.Club{Name: "Downtown"}
	mustCreate(t, gdb, &f.club)
	f.act = models.Activity{ClubID: f.club.ID, Name: "Spin", DefaultCapacity: 20, DurationMinutes: 60, IsActive: true}
	mustCreate(t, gdb, &f.act)
	f.trainer = models.Trainer{ClubID: f.club.ID, Name: "Ana", IsActive: true}
	mustCreate(t, gdb, &f.trainer)
	return f
}

func mustCreate(t *testing.T, gdb *gorm.DB, v any) {
	t.Helper()
	if err := gdb.Create(v).Error; err != nil {
		t.Fatalf("create %T: %v", v, err)
	}
}

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := models.ParseDay(s)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

// session inserts a SCHEDULED 08:00-09:00 session on the given day.
func (f *fixture) session(t *testing.T, on string, capacity int) models.Session {
	t.Helper()
	s := models.Session{
		ClubID:      f.club.ID,
		ActivityID:  f.act.ID,
		SessionDate: day(t, on),
		StartTime:   "08:00",
		EndTime:     "09:00",
		Capacity:    capacity,
		Status:      models.SessionScheduled,
	}
	mustCreate(t, f.db, &s)
	return s
}

func (f *fixture) reload(t *testing.T, v any, id uint) {
	t.Helper()
	if err := f.db.First(v, id).Error; err != nil {
		t.Fatalf("reload %T %d: %v", v, id, err)
	}
}

func intp(n int) *int { return &n }

func uintp(n uint) *uint { return &n }
