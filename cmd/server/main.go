package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/lojf/gymclass/internal/config"
	"github.com/lojf/gymclass/internal/db"
	"github.com/lojf/gymclass/internal/events"
	"github.com/lojf/gymclass/internal/handlers"
	"github.com/lojf/gymclass/internal/models"
	"github.com/lojf/gymclass/internal/services"
	"github.com/lojf/gymclass/internal/sweeper"
	"github.com/lojf/gymclass/internal/web"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := db.Init(cfg); err != nil {
		log.Fatalf("db init: %v", err)
	}
	loc := cfg.Location()

	svc := services.New(db.Conn(), services.Options{
		Loc:              loc,
		LockTimeout:      cfg.BookingLockTimeout,
		MaxExpansionDays: cfg.MaxExpansionDays,
	})
	wireEvents()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var sw *sweeper.Sweeper
	if cfg.SweepEnabled {
		if sw, err = sweeper.New(svc, cfg.SweepSchedule, loc); err != nil {
			log.Fatalf("sweeper: %v", err)
		}
		sw.Start()
	}

	srv := &http.Server{Addr: cfg.Addr, Handler: web.Router(handlers.New(svc))}
	go func() {
		log.Printf("gymclass listening on %s (tz=%s, db=%s)", cfg.Addr, loc, cfg.DBDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	if sw != nil {
		sw.Stop(shutdownCtx)
	}
}

// wireEvents logs post-commit domain events. Notification delivery would
// hook in here.
func wireEvents() {
	events.OnReservationCancelled = func(r models.Reservation) {
		log.Printf("[events] reservation %s cancelled by %s", r.Code, r.CancelledBy)
	}
	events.OnSessionCancelled = func(s models.Session, n int) {
		log.Printf("[events] session %d cancelled, %d reservations released", s.ID, n)
	}
	events.OnSessionClosed = func(s models.Session, completed, noShow, unpaid int) {
		log.Printf("[events] session %d closed: completed=%d no_show=%d unpaid=%d", s.ID, completed, noShow, unpaid)
	}
}
