package web

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/lojf/gymclass/internal/db"
	"github.com/lojf/gymclass/internal/handlers"
	"github.com/lojf/gymclass/internal/models"
	"github.com/lojf/gymclass/internal/services"
)

type testServer struct {
	h    http.Handler
	db   *gorm.DB
	club models.Club
	act  models.Activity
}

// newTestServer wires the full stack on a temp SQLite file with the clock
// fixed at Sunday 2023-12-31 10:00 UTC.
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "test.db") + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"
	gdb, err := db.Open("sqlite", dsn, logger.Default.LogMode(logger.Silent))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	clock := time.Date(2023, 12, 31, 10, 0, 0, 0, time.UTC)
	svc := services.New(gdb, services.Options{Now: func() time.Time { return clock }})

	ts := &testServer{h: Router(handlers.New(svc)), db: gdb}
	ts.club = models.Club{Name: "Downtown"}
	gdb.Create(&ts.club)
	ts.act = models.Activity{ClubID: ts.club.ID, Name: "Spin", DefaultCapacity: 20, DurationMinutes: 60, IsActive: true}
	gdb.Create(&ts.act)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	ts.h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

type errBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (ts *testServer) createSession(t *testing.T, capacity int) models.Session {
	t.Helper()
	rec := ts.do(t, http.MethodPost, fmt.Sprintf("/api/clubs/%d/sessions", ts.club.ID), map[string]any{
		"activityId": ts.act.ID,
		"date":       "2024-01-01",
		"startTime":  "08:00",
		"endTime":    "09:00",
		"capacity":   capacity,
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create session: want 201, got %d %s", rec.Code, rec.Body)
	}
	return decode[models.Session](t, rec)
}

func TestRouterHealthz(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/healthz", nil, nil)
	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestBookingOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	s := ts.createSession(t, 1)
	path := fmt.Sprintf("/api/sessions/%d/reservations", s.ID)

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		codes = map[int]int{}
		errs  = map[string]int{}
	)
	for u := 1; u <= 5; u++ {
		wg.Add(1)
		go func(user int) {
			defer wg.Done()
			rec := ts.do(t, http.MethodPost, path, nil, map[string]string{"X-User-ID": fmt.Sprint(user)})
			mu.Lock()
			defer mu.Unlock()
			codes[rec.Code]++
			if rec.Code != http.StatusCreated {
				var b errBody
				_ = json.Unmarshal(rec.Body.Bytes(), &b)
				errs[b.Error]++
			}
		}(u)
	}
	wg.Wait()

	if codes[http.StatusCreated] != 1 || codes[http.StatusConflict] != 4 {
		t.Errorf("status codes: want 1x201 4x409, got %v", codes)
	}
	if errs["CAPACITY_EXCEEDED"] != 4 {
		t.Errorf("error codes: want 4 CAPACITY_EXCEEDED, got %v", errs)
	}
}

func TestReservationFlowOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	s := ts.createSession(t, 5)
	user := map[string]string{"X-User-ID": "7"}

	rec := ts.do(t, http.MethodPost, fmt.Sprintf("/api/sessions/%d/reservations", s.ID), nil, user)
	if rec.Code != http.StatusCreated {
		t.Fatalf("book: want 201, got %d %s", rec.Code, rec.Body)
	}
	r := decode[models.Reservation](t, rec)
	if r.Status != models.ReservationPendingPayment || r.Code == "" {
		t.Fatalf("booked: got %+v", r)
	}

	rec = ts.do(t, http.MethodPost, fmt.Sprintf("/api/sessions/%d/reservations", s.ID), nil, user)
	if b := decode[errBody](t, rec); rec.Code != http.StatusConflict || b.Error != "DUPLICATE_BOOKING" {
		t.Errorf("rebook: want 409 DUPLICATE_BOOKING, got %d %+v", rec.Code, b)
	}

	rec = ts.do(t, http.MethodPost, fmt.Sprintf("/api/reservations/%d/pay", r.ID), nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("pay: want 200, got %d %s", rec.Code, rec.Body)
	}

	rec = ts.do(t, http.MethodGet, fmt.Sprintf("/qr/%s.png", r.Code), nil, nil)
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "image/png" {
		t.Errorf("qr: want 200 image/png, got %d %s", rec.Code, rec.Header().Get("Content-Type"))
	}

	rec = ts.do(t, http.MethodPost, fmt.Sprintf("/api/reservations/%d/cancel", r.ID), map[string]string{"reason": "travel"}, user)
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel: want 200, got %d %s", rec.Code, rec.Body)
	}
	cancelled := decode[models.Reservation](t, rec)
	if cancelled.CancelledBy != "user:7" || cancelled.CancelReason != "travel" {
		t.Errorf("cancel audit: got by=%q reason=%q", cancelled.CancelledBy, cancelled.CancelReason)
	}

	rec = ts.do(t, http.MethodPost, fmt.Sprintf("/api/reservations/%d/cancel", r.ID), nil, user)
	if b := decode[errBody](t, rec); rec.Code != http.StatusConflict || b.Error != "ALREADY_CANCELLED" {
		t.Errorf("second cancel: want 409 ALREADY_CANCELLED, got %d %+v", rec.Code, b)
	}

	rec = ts.do(t, http.MethodGet, "/api/users/7/reservations", nil, nil)
	if list := decode[[]models.Reservation](t, rec); len(list) != 1 || list[0].Session == nil {
		t.Errorf("list: got %+v", list)
	}
}

func TestErrorMapping(t *testing.T) {
	ts := newTestServer(t)
	s := ts.createSession(t, 5)

	cases := []struct {
		name   string
		method string
		path   string
		body   any
		header map[string]string
		status int
		code   string
	}{
		{"missing user header", http.MethodPost, fmt.Sprintf("/api/sessions/%d/reservations", s.ID), nil, nil, 400, "INVALID_ARGUMENT"},
		{"unknown session", http.MethodPost, "/api/sessions/999/reservations", nil, map[string]string{"X-User-ID": "1"}, 404, "NOT_FOUND"},
		{"bad id", http.MethodGet, "/api/reservations/abc", nil, nil, 400, "INVALID_ARGUMENT"},
		{"validation", http.MethodPost, fmt.Sprintf("/api/clubs/%d/schedules", ts.club.ID),
			map[string]any{"activityId": ts.act.ID, "startTime": "08:00", "endTime": "09:00", "daysOfWeek": []string{"FUNDAY"}, "validFrom": "2024-01-01"},
			nil, 400, "INVALID_ARGUMENT"},
		{"range too large", http.MethodPost, fmt.Sprintf("/api/clubs/%d/sessions/expand", ts.club.ID),
			map[string]string{"startDate": "2024-01-01", "endDate": "2026-01-01"}, nil, 400, "RANGE_TOO_LARGE"},
		{"unknown code", http.MethodPost, "/api/checkin/code", map[string]string{"code": "RSV-00000000"}, nil, 404, "NOT_FOUND"},
		{"membership validate needs user", http.MethodGet, fmt.Sprintf("/api/clubs/%d/memberships/validate", ts.club.ID), nil, nil, 400, "INVALID_ARGUMENT"},
	}
	for _, c := range cases {
		rec := ts.do(t, c.method, c.path, c.body, c.header)
		b := decode[errBody](t, rec)
		if rec.Code != c.status || b.Error != c.code {
			t.Errorf("%s: want %d %s, got %d %+v", c.name, c.status, c.code, rec.Code, b)
		}
	}
}

func TestScheduleExpandAndListOverHTTP(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, fmt.Sprintf("/api/clubs/%d/schedules", ts.club.ID), map[string]any{
		"activityId": ts.act.ID,
		"startTime":  "18:00",
		"endTime":    "19:00",
		"daysOfWeek": []string{"MONDAY", "WEDNESDAY"},
		"validFrom":  "2024-01-01",
		"capacity":   12,
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create schedule: want 201, got %d %s", rec.Code, rec.Body)
	}

	rec = ts.do(t, http.MethodPost, fmt.Sprintf("/api/clubs/%d/sessions/expand", ts.club.ID),
		map[string]string{"startDate": "2024-01-01", "endDate": "2024-01-14"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expand: want 200, got %d %s", rec.Code, rec.Body)
	}
	if res := decode[services.ExpansionResult](t, rec); res.SessionsCreated != 4 {
		t.Errorf("SessionsCreated: want 4, got %d", res.SessionsCreated)
	}

	rec = ts.do(t, http.MethodGet, fmt.Sprintf("/api/clubs/%d/sessions?from=2024-01-01&to=2024-01-07", ts.club.ID), nil, nil)
	var list []struct {
		Date      string `json:"date"`
		Available int    `json:"available"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].Date != "2024-01-01" || list[0].Available != 12 {
		t.Errorf("sessions: got %+v", list)
	}

	rec = ts.do(t, http.MethodGet, fmt.Sprintf("/api/clubs/%d/capacity?from=2024-01-01&to=2024-01-14", ts.club.ID), nil, nil)
	if rep := decode[services.CapacityReport](t, rec); rep.Summary.Sessions != 4 || rep.Summary.Capacity != 48 {
		t.Errorf("capacity summary: got %+v", rep.Summary)
	}
}

func TestMembershipFlowOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	plan := models.MembershipPlan{ClubID: ts.club.ID, Name: "5 classes", SessionCount: func() *int { n := 5; return &n }(), IsActive: true}
	ts.db.Create(&plan)

	rec := ts.do(t, http.MethodPost, "/api/memberships", map[string]any{"userId": 3, "planId": plan.ID, "clubId": ts.club.ID}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("request: want 201, got %d %s", rec.Code, rec.Body)
	}
	m := decode[models.Membership](t, rec)

	rec = ts.do(t, http.MethodPost, fmt.Sprintf("/api/memberships/%d/approve", m.ID), map[string]int{"version": m.Version}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("approve: want 200, got %d %s", rec.Code, rec.Body)
	}

	rec = ts.do(t, http.MethodGet, fmt.Sprintf("/api/clubs/%d/memberships/validate?userId=3", ts.club.ID), nil, nil)
	v := decode[services.Validation](t, rec)
	if !v.Valid || v.RemainingSessions == nil || *v.RemainingSessions != 5 {
		t.Errorf("validate: got %+v", v)
	}

	rec = ts.do(t, http.MethodPost, fmt.Sprintf("/api/clubs/%d/attendance", ts.club.ID), map[string]any{"userId": 3, "membershipId": m.ID}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("check in: want 201, got %d %s", rec.Code, rec.Body)
	}

	// Stale version after approve bumped it.
	rec = ts.do(t, http.MethodPost, fmt.Sprintf("/api/memberships/%d/suspend", m.ID), map[string]int{"version": m.Version}, nil)
	if b := decode[errBody](t, rec); rec.Code != http.StatusServiceUnavailable || b.Error != "CONTENTION" {
		t.Errorf("stale suspend: want 503 CONTENTION, got %d %+v", rec.Code, b)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("CONTENTION must carry Retry-After")
	}
}

func TestReadRoutesOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	s := ts.createSession(t, 5)

	rec := ts.do(t, http.MethodGet, fmt.Sprintf("/api/sessions/%d", s.ID), nil, nil)
	var view struct {
		ID        uint   `json:"id"`
		Date      string `json:"date"`
		Available int    `json:"available"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil || rec.Code != http.StatusOK {
		t.Fatalf("get session: %d %s", rec.Code, rec.Body)
	}
	if view.ID != s.ID || view.Date != "2024-01-01" || view.Available != 5 {
		t.Errorf("session view: got %+v", view)
	}
	if rec = ts.do(t, http.MethodGet, "/api/sessions/999", nil, nil); rec.Code != http.StatusNotFound {
		t.Errorf("missing session: want 404, got %d", rec.Code)
	}

	rec = ts.do(t, http.MethodPost, fmt.Sprintf("/api/clubs/%d/schedules", ts.club.ID), map[string]any{
		"activityId": ts.act.ID,
		"startTime":  "07:00",
		"endTime":    "08:00",
		"daysOfWeek": []string{"FRIDAY"},
		"validFrom":  "2024-01-01",
	}, nil)
	sc := decode[models.Schedule](t, rec)
	rec = ts.do(t, http.MethodGet, fmt.Sprintf("/api/schedules/%d", sc.ID), nil, nil)
	if got := decode[models.Schedule](t, rec); rec.Code != http.StatusOK || got.ID != sc.ID || got.StartTime != "07:00" {
		t.Errorf("get schedule: %d %+v", rec.Code, got)
	}

	// Roster: user 7 paid, user 8 pending.
	book := fmt.Sprintf("/api/sessions/%d/reservations", s.ID)
	paid := decode[models.Reservation](t, ts.do(t, http.MethodPost, book, nil, map[string]string{"X-User-ID": "7"}))
	ts.do(t, http.MethodPost, book, nil, map[string]string{"X-User-ID": "8"})
	ts.do(t, http.MethodPost, fmt.Sprintf("/api/reservations/%d/pay", paid.ID), nil, nil)

	rec = ts.do(t, http.MethodGet, book, nil, nil)
	if roster := decode[services.Roster](t, rec); rec.Code != http.StatusOK || len(roster.Reservations) != 2 || roster.Session.ID != s.ID {
		t.Errorf("roster: %d %+v", rec.Code, roster)
	}
	rec = ts.do(t, http.MethodGet, book+"?status=paid", nil, nil)
	if roster := decode[services.Roster](t, rec); len(roster.Reservations) != 1 || roster.Reservations[0].ID != paid.ID {
		t.Errorf("paid roster: got %+v", roster.Reservations)
	}
	rec = ts.do(t, http.MethodGet, book+"?status=bogus", nil, nil)
	if b := decode[errBody](t, rec); rec.Code != http.StatusBadRequest || b.Error != "INVALID_ARGUMENT" {
		t.Errorf("bogus status: want 400 INVALID_ARGUMENT, got %d %+v", rec.Code, b)
	}

	rec = ts.do(t, http.MethodGet, book+".csv", nil, nil)
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "text/csv" {
		t.Fatalf("roster csv: want 200 text/csv, got %d %s", rec.Code, rec.Header().Get("Content-Type"))
	}
	rows, err := csv.NewReader(rec.Body).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(rows) != 3 || rows[1][3] != "7" || rows[1][4] != paid.Code || rows[1][5] != "PAID" {
		t.Errorf("csv rows: got %v", rows)
	}

	rec = ts.do(t, http.MethodGet, fmt.Sprintf("/api/clubs/%d/reservations?from=2024-01-01&to=2024-01-07", ts.club.ID), nil, nil)
	if list := decode[[]models.Reservation](t, rec); len(list) != 2 {
		t.Errorf("club reservations: want 2, got %d", len(list))
	}

	// Memberships: the pending queue, the user's list and a single membership.
	plan := models.MembershipPlan{ClubID: ts.club.ID, Name: "monthly", IsActive: true}
	ts.db.Create(&plan)
	m := decode[models.Membership](t, ts.do(t, http.MethodPost, "/api/memberships",
		map[string]any{"userId": 3, "planId": plan.ID, "clubId": ts.club.ID}, nil))

	rec = ts.do(t, http.MethodGet, fmt.Sprintf("/api/clubs/%d/memberships?status=pending", ts.club.ID), nil, nil)
	if queue := decode[[]models.Membership](t, rec); len(queue) != 1 || queue[0].ID != m.ID {
		t.Errorf("pending queue: got %+v", queue)
	}
	rec = ts.do(t, http.MethodGet, "/api/users/3/memberships", nil, nil)
	if mine := decode[[]models.Membership](t, rec); len(mine) != 1 || mine[0].Status != models.MembershipPending {
		t.Errorf("user memberships: got %+v", mine)
	}
	rec = ts.do(t, http.MethodGet, fmt.Sprintf("/api/memberships/%d", m.ID), nil, nil)
	if got := decode[models.Membership](t, rec); rec.Code != http.StatusOK || got.UserID != 3 {
		t.Errorf("get membership: %d %+v", rec.Code, got)
	}

	// Session attendance after a check-in against the session.
	ts.do(t, http.MethodPost, fmt.Sprintf("/api/memberships/%d/approve", m.ID), nil, nil)
	rec = ts.do(t, http.MethodPost, fmt.Sprintf("/api/clubs/%d/attendance", ts.club.ID),
		map[string]any{"userId": 3, "membershipId": m.ID, "sessionId": s.ID}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("check in: want 201, got %d %s", rec.Code, rec.Body)
	}
	rec = ts.do(t, http.MethodGet, fmt.Sprintf("/api/sessions/%d/attendance", s.ID), nil, nil)
	if list := decode[[]models.Attendance](t, rec); len(list) != 1 || list[0].UserID != 3 {
		t.Errorf("session attendance: got %+v", list)
	}
}
