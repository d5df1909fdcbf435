package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/lab-booking/internal/auth"
	"github.com/iliyamo/lab-booking/internal/booking"
	"github.com/iliyamo/lab-booking/internal/clock"
	"github.com/iliyamo/lab-booking/internal/handler"
	"github.com/iliyamo/lab-booking/internal/labdir"
	"github.com/iliyamo/lab-booking/internal/model"
	"github.com/iliyamo/lab-booking/internal/queue"
	"github.com/iliyamo/lab-booking/internal/remote"
	"github.com/iliyamo/lab-booking/internal/router"
	"github.com/iliyamo/lab-booking/internal/session"
)

const secret = "handler-test-secret"

// Monday 2 June 2025, 10:00 UTC.
var testNow = time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

// bookingService is an in-memory stand-in for the remote booking service.
type bookingService struct {
	mu       sync.Mutex
	bookings map[string]model.Booking
	order    []string
	next     int
	calls    map[string]int
	tokens   []string
	failWith map[string]int // "METHOD path-pattern" -> status
}

func newBookingService() *bookingService {
	s := &bookingService{bookings: map[string]model.Booking{}, calls: map[string]int{}, failWith: map[string]int{}}
	at := func(day, hour int) time.Time { return time.Date(2025, 6, day, hour, 0, 0, 0, time.UTC) }
	may := func(day int) time.Time { return time.Date(2025, 5, day, 8, 0, 0, 0, time.UTC) }
	for _, b := range []model.Booking{
		{ID: "b1", LabID: "L1", RequesterID: "u1", StartTime: at(2, 14), EndTime: at(2, 16), Purpose: "titration", Status: model.StatusPending, CreatedAt: may(30)},
		{ID: "b2", LabID: "L2", RequesterID: "u2", StartTime: at(5, 9), EndTime: at(5, 10), Purpose: "optics", Status: model.StatusPending, CreatedAt: may(31)},
		{ID: "b3", LabID: "L1", RequesterID: "u1", StartTime: at(3, 9), EndTime: at(3, 11), Purpose: "review", Status: model.StatusApproved, CreatedAt: may(29)},
		{ID: "b4", LabID: "L2", RequesterID: "u1", StartTime: at(4, 9), EndTime: at(4, 10), Purpose: "retry", Status: model.StatusRejected, RejectedReason: "overlap", CreatedAt: may(28)},
	} {
		s.bookings[b.ID] = b
		s.order = append(s.order, b.ID)
	}
	return s
}

func (s *bookingService) count(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[key]
}

func (s *bookingService) fail(key string, status int) {
	s.mu.Lock()
	s.failWith[key] = status
	s.mu.Unlock()
}

func (s *bookingService) routes() *echo.Echo {
	e := echo.New()
	api := e.Group("/api")
	api.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := c.Request().Method + " " + strings.TrimPrefix(c.Path(), "/api")
			s.mu.Lock()
			s.calls[key]++
			s.tokens = append(s.tokens, c.Request().Header.Get("Authorization"))
			status := s.failWith[key]
			s.mu.Unlock()
			switch status {
			case 0:
				return next(c)
			case http.StatusInternalServerError:
				return c.JSON(status, echo.Map{"message": "booking store unavailable"})
			default:
				return c.JSON(status, echo.Map{"error": http.StatusText(status)})
			}
		}
	})

	api.GET("/bookings", func(c echo.Context) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		out := []model.Booking{}
		for _, id := range s.order {
			b := s.bookings[id]
			if u := c.QueryParam("userId"); u != "" && b.RequesterID != u {
				continue
			}
			if l := c.QueryParam("labId"); l != "" && b.LabID != l {
				continue
			}
			if st := c.QueryParam("status"); st != "" && string(b.Status) != st {
				continue
			}
			out = append(out, b)
		}
		return c.JSON(http.StatusOK, echo.Map{"data": out})
	})
	api.GET("/bookings/pending", func(c echo.Context) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		out := []model.Booking{}
		for _, id := range s.order {
			if b := s.bookings[id]; b.Status == model.StatusPending {
				out = append(out, b)
			}
		}
		return c.JSON(http.StatusOK, out)
	})
	api.GET("/bookings/:id", func(c echo.Context) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		b, ok := s.bookings[c.Param("id")]
		if !ok {
			return c.JSON(http.StatusNotFound, echo.Map{"message": "Booking not found"})
		}
		return c.JSON(http.StatusOK, echo.Map{"data": b})
	})
	api.POST("/bookings", func(c echo.Context) error {
		var in model.NewBooking
		if err := c.Bind(&in); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"message": "bad body"})
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		s.next++
		b := model.Booking{
			ID: "n" + string(rune('0'+s.next)), LabID: in.LabID, RequesterID: in.RequesterID,
			StartTime: in.StartTime, EndTime: in.EndTime, Purpose: in.Purpose,
			Status: model.StatusPending, CreatedAt: testNow, UpdatedAt: testNow,
		}
		s.bookings[b.ID] = b
		s.order = append([]string{b.ID}, s.order...)
		return c.JSON(http.StatusCreated, b)
	})
	api.PUT("/bookings/:id", func(c echo.Context) error {
		var p model.Patch
		if err := c.Bind(&p); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"message": "bad body"})
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		b, ok := s.bookings[c.Param("id")]
		if !ok {
			return c.JSON(http.StatusNotFound, echo.Map{"message": "Booking not found"})
		}
		b = p.Apply(b)
		b.UpdatedAt = testNow
		s.bookings[b.ID] = b
		return c.JSON(http.StatusOK, b)
	})
	api.DELETE("/bookings/:id", func(c echo.Context) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		id := c.Param("id")
		if _, ok := s.bookings[id]; !ok {
			return c.JSON(http.StatusNotFound, echo.Map{"message": "Booking not found"})
		}
		delete(s.bookings, id)
		return c.NoContent(http.StatusNoContent)
	})
	decide := func(status model.Status) echo.HandlerFunc {
		return func(c echo.Context) error {
			var body struct {
				Reason string `json:"reason"`
			}
			_ = c.Bind(&body)
			s.mu.Lock()
			defer s.mu.Unlock()
			b, ok := s.bookings[c.Param("id")]
			if !ok {
				return c.JSON(http.StatusNotFound, echo.Map{"message": "Booking not found"})
			}
			b.Status = status
			b.RejectedReason = body.Reason
			b.UpdatedAt = testNow
			s.bookings[b.ID] = b
			// sparse answer, like the real service
			return c.JSON(http.StatusOK, echo.Map{"id": b.ID, "status": string(status)})
		}
	}
	api.PATCH("/bookings/:id/approve", decide(model.StatusApproved))
	api.PATCH("/bookings/:id/reject", decide(model.StatusRejected))
	api.GET("/labs/:id", func(c echo.Context) error {
		switch c.Param("id") {
		case "L1":
			return c.JSON(http.StatusOK, echo.Map{"id": "L1", "name": "Chemistry", "location": "B-201", "capacity": 20})
		case "L2":
			return c.JSON(http.StatusOK, echo.Map{"id": "L2", "name": "Physics", "location": "C-105", "capacity": 12})
		}
		return c.JSON(http.StatusNotFound, echo.Map{"message": "Lab not found"})
	})
	return e
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.BookingDecidedEvent
	err    error
}

func (p *recordingPublisher) PublishDecided(_ context.Context, ev queue.BookingDecidedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

type staticDecisions map[string][]model.Decision

func (s staticDecisions) ListByBooking(_ context.Context, id string) ([]model.Decision, error) {
	if id == "broken" {
		return nil, errors.New("db down")
	}
	return s[id], nil
}

type fixture struct {
	e        *echo.Echo
	svc      *bookingService
	registry *session.Registry
	pub      *recordingPublisher
	h        *handler.BookingHandler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	svc := newBookingService()
	srv := httptest.NewServer(svc.routes())
	t.Cleanup(srv.Close)

	base, err := remote.New(remote.Options{BaseURL: srv.URL + "/api", Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("remote client: %v", err)
	}
	registry := session.NewRegistry(
		func(p auth.Provider) booking.Remote { return base.WithTokens(p) },
		session.WithClock(clock.NewFixed(testNow)),
	)
	pub := &recordingPublisher{}
	h := handler.NewBookingHandler(registry, labdir.NewRemoteDirectory(base))
	h.Publisher = pub
	h.ApproverRoles = []string{"lab_manager"}

	e := echo.New()
	router.RegisterRoutes(e)
	router.RegisterBookings(e, h, secret)
	return &fixture{e: e, svc: svc, registry: registry, pub: pub, h: h}
}

func token(t *testing.T, user, role string) string {
	t.Helper()
	tok, err := auth.IssueToken(secret, user, role, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return tok.Token
}

func (f *fixture) do(t *testing.T, method, path, bearer, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %s: %v", rec.Body.String(), err)
	}
}

type listBody struct {
	Items []struct {
		model.Booking
		LabName string `json:"labName"`
		Urgent  bool   `json:"urgent"`
	} `json:"items"`
	Count int                   `json:"count"`
	Stats booking.ApprovalStats `json:"stats"`
}

func TestHealthAndAuth(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	if rec := f.do(t, http.MethodGet, "/healthz", "", ""); rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("expected ok, got %d %q", rec.Code, rec.Body.String())
	}
	if rec := f.do(t, http.MethodGet, "/v1/bookings", "", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
}

func TestMine_NewestFirstWithLabNames(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	tok := token(t, "u1", "student")

	rec := f.do(t, http.MethodGet, "/v1/bookings/mine", tok, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body listBody
	decode(t, rec, &body)
	if body.Count != 3 {
		t.Fatalf("expected 3 bookings, got %d", body.Count)
	}
	got := []string{body.Items[0].ID, body.Items[1].ID, body.Items[2].ID}
	if got[0] != "b1" || got[1] != "b3" || got[2] != "b4" {
		t.Fatalf("expected b1,b3,b4 got %v", got)
	}
	if body.Items[0].LabName != "Chemistry" || body.Items[2].LabName != "Physics" {
		t.Fatalf("expected lab names, got %+v", body.Items)
	}
	if body.Items[2].RejectedReason != "overlap" {
		t.Fatalf("expected rejection reason, got %q", body.Items[2].RejectedReason)
	}
	if f.svc.tokens[0] != "Bearer "+tok {
		t.Fatalf("expected caller token forwarded, got %q", f.svc.tokens[0])
	}
}

func TestList_RejectsBadFilters(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	tok := token(t, "u1", "student")

	for _, q := range []string{"?status=maybe", "?date=June"} {
		if rec := f.do(t, http.MethodGet, "/v1/bookings"+q, tok, ""); rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", q, rec.Code)
		}
	}
	if n := f.svc.count("GET /bookings"); n != 0 {
		t.Fatalf("expected no remote call, got %d", n)
	}
}

func TestPending_WindowAndStats(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	tok := token(t, "m1", "lab_manager")

	rec := f.do(t, http.MethodGet, "/v1/bookings/pending?window=today", tok, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body listBody
	decode(t, rec, &body)
	if body.Count != 1 || body.Items[0].ID != "b1" || !body.Items[0].Urgent {
		t.Fatalf("expected urgent b1 only, got %+v", body.Items)
	}
	if body.Stats != (booking.ApprovalStats{Pending: 2, Urgent: 1, Today: 1}) {
		t.Fatalf("unexpected stats %+v", body.Stats)
	}

	if rec := f.do(t, http.MethodGet, "/v1/bookings/pending?window=month", tok, ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown window, got %d", rec.Code)
	}
}

func TestCreate(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	tok := token(t, "u1", "student")

	rec := f.do(t, http.MethodPost, "/v1/bookings", tok,
		`{"labId":"L1","startTime":"2025-06-06T09:00","endTime":"2025-06-06T10:30","purpose":"thesis run"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var b model.Booking
	decode(t, rec, &b)
	if b.ID != "n1" || b.RequesterID != "u1" || b.Status != model.StatusPending {
		t.Fatalf("unexpected booking %+v", b)
	}
	if !b.StartTime.Equal(time.Date(2025, 6, 6, 9, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected start %v", b.StartTime)
	}

	m := f.registry.For("u1", "student", tok)
	if len(m.Pending()) != 1 || m.Pending()[0].ID != "n1" {
		t.Fatalf("expected new booking in pending projection, got %+v", m.Pending())
	}
}

func TestCreate_BySlot(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	tok := token(t, "u1", "student")

	rec := f.do(t, http.MethodPost, "/v1/bookings", tok,
		`{"labId":"L1","bookingDate":"2025-06-06","slotId":"slot2","purpose":"titration"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var b model.Booking
	decode(t, rec, &b)
	if !b.StartTime.Equal(time.Date(2025, 6, 6, 9, 30, 0, 0, time.UTC)) || !b.EndTime.Equal(time.Date(2025, 6, 6, 11, 45, 0, 0, time.UTC)) {
		t.Fatalf("expected slot2 interval, got %v - %v", b.StartTime, b.EndTime)
	}

	cases := map[string]struct {
		body  string
		field string
	}{
		"unknown slot": {`{"labId":"L1","bookingDate":"2025-06-06","slotId":"slot9","purpose":"x"}`, "slotId"},
		"missing date": {`{"labId":"L1","slotId":"slot1","purpose":"x"}`, "bookingDate"},
		"past slot":    {`{"labId":"L1","bookingDate":"2025-06-02","slotId":"slot1","purpose":"x"}`, "startTime"},
	}
	for name, tc := range cases {
		rec := f.do(t, http.MethodPost, "/v1/bookings", tok, tc.body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d: %s", name, rec.Code, rec.Body.String())
		}
		var body map[string]string
		decode(t, rec, &body)
		if body["field"] != tc.field {
			t.Fatalf("%s: expected field %s, got %q", name, tc.field, body["field"])
		}
	}
	if n := f.svc.count("POST /bookings"); n != 1 {
		t.Fatalf("expected one remote create, got %d", n)
	}

	rec = f.do(t, http.MethodGet, "/v1/slots", tok, "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"slot4"`) {
		t.Fatalf("expected slot catalogue, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCreate_ValidationNeverReachesService(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	tok := token(t, "u1", "student")

	cases := map[string]struct {
		body  string
		field string
	}{
		"start in past":    {`{"labId":"L1","startTime":"2025-06-01T09:00:00Z","endTime":"2025-06-01T10:00:00Z","purpose":"x"}`, "startTime"},
		"end before start": {`{"labId":"L1","startTime":"2025-06-06T11:00","endTime":"2025-06-06T10:00","purpose":"x"}`, "endTime"},
		"blank purpose":    {`{"labId":"L1","startTime":"2025-06-06T09:00","endTime":"2025-06-06T10:00","purpose":"  "}`, "purpose"},
		"bad time":         {`{"labId":"L1","startTime":"tomorrow","endTime":"2025-06-06T10:00","purpose":"x"}`, "startTime"},
		"missing lab":      {`{"startTime":"2025-06-06T09:00","endTime":"2025-06-06T10:00","purpose":"x"}`, "labId"},
	}
	for name, tc := range cases {
		rec := f.do(t, http.MethodPost, "/v1/bookings", tok, tc.body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d: %s", name, rec.Code, rec.Body.String())
		}
		var body map[string]string
		decode(t, rec, &body)
		if body["field"] != tc.field {
			t.Fatalf("%s: expected field %s, got %q", name, tc.field, body["field"])
		}
	}
	if n := f.svc.count("POST /bookings"); n != 0 {
		t.Fatalf("expected no remote create, got %d", n)
	}
}

func TestApprove(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	mgr := token(t, "m1", "lab_manager")

	if rec := f.do(t, http.MethodPatch, "/v1/bookings/b1/approve", token(t, "u1", "student"), ""); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for student, got %d", rec.Code)
	}

	if rec := f.do(t, http.MethodGet, "/v1/bookings/pending", mgr, ""); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	rec := f.do(t, http.MethodPatch, "/v1/bookings/b1/approve", mgr, `{"notes":"ok"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var b model.Booking
	decode(t, rec, &b)
	if b.Status != model.StatusApproved || b.LabID != "L1" {
		t.Fatalf("expected approved b1 with local fields kept, got %+v", b)
	}

	m := f.registry.For("m1", "lab_manager", mgr)
	for _, p := range m.Pending() {
		if p.ID == "b1" {
			t.Fatalf("expected b1 to leave the pending projection")
		}
	}
	if len(f.pub.events) != 1 {
		t.Fatalf("expected one event, got %d", len(f.pub.events))
	}
	ev := f.pub.events[0]
	if ev.BookingID != "b1" || ev.Decision != "approved" || ev.DecidedBy != "m1" || ev.RequesterID != "u1" {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestApprove_UnknownBooking(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	rec := f.do(t, http.MethodPatch, "/v1/bookings/zzz/approve", token(t, "m1", "lab_manager"), "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(f.pub.events) != 0 {
		t.Fatalf("expected no event for failed approval")
	}
}

func TestApprove_PublishFailureIsNotFatal(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.pub.err = errors.New("broker down")

	rec := f.do(t, http.MethodPatch, "/v1/bookings/b2/approve", token(t, "m1", "lab_manager"), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 despite broker failure, got %d", rec.Code)
	}
}

func TestReject(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	mgr := token(t, "m1", "lab_manager")

	rec := f.do(t, http.MethodPatch, "/v1/bookings/b2/reject", mgr, `{"reason":"   "}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank reason, got %d", rec.Code)
	}
	if n := f.svc.count("PATCH /bookings/:id/reject"); n != 0 {
		t.Fatalf("expected no remote call, got %d", n)
	}

	rec = f.do(t, http.MethodPatch, "/v1/bookings/b2/reject", mgr, `{"reason":"lab closed"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var b model.Booking
	decode(t, rec, &b)
	if b.Status != model.StatusRejected || b.RejectedReason != "lab closed" {
		t.Fatalf("unexpected booking %+v", b)
	}
	if len(f.pub.events) != 1 || f.pub.events[0].Reason != "lab closed" {
		t.Fatalf("expected rejection event with reason, got %+v", f.pub.events)
	}
}

func TestUpdateAndDelete(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	tok := token(t, "u1", "student")

	rec := f.do(t, http.MethodPut, "/v1/bookings/b1", tok, `{"purpose":"titration, second run"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var b model.Booking
	decode(t, rec, &b)
	if b.Purpose != "titration, second run" || b.Status != model.StatusPending {
		t.Fatalf("unexpected booking %+v", b)
	}

	if rec := f.do(t, http.MethodPut, "/v1/bookings/b1", tok, `{"status":"someday"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", rec.Code)
	}

	for i := 0; i < 2; i++ {
		if rec := f.do(t, http.MethodDelete, "/v1/bookings/b1", tok, ""); rec.Code != http.StatusNoContent {
			t.Fatalf("delete %d: expected 204, got %d", i, rec.Code)
		}
	}
	if rec := f.do(t, http.MethodGet, "/v1/bookings/b1", tok, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rec.Code)
	}
}

func TestRemoteFailures(t *testing.T) {
	t.Parallel()

	t.Run("server error surfaces remote message", func(t *testing.T) {
		f := newFixture(t)
		f.svc.fail("GET /bookings", http.StatusInternalServerError)
		rec := f.do(t, http.MethodGet, "/v1/bookings", token(t, "u1", "student"), "")
		if rec.Code != http.StatusBadGateway || !strings.Contains(rec.Body.String(), "booking store unavailable") {
			t.Fatalf("expected 502 with remote message, got %d %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("unauthorized drops the session", func(t *testing.T) {
		f := newFixture(t)
		f.svc.fail("GET /bookings", http.StatusUnauthorized)
		rec := f.do(t, http.MethodGet, "/v1/bookings", token(t, "u1", "student"), "")
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
		if f.registry.Len() != 0 {
			t.Fatalf("expected session dropped, %d left", f.registry.Len())
		}
	})

	t.Run("forbidden keeps the session", func(t *testing.T) {
		f := newFixture(t)
		f.svc.fail("GET /bookings/pending", http.StatusForbidden)
		rec := f.do(t, http.MethodGet, "/v1/bookings/pending", token(t, "u1", "student"), "")
		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rec.Code)
		}
		if f.registry.Len() != 1 {
			t.Fatalf("expected session kept, got %d", f.registry.Len())
		}
	})
}

func TestCalendar(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	tok := token(t, "u1", "student")

	rec := f.do(t, http.MethodGet, "/v1/calendar?week=2025-06-04&labId=L1", tok, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		WeekStart string                `json:"weekStart"`
		Days      []booking.CalendarDay `json:"days"`
	}
	decode(t, rec, &body)
	if body.WeekStart != "2025-06-02" || len(body.Days) != 7 {
		t.Fatalf("unexpected week %s with %d days", body.WeekStart, len(body.Days))
	}
	monday := body.Days[0]
	var origin, cont *booking.SlotOccupant
	for _, cell := range monday.Cells {
		switch cell.Hour {
		case "14:00":
			origin = cell.Occupant
		case "15:00":
			cont = cell.Occupant
		case "16:00":
			if cell.Occupant != nil {
				t.Fatalf("expected 16:00 to be free")
			}
		}
	}
	if origin == nil || origin.Booking.ID != "b1" || origin.Continuation {
		t.Fatalf("expected b1 origin at 14:00, got %+v", origin)
	}
	if cont == nil || !cont.Continuation {
		t.Fatalf("expected continuation at 15:00, got %+v", cont)
	}

	if rec := f.do(t, http.MethodGet, "/v1/calendar?week=next", tok, ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad week, got %d", rec.Code)
	}
}

func TestDashboard(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	var student struct {
		Total     int                    `json:"total"`
		ByStatus  map[string]int         `json:"byStatus"`
		Upcoming  []labdir.Row           `json:"upcoming"`
		Approvals *booking.ApprovalStats `json:"approvals"`
	}
	rec := f.do(t, http.MethodGet, "/v1/dashboard", token(t, "u1", "student"), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	decode(t, rec, &student)
	if student.Total != 3 || student.ByStatus["pending"] != 1 || student.ByStatus["rejected"] != 1 {
		t.Fatalf("unexpected counts %+v", student)
	}
	if len(student.Upcoming) != 1 || student.Upcoming[0].ID != "b3" || student.Upcoming[0].LabName != "Chemistry" {
		t.Fatalf("expected b3 upcoming, got %+v", student.Upcoming)
	}
	if student.Approvals != nil {
		t.Fatalf("expected no approval counters for a student")
	}

	var manager struct {
		Approvals *booking.ApprovalStats `json:"approvals"`
	}
	decode(t, f.do(t, http.MethodGet, "/v1/dashboard", token(t, "m1", "lab_manager"), ""), &manager)
	if manager.Approvals == nil || manager.Approvals.Pending != 2 {
		t.Fatalf("expected approval counters, got %+v", manager.Approvals)
	}
}

func TestDecisionsAndLabs(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	tok := token(t, "u1", "student")

	if rec := f.do(t, http.MethodGet, "/v1/bookings/b4/decisions", tok, ""); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without audit store, got %d", rec.Code)
	}
	f.h.Decisions = staticDecisions{"b4": {{ID: 1, EventID: "e1", BookingID: "b4", Decision: model.StatusRejected, Reason: "overlap"}}}
	rec := f.do(t, http.MethodGet, "/v1/bookings/b4/decisions", tok, "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"count":1`) {
		t.Fatalf("expected one decision, got %d %s", rec.Code, rec.Body.String())
	}
	if rec := f.do(t, http.MethodGet, "/v1/bookings/broken/decisions", tok, ""); rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 on store failure, got %d", rec.Code)
	}

	rec = f.do(t, http.MethodGet, "/v1/labs/L2", tok, "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Physics") {
		t.Fatalf("expected Physics, got %d %s", rec.Code, rec.Body.String())
	}
	if rec := f.do(t, http.MethodGet, "/v1/labs/L9", tok, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown lab, got %d", rec.Code)
	}
}
