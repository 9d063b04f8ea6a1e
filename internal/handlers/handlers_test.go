package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"golang.org/x/crypto/bcrypt"

	"github.com/harentsoaR/doctors-portal/internal/auth"
	"github.com/harentsoaR/doctors-portal/internal/booking"
	"github.com/harentsoaR/doctors-portal/internal/metrics"
	"github.com/harentsoaR/doctors-portal/internal/middleware"
	"github.com/harentsoaR/doctors-portal/internal/models"
	"github.com/harentsoaR/doctors-portal/internal/services"
	"github.com/harentsoaR/doctors-portal/internal/store"
	"github.com/harentsoaR/doctors-portal/internal/users"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	t      *testing.T
	mem    *store.Memory
	tokens *auth.TokenService
	router *gin.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	mem := store.NewMemory()
	if err := mem.Seed(store.Services,
		models.Service{Name: "Teeth Cleaning", Slots: []string{"9:00", "10:00", "11:00"}},
		models.Service{Name: "Oral Surgery", Slots: []string{"9:00"}},
	); err != nil {
		t.Fatal(err)
	}
	if err := mem.Seed(store.Users,
		models.User{Email: "boss@x.com", Role: models.RoleAdmin},
		models.User{Email: "alice@x.com", Role: models.RoleRegular},
	); err != nil {
		t.Fatal(err)
	}

	tokens, err := auth.NewTokenService("handler-secret")
	if err != nil {
		t.Fatal(err)
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	dir := users.NewDirectory(mem.Collection(store.Users), bcrypt.MinCost)
	reg := booking.NewRegistry(mem.Collection(store.Bookings))
	cat := services.NewCatalog(mem.Collection(store.Services), log)
	h := NewHandler(mem, tokens, dir, reg, cat, metrics.New())

	r := gin.New()
	h.Register(r, middleware.NewGate(tokens, dir), middleware.NewRateLimiter(0, 0))
	return &testServer{t: t, mem: mem, tokens: tokens, router: r}
}

func (s *testServer) token(email string) string {
	s.t.Helper()
	tok, err := s.tokens.Issue(email)
	if err != nil {
		s.t.Fatal(err)
	}
	return tok
}

func (s *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			s.t.Fatal(err)
		}
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %s: %v", rec.Body, err)
	}
}

func (s *testServer) count(collection string) int {
	s.t.Helper()
	var docs []bson.M
	if err := s.mem.Collection(collection).Find(context.Background(), bson.M{}, &docs); err != nil {
		s.t.Fatal(err)
	}
	return len(docs)
}

func TestHome(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodGet, "/", "", nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "Hello From Doctor Uncle" {
		t.Errorf("GET / = %d %q", rec.Code, rec.Body)
	}
}

func TestGetServices_ProjectsNames(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodGet, "/services", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got []map[string]any
	decodeBody(t, rec, &got)
	if len(got) != 2 {
		t.Fatalf("services = %v", got)
	}
	for _, svc := range got {
		if _, ok := svc["slots"]; ok {
			t.Errorf("slots leaked into /services: %v", svc)
		}
		if svc["name"] == "" || svc["_id"] == nil {
			t.Errorf("missing name or id: %v", svc)
		}
	}
}

func TestDuplicateBookingEndToEnd(t *testing.T) {
	s := newTestServer(t)

	first := s.do(http.MethodPost, "/booking", "", map[string]string{
		"treatment": "Teeth Cleaning", "patient": "alice@x.com", "date": "Jan 1, 2024", "slot": "9:00",
	})
	if first.Code != http.StatusOK {
		t.Fatalf("first POST = %d %s", first.Code, first.Body)
	}
	var accepted struct {
		Success bool `json:"success"`
		Result  struct {
			Acknowledged bool   `json:"acknowledged"`
			InsertedID   string `json:"insertedId"`
		} `json:"result"`
	}
	decodeBody(t, first, &accepted)
	if !accepted.Success || !accepted.Result.Acknowledged || accepted.Result.InsertedID == "" {
		t.Errorf("first response = %s", first.Body)
	}

	second := s.do(http.MethodPost, "/booking", "", map[string]string{
		"treatment": "Teeth Cleaning", "patient": "alice@x.com", "date": "Jan 1, 2024", "slot": "10:00",
	})
	var rejected struct {
		Success bool           `json:"success"`
		Booking map[string]any `json:"booking"`
	}
	decodeBody(t, second, &rejected)
	if rejected.Success {
		t.Fatalf("duplicate accepted: %s", second.Body)
	}
	if rejected.Booking["slot"] != "9:00" || rejected.Booking["_id"] != accepted.Result.InsertedID {
		t.Errorf("existing booking = %v", rejected.Booking)
	}

	if n := s.count(store.Bookings); n != 1 {
		t.Errorf("stored bookings = %d, want 1", n)
	}
}

func TestCreateBooking_Validation(t *testing.T) {
	s := newTestServer(t)
	tests := map[string]any{
		"missing slot":    map[string]string{"treatment": "Teeth Cleaning", "patient": "a@x.com", "date": "d"},
		"missing patient": map[string]string{"treatment": "Teeth Cleaning", "date": "d", "slot": "9:00"},
		"not an object":   []int{1, 2},
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			if rec := s.do(http.MethodPost, "/booking", "", body); rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
	if n := s.count(store.Bookings); n != 0 {
		t.Errorf("invalid bookings stored: %d", n)
	}
}

func TestGetBookings(t *testing.T) {
	s := newTestServer(t)
	s.do(http.MethodPost, "/booking", "", map[string]string{
		"treatment": "Teeth Cleaning", "patient": "alice@x.com", "date": "Jan 1, 2024", "slot": "9:00",
	})

	own := s.do(http.MethodGet, "/booking?patient=alice@x.com", s.token("alice@x.com"), nil)
	if own.Code != http.StatusOK {
		t.Fatalf("own bookings = %d %s", own.Code, own.Body)
	}
	var list []map[string]any
	decodeBody(t, own, &list)
	if len(list) != 1 {
		t.Errorf("own bookings = %v", list)
	}

	cross := s.do(http.MethodGet, "/booking?patient=alice@x.com", s.token("mallory@x.com"), nil)
	if cross.Code != http.StatusForbidden || !strings.Contains(cross.Body.String(), `"Forbidden access"`) {
		t.Errorf("cross-account = %d %s", cross.Code, cross.Body)
	}

	if rec := s.do(http.MethodGet, "/booking?patient=alice@x.com", "", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("no token = %d, want 401", rec.Code)
	}
	if rec := s.do(http.MethodGet, "/booking?patient=alice@x.com", "garbage", nil); rec.Code != http.StatusForbidden {
		t.Errorf("bad token = %d, want 403", rec.Code)
	}
}

func TestGetAvailable(t *testing.T) {
	s := newTestServer(t)
	for _, slot := range []string{"9:00", "11:00"} {
		patient := "p" + slot + "@x.com"
		s.do(http.MethodPost, "/booking", "", map[string]string{
			"treatment": "Teeth Cleaning", "patient": patient, "date": "Jan 1, 2024", "slot": slot,
		})
	}
	s.do(http.MethodPost, "/booking", "", map[string]string{
		"treatment": "Teeth Cleaning", "patient": "q@x.com", "date": "Jan 2, 2024", "slot": "10:00",
	})

	rec := s.do(http.MethodGet, "/available?date=Jan%201,%202024", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d %s", rec.Code, rec.Body)
	}
	var got []struct {
		Name  string   `json:"name"`
		Slots []string `json:"slots"`
	}
	decodeBody(t, rec, &got)
	if len(got) != 2 {
		t.Fatalf("services = %+v", got)
	}
	if got[0].Name != "Teeth Cleaning" || len(got[0].Slots) != 1 || got[0].Slots[0] != "10:00" {
		t.Errorf("Teeth Cleaning slots = %+v", got[0])
	}
	if len(got[1].Slots) != 1 {
		t.Errorf("Oral Surgery slots = %+v", got[1])
	}

	if rec := s.do(http.MethodGet, "/available", "", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("missing date = %d, want 400", rec.Code)
	}
}

func TestAdminGate_NoInsertForRegularUser(t *testing.T) {
	s := newTestServer(t)
	doctor := map[string]string{"email": "dr@x.com", "name": "Dr X"}

	rec := s.do(http.MethodPost, "/doctor", s.token("alice@x.com"), doctor)
	if rec.Code != http.StatusForbidden || !strings.Contains(rec.Body.String(), `"forbidden"`) {
		t.Errorf("regular POST /doctor = %d %s", rec.Code, rec.Body)
	}
	rec = s.do(http.MethodPost, "/doctor", s.token("ghost@x.com"), doctor)
	if rec.Code != http.StatusForbidden {
		t.Errorf("unknown user POST /doctor = %d", rec.Code)
	}
	if n := s.count(store.Doctors); n != 0 {
		t.Fatalf("doctors stored by non-admins: %d", n)
	}

	rec = s.do(http.MethodPost, "/doctor", s.token("boss@x.com"), doctor)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin POST /doctor = %d %s", rec.Code, rec.Body)
	}
	if n := s.count(store.Doctors); n != 1 {
		t.Errorf("doctors = %d, want 1", n)
	}
}

func TestDoctorLifecycle(t *testing.T) {
	s := newTestServer(t)
	boss := s.token("boss@x.com")

	if rec := s.do(http.MethodPost, "/doctor", boss, map[string]string{"name": "No Email"}); rec.Code != http.StatusBadRequest {
		t.Errorf("doctor without email = %d, want 400", rec.Code)
	}
	s.do(http.MethodPost, "/doctor", boss, map[string]string{"email": "dr@x.com", "specialty": "Surgery", "room": "3B"})

	rec := s.do(http.MethodGet, "/doctors", boss, nil)
	var list []map[string]any
	decodeBody(t, rec, &list)
	if len(list) != 1 || list[0]["room"] != "3B" {
		t.Errorf("doctors = %v", list)
	}

	rec = s.do(http.MethodDelete, "/doctor/dr@x.com", boss, nil)
	var receipt store.DeleteReceipt
	decodeBody(t, rec, &receipt)
	if receipt.DeletedCount != 1 {
		t.Errorf("delete receipt = %s", rec.Body)
	}

	if rec := s.do(http.MethodGet, "/doctors", s.token("alice@x.com"), nil); rec.Code != http.StatusForbidden {
		t.Errorf("regular GET /doctors = %d", rec.Code)
	}
}

func TestUpsertUserAndAdminFlow(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPut, "/user/new@x.com", "", map[string]string{"name": "New", "role": "admin"})
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT /user = %d %s", rec.Code, rec.Body)
	}
	var out struct {
		Result store.UpdateReceipt `json:"result"`
		Token  string              `json:"token"`
	}
	decodeBody(t, rec, &out)
	if out.Result.UpsertedCount != 1 {
		t.Errorf("receipt = %+v", out.Result)
	}
	claims, err := s.tokens.Verify(out.Token)
	if err != nil || claims.Email != "new@x.com" {
		t.Fatalf("issued token: %v %v", claims, err)
	}

	var admin struct {
		Admin bool `json:"admin"`
	}
	decodeBody(t, s.do(http.MethodGet, "/admin/new@x.com", "", nil), &admin)
	if admin.Admin {
		t.Fatal("role from the request body was applied")
	}

	if rec := s.do(http.MethodPut, "/user/admin/new@x.com", out.Token, nil); rec.Code != http.StatusForbidden {
		t.Errorf("self-promotion = %d, want 403", rec.Code)
	}
	if rec := s.do(http.MethodPut, "/user/admin/new@x.com", s.token("boss@x.com"), nil); rec.Code != http.StatusOK {
		t.Fatalf("promotion = %d %s", rec.Code, rec.Body)
	}
	decodeBody(t, s.do(http.MethodGet, "/admin/new@x.com", "", nil), &admin)
	if !admin.Admin {
		t.Error("promoted user is not admin")
	}

	decodeBody(t, s.do(http.MethodGet, "/admin/ghost@x.com", "", nil), &admin)
	if admin.Admin {
		t.Error("unknown user reported as admin")
	}
}

func TestUpsertUser_EmptyBody(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPut, "/user/dave@x.com", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT /user with no body = %d %s", rec.Code, rec.Body)
	}
	var out struct {
		Result store.UpdateReceipt `json:"result"`
		Token  string              `json:"token"`
	}
	decodeBody(t, rec, &out)
	if out.Result.UpsertedCount != 1 || out.Token == "" {
		t.Errorf("response = %s", rec.Body)
	}

	if rec := s.do(http.MethodPut, "/user/dave@x.com", "", []int{1}); rec.Code != http.StatusBadRequest {
		t.Errorf("non-object body = %d, want 400", rec.Code)
	}
}

func TestGetAllUsers(t *testing.T) {
	s := newTestServer(t)
	s.do(http.MethodPut, "/user/carol@x.com", "", map[string]string{"password": "hunter22"})

	if rec := s.do(http.MethodGet, "/allUsers", "", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous /allUsers = %d", rec.Code)
	}
	rec := s.do(http.MethodGet, "/allUsers", s.token("alice@x.com"), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "password") || strings.Contains(rec.Body.String(), "hunter22") {
		t.Errorf("password material in response: %s", rec.Body)
	}
	var list []map[string]any
	decodeBody(t, rec, &list)
	if len(list) != 3 {
		t.Errorf("users = %d, want 3", len(list))
	}
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)
	if rec := s.do(http.MethodGet, "/healthz", "", nil); rec.Code != http.StatusOK {
		t.Errorf("/healthz = %d", rec.Code)
	}
	if rec := s.do(http.MethodGet, "/metrics", "", nil); rec.Code != http.StatusOK {
		t.Errorf("/metrics = %d", rec.Code)
	}
}
