package handler

import (
	"bufio"
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spaceko/resource-status-service/internal/adapters/inmemory"
	"github.com/spaceko/resource-status-service/internal/adapters/middleware"
	"github.com/spaceko/resource-status-service/internal/adapters/repository"
	"github.com/spaceko/resource-status-service/internal/core/domain"
	"github.com/spaceko/resource-status-service/internal/core/entitlement"
	"github.com/spaceko/resource-status-service/internal/core/services"
	"github.com/spaceko/resource-status-service/test/mocks"
)

var (
	keyOnce sync.Once
	rsaKey  *rsa.PrivateKey
)

func testKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	keyOnce.Do(func() {
		var err error
		rsaKey, err = rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(err)
		}
	})
	return rsaKey
}

type apiFixture struct {
	mux       *http.ServeMux
	resources *repository.MemoryStore
	sync      *services.Synchronizer
}

func newAPI(t *testing.T) *apiFixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	resources := repository.NewMemoryStore()
	users := repository.NewMemoryUserStore()
	for _, u := range []domain.User{
		mocks.ActiveUser("SUPER-ADMIN", "Admin Master"),
		mocks.ActiveUser("2024-1001", "Juan Dela Cruz"),
		mocks.ActiveUser("PUP01-9001", "Director Lopez"),
		mocks.ActiveUser("LAG01-1001", "Aling Rosa"),
		mocks.ActiveUser("LAG01-1002", "Kuya Ben"),
	} {
		if _, err := users.Create(ctx, u); err != nil {
			t.Fatal(err)
		}
	}
	for _, in := range []domain.ResourceInput{
		{Name: "Lagoon Stall 1", Type: "Food Stall", Details: domain.StallDetails{OwnedBy: "LAG01-1001", StallNumber: 1, Status: domain.StallClosed}},
		{Name: "S506", Type: "Computer Lab", Details: domain.RoomDetails{Wing: "South", Floor: 5, Room: "06", Status: domain.RoomAvailable}},
	} {
		if _, err := resources.Create(ctx, in); err != nil {
			t.Fatal(err)
		}
	}

	audit := inmemory.NewAuditLog(0)
	contributors := repository.NewMemoryContributorStore()
	synchronizer := services.NewSynchronizer(resources, contributors, audit, services.WithSyncLogger(logger))
	manager := services.NewSessionManager(users, inmemory.NewSessionStore(), 0, 0, logger)
	auth := services.NewAuthService(manager, users, testKey(t), 0, 0, logger)
	resp := NewResponder(logger, true)

	rt := Router{
		Resources:      NewResourceHandler(synchronizer, resp),
		Events:         NewEventsHandler(synchronizer, logger),
		Auth:           NewAuthHandler(auth, resp),
		Users:          NewUserHandler(services.NewUserService(users, audit, logger), resp),
		Board:          NewBoardHandler(services.NewContributorBoard(contributors), services.NewAuditReader(audit), resp),
		Health:         NewHealthHandler(nil, nil, logger),
		AuthMiddleware: middleware.NewAuthMiddleware(auth, logger),
		LoginLimit:     middleware.RateLimit(inmemory.NewRateLimiter(3, 15*time.Minute), "login", logger),
	}
	mux := http.NewServeMux()
	rt.Register(mux)
	return &apiFixture{mux: mux, resources: resources, sync: synchronizer}
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.RemoteAddr = "192.0.2.10:4000"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	f.mux.ServeHTTP(rr, req)
	return rr
}

func (f *apiFixture) login(t *testing.T, code string, userType domain.UserType) domain.AuthResult {
	t.Helper()
	rr := f.do(t, http.MethodPost, "/auth/login", "", LoginRequest{UserCode: code, UserType: userType})
	if rr.Code != http.StatusOK {
		t.Fatalf("login %s: %d %s", code, rr.Code, rr.Body.String())
	}
	var res domain.AuthResult
	if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	return res
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", rr.Body.String(), err)
	}
	return body
}

func TestLogin(t *testing.T) {
	f := newAPI(t)

	res := f.login(t, "2024-1001", domain.UserStudent)
	if res.AccessToken == "" || res.RefreshToken == "" || res.User.UserCode != "2024-1001" {
		t.Fatalf("unexpected login result %+v", res)
	}

	tests := []struct {
		name    string
		req     LoginRequest
		status  int
		message string
	}{
		{"role_mismatch", LoginRequest{"2024-1001", domain.UserAdmin}, http.StatusUnauthorized, domain.ErrRoleMismatch.Error()},
		{"unknown_code", LoginRequest{"2024-9999", domain.UserStudent}, http.StatusUnauthorized, domain.ErrInvalidCode.Error()},
		{"missing_fields", LoginRequest{}, http.StatusBadRequest, "validation failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAPI(t)
			rr := f.do(t, http.MethodPost, "/auth/login", "", tt.req)
			if rr.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, rr.Code)
			}
			if got := decodeError(t, rr).Error; got != tt.message {
				t.Errorf("expected %q, got %q", tt.message, got)
			}
		})
	}
}

func TestLogin_RateLimitedPerClient(t *testing.T) {
	f := newAPI(t)
	for i := 0; i < 3; i++ {
		f.do(t, http.MethodPost, "/auth/login", "", LoginRequest{"2024-1001", domain.UserAdmin})
	}
	rr := f.do(t, http.MethodPost, "/auth/login", "", LoginRequest{"2024-1001", domain.UserStudent})
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
}

func TestUpdateStatus_Entitlements(t *testing.T) {
	f := newAPI(t)
	owner := f.login(t, "LAG01-1001", domain.UserLagoonEmployee)
	neighbour := f.login(t, "LAG01-1002", domain.UserLagoonEmployee)

	rr := f.do(t, http.MethodPut, "/resources/1", neighbour.AccessToken, StatusRequest{Status: domain.StatusOpen})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
	if reason := decodeError(t, rr).Reason; reason != entitlement.ReasonOwnStallOnly {
		t.Errorf("unexpected reason %q", reason)
	}

	rr = f.do(t, http.MethodPut, "/resources/1", owner.AccessToken, StatusRequest{Status: domain.StatusOpen})
	if rr.Code != http.StatusOK {
		t.Fatalf("owner update: %d %s", rr.Code, rr.Body.String())
	}
	if rr.Header().Get(versionHeader) != "1" {
		t.Errorf("expected version 1, got %q", rr.Header().Get(versionHeader))
	}
	var updated domain.Resource
	if err := json.Unmarshal(rr.Body.Bytes(), &updated); err != nil {
		t.Fatal(err)
	}
	if updated.Status() != domain.StatusOpen || updated.UpdatedBy == nil || *updated.UpdatedBy != "LAG01-1001" {
		t.Errorf("unexpected resource %+v", updated)
	}

	rr = f.do(t, http.MethodPut, "/resources/1", owner.AccessToken, StatusRequest{Status: domain.StatusAvailable})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("room status on a stall should be 400, got %d", rr.Code)
	}
	rr = f.do(t, http.MethodPut, "/resources/99", owner.AccessToken, StatusRequest{Status: domain.StatusOpen})
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rr.Code)
	}
	rr = f.do(t, http.MethodPut, "/resources/1", "", StatusRequest{Status: domain.StatusOpen})
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("anonymous update should be 401, got %d", rr.Code)
	}
}

func TestUpdateByName_StudentRoom(t *testing.T) {
	f := newAPI(t)
	student := f.login(t, "2024-1001", domain.UserStudent)

	rr := f.do(t, http.MethodPatch, "/resources/S506/status", student.AccessToken, StatusRequest{Status: domain.StatusOccupied})
	if rr.Code != http.StatusOK {
		t.Fatalf("student room update: %d %s", rr.Code, rr.Body.String())
	}
	rr = f.do(t, http.MethodPatch, "/resources/Lagoon%20Stall%201/status", student.AccessToken, StatusRequest{Status: domain.StatusOpen})
	if rr.Code != http.StatusForbidden || decodeError(t, rr).Reason != entitlement.ReasonStudentRoomsOnly {
		t.Fatalf("expected student denial, got %d %s", rr.Code, rr.Body.String())
	}
	rr = f.do(t, http.MethodPatch, "/resources/S506/status", student.AccessToken, map[string]string{})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("missing status should be 400, got %d", rr.Code)
	}
}

func TestReadEndpoints(t *testing.T) {
	f := newAPI(t)

	rr := f.do(t, http.MethodGet, "/resources?category=room", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("list: %d", rr.Code)
	}
	var list []domain.Resource
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].Name != "S506" {
		t.Errorf("unexpected filtered list %+v", list)
	}

	tests := []struct {
		path   string
		status int
	}{
		{"/resources/2", http.StatusOK},
		{"/resources/404", http.StatusNotFound},
		{"/resources/abc", http.StatusBadRequest},
		{"/resources?category=garden", http.StatusBadRequest},
		{"/resources?floor=-1", http.StatusBadRequest},
		{"/snapshot", http.StatusOK},
		{"/contributors?limit=5", http.StatusOK},
		{"/health/ready", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if rr := f.do(t, http.MethodGet, tt.path, "", nil); rr.Code != tt.status {
				t.Errorf("expected %d, got %d", tt.status, rr.Code)
			}
		})
	}
}

func TestSync_ServerWins(t *testing.T) {
	f := newAPI(t)
	admin := f.login(t, "PUP01-9001", domain.UserAdmin)
	for _, st := range []domain.Status{domain.StatusOccupied, domain.StatusAvailable, domain.StatusOccupied} {
		if rr := f.do(t, http.MethodPut, "/resources/2", admin.AccessToken, StatusRequest{Status: st}); rr.Code != http.StatusOK {
			t.Fatalf("admin update: %d", rr.Code)
		}
	}

	tests := []struct {
		client int64
		want   domain.ReconcileAction
	}{
		{1, domain.ReconcileServerWins},
		{3, domain.ReconcileNoChanges},
		{5, domain.ReconcileConflict},
	}
	for _, tt := range tests {
		rr := f.do(t, http.MethodPost, "/resources/sync", "", SyncRequest{ClientVersion: tt.client})
		if rr.Code != http.StatusOK {
			t.Fatalf("sync: %d", rr.Code)
		}
		var res domain.ReconcileResult
		if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
			t.Fatal(err)
		}
		if res.Action != tt.want || res.Version != 3 || len(res.Data) != 2 {
			t.Errorf("client %d: unexpected result %+v", tt.client, res)
		}
	}
}

func TestCreateResource_AdminOnly(t *testing.T) {
	f := newAPI(t)
	student := f.login(t, "2024-1001", domain.UserStudent)
	admin := f.login(t, "PUP01-9001", domain.UserAdmin)

	floor, wing, room := 2, "East", "01"
	body := domain.ResourceRecord{Name: "E201", Type: "Study Area", Category: domain.CategoryRoom, Wing: &wing, Floor: &floor, Room: &room, Status: domain.StatusAvailable}

	if rr := f.do(t, http.MethodPost, "/resources", student.AccessToken, body); rr.Code != http.StatusForbidden {
		t.Fatalf("student create: expected 403, got %d", rr.Code)
	}
	rr := f.do(t, http.MethodPost, "/resources", admin.AccessToken, body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("admin create: %d %s", rr.Code, rr.Body.String())
	}

	body.Floor = nil
	rr = f.do(t, http.MethodPost, "/resources", admin.AccessToken, body)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("room without floor: expected 400, got %d", rr.Code)
	}
	if fields := decodeError(t, rr).Fields; fields["floor"] == "" {
		t.Errorf("expected floor field error, got %v", fields)
	}
}

func TestVerifyAndAudit(t *testing.T) {
	f := newAPI(t)
	admin := f.login(t, "PUP01-9001", domain.UserAdmin)
	student := f.login(t, "2024-1001", domain.UserStudent)

	if rr := f.do(t, http.MethodPost, "/resources/2/verify", student.AccessToken, nil); rr.Code != http.StatusForbidden {
		t.Fatalf("student verify: expected 403, got %d", rr.Code)
	}
	rr := f.do(t, http.MethodPost, "/resources/2/verify", admin.AccessToken, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("admin verify: %d", rr.Code)
	}
	var verified domain.Resource
	if err := json.Unmarshal(rr.Body.Bytes(), &verified); err != nil {
		t.Fatal(err)
	}
	if verified.Verification == nil || verified.Verification.By != "PUP01-9001" {
		t.Errorf("verification not recorded: %+v", verified)
	}

	if rr := f.do(t, http.MethodGet, "/audit", student.AccessToken, nil); rr.Code != http.StatusForbidden {
		t.Errorf("student audit read: expected 403, got %d", rr.Code)
	}
	rr = f.do(t, http.MethodGet, "/audit?limit=10", admin.AccessToken, nil)
	var entries []domain.AuditEntry
	if err := json.Unmarshal(rr.Body.Bytes(), &entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Action != domain.AuditResourceVerification {
		t.Errorf("unexpected audit entries %+v", entries)
	}
}

func TestLogoutAndRefresh(t *testing.T) {
	f := newAPI(t)
	res := f.login(t, "2024-1001", domain.UserStudent)

	rr := f.do(t, http.MethodPost, "/auth/refresh", "", RefreshRequest{RefreshToken: res.RefreshToken})
	if rr.Code != http.StatusOK {
		t.Fatalf("refresh: %d %s", rr.Code, rr.Body.String())
	}
	var refreshed domain.AuthResult
	if err := json.Unmarshal(rr.Body.Bytes(), &refreshed); err != nil {
		t.Fatal(err)
	}

	if rr := f.do(t, http.MethodGet, "/auth/me", refreshed.AccessToken, nil); rr.Code != http.StatusOK {
		t.Fatalf("me: %d", rr.Code)
	}
	if rr := f.do(t, http.MethodPost, "/auth/logout", refreshed.AccessToken, nil); rr.Code != http.StatusNoContent {
		t.Fatalf("logout: %d", rr.Code)
	}
	if rr := f.do(t, http.MethodGet, "/auth/me", refreshed.AccessToken, nil); rr.Code != http.StatusUnauthorized {
		t.Fatalf("token honoured after logout: %d", rr.Code)
	}
}

func TestUsers(t *testing.T) {
	f := newAPI(t)
	super := f.login(t, "SUPER-ADMIN", domain.UserSuperAdmin)
	admin := f.login(t, "PUP01-9001", domain.UserAdmin)

	req := CreateUserRequest{UserCode: "OFC01-2001", Username: "Ms. Patricia Cruz", UserType: domain.UserOfficeEmployee,
		Attributes: domain.Attributes{Office: "Registrar"}}
	rr := f.do(t, http.MethodPost, "/users", admin.AccessToken, req)
	if rr.Code != http.StatusForbidden || decodeError(t, rr).Reason != entitlement.ReasonSuperAdminsCreate {
		t.Fatalf("admin create user: %d %s", rr.Code, rr.Body.String())
	}
	if rr := f.do(t, http.MethodPost, "/users", super.AccessToken, req); rr.Code != http.StatusCreated {
		t.Fatalf("superadmin create user: %d %s", rr.Code, rr.Body.String())
	}
	if rr := f.do(t, http.MethodPost, "/users", super.AccessToken, req); rr.Code != http.StatusConflict {
		t.Fatalf("duplicate: expected 409, got %d", rr.Code)
	}

	rr = f.do(t, http.MethodPatch, "/users/OFC01-2001/active", super.AccessToken, map[string]bool{"isActive": false})
	if rr.Code != http.StatusNoContent {
		t.Fatalf("deactivate: %d %s", rr.Code, rr.Body.String())
	}
	rr = f.do(t, http.MethodPost, "/auth/login", "", LoginRequest{"OFC01-2001", domain.UserOfficeEmployee})
	if rr.Code != http.StatusUnauthorized || decodeError(t, rr).Error != domain.ErrAccountInactive.Error() {
		t.Fatalf("inactive login: %d %s", rr.Code, rr.Body.String())
	}

	if rr := f.do(t, http.MethodGet, "/users", super.AccessToken, nil); rr.Code != http.StatusOK {
		t.Fatalf("list users: %d", rr.Code)
	}
}

func TestResponder_HidesInternalErrorsInProduction(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	internal := errors.New("pq: connection refused on 10.0.0.5")
	err := errors.Join(domain.ErrStorage, internal)

	for _, production := range []bool{true, false} {
		rr := httptest.NewRecorder()
		NewResponder(logger, production).Error(rr, httptest.NewRequest(http.MethodGet, "/", nil), err)
		if rr.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", rr.Code)
		}
		leaked := strings.Contains(rr.Body.String(), "10.0.0.5")
		if leaked == production {
			t.Errorf("production=%v: leaked=%v body=%s", production, leaked, rr.Body.String())
		}
	}
}

type fakePinger struct{ err error }

func (p fakePinger) PingContext(ctx context.Context) error { return p.err }

func (p fakePinger) Ping(ctx context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", p.err)
}

func TestHealthReady(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tests := []struct {
		name   string
		h      *HealthHandler
		status int
	}{
		{"all_up", NewHealthHandler(fakePinger{}, fakePinger{}, logger), http.StatusOK},
		{"db_down", NewHealthHandler(fakePinger{err: errors.New("down")}, fakePinger{}, logger), http.StatusServiceUnavailable},
		{"redis_down", NewHealthHandler(fakePinger{}, fakePinger{err: errors.New("down")}, logger), http.StatusServiceUnavailable},
		{"memory_mode", NewHealthHandler(nil, nil, logger), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			tt.h.Ready(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
			if rr.Code != tt.status {
				t.Errorf("expected %d, got %d", tt.status, rr.Code)
			}
		})
	}
}

func TestEvents_StreamsAcceptedMutations(t *testing.T) {
	f := newAPI(t)
	srv := httptest.NewServer(f.mux)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}

	if _, err := f.sync.ApplyStatusUpdate(context.Background(), domain.ByID(2), domain.StatusOccupied, mocks.ActorFor("2024-1001")); err != nil {
		t.Fatal(err)
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "event: ") {
			if line != "event: "+string(domain.AuditResourceUpdate) {
				t.Fatalf("unexpected event line %q", line)
			}
			return
		}
	}
	t.Fatalf("stream ended without an event: %v", scanner.Err())
}
