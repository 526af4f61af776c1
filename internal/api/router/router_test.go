package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dentacare/clinic-portal/internal/appointments"
	"github.com/dentacare/clinic-portal/internal/auth"
	"github.com/dentacare/clinic-portal/internal/blog"
	"github.com/dentacare/clinic-portal/internal/dentists"
	httpmiddleware "github.com/dentacare/clinic-portal/internal/http/middleware"
	"github.com/dentacare/clinic-portal/internal/storage"
	"github.com/dentacare/clinic-portal/pkg/logging"
)

type tokenAuthorizer map[string]*auth.Session

func (a tokenAuthorizer) RequireAdmin(_ context.Context, token string) (*auth.Session, error) {
	sess, ok := a[token]
	if !ok {
		return nil, auth.ErrInvalidToken
	}
	if !sess.IsAdmin() {
		return nil, auth.ErrAccessDenied
	}
	return sess, nil
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	logger := logging.Discard()
	apptSvc := appointments.NewService(appointments.NewInMemoryRepository(), nil, nil, nil, logger)
	posts := blog.NewInMemoryRepository()
	author := blog.NewAuthor(posts, storage.NewMemoryStore(""), nil, nil, logger)

	return New(&Config{
		Logger:              logger,
		DentistsHandler:     dentists.NewHandler(dentists.NewInMemoryRepository(dentists.Seed...), logger),
		AppointmentsHandler: appointments.NewHandler(apptSvc, logger),
		BlogHandler:         blog.NewHandler(posts, author, logger),
		Admin: tokenAuthorizer{
			"admin-token": {UserID: "u1", Email: "admin@dentacare.com", Roles: []string{auth.RoleAdmin}},
			"staff-token": {UserID: "u2", Email: "staff@dentacare.com"},
		},
		RateLimiter: httpmiddleware.NewRateLimiter(100, 100),
	})
}

func serve(router http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(""))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestRouterHealthEndpoint(t *testing.T) {
	rr := serve(newTestRouter(t), http.MethodGet, "/health", "")

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	var resp map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("expected status 'ok', got %q", resp["status"])
	}
}

func TestRouterCatalogEndpoint(t *testing.T) {
	rr := serve(newTestRouter(t), http.MethodGet, "/api/catalog", "")

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	var resp CatalogResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode catalog: %v", err)
	}
	if len(resp.Slots) != 12 || len(resp.Services) != 8 || len(resp.BlogCategories) != 6 {
		t.Fatalf("unexpected catalog sizes: %+v", resp)
	}
}

func TestRouterPublicDentists(t *testing.T) {
	router := newTestRouter(t)

	rr := serve(router, http.MethodGet, "/api/dentists", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	rr = serve(router, http.MethodGet, "/api/dentists/2", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Morrison") {
		t.Fatalf("expected Dr. Morrison, got %s", rr.Body.String())
	}
}

func TestRouterUnknownRoutesAreJSON(t *testing.T) {
	router := newTestRouter(t)

	rr := serve(router, http.MethodGet, "/no/such/page", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Fatalf("expected JSON not-found body, got %q", ct)
	}

	rr = serve(router, http.MethodDelete, "/health", "")
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}

func TestRouterAdminRequiresAdminSession(t *testing.T) {
	router := newTestRouter(t)

	cases := []struct {
		token string
		want  int
	}{
		{"", http.StatusUnauthorized},
		{"bogus", http.StatusUnauthorized},
		{"staff-token", http.StatusForbidden},
		{"admin-token", http.StatusOK},
	}
	for _, tc := range cases {
		rr := serve(router, http.MethodGet, "/admin/dashboard", tc.token)
		if rr.Code != tc.want {
			t.Errorf("token %q: expected %d, got %d", tc.token, tc.want, rr.Code)
		}
	}
}

func TestRouterBlogDraftsStayPrivate(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/admin/blog", strings.NewReader(`{"title":"Flossing 101","content":"Floss daily."}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer admin-token")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rr.Code, rr.Body.String())
	}

	rr = serve(router, http.MethodGet, "/api/blog", "")
	if strings.Contains(rr.Body.String(), "Flossing 101") {
		t.Fatalf("draft leaked into public blog: %s", rr.Body.String())
	}
	rr = serve(router, http.MethodGet, "/admin/blog", "admin-token")
	if !strings.Contains(rr.Body.String(), "Flossing 101") {
		t.Fatalf("expected draft in admin list: %s", rr.Body.String())
	}
}
