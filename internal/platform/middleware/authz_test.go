// Copyright (c) 2026 Registra. All rights reserved.

package middleware_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/registra/registra/internal/platform/apperr"
	"github.com/registra/registra/internal/platform/constants"
	"github.com/registra/registra/internal/platform/ctxutil"
	"github.com/registra/registra/internal/platform/middleware"
	"github.com/registra/registra/internal/platform/sec"
)

// # Fakes

// fakeResolver resolves identities from a fixed map, mimicking the store.
type fakeResolver struct {
	identities map[int64]*sec.Identity
}

func (resolver *fakeResolver) ResolveIdentity(_ context.Context, accountID int64) (*sec.Identity, error) {
	identity, ok := resolver.identities[accountID]
	if !ok {
		return nil, apperr.Unauthorized("User not found")
	}
	return identity, nil
}

// okHandler echoes the bound identity so tests can observe what reached it.
func okHandler(t *testing.T) http.HandlerFunc {
	t.Helper()
	return func(writer http.ResponseWriter, request *http.Request) {
		identity := ctxutil.GetIdentity(request.Context())
		writer.WriteHeader(http.StatusOK)
		if identity != nil {
			_ = json.NewEncoder(writer).Encode(identity)
		}
	}
}

func newGuardFixture(t *testing.T, ttl time.Duration) (*sec.TokenCodec, *fakeResolver, http.Handler) {
	t.Helper()

	codec := sec.NewTokenCodec("guard-test-secret", "registra.test", ttl)
	resolver := &fakeResolver{identities: map[int64]*sec.Identity{
		1: {ID: 1, Email: "member@registra.app", Role: sec.RoleStudent},
	}}
	guarded := middleware.Authenticate(codec, resolver)(okHandler(t))
	return codec, resolver, guarded
}

func errorCode(t *testing.T, recorder *httptest.ResponseRecorder) string {
	t.Helper()

	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	return body.Error.Code
}

// # Token Extraction

func TestExtractToken(t *testing.T) {
	tests := []struct {
		name      string
		header    string
		cookie    string
		wantToken string
		wantFound bool
	}{
		{"no_credential", "", "", "", false},
		{"bearer_header", "Bearer header-token", "", "header-token", true},
		{"lowercase_scheme", "bearer header-token", "", "header-token", true},
		{"cookie_only", "", "cookie-token", "cookie-token", true},
		{"header_wins_over_cookie", "Bearer header-token", "cookie-token", "header-token", true},
		{"malformed_header_falls_through", "Bearertoken", "cookie-token", "cookie-token", true},
		{"wrong_scheme_falls_through", "Basic dXNlcg==", "cookie-token", "cookie-token", true},
		{"empty_bearer_falls_through", "Bearer ", "cookie-token", "cookie-token", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			request := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				request.Header.Set(constants.HeaderAuthorization, tt.header)
			}
			if tt.cookie != "" {
				request.AddCookie(&http.Cookie{Name: constants.AccessTokenCookieName, Value: tt.cookie})
			}

			token, found := middleware.ExtractToken(request)
			assert.Equal(t, tt.wantFound, found)
			assert.Equal(t, tt.wantToken, token)
		})
	}
}

// # Authentication Guard

func TestAuthenticate_MissingToken(t *testing.T) {
	_, _, guarded := newGuardFixture(t, time.Hour)

	recorder := httptest.NewRecorder()
	guarded.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusUnauthorized, recorder.Code)
	assert.Equal(t, apperr.CodeUnauthorized, errorCode(t, recorder))
}

func TestAuthenticate_InvalidToken(t *testing.T) {
	_, _, guarded := newGuardFixture(t, time.Hour)

	request := httptest.NewRequest(http.MethodGet, "/", nil)
	request.Header.Set(constants.HeaderAuthorization, "Bearer not-a-jwt")

	recorder := httptest.NewRecorder()
	guarded.ServeHTTP(recorder, request)

	require.Equal(t, http.StatusUnauthorized, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "Invalid token")
}

func TestAuthenticate_ExpiredToken(t *testing.T) {
	codec, _, guarded := newGuardFixture(t, -time.Minute)

	token, err := codec.Issue(1, "member@registra.app", sec.RoleStudent)
	require.NoError(t, err)

	request := httptest.NewRequest(http.MethodGet, "/", nil)
	request.Header.Set(constants.HeaderAuthorization, "Bearer "+token)

	recorder := httptest.NewRecorder()
	guarded.ServeHTTP(recorder, request)

	require.Equal(t, http.StatusUnauthorized, recorder.Code)
	// Expiry is reported distinctly from malformed tokens.
	assert.Contains(t, recorder.Body.String(), "Token expired")
}

func TestAuthenticate_BindsIdentity(t *testing.T) {
	codec, _, guarded := newGuardFixture(t, time.Hour)

	token, err := codec.Issue(1, "member@registra.app", sec.RoleStudent)
	require.NoError(t, err)

	request := httptest.NewRequest(http.MethodGet, "/", nil)
	request.Header.Set(constants.HeaderAuthorization, "Bearer "+token)

	recorder := httptest.NewRecorder()
	guarded.ServeHTTP(recorder, request)

	require.Equal(t, http.StatusOK, recorder.Code)

	var identity sec.Identity
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &identity))
	assert.Equal(t, int64(1), identity.ID)
	assert.Equal(t, sec.RoleStudent, identity.Role)
}

func TestAuthenticate_VanishedAccount(t *testing.T) {
	// A valid token whose account no longer resolves must be rejected.
	codec, _, guarded := newGuardFixture(t, time.Hour)

	token, err := codec.Issue(999, "gone@registra.app", sec.RoleStudent)
	require.NoError(t, err)

	request := httptest.NewRequest(http.MethodGet, "/", nil)
	request.Header.Set(constants.HeaderAuthorization, "Bearer "+token)

	recorder := httptest.NewRecorder()
	guarded.ServeHTTP(recorder, request)

	require.Equal(t, http.StatusUnauthorized, recorder.Code)
	assert.Equal(t, apperr.CodeUnauthorized, errorCode(t, recorder))
}

func TestAuthenticate_StaleTokenRole(t *testing.T) {
	// The role embedded in the token is never trusted: the resolver's current
	// view wins even when the two disagree.
	codec, resolver, guarded := newGuardFixture(t, time.Hour)
	resolver.identities[1].Role = sec.RoleStaff

	token, err := codec.Issue(1, "member@registra.app", sec.RoleStudent)
	require.NoError(t, err)

	request := httptest.NewRequest(http.MethodGet, "/", nil)
	request.Header.Set(constants.HeaderAuthorization, "Bearer "+token)

	recorder := httptest.NewRecorder()
	guarded.ServeHTTP(recorder, request)

	require.Equal(t, http.StatusOK, recorder.Code)

	var identity sec.Identity
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &identity))
	assert.Equal(t, sec.RoleStaff, identity.Role)
}

func TestAuthenticateOptional_AnonymousProceeds(t *testing.T) {
	codec := sec.NewTokenCodec("guard-test-secret", "registra.test", time.Hour)
	resolver := &fakeResolver{identities: map[int64]*sec.Identity{}}

	handler := middleware.AuthenticateOptional(codec, resolver)(okHandler(t))

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))

	// No identity, but the request goes through.
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Empty(t, recorder.Body.String())
}

// # Authorization Guard

func withIdentity(request *http.Request, identity *sec.Identity) *http.Request {
	return request.WithContext(ctxutil.WithIdentity(request.Context(), identity))
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name       string
		identity   *sec.Identity
		allowed    []sec.Role
		wantStatus int
	}{
		{"no_identity", nil, []sec.Role{sec.RoleAdmin}, http.StatusUnauthorized},
		{"role_allowed", &sec.Identity{ID: 1, Role: sec.RoleAdmin}, []sec.Role{sec.RoleAdmin}, http.StatusOK},
		{"role_in_set", &sec.Identity{ID: 1, Role: sec.RoleStaff}, []sec.Role{sec.RoleStaff, sec.RoleAdmin}, http.StatusOK},
		{"role_outside_set", &sec.Identity{ID: 1, Role: sec.RoleStudent}, []sec.Role{sec.RoleStaff, sec.RoleAdmin}, http.StatusForbidden},
		// Membership is a set check: staff is NOT implicitly admin.
		{"no_hierarchy", &sec.Identity{ID: 1, Role: sec.RoleStaff}, []sec.Role{sec.RoleAdmin}, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := middleware.RequireRole(tt.allowed...)(okHandler(t))

			request := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.identity != nil {
				request = withIdentity(request, tt.identity)
			}

			recorder := httptest.NewRecorder()
			handler.ServeHTTP(recorder, request)
			assert.Equal(t, tt.wantStatus, recorder.Code)
		})
	}
}

func TestRequireSelfOrRole(t *testing.T) {
	router := chi.NewRouter()
	router.With(middleware.RequireSelfOrRole("accountID", sec.RoleStaff, sec.RoleAdmin)).
		Get("/accounts/{accountID}", okHandler(t))

	tests := []struct {
		name       string
		identity   *sec.Identity
		path       string
		wantStatus int
	}{
		{"no_identity", nil, "/accounts/7", http.StatusUnauthorized},
		{"own_resource", &sec.Identity{ID: 7, Role: sec.RoleStudent}, "/accounts/7", http.StatusOK},
		{"other_resource_student", &sec.Identity{ID: 7, Role: sec.RoleStudent}, "/accounts/8", http.StatusForbidden},
		{"other_resource_staff", &sec.Identity{ID: 7, Role: sec.RoleStaff}, "/accounts/8", http.StatusOK},
		{"other_resource_admin", &sec.Identity{ID: 7, Role: sec.RoleAdmin}, "/accounts/8", http.StatusOK},
		{"non_numeric_param_student", &sec.Identity{ID: 7, Role: sec.RoleStudent}, "/accounts/me", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			request := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.identity != nil {
				request = withIdentity(request, tt.identity)
			}

			recorder := httptest.NewRecorder()
			router.ServeHTTP(recorder, request)
			assert.Equal(t, tt.wantStatus, recorder.Code)
		})
	}
}
