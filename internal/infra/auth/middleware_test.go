package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/orbit-auth/internal/domain"
	"github.com/xela07ax/orbit-auth/internal/infra"
	"github.com/xela07ax/orbit-auth/internal/infra/cookie"
	"github.com/xela07ax/orbit-auth/internal/repository/memory"
)

var adminOnly = Rule{Roles: []domain.Role{domain.RoleAdmin}, Scopes: []string{"edit:user"}}

func protected(a *Authenticator, rule Rule) http.Handler {
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := IdentityFrom(r.Context())
		_, _ = w.Write([]byte(id.ID))
	})
	return a.Middleware(a.Require(rule)(final))
}

func TestAuthenticator_HeaderMode(t *testing.T) {
	f := newFixture(t)
	a := NewAuthenticator(infra.AuthModeHeader, f.policy, nil, nil, nil)
	h := protected(a, adminOnly)

	adminCred, err := f.policy.Issue(f.admin.Identity())
	require.NoError(t, err)
	userCred, err := f.policy.Issue(f.user.Identity())
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"no credential", "", http.StatusUnauthorized},
		{"garbage", "Bearer nope", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + adminCred.Token, http.StatusUnauthorized},
		{"user on admin route", "Bearer " + userCred.Token, http.StatusForbidden},
		{"admin", "Bearer " + adminCred.Token, http.StatusOK},
		{"lowercase scheme", "bearer " + adminCred.Token, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/user-role", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			switch tt.status {
			case http.StatusUnauthorized:
				assert.JSONEq(t, `{"message":"Not authorized"}`, rec.Body.String())
			case http.StatusForbidden:
				assert.JSONEq(t, `{"message":"Insufficient role"}`, rec.Body.String())
			case http.StatusOK:
				assert.Equal(t, f.admin.ID, rec.Body.String(), "identity comes from the credential")
			}
		})
	}
}

func TestAuthenticator_CookieMode(t *testing.T) {
	f := newFixture(t)
	a := NewAuthenticator(infra.AuthModeCookie, f.policy, nil, cookie.NewManager(infra.CookieConfig{}), nil)
	h := protected(a, adminOnly)

	cred, err := f.policy.Issue(f.admin.Identity())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieToken, Value: cred.Token})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Header в cookie режиме не принимается
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+cred.Token)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthenticator_SessionMode(t *testing.T) {
	f := newFixture(t)
	sessions := NewSessions(memory.NewSessionRepo(), 0)
	a := NewAuthenticator(infra.AuthModeSession, f.policy, sessions, cookie.NewManager(infra.CookieConfig{}), nil)
	h := protected(a, Rule{Roles: []domain.Role{domain.RoleUser, domain.RoleAdmin}})

	sid, err := sessions.Start(context.Background(), f.user.Identity())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieSession, Value: sid})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, f.user.ID, rec.Body.String())

	require.NoError(t, sessions.End(context.Background(), sid))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthenticator_OAuthScopes(t *testing.T) {
	idp := newFakeIdP(t)
	clock := newFakeClock()
	p, _ := newOAuthPolicy(t, idp, clock, 5)
	a := NewAuthenticator(infra.AuthModeOAuth, p, nil, nil, nil)

	raw := idp.token(t, clock.Now(), "read:dashboard")

	call := func(rule Rule) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+raw)
		rec := httptest.NewRecorder()
		protected(a, rule).ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, call(Rule{Roles: []domain.Role{domain.RoleAdmin}, Scopes: []string{"read:dashboard"}}))
	assert.Equal(t, http.StatusForbidden, call(adminOnly))
}

func TestAuthenticator_Optional(t *testing.T) {
	f := newFixture(t)
	a := NewAuthenticator(infra.AuthModeHeader, f.policy, nil, nil, nil)

	var seen *domain.Identity
	h := a.Optional(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = IdentityFrom(r.Context())
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/graphql", nil))
	assert.Nil(t, seen)

	cred, err := f.policy.Issue(f.user.Identity())
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/graphql", nil)
	req.Header.Set("Authorization", "Bearer "+cred.Token)
	h.ServeHTTP(httptest.NewRecorder(), req)
	require.NotNil(t, seen)
	assert.Equal(t, f.user.ID, seen.ID)
}
