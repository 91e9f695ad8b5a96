package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/orbit-auth/internal/audit"
	"github.com/xela07ax/orbit-auth/internal/domain"
	"github.com/xela07ax/orbit-auth/internal/infra/auth"
	"github.com/xela07ax/orbit-auth/internal/repository/memory"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type fixture struct {
	auth     *AuthService
	users    *UserService
	repo     *memory.UserRepo
	recorder *audit.Recorder
	events   *memory.AuditRepo
}

func newFixture(t *testing.T, sessions *auth.Sessions) *fixture {
	t.Helper()
	logger := zap.NewNop()
	repo := memory.NewUserRepo()
	events := memory.NewAuditRepo()
	recorder := audit.NewRecorder(events, logger, nil, audit.Options{})
	recorder.Start()
	t.Cleanup(recorder.Stop)

	keys, err := auth.NewHMACKeys("service-test-secret-0123456789abcdef")
	require.NoError(t, err)
	policy := auth.NewPolicy(keys, keys, auth.Options{Refresh: memory.NewRefreshRepo(), Users: repo})

	svc, err := NewAuthService(repo, policy, sessions, recorder, AuthConfig{BcryptCost: bcrypt.MinCost}, logger, nil)
	require.NoError(t, err)
	return &fixture{
		auth:     svc,
		users:    NewUserService(repo, recorder, logger),
		repo:     repo,
		recorder: recorder,
		events:   events,
	}
}

// flush дожидается записи всех событий аудита.
func (f *fixture) flush() []audit.AuthEvent {
	f.recorder.Stop()
	return f.events.Events()
}

func signup(t *testing.T, f *fixture, email string) *Session {
	t.Helper()
	s, err := f.auth.Signup(context.Background(), domain.SignupRequest{
		FirstName: "Ann", LastName: "Lee", Email: email, Password: "secret1",
	}, RequestMeta{RequestID: "req-1", RemoteIP: "10.0.0.1"})
	require.NoError(t, err)
	return s
}

func TestAuthService_SignupThenLogin(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	s := signup(t, f, " Ann@B.com ")
	assert.Equal(t, "ann@b.com", s.User.Email)
	assert.Equal(t, domain.RoleUser, s.User.Role)
	require.NotNil(t, s.Credential)
	require.NotNil(t, s.Refresh)
	assert.NotEqual(t, "secret1", s.User.PasswordHash)

	logged, err := f.auth.Login(ctx, domain.LoginRequest{Email: "ANN@b.com", Password: "secret1"}, RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, s.User.ID, logged.User.ID)

	_, err = f.auth.Login(ctx, domain.LoginRequest{Email: "ann@b.com", Password: "wrong"}, RequestMeta{})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	_, err = f.auth.Login(ctx, domain.LoginRequest{Email: "nobody@b.com", Password: "secret1"}, RequestMeta{})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = f.auth.Signup(ctx, domain.SignupRequest{FirstName: "A", LastName: "B", Email: "ann@b.com", Password: "secret1"}, RequestMeta{})
	assert.ErrorIs(t, err, domain.ErrConflict)

	events := f.flush()
	outcomes := map[string][]string{}
	for _, e := range events {
		outcomes[e.Action] = append(outcomes[e.Action], e.Outcome)
	}
	assert.Equal(t, []string{audit.OutcomeOK, audit.OutcomeDenied}, outcomes[audit.ActionSignup])
	assert.Equal(t, []string{audit.OutcomeOK, audit.OutcomeDenied, audit.OutcomeDenied}, outcomes[audit.ActionLogin])
	assert.Equal(t, "req-1", events[0].RequestID)
}

func TestAuthService_SessionMode(t *testing.T) {
	sessions := auth.NewSessions(memory.NewSessionRepo(), 0)
	f := newFixture(t, sessions)

	s := signup(t, f, "s@b.com")
	assert.Nil(t, s.Credential, "no bearer credential in session mode")
	require.NotEmpty(t, s.SessionID)

	id, err := sessions.Resolve(context.Background(), s.SessionID)
	require.NoError(t, err)
	assert.Equal(t, s.User.ID, id.ID)

	require.NoError(t, f.auth.Logout(context.Background(), "", s.SessionID, RequestMeta{}))
	_, err = sessions.Resolve(context.Background(), s.SessionID)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestAuthService_RefreshAndLogout(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	s := signup(t, f, "r@b.com")

	cred, next, err := f.auth.Refresh(ctx, s.Refresh.Value, RequestMeta{})
	require.NoError(t, err)
	assert.NotEmpty(t, cred.Token)

	_, _, err = f.auth.Refresh(ctx, s.Refresh.Value, RequestMeta{})
	assert.ErrorIs(t, err, domain.ErrUnauthorized, "used refresh token is dead")

	require.NoError(t, f.auth.Logout(ctx, next.Value, "", RequestMeta{}))
	require.NoError(t, f.auth.Logout(ctx, next.Value, "", RequestMeta{}), "logout is idempotent")
	_, _, err = f.auth.Refresh(ctx, next.Value, RequestMeta{})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestNewAuthService_RejectsUnknownSignupRole(t *testing.T) {
	_, err := NewAuthService(memory.NewUserRepo(), nil, nil, nil,
		AuthConfig{BcryptCost: bcrypt.MinCost, SignupRole: "root"}, zap.NewNop(), nil)
	assert.Error(t, err)
}

func TestUserService_UpdateRole(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	admin := signup(t, f, "admin@b.com").User
	target := signup(t, f, "t@b.com").User
	caller := admin.Identity()

	err := f.users.UpdateRole(ctx, &caller, domain.RoleUpdateRequest{Role: "root", UserID: target.ID})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	require.NoError(t, f.users.UpdateRole(ctx, &caller, domain.RoleUpdateRequest{Role: domain.RoleAdmin, UserID: target.ID}))
	u, err := f.repo.GetUserByID(ctx, target.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, u.Role)

	err = f.users.UpdateRole(ctx, &caller, domain.RoleUpdateRequest{Role: domain.RoleUser, UserID: "missing"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	var changes int
	for _, e := range f.flush() {
		if e.Action == audit.ActionRoleChange {
			changes++
			assert.Equal(t, target.ID, e.UserID)
		}
	}
	assert.Equal(t, 1, changes)
}

func TestUserService_ProfileOfDeletedUser(t *testing.T) {
	f := newFixture(t, nil)
	ghost := &domain.Identity{ID: "gone", Role: domain.RoleUser}

	_, err := f.users.Profile(context.Background(), ghost)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestAuthService_LoginThrottledPerAddress(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	signup(t, f, "ann@b.com")

	limited, err := NewAuthService(f.repo, f.auth.policy, nil, f.recorder,
		AuthConfig{BcryptCost: bcrypt.MinCost, LoginRatePerMinute: 1}, zap.NewNop(), nil)
	require.NoError(t, err)

	attacker := RequestMeta{RemoteIP: "203.0.113.9"}
	_, err = limited.Login(ctx, domain.LoginRequest{Email: "ann@b.com", Password: "wrong"}, attacker)
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	_, err = limited.Login(ctx, domain.LoginRequest{Email: "ann@b.com", Password: "secret1"}, attacker)
	assert.ErrorIs(t, err, domain.ErrTooManyAttempts, "correct password does not bypass the limit")

	_, err = limited.Login(ctx, domain.LoginRequest{Email: "ann@b.com", Password: "secret1"}, RequestMeta{RemoteIP: "198.51.100.1"})
	assert.NoError(t, err, "other addresses are unaffected")

	var throttled int
	for _, e := range f.flush() {
		if e.Action == audit.ActionLogin && e.Detail == "rate limited" {
			throttled++
			assert.Equal(t, audit.OutcomeDenied, e.Outcome)
		}
	}
	assert.Equal(t, 1, throttled)
}
