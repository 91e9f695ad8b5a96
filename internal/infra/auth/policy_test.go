package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/orbit-auth/internal/domain"
)

func TestPolicy_IssueVerifyRoundTrip(t *testing.T) {
	f := newFixture(t)

	cred, err := f.policy.Issue(f.admin.Identity())
	require.NoError(t, err)
	assert.Equal(t, f.clock.Now().Add(time.Hour), cred.ExpiresAt)

	id, err := f.policy.Verify(context.Background(), cred.Token)
	require.NoError(t, err)
	assert.Equal(t, f.admin.ID, id.ID)
	assert.Equal(t, "a@b.com", id.Email)
	assert.Equal(t, domain.RoleAdmin, id.Role)

	// Префикс Bearer допускается
	_, err = f.policy.Verify(context.Background(), "Bearer "+cred.Token)
	require.NoError(t, err)
}

func TestPolicy_VerifyExpiry(t *testing.T) {
	f := newFixture(t)
	cred, err := f.policy.Issue(f.user.Identity())
	require.NoError(t, err)

	f.clock.Advance(time.Hour - time.Second)
	_, err = f.policy.Verify(context.Background(), cred.Token)
	require.NoError(t, err, "valid one second before expiry")

	f.clock.Advance(time.Second)
	_, err = f.policy.Verify(context.Background(), cred.Token)
	assert.ErrorIs(t, err, domain.ErrUnauthorized, "invalid exactly at expiry")

	f.clock.Advance(time.Hour)
	_, err = f.policy.Verify(context.Background(), cred.Token)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestPolicy_TamperedSignature(t *testing.T) {
	f := newFixture(t)
	cred, err := f.policy.Issue(f.user.Identity())
	require.NoError(t, err)

	sigStart := strings.LastIndex(cred.Token, ".") + 1
	// Последний символ base64url несет неполные биты, его замена может не менять байты
	for i := sigStart; i < len(cred.Token)-1; i++ {
		tampered := []byte(cred.Token)
		if tampered[i] == 'A' {
			tampered[i] = 'B'
		} else {
			tampered[i] = 'A'
		}
		_, err := f.policy.Verify(context.Background(), string(tampered))
		require.ErrorIs(t, err, domain.ErrUnauthorized, "position %d", i)
	}
}

func TestPolicy_TamperedPayload(t *testing.T) {
	f := newFixture(t)
	cred, err := f.policy.Issue(f.user.Identity())
	require.NoError(t, err)

	// Подменяем payload на payload админского токена, подпись остается пользовательской
	adminCred, err := f.policy.Issue(f.admin.Identity())
	require.NoError(t, err)

	parts := strings.Split(cred.Token, ".")
	adminParts := strings.Split(adminCred.Token, ".")
	forged := parts[0] + "." + adminParts[1] + "." + parts[2]

	_, err = f.policy.Verify(context.Background(), forged)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestPolicy_VerifyRejects(t *testing.T) {
	f := newFixture(t)
	keys, err := NewHMACKeys(testSecret)
	require.NoError(t, err)
	now := f.clock.Now()

	valid := func() *domain.Claims {
		return &domain.Claims{
			Email: "x@b.com",
			Role:  domain.RoleUser,
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "api.orbit",
				Subject:   "user-1",
				Audience:  jwt.ClaimStrings{"api.orbit"},
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			},
		}
	}

	tests := []struct {
		name   string
		mutate func(c *domain.Claims)
	}{
		{"unknown role", func(c *domain.Claims) { c.Role = "superuser" }},
		{"missing role", func(c *domain.Claims) { c.Role = "" }},
		{"wrong issuer", func(c *domain.Claims) { c.Issuer = "evil" }},
		{"wrong audience", func(c *domain.Claims) { c.Audience = jwt.ClaimStrings{"other"} }},
		{"no expiry", func(c *domain.Claims) { c.ExpiresAt = nil }},
		{"issued in future", func(c *domain.Claims) { c.IssuedAt = jwt.NewNumericDate(now.Add(time.Hour)) }},
		{"no subject", func(c *domain.Claims) { c.Subject = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			raw, err := keys.Sign(c)
			require.NoError(t, err)

			_, err = f.policy.Verify(context.Background(), raw)
			assert.ErrorIs(t, err, domain.ErrUnauthorized)
		})
	}

	t.Run("baseline is valid", func(t *testing.T) {
		raw, err := keys.Sign(valid())
		require.NoError(t, err)
		_, err = f.policy.Verify(context.Background(), raw)
		assert.NoError(t, err)
	})
}

func TestPolicy_VerifyRejectsForeignSecretAndAlgNone(t *testing.T) {
	f := newFixture(t)
	other, err := NewHMACKeys("ffffffffffffffffffffffffffffffff")
	require.NoError(t, err)
	now := f.clock.Now()

	claims := &domain.Claims{
		Role: domain.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer: "api.orbit", Subject: "x", Audience: jwt.ClaimStrings{"api.orbit"},
			IssuedAt: jwt.NewNumericDate(now), ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
	raw, err := other.Sign(claims)
	require.NoError(t, err)
	_, err = f.policy.Verify(context.Background(), raw)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = f.policy.Verify(context.Background(), unsigned)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = f.policy.Verify(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	_, err = f.policy.Verify(context.Background(), "not-a-jwt")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestPolicy_IssueRejectsInvalidRoles(t *testing.T) {
	f := newFixture(t)

	_, err := f.policy.Issue(domain.Identity{ID: "u1", Role: ""})
	assert.ErrorIs(t, err, domain.ErrMissingRole)

	for _, role := range []domain.Role{"superuser", "Admin", "root"} {
		_, err := f.policy.Issue(domain.Identity{ID: "u1", Role: role})
		assert.ErrorIs(t, err, domain.ErrInvalidInput, "role %q", role)
	}

	_, err = f.policy.Issue(domain.Identity{Role: domain.RoleUser})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestPolicy_VerifyOnlyCannotIssue(t *testing.T) {
	keys, err := NewHMACKeys(testSecret)
	require.NoError(t, err)
	p := NewPolicy(keys, nil, Options{Issuer: "api.orbit", Audience: "api.orbit"})

	assert.False(t, p.CanIssue())
	_, err = p.Issue(domain.Identity{ID: "u", Role: domain.RoleUser})
	assert.ErrorIs(t, err, domain.ErrNotSupported)
}

func TestPolicy_RS256WithKeyID(t *testing.T) {
	keys := NewRSAKeysFromPrivate(newRSAKey(t))
	f := newFixtureWithKeys(t, keys, keys)

	cred, err := f.policy.Issue(f.admin.Identity())
	require.NoError(t, err)

	parsed, _, err := jwt.NewParser().ParseUnverified(cred.Token, &domain.Claims{})
	require.NoError(t, err)
	assert.Equal(t, "RS256", parsed.Header["alg"])
	assert.Equal(t, keys.JWKS().Keys[0].Kid, parsed.Header["kid"])

	id, err := f.policy.Verify(context.Background(), cred.Token)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, id.Role)

	// Токен чужого ключа не проходит
	otherKeys := NewRSAKeysFromPrivate(newRSAKey(t))
	other := newFixtureWithKeys(t, otherKeys, otherKeys)
	foreign, err := other.policy.Issue(domain.Identity{ID: "x", Role: domain.RoleAdmin})
	require.NoError(t, err)
	_, err = f.policy.Verify(context.Background(), foreign.Token)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	// HS256 токен в RS256 деплое отклоняется по алгоритму
	hmacFix := newFixture(t)
	hs, err := hmacFix.policy.Issue(domain.Identity{ID: "x", Role: domain.RoleAdmin})
	require.NoError(t, err)
	_, err = f.policy.Verify(context.Background(), hs.Token)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestRSAKeys_FromPEM(t *testing.T) {
	key := newRSAKey(t)
	privPEM, pubPEM := encodePEM(t, key)

	keys, err := NewRSAKeys(privPEM, pubPEM)
	require.NoError(t, err)
	assert.Equal(t, KeyID(&key.PublicKey), keys.JWKS().Keys[0].Kid)

	_, otherPub := encodePEM(t, newRSAKey(t))
	_, err = NewRSAKeys(privPEM, otherPub)
	assert.Error(t, err, "mismatched halves")

	verifyOnly, err := NewRSAKeys(nil, pubPEM)
	require.NoError(t, err)
	_, err = verifyOnly.Sign(jwt.RegisteredClaims{})
	assert.Error(t, err)

	_, err = ParseRSAPublicKey(nil)
	assert.Error(t, err)
}

func TestNewHMACKeys_ShortSecret(t *testing.T) {
	_, err := NewHMACKeys("short")
	assert.Error(t, err)
}

func TestGrantedScopes(t *testing.T) {
	got := grantedScopes(&domain.Claims{Scope: "read:dashboard  openid", Permissions: []string{"edit:user", ""}})
	assert.Equal(t, []string{"read:dashboard", "openid", "edit:user"}, got)
}
