package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xela07ax/orbit-auth/internal/domain"
	"github.com/xela07ax/orbit-auth/internal/repository/memory"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// fakeClock: управляемое время; наносекунды нулевые, т.к. NumericDate режет до секунд
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	policy  *Policy
	clock   *fakeClock
	users   *memory.UserRepo
	refresh *memory.RefreshRepo
	admin   *domain.User
	user    *domain.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	keys, err := NewHMACKeys(testSecret)
	require.NoError(t, err)
	return newFixtureWithKeys(t, keys, keys)
}

func newFixtureWithKeys(t *testing.T, keys KeySource, signer Signer) *fixture {
	t.Helper()
	f := &fixture{
		clock:   newFakeClock(),
		users:   memory.NewUserRepo(),
		refresh: memory.NewRefreshRepo(),
	}
	ctx := context.Background()
	f.admin = &domain.User{Email: "a@b.com", FirstName: "Ada", Role: domain.RoleAdmin}
	f.user = &domain.User{Email: "u@b.com", FirstName: "Uma", Role: domain.RoleUser}
	require.NoError(t, f.users.CreateUser(ctx, f.admin))
	require.NoError(t, f.users.CreateUser(ctx, f.user))

	f.policy = NewPolicy(keys, signer, Options{
		Issuer:     "api.orbit",
		Audience:   "api.orbit",
		AccessTTL:  time.Hour,
		RefreshTTL: 7 * 24 * time.Hour,
		Refresh:    f.refresh,
		Users:      f.users,
		Clock:      f.clock.Now,
	})
	return f
}

func newRSAKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func encodePEM(t *testing.T, key *rsa.PrivateKey) (privPEM, pubPEM []byte) {
	t.Helper()
	privPEM = pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pubPEM = pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
	return privPEM, pubPEM
}
