package auth

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/orbit-auth/internal/domain"
)

func TestRefresh_RotationOnUse(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	first, err := f.policy.IssueRefresh(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, f.clock.Now().Add(7*24*time.Hour), first.ExpiresAt)

	// Храним только хэш
	_, err = f.refresh.FindRefresh(ctx, first.Value)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.refresh.FindRefresh(ctx, HashToken(first.Value))
	require.NoError(t, err)

	cred, second, err := f.policy.RotateRefresh(ctx, first.Value)
	require.NoError(t, err)
	assert.NotEqual(t, first.Value, second.Value)

	id, err := f.policy.Verify(ctx, cred.Token)
	require.NoError(t, err)
	assert.Equal(t, f.user.ID, id.ID)

	// Старый токен больше не работает
	_, _, err = f.policy.RotateRefresh(ctx, first.Value)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	// Новый: работает
	_, _, err = f.policy.RotateRefresh(ctx, second.Value)
	assert.NoError(t, err)
	assert.Equal(t, 1, f.refresh.Len())
}

func TestRefresh_ConcurrentRotationSingleWinner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	token, err := f.policy.IssueRefresh(ctx, f.user.ID)
	require.NoError(t, err)

	const racers = 32
	var (
		wins   atomic.Int32
		denied atomic.Int32
		wg     sync.WaitGroup
		start  = make(chan struct{})
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, _, err := f.policy.RotateRefresh(ctx, token.Value)
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, domain.ErrUnauthorized):
				denied.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.EqualValues(t, 1, wins.Load())
	assert.EqualValues(t, racers-1, denied.Load())
	assert.Equal(t, 1, f.refresh.Len())
}

func TestRefresh_Expired(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	token, err := f.policy.IssueRefresh(ctx, f.user.ID)
	require.NoError(t, err)

	f.clock.Advance(7 * 24 * time.Hour)
	_, _, err = f.policy.RotateRefresh(ctx, token.Value)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Equal(t, 0, f.refresh.Len(), "expired record is purged")
}

func TestRefresh_RoleTakenFromCurrentUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	token, err := f.policy.IssueRefresh(ctx, f.user.ID)
	require.NoError(t, err)
	require.NoError(t, f.users.UpdateRole(ctx, f.user.ID, domain.RoleAdmin))

	cred, _, err := f.policy.RotateRefresh(ctx, token.Value)
	require.NoError(t, err)
	id, err := f.policy.Verify(ctx, cred.Token)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, id.Role)
}

func TestRefresh_UnknownOwner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	token, err := f.policy.IssueRefresh(ctx, "ghost")
	require.NoError(t, err)
	_, _, err = f.policy.RotateRefresh(ctx, token.Value)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestRefresh_FailedIssueKeepsOldToken(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	token, err := f.policy.IssueRefresh(ctx, f.user.ID)
	require.NoError(t, err)

	// роль в хранилище испорчена: access не выпускается
	require.NoError(t, f.users.UpdateRole(ctx, f.user.ID, domain.Role("root")))
	_, _, err = f.policy.RotateRefresh(ctx, token.Value)
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.refresh.FindRefresh(ctx, HashToken(token.Value))
	require.NoError(t, err, "refresh record survives a failed rotation")

	require.NoError(t, f.users.UpdateRole(ctx, f.user.ID, domain.RoleUser))
	_, next, err := f.policy.RotateRefresh(ctx, token.Value)
	require.NoError(t, err)
	assert.NotEqual(t, token.Value, next.Value)
	assert.Equal(t, 1, f.refresh.Len())
}

func TestRevoke_Idempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	token, err := f.policy.IssueRefresh(ctx, f.admin.ID)
	require.NoError(t, err)

	require.NoError(t, f.policy.Revoke(ctx, token.Value))
	require.NoError(t, f.policy.Revoke(ctx, token.Value))
	require.NoError(t, f.policy.Revoke(ctx, "never-issued"))
	require.NoError(t, f.policy.Revoke(ctx, ""))

	_, _, err = f.policy.RotateRefresh(ctx, token.Value)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestRefresh_NotConfigured(t *testing.T) {
	keys, err := NewHMACKeys(testSecret)
	require.NoError(t, err)
	p := NewPolicy(keys, keys, Options{Issuer: "i", Audience: "a"})

	_, err = p.IssueRefresh(context.Background(), "u")
	assert.ErrorIs(t, err, domain.ErrNotSupported)
	assert.NoError(t, p.Revoke(context.Background(), "x"))
}

func TestHashToken_Stable(t *testing.T) {
	assert.Equal(t, HashToken("abc"), HashToken("abc"))
	assert.NotEqual(t, HashToken("abc"), HashToken("abd"))
	assert.NotContains(t, HashToken("abc"), "abc")
}
