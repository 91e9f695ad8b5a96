package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/orbit-auth/internal/domain"
)

func TestUserRepo_EmailUniqueCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepo()

	require.NoError(t, repo.CreateUser(ctx, &domain.User{Email: "A@B.com", Role: domain.RoleAdmin}))
	err := repo.CreateUser(ctx, &domain.User{Email: "a@b.com", Role: domain.RoleUser})
	assert.ErrorIs(t, err, domain.ErrConflict)

	u, err := repo.GetUserByEmail(ctx, "a@B.COM")
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", u.Email)
	assert.Equal(t, domain.RoleAdmin, u.Role)
}

func TestUserRepo_UpdateRoleAndBio(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepo()
	u := &domain.User{Email: "u@b.com", Role: domain.RoleUser}
	require.NoError(t, repo.CreateUser(ctx, u))

	require.NoError(t, repo.UpdateRole(ctx, u.ID, domain.RoleAdmin))
	require.NoError(t, repo.UpdateBio(ctx, u.ID, "hello"))

	got, err := repo.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, got.Role)
	assert.Equal(t, "hello", got.Bio)

	assert.ErrorIs(t, repo.UpdateBio(ctx, "missing", "x"), domain.ErrNotFound)
}

func TestInventoryRepo_OwnerScoped(t *testing.T) {
	ctx := context.Background()
	repo := NewInventoryRepo()
	item := &domain.InventoryItem{UserID: "alice", Name: "Widget"}
	require.NoError(t, repo.CreateItem(ctx, item))
	require.NoError(t, repo.CreateItem(ctx, &domain.InventoryItem{UserID: "bob", Name: "Gadget"}))

	items, err := repo.ListInventory(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Widget", items[0].Name)

	_, err = repo.DeleteItem(ctx, item.ID, "bob")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	deleted, err := repo.DeleteItem(ctx, item.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, item.ID, deleted.ID)
}

func TestRefreshRepo_ReplaceOnlyOnce(t *testing.T) {
	ctx := context.Background()
	repo := NewRefreshRepo()
	require.NoError(t, repo.SaveRefresh(ctx, &domain.RefreshRecord{TokenHash: "old", UserID: "u"}))

	require.NoError(t, repo.ReplaceRefresh(ctx, "old", &domain.RefreshRecord{TokenHash: "new", UserID: "u"}))
	assert.ErrorIs(t, repo.ReplaceRefresh(ctx, "old", &domain.RefreshRecord{TokenHash: "other", UserID: "u"}), domain.ErrNotFound)

	_, err := repo.FindRefresh(ctx, "old")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, 1, repo.Len())

	require.NoError(t, repo.DeleteRefresh(ctx, "new"))
	require.NoError(t, repo.DeleteRefresh(ctx, "new"))
	assert.Equal(t, 0, repo.Len())
}

func TestSessionRepo_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	repo := NewSessionRepo()
	repo.now = func() time.Time { return now }

	require.NoError(t, repo.SaveSession(ctx, "sid", &domain.Identity{ID: "u", Role: domain.RoleUser}, time.Minute))

	got, err := repo.GetSession(ctx, "sid")
	require.NoError(t, err)
	assert.Equal(t, "u", got.ID)

	now = now.Add(time.Minute)
	_, err = repo.GetSession(ctx, "sid")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSessionRepo_PurgeExpired(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	repo := NewSessionRepo()
	repo.now = func() time.Time { return now }

	id := &domain.Identity{ID: "u", Role: domain.RoleUser}
	require.NoError(t, repo.SaveSession(ctx, "short-1", id, time.Minute))
	require.NoError(t, repo.SaveSession(ctx, "short-2", id, time.Minute))
	require.NoError(t, repo.SaveSession(ctx, "long", id, time.Hour))

	now = now.Add(2 * time.Minute)
	n, err := repo.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	assert.Len(t, repo.sessions, 1, "never-read sessions are dropped")

	_, err = repo.GetSession(ctx, "long")
	assert.NoError(t, err)
}

func TestRefreshRepo_PurgeExpired(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	repo := NewRefreshRepo()
	repo.now = func() time.Time { return now }

	require.NoError(t, repo.SaveRefresh(ctx, &domain.RefreshRecord{TokenHash: "stale", UserID: "u", ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, repo.SaveRefresh(ctx, &domain.RefreshRecord{TokenHash: "fresh", UserID: "u", ExpiresAt: now.Add(48 * time.Hour)}))

	now = now.Add(24 * time.Hour)
	n, err := repo.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assert.Equal(t, 1, repo.Len())
	_, err = repo.FindRefresh(ctx, "fresh")
	assert.NoError(t, err)
}
