package service

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cliqshop/shop/internal/security"
	"github.com/cliqshop/shop/internal/support/hash"
)

type recordingAudit struct {
	mu     sync.Mutex
	events []security.Event
}

func (a *recordingAudit) Record(_ context.Context, event security.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event)
}

func (a *recordingAudit) kinds() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.events))
	for _, e := range a.events {
		out = append(out, e.Kind)
	}
	return out
}

func newUserFixture(t *testing.T) (*authFixture, UserService, *recordingAudit) {
	t.Helper()
	f := newAuthFixture(t)
	hasher, err := hash.NewBcryptHasher(4)
	require.NoError(t, err)
	audit := &recordingAudit{}
	return f, NewUserService(f.store.Users(), f.store.Tokens(), hasher, audit), audit
}

func strPtr(v string) *string { return &v }

func TestUpdateProfile(t *testing.T) {
	f, users, _ := newUserFixture(t)
	ctx := context.Background()
	nina := f.register(t)

	other := seedUser(t, f.store, "oscar")
	other.Phone = "+1 555 0100"
	require.NoError(t, f.store.Users().Save(ctx, other))

	t.Run("name and phone are trimmed", func(t *testing.T) {
		updated, err := users.UpdateProfile(ctx, nina.ID, ProfileInput{Name: strPtr("  Nina K "), Phone: strPtr(" +1 555 0199 ")})
		require.NoError(t, err)
		assert.Equal(t, "Nina K", updated.Name)
		assert.Equal(t, "+1 555 0199", updated.Phone)

		stored, err := users.Profile(ctx, nina.ID)
		require.NoError(t, err)
		assert.Equal(t, "Nina K", stored.Name)
		assert.Equal(t, "+1 555 0199", stored.Phone)
	})

	t.Run("nil fields are left alone", func(t *testing.T) {
		updated, err := users.UpdateProfile(ctx, nina.ID, ProfileInput{})
		require.NoError(t, err)
		assert.Equal(t, "Nina K", updated.Name)
		assert.Equal(t, "+1 555 0199", updated.Phone)
	})

	t.Run("keeping your own phone is allowed", func(t *testing.T) {
		_, err := users.UpdateProfile(ctx, nina.ID, ProfileInput{Phone: strPtr("+1 555 0199")})
		require.NoError(t, err)
	})

	t.Run("phone owned by someone else", func(t *testing.T) {
		_, err := users.UpdateProfile(ctx, nina.ID, ProfileInput{Phone: strPtr("+1 555 0100")})
		require.ErrorIs(t, err, ErrPhoneExists)

		stored, err := users.Profile(ctx, nina.ID)
		require.NoError(t, err)
		assert.Equal(t, "+1 555 0199", stored.Phone)
	})

	t.Run("invalid input", func(t *testing.T) {
		_, err := users.UpdateProfile(ctx, nina.ID, ProfileInput{Name: strPtr("   ")})
		require.ErrorIs(t, err, ErrInvalidArgument)
		_, err = users.UpdateProfile(ctx, nina.ID, ProfileInput{Phone: strPtr("call me")})
		require.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := users.UpdateProfile(ctx, 424242, ProfileInput{Name: strPtr("Ghost")})
		require.ErrorIs(t, err, ErrNotFound)
	})
}

func TestChangePassword(t *testing.T) {
	f, users, audit := newUserFixture(t)
	ctx := context.Background()
	nina := f.register(t)

	session, err := f.auth.Login(ctx, LoginInput{Identifier: "nina", Password: "correct-horse"})
	require.NoError(t, err)

	t.Run("rejects bad input before touching the account", func(t *testing.T) {
		err := users.ChangePassword(ctx, nina.ID, ChangePasswordInput{NewPassword: "battery-staple"})
		require.ErrorIs(t, err, ErrInvalidPassword)
		err = users.ChangePassword(ctx, nina.ID, ChangePasswordInput{OldPassword: "correct-horse", NewPassword: "short"})
		require.ErrorIs(t, err, ErrInvalidPassword)
		err = users.ChangePassword(ctx, nina.ID, ChangePasswordInput{OldPassword: "correct-horse", NewPassword: strings.Repeat("a", 73)})
		require.ErrorIs(t, err, ErrInvalidPassword)
		err = users.ChangePassword(ctx, nina.ID, ChangePasswordInput{OldPassword: "wrong-horse", NewPassword: "battery-staple"})
		require.ErrorIs(t, err, ErrInvalidCredentials)

		_, err = f.auth.Refresh(ctx, session.RefreshToken, ClientMeta{})
		require.NoError(t, err, "failed changes keep sessions alive")
		assert.Empty(t, audit.kinds())
	})

	t.Run("new password works and sessions are revoked", func(t *testing.T) {
		current, err := f.auth.Login(ctx, LoginInput{Identifier: "nina", Password: "correct-horse"})
		require.NoError(t, err)

		require.NoError(t, users.ChangePassword(ctx, nina.ID, ChangePasswordInput{OldPassword: "correct-horse", NewPassword: "battery-staple"}))

		_, err = f.auth.Refresh(ctx, current.RefreshToken, ClientMeta{})
		require.ErrorIs(t, err, ErrInvalidRefreshToken)

		_, err = f.auth.Login(ctx, LoginInput{Identifier: "nina", Password: "correct-horse"})
		require.ErrorIs(t, err, ErrInvalidCredentials)
		_, err = f.auth.Login(ctx, LoginInput{Identifier: "nina", Password: "battery-staple"})
		require.NoError(t, err)

		assert.Equal(t, []string{security.EventPasswordChange}, audit.kinds())
	})

	t.Run("unknown user", func(t *testing.T) {
		err := users.ChangePassword(ctx, 424242, ChangePasswordInput{OldPassword: "whatever1", NewPassword: "battery-staple"})
		require.ErrorIs(t, err, ErrNotFound)
	})
}
