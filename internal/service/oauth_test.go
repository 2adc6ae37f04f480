package service

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cliqshop/shop/internal/auth/oauth"
	"github.com/cliqshop/shop/internal/cache"
	"github.com/cliqshop/shop/internal/notifier"
	"github.com/cliqshop/shop/internal/security"
	"github.com/cliqshop/shop/internal/support/hash"
)

type fakeProvider struct {
	name     string
	exchange func(ctx context.Context, code string) (*oauth.Profile, error)
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) AuthCodeURL(state string) string {
	return "https://idp.example/" + p.name + "/authorize?state=" + url.QueryEscape(state)
}

func (p *fakeProvider) Exchange(ctx context.Context, code string) (*oauth.Profile, error) {
	return p.exchange(ctx, code)
}

func profileFor(provider, email, name string) func(context.Context, string) (*oauth.Profile, error) {
	return func(context.Context, string) (*oauth.Profile, error) {
		return &oauth.Profile{Provider: provider, Subject: "sub-" + email, Email: email, EmailVerified: true, Name: name}, nil
	}
}

type oauthFixture struct {
	*authFixture
	oauth  OAuthService
	google *fakeProvider
	github *fakeProvider
	audit  *recordingAudit
	hasher hash.Hasher
}

func newOAuthFixture(t *testing.T) *oauthFixture {
	t.Helper()
	f := newAuthFixture(t)
	hasher, err := hash.NewBcryptHasher(4)
	require.NoError(t, err)
	of := &oauthFixture{
		authFixture: f,
		google:      &fakeProvider{name: "google", exchange: profileFor("google", "zoe@example.com", "Zoe")},
		github:      &fakeProvider{name: "github", exchange: profileFor("github", "zoe@example.com", "Zoe")},
		audit:       &recordingAudit{},
		hasher:      hasher,
	}
	of.oauth = NewOAuthService(OAuthDeps{
		Providers: []oauth.Provider{of.google, of.github, nil},
		Users:     f.store.Users(),
		Hasher:    hasher,
		Auth:      f.auth,
		Cache:     cache.NewMemoryStore(cache.Options{}),
		Audit:     of.audit,
		Notifier:  f.mail,
	})
	return of
}

func (f *oauthFixture) state(t *testing.T, provider string) string {
	t.Helper()
	raw, err := f.oauth.AuthURL(context.Background(), provider)
	require.NoError(t, err)
	u, err := url.Parse(raw)
	require.NoError(t, err)
	state := u.Query().Get("state")
	require.NotEmpty(t, state)
	return state
}

func TestOAuthCallbackProvisionsNewAccount(t *testing.T) {
	f := newOAuthFixture(t)
	ctx := context.Background()

	result, err := f.oauth.Callback(ctx, "Google", f.state(t, "google"), "code-1", ClientMeta{IP: "10.0.0.9"})
	require.NoError(t, err)
	require.NotEmpty(t, result.Token)
	require.NotEmpty(t, result.RefreshToken)

	user, err := f.store.Users().FindByEmail(ctx, "zoe@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, result.UserID)
	assert.Equal(t, "zoe@example.com", user.Username)
	assert.Equal(t, "Zoe", user.Name)
	assert.True(t, user.Enabled)
	require.NotEmpty(t, user.Password)
	assert.Error(t, f.hasher.Compare(user.Password, ""), "provisioned accounts get a random password")

	assert.Equal(t, []string{security.EventOAuthProvision}, f.audit.kinds())
	require.Len(t, f.mail.sent, 1)
	assert.Equal(t, notifier.TemplateWelcome, f.mail.sent[0].Template)

	again, err := f.oauth.Callback(ctx, "google", f.state(t, "google"), "code-2", ClientMeta{})
	require.NoError(t, err)
	assert.Equal(t, user.ID, again.UserID)
	assert.Len(t, f.audit.kinds(), 1, "second sign-in reuses the account")
}

func TestOAuthCallbackFindsExistingUserByEmail(t *testing.T) {
	f := newOAuthFixture(t)
	ctx := context.Background()
	nina := f.register(t)
	f.google.exchange = profileFor("google", "nina@example.com", "Nina G")

	result, err := f.oauth.Callback(ctx, "google", f.state(t, "google"), "code", ClientMeta{})
	require.NoError(t, err)
	assert.Equal(t, nina.ID, result.UserID)
	assert.Empty(t, f.audit.kinds())

	stored, err := f.store.Users().FindByID(ctx, nina.ID)
	require.NoError(t, err)
	assert.Equal(t, "nina", stored.Username)
	assert.Equal(t, nina.Password, stored.Password)
}

func TestOAuthCallbackRejectsDisabledAccount(t *testing.T) {
	f := newOAuthFixture(t)
	ctx := context.Background()
	nina := f.register(t)
	nina.Enabled = false
	require.NoError(t, f.store.Users().Save(ctx, nina))
	f.google.exchange = profileFor("google", "nina@example.com", "Nina")

	_, err := f.oauth.Callback(ctx, "google", f.state(t, "google"), "code", ClientMeta{})
	require.ErrorIs(t, err, ErrAccountDisabled)
}

func TestOAuthStateIsSingleUse(t *testing.T) {
	f := newOAuthFixture(t)
	ctx := context.Background()

	t.Run("replayed state", func(t *testing.T) {
		state := f.state(t, "google")
		_, err := f.oauth.Callback(ctx, "google", state, "code", ClientMeta{})
		require.NoError(t, err)
		_, err = f.oauth.Callback(ctx, "google", state, "code", ClientMeta{})
		require.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("state issued for another provider", func(t *testing.T) {
		state := f.state(t, "github")
		_, err := f.oauth.Callback(ctx, "google", state, "code", ClientMeta{})
		require.ErrorIs(t, err, ErrUnauthorized)
		_, err = f.oauth.Callback(ctx, "github", state, "code", ClientMeta{})
		require.ErrorIs(t, err, ErrUnauthorized, "a rejected state is still consumed")
	})

	t.Run("unknown state", func(t *testing.T) {
		_, err := f.oauth.Callback(ctx, "google", "never-issued", "code", ClientMeta{})
		require.ErrorIs(t, err, ErrUnauthorized)
	})
}

func TestOAuthCallbackFailures(t *testing.T) {
	f := newOAuthFixture(t)
	ctx := context.Background()

	_, err := f.oauth.AuthURL(ctx, "facebook")
	require.ErrorIs(t, err, ErrNotConfigured)
	_, err = f.oauth.Callback(ctx, "facebook", "s", "c", ClientMeta{})
	require.ErrorIs(t, err, ErrNotConfigured)

	_, err = f.oauth.Callback(ctx, "google", f.state(t, "google"), " ", ClientMeta{})
	require.ErrorIs(t, err, ErrInvalidArgument)

	f.google.exchange = func(context.Context, string) (*oauth.Profile, error) {
		return nil, oauth.ErrEmailMissing
	}
	_, err = f.oauth.Callback(ctx, "google", f.state(t, "google"), "code", ClientMeta{})
	require.ErrorIs(t, err, ErrUnauthorized)

	f.google.exchange = func(context.Context, string) (*oauth.Profile, error) {
		return nil, errors.New("token endpoint unreachable")
	}
	_, err = f.oauth.Callback(ctx, "google", f.state(t, "google"), "code", ClientMeta{})
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.store.Users().FindByEmail(ctx, "zoe@example.com")
	require.Error(t, err, "failed callbacks never provision")
}
