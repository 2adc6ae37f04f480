package bootstrap

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cliqshop/shop/internal/config"
	"github.com/cliqshop/shop/internal/migrations"
	"github.com/cliqshop/shop/internal/repository"
	"github.com/cliqshop/shop/internal/repository/sqlite"
)

type fakeSettings struct {
	get    func(ctx context.Context, key string) (*repository.Setting, error)
	upsert func(ctx context.Context, setting *repository.Setting) error
}

func (f *fakeSettings) Get(ctx context.Context, key string) (*repository.Setting, error) {
	return f.get(ctx, key)
}

func (f *fakeSettings) Upsert(ctx context.Context, setting *repository.Setting) error {
	return f.upsert(ctx, setting)
}

func TestResolveJWTSigningKeyPrefersConfig(t *testing.T) {
	settings := &fakeSettings{get: func(context.Context, string) (*repository.Setting, error) {
		t.Fatal("settings should not be read when a key is configured")
		return nil, nil
	}}
	key, source, err := ResolveJWTSigningKey(context.Background(), settings, "  from-env  ", nil)
	require.NoError(t, err)
	assert.Equal(t, "from-env", key)
	assert.Equal(t, JWTSigningKeySourceConfig, source)
}

func TestResolveJWTSigningKeyUsesStoredValue(t *testing.T) {
	settings := &fakeSettings{get: func(_ context.Context, key string) (*repository.Setting, error) {
		assert.Equal(t, signingKeySetting, key)
		return &repository.Setting{Key: key, Value: "stored-key\n"}, nil
	}}
	key, source, err := ResolveJWTSigningKey(context.Background(), settings, defaultJWTSigningKey, nil)
	require.NoError(t, err)
	assert.Equal(t, "stored-key", key)
	assert.Equal(t, JWTSigningKeySourceSettings, source)
}

func TestResolveJWTSigningKeyGeneratesAndPersists(t *testing.T) {
	var saved *repository.Setting
	settings := &fakeSettings{
		get: func(context.Context, string) (*repository.Setting, error) { return nil, repository.ErrNotFound },
		upsert: func(_ context.Context, setting *repository.Setting) error {
			saved = setting
			return nil
		},
	}
	now := func() time.Time { return time.Unix(1_700_000_000, 0) }
	random := bytes.NewReader(bytes.Repeat([]byte{0xab}, signingKeyBytes))

	key, source, err := resolveJWTSigningKey(context.Background(), settings, "", now, random)
	require.NoError(t, err)
	assert.Equal(t, JWTSigningKeySourceGenerated, source)
	assert.Equal(t, strings.Repeat("ab", signingKeyBytes), key)
	require.NotNil(t, saved)
	assert.Equal(t, signingKeySetting, saved.Key)
	assert.Equal(t, key, saved.Value)
	assert.Equal(t, signingKeyCategory, saved.Category)
	assert.EqualValues(t, 1_700_000_000, saved.UpdatedAt)
}

func TestResolveJWTSigningKeyErrors(t *testing.T) {
	ctx := context.Background()

	_, _, err := ResolveJWTSigningKey(ctx, nil, "", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), signingKeyEnvHint)

	readFail := &fakeSettings{get: func(context.Context, string) (*repository.Setting, error) {
		return nil, errors.New("disk I/O error")
	}}
	_, _, err = ResolveJWTSigningKey(ctx, readFail, "", nil)
	require.ErrorContains(t, err, "disk I/O error")

	writeFail := &fakeSettings{
		get:    func(context.Context, string) (*repository.Setting, error) { return nil, repository.ErrNotFound },
		upsert: func(context.Context, *repository.Setting) error { return errors.New("readonly database") },
	}
	_, _, err = ResolveJWTSigningKey(ctx, writeFail, "", nil)
	require.ErrorContains(t, err, "persist jwt signing key")
}

func TestSigningKeySurvivesRestart(t *testing.T) {
	ctx := context.Background()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "nested", "shop.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	_, err = migrations.Up(ctx, db)
	require.NoError(t, err)
	settings := sqlite.NewStore(db).Settings()

	first, source, err := ResolveJWTSigningKey(ctx, settings, "", nil)
	require.NoError(t, err)
	assert.Equal(t, JWTSigningKeySourceGenerated, source)

	second, source, err := ResolveJWTSigningKey(ctx, settings, "", nil)
	require.NoError(t, err)
	assert.Equal(t, JWTSigningKeySourceSettings, source)
	assert.Equal(t, first, second)
}

func TestOpenSQLiteRejectsEmptyPath(t *testing.T) {
	_, err := OpenSQLite("  ")
	require.Error(t, err)
}

func TestNewHTTPServer(t *testing.T) {
	h := http.NewServeMux()
	srv := NewHTTPServer(config.HTTPConfig{Addr: ":9090"}, h)
	assert.Equal(t, ":9090", srv.Addr)
	assert.Same(t, h, srv.Handler)
	assert.Zero(t, srv.WriteTimeout)
	assert.Equal(t, 10*time.Second, srv.ReadHeaderTimeout)
	assert.Equal(t, 15*time.Second, srv.ReadTimeout)

	srv = NewHTTPServer(config.HTTPConfig{ReadTimeout: 3 * time.Second, IdleTimeout: time.Minute}, h)
	assert.Equal(t, 3*time.Second, srv.ReadHeaderTimeout)
	assert.Equal(t, time.Minute, srv.IdleTimeout)
}
