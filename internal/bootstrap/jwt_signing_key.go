package bootstrap

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cliqshop/shop/internal/repository"
)

// JWTSigningKeySource tells where the active signing key came from.
type JWTSigningKeySource string

const (
	JWTSigningKeySourceConfig    JWTSigningKeySource = "config"
	JWTSigningKeySourceSettings  JWTSigningKeySource = "settings"
	JWTSigningKeySourceGenerated JWTSigningKeySource = "generated"
)

const (
	defaultJWTSigningKey = "change-me"
	signingKeySetting    = "auth_signing_key"
	signingKeyCategory   = "security"
	signingKeyBytes      = 32
	signingKeyEnvHint    = "set CLIQSHOP_AUTH_SIGNING_KEY"
)

// ResolveJWTSigningKey picks the signing key from config or env first, then the settings
// table, and finally generates one and stores it so restarts keep issued tokens valid.
func ResolveJWTSigningKey(ctx context.Context, settings repository.SettingRepository, configured string, now func() time.Time) (string, JWTSigningKeySource, error) {
	return resolveJWTSigningKey(ctx, settings, configured, now, rand.Reader)
}

func resolveJWTSigningKey(ctx context.Context, settings repository.SettingRepository, configured string, now func() time.Time, random io.Reader) (string, JWTSigningKeySource, error) {
	if key := strings.TrimSpace(configured); key != "" && key != defaultJWTSigningKey {
		return key, JWTSigningKeySourceConfig, nil
	}
	if settings == nil {
		return "", "", fmt.Errorf("resolve jwt signing key: settings store is required for the default key; %s", signingKeyEnvHint)
	}
	if now == nil {
		now = time.Now
	}

	stored, err := storedSigningKey(ctx, settings)
	if err != nil {
		return "", "", fmt.Errorf("read jwt signing key: %w; %s", err, signingKeyEnvHint)
	}
	if stored != "" {
		return stored, JWTSigningKeySourceSettings, nil
	}

	buf := make([]byte, signingKeyBytes)
	if _, err := io.ReadFull(random, buf); err != nil {
		return "", "", fmt.Errorf("generate jwt signing key: %w; %s", err, signingKeyEnvHint)
	}
	generated := hex.EncodeToString(buf)
	err = settings.Upsert(ctx, &repository.Setting{
		Key:       signingKeySetting,
		Value:     generated,
		Category:  signingKeyCategory,
		UpdatedAt: now().Unix(),
	})
	if err != nil {
		return "", "", fmt.Errorf("persist jwt signing key: %w; %s", err, signingKeyEnvHint)
	}
	return generated, JWTSigningKeySourceGenerated, nil
}

func storedSigningKey(ctx context.Context, settings repository.SettingRepository) (string, error) {
	setting, err := settings.Get(ctx, signingKeySetting)
	if errors.Is(err, repository.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(setting.Value), nil
}
