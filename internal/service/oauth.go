// 文件路径: internal/service/oauth.go
// 模块说明: 第三方登录。state 存入缓存防止 CSRF，回调时按邮箱匹配用户，不存在则自动开户。
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cliqshop/shop/internal/auth/oauth"
	"github.com/cliqshop/shop/internal/cache"
	"github.com/cliqshop/shop/internal/notifier"
	"github.com/cliqshop/shop/internal/repository"
	"github.com/cliqshop/shop/internal/security"
	"github.com/cliqshop/shop/internal/support/hash"
)

const oauthStateTTL = 10 * time.Minute

// OAuthService drives the authorization-code flow for configured providers.
type OAuthService interface {
	AuthURL(ctx context.Context, provider string) (string, error)
	Callback(ctx context.Context, provider, state, code string, meta ClientMeta) (*LoginResult, error)
}

// OAuthDeps 汇总第三方登录依赖。
type OAuthDeps struct {
	Providers []oauth.Provider
	Users     repository.UserRepository
	Hasher    hash.Hasher
	Auth      AuthService
	Cache     cache.Store
	Audit     security.Recorder
	Notifier  notifier.Service
}

type oauthService struct {
	providers map[string]oauth.Provider
	users     repository.UserRepository
	hasher    hash.Hasher
	auth      AuthService
	states    cache.Store
	audit     security.Recorder
	notifier  notifier.Service
}

// NewOAuthService 构建第三方登录服务。
func NewOAuthService(deps OAuthDeps) OAuthService {
	providers := make(map[string]oauth.Provider, len(deps.Providers))
	for _, p := range deps.Providers {
		if p != nil {
			providers[p.Name()] = p
		}
	}
	var states cache.Store
	if deps.Cache != nil {
		states = deps.Cache.Namespace("oauth").Namespace("state")
	}
	return &oauthService{
		providers: providers,
		users:     deps.Users,
		hasher:    deps.Hasher,
		auth:      deps.Auth,
		states:    states,
		audit:     deps.Audit,
		notifier:  deps.Notifier,
	}
}

func (s *oauthService) provider(name string) (oauth.Provider, error) {
	p, ok := s.providers[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: oauth provider %q / 未启用的第三方登录", ErrNotConfigured, name)
	}
	return p, nil
}

func (s *oauthService) AuthURL(ctx context.Context, providerName string) (string, error) {
	p, err := s.provider(providerName)
	if err != nil {
		return "", err
	}
	if s.states == nil {
		return "", fmt.Errorf("oauth %w", errIncomplete)
	}
	state := uuid.NewString()
	if err := s.states.SetString(ctx, state, p.Name(), oauthStateTTL); err != nil {
		return "", err
	}
	return p.AuthCodeURL(state), nil
}

func (s *oauthService) Callback(ctx context.Context, providerName, state, code string, meta ClientMeta) (*LoginResult, error) {
	p, err := s.provider(providerName)
	if err != nil {
		return nil, err
	}
	if s.states == nil || s.users == nil || s.auth == nil || s.hasher == nil {
		return nil, fmt.Errorf("oauth %w", errIncomplete)
	}
	state = strings.TrimSpace(state)
	if state == "" || strings.TrimSpace(code) == "" {
		return nil, invalidf("state and code are required / 缺少 state 或 code")
	}
	owner, err := s.states.GetString(ctx, state)
	if err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	_ = s.states.Delete(ctx, state)
	if owner != p.Name() {
		return nil, ErrUnauthorized
	}

	profile, err := p.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	user, err := s.users.FindByEmail(ctx, profile.Email)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrNotFound):
		user, err = s.provision(ctx, profile, meta)
		if err != nil {
			return nil, err
		}
	default:
		return nil, err
	}
	if !user.Enabled {
		return nil, ErrAccountDisabled
	}
	return s.auth.IssueForUser(ctx, user.ID, meta)
}

// provision creates an account whose username is the email and whose password is random.
func (s *oauthService) provision(ctx context.Context, profile *oauth.Profile, meta ClientMeta) (*repository.User, error) {
	password, err := hash.RandomSecret(24)
	if err != nil {
		return nil, err
	}
	user, err := createUser(ctx, s.users, s.hasher, newUserInput{
		Username: profile.Email,
		Name:     profile.Name,
		Email:    profile.Email,
		Password: password,
		Role:     repository.RoleUser,
		Enabled:  true,
	})
	if err != nil {
		return nil, err
	}
	if s.audit != nil {
		s.audit.Record(ctx, security.Event{
			Kind:      security.EventOAuthProvision,
			ActorID:   user.Email,
			IP:        meta.IP,
			UserAgent: meta.UserAgent,
			Metadata:  map[string]any{"user_id": user.ID, "provider": profile.Provider},
		})
	}
	if s.notifier != nil {
		_ = s.notifier.SendEmail(ctx, notifier.EmailRequest{
			To:        user.Email,
			Subject:   "Welcome to CliQShop",
			Template:  notifier.TemplateWelcome,
			Variables: map[string]any{"name": user.Name, "username": user.Username, "provider": profile.Provider},
		})
	}
	return user, nil
}
