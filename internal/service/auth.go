// 文件路径: internal/service/auth.go
// 模块说明: 注册、登录、刷新与注销。登录按 IP+账号限流，连续密码错误计入缓存，超限后临时锁定。
package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cliqshop/shop/internal/auth/token"
	"github.com/cliqshop/shop/internal/cache"
	"github.com/cliqshop/shop/internal/notifier"
	"github.com/cliqshop/shop/internal/repository"
	"github.com/cliqshop/shop/internal/security"
	"github.com/cliqshop/shop/internal/support/hash"
)

// AuthService coordinates account registration and session issuance.
type AuthService interface {
	Register(ctx context.Context, input RegisterInput) (*repository.User, error)
	Login(ctx context.Context, input LoginInput) (*LoginResult, error)
	Verify(ctx context.Context, rawToken string) (*Claims, error)
	Refresh(ctx context.Context, refreshToken string, meta ClientMeta) (*LoginResult, error)
	Logout(ctx context.Context, refreshToken string) error
	IssueForUser(ctx context.Context, userID int64, meta ClientMeta) (*LoginResult, error)
}

// ClientMeta carries request details recorded with sessions and login logs.
type ClientMeta struct {
	IP        string
	UserAgent string
}

// RegisterInput is the self-service sign-up payload.
type RegisterInput struct {
	Username string
	Name     string
	Email    string
	Phone    string
	Password string
	ClientMeta
}

// LoginInput represents the payload required for user login. Identifier is an email or username.
type LoginInput struct {
	Identifier string
	Password   string
	ClientMeta
}

// LoginResult returns issued token information and user snapshot.
type LoginResult struct {
	Token            string
	TokenType        string
	ExpiresAt        time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
	UserID           int64
	Username         string
	Name             string
	Email            string
	Role             string
}

// Claims describe the authenticated user extracted from a bearer token.
type Claims struct {
	UserID   int64
	Username string
	Email    string
	Role     string
}

// IsAdmin reports whether the claims carry the ADMIN role.
func (c *Claims) IsAdmin() bool {
	return c != nil && c.Role == repository.RoleAdmin
}

// AuthDeps 汇总认证服务依赖。
type AuthDeps struct {
	Users      repository.UserRepository
	Settings   repository.SettingRepository
	LoginLogs  repository.LoginLogRepository
	Tokens     repository.TokenRepository
	Hasher     hash.Hasher
	TokenMgr   *token.Manager
	Rate       *security.RateLimiter
	Audit      security.Recorder
	Cache      cache.Store
	Notifier   notifier.Service
	RefreshTTL time.Duration
}

type authService struct {
	users         repository.UserRepository
	settings      repository.SettingRepository
	loginLogs     repository.LoginLogRepository
	tokens        repository.TokenRepository
	hasher        hash.Hasher
	tokenMgr      *token.Manager
	rate          *security.RateLimiter
	audit         security.Recorder
	loginFailures cache.Store
	notifier      notifier.Service
	refreshTTL    time.Duration
}

const (
	loginLimit        = 20
	loginWindow       = time.Minute
	registerLimit     = 10
	registerWindow    = time.Hour
	defaultRefreshTTL = 30 * 24 * time.Hour
)

// NewAuthService wires repository + infrastructure helpers.
func NewAuthService(deps AuthDeps) AuthService {
	var loginFailures cache.Store
	if deps.Cache != nil {
		loginFailures = deps.Cache.Namespace("auth").Namespace("password_fail")
	}
	ttl := deps.RefreshTTL
	if ttl <= 0 {
		ttl = defaultRefreshTTL
	}
	return &authService{
		users:         deps.Users,
		settings:      deps.Settings,
		loginLogs:     deps.LoginLogs,
		tokens:        deps.Tokens,
		hasher:        deps.Hasher,
		tokenMgr:      deps.TokenMgr,
		rate:          deps.Rate,
		audit:         deps.Audit,
		loginFailures: loginFailures,
		notifier:      deps.Notifier,
		refreshTTL:    ttl,
	}
}

func (s *authService) Register(ctx context.Context, input RegisterInput) (*repository.User, error) {
	if s == nil || s.users == nil || s.hasher == nil {
		return nil, fmt.Errorf("auth %w", errIncomplete)
	}
	if s.rate != nil && input.IP != "" {
		res, err := s.rate.Allow(ctx, "register:"+input.IP, registerLimit, registerWindow)
		if err != nil {
			return nil, err
		}
		if !res.Allowed {
			return nil, ErrRateLimited
		}
	}
	user, err := createUser(ctx, s.users, s.hasher, newUserInput{
		Username: input.Username,
		Name:     input.Name,
		Email:    input.Email,
		Phone:    input.Phone,
		Password: input.Password,
		Role:     repository.RoleUser,
		Enabled:  true,
	})
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, security.EventRegister, user.Email, input.ClientMeta, map[string]any{"user_id": user.ID})
	s.sendWelcome(ctx, user)
	return user, nil
}

func (s *authService) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	if s == nil || s.users == nil || s.hasher == nil || s.tokenMgr == nil {
		return nil, fmt.Errorf("auth %w", errIncomplete)
	}
	identifier := strings.TrimSpace(input.Identifier)
	if identifier == "" || input.Password == "" {
		return nil, ErrInvalidCredentials
	}
	if err := s.ensurePasswordLimit(ctx, identifier); err != nil {
		s.recordLoginLog(ctx, nil, identifier, false, "password_limit", input.ClientMeta)
		return nil, err
	}
	if s.rate != nil {
		key := "login:" + strings.ToLower(identifier) + ":" + input.IP
		res, err := s.rate.Allow(ctx, key, loginLimit, loginWindow)
		if err != nil {
			return nil, err
		}
		if !res.Allowed {
			s.recordLoginLog(ctx, nil, identifier, false, "rate_limited", input.ClientMeta)
			return nil, ErrRateLimited
		}
	}

	user, err := s.findUserByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.bumpLoginFailure(ctx, identifier)
			s.recordLoginLog(ctx, nil, identifier, false, "user_not_found", input.ClientMeta)
			s.recordAudit(ctx, security.EventLoginFailure, identifier, input.ClientMeta, map[string]any{"reason": "user_not_found"})
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := s.hasher.Compare(user.Password, input.Password); err != nil {
		s.bumpLoginFailure(ctx, identifier)
		s.recordLoginLog(ctx, user, identifier, false, "password_mismatch", input.ClientMeta)
		s.recordAudit(ctx, security.EventLoginFailure, identifier, input.ClientMeta, map[string]any{"reason": "password_mismatch", "user_id": user.ID})
		return nil, ErrInvalidCredentials
	}
	if !user.Enabled {
		s.recordLoginLog(ctx, user, identifier, false, "disabled", input.ClientMeta)
		return nil, ErrAccountDisabled
	}
	s.upgradePasswordHash(ctx, user, input.Password)

	result, err := s.issueTokens(ctx, user, input.ClientMeta)
	if err != nil {
		return nil, err
	}
	if err := s.users.TouchLogin(ctx, user.ID, time.Now().Unix()); err != nil {
		s.recordAudit(ctx, "auth.login.persist_failed", identifier, input.ClientMeta, map[string]any{"error": err.Error(), "user_id": user.ID})
	}
	s.clearLoginFailure(ctx, identifier)
	s.recordLoginLog(ctx, user, identifier, true, "", input.ClientMeta)
	s.recordAudit(ctx, security.EventLoginSuccess, identifier, input.ClientMeta, map[string]any{"user_id": user.ID})
	return result, nil
}

// upgradePasswordHash re-hashes the password after a successful login when the
// configured bcrypt cost changed. Failures are audited and never block the login.
func (s *authService) upgradePasswordHash(ctx context.Context, user *repository.User, password string) {
	if !s.hasher.NeedsRehash(user.Password) {
		return
	}
	hashed, err := s.hasher.Hash(password)
	if err == nil {
		user.Password = hashed
		err = s.users.Save(ctx, user)
	}
	if err != nil {
		s.recordAudit(ctx, "auth.login.rehash_failed", user.Username, ClientMeta{}, map[string]any{"error": err.Error(), "user_id": user.ID})
	}
}

func (s *authService) findUserByIdentifier(ctx context.Context, identifier string) (*repository.User, error) {
	if strings.Contains(identifier, "@") {
		user, err := s.users.FindByEmail(ctx, strings.ToLower(identifier))
		if err == nil || !errors.Is(err, repository.ErrNotFound) {
			return user, err
		}
	}
	return s.users.FindByUsername(ctx, identifier)
}

func (s *authService) Verify(ctx context.Context, rawToken string) (*Claims, error) {
	if s == nil || s.tokenMgr == nil || s.users == nil {
		return nil, fmt.Errorf("auth %w", errIncomplete)
	}
	tokenStr := strings.TrimSpace(rawToken)
	if tokenStr == "" {
		return nil, ErrUnauthorized
	}
	parsed, err := s.tokenMgr.Parse(tokenStr)
	if err != nil || parsed.TokenType != token.TypeAccess {
		return nil, ErrUnauthorized
	}
	userID, err := strconv.ParseInt(parsed.Subject, 10, 64)
	if err != nil {
		return nil, ErrUnauthorized
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	if !user.Enabled {
		return nil, ErrAccountDisabled
	}
	return &Claims{UserID: user.ID, Username: user.Username, Email: user.Email, Role: user.Role}, nil
}

func (s *authService) Refresh(ctx context.Context, refreshToken string, meta ClientMeta) (*LoginResult, error) {
	if s == nil || s.tokens == nil || s.users == nil {
		return nil, fmt.Errorf("refresh not supported / 不支持刷新令牌")
	}
	trimmed := strings.TrimSpace(refreshToken)
	if trimmed == "" {
		return nil, ErrInvalidRefreshToken
	}
	record, err := s.tokens.FindByToken(ctx, trimmed)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, err
	}
	if record.Revoked || record.ExpiresAt <= time.Now().Unix() {
		return nil, ErrInvalidRefreshToken
	}
	user, err := s.users.FindByID(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			_ = s.tokens.Revoke(ctx, trimmed)
			return nil, ErrInvalidRefreshToken
		}
		return nil, err
	}
	if !user.Enabled {
		return nil, ErrAccountDisabled
	}
	// Rotate: the presented token is single use.
	if err := s.tokens.Revoke(ctx, trimmed); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if meta.IP == "" {
		meta = ClientMeta{IP: record.IP, UserAgent: record.UserAgent}
	}
	return s.issueTokens(ctx, user, meta)
}

func (s *authService) Logout(ctx context.Context, refreshToken string) error {
	if s == nil || s.tokens == nil {
		return nil
	}
	trimmed := strings.TrimSpace(refreshToken)
	if trimmed == "" {
		return nil
	}
	if err := s.tokens.Revoke(ctx, trimmed); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	return nil
}

func (s *authService) IssueForUser(ctx context.Context, userID int64, meta ClientMeta) (*LoginResult, error) {
	if s == nil || s.users == nil || s.tokenMgr == nil {
		return nil, fmt.Errorf("auth %w", errIncomplete)
	}
	if userID <= 0 {
		return nil, ErrUnauthorized
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	if !user.Enabled {
		return nil, ErrAccountDisabled
	}
	result, err := s.issueTokens(ctx, user, meta)
	if err != nil {
		return nil, err
	}
	_ = s.users.TouchLogin(ctx, user.ID, time.Now().Unix())
	s.recordLoginLog(ctx, user, user.Email, true, "issued", meta)
	return result, nil
}

func (s *authService) issueTokens(ctx context.Context, user *repository.User, meta ClientMeta) (*LoginResult, error) {
	tokenStr, claims, err := s.tokenMgr.Issue(token.IssueInput{
		Subject:   strconv.FormatInt(user.ID, 10),
		Username:  user.Username,
		Email:     user.Email,
		Role:      user.Role,
		TokenType: token.TypeAccess,
	})
	if err != nil {
		return nil, err
	}
	result := &LoginResult{
		Token:     tokenStr,
		TokenType: "Bearer",
		ExpiresAt: claims.ExpiresAt.Time,
		UserID:    user.ID,
		Username:  user.Username,
		Name:      user.Name,
		Email:     user.Email,
		Role:      user.Role,
	}
	if s.tokens != nil {
		expires := time.Now().UTC().Add(s.refreshTTL)
		record := &repository.RefreshToken{
			UserID:    user.ID,
			Token:     uuid.NewString(),
			IP:        strings.TrimSpace(meta.IP),
			UserAgent: strings.TrimSpace(meta.UserAgent),
			ExpiresAt: expires.Unix(),
		}
		if _, err := s.tokens.Create(ctx, record); err != nil {
			return nil, fmt.Errorf("store refresh token / 刷新令牌写入失败: %w", err)
		}
		result.RefreshToken = record.Token
		result.RefreshExpiresAt = expires
	}
	return result, nil
}

func (s *authService) ensurePasswordLimit(ctx context.Context, identifier string) error {
	if s.loginFailures == nil {
		return nil
	}
	if !s.boolSetting(ctx, "password_limit_enable", true) {
		return nil
	}
	maxAttempts := s.intSetting(ctx, "password_limit_count", 5)
	if maxAttempts <= 0 {
		return nil
	}
	if s.loginFailureCount(ctx, identifier) >= maxAttempts {
		expire := s.passwordLimitExpire(ctx)
		return fmt.Errorf("%w: retry after %d minutes / 请在 %d 分钟后重试", ErrRateLimited, expire, expire)
	}
	return nil
}

func (s *authService) passwordLimitExpire(ctx context.Context) int {
	expire := s.intSetting(ctx, "password_limit_expire", 60)
	if expire <= 0 {
		expire = 60
	}
	return expire
}

func (s *authService) loginFailureCount(ctx context.Context, identifier string) int {
	raw, err := s.loginFailures.GetString(ctx, loginFailureKey(identifier))
	if err != nil {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0
	}
	return n
}

func (s *authService) bumpLoginFailure(ctx context.Context, identifier string) {
	if s.loginFailures == nil {
		return
	}
	ttl := time.Duration(s.passwordLimitExpire(ctx)) * time.Minute
	_, _ = s.loginFailures.Increment(ctx, loginFailureKey(identifier), 1, ttl)
}

func (s *authService) clearLoginFailure(ctx context.Context, identifier string) {
	if s.loginFailures == nil {
		return
	}
	_ = s.loginFailures.Delete(ctx, loginFailureKey(identifier))
}

func loginFailureKey(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}

func (s *authService) settingString(ctx context.Context, key string) string {
	if s.settings == nil {
		return ""
	}
	setting, err := s.settings.Get(ctx, key)
	if err != nil || setting == nil {
		return ""
	}
	return strings.TrimSpace(setting.Value)
}

func (s *authService) boolSetting(ctx context.Context, key string, def bool) bool {
	switch strings.ToLower(s.settingString(ctx, key)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}

func (s *authService) intSetting(ctx context.Context, key string, def int) int {
	if n, err := strconv.Atoi(s.settingString(ctx, key)); err == nil {
		return n
	}
	return def
}

func (s *authService) recordLoginLog(ctx context.Context, user *repository.User, identifier string, success bool, reason string, meta ClientMeta) {
	if s.loginLogs == nil {
		return
	}
	entry := &repository.LoginLog{
		Identifier: strings.ToLower(strings.TrimSpace(identifier)),
		IP:         strings.TrimSpace(meta.IP),
		UserAgent:  strings.TrimSpace(meta.UserAgent),
		Success:    success,
		Reason:     reason,
		CreatedAt:  time.Now().Unix(),
	}
	if user != nil && user.ID > 0 {
		entry.UserID = &user.ID
	}
	if err := s.loginLogs.Create(ctx, entry); err != nil {
		s.recordAudit(ctx, "auth.login.log_store_failed", identifier, meta, map[string]any{"error": err.Error()})
	}
}

func (s *authService) recordAudit(ctx context.Context, kind string, identifier string, meta ClientMeta, metadata map[string]any) {
	if s.audit == nil {
		return
	}
	payload := map[string]any{"identifier": identifier}
	for k, v := range metadata {
		payload[k] = v
	}
	s.audit.Record(ctx, security.Event{
		Kind:      kind,
		ActorID:   identifier,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		Metadata:  payload,
	})
}

func (s *authService) sendWelcome(ctx context.Context, user *repository.User) {
	if s.notifier == nil || user == nil {
		return
	}
	_ = s.notifier.SendEmail(ctx, notifier.EmailRequest{
		To:        user.Email,
		Subject:   "Welcome to CliQShop",
		Template:  notifier.TemplateWelcome,
		Variables: map[string]any{"name": user.Name, "username": user.Username},
	})
}
