// 文件路径: internal/auth/oauth/google.go
// 模块说明: Google OAuth2 授权码流程，换取令牌后读取 userinfo 中的邮箱。
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

// ErrEmailMissing is returned when the provider does not disclose a verified email.
var ErrEmailMissing = errors.New("oauth: provider returned no email / 第三方账号未提供邮箱")

// Profile is the identity returned by a provider.
type Profile struct {
	Provider      string
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
}

// Provider 抽象一个 OAuth2 身份提供方。
type Provider interface {
	Name() string
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*Profile, error)
}

// GoogleOptions 配置 Google 登录。
type GoogleOptions struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	// Endpoint and UserInfoURL override Google's URLs in tests.
	Endpoint    *oauth2.Endpoint
	UserInfoURL string
}

// GoogleProvider implements Provider for Google accounts.
type GoogleProvider struct {
	cfg         *oauth2.Config
	userInfoURL string
}

func NewGoogleProvider(opts GoogleOptions) (*GoogleProvider, error) {
	if strings.TrimSpace(opts.ClientID) == "" || strings.TrimSpace(opts.ClientSecret) == "" {
		return nil, fmt.Errorf("google oauth client id and secret are required / 缺少 Google OAuth 凭据")
	}
	if strings.TrimSpace(opts.RedirectURL) == "" {
		return nil, fmt.Errorf("google oauth redirect url is required / 缺少 Google OAuth 回调地址")
	}
	scopes := opts.Scopes
	if len(scopes) == 0 {
		scopes = []string{"openid", "email", "profile"}
	}
	endpoint := endpoints.Google
	if opts.Endpoint != nil {
		endpoint = *opts.Endpoint
	}
	userInfo := opts.UserInfoURL
	if userInfo == "" {
		userInfo = googleUserInfoURL
	}
	return &GoogleProvider{
		cfg: &oauth2.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			RedirectURL:  opts.RedirectURL,
			Scopes:       scopes,
			Endpoint:     endpoint,
		},
		userInfoURL: userInfo,
	}, nil
}

func (p *GoogleProvider) Name() string { return "google" }

func (p *GoogleProvider) AuthCodeURL(state string) string {
	return p.cfg.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*Profile, error) {
	tok, err := p.cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.cfg.Client(ctx, tok).Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch userinfo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("fetch userinfo: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var info struct {
		Sub           string `json:"sub"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode userinfo: %w", err)
	}
	email := strings.ToLower(strings.TrimSpace(info.Email))
	if email == "" || !info.EmailVerified {
		return nil, ErrEmailMissing
	}
	return &Profile{
		Provider:      p.Name(),
		Subject:       info.Sub,
		Email:         email,
		EmailVerified: info.EmailVerified,
		Name:          strings.TrimSpace(info.Name),
	}, nil
}
