package service

import (
	"context"
	"errors"
	"net/mail"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cliqshop/shop/internal/repository"
	"github.com/cliqshop/shop/internal/support/hash"
)

const minPasswordLength = 8

var (
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9._@+-]{3,100}$`)
	phonePattern    = regexp.MustCompile(`^\+?[0-9 ()-]{6,20}$`)
)

// newUserInput is shared by self registration, admin creation and OAuth provisioning.
type newUserInput struct {
	Username string
	Name     string
	Email    string
	Phone    string
	Password string
	Role     string
	Enabled  bool
}

func normalizeEmail(raw string) (string, error) {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	if trimmed == "" {
		return "", invalidf("email is required / 邮箱不能为空")
	}
	addr, err := mail.ParseAddress(trimmed)
	if err != nil || addr.Address != trimmed {
		return "", invalidf("invalid email / 邮箱格式错误")
	}
	return trimmed, nil
}

func normalizePhone(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", nil
	}
	if !phonePattern.MatchString(trimmed) {
		return "", invalidf("invalid phone / 手机号格式错误")
	}
	return trimmed, nil
}

func validatePassword(password string) error {
	if utf8.RuneCountInString(password) < minPasswordLength || len(password) > hash.MaxPasswordBytes {
		return ErrInvalidPassword
	}
	return nil
}

func normalizeRole(role string) (string, error) {
	switch strings.ToUpper(strings.TrimSpace(role)) {
	case "", repository.RoleUser:
		return repository.RoleUser, nil
	case repository.RoleAdmin:
		return repository.RoleAdmin, nil
	default:
		return "", invalidf("unknown role %q / 未知角色", role)
	}
}

// createUser validates input, checks uniqueness and persists a new account.
func createUser(ctx context.Context, users repository.UserRepository, hasher hash.Hasher, input newUserInput) (*repository.User, error) {
	username := strings.TrimSpace(input.Username)
	if !usernamePattern.MatchString(username) {
		return nil, invalidf("username must be 3-100 characters of letters, digits or ._@+- / 用户名格式错误")
	}
	email, err := normalizeEmail(input.Email)
	if err != nil {
		return nil, err
	}
	phone, err := normalizePhone(input.Phone)
	if err != nil {
		return nil, err
	}
	if err := validatePassword(input.Password); err != nil {
		return nil, err
	}
	role, err := normalizeRole(input.Role)
	if err != nil {
		return nil, err
	}

	if err := ensureUnique(ctx, users, 0, username, email, phone); err != nil {
		return nil, err
	}

	hashed, err := hasher.Hash(input.Password)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		name = username
	}
	now := time.Now().Unix()
	created, err := users.Create(ctx, &repository.User{
		Username:  username,
		Name:      name,
		Email:     email,
		Phone:     phone,
		Password:  hashed,
		Role:      role,
		Enabled:   input.Enabled,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrConflict
		}
		return nil, err
	}
	return created, nil
}

// ensureUnique reports which identifier is already held by a user other than selfID.
func ensureUnique(ctx context.Context, users repository.UserRepository, selfID int64, username, email, phone string) error {
	checks := []struct {
		value string
		find  func(context.Context, string) (*repository.User, error)
		err   error
	}{
		{username, users.FindByUsername, ErrUsernameExists},
		{email, users.FindByEmail, ErrEmailExists},
		{phone, users.FindByPhone, ErrPhoneExists},
	}
	for _, c := range checks {
		if c.value == "" {
			continue
		}
		existing, err := c.find(ctx, c.value)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				continue
			}
			return err
		}
		if existing.ID != selfID {
			return c.err
		}
	}
	return nil
}
