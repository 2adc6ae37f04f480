// 文件路径: internal/service/user.go
// 模块说明: 当前用户的资料读取、资料修改与密码修改。
package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/cliqshop/shop/internal/repository"
	"github.com/cliqshop/shop/internal/security"
	"github.com/cliqshop/shop/internal/support/hash"
)

// ChangePasswordInput 描述修改密码的输入。
type ChangePasswordInput struct {
	OldPassword string
	NewPassword string
}

// ProfileInput lists editable profile fields. Nil fields are left unchanged.
type ProfileInput struct {
	Name  *string
	Phone *string
}

// UserService 处理用户自助资料接口。
type UserService interface {
	Profile(ctx context.Context, userID int64) (*repository.User, error)
	UpdateProfile(ctx context.Context, userID int64, input ProfileInput) (*repository.User, error)
	ChangePassword(ctx context.Context, userID int64, input ChangePasswordInput) error
}

// NewUserService 组装用户服务依赖。
func NewUserService(users repository.UserRepository, tokens repository.TokenRepository, hasher hash.Hasher, audit security.Recorder) UserService {
	return &repoBackedUserService{users: users, tokens: tokens, hasher: hasher, audit: audit}
}

type repoBackedUserService struct {
	users  repository.UserRepository
	tokens repository.TokenRepository
	hasher hash.Hasher
	audit  security.Recorder
}

func (s *repoBackedUserService) Profile(ctx context.Context, userID int64) (*repository.User, error) {
	if s == nil || s.users == nil {
		return nil, fmt.Errorf("user %w", errIncomplete)
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	return user, nil
}

func (s *repoBackedUserService) UpdateProfile(ctx context.Context, userID int64, input ProfileInput) (*repository.User, error) {
	user, err := s.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, invalidf("name is required / 姓名不能为空")
		}
		user.Name = name
	}
	if input.Phone != nil {
		phone, err := normalizePhone(*input.Phone)
		if err != nil {
			return nil, err
		}
		if err := ensureUnique(ctx, s.users, user.ID, "", "", phone); err != nil {
			return nil, err
		}
		user.Phone = phone
	}
	if err := s.users.Save(ctx, user); err != nil {
		return nil, mapRepoErr(err)
	}
	return user, nil
}

// ChangePassword 校验旧密码并更新为新密码，成功后吊销全部刷新令牌。
func (s *repoBackedUserService) ChangePassword(ctx context.Context, userID int64, input ChangePasswordInput) error {
	if s == nil || s.hasher == nil {
		return fmt.Errorf("password hasher not configured / 密码哈希器未配置")
	}
	if input.OldPassword == "" {
		return ErrInvalidPassword
	}
	if err := validatePassword(input.NewPassword); err != nil {
		return err
	}

	user, err := s.Profile(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.hasher.Compare(user.Password, input.OldPassword); err != nil {
		return ErrInvalidCredentials
	}
	hashed, err := s.hasher.Hash(input.NewPassword)
	if err != nil {
		return fmt.Errorf("password hash failed / 密码哈希失败: %w", err)
	}
	user.Password = hashed
	if err := s.users.Save(ctx, user); err != nil {
		return mapRepoErr(err)
	}
	if s.tokens != nil {
		if err := s.tokens.RevokeByUser(ctx, user.ID); err != nil {
			return err
		}
	}
	if s.audit != nil {
		s.audit.Record(ctx, security.Event{Kind: security.EventPasswordChange, ActorID: user.Email, Metadata: map[string]any{"user_id": user.ID}})
	}
	return nil
}
