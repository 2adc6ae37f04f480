// 文件路径: internal/service/admin_user.go
// 模块说明: 管理员维护用户：列表、创建、修改、启停、删除与导出。
package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cliqshop/shop/internal/repository"
	"github.com/cliqshop/shop/internal/security"
	"github.com/cliqshop/shop/internal/support/hash"
)

// AdminUserService 提供管理员专用的用户管理流程。
type AdminUserService interface {
	List(ctx context.Context, filter repository.UserSearchFilter) ([]*repository.User, int64, error)
	Get(ctx context.Context, id int64) (*repository.User, error)
	Create(ctx context.Context, input AdminUserCreateInput) (*repository.User, error)
	Update(ctx context.Context, id int64, input AdminUserUpdateInput) (*repository.User, error)
	ToggleStatus(ctx context.Context, id, actorID int64) (*repository.User, error)
	Delete(ctx context.Context, id, actorID int64) error
	Export(ctx context.Context, filter repository.UserSearchFilter) ([]byte, error)
}

// AdminUserCreateInput 用于创建新用户。Enabled 为空时默认启用。
type AdminUserCreateInput struct {
	Username string
	Name     string
	Email    string
	Phone    string
	Password string
	Role     string
	Enabled  *bool
}

// AdminUserUpdateInput 描述可更新的用户字段。
type AdminUserUpdateInput struct {
	Username *string
	Name     *string
	Email    *string
	Phone    *string
	Role     *string
	Enabled  *bool
	Password *string
}

type adminUserService struct {
	users  repository.UserRepository
	tokens repository.TokenRepository
	hasher hash.Hasher
	audit  security.Recorder
}

// NewAdminUserService 构建管理端用户服务。
func NewAdminUserService(users repository.UserRepository, tokens repository.TokenRepository, hasher hash.Hasher, audit security.Recorder) AdminUserService {
	return &adminUserService{users: users, tokens: tokens, hasher: hasher, audit: audit}
}

func (s *adminUserService) List(ctx context.Context, filter repository.UserSearchFilter) ([]*repository.User, int64, error) {
	if s == nil || s.users == nil {
		return nil, 0, fmt.Errorf("admin user %w", errIncomplete)
	}
	filter.Keyword = strings.TrimSpace(filter.Keyword)
	if filter.Role != "" {
		role, err := normalizeRole(filter.Role)
		if err != nil {
			return nil, 0, err
		}
		filter.Role = role
	}
	users, err := s.users.Search(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.users.CountFiltered(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (s *adminUserService) Get(ctx context.Context, id int64) (*repository.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	return user, nil
}

func (s *adminUserService) Create(ctx context.Context, input AdminUserCreateInput) (*repository.User, error) {
	enabled := true
	if input.Enabled != nil {
		enabled = *input.Enabled
	}
	return createUser(ctx, s.users, s.hasher, newUserInput{
		Username: input.Username,
		Name:     input.Name,
		Email:    input.Email,
		Phone:    input.Phone,
		Password: input.Password,
		Role:     input.Role,
		Enabled:  enabled,
	})
}

func (s *adminUserService) Update(ctx context.Context, id int64, input AdminUserUpdateInput) (*repository.User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	var username, email, phone string
	if input.Username != nil {
		username = strings.TrimSpace(*input.Username)
		if !usernamePattern.MatchString(username) {
			return nil, invalidf("invalid username / 用户名格式错误")
		}
		user.Username = username
	}
	if input.Email != nil {
		if email, err = normalizeEmail(*input.Email); err != nil {
			return nil, err
		}
		user.Email = email
	}
	if input.Phone != nil {
		if phone, err = normalizePhone(*input.Phone); err != nil {
			return nil, err
		}
		user.Phone = phone
	}
	if err := ensureUnique(ctx, s.users, user.ID, username, email, phone); err != nil {
		return nil, err
	}
	if input.Name != nil {
		if name := strings.TrimSpace(*input.Name); name != "" {
			user.Name = name
		}
	}
	if input.Role != nil {
		role, err := normalizeRole(*input.Role)
		if err != nil {
			return nil, err
		}
		user.Role = role
	}
	if input.Enabled != nil {
		user.Enabled = *input.Enabled
	}
	passwordChanged := false
	if input.Password != nil && *input.Password != "" {
		if err := validatePassword(*input.Password); err != nil {
			return nil, err
		}
		hashed, err := s.hasher.Hash(*input.Password)
		if err != nil {
			return nil, err
		}
		user.Password = hashed
		passwordChanged = true
	}
	if err := s.users.Save(ctx, user); err != nil {
		return nil, mapRepoErr(err)
	}
	if (passwordChanged || !user.Enabled) && s.tokens != nil {
		if err := s.tokens.RevokeByUser(ctx, user.ID); err != nil {
			return nil, err
		}
	}
	return user, nil
}

// ToggleStatus flips the enabled flag. Admins cannot disable themselves.
func (s *adminUserService) ToggleStatus(ctx context.Context, id, actorID int64) (*repository.User, error) {
	if id == actorID {
		return nil, fmt.Errorf("%w: cannot change own status / 不能修改自己的状态", ErrForbidden)
	}
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	user.Enabled = !user.Enabled
	if err := s.users.Save(ctx, user); err != nil {
		return nil, mapRepoErr(err)
	}
	if !user.Enabled && s.tokens != nil {
		_ = s.tokens.RevokeByUser(ctx, user.ID)
	}
	if s.audit != nil {
		s.audit.Record(ctx, security.Event{
			Kind:     security.EventUserStatus,
			ActorID:  strconv.FormatInt(actorID, 10),
			Metadata: map[string]any{"user_id": user.ID, "enabled": user.Enabled},
		})
	}
	return user, nil
}

func (s *adminUserService) Delete(ctx context.Context, id, actorID int64) error {
	if id == actorID {
		return fmt.Errorf("%w: cannot delete yourself / 不能删除自己", ErrForbidden)
	}
	if err := s.users.Delete(ctx, id); err != nil {
		return mapRepoErr(err)
	}
	return nil
}

// Export renders the filtered user list as CSV.
func (s *adminUserService) Export(ctx context.Context, filter repository.UserSearchFilter) ([]byte, error) {
	filter.Limit = 500
	filter.Offset = 0
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"id", "username", "name", "email", "phone", "role", "enabled", "last_login_at", "created_at"}); err != nil {
		return nil, err
	}
	for {
		users, _, err := s.List(ctx, filter)
		if err != nil {
			return nil, err
		}
		for _, u := range users {
			record := []string{
				strconv.FormatInt(u.ID, 10),
				u.Username,
				u.Name,
				u.Email,
				u.Phone,
				u.Role,
				strconv.FormatBool(u.Enabled),
				formatUnix(u.LastLoginAt),
				formatUnix(u.CreatedAt),
			}
			if err := w.Write(record); err != nil {
				return nil, err
			}
		}
		if len(users) < filter.Limit {
			break
		}
		filter.Offset += filter.Limit
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatUnix(ts int64) string {
	if ts <= 0 {
		return ""
	}
	return time.Unix(ts, 0).UTC().Format(time.RFC3339)
}
