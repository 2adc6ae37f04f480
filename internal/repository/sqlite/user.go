// 文件路径: internal/repository/sqlite/user.go
// 模块说明: users 表的 SQLite 实现。
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/cliqshop/shop/internal/repository"
)

const userColumns = `id, username, name, email, phone, password, role, enabled, last_login_at, created_at, updated_at`

// userRepo 负责 users 表的 SQLite 实现。
type userRepo struct {
	db querier
}

func (r *userRepo) FindByID(ctx context.Context, id int64) (*repository.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, userSelectBy("id"), id))
}

func (r *userRepo) FindByEmail(ctx context.Context, email string) (*repository.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, userSelectBy("email"), strings.TrimSpace(email)))
}

func (r *userRepo) FindByUsername(ctx context.Context, username string) (*repository.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, userSelectBy("username"), strings.TrimSpace(username)))
}

func (r *userRepo) FindByPhone(ctx context.Context, phone string) (*repository.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, userSelectBy("phone"), strings.TrimSpace(phone)))
}

func (r *userRepo) Create(ctx context.Context, user *repository.User) (*repository.User, error) {
	if user == nil {
		return nil, fmt.Errorf("user is required / 用户数据不能为空")
	}
	now := time.Now().Unix()
	if user.CreatedAt == 0 {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	if user.Role == "" {
		user.Role = repository.RoleUser
	}

	const stmt = `INSERT INTO users(username, name, email, phone, password, role, enabled, last_login_at, created_at, updated_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, stmt,
		user.Username,
		user.Name,
		user.Email,
		nullableString(user.Phone),
		user.Password,
		user.Role,
		boolToInt(user.Enabled),
		user.LastLoginAt,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return nil, constraint(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	user.ID = id
	return user, nil
}

func (r *userRepo) Save(ctx context.Context, user *repository.User) error {
	if user == nil || user.ID == 0 {
		return fmt.Errorf("user id is required / 用户 ID 不能为空")
	}
	user.UpdatedAt = time.Now().Unix()
	const stmt = `UPDATE users SET username = ?, name = ?, email = ?, phone = ?, password = ?, role = ?, enabled = ?, updated_at = ?
		WHERE id = ?`
	res, err := r.db.ExecContext(ctx, stmt,
		user.Username,
		user.Name,
		user.Email,
		nullableString(user.Phone),
		user.Password,
		user.Role,
		boolToInt(user.Enabled),
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		return constraint(err)
	}
	return affected(res, nil)
}

func (r *userRepo) TouchLogin(ctx context.Context, id int64, at int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET last_login_at = ? WHERE id = ?`, at, id)
	return err
}

func (r *userRepo) Search(ctx context.Context, filter repository.UserSearchFilter) ([]*repository.User, error) {
	where, args := userFilterClause(filter)
	limit, offset := limitOffset(filter.Limit, filter.Offset)
	query := `SELECT ` + userColumns + ` FROM users` + where + ` ORDER BY id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*repository.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (r *userRepo) CountFiltered(ctx context.Context, filter repository.UserSearchFilter) (int64, error) {
	where, args := userFilterClause(filter)
	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`+where, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (r *userRepo) Count(ctx context.Context) (int64, error) {
	return r.CountFiltered(ctx, repository.UserSearchFilter{})
}

func (r *userRepo) HasAdmin(ctx context.Context) (bool, error) {
	var exists int
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE role = ?)`, repository.RoleAdmin).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists == 1, nil
}

func (r *userRepo) Delete(ctx context.Context, id int64) error {
	return affected(r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id))
}

func userFilterClause(filter repository.UserSearchFilter) (string, []any) {
	var conds []string
	var args []any
	if kw := strings.TrimSpace(filter.Keyword); kw != "" {
		like := "%" + kw + "%"
		conds = append(conds, "(email LIKE ? OR username LIKE ? OR name LIKE ?)")
		args = append(args, like, like, like)
	}
	if filter.Role != "" {
		conds = append(conds, "role = ?")
		args = append(args, filter.Role)
	}
	if filter.Enabled != nil {
		conds = append(conds, "enabled = ?")
		args = append(args, boolToInt(*filter.Enabled))
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func userSelectBy(field string) string {
	return `SELECT ` + userColumns + ` FROM users WHERE ` + field + ` = ? LIMIT 1`
}

func scanUser(row rowScanner) (*repository.User, error) {
	var (
		user    repository.User
		phone   sql.NullString
		enabled int
	)
	if err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Name,
		&user.Email,
		&phone,
		&user.Password,
		&user.Role,
		&enabled,
		&user.LastLoginAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, notFound(err)
	}
	user.Phone = phone.String
	user.Enabled = enabled == 1
	return &user, nil
}
