// 文件路径: internal/service/errors.go
// 模块说明: 服务层哨兵错误，handler 通过 errors.Is 映射为 HTTP 状态码。
package service

import "errors"

var (
	// ErrNotFound indicates requested resource does not exist.
	ErrNotFound = errors.New("service: not found / 未找到资源")
	// ErrInvalidArgument indicates malformed or missing input.
	ErrInvalidArgument = errors.New("service: invalid argument / 参数无效")
	// ErrForbidden indicates the caller does not own the resource.
	ErrForbidden = errors.New("service: forbidden / 无权访问")
	// ErrUnauthorized indicates missing or invalid auth tokens.
	ErrUnauthorized = errors.New("service: unauthorized / 未授权")
	// ErrConflict indicates a uniqueness or state conflict.
	ErrConflict = errors.New("service: conflict / 数据冲突")
	// ErrRateLimited indicates caller exceeded allowed attempts.
	ErrRateLimited = errors.New("service: rate limited / 请求过于频繁")
	// ErrInvalidCredentials indicates provided credentials are wrong.
	ErrInvalidCredentials = errors.New("service: invalid credentials / 凭证无效")
	// ErrAccountDisabled indicates the account is disabled.
	ErrAccountDisabled = errors.New("service: account disabled / 账号已禁用")
	// ErrInvalidRefreshToken indicates refresh token problems.
	ErrInvalidRefreshToken = errors.New("service: invalid refresh token / 刷新令牌无效")
	// ErrInvalidPassword indicates password does not meet requirements.
	ErrInvalidPassword = errors.New("service: invalid password / 密码无效")
	// ErrEmailExists indicates email already registered.
	ErrEmailExists = errors.New("service: email already exists / 邮箱已存在")
	// ErrUsernameExists indicates username already registered.
	ErrUsernameExists = errors.New("service: username already exists / 用户名已存在")
	// ErrPhoneExists indicates phone already registered.
	ErrPhoneExists = errors.New("service: phone already exists / 手机号已存在")
	// ErrNotConfigured indicates an optional integration is disabled.
	ErrNotConfigured = errors.New("service: not configured / 功能未配置")
	// ErrGateway wraps failures reported by the payment gateway.
	ErrGateway = errors.New("service: payment gateway error / 支付网关错误")
	// ErrInsufficientStock indicates a stock change would go below zero.
	ErrInsufficientStock = errors.New("service: insufficient stock / 库存不足")
)

// errIncomplete is returned by services constructed without their dependencies.
var errIncomplete = errors.New("service not fully configured / 服务未完整配置")
