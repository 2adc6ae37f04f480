// 文件路径: internal/repository/errors.go
// 模块说明: 仓储层通用错误。
package repository

import "errors"

var (
	// ErrNotFound 表示查询未返回数据。
	ErrNotFound = errors.New("not found / 未找到数据")
	// ErrConflict 表示违反唯一约束。
	ErrConflict = errors.New("conflict / 数据已存在")
)
