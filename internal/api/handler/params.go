// 文件路径: internal/api/handler/params.go
// 模块说明: 请求解析小工具，负责 JSON 解码、路径参数与分页参数。
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/cliqshop/shop/internal/api/requestctx"
	"github.com/cliqshop/shop/internal/service"
)

const (
	defaultPageSize = 20
	maxPageSize     = 200
)

var errMissingUser = errors.New("handler: no authenticated user / 未登录")

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body / 请求体为空", service.ErrInvalidArgument)
		}
		return fmt.Errorf("%w: %v", service.ErrInvalidArgument, err)
	}
	return nil
}

func parseInt64(raw string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
}

// pathID reads a positive numeric URL parameter.
func pathID(r *http.Request, name string) (int64, error) {
	id, err := parseInt64(chi.URLParam(r, name))
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", service.ErrInvalidArgument, name)
	}
	return id, nil
}

func clampQueryInt(raw string, def, max int) int {
	if strings.TrimSpace(raw) == "" {
		return def
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	if value < 0 {
		return 0
	}
	if value > max {
		return max
	}
	return value
}

// pageFromQuery reads ?page (1-based) and ?size.
func pageFromQuery(r *http.Request) (service.Page, int, int) {
	q := r.URL.Query()
	size := clampQueryInt(q.Get("size"), defaultPageSize, maxPageSize)
	if size == 0 {
		size = defaultPageSize
	}
	page := clampQueryInt(q.Get("page"), 1, 1<<20)
	if page < 1 {
		page = 1
	}
	return service.Page{Limit: size, Offset: (page - 1) * size}, page, size
}

func currentUserID(r *http.Request) (int64, error) {
	id, ok := requestctx.UserIDFromContext(r.Context())
	if !ok {
		return 0, fmt.Errorf("%w: %v", service.ErrUnauthorized, errMissingUser)
	}
	return id, nil
}

func clientMeta(r *http.Request) service.ClientMeta {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return service.ClientMeta{IP: ip, UserAgent: r.UserAgent()}
}

func pagedPayload(items any, total int64, page, size int) map[string]any {
	return map[string]any{
		"data":     items,
		"total":    total,
		"page":     page,
		"pageSize": size,
	}
}
