package bootstrap

import (
	"net/http"
	"time"

	"github.com/cliqshop/shop/internal/config"
)

const (
	defaultReadTimeout = 15 * time.Second
	defaultIdleTimeout = 60 * time.Second
)

// NewHTTPServer builds the API server from the http config section.
// WriteTimeout stays zero so the product update websocket and large report
// downloads are not cut off mid-stream.
func NewHTTPServer(cfg config.HTTPConfig, handler http.Handler) *http.Server {
	read := cfg.ReadTimeout
	if read <= 0 {
		read = defaultReadTimeout
	}
	idle := cfg.IdleTimeout
	if idle <= 0 {
		idle = defaultIdleTimeout
	}
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadTimeout:       read,
		ReadHeaderTimeout: min(read, 10*time.Second),
		IdleTimeout:       idle,
		MaxHeaderBytes:    64 << 10,
	}
}
