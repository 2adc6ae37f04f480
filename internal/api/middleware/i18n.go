package middleware

import (
	"net/http"
	"time"

	"github.com/cliqshop/shop/internal/api/requestctx"
	"github.com/cliqshop/shop/internal/support/i18n"
)

const langCookie = "cliqshop_lang"

// I18n negotiates the response language from ?lang=, X-Lang, the language cookie and
// Accept-Language, in that order. An explicit ?lang= is remembered in the cookie.
func I18n(manager *i18n.Manager) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			query := r.URL.Query().Get("lang")
			prefs := []string{query, r.Header.Get("X-Lang")}
			if cookie, err := r.Cookie(langCookie); err == nil {
				prefs = append(prefs, cookie.Value)
			}
			prefs = append(prefs, r.Header.Get("Accept-Language"))

			lang := "en-US"
			if manager != nil {
				lang = manager.Match(prefs...)
			}

			if query != "" {
				http.SetCookie(w, &http.Cookie{
					Name:     langCookie,
					Value:    lang,
					Path:     "/",
					Expires:  time.Now().Add(365 * 24 * time.Hour),
					SameSite: http.SameSiteLaxMode,
				})
			}

			next.ServeHTTP(w, r.WithContext(requestctx.WithLanguage(r.Context(), lang)))
		})
	}
}
