package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"studio/internal/notify"
)

type localeContextKey struct{}

var LocaleKey = localeContextKey{}

// CountryLookup resolves ISO country codes for an IP address.
type CountryLookup func(ip string) (string, error)

// countryHeaders are set by CDNs and load balancers in front of the API.
var countryHeaders = []string{"X-Country-Code", "CF-IPCountry", "X-Appengine-Country"}

// I18N stores the locale used for error and job messages. Explicit language
// hints win; the caller's country is only consulted when there are none.
// AuthJWT later overrides it with the token's locale claim.
func I18N(defaultLocale string, lookup CountryLookup) func(http.Handler) http.Handler {
	fallback := notify.Locale(defaultLocale)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), LocaleKey, requestLocale(r, fallback, lookup))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func requestLocale(r *http.Request, fallback string, lookup CountryLookup) string {
	for _, hint := range []string{r.Header.Get("X-Locale"), r.Header.Get("Accept-Language")} {
		if locale, ok := notify.Preferred(hint); ok {
			return locale
		}
	}
	if strings.EqualFold(country(r, lookup), "ID") {
		return "id"
	}
	return fallback
}

func country(r *http.Request, lookup CountryLookup) string {
	for _, key := range countryHeaders {
		if v := strings.TrimSpace(r.Header.Get(key)); v != "" {
			return v
		}
	}
	if lookup == nil {
		return ""
	}
	ip := clientIP(r)
	if ip == "" {
		return ""
	}
	code, err := lookup(ip)
	if err != nil {
		return ""
	}
	return code
}

func clientIP(r *http.Request) string {
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		return strings.TrimSpace(strings.Split(xf, ",")[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// LocaleFromContext returns the request locale, English when unset.
func LocaleFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(LocaleKey).(string); ok {
		return v
	}
	return "en"
}
