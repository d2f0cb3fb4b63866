package server

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/54b3r/raglab-go/internal/logging"
)

// apiKeyHeader is accepted as an alternative to a Bearer token, for clients
// that cannot set Authorization.
const apiKeyHeader = "X-API-Key"

// authMiddleware requires the configured key on every request to next. An
// empty apiKey turns authentication off and New warns about it once.
//
// The key is read from "Authorization: Bearer <key>" first and from
// X-API-Key second. Failures answer 401 with a Bearer challenge and a JSON
// error body. Keys are compared in constant time and never logged.
func authMiddleware(apiKey string, next http.Handler) http.Handler {
	if apiKey == "" {
		return next
	}
	want := []byte(apiKey)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, source := credential(r)
		switch {
		case got == "":
			deny(w, r, `Bearer realm="raglab"`, "authorization required", source)
		case subtle.ConstantTimeCompare([]byte(got), want) != 1:
			deny(w, r, `Bearer realm="raglab", error="invalid_token"`, "invalid API key", source)
		default:
			next.ServeHTTP(w, r)
		}
	})
}

func deny(w http.ResponseWriter, r *http.Request, challenge, msg, source string) {
	logging.FromContext(r.Context()).Warn("server: unauthorized",
		slog.String("reason", msg),
		slog.String("credential_source", source),
	)
	w.Header().Set("WWW-Authenticate", challenge)
	writeError(w, http.StatusUnauthorized, msg)
}

// credential returns the presented key and where it came from ("bearer",
// "header" or "none").
func credential(r *http.Request) (key, source string) {
	if tok := bearerToken(r); tok != "" {
		return tok, "bearer"
	}
	if k := strings.TrimSpace(r.Header.Get(apiKeyHeader)); k != "" {
		return k, "header"
	}
	return "", "none"
}

// bearerToken extracts the token from "Authorization: Bearer <token>". The
// scheme is case-insensitive. Anything else yields "".
func bearerToken(r *http.Request) string {
	scheme, tok, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(tok)
}
