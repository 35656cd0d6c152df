package main

import (
	"context"
	"net/http"
	"strings"
)

type tokenKey struct{}

const msgInvalidToken = "Could not validate credentials"

// authMiddleware checks the Bearer token when one is sent. Anonymous requests pass.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			next.ServeHTTP(w, r)
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			s.logger.Infof("invalid Authorization header format")
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeDetail(w, http.StatusUnauthorized, msgInvalidToken)
			return
		}

		token, ok := s.store.LookupToken(parts[1])
		if !ok {
			s.logger.Infof("unknown token presented")
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeDetail(w, http.StatusUnauthorized, msgInvalidToken)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), tokenKey{}, token)))
	})
}

func tokenFromContext(ctx context.Context) (AuthToken, bool) {
	token, ok := ctx.Value(tokenKey{}).(AuthToken)
	return token, ok
}
