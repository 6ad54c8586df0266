package middleware

import (
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/codes"

	"github.com/2beens/blogapi/internal/auth"
	"github.com/2beens/blogapi/internal/telemetry/tracing"
	"github.com/2beens/blogapi/pkg"
)

type AuthMiddlewareHandler struct {
	loginChecker auth.Checker
	// method -> paths reachable without a token
	publicPaths map[string]map[string]bool
	// GET paths with a single trailing segment, e.g. /api/blogs/{id}
	publicGetPrefixes []string
}

func NewAuthMiddlewareHandler(loginChecker auth.Checker) *AuthMiddlewareHandler {
	return &AuthMiddlewareHandler{
		loginChecker: loginChecker,
		publicPaths: map[string]map[string]bool{
			http.MethodGet: {
				"/":          true,
				"/api/blogs": true,
			},
			http.MethodPost: {
				"/api/auth/register": true,
				"/api/auth/login":    true,
			},
		},
		publicGetPrefixes: []string{
			"/api/blogs/",
		},
	}
}

func (h *AuthMiddlewareHandler) isPublic(r *http.Request) bool {
	path := r.URL.Path
	if h.publicPaths[r.Method][path] {
		return true
	}
	if r.Method != http.MethodGet {
		return false
	}
	for _, prefix := range h.publicGetPrefixes {
		if rest, ok := strings.CutPrefix(path, prefix); ok && !strings.Contains(rest, "/") {
			return true
		}
	}
	return false
}

// AuthCheck lets public routes and preflight requests through. Everything
// else needs a valid bearer token; the token's user id is put in the request
// context for the handlers.
func (h *AuthMiddlewareHandler) AuthCheck() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := tracing.GlobalTracer.Start(r.Context(), "middleware.auth")
			defer span.End()

			if r.Method == http.MethodOptions {
				w.Header().Add("Allow", "GET, POST, PUT, DELETE, OPTIONS")
				w.WriteHeader(http.StatusOK)
				span.SetStatus(codes.Ok, "options-ok")
				return
			}

			if h.isPublic(r) {
				span.SetStatus(codes.Ok, "ok")
				next.ServeHTTP(w, r)
				return
			}

			token, ok := auth.BearerToken(r)
			if !ok {
				log.Tracef("[missing token] [auth middleware] unauthorized => %s", r.URL.Path)
				pkg.WriteErrorResponse(w, http.StatusUnauthorized, "Not authorized, no token", nil)
				span.SetStatus(codes.Error, "missing-auth-token")
				return
			}

			userID, err := h.loginChecker.CheckToken(ctx, token)
			if err != nil {
				if pkg.StatusFromError(err) == http.StatusUnauthorized {
					log.Tracef("[invalid token] [auth middleware] unauthorized => %s: %s", r.URL.Path, err)
				} else {
					log.Errorf("[failed login check] => %s: %s", r.URL.Path, err)
				}
				pkg.WriteErrorResponse(w, http.StatusUnauthorized, "Not authorized, token failed", nil)
				span.SetStatus(codes.Error, "check-token-err")
				span.RecordError(err)
				return
			}

			span.SetStatus(codes.Ok, "ok")
			next.ServeHTTP(w, r.WithContext(auth.ContextWithUserID(r.Context(), userID)))
		})
	}
}
