package middleware

import (
	"net/http"
	"net/url"
	"strings"
)

var publicPrefixes = []string{
	"/sign-in",
	"/sign-up",
	"/api/webhooks/clerk",
}

func isPublicRoute(path string) bool {
	if path == "/" || path == "/health" {
		return true
	}
	for _, p := range publicPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

func isAuthPage(path string) bool {
	return strings.HasPrefix(path, "/sign-in") || strings.HasPrefix(path, "/sign-up")
}

func isAPIRoute(path string) bool {
	return path == "/api" || strings.HasPrefix(path, "/api/")
}

// RouteGuard applies the web app's route protection to every request:
//   - signed-in users visiting sign-in/sign-up go to /dashboard
//   - public routes pass untouched
//   - anonymous API calls get 401, anonymous page visits go to /sign-in with a
//     redirect_url back, except for /dashboard and /admin which would loop
//   - admins land on /admin, everyone else is kept out of it
//
// A verified identity is stored on the request context for later handlers.
func RouteGuard(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path

			ctx, err := authenticate(verifier, r)
			signedIn := err == nil
			if signedIn {
				r = r.WithContext(ctx)
			}

			if signedIn && isAuthPage(path) {
				http.Redirect(w, r, "/dashboard", http.StatusTemporaryRedirect)
				return
			}

			if isPublicRoute(path) {
				next.ServeHTTP(w, r)
				return
			}

			if !signedIn {
				if isAPIRoute(path) {
					http.Error(w, "Unauthorized", http.StatusUnauthorized)
					return
				}
				target := "/sign-in"
				if path != "/dashboard" && path != "/admin" {
					target += "?" + url.Values{"redirect_url": {path}}.Encode()
				}
				http.Redirect(w, r, target, http.StatusTemporaryRedirect)
				return
			}

			if !isAPIRoute(path) {
				claims, _ := ClaimsFromContext(r.Context())
				switch {
				case path == "/dashboard" && claims.IsAdmin():
					http.Redirect(w, r, "/admin", http.StatusTemporaryRedirect)
					return
				case (path == "/admin" || strings.HasPrefix(path, "/admin/")) && !claims.IsAdmin():
					http.Redirect(w, r, "/dashboard", http.StatusTemporaryRedirect)
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}
