package middleware

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/SmartBin/SmartBin-Backend/internal/gateway"
	"github.com/SmartBin/SmartBin-Backend/internal/utils"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/cors"
)

// ClerkClaims are the fields read from a Clerk session token. The "metadata"
// claim is added through a Clerk session token template.
type ClerkClaims struct {
	jwt.RegisteredClaims
	AuthorizedParty string `json:"azp,omitempty"`
	Metadata        struct {
		Role string `json:"role,omitempty"`
	} `json:"metadata"`
}

// IsAdmin reports whether the token itself grants admin.
func (c *ClerkClaims) IsAdmin() bool {
	return c != nil && c.Metadata.Role == "admin"
}

type TokenVerifier interface {
	Verify(token string) (*ClerkClaims, error)
}

// ClerkVerifier validates RS256 session tokens with the instance's public key,
// without a round trip to Clerk.
type ClerkVerifier struct {
	key    *rsa.PublicKey
	issuer string
}

// NewClerkVerifier parses a PEM encoded RSA public key.
func NewClerkVerifier(pemKey, issuer string) (*ClerkVerifier, error) {
	key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(pemKey))
	if err != nil {
		return nil, fmt.Errorf("parse CLERK_JWT_KEY: %w", err)
	}
	return &ClerkVerifier{key: key, issuer: issuer}, nil
}

func (v *ClerkVerifier) Verify(tokenString string) (*ClerkClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithLeeway(5 * time.Second),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &ClerkClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return v.key, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}

type claimsKey struct{}

// ClaimsFromContext returns the verified token claims, if any.
func ClaimsFromContext(ctx context.Context) (*ClerkClaims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*ClerkClaims)
	return claims, ok
}

// sessionToken reads the bearer token, falling back to Clerk's __session cookie.
func sessionToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if c, err := r.Cookie("__session"); err == nil {
		return c.Value
	}
	return ""
}

// authenticate returns a request context carrying the caller's identity.
func authenticate(verifier TokenVerifier, r *http.Request) (context.Context, error) {
	token := sessionToken(r)
	if token == "" {
		return nil, errors.New("missing session token")
	}
	claims, err := verifier.Verify(token)
	if err != nil {
		return nil, err
	}
	ctx := context.WithValue(r.Context(), utils.ContextUserIDKey, claims.Subject)
	ctx = context.WithValue(ctx, utils.ContextTokenKey, token)
	ctx = context.WithValue(ctx, claimsKey{}, claims)
	return ctx, nil
}

// ClerkAuth rejects requests without a valid Clerk session token.
func ClerkAuth(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Already verified by RouteGuard
			if _, ok := ClaimsFromContext(r.Context()); ok {
				next.ServeHTTP(w, r)
				return
			}
			ctx, err := authenticate(verifier, r)
			if err != nil {
				http.Error(w, "Unauthorized: "+err.Error(), http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type UserFetcher interface {
	UserByClerkID(ctx context.Context, clerkID string) (*gateway.User, error)
}

// AdminMiddleware must run after ClerkAuth. The token's metadata role is
// checked first, then the staff flags of the auth service account.
func AdminMiddleware(fetcher UserFetcher) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := utils.GetUserIDFromContext(r.Context())
			if !ok {
				http.Error(w, "Unauthorized: missing user ID in context", http.StatusUnauthorized)
				return
			}

			claims, _ := ClaimsFromContext(r.Context())
			if !claims.IsAdmin() {
				user, err := fetcher.UserByClerkID(utils.UpstreamContext(r), userID)
				if err != nil {
					http.Error(w, "Unauthorized: user not found", http.StatusUnauthorized)
					return
				}
				if !user.IsStaff && !user.IsSuperuser {
					http.Error(w, "Forbidden: admin access required", http.StatusForbidden)
					return
				}
			}

			ctx := context.WithValue(r.Context(), utils.ContextAdminKey, true)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CORSMiddleware echoes allowed origins with credentials.
func CORSMiddleware(origins []string) func(http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		ExposedHeaders:   []string{"Retry-After", "Cache-Control"},
		AllowCredentials: true,
	})
	return c.Handler
}
