// Package auth provides JWT bearer authentication and role guards for the
// API. Tokens carry a single role claim (doctor, patient, or admin); the
// subject is the caller's directory ID.
package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	UserIDKey   contextKey = "user_id"
	UserRoleKey contextKey = "user_role"
)

// Role values carried in token claims.
const (
	RoleDoctor  = "doctor"
	RolePatient = "patient"
	RoleAdmin   = "admin"
)

// Claims is the token payload the API understands.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// JWTConfig configures the bearer middleware. With a SigningKey set, tokens
// are HMAC-verified (development and tests); otherwise keys are fetched from
// the JWKS endpoint.
type JWTConfig struct {
	Issuer     string
	Audience   string
	JWKSURL    string
	SigningKey []byte
}

// JWTMiddleware authenticates the request and places the caller's ID and role
// on the request context.
func JWTMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
			}

			claims := &Claims{}
			opts := []jwt.ParserOption{
				jwt.WithValidMethods([]string{"RS256", "HS256"}),
			}
			if cfg.Issuer != "" {
				opts = append(opts, jwt.WithIssuer(cfg.Issuer))
			}
			if cfg.Audience != "" {
				opts = append(opts, jwt.WithAudience(cfg.Audience))
			}

			var token *jwt.Token
			var err error
			if len(cfg.SigningKey) > 0 {
				token, err = jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (interface{}, error) {
					return cfg.SigningKey, nil
				}, opts...)
			} else {
				token, err = jwt.ParseWithClaims(parts[1], claims, jwksKeyFunc(cfg.JWKSURL), opts...)
			}
			if err != nil || !token.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			ctx := c.Request().Context()
			ctx = context.WithValue(ctx, UserIDKey, claims.Subject)
			ctx = context.WithValue(ctx, UserRoleKey, claims.Role)
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}

// DevAuthMiddleware accepts headers X-User-ID and X-User-Role in place of a
// token. Development only.
func DevAuthMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			uid := c.Request().Header.Get("X-User-ID")
			role := c.Request().Header.Get("X-User-Role")
			if uid == "" {
				uid = "dev-user"
			}
			if role == "" {
				role = RoleAdmin
			}
			ctx := c.Request().Context()
			ctx = context.WithValue(ctx, UserIDKey, uid)
			ctx = context.WithValue(ctx, UserRoleKey, role)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// UserIDFromContext returns the authenticated subject, or "".
func UserIDFromContext(ctx context.Context) string {
	uid, _ := ctx.Value(UserIDKey).(string)
	return uid
}

// RoleFromContext returns the authenticated role, or "".
func RoleFromContext(ctx context.Context) string {
	role, _ := ctx.Value(UserRoleKey).(string)
	return role
}

// ---------------------------------------------------------------------------
// JWKS
// ---------------------------------------------------------------------------

type jwksKey struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

type jwksResponse struct {
	Keys []jwksKey `json:"keys"`
}

const jwksCacheTTL = 5 * time.Minute

// jwksCache caches RSA public keys fetched from a JWKS endpoint.
type jwksCache struct {
	mu        sync.RWMutex
	url       string
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
}

var (
	jwksCaches   = map[string]*jwksCache{}
	jwksCachesMu sync.Mutex
)

func jwksKeyFunc(jwksURL string) jwt.Keyfunc {
	jwksCachesMu.Lock()
	cache, ok := jwksCaches[jwksURL]
	if !ok {
		cache = &jwksCache{url: jwksURL, keys: make(map[string]*rsa.PublicKey)}
		jwksCaches[jwksURL] = cache
	}
	jwksCachesMu.Unlock()

	return func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("token missing kid header")
		}
		return cache.getKey(kid)
	}
}

func (c *jwksCache) getKey(kid string) (*rsa.PublicKey, error) {
	c.mu.RLock()
	key, ok := c.keys[kid]
	fresh := time.Since(c.fetchedAt) < jwksCacheTTL
	c.mu.RUnlock()
	if ok && fresh {
		return key, nil
	}

	if err := c.fetch(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	key, ok = c.keys[kid]
	if !ok {
		return nil, fmt.Errorf("unknown signing key %q", kid)
	}
	return key, nil
}

func (c *jwksCache) fetch() error {
	resp, err := http.Get(c.url)
	if err != nil {
		return fmt.Errorf("fetch JWKS: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch JWKS: unexpected status %d", resp.StatusCode)
	}

	var jwks jwksResponse
	if err := json.NewDecoder(resp.Body).Decode(&jwks); err != nil {
		return fmt.Errorf("decode JWKS: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(jwks.Keys))
	for _, k := range jwks.Keys {
		if k.Kty != "RSA" {
			continue
		}
		pub, err := parseRSAPublicKey(k)
		if err != nil {
			continue
		}
		keys[k.Kid] = pub
	}

	c.mu.Lock()
	c.keys = keys
	c.fetchedAt = time.Now()
	c.mu.Unlock()
	return nil
}

func parseRSAPublicKey(k jwksKey) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("decode modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("decode exponent: %w", err)
	}

	e := 0
	for _, b := range eBytes {
		e = e<<8 | int(b)
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: e,
	}, nil
}
