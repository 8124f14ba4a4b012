package auth

import (
	"context"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/medoffice/practice/internal/platform/apierror"
)

type contextKey string

const UserIDKey contextKey = "user_id"

// DevUser is the identity given to unauthenticated requests in dev mode.
const DevUser = "dev-user"

type Claims struct {
	jwt.RegisteredClaims
	TenantID string `json:"tenant_id,omitempty"`
}

type JWTConfig struct {
	Issuer     string
	Audience   string
	SigningKey []byte
	// Skipper bypasses authentication for matching requests.
	Skipper func(c echo.Context) bool
}

// JWTMiddleware admits requests carrying an HS256 token signed with the
// configured key. Both the Bearer and Token schemes are accepted.
func JWTMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	keyFunc := func(t *jwt.Token) (interface{}, error) {
		return cfg.SigningKey, nil
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.Skipper != nil && cfg.Skipper(c) {
				return next(c)
			}

			tokenStr, err := bearerToken(c.Request().Header.Get("Authorization"))
			if err != nil {
				return err
			}

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(tokenStr, claims, keyFunc, opts...)
			if err != nil || !token.Valid {
				return apierror.Unauthorized("Invalid token.")
			}
			if claims.Subject == "" {
				return apierror.Unauthorized("Invalid token.")
			}

			// read by the tenant middleware
			c.Set("jwt_tenant_id", claims.TenantID)

			ctx := context.WithValue(c.Request().Context(), UserIDKey, claims.Subject)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", apierror.Unauthorized("Authentication credentials were not provided.")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return "", apierror.Unauthorized("Invalid token header. No credentials provided.")
	}
	if !strings.EqualFold(parts[0], "bearer") && !strings.EqualFold(parts[0], "token") {
		return "", apierror.Unauthorized("Invalid authorization scheme.")
	}
	tok := strings.TrimSpace(parts[1])
	if tok == "" || strings.Contains(tok, " ") {
		return "", apierror.Unauthorized("Invalid token header. Token string should not contain spaces.")
	}
	return tok, nil
}

// DevAuthMiddleware admits every request as DevUser. Only wired when the
// server runs in development without a signing key. Requests matched by an
// optional skipper get no identity at all.
func DevAuthMiddleware(skipper ...func(c echo.Context) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if len(skipper) > 0 && skipper[0] != nil && skipper[0](c) {
				return next(c)
			}
			ctx := context.WithValue(c.Request().Context(), UserIDKey, DevUser)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

func UserIDFromContext(ctx context.Context) string {
	uid, _ := ctx.Value(UserIDKey).(string)
	return uid
}
