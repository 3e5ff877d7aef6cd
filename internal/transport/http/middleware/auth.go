package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const identityKey = "identity"

// Identity — аутентифицированный субъект запроса из JWT.
type Identity struct {
	CustomerID string
	Email      string
	Admin      bool
}

// AuthConfig задаёт параметры проверки токенов.
type AuthConfig struct {
	Secret   string
	Issuer   string
	Audience string
}

// Auth проверяет bearer-токены и кладёт Identity в контекст запроса.
type Auth struct {
	cfg AuthConfig
}

// NewAuth конструирует middleware аутентификации.
func NewAuth(cfg AuthConfig) *Auth {
	return &Auth{cfg: cfg}
}

// Require проверяет JWT и отклоняет запрос без валидного токена.
func (a *Auth) Require() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := a.parseToken(c)
		if !ok {
			return
		}
		c.Set(identityKey, identity)
		c.Next()
	}
}

// RequireAdmin дополнительно требует администраторскую роль.
func (a *Auth) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := a.parseToken(c)
		if !ok {
			return
		}
		if !identity.Admin {
			forbidden(c, "insufficient_scope", "admin role required")
			return
		}
		c.Set(identityKey, identity)
		c.Next()
	}
}

func (a *Auth) parseToken(c *gin.Context) (Identity, bool) {
	auth := c.GetHeader("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		unauth(c, "invalid_request", "missing bearer token")
		return Identity{}, false
	}

	raw := strings.TrimPrefix(auth, "Bearer ")
	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(a.cfg.Secret), nil
	}, jwt.WithLeeway(30*time.Second)) // небольшой clock skew

	if err != nil || !token.Valid {
		unauth(c, "invalid_token", "invalid jwt")
		return Identity{}, false
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		unauth(c, "invalid_token", "claims parsing error")
		return Identity{}, false
	}

	if a.cfg.Issuer != "" && claims["iss"] != a.cfg.Issuer {
		unauth(c, "invalid_token", "iss mismatch")
		return Identity{}, false
	}
	if a.cfg.Audience != "" && claims["aud"] != a.cfg.Audience {
		unauth(c, "invalid_token", "aud mismatch")
		return Identity{}, false
	}

	identity := Identity{}
	if sub, ok := claims["sub"].(string); ok {
		identity.CustomerID = sub
	}
	if email, ok := claims["email"].(string); ok {
		identity.Email = email
	}
	if admin, ok := claims["admin"].(bool); ok {
		identity.Admin = admin
	}
	if identity.CustomerID == "" {
		unauth(c, "invalid_token", "missing subject")
		return Identity{}, false
	}

	return identity, true
}

// IdentityFrom достаёт Identity из контекста запроса.
func IdentityFrom(c *gin.Context) (Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return Identity{}, false
	}
	identity, ok := v.(Identity)
	return identity, ok
}

func unauth(c *gin.Context, code, desc string) {
	c.Header("WWW-Authenticate", `Bearer error="`+code+`", error_description="`+desc+`"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": code, "error_description": desc})
}

func forbidden(c *gin.Context, code, desc string) {
	c.Header("WWW-Authenticate", `Bearer error="`+code+`", error_description="`+desc+`"`)
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": code, "error_description": desc})
}
