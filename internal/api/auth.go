package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/skin-lesion-advisor/internal/domain"
)

const authUserKey = "auth_user"

// ErrUnauthorized is returned for missing, malformed or unverifiable tokens
var ErrUnauthorized = errors.New("unauthorized")

// AuthUser is the caller identified by a verified access token
type AuthUser struct {
	ID    string
	Email string
	Role  string
}

// accessClaims is the payload of tokens issued by the account service
type accessClaims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// TokenVerifier checks HMAC-signed bearer tokens. Tokens are issued elsewhere.
type TokenVerifier struct {
	secret []byte
}

// NewTokenVerifier creates a verifier. With an empty secret every token is rejected.
func NewTokenVerifier(secret string) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret)}
}

// Verify parses tokenStr and returns the user it names.
func (v *TokenVerifier) Verify(tokenStr string) (*AuthUser, error) {
	if len(v.secret) == 0 || tokenStr == "" {
		return nil, ErrUnauthorized
	}

	claims := &accessClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrUnauthorized
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrUnauthorized
	}
	if claims.Subject == "" {
		return nil, ErrUnauthorized
	}

	return &AuthUser{
		ID:    claims.Subject,
		Email: claims.Email,
		Role:  claims.Role,
	}, nil
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	return token, token != ""
}

// RequireAuth rejects requests without a valid bearer token
func RequireAuth(verifier *TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		token, ok := bearerToken(c)
		if !ok {
			abortWithError(c, http.StatusUnauthorized, domain.ErrCodeAuthentication, "Authentication required", "")
			return
		}

		user, err := verifier.Verify(token)
		if err != nil {
			abortWithError(c, http.StatusUnauthorized, domain.ErrCodeAuthentication, "Invalid or expired token", "")
			return
		}

		c.Set(authUserKey, user)
		c.Next()
	}
}

// OptionalAuth attaches the user when a valid token is present and lets
// anonymous requests through otherwise.
func OptionalAuth(verifier *TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := bearerToken(c); ok {
			if user, err := verifier.Verify(token); err == nil {
				c.Set(authUserKey, user)
			}
		}
		c.Next()
	}
}

// RequireRole rejects authenticated users that lack role. It must run after RequireAuth.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := GetAuthUser(c)
		if user == nil {
			abortWithError(c, http.StatusUnauthorized, domain.ErrCodeAuthentication, "Authentication required", "")
			return
		}
		if user.Role != role {
			abortWithError(c, http.StatusForbidden, domain.ErrCodeForbidden, "Insufficient permissions", "")
			return
		}
		c.Next()
	}
}

// GetAuthUser returns the verified caller, or nil for anonymous requests
func GetAuthUser(c *gin.Context) *AuthUser {
	if value, ok := c.Get(authUserKey); ok {
		if user, ok := value.(*AuthUser); ok {
			return user
		}
	}
	return nil
}
