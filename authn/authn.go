// Package authn implements the admin HTTP surface's dual auth path (§6:
// "all admin endpoints require a bearer token or a service-credential
// pair"): a JWT bearer token checked with golang-jwt/jwt/v5, or a
// pre-shared service key checked by constant-time hash comparison. Grounded
// on the bearer + API-key dual path in the retrieval pack's gateway
// middleware (cmd/gateway/middleware.go: "Try API Key first... Try JWT
// token"), adapted from net/http+gorilla/mux to gin.
package authn

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/kwld/homescript/host"
)

// Claims is the JWT payload minted for an authenticated operator session.
type Claims struct {
	Subject string `json:"sub"`
	jwt.RegisteredClaims
}

// Authenticator validates bearer tokens and service keys against a shared
// secret pair and exposes the gin middleware that enforces either path.
type Authenticator struct {
	jwtSecret     []byte
	serviceKeys   map[string]struct{} // sha256 hex -> present
}

func New(jwtSecret string, serviceKeys []string) *Authenticator {
	keys := make(map[string]struct{}, len(serviceKeys))
	for _, k := range serviceKeys {
		keys[hashToken(k)] = struct{}{}
	}
	return &Authenticator{jwtSecret: []byte(jwtSecret), serviceKeys: keys}
}

func hashToken(tok string) string {
	sum := sha256.Sum256([]byte(tok))
	return hex.EncodeToString(sum[:])
}

// IssueJWT mints a 24h bearer token for subject, used by the (out-of-scope)
// session-login adapter once SSO authenticates an operator.
func (a *Authenticator) IssueJWT(subject string) (string, error) {
	claims := &Claims{
		Subject: subject,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "homescript",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.jwtSecret)
}

func (a *Authenticator) validateJWT(tokenString string) (string, bool) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return a.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return "", false
	}
	claims, ok := token.Claims.(*Claims)
	if !ok {
		return "", false
	}
	return claims.Subject, true
}

func (a *Authenticator) validServiceKey(key string) bool {
	if key == "" {
		return false
	}
	h := hashToken(key)
	for k := range a.serviceKeys {
		if subtle.ConstantTimeCompare([]byte(k), []byte(h)) == 1 {
			return true
		}
	}
	return false
}

const (
	ctxAuthMode = "homescript_auth_mode"
	ctxSubject  = "homescript_subject"
)

// Require is gin middleware enforcing §6's "bearer token or service-
// credential pair" rule on admin routes. On success it stamps the selected
// host.AuthMode into the gin context for the run handler to read back into
// the execution report's meta.
func (a *Authenticator) Require() gin.HandlerFunc {
	return func(c *gin.Context) {
		if key := c.GetHeader("X-Service-Key"); key != "" {
			if a.validServiceKey(key) {
				c.Set(ctxAuthMode, host.AuthServiceKey)
				c.Next()
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid service key"})
			return
		}

		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			return
		}
		token := strings.TrimPrefix(authHeader, "Bearer ")
		subject, ok := a.validateJWT(token)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(ctxAuthMode, host.AuthJWT)
		c.Set(ctxSubject, subject)
		c.Next()
	}
}

// ModeFromContext reads back the AuthMode Require stamped for this request.
func ModeFromContext(c *gin.Context) host.AuthMode {
	if v, ok := c.Get(ctxAuthMode); ok {
		if m, ok := v.(host.AuthMode); ok {
			return m
		}
	}
	return host.AuthUnknown
}
