package api

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// adminSessionTTL bounds how long an issued admin token stays valid.
const adminSessionTTL = 12 * time.Hour

// adminAuth is the thin credential-check stub spec §1 scopes out of the
// core: it signs an opaque bearer token with an HMAC over the
// configured secret rather than pulling in a JWT library for a single
// admin-only login check (per spec §1, the JWT subsystem itself is an
// external collaborator specified only at its interface).
type adminAuth struct {
	username string
	password string
	secret   []byte
}

func newAdminAuth(username, password, secret string) *adminAuth {
	if secret == "" {
		secret = randomSecret()
	}
	return &adminAuth{username: username, password: password, secret: []byte(secret)}
}

func randomSecret() string {
	buf := make([]byte, 32)
	_, _ = rand.Read(buf)
	return base64.RawURLEncoding.EncodeToString(buf)
}

func (a *adminAuth) issueToken() string {
	expiresAt := time.Now().Add(adminSessionTTL).Unix()
	payload := strconv.FormatInt(expiresAt, 10)
	sig := a.sign(payload)
	return payload + "." + sig
}

func (a *adminAuth) sign(payload string) string {
	mac := hmac.New(sha256.New, a.secret)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func (a *adminAuth) verify(token string) bool {
	parts := strings.SplitN(token, ".", 2)
	if len(parts) != 2 {
		return false
	}
	payload, sig := parts[0], parts[1]
	expected := a.sign(payload)
	if subtle.ConstantTimeCompare([]byte(sig), []byte(expected)) != 1 {
		return false
	}
	expiresAt, err := strconv.ParseInt(payload, 10, 64)
	if err != nil {
		return false
	}
	return time.Now().Unix() < expiresAt
}

func (a *adminAuth) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		if token == "" || !a.verify(token) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleAdminLogin(c *gin.Context) {
	var req loginRequest
	if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if subtle.ConstantTimeCompare([]byte(req.Username), []byte(s.admin.username)) != 1 ||
		subtle.ConstantTimeCompare([]byte(req.Password), []byte(s.admin.password)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": s.admin.issueToken()})
}
