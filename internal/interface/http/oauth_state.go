package http

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
)

// The Google sign-in flow keeps its CSRF state and PKCE verifier in a short
// lived HttpOnly cookie between the redirect out and the callback. The cookie
// value is base64 over a small JSON pair; it carries no secrets beyond the
// one-shot verifier.
const (
	oauthStateCookieName = "oauth_state"
	oauthStateMaxAge     = 300
)

type oauthHandshake struct {
	State        string `json:"state"`
	CodeVerifier string `json:"verifier"`
}

func (h oauthHandshake) valid() bool {
	return h.State != "" && h.CodeVerifier != ""
}

func (h oauthHandshake) encode() string {
	data, _ := json.Marshal(h)
	return base64.RawURLEncoding.EncodeToString(data)
}

func decodeOAuthHandshake(value string) (oauthHandshake, bool) {
	data, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return oauthHandshake{}, false
	}
	var h oauthHandshake
	if err := json.Unmarshal(data, &h); err != nil || !h.valid() {
		return oauthHandshake{}, false
	}
	return h, true
}

func setOAuthStateCookie(c *gin.Context, state, codeVerifier string) {
	handshake := oauthHandshake{State: state, CodeVerifier: codeVerifier}
	secure := c.Request.TLS != nil
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(oauthStateCookieName, handshake.encode(), oauthStateMaxAge, "/", "", secure, true)
}

func clearOAuthStateCookie(c *gin.Context) {
	secure := c.Request.TLS != nil
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(oauthStateCookieName, "", -1, "/", "", secure, true)
}

func readOAuthStateCookie(c *gin.Context) (oauthHandshake, bool) {
	value, err := c.Cookie(oauthStateCookieName)
	if err != nil || value == "" {
		return oauthHandshake{}, false
	}
	return decodeOAuthHandshake(value)
}
