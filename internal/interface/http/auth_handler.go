package http

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/medimind/medimind-api/internal/domain/auth"
	apperrors "github.com/medimind/medimind-api/pkg/errors"
)

// Register creates a new account.
func (h *Handler) Register(c *gin.Context) {
	var req auth.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, newHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	view, err := h.authSvc.Register(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, authError(err))
		return
	}
	c.JSON(http.StatusCreated, view)
}

// Login issues access and refresh tokens.
func (h *Handler) Login(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, newHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	resp, err := h.authSvc.Login(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, authError(err))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Refresh exchanges a refresh token for a new token pair.
func (h *Handler) Refresh(c *gin.Context) {
	var req auth.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, newHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	resp, err := h.authSvc.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		abortWithError(c, authError(err))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ForgotPassword starts a password reset. The response is identical whether
// or not the email exists.
func (h *Handler) ForgotPassword(c *gin.Context) {
	var req auth.ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, newHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	if err := h.authSvc.ForgotPassword(c.Request.Context(), req); err != nil {
		abortWithError(c, authError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "if the account exists, a reset link has been issued"})
}

// ResetPassword completes a password reset with a one-time token.
func (h *Handler) ResetPassword(c *gin.Context) {
	var req auth.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, newHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	if err := h.authSvc.ResetPassword(c.Request.Context(), req); err != nil {
		abortWithError(c, authError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "password updated"})
}

// GoogleStart begins the PKCE sign-in flow.
func (h *Handler) GoogleStart(c *gin.Context) {
	state, verifier, challenge, err := auth.NewOAuthState()
	if err != nil {
		abortWithError(c, newHTTPError(http.StatusInternalServerError, "auth_failed", "failed to start sign-in", err))
		return
	}
	authURL, err := h.authSvc.GoogleAuthURL(c.Request.Context(), state, challenge)
	if err != nil {
		abortWithError(c, authError(err))
		return
	}
	setOAuthStateCookie(c, state, verifier)
	c.Redirect(http.StatusFound, authURL)
}

// GoogleCallback completes the PKCE sign-in flow.
func (h *Handler) GoogleCallback(c *gin.Context) {
	cookie, ok := readOAuthStateCookie(c)
	if !ok {
		abortWithError(c, newHTTPError(http.StatusBadRequest, "invalid_request", "missing or expired sign-in state", nil))
		return
	}
	clearOAuthStateCookie(c)
	if state := c.Query("state"); state == "" || state != cookie.State {
		abortWithError(c, newHTTPError(http.StatusBadRequest, "invalid_request", "state mismatch", nil))
		return
	}
	resp, err := h.authSvc.GoogleCallback(c.Request.Context(), c.Query("code"), cookie.CodeVerifier)
	if err != nil {
		abortWithError(c, authError(err))
		return
	}
	redirect := strings.TrimSpace(h.cfg.Auth.Google.PostLoginRedirectURL)
	if redirect == "" {
		c.JSON(http.StatusOK, resp)
		return
	}
	// Tokens travel in the fragment so they never reach the frontend's server logs.
	fragment := url.Values{}
	fragment.Set("token", resp.Token)
	fragment.Set("refreshToken", resp.RefreshToken)
	c.Redirect(http.StatusFound, redirect+"#"+fragment.Encode())
}

// Logout revokes the linked Google refresh token when one exists.
func (h *Handler) Logout(c *gin.Context) {
	claims, ok := getClaims(c)
	if !ok {
		abortWithError(c, newHTTPError(http.StatusUnauthorized, "unauthorized", "missing token", nil))
		return
	}
	if err := h.authSvc.Logout(c.Request.Context(), claims.UserID); err != nil {
		abortWithError(c, authError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

func authError(err error) *HTTPError {
	status := http.StatusInternalServerError
	code := "auth_failed"
	switch {
	case apperrors.IsCode(err, "invalid_input"), apperrors.IsCode(err, "invalid_request"):
		status = http.StatusBadRequest
		code = "invalid_request"
	case apperrors.IsCode(err, "invalid_credentials"):
		status = http.StatusUnauthorized
		code = "invalid_credentials"
	case apperrors.IsCode(err, "invalid_token"):
		status = http.StatusUnauthorized
		code = "invalid_token"
	case apperrors.IsCode(err, "email_exists"):
		status = http.StatusConflict
		code = "email_exists"
	case apperrors.IsCode(err, "user_not_found"):
		status = http.StatusNotFound
		code = "not_found"
	case apperrors.IsCode(err, "auth_not_configured"):
		status = http.StatusServiceUnavailable
		code = "auth_not_configured"
	case apperrors.IsCode(err, "oauth_exchange_failed"):
		status = http.StatusBadGateway
		code = "oauth_exchange_failed"
	case apperrors.IsCode(err, "account_linking_disabled"):
		status = http.StatusConflict
		code = "account_linking_disabled"
	}
	return newHTTPError(status, code, errMessage(err), err)
}
