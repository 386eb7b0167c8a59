package http

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/medimind/medimind-api/internal/domain/analysis"
	"github.com/medimind/medimind-api/internal/domain/auth"
	"github.com/medimind/medimind-api/internal/domain/profile"
	"github.com/medimind/medimind-api/internal/domain/records"
	"github.com/medimind/medimind-api/internal/infra/config"
	apperrors "github.com/medimind/medimind-api/pkg/errors"
)

// Handler wires the HTTP transport to domain services.
type Handler struct {
	cfg         *config.Config
	authSvc     auth.Service
	analysisSvc analysis.Service
	profileSvc  profile.Service
	recordsSvc  records.Service
	logger      *slog.Logger
}

// NewHandler constructs the root HTTP handler.
func NewHandler(cfg *config.Config, authSvc auth.Service, analysisSvc analysis.Service, profileSvc profile.Service, recordsSvc records.Service, logger *slog.Logger) *Handler {
	return &Handler{
		cfg:         cfg,
		authSvc:     authSvc,
		analysisSvc: analysisSvc,
		profileSvc:  profileSvc,
		recordsSvc:  recordsSvc,
		logger:      logger.With("component", "http.handler"),
	}
}

// Analyze submits symptoms for analysis and stores the result.
func (h *Handler) Analyze(c *gin.Context) {
	claims, ok := getClaims(c)
	if !ok {
		abortWithError(c, newHTTPError(http.StatusUnauthorized, "unauthorized", "missing token", nil))
		return
	}
	var req analysis.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, newHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	resp, err := h.analysisSvc.Analyze(c.Request.Context(), claims.UserID, req)
	if err != nil {
		status := http.StatusInternalServerError
		code := "analysis_failed"
		if apperrors.IsCode(err, "analysis_in_progress") {
			status = http.StatusConflict
			code = "analysis_in_progress"
		}
		abortWithError(c, newHTTPError(status, code, errMessage(err), err))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// AnalysisProgress reports the caller's in-flight analysis state.
func (h *Handler) AnalysisProgress(c *gin.Context) {
	claims, ok := getClaims(c)
	if !ok {
		abortWithError(c, newHTTPError(http.StatusUnauthorized, "unauthorized", "missing token", nil))
		return
	}
	c.JSON(http.StatusOK, h.analysisSvc.Progress(c.Request.Context(), claims.UserID))
}

// AnalysisHistory returns the caller's stored analyses.
func (h *Handler) AnalysisHistory(c *gin.Context) {
	claims, ok := getClaims(c)
	if !ok {
		abortWithError(c, newHTTPError(http.StatusUnauthorized, "unauthorized", "missing token", nil))
		return
	}
	history, err := h.analysisSvc.History(c.Request.Context(), claims.UserID)
	if err != nil {
		abortWithError(c, newHTTPError(http.StatusInternalServerError, "fetch_failed", errMessage(err), err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": history})
}

// GetProfile returns the caller's profile.
func (h *Handler) GetProfile(c *gin.Context) {
	claims, ok := getClaims(c)
	if !ok {
		abortWithError(c, newHTTPError(http.StatusUnauthorized, "unauthorized", "missing token", nil))
		return
	}
	p, err := h.profileSvc.Get(c.Request.Context(), claims.UserID)
	if err != nil {
		abortWithError(c, profileError(err))
		return
	}
	c.JSON(http.StatusOK, p)
}

// UpdateProfile applies a partial profile edit.
func (h *Handler) UpdateProfile(c *gin.Context) {
	claims, ok := getClaims(c)
	if !ok {
		abortWithError(c, newHTTPError(http.StatusUnauthorized, "unauthorized", "missing token", nil))
		return
	}
	var req profile.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, newHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	p, err := h.profileSvc.Update(c.Request.Context(), claims.UserID, req)
	if err != nil {
		abortWithError(c, profileError(err))
		return
	}
	c.JSON(http.StatusOK, p)
}

// UploadAvatar handles the multipart avatar submission.
func (h *Handler) UploadAvatar(c *gin.Context) {
	claims, ok := getClaims(c)
	if !ok {
		abortWithError(c, newHTTPError(http.StatusUnauthorized, "unauthorized", "missing token", nil))
		return
	}
	fileHeader, err := c.FormFile("avatar")
	if err != nil {
		abortWithError(c, newHTTPError(http.StatusBadRequest, "invalid_request", "avatar file is required", err))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		abortWithError(c, newHTTPError(http.StatusBadRequest, "invalid_request", "failed to read upload", err))
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		abortWithError(c, newHTTPError(http.StatusInternalServerError, "upload_failed", "failed to read file", err))
		return
	}
	resp, err := h.profileSvc.UploadAvatar(c.Request.Context(), claims.UserID, profile.AvatarRequest{
		Filename: fileHeader.Filename,
		MimeType: fileHeader.Header.Get("Content-Type"),
		Content:  data,
	})
	if err != nil {
		abortWithError(c, profileError(err))
		return
	}
	c.JSON(http.StatusOK, resp)
}

func profileError(err error) *HTTPError {
	status := http.StatusInternalServerError
	code := "profile_failed"
	switch {
	case apperrors.IsCode(err, "invalid_input"):
		status = http.StatusBadRequest
		code = "invalid_request"
	case apperrors.IsCode(err, "user_not_found"):
		status = http.StatusNotFound
		code = "not_found"
	}
	return newHTTPError(status, code, errMessage(err), err)
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
