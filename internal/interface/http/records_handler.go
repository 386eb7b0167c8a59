package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/medimind/medimind-api/internal/domain/records"
	apperrors "github.com/medimind/medimind-api/pkg/errors"
)

// RecordsStats returns the dashboard counters.
func (h *Handler) RecordsStats(c *gin.Context) {
	stats, err := h.recordsSvc.Stats(c.Request.Context())
	if err != nil {
		abortWithError(c, recordsError(err))
		return
	}
	c.JSON(http.StatusOK, stats)
}

// RecentAnalyses returns the recent-analyses feed.
func (h *Handler) RecentAnalyses(c *gin.Context) {
	var query records.RecentQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		abortWithError(c, newHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	feed, err := h.recordsSvc.Recent(c.Request.Context(), query)
	if err != nil {
		abortWithError(c, recordsError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": feed})
}

// Patients returns the searchable patient roster.
func (h *Handler) Patients(c *gin.Context) {
	patients, err := h.recordsSvc.Patients(c.Request.Context(), c.Query("search"))
	if err != nil {
		abortWithError(c, recordsError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": patients})
}

// Patient returns one patient's full record view.
func (h *Handler) Patient(c *gin.Context) {
	patientID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		abortWithError(c, newHTTPError(http.StatusBadRequest, "invalid_request", "invalid patient id", err))
		return
	}
	detail, err := h.recordsSvc.Patient(c.Request.Context(), patientID)
	if err != nil {
		abortWithError(c, recordsError(err))
		return
	}
	c.JSON(http.StatusOK, detail)
}

// SevereCases returns the materialized severe-case list.
func (h *Handler) SevereCases(c *gin.Context) {
	cases, err := h.recordsSvc.SevereCases(c.Request.Context())
	if err != nil {
		abortWithError(c, recordsError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": cases})
}

func recordsError(err error) *HTTPError {
	status := http.StatusInternalServerError
	code := "records_failed"
	if apperrors.IsCode(err, "patient_not_found") {
		status = http.StatusNotFound
		code = "not_found"
	}
	return newHTTPError(status, code, errMessage(err), err)
}
