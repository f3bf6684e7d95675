package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/abhisek/studyctl/internal/study"
)

// writeError maps a backend error onto a status code and error body.
func (s *Server) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	body := ErrorResponse{Error: err.Error(), Code: CodeInternal}

	var cle *study.CostLimitError
	switch {
	case errors.As(err, &cle):
		status = http.StatusTooManyRequests
		body.Code = CodeCostLimit
		body.Error = cle.Error()
		limits := cle.Limits
		body.Limits = &limits
	case errors.Is(err, study.ErrForbidden):
		status = http.StatusForbidden
		body.Code = CodeForbidden
	case errors.Is(err, study.ErrSessionCompleted):
		status = http.StatusConflict
		body.Code = CodeSessionCompleted
	case errors.Is(err, study.ErrNotFound):
		status = http.StatusNotFound
		body.Code = CodeNotFound
	case errors.Is(err, study.ErrInvalidRequest):
		status = http.StatusBadRequest
		body.Code = CodeInvalidRequest
	case errors.Is(err, study.ErrUnavailable):
		status = http.StatusServiceUnavailable
		body.Code = CodeUnavailable
	}

	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", "route", c.FullPath(), "error", err)
	} else {
		s.log.Info("request rejected", "route", c.FullPath(), "status", status, "error", err)
	}
	c.AbortWithStatusJSON(status, body)
}

// badBody reports a payload that failed binding.
func (s *Server) badBody(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{
		Error:   "invalid request body",
		Code:    CodeInvalidRequest,
		Details: err.Error(),
	})
}
