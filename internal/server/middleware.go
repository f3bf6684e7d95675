package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/abhisek/studyctl/internal/backend"
)

const participantKey = "studyctl_participant"

// requireParticipant binds the request to the participant named in the
// X-Participant-ID header.
func (s *Server) requireParticipant() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(ParticipantHeader)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Error: "missing " + ParticipantHeader + " header",
				Code:  CodeMissingIdentity,
			})
			return
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{
				Error:   "malformed participant id",
				Code:    CodeInvalidRequest,
				Details: err.Error(),
			})
			return
		}
		c.Set(participantKey, s.svc.ForParticipant(id.String()))
		c.Next()
	}
}

// participant returns the API bound by requireParticipant.
func participant(c *gin.Context) *backend.ParticipantAPI {
	return c.MustGet(participantKey).(*backend.ParticipantAPI)
}

// observe records request metrics and a debug log line per request.
func (s *Server) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		elapsed := time.Since(start)
		status := c.Writer.Status()
		s.metrics.ObserveRequest(route, c.Request.Method, strconv.Itoa(status), elapsed.Seconds())
		s.log.Debug("request",
			"method", c.Request.Method,
			"route", route,
			"status", status,
			"duration_ms", elapsed.Milliseconds())
	}
}
