package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/abhisek/studyctl/internal/study"
)

func (s *Server) handleVersion(c *gin.Context) {
	c.JSON(http.StatusOK, VersionResponse{APIVersion: APIVersion, Build: s.build})
}

// handleRegister handles POST /api/participants.
//
// Response:
//
//	201 Created: study.Participant
//	400 Bad Request: unknown modality
func (s *Server) handleRegister(c *gin.Context) {
	var req RegisterRequest
	// An empty body means "assign a modality".
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			s.badBody(c, err)
			return
		}
	}
	var modality *study.Modality
	if req.Modality != "" {
		m := study.Modality(req.Modality)
		modality = &m
	}
	p, err := s.svc.Register(c.Request.Context(), modality)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (s *Server) handleProfile(c *gin.Context) {
	p, err := participant(c).GetProfile(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) handleConsent(c *gin.Context) {
	if err := participant(c).RecordConsent(c.Request.Context()); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleAssessment(c *gin.Context) {
	kind := study.AssessmentKind(c.Param("kind"))
	if err := participant(c).CompleteAssessment(c.Request.Context(), kind); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleInteractionComplete(c *gin.Context) {
	if err := participant(c).MarkInteractionComplete(c.Request.Context()); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleCostLimits(c *gin.Context) {
	limits, err := participant(c).GetCostLimits(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, limits)
}

func (s *Server) handleStartSession(c *gin.Context) {
	sess, err := participant(c).StartSession(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (s *Server) handleGetSession(c *gin.Context) {
	sess, err := participant(c).GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

// handleUpdatePhase handles PUT /api/sessions/:id/phase.
//
// Response:
//
//	200 OK: study.Session
//	400 Bad Request: unknown phase or a skipped/backward transition
//	403 Forbidden: session owned by another participant
//	409 Conflict: session already completed
func (s *Server) handleUpdatePhase(c *gin.Context) {
	var req PhaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badBody(c, err)
		return
	}
	sess, err := participant(c).UpdatePhase(c.Request.Context(), c.Param("id"), study.Phase(req.Phase))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (s *Server) handleCompleteSession(c *gin.Context) {
	sess, err := participant(c).CompleteSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (s *Server) handleUpdateTime(c *gin.Context) {
	var req TimeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badBody(c, err)
		return
	}
	update := study.TimeUpdate{TimeSpent: *req.TimeSpent, IsPaused: req.IsPaused}
	if err := participant(c).UpdateSessionTime(c.Request.Context(), c.Param("id"), update); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleLogEvent(c *gin.Context) {
	var req LogEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badBody(c, err)
		return
	}
	ev := study.LogEvent{LogType: req.LogType, EventData: req.EventData}
	if err := participant(c).LogEvent(c.Request.Context(), c.Param("id"), ev); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusCreated)
}

func (s *Server) handleStartConversation(c *gin.Context) {
	if err := participant(c).StartConversation(c.Request.Context(), c.Param("id")); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleEndConversation(c *gin.Context) {
	if err := participant(c).EndConversation(c.Request.Context(), c.Param("id")); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// handleExchange handles POST /api/sessions/:id/exchanges.
//
// Response:
//
//	200 OK: study.ExchangeResponse
//	400 Bad Request: empty or oversized message, wrong modality
//	429 Too Many Requests: spending cap reached, body carries the limits
//	503 Service Unavailable: assistant not configured or provider down
func (s *Server) handleExchange(c *gin.Context) {
	var req ExchangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badBody(c, err)
		return
	}
	resp, err := participant(c).SendExchange(c.Request.Context(), study.ExchangeRequest{
		Message:   req.Message,
		SessionID: c.Param("id"),
		Turn:      req.Turn,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
