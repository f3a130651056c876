package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"hornbill/internal/logger"
	"hornbill/internal/models"
	"hornbill/internal/push"
)

// Waiting room handlers

// JoinQueue - POST /api/queue/join
func (h *Handlers) JoinQueue(c *gin.Context) {
	var req models.JoinQueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	acct, ok := accountID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	session, ahead, err := h.services.Admission.Join(c.Request.Context(), req.EventID, req.Showtime, acct)
	if err != nil {
		logger.WithContext(c.Request.Context()).Error("Failed to join queue", "error", err)
		respondError(c, err)
		return
	}

	cfg := h.services.Admission.SilenceContract()
	c.JSON(http.StatusCreated, models.JoinQueueResponse{
		SessionID:        session.SessionID,
		PeopleAhead:      ahead,
		PersonalChannel:  push.PersonalChannel(session.SessionID),
		BroadcastChannel: push.BroadcastChannel(models.ShowKey(req.EventID, req.Showtime)),
		SilenceTimeoutMS: int(cfg.SilenceTimeout.Milliseconds()),
		SilencePolicy:    cfg.SilencePolicy,
	})
}

// Heartbeat - POST /api/queue/heartbeat
func (h *Handlers) Heartbeat(c *gin.Context) {
	var req models.HeartbeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.services.Admission.Heartbeat(c.Request.Context(), req.SessionID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

// ExitQueue - POST /api/queue/exit
func (h *Handlers) ExitQueue(c *gin.Context) {
	var req models.ExitQueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.services.Admission.Exit(c.Request.Context(), req.SessionID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

// QueuePosition - GET /api/queue/position?session_id=...
// Poll fallback for clients whose push subscription went quiet.
func (h *Handlers) QueuePosition(c *gin.Context) {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id is required"})
		return
	}

	resp, err := h.services.Admission.Position(c.Request.Context(), sessionID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// IssueChallenge - POST /api/challenge
func (h *Handlers) IssueChallenge(c *gin.Context) {
	var req models.ChallengeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.services.Challenges.Issue(c.Request.Context(), req.SessionID)
	if err != nil {
		logger.WithContext(c.Request.Context()).Error("Failed to issue challenge", "error", err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// SolveChallenge - POST /api/challenge/solve
func (h *Handlers) SolveChallenge(c *gin.Context) {
	var req models.SolveChallengeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.services.Challenges.Solve(c.Request.Context(), req.SessionID, req.Answer); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusOK)
}
