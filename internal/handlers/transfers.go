package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"hornbill/internal/apperrors"
	"hornbill/internal/logger"
	"hornbill/internal/models"
)

// Transfer handlers

// RequestTransfer - POST /api/transfers
func (h *Handlers) RequestTransfer(c *gin.Context) {
	var req models.RequestTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	acct, ok := accountID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	resp, err := h.services.Transfers.Request(c.Request.Context(), acct, &req)
	if err != nil {
		// A deferred FRIEND transfer is an accepted outcome, not a failure.
		if !errors.Is(err, apperrors.ErrNoWalletAccount) {
			logger.WithContext(c.Request.Context()).Error("Failed to request transfer", "error", err)
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// RespondTransfer - PATCH /api/transfers/respond
func (h *Handlers) RespondTransfer(c *gin.Context) {
	var req models.RespondTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	acct, ok := accountID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	if err := h.services.Transfers.Respond(c.Request.Context(), acct, &req); err != nil {
		logger.WithContext(c.Request.Context()).Error("Failed to respond to transfer", "error", err)
		respondError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

// TransferInbox - GET /api/transfers/inbox
func (h *Handlers) TransferInbox(c *gin.Context) {
	acct, ok := accountID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	items, err := h.services.Transfers.Inbox(c.Request.Context(), acct)
	if err != nil {
		logger.WithContext(c.Request.Context()).Error("Failed to list transfer inbox", "error", err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}
