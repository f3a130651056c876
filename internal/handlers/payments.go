package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"hornbill/internal/logger"
	"hornbill/internal/models"
)

// Payment handlers

// RequestPayment - POST /api/payments/request
func (h *Handlers) RequestPayment(c *gin.Context) {
	var req models.RequestPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	acct, ok := accountID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	resp, err := h.services.Payments.Request(c.Request.Context(), acct, &req)
	if err != nil {
		logger.WithContext(c.Request.Context()).Error("Failed to request payment", "error", err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// ConfirmPayment - POST /api/payments/confirm
// Blocks while the card gateway confirmation is polled.
func (h *Handlers) ConfirmPayment(c *gin.Context) {
	var req models.ConfirmPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	acct, ok := accountID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	resp, err := h.services.Payments.Confirm(c.Request.Context(), acct, req.PaymentID)
	if err != nil {
		logger.WithContext(c.Request.Context()).Error("Failed to confirm payment", "error", err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// DebitWallet - POST /api/payments/wallet/debit
func (h *Handlers) DebitWallet(c *gin.Context) {
	var req models.DebitWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	acct, ok := accountID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	resp, err := h.services.Payments.DebitWallet(c.Request.Context(), acct, &req)
	if err != nil {
		logger.WithContext(c.Request.Context()).Error("Failed to debit wallet", "error", err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
