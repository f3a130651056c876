package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"hornbill/internal/logger"
	"hornbill/internal/models"
)

// Slot and reservation handlers

// QuerySlots - GET /api/events/:id/slots
func (h *Handlers) QuerySlots(c *gin.Context) {
	eventID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid event id"})
		return
	}

	resp, err := h.services.Slots.Query(c.Request.Context(), eventID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// SelectSlot - POST /api/reservations
func (h *Handlers) SelectSlot(c *gin.Context) {
	var req models.SelectSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	acct, ok := accountID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	resp, err := h.services.Reservations.SelectSlot(c.Request.Context(), acct, &req)
	if err != nil {
		logger.WithContext(c.Request.Context()).Error("Failed to select slot", "error", err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// SelectDelivery - PATCH /api/reservations/delivery
func (h *Handlers) SelectDelivery(c *gin.Context) {
	var req models.SelectDeliveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	acct, ok := accountID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	if err := h.services.Reservations.SelectDelivery(c.Request.Context(), acct, &req); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

// Finalize - POST /api/reservations/finalize
// The Idempotency-Key header makes retried finalizes return the original
// tickets.
func (h *Handlers) Finalize(c *gin.Context) {
	var req models.FinalizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	key := c.GetHeader("Idempotency-Key")
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Idempotency-Key header is required"})
		return
	}

	acct, ok := accountID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	resp, err := h.services.Reservations.Finalize(c.Request.Context(), acct, req.ReservationNumber, key)
	if err != nil {
		logger.WithContext(c.Request.Context()).Error("Failed to finalize reservation", "error", err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ReleaseHold - PATCH /api/reservations/release
func (h *Handlers) ReleaseHold(c *gin.Context) {
	var req models.ReleaseHoldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	acct, ok := accountID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	if err := h.services.Reservations.Release(c.Request.Context(), acct, req.ReservationNumber); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

// ListTickets - GET /api/tickets
func (h *Handlers) ListTickets(c *gin.Context) {
	acct, ok := accountID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	items, err := h.services.Tickets.ListByOwner(c.Request.Context(), acct)
	if err != nil {
		logger.WithContext(c.Request.Context()).Error("Failed to list tickets", "error", err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}
