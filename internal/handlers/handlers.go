package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"hornbill/internal/apperrors"
	"hornbill/internal/service"
)

// Handlers holds all HTTP handlers
type Handlers struct {
	services *service.Services
}

// New creates handlers with all dependencies
func New(services *service.Services) *Handlers {
	return &Handlers{services: services}
}

// accountID pulls the authenticated account from the gin context.
func accountID(c *gin.Context) (int64, bool) {
	v, exists := c.Get("account_id")
	if !exists {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}

// respondError maps domain errors to HTTP statuses. Unknown errors are a
// 500 with a generic body; the cause goes to the log at the call site.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	case errors.Is(err, apperrors.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
	case errors.Is(err, apperrors.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
	case errors.Is(err, apperrors.ErrSoldOut):
		c.JSON(http.StatusConflict, gin.H{"error": "Not enough capacity left"})
	case errors.Is(err, apperrors.ErrLimitExceeded):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Ticket count exceeds the purchase limit"})
	case errors.Is(err, apperrors.ErrAlreadyQueued):
		c.JSON(http.StatusConflict, gin.H{"error": "Already waiting for this slot"})
	case errors.Is(err, apperrors.ErrSessionUnknown):
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown or inactive session"})
	case errors.Is(err, apperrors.ErrEventNotOpen):
		c.JSON(http.StatusConflict, gin.H{"error": "Sales are not open"})
	case errors.Is(err, apperrors.ErrHoldExists):
		c.JSON(http.StatusConflict, gin.H{"error": "An active hold already exists for this slot"})
	case errors.Is(err, apperrors.ErrHoldExpired):
		c.JSON(http.StatusGone, gin.H{"error": "Hold expired"})
	case errors.Is(err, apperrors.ErrInvalidPhase):
		c.JSON(http.StatusConflict, gin.H{"error": "Operation not allowed in the current phase"})
	case errors.Is(err, apperrors.ErrChallengeRequired):
		c.JSON(http.StatusForbidden, gin.H{"error": "Challenge not solved"})
	case errors.Is(err, apperrors.ErrChallengeExpired):
		c.JSON(http.StatusGone, gin.H{"error": "Challenge expired"})
	case errors.Is(err, apperrors.ErrChallengeWrong):
		c.JSON(http.StatusForbidden, gin.H{"error": "Wrong answer"})
	case errors.Is(err, apperrors.ErrPaymentUnconfirmed):
		c.JSON(http.StatusConflict, gin.H{"error": "Payment was not confirmed in time"})
	case errors.Is(err, apperrors.ErrPaymentFailed):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": "Payment failed"})
	case errors.Is(err, apperrors.ErrFamilyMatchFailed):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Evidence does not match both parties"})
	case errors.Is(err, apperrors.ErrNoWalletAccount):
		c.JSON(http.StatusAccepted, gin.H{"status": "deferred", "reason": "Recipient has no wallet account yet"})
	case errors.Is(err, apperrors.ErrAlreadyResolved):
		c.JSON(http.StatusConflict, gin.H{"error": "Transfer already resolved"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
