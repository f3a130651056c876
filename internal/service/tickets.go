package service

import (
	"context"
	"fmt"

	"hornbill/internal/models"
)

// TicketService serves the owner's issued-ticket listing. Transfers mutate
// ownership directly, so this is a plain read model.
type TicketService struct {
	tickets TicketStore
}

func NewTicketService(tickets TicketStore) *TicketService {
	return &TicketService{tickets: tickets}
}

func (s *TicketService) ListByOwner(ctx context.Context, ownerID int64) ([]models.TicketItem, error) {
	tickets, err := s.tickets.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}

	items := make([]models.TicketItem, 0, len(tickets))
	for _, t := range tickets {
		items = append(items, models.TicketItem{
			ID:       t.ID,
			EventID:  t.EventID,
			Showtime: t.Showtime,
			Token:    t.Token,
			IssuedAt: t.IssuedAt,
		})
	}
	return items, nil
}
