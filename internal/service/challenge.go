package service

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/google/uuid"

	"hornbill/internal/apperrors"
	"hornbill/internal/models"
)

// ChallengeService runs the anti-automation gate in front of SelectSlot.
// A challenge is solved at most once per session and carries its own short
// expiry, independent of the reservation hold's deadline. Expiry closes the
// booking attempt entirely; the client has to rejoin.
type ChallengeService struct {
	store    ChallengeStore
	ttl      time.Duration
	passTTL  time.Duration
	now      func() time.Time
	randInts func() (int, int)
}

func NewChallengeService(store ChallengeStore, ttl, passTTL time.Duration) *ChallengeService {
	return &ChallengeService{
		store:   store,
		ttl:     ttl,
		passTTL: passTTL,
		now:     time.Now,
		randInts: func() (int, int) {
			return 10 + rand.Intn(90), 10 + rand.Intn(90)
		},
	}
}

// Issue creates a fresh challenge for the session, replacing any pending
// one.
func (s *ChallengeService) Issue(ctx context.Context, sessionID string) (*models.ChallengeResponse, error) {
	a, b := s.randInts()
	answer := strconv.Itoa(a + b)

	if err := s.store.SetChallenge(ctx, sessionID, answer, s.ttl); err != nil {
		return nil, fmt.Errorf("failed to store challenge: %w", err)
	}

	return &models.ChallengeResponse{
		ChallengeID: uuid.New().String(),
		Prompt:      fmt.Sprintf("What is %d + %d?", a, b),
		ExpiresAt:   s.now().Add(s.ttl),
	}, nil
}

// Solve consumes the pending challenge. A wrong answer also consumes it;
// the client must request a new one.
func (s *ChallengeService) Solve(ctx context.Context, sessionID, answer string) error {
	expected, ok, err := s.store.TakeChallenge(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to load challenge: %w", err)
	}
	if !ok {
		return apperrors.ErrChallengeExpired
	}
	if answer != expected {
		return apperrors.ErrChallengeWrong
	}

	return s.store.MarkChallengePassed(ctx, sessionID, s.passTTL)
}

// Consume takes the solved marker for a SelectSlot attempt.
func (s *ChallengeService) Consume(ctx context.Context, sessionID string) error {
	ok, err := s.store.ConsumeChallengePassed(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to check challenge: %w", err)
	}
	if !ok {
		return apperrors.ErrChallengeRequired
	}
	return nil
}
