package push

import (
	"context"
	"strconv"
)

// Publisher delivers push messages to a named channel. The admission queue
// publishes every message to a personal channel and to the slot's broadcast
// channel; delivery is at-least-once to either and consumers de-duplicate
// by session ID.
type Publisher interface {
	Publish(ctx context.Context, channel string, message any) error
}

// PersonalChannel is the per-session destination.
func PersonalChannel(sessionID string) string {
	return "session-" + sessionID
}

// AccountChannel is the destination for account-scoped notices such as
// transfer updates.
func AccountChannel(accountID int64) string {
	return "account-" + strconv.FormatInt(accountID, 10)
}

// BroadcastChannel is the coarse-grained per-slot destination.
func BroadcastChannel(showKey string) string {
	return "show-" + showKey
}
