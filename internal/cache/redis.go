package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"hornbill/internal/models"
)

type Config struct {
	Addr     string
	Password string
	DB       int
}

// Client wraps the Redis connection used for the session registry, the
// position poll fallback and the anti-automation challenge store. Queue
// ordering itself lives in the admission actors; Redis holds the state a
// client may read back after a reconnect or a process restart.
type Client struct {
	rdb *redis.Client
}

func NewClient(cfg Config) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		DialTimeout:  5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// NewClientFromRedis wraps an existing connection. Tests use this with a
// redismock client.
func NewClientFromRedis(rdb *redis.Client) *Client {
	return &Client{rdb: rdb}
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

func sessionKey(sessionID string) string   { return "session:" + sessionID }
func positionKey(sessionID string) string  { return "position:" + sessionID }
func promotedKey(sessionID string) string  { return "promoted:" + sessionID }
func challengeKey(sessionID string) string { return "challenge:" + sessionID }
func passedKey(sessionID string) string    { return "challenge_passed:" + sessionID }

// SaveSession persists the registry entry for one waiting session.
func (c *Client) SaveSession(ctx context.Context, s *models.WaitingSession, ttl time.Duration) error {
	key := sessionKey(s.SessionID)
	err := c.rdb.HSet(ctx, key,
		"account_id", s.AccountID,
		"event_id", s.EventID,
		"showtime", s.Showtime.UTC().Format(time.RFC3339),
		"joined_at", s.JoinedAt.Unix(),
		"last_heartbeat", s.LastHeartbeatAt.Unix(),
	).Err()
	if err != nil {
		return err
	}
	return c.rdb.Expire(ctx, key, ttl).Err()
}

// GetSession loads a registry entry; returns nil when the session does not
// exist.
func (c *Client) GetSession(ctx context.Context, sessionID string) (*models.WaitingSession, error) {
	vals, err := c.rdb.HGetAll(ctx, sessionKey(sessionID)).Result()
	if err != nil {
		return nil, err
	}
	if len(vals) == 0 {
		return nil, nil
	}

	accountID, _ := strconv.ParseInt(vals["account_id"], 10, 64)
	eventID, _ := strconv.ParseInt(vals["event_id"], 10, 64)
	showtime, err := time.Parse(time.RFC3339, vals["showtime"])
	if err != nil {
		return nil, fmt.Errorf("corrupt session %s: %w", sessionID, err)
	}
	joined, _ := strconv.ParseInt(vals["joined_at"], 10, 64)
	heartbeat, _ := strconv.ParseInt(vals["last_heartbeat"], 10, 64)

	return &models.WaitingSession{
		SessionID:       sessionID,
		AccountID:       accountID,
		EventID:         eventID,
		Showtime:        showtime,
		JoinedAt:        time.Unix(joined, 0),
		LastHeartbeatAt: time.Unix(heartbeat, 0),
	}, nil
}

func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	return c.rdb.Del(ctx, sessionKey(sessionID), positionKey(sessionID)).Err()
}

// TouchHeartbeat refreshes the liveness timestamp and the registry TTL.
func (c *Client) TouchHeartbeat(ctx context.Context, sessionID string, now time.Time, ttl time.Duration) error {
	key := sessionKey(sessionID)
	if err := c.rdb.HSet(ctx, key, "last_heartbeat", now.Unix()).Err(); err != nil {
		return err
	}
	return c.rdb.Expire(ctx, key, ttl).Err()
}

// SetPosition stores the position snapshot served by the poll fallback.
// Short TTL: a stale snapshot is worse than none.
func (c *Client) SetPosition(ctx context.Context, sessionID string, ahead int) error {
	return c.rdb.Set(ctx, positionKey(sessionID), ahead, 10*time.Second).Err()
}

// GetPosition returns (ahead, found).
func (c *Client) GetPosition(ctx context.Context, sessionID string) (int, bool, error) {
	v, err := c.rdb.Get(ctx, positionKey(sessionID)).Int()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return v, true, nil
}

// MarkPromoted records that a session was admitted to booking. The marker
// carries its own TTL: the admitted client must reach SelectSlot within it.
func (c *Client) MarkPromoted(ctx context.Context, sessionID string, ttl time.Duration) error {
	return c.rdb.Set(ctx, promotedKey(sessionID), 1, ttl).Err()
}

func (c *Client) IsPromoted(ctx context.Context, sessionID string) (bool, error) {
	_, err := c.rdb.Get(ctx, promotedKey(sessionID)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// SetChallenge stores the expected answer for a session's challenge.
func (c *Client) SetChallenge(ctx context.Context, sessionID, answer string, ttl time.Duration) error {
	return c.rdb.Set(ctx, challengeKey(sessionID), answer, ttl).Err()
}

// TakeChallenge consumes the stored answer. Returns ("", false) when the
// challenge never existed or already expired.
func (c *Client) TakeChallenge(ctx context.Context, sessionID string) (string, bool, error) {
	v, err := c.rdb.GetDel(ctx, challengeKey(sessionID)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// MarkChallengePassed records a solved challenge for the session.
func (c *Client) MarkChallengePassed(ctx context.Context, sessionID string, ttl time.Duration) error {
	return c.rdb.Set(ctx, passedKey(sessionID), 1, ttl).Err()
}

// ConsumeChallengePassed takes the solved marker; each solved challenge
// admits exactly one SelectSlot.
func (c *Client) ConsumeChallengePassed(ctx context.Context, sessionID string) (bool, error) {
	_, err := c.rdb.GetDel(ctx, passedKey(sessionID)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
