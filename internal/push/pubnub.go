package push

import (
	"context"
	"fmt"

	pubnub "github.com/pubnub/go/v7"
)

type Config struct {
	PublishKey   string
	SubscribeKey string
	SecretKey    string
	UserID       string
}

// PubNubPublisher publishes queue and transfer notifications over PubNub
// channels. Clients attach with a bearer credential at connect time and
// subscribe to their personal channel plus the slot broadcast channel.
type PubNubPublisher struct {
	pn *pubnub.PubNub
}

func NewPubNubPublisher(cfg Config) *PubNubPublisher {
	pnCfg := pubnub.NewConfigWithUserId(pubnub.UserId(cfg.UserID))
	pnCfg.PublishKey = cfg.PublishKey
	pnCfg.SubscribeKey = cfg.SubscribeKey
	if cfg.SecretKey != "" {
		pnCfg.SecretKey = cfg.SecretKey
	}

	return &PubNubPublisher{pn: pubnub.NewPubNub(pnCfg)}
}

func (p *PubNubPublisher) Publish(ctx context.Context, channel string, message any) error {
	_, status, err := p.pn.Publish().
		Channel(channel).
		Message(message).
		Execute()
	if err != nil {
		return fmt.Errorf("pubnub publish to %s: %w", channel, err)
	}
	if status.Error != nil {
		return fmt.Errorf("pubnub publish to %s: status %d", channel, status.StatusCode)
	}
	return nil
}
