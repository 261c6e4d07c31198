package realtime

import (
	"context"
	"encoding/json"
	"log"

	"quizroom/models"

	"github.com/redis/go-redis/v9"
)

// Notifier publishes room events over Redis pub/sub so that hubs on other
// process instances can fan them out to their connected clients. Publishing
// never fails the request that triggered it: a dropped event costs at most
// one poll interval of latency on the client.
type Notifier struct {
	client *redis.Client
}

func NewNotifier(client *redis.Client) *Notifier {
	return &Notifier{client: client}
}

func (n *Notifier) Publish(ctx context.Context, code, eventType string, participants []models.Participant) {
	data, err := json.Marshal(Event{
		Type:         eventType,
		Participants: participants,
	})
	if err != nil {
		log.Printf("error marshaling %s event for room %s: %v", eventType, code, err)
		return
	}

	if err := n.client.Publish(ctx, ChannelFor(code), data).Err(); err != nil {
		log.Printf("error publishing %s event for room %s: %v", eventType, code, err)
	}
}
