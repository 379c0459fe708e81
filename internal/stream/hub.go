// Package stream pushes itinerary events to websocket viewers of a trip.
package stream

import (
	"context"
	"strings"
	"sync"

	"backend-travelplanner/internal/logging"

	"github.com/redis/go-redis/v9"
)

const (
	channelPrefix  = "itinerary:"
	channelSuffix  = ":events"
	channelPattern = channelPrefix + "*" + channelSuffix
)

// Hub tracks connected viewers per trip. With Redis every event goes
// through the pattern subscription, so each instance delivers it once to
// its own viewers; without Redis delivery is local.
type Hub struct {
	redis   *redis.Client
	pubsub  *redis.PubSub
	clients map[string]map[*Client]struct{}
	mu      sync.RWMutex
	done    chan struct{}
}

type Client struct {
	TripID string
	Send   chan []byte
}

func NewHub(ctx context.Context, redisClient *redis.Client) *Hub {
	h := &Hub{
		clients: map[string]map[*Client]struct{}{},
		done:    make(chan struct{}),
	}
	if redisClient == nil {
		close(h.done)
		return h
	}

	pubsub := redisClient.PSubscribe(ctx, channelPattern)
	if _, err := pubsub.Receive(ctx); err != nil {
		logging.Warn().Err(err).Msg("redis subscribe failed, delivering events locally")
		_ = pubsub.Close()
		close(h.done)
		return h
	}
	h.redis = redisClient
	h.pubsub = pubsub
	go h.forward()
	return h
}

func (h *Hub) Register(tripID string) *Client {
	client := &Client{
		TripID: tripID,
		Send:   make(chan []byte, 64),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[tripID] == nil {
		h.clients[tripID] = map[*Client]struct{}{}
	}
	h.clients[tripID][client] = struct{}{}
	return client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	tripClients, ok := h.clients[client.TripID]
	if !ok {
		return
	}
	if _, ok := tripClients[client]; !ok {
		return
	}
	delete(tripClients, client)
	if len(tripClients) == 0 {
		delete(h.clients, client.TripID)
	}
	close(client.Send)
}

// Publish sends payload to every viewer of tripID.
func (h *Hub) Publish(tripID string, payload []byte) {
	if h.redis != nil {
		err := h.redis.Publish(context.Background(), redisChannel(tripID), payload).Err()
		if err == nil {
			return
		}
		logging.Warn().Err(err).Str("trip_id", tripID).Msg("redis publish failed, delivering locally")
	}
	h.deliver(tripID, payload)
}

// Close stops the Redis subscription.
func (h *Hub) Close() error {
	if h.pubsub == nil {
		return nil
	}
	err := h.pubsub.Close()
	<-h.done
	return err
}

func (h *Hub) deliver(tripID string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[tripID] {
		select {
		case client.Send <- payload:
		default:
			logging.Debug().Str("trip_id", tripID).Msg("viewer too slow, dropping event")
		}
	}
}

func (h *Hub) forward() {
	defer close(h.done)
	for msg := range h.pubsub.Channel() {
		tripID := tripIDFromChannel(msg.Channel)
		if tripID == "" {
			continue
		}
		h.deliver(tripID, []byte(msg.Payload))
	}
}

func redisChannel(tripID string) string {
	return channelPrefix + tripID + channelSuffix
}

func tripIDFromChannel(ch string) string {
	if !strings.HasPrefix(ch, channelPrefix) || !strings.HasSuffix(ch, channelSuffix) {
		return ""
	}
	if len(ch) <= len(channelPrefix)+len(channelSuffix) {
		return ""
	}
	return ch[len(channelPrefix) : len(ch)-len(channelSuffix)]
}
