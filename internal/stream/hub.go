package stream

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"backend-taputapu/internal/logging"

	"github.com/redis/go-redis/v9"
)

const (
	channelPrefix  = "navigation:"
	channelSuffix  = ":broadcast"
	channelPattern = channelPrefix + "*" + channelSuffix

	clientBuffer = 64
)

// Hub fans navigation snapshots out to websocket clients. With Redis, every
// broadcast goes through a pattern subscription so clients connected to any
// API instance receive it exactly once.
type Hub struct {
	redis   *redis.Client
	pubsub  *redis.PubSub
	logger  *slog.Logger
	clients map[string]map[*Client]struct{}
	mu      sync.RWMutex
	cancel  context.CancelFunc
	done    chan struct{}
}

type Client struct {
	SessionID string
	Send      chan []byte
}

func NewHub(redisClient *redis.Client, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = logging.Discard()
	}
	h := &Hub{
		logger:  logger.With("component", "stream"),
		clients: map[string]map[*Client]struct{}{},
		done:    make(chan struct{}),
	}
	if redisClient == nil {
		close(h.done)
		return h
	}

	ctx, cancel := context.WithCancel(context.Background())
	pubsub := redisClient.PSubscribe(ctx, channelPattern)
	confirmCtx, confirmCancel := context.WithTimeout(ctx, 2*time.Second)
	defer confirmCancel()
	if _, err := pubsub.Receive(confirmCtx); err != nil {
		logging.LogError(h.logger, "redis subscribe failed, delivering locally", err)
		_ = pubsub.Close()
		cancel()
		close(h.done)
		return h
	}

	h.redis = redisClient
	h.pubsub = pubsub
	h.cancel = cancel
	go h.subscribeRedis(ctx)
	return h
}

func (h *Hub) Register(sessionID string) *Client {
	client := &Client{
		SessionID: sessionID,
		Send:      make(chan []byte, clientBuffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[sessionID] == nil {
		h.clients[sessionID] = map[*Client]struct{}{}
	}
	h.clients[sessionID][client] = struct{}{}
	return client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sessionClients, ok := h.clients[client.SessionID]
	if !ok {
		return
	}
	if _, ok := sessionClients[client]; !ok {
		return
	}
	delete(sessionClients, client)
	if len(sessionClients) == 0 {
		delete(h.clients, client.SessionID)
	}
	close(client.Send)
}

// Clients reports how many local clients watch a session.
func (h *Hub) Clients(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[sessionID])
}

// Broadcast publishes a session snapshot. Without Redis, or when publishing
// fails, it is delivered to local clients only.
func (h *Hub) Broadcast(sessionID string, payload []byte) {
	if h.redis != nil {
		err := h.redis.Publish(context.Background(), redisChannel(sessionID), payload).Err()
		if err == nil {
			return
		}
		logging.LogError(h.logger, "redis publish failed", err, slog.String("session_id", sessionID))
	}
	h.deliver(sessionID, payload)
}

// Close stops the Redis subscription. Local clients stay registered.
func (h *Hub) Close() error {
	if h.cancel == nil {
		return nil
	}
	h.cancel()
	err := h.pubsub.Close()
	<-h.done
	return err
}

func (h *Hub) deliver(sessionID string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[sessionID] {
		select {
		case client.Send <- payload:
		default:
			h.logger.Debug("client buffer full, dropping snapshot", "session_id", sessionID)
		}
	}
}

func (h *Hub) subscribeRedis(ctx context.Context) {
	defer close(h.done)
	ch := h.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			sessionID := sessionIDFromChannel(msg.Channel)
			if sessionID == "" {
				continue
			}
			h.deliver(sessionID, []byte(msg.Payload))
		}
	}
}

func redisChannel(sessionID string) string {
	return channelPrefix + sessionID + channelSuffix
}

func sessionIDFromChannel(ch string) string {
	if !strings.HasPrefix(ch, channelPrefix) || !strings.HasSuffix(ch, channelSuffix) {
		return ""
	}
	if len(ch) <= len(channelPrefix)+len(channelSuffix) {
		return ""
	}
	return ch[len(channelPrefix) : len(ch)-len(channelSuffix)]
}
