package stream

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func receive(t *testing.T, c *Client) string {
	t.Helper()
	select {
	case msg := <-c.Send:
		return string(msg)
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timeout waiting for message")
		return ""
	}
}

func expectNothing(t *testing.T, c *Client) {
	t.Helper()
	select {
	case msg := <-c.Send:
		t.Fatalf("unexpected message %q", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubBroadcast(t *testing.T) {
	hub := NewHub(nil, nil)
	client := hub.Register("session-1")
	defer hub.Unregister(client)
	other := hub.Register("session-2")
	defer hub.Unregister(other)

	hub.Broadcast("session-1", []byte("hello"))

	if got := receive(t, client); got != "hello" {
		t.Fatalf("unexpected message %q", got)
	}
	expectNothing(t, other)
}

func TestHubHelpers(t *testing.T) {
	ch := redisChannel("abc")
	if ch != "navigation:abc:broadcast" {
		t.Fatalf("unexpected channel %q", ch)
	}
	if sessionIDFromChannel(ch) != "abc" {
		t.Fatalf("unexpected session id")
	}
	for _, bad := range []string{"bad", "navigation::broadcast", "tracking:abc:broadcast"} {
		if sessionIDFromChannel(bad) != "" {
			t.Fatalf("expected empty session id for %q", bad)
		}
	}
}

func TestUnregisterClosesOnce(t *testing.T) {
	hub := NewHub(nil, nil)
	client := hub.Register("session-2")
	hub.Unregister(client)
	hub.Unregister(client)
	if _, ok := <-client.Send; ok {
		t.Fatalf("expected channel closed")
	}
	if hub.Clients("session-2") != 0 {
		t.Fatalf("expected no clients")
	}
}

func TestHubDropsWhenBufferFull(t *testing.T) {
	hub := NewHub(nil, nil)
	client := hub.Register("slow")
	defer hub.Unregister(client)
	for i := 0; i < clientBuffer+10; i++ {
		hub.Broadcast("slow", []byte("x"))
	}
	if len(client.Send) != clientBuffer {
		t.Fatalf("expected full buffer, got %d", len(client.Send))
	}
}

func TestHubRedisDeliversOnce(t *testing.T) {
	s := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer rdb.Close()

	hub := NewHub(rdb, nil)
	defer hub.Close()
	ws := hub.Register("session-redis")
	defer hub.Unregister(ws)

	hub.Broadcast("session-redis", []byte("ping"))
	if got := receive(t, ws); got != "ping" {
		t.Fatalf("unexpected message %q", got)
	}
	expectNothing(t, ws)
}

func TestHubRedisFromAnotherInstance(t *testing.T) {
	s := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer rdb.Close()

	hub := NewHub(rdb, nil)
	defer hub.Close()
	ws := hub.Register("abc")
	defer hub.Unregister(ws)

	if err := rdb.Publish(context.Background(), "navigation:abc:broadcast", "pong").Err(); err != nil {
		t.Fatalf("publish error: %v", err)
	}
	if got := receive(t, ws); got != "pong" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestHubRedisDownFallsBackToLocal(t *testing.T) {
	server := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: server.Addr(), MaxRetries: -1})
	server.Close()
	defer rdb.Close()

	hub := NewHub(rdb, nil)
	defer hub.Close()
	client := hub.Register("session-bad")
	defer hub.Unregister(client)

	hub.Broadcast("session-bad", []byte("ping"))
	if got := receive(t, client); got != "ping" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestHubPublishFailureDeliversLocally(t *testing.T) {
	server := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: server.Addr(), MaxRetries: -1})
	defer rdb.Close()

	hub := NewHub(rdb, nil)
	defer hub.Close()
	client := hub.Register("session-x")
	defer hub.Unregister(client)

	server.Close()
	hub.Broadcast("session-x", []byte("ping"))
	if got := receive(t, client); got != "ping" {
		t.Fatalf("unexpected message %q", got)
	}
}
