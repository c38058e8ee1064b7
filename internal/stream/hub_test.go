package stream

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestHubBroadcast(t *testing.T) {
	hub := NewHub(nil, nil)
	client := hub.Register(TopicReports)
	defer hub.Unregister(client)

	hub.Broadcast(TopicReports, []byte("hello"))

	select {
	case msg := <-client.Send:
		if string(msg) != "hello" {
			t.Fatalf("unexpected message")
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatalf("timeout waiting for message")
	}
}

func TestHubBroadcastIsTopicScoped(t *testing.T) {
	hub := NewHub(nil, nil)
	reports := hub.Register(TopicReports)
	nav := hub.Register("navigation:abc")
	defer hub.Unregister(reports)
	defer hub.Unregister(nav)

	hub.Broadcast("navigation:abc", []byte("route"))

	select {
	case <-reports.Send:
		t.Fatalf("reports topic must not receive navigation updates")
	case msg := <-nav.Send:
		if string(msg) != "route" {
			t.Fatalf("unexpected message")
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatalf("timeout waiting for message")
	}
}

func TestHubHelpers(t *testing.T) {
	ch := redisChannel("abc")
	if ch != "barrierfree:abc:broadcast" {
		t.Fatalf("unexpected channel %q", ch)
	}
	if topicFromChannel(ch) != "abc" {
		t.Fatalf("unexpected topic")
	}
	if topicFromChannel("navigation:x:y") != "" {
		t.Fatalf("expected empty topic for foreign channel")
	}
	if topicFromChannel("bad") != "" {
		t.Fatalf("expected empty topic")
	}
}

func TestUnregisterClosesOnce(t *testing.T) {
	hub := NewHub(nil, nil)
	client := hub.Register("session-2")
	if hub.Subscribers("session-2") != 1 {
		t.Fatalf("expected one subscriber")
	}
	hub.Unregister(client)
	hub.Unregister(client)
	_, ok := <-client.Send
	if ok {
		t.Fatalf("expected channel closed")
	}
	if hub.Subscribers("session-2") != 0 {
		t.Fatalf("expected no subscribers")
	}
}

func TestHubRedisBroadcastAndSubscribe(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	hub := NewHub(client, nil)
	defer hub.Close()
	ws := hub.Register(TopicReports)
	defer hub.Unregister(ws)

	hub.Broadcast(TopicReports, []byte("ping"))

	select {
	case msg := <-ws.Send:
		if string(msg) != "ping" {
			t.Fatalf("unexpected message")
		}
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for broadcast")
	}

	// a publish from another instance reaches local clients too
	if err := client.Publish(context.Background(), redisChannel(TopicReports), "pong").Err(); err != nil {
		t.Fatalf("publish error: %v", err)
	}

	select {
	case msg := <-ws.Send:
		if string(msg) != "pong" {
			t.Fatalf("unexpected message from redis")
		}
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for redis message")
	}

	select {
	case extra := <-ws.Send:
		t.Fatalf("expected exactly one delivery per publish, got extra %q", extra)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubRedisUnavailableFallsBackToLocal(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr(), MaxRetries: -1})
	server.Close()
	defer client.Close()

	hub := NewHub(client, nil)
	node := hub.Register("session-bad")
	defer hub.Unregister(node)

	hub.Broadcast("session-bad", []byte("ping"))
	select {
	case msg := <-node.Send:
		if string(msg) != "ping" {
			t.Fatalf("unexpected message")
		}
	case <-time.After(time.Second):
		t.Fatalf("expected local delivery")
	}
}
