package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/alansalbums/alans-albums-backend/internal/app/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCounter struct {
	mu     sync.Mutex
	counts map[uint]int64
	seen   []service.Viewer
}

func (f *fakeCounter) UnreadCount(viewer service.Viewer) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, viewer)
	return f.counts[viewer.UserID], nil
}

func (f *fakeCounter) viewers() []service.Viewer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]service.Viewer(nil), f.seen...)
}

func startHub(t *testing.T, counter UnreadCounter) *Hub {
	hub := NewHub(counter)
	go hub.Run()
	t.Cleanup(hub.Stop)
	return hub
}

func connect(t *testing.T, hub *Hub, userID uint, isStaff bool) *Client {
	client := NewClient(hub, nil, userID, isStaff)
	hub.Register(client)
	require.Eventually(t, func() bool { return hub.IsUserOnline(userID) }, time.Second, 5*time.Millisecond)
	return client
}

func nextEvent(t *testing.T, client *Client) Event {
	select {
	case data, ok := <-client.Send:
		require.True(t, ok, "send channel closed")
		var event Event
		require.NoError(t, json.Unmarshal(data, &event))
		return event
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
	return Event{}
}

func TestHub_RegisterPushesUnreadCount(t *testing.T) {
	counter := &fakeCounter{counts: map[uint]int64{7: 3}}
	hub := startHub(t, counter)

	client := connect(t, hub, 7, true)

	event := nextEvent(t, client)
	assert.Equal(t, EventUnread, event.Type)
	assert.Equal(t, int64(3), event.Unread)
	assert.Equal(t, []service.Viewer{{UserID: 7, IsStaff: true}}, counter.viewers())
}

func TestHub_SendToUserReachesEverySession(t *testing.T) {
	hub := startHub(t, nil)

	phone := connect(t, hub, 1, false)
	laptop := connect(t, hub, 1, false)
	other := connect(t, hub, 2, false)

	require.NoError(t, hub.SendToUser(1, Event{Type: "ping", Unread: 5}))

	assert.Equal(t, int64(5), nextEvent(t, phone).Unread)
	assert.Equal(t, int64(5), nextEvent(t, laptop).Unread)
	select {
	case <-other.Send:
		t.Fatal("event delivered to another user")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_UnregisterClosesSession(t *testing.T) {
	hub := startHub(t, nil)

	first := connect(t, hub, 1, false)
	second := connect(t, hub, 1, false)

	hub.Unregister(first)
	select {
	case _, ok := <-first.Send:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("send channel not closed")
	}
	assert.True(t, hub.IsUserOnline(1))

	hub.Unregister(second)
	assert.Eventually(t, func() bool { return !hub.IsUserOnline(1) }, time.Second, 5*time.Millisecond)
}

func TestHub_SyncRequest(t *testing.T) {
	counter := &fakeCounter{counts: map[uint]int64{4: 1}}
	hub := startHub(t, counter)
	client := connect(t, hub, 4, false)
	nextEvent(t, client) // initial count

	counter.mu.Lock()
	counter.counts[4] = 2
	counter.mu.Unlock()

	hub.HandleClientMessage(client, []byte(`{"type":"sync"}`))
	assert.Equal(t, int64(2), nextEvent(t, client).Unread)

	// unknown and malformed requests are ignored
	hub.HandleClientMessage(client, []byte(`{"type":"typing"}`))
	hub.HandleClientMessage(client, []byte(`not json`))
	select {
	case <-client.Send:
		t.Fatal("unexpected event")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_RateLimit(t *testing.T) {
	counter := &fakeCounter{counts: map[uint]int64{}}
	hub := startHub(t, counter)
	client := connect(t, hub, 4, false)
	nextEvent(t, client)

	for i := 0; i < maxMessagesPerSecond+5; i++ {
		hub.HandleClientMessage(client, []byte(`{"type":"sync"}`))
	}

	received := 0
	timeout := time.After(200 * time.Millisecond)
	for done := false; !done; {
		select {
		case <-client.Send:
			received++
		case <-timeout:
			done = true
		}
	}
	assert.Equal(t, maxMessagesPerSecond, received)
}

func TestNotifier_ThreadUpdated(t *testing.T) {
	counter := &fakeCounter{counts: map[uint]int64{1: 4, 2: 1}}
	hub := startHub(t, counter)
	staff := connect(t, hub, 1, true)
	owner := connect(t, hub, 2, false)
	nextEvent(t, staff)
	nextEvent(t, owner)

	notifier := NewNotifier(hub)

	notifier.ThreadUpdated(context.Background(), service.ThreadNotification{
		Kind:      service.KindMessageReceived,
		MessageID: 10,
		Excerpt:   "Do you have the first pressing?",
		UserIDs:   []uint{1, 99},
	})
	event := nextEvent(t, staff)
	assert.Equal(t, service.KindMessageReceived, event.Type)
	assert.Equal(t, int64(4), event.Unread)
	require.NotNil(t, event.Thread)
	assert.Equal(t, uint(10), event.Thread.MessageID)

	notifier.ThreadUpdated(context.Background(), service.ThreadNotification{
		Kind:      service.KindStaffReply,
		MessageID: 10,
		UserIDs:   []uint{2},
	})
	event = nextEvent(t, owner)
	assert.Equal(t, service.KindStaffReply, event.Type)
	assert.Equal(t, int64(1), event.Unread)

	// recipients are counted with the matching role
	viewers := counter.viewers()
	assert.Contains(t, viewers, service.Viewer{UserID: 1, IsStaff: true})
	assert.Contains(t, viewers, service.Viewer{UserID: 2, IsStaff: false})
}
