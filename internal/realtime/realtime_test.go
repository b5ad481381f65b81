package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMemoryBusDeliversInOrder(t *testing.T) {
	bus := NewMemoryBus(16)
	defer bus.Close()

	var (
		mu  sync.Mutex
		got []string
	)
	unsubscribe := bus.Subscribe(func(e Event) {
		mu.Lock()
		got = append(got, e.Type)
		mu.Unlock()
	})

	for _, typ := range []string{"a", "b", "c"} {
		require.NoError(t, bus.Publish(context.Background(), Event{Type: typ}))
	}

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 3
	}, time.Second, 5*time.Millisecond)
	mu.Lock()
	assert.Equal(t, []string{"a", "b", "c"}, got)
	mu.Unlock()

	unsubscribe()
	unsubscribe()
	require.NoError(t, bus.Publish(context.Background(), Event{Type: "d"}))
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	assert.Len(t, got, 3)
	mu.Unlock()
}

func TestMemoryBusClosed(t *testing.T) {
	bus := NewMemoryBus(1)
	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())
	assert.ErrorIs(t, bus.Publish(context.Background(), Event{Type: "x"}), ErrBusClosed)
}

func TestNewEvent(t *testing.T) {
	e, err := NewEvent(EventProgressUpdated, "u1", map[string]int{"points": 30})
	require.NoError(t, err)
	assert.Equal(t, "u1", e.UserID)
	assert.JSONEq(t, `{"points":30}`, string(e.Data))
	assert.False(t, e.Timestamp.IsZero())
}

func TestRedisBusForwardsToLocalSubscribers(t *testing.T) {
	b := &RedisBus{log: zap.NewNop(), channel: "test", local: NewMemoryBus(4)}
	defer b.local.Close()

	got := make(chan Event, 1)
	b.Subscribe(func(e Event) { got <- e })

	b.forward([]byte(`not json`))
	b.forward([]byte(`{"type":"progress.updated","user_id":"u1"}`))

	select {
	case e := <-got:
		assert.Equal(t, EventProgressUpdated, e.Type)
		assert.Equal(t, "u1", e.UserID)
	case <-time.After(time.Second):
		t.Fatal("event not forwarded")
	}
}

func TestRedisBusWithoutClient(t *testing.T) {
	var b *RedisBus
	assert.ErrorIs(t, b.Publish(context.Background(), Event{}), ErrNotConfigured)
	assert.ErrorIs(t, b.Ping(context.Background()), ErrNotConfigured)
	assert.NoError(t, b.Close())

	_, err := NewRedisBus(nil, "", "")
	assert.Error(t, err)
}

func dial(t *testing.T, srv *httptest.Server, user string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?user=" + user
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHubRoutesEventsByUser(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = hub.ServeWS(w, r, r.URL.Query().Get("user"))
	}))
	defer srv.Close()

	alice := dial(t, srv, "alice")
	bob := dial(t, srv, "bob")
	assert.Eventually(t, func() bool { return hub.ClientCount() == 2 }, time.Second, 5*time.Millisecond)

	hub.Dispatch(Event{Type: EventProgressUpdated, UserID: "alice"})
	hub.Dispatch(Event{Type: EventContentChanged})

	read := func(conn *websocket.Conn) Event {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err)
		var e Event
		require.NoError(t, json.Unmarshal(raw, &e))
		return e
	}

	assert.Equal(t, EventProgressUpdated, read(alice).Type)
	assert.Equal(t, EventContentChanged, read(alice).Type)
	// bob only sees the broadcast
	assert.Equal(t, EventContentChanged, read(bob).Type)

	bob.Close()
	assert.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)
}
