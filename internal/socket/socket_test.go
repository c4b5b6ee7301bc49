package socket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intec-ai/intec-backend/internal/logger"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func TestAllowedChannelIsOwnUserChannelOnly(t *testing.T) {
	uid := uuid.New()
	c := &Client{UserID: uid}

	assert.True(t, c.allowedChannel("user:"+uid.String()))
	assert.False(t, c.allowedChannel("user:"+uuid.New().String()))
	assert.False(t, c.allowedChannel("chat:"+uuid.New().String()))
	assert.False(t, c.allowedChannel(""))
}

func TestHubDeliversToSubscribedChannel(t *testing.T) {
	hub := NewHub(logger.NewNop())
	client := &Client{ID: uuid.New(), Outbound: make(chan Message, 1)}
	hub.Subscribe(client, []string{"user:abc"})

	hub.BroadcastGlobal(context.Background(), Message{Channel: "user:abc", Data: "ping"})

	select {
	case msg := <-client.Outbound:
		assert.Equal(t, "user:abc", msg.Channel)
		assert.Equal(t, "ping", msg.Data)
	default:
		t.Fatal("expected a delivered message")
	}

	hub.BroadcastGlobal(context.Background(), Message{Channel: "user:other", Data: "ping"})
	select {
	case <-client.Outbound:
		t.Fatal("received a message for a channel the client never joined")
	default:
	}
}

func TestHubUnsubscribeRemovesClientFromAllChannels(t *testing.T) {
	hub := NewHub(logger.NewNop())
	client := &Client{ID: uuid.New(), Outbound: make(chan Message, 1)}
	hub.Subscribe(client, []string{"user:abc"})

	hub.Unsubscribe(client)
	hub.BroadcastGlobal(context.Background(), Message{Channel: "user:abc", Data: "ping"})

	select {
	case <-client.Outbound:
		t.Fatal("unsubscribed client still received a message")
	default:
	}
}

// Disconnects racing a hot fan-out must never touch a closed outbound
// channel; teardown removes the client from the hub before closing it.
func TestClientTeardownDuringFanout(t *testing.T) {
	log := logger.NewNop()
	hub := NewHub(log)
	channel := "user:" + uuid.New().String()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		ctx, cancel := context.WithCancel(context.Background())
		client := NewClient(conn, hub, uuid.New(), cancel, log)
		hub.Subscribe(client, []string{channel})
		go client.ReadLoop(ctx)
		go client.WriteLoop(ctx)
	}))
	defer srv.Close()

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					hub.BroadcastGlobal(context.Background(), Message{Channel: channel, Data: "ping"})
				}
			}
		}()
	}

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	for i := 0; i < 200; i++ {
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		require.NoError(t, err)
		_ = conn.Close()
	}

	close(stop)
	wg.Wait()
	// let the server-side pumps finish tearing down
	time.Sleep(50 * time.Millisecond)
}
