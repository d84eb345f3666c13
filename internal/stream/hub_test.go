package stream

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/accelsim/internal/sim"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) sim.Sample {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var s sim.Sample
	require.NoError(t, conn.ReadJSON(&s))
	return s
}

func TestHubBroadcast(t *testing.T) {
	hub := NewHub(0)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	a, b := dial(t, srv), dial(t, srv)
	require.Eventually(t, func() bool { return hub.Clients() == 2 }, 2*time.Second, 10*time.Millisecond)

	want := sim.Sample{Step: 10, Time: 1e-9, Beams: 1, Particles: 3, EmittanceR: 2e-3}
	hub.OnSample(want)

	assert.Equal(t, want, read(t, a))
	assert.Equal(t, want, read(t, b))
	assert.Equal(t, 1, hub.Frames())
}

func TestHubReplaysLast(t *testing.T) {
	hub := NewHub(0)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	hub.OnSample(sim.Sample{Step: 1})
	hub.OnSample(sim.Sample{Step: 2})

	conn := dial(t, srv)
	assert.Equal(t, 2, read(t, conn).Step)
}

func TestHubRateLimit(t *testing.T) {
	hub := NewHub(0.001)
	for i := 0; i < 5; i++ {
		hub.OnSample(sim.Sample{Step: i})
	}
	assert.Equal(t, 1, hub.Frames())

	srv := httptest.NewServer(hub)
	defer srv.Close()
	conn := dial(t, srv)
	assert.Equal(t, 4, read(t, conn).Step)
}

func TestHubDisconnect(t *testing.T) {
	hub := NewHub(0)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHubClose(t *testing.T) {
	hub := NewHub(0)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.Close()
	assert.Equal(t, 0, hub.Clients())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}
