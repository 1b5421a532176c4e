package realtime

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/shenikar/civic_reporting_system/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub(t *testing.T, backlog int) (*Hub, *httptest.Server, context.CancelFunc) {
	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})

	hub := NewHub(logger, backlog, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(func() {
		cancel()
		server.Close()
	})
	return hub, server, cancel
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) models.Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var event models.Event
	require.NoError(t, json.Unmarshal(raw, &event))
	return event
}

func TestHub_EveryClientReceivesEvent(t *testing.T) {
	hub, server, _ := newTestHub(t, 16)
	first, second := dial(t, server), dial(t, server)
	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, 2*time.Second, 10*time.Millisecond)

	issue := &models.Issue{ID: uuid.New(), Title: "Pothole", Status: models.StatusInProgress}
	require.NoError(t, hub.Emit(context.Background(), models.NewTransitionEvent(issue)))

	for _, conn := range []*websocket.Conn{first, second} {
		event := readEvent(t, conn)
		assert.Equal(t, models.EventStatusUpdate, event.Type)
		require.NotNil(t, event.Issue)
		assert.Equal(t, issue.ID, event.Issue.ID)
	}
}

func TestHub_PreservesEmitOrder(t *testing.T) {
	hub, server, _ := newTestHub(t, 16)
	conn := dial(t, server)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	issue := &models.Issue{ID: uuid.New(), Status: models.StatusPendingVerification}
	require.NoError(t, hub.Emit(context.Background(), models.NewIssueCreatedEvent(issue)))
	verified := issue.Clone()
	verified.Status = models.StatusVerified
	require.NoError(t, hub.Emit(context.Background(), models.NewTransitionEvent(verified)))

	assert.Equal(t, models.EventNewIssue, readEvent(t, conn).Type)
	assert.Equal(t, models.EventIssueVerified, readEvent(t, conn).Type)
}

func TestHub_RejectsInvalidEnvelope(t *testing.T) {
	hub, _, _ := newTestHub(t, 16)

	err := hub.Emit(context.Background(), models.Event{Type: "SOMETHING"})

	require.Error(t, err)
}

func TestHub_DeliverNeverBlocks(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})
	hub := NewHub(logger, 1, nil) // Run не запущен, очередь никто не читает

	require.NoError(t, hub.Deliver([]byte(`{}`)))
	require.ErrorIs(t, hub.Deliver([]byte(`{}`)), ErrBacklogFull)
}

func TestHub_DisconnectUnregisters(t *testing.T) {
	hub, server, _ := newTestHub(t, 16)
	conn := dial(t, server)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_ShutdownClosesClients(t *testing.T) {
	hub, server, cancel := newTestHub(t, 16)
	conn := dial(t, server)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived, websocket.CloseAbnormalClosure))
}

func TestHub_CheckOrigin(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})
	hub := NewHub(logger, 1, []string{"https://dashboard.city.gov"})

	allowed := httptest.NewRequest(http.MethodGet, "/ws", nil)
	allowed.Header.Set("Origin", "https://dashboard.city.gov")
	denied := httptest.NewRequest(http.MethodGet, "/ws", nil)
	denied.Header.Set("Origin", "https://evil.example")

	assert.True(t, hub.upgrader.CheckOrigin(allowed))
	assert.False(t, hub.upgrader.CheckOrigin(denied))
}

func TestRedisRelay_FansOutAcrossInstances(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	hub, server, _ := newTestHub(t, 16)
	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})

	ctx, cancel := context.WithCancel(context.Background())
	done, err := NewRelay(client, "issue_events", hub, logger).Run(ctx)
	require.NoError(t, err)

	conn := dial(t, server)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	// Событие с другого экземпляра приходит через Redis
	sink := NewRedisSink(client, "issue_events")
	issue := &models.Issue{ID: uuid.New(), Status: models.StatusRejected}
	require.NoError(t, sink.Emit(context.Background(), models.NewTransitionEvent(issue)))

	event := readEvent(t, conn)
	assert.Equal(t, models.EventIssueRejected, event.Type)
	assert.Equal(t, issue.ID, event.Issue.ID)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not stop")
	}
}

func TestRedisSink_RejectsInvalidEnvelope(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	err := NewRedisSink(client, "issue_events").Emit(context.Background(), models.Event{Type: models.EventNewIssue})

	require.Error(t, err)
}
