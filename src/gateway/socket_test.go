package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/theleywin/talentnest-graph/src/delivery"
	"github.com/theleywin/talentnest-graph/src/lib"
	"github.com/theleywin/talentnest-graph/src/models"
	"github.com/theleywin/talentnest-graph/src/notifications"
)

const testSecret = "gateway-test-secret"

type gatewayFixture struct {
	server *httptest.Server
	hub    *delivery.Hub
	svc    *notifications.Service
	ctl    *SocketController
}

func newGatewayFixture(t *testing.T) *gatewayFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := lib.ConnectDB(filepath.Join(t.TempDir(), "gateway.db"), zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, lib.AutoMigrate(db))

	hub := delivery.NewHub(zap.NewNop())
	svc := notifications.NewService(notifications.NewSQLRepository(db), hub, zap.NewNop())
	ctl := NewSocketController(hub, svc, testSecret, 16, time.Second, zap.NewNop())

	server := httptest.NewServer(NewRouter(ctl, hub))
	t.Cleanup(server.Close)
	return &gatewayFixture{server: server, hub: hub, svc: svc, ctl: ctl}
}

func (f *gatewayFixture) dial(t *testing.T, userID string) *websocket.Conn {
	t.Helper()
	token, err := lib.GenerateJWT(userID, testSecret, time.Hour)
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var frame map[string]any
	require.NoError(t, json.Unmarshal(data, &frame))
	return frame
}

// readReply skips the sync a channel gets when its unread count moved while
// it was being registered.
func readReply(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	for {
		frame := readFrame(t, conn)
		if frame["type"] != "sync" {
			return frame
		}
	}
}

func sendFrame(t *testing.T, conn *websocket.Conn, frame any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(frame))
}

func like(from string) models.Payload {
	return models.LikePayload{Actor: models.Actor{ID: from}, PostID: "post-1"}
}

func TestSocketRejectsMissingOrInvalidToken(t *testing.T) {
	f := newGatewayFixture(t)
	base := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws"

	_, resp, err := websocket.DefaultDialer.Dial(base, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(base+"?token=garbage", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, 0, f.hub.Count())
}

func TestSocketHelloCarriesUnreadCount(t *testing.T) {
	f := newGatewayFixture(t)
	_, err := f.svc.Create(context.Background(), "u1", like("u2"))
	require.NoError(t, err)

	conn := f.dial(t, "u1")
	hello := readFrame(t, conn)

	assert.Equal(t, "hello", hello["type"])
	assert.Equal(t, "u1", hello["user_id"])
	assert.EqualValues(t, 1, hello["unread"])
}

func TestSocketReceivesPushAndAcknowledgesRead(t *testing.T) {
	f := newGatewayFixture(t)
	conn := f.dial(t, "u1")
	readFrame(t, conn) // hello

	require.Eventually(t, func() bool { return f.hub.Connected("u1") == 1 }, 2*time.Second, 10*time.Millisecond)

	id, err := f.svc.Create(context.Background(), "u1", like("u2"))
	require.NoError(t, err)

	pushed := readReply(t, conn)
	assert.Equal(t, id, pushed["id"])
	assert.Equal(t, "like", pushed["kind"])
	assert.Nil(t, pushed["readAt"])

	sendFrame(t, conn, inboundFrame{Type: "read", ID: id})
	ack := readReply(t, conn)
	assert.Equal(t, "ack", ack["type"])
	assert.Equal(t, id, ack["id"])

	count, err := f.svc.UnreadCount(context.Background(), "u1")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestSocketSyncsNotificationsCommittedDuringRegistration(t *testing.T) {
	f := newGatewayFixture(t)
	created := make(chan string, 1)
	f.ctl.beforeRegister = func(userID string) {
		id, err := f.svc.Create(context.Background(), userID, like("u2"))
		assert.NoError(t, err)
		created <- id
	}

	conn := f.dial(t, "u1")
	hello := readFrame(t, conn)
	assert.Equal(t, "hello", hello["type"])
	assert.EqualValues(t, 0, hello["unread"])

	sync := readFrame(t, conn)
	require.Equal(t, "sync", sync["type"])
	assert.EqualValues(t, 1, sync["unread"])
	list := sync["notifications"].([]any)
	require.Len(t, list, 1)
	assert.Equal(t, <-created, list[0].(map[string]any)["id"])
}

func TestSocketControlFrames(t *testing.T) {
	f := newGatewayFixture(t)
	for i := 0; i < 3; i++ {
		_, err := f.svc.Create(context.Background(), "u1", like("u2"))
		require.NoError(t, err)
	}
	conn := f.dial(t, "u1")
	readFrame(t, conn) // hello

	sendFrame(t, conn, inboundFrame{Type: "ping"})
	assert.Equal(t, "pong", readFrame(t, conn)["type"])

	sendFrame(t, conn, inboundFrame{Type: "sync"})
	sync := readFrame(t, conn)
	assert.Equal(t, "sync", sync["type"])
	assert.EqualValues(t, 3, sync["unread"])
	assert.Len(t, sync["notifications"], 3)

	sendFrame(t, conn, inboundFrame{Type: "read", ID: "missing"})
	failure := readFrame(t, conn)
	assert.Equal(t, "error", failure["type"])
	assert.Equal(t, "not_found", failure["code"])

	sendFrame(t, conn, inboundFrame{Type: "read_all"})
	ack := readFrame(t, conn)
	assert.Equal(t, "ack", ack["type"])
	assert.EqualValues(t, 3, ack["updated"])

	sendFrame(t, conn, inboundFrame{Type: "dance"})
	assert.Equal(t, "unsupported_type", readFrame(t, conn)["code"])
}

func TestSocketDisconnectUnregistersChannel(t *testing.T) {
	f := newGatewayFixture(t)
	conn := f.dial(t, "u1")
	readFrame(t, conn)
	require.Eventually(t, func() bool { return f.hub.Connected("u1") == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool { return f.hub.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHealthReportsChannelCount(t *testing.T) {
	f := newGatewayFixture(t)
	conn := f.dial(t, "u1")
	readFrame(t, conn)
	require.Eventually(t, func() bool { return f.hub.Count() == 1 }, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Get(f.server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 1, body["channels"])
}
