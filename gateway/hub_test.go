package gateway

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rudrakanya/Simhasth-X8/notify"
	"github.com/rudrakanya/Simhasth-X8/service"
)

func dial(t *testing.T, httpURL string) *websocket.Conn {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(httpURL, "http") + ControlPath
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestControlReportStatusOverWebsocket(t *testing.T) {
	fx := newFixture(t)
	conn := dial(t, fx.ts.URL)

	require.NoError(t, conn.WriteJSON(service.Command{Type: service.CommandReportStatus}))

	var resp controlResponse
	require.NoError(t, conn.ReadJSON(&resp))
	assert.True(t, resp.OK)
	require.NotNil(t, resp.Report)
	assert.Equal(t, fx.cfg.BuildTag, resp.Report.BuildTag)
}

func TestControlCacheBundleOverWebsocket(t *testing.T) {
	fx := newFixture(t)
	for _, path := range fx.cfg.Precache.Bundles["udaygiri-caves"] {
		fx.fetch.responses[path] = []byte("media")
	}
	conn := dial(t, fx.ts.URL)

	require.NoError(t, conn.WriteJSON(service.Command{
		Type:   service.CommandCacheBundle,
		Bundle: "udaygiri-caves",
	}))

	var resp controlResponse
	require.NoError(t, conn.ReadJSON(&resp))
	assert.True(t, resp.OK)

	// The bundle now answers a status query.
	require.NoError(t, conn.WriteJSON(service.Command{Type: service.CommandReportStatus}))
	require.NoError(t, conn.ReadJSON(&resp))
	assert.Equal(t, len(fx.cfg.Precache.Bundles["udaygiri-caves"]), resp.Report.Tiers["heritage"].Entries)
}

func TestControlUnknownCommandOverWebsocket(t *testing.T) {
	fx := newFixture(t)
	conn := dial(t, fx.ts.URL)

	require.NoError(t, conn.WriteJSON(service.Command{Type: "reboot"}))

	var resp controlResponse
	require.NoError(t, conn.ReadJSON(&resp))
	assert.False(t, resp.OK)
	assert.NotEmpty(t, resp.Error)
}

func TestControlMalformedMessage(t *testing.T) {
	fx := newFixture(t)
	conn := dial(t, fx.ts.URL)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))

	var resp controlResponse
	require.NoError(t, conn.ReadJSON(&resp))
	assert.False(t, resp.OK)
	assert.Equal(t, "malformed command", resp.Error)
}

func TestPushBroadcastReachesWebsocketClients(t *testing.T) {
	fx := newFixture(t)
	conn := dial(t, fx.ts.URL)

	require.Eventually(t, func() bool { return fx.hub.ClientCount() == 1 },
		time.Second, 10*time.Millisecond)

	resp, err := http.Post(fx.ts.URL+PushPath, "application/json",
		strings.NewReader(`{"title":"Udaygiri","data":{"url":"/sites/udaygiri-caves"}}`))
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame notificationFrame
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, fx.cfg.NATS.NotifySubject, frame.Subject)

	var notification notify.Notification
	require.NoError(t, json.Unmarshal(frame.Payload, &notification))
	assert.Equal(t, "Udaygiri", notification.Title)
	assert.Equal(t, "/sites/udaygiri-caves", notification.URL)
}

func TestHubDropsClientsOnCloseAll(t *testing.T) {
	fx := newFixture(t)
	dial(t, fx.ts.URL)
	dial(t, fx.ts.URL)

	require.Eventually(t, func() bool { return fx.hub.ClientCount() == 2 },
		time.Second, 10*time.Millisecond)

	fx.hub.CloseAll()
	assert.Zero(t, fx.hub.ClientCount())
}
