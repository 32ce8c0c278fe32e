package livestream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uxplima/uxragent/internal/model"
)

func TestDispatchWithNoConnectionsErrors(t *testing.T) {
	m := New(func() (uint64, []interface{}) { return 0, nil }, 0)
	err := m.Dispatch("test.dispatch", map[string]interface{}{"runId": "r1"})
	assert.Error(t, err)
}

func TestBroadcastNoopOnEmptyChanges(t *testing.T) {
	m := New(func() (uint64, []interface{}) { return 0, nil }, 0)
	assert.NotPanics(t, func() { m.Broadcast(nil, 1) })
}

func TestActiveConnectionsStartsAtZero(t *testing.T) {
	m := New(func() (uint64, []interface{}) { return 0, nil }, 0)
	assert.Equal(t, 0, m.ActiveConnections())
}

// newTestServer wires an httptest server around HandleConnection so
// the full_sync-on-connect and broadcast framing can be exercised
// against a real coder/websocket connection.
func newTestServer(t *testing.T, m *Manager) (*httptest.Server, func()) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
		if err != nil {
			return
		}
		m.HandleConnection(r.Context(), conn)
	}))
	return srv, srv.Close
}

func dialURL(httpURL string) string {
	return "ws" + httpURL[len("http"):]
}

func TestHandleConnectionSendsFullSyncOnConnect(t *testing.T) {
	snapshotPayload := []interface{}{map[string]interface{}{"id": "a"}}
	m := New(func() (uint64, []interface{}) { return 7, snapshotPayload }, time.Second)
	srv, closeSrv := newTestServer(t, m)
	defer closeSrv()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, dialURL(srv.URL), nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)

	var frame Frame
	require.NoError(t, json.Unmarshal(data, &frame))
	assert.Equal(t, "full_sync", frame.Type)
	assert.Equal(t, uint64(7), frame.Revision)
	require.Len(t, frame.Snapshot, 1)
}

func TestBroadcastReachesConnectedClient(t *testing.T) {
	m := New(func() (uint64, []interface{}) { return 0, nil }, time.Second)
	srv, closeSrv := newTestServer(t, m)
	defer closeSrv()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, dialURL(srv.URL), nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	_, _, err = conn.Read(ctx) // full_sync
	require.NoError(t, err)

	for i := 0; i < 50 && m.ActiveConnections() == 0; i++ {
		time.Sleep(10 * time.Millisecond)
	}
	require.Equal(t, 1, m.ActiveConnections())

	m.Broadcast([]model.Change{{Kind: "update", ID: "a"}}, 9)

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var frame Frame
	require.NoError(t, json.Unmarshal(data, &frame))
	assert.Equal(t, "mutation", frame.Type)
	assert.Equal(t, uint64(9), frame.Revision)
	require.Len(t, frame.Changes, 1)
}
