package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Connections in registry tests never get a real socket; frames pile up in
// the bounded send channel where the test can read them back.
func newTestConn(userID uint, buffer int) *Connection {
	conn := newConnection(nil, buffer)
	conn.UserID = userID
	conn.setState(stateAuthenticated)
	return conn
}

func drainOne(t *testing.T, conn *Connection) []byte {
	t.Helper()
	select {
	case frame := <-conn.send:
		return frame
	default:
		t.Fatal("expected a queued frame")
		return nil
	}
}

func TestRegistry_BroadcastReachesRoomMembers(t *testing.T) {
	reg := NewRegistry()
	defer reg.Close()

	a := newTestConn(1, 8)
	b := newTestConn(2, 8)
	outsider := newTestConn(3, 8)
	reg.Register(a)
	reg.Register(b)
	reg.Register(outsider)
	reg.Join(7, a)
	reg.Join(7, b)

	delivered := reg.Broadcast(7, []byte("frame"))
	require.Equal(t, 2, delivered)

	assert.Equal(t, "frame", string(drainOne(t, a)))
	assert.Equal(t, "frame", string(drainOne(t, b)))
	assert.Empty(t, outsider.send)
}

func TestRegistry_BroadcastIncludesSendersOtherDevices(t *testing.T) {
	reg := NewRegistry()
	defer reg.Close()

	phone := newTestConn(1, 8)
	laptop := newTestConn(1, 8)
	reg.Register(phone)
	reg.Register(laptop)
	reg.Join(7, phone)
	reg.Join(7, laptop)

	delivered := reg.Broadcast(7, []byte("frame"))
	assert.Equal(t, 2, delivered)
}

func TestRegistry_NotifyUserIgnoresRooms(t *testing.T) {
	reg := NewRegistry()
	defer reg.Close()

	conn := newTestConn(5, 8)
	reg.Register(conn)
	// Never joined any room; the badge relay still reaches the session.
	delivered := reg.NotifyUser(5, []byte("activity"))
	require.Equal(t, 1, delivered)
	assert.Equal(t, "activity", string(drainOne(t, conn)))

	assert.Zero(t, reg.NotifyUser(99, []byte("activity")))
}

func TestRegistry_LeaveAndDetach(t *testing.T) {
	reg := NewRegistry()
	defer reg.Close()

	conn := newTestConn(1, 8)
	reg.Register(conn)
	reg.Join(7, conn)
	reg.Join(8, conn)
	require.Equal(t, 1, reg.RoomSize(7))

	reg.Leave(7, conn)
	assert.Equal(t, 0, reg.RoomSize(7))
	assert.Equal(t, 1, reg.RoomSize(8))

	reg.Detach(conn)
	assert.Equal(t, 0, reg.RoomSize(8))
	assert.Zero(t, reg.NotifyUser(1, []byte("x")))
}

func TestRegistry_BroadcastToEmptyRoom(t *testing.T) {
	reg := NewRegistry()
	defer reg.Close()

	assert.Zero(t, reg.Broadcast(42, []byte("frame")))
}

func TestRegistry_CloseIsIdempotent(t *testing.T) {
	reg := NewRegistry()
	reg.Close()
	reg.Close()
	assert.Zero(t, reg.Broadcast(1, []byte("frame")))
}
