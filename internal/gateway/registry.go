package gateway

import "github.com/gorilla/websocket"

type regOp int

const (
	opRegister regOp = iota
	opJoin
	opLeave
	opDetach
	opBroadcast
	opNotifyUser
	opRoomSize
)

type regCmd struct {
	op     regOp
	conn   *Connection
	roomID uint
	userID uint
	frame  []byte
	reply  chan int
}

// Registry owns the broadcast-room membership table. All state lives inside
// a single goroutine and every operation flows through the command channel,
// so connection workers never share mutable state or take locks. Fan-out
// pushes onto each member's bounded send channel and never blocks.
type Registry struct {
	cmds chan regCmd
	done chan struct{}
}

// NewRegistry starts the registry goroutine.
func NewRegistry() *Registry {
	r := &Registry{
		cmds: make(chan regCmd, 256),
		done: make(chan struct{}),
	}
	go r.run()
	return r
}

// Register tracks an authenticated connection for user-directed delivery.
func (r *Registry) Register(conn *Connection) {
	r.submit(regCmd{op: opRegister, conn: conn})
}

// Join adds the connection to the conversation's room.
func (r *Registry) Join(roomID uint, conn *Connection) {
	r.submit(regCmd{op: opJoin, roomID: roomID, conn: conn})
}

// Leave removes the connection from one room.
func (r *Registry) Leave(roomID uint, conn *Connection) {
	r.submit(regCmd{op: opLeave, roomID: roomID, conn: conn})
}

// Detach removes the connection from every room and from user tracking.
// Persisted state is untouched.
func (r *Registry) Detach(conn *Connection) {
	r.submit(regCmd{op: opDetach, conn: conn})
}

// Broadcast delivers a frame to every connection in the room, the sender's
// other devices included, and reports how many deliveries were accepted.
func (r *Registry) Broadcast(roomID uint, frame []byte) int {
	reply := make(chan int, 1)
	r.submit(regCmd{op: opBroadcast, roomID: roomID, frame: frame, reply: reply})
	select {
	case n := <-reply:
		return n
	case <-r.done:
		return 0
	}
}

// NotifyUser delivers a frame to every connection of one user regardless of
// room membership. This is the badge-update relay.
func (r *Registry) NotifyUser(userID uint, frame []byte) int {
	reply := make(chan int, 1)
	r.submit(regCmd{op: opNotifyUser, userID: userID, frame: frame, reply: reply})
	select {
	case n := <-reply:
		return n
	case <-r.done:
		return 0
	}
}

// RoomSize reports how many connections are currently in a room.
func (r *Registry) RoomSize(roomID uint) int {
	reply := make(chan int, 1)
	r.submit(regCmd{op: opRoomSize, roomID: roomID, reply: reply})
	select {
	case n := <-reply:
		return n
	case <-r.done:
		return 0
	}
}

// Close stops the registry and closes every tracked connection.
func (r *Registry) Close() {
	select {
	case <-r.done:
	default:
		close(r.done)
	}
}

func (r *Registry) submit(cmd regCmd) {
	select {
	case r.cmds <- cmd:
	case <-r.done:
		if cmd.reply != nil {
			cmd.reply <- 0
		}
	}
}

func (r *Registry) run() {
	rooms := make(map[uint]map[string]*Connection)    // roomID -> connID -> conn
	connRooms := make(map[string]map[uint]struct{})   // connID -> joined rooms
	userConns := make(map[uint]map[string]*Connection) // userID -> connID -> conn

	leave := func(roomID uint, connID string) {
		room := rooms[roomID]
		if room == nil {
			return
		}
		delete(room, connID)
		if len(room) == 0 {
			delete(rooms, roomID)
		}
		if joined := connRooms[connID]; joined != nil {
			delete(joined, roomID)
			if len(joined) == 0 {
				delete(connRooms, connID)
			}
		}
	}

	for {
		select {
		case <-r.done:
			for _, conns := range userConns {
				for _, conn := range conns {
					conn.Close(websocket.CloseGoingAway, "gateway shutdown")
				}
			}
			return
		case cmd := <-r.cmds:
			switch cmd.op {
			case opRegister:
				conns := userConns[cmd.conn.UserID]
				if conns == nil {
					conns = make(map[string]*Connection)
					userConns[cmd.conn.UserID] = conns
				}
				conns[cmd.conn.ID] = cmd.conn

			case opJoin:
				room := rooms[cmd.roomID]
				if room == nil {
					room = make(map[string]*Connection)
					rooms[cmd.roomID] = room
				}
				room[cmd.conn.ID] = cmd.conn
				joined := connRooms[cmd.conn.ID]
				if joined == nil {
					joined = make(map[uint]struct{})
					connRooms[cmd.conn.ID] = joined
				}
				joined[cmd.roomID] = struct{}{}

			case opLeave:
				leave(cmd.roomID, cmd.conn.ID)

			case opDetach:
				for roomID := range connRooms[cmd.conn.ID] {
					room := rooms[roomID]
					delete(room, cmd.conn.ID)
					if len(room) == 0 {
						delete(rooms, roomID)
					}
				}
				delete(connRooms, cmd.conn.ID)
				if conns := userConns[cmd.conn.UserID]; conns != nil {
					delete(conns, cmd.conn.ID)
					if len(conns) == 0 {
						delete(userConns, cmd.conn.UserID)
					}
				}

			case opBroadcast:
				delivered := 0
				for _, conn := range rooms[cmd.roomID] {
					if conn.Send(cmd.frame) == nil {
						delivered++
					}
				}
				if cmd.reply != nil {
					cmd.reply <- delivered
				}

			case opNotifyUser:
				delivered := 0
				for _, conn := range userConns[cmd.userID] {
					if conn.Send(cmd.frame) == nil {
						delivered++
					}
				}
				if cmd.reply != nil {
					cmd.reply <- delivered
				}

			case opRoomSize:
				if cmd.reply != nil {
					cmd.reply <- len(rooms[cmd.roomID])
				}
			}
		}
	}
}
