// Package gateway holds live client connections and fans persisted messages
// out to per-conversation rooms. Delivery here is an optimization: the REST
// polling endpoint is the recovery path, so nothing in this package retries.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/ilanpazar/messaging/internal/chat"
	"github.com/ilanpazar/messaging/internal/identity"
	"github.com/ilanpazar/messaging/internal/models"
)

// Opts holds the collaborators a Gateway needs.
type Opts struct {
	Conversations *chat.ConversationStore
	Messages      *chat.MessageStore
	Reads         *chat.ReadTracker
	Verifier      identity.Verifier
	SendBuffer    int
	Log           *logrus.Logger
}

// Gateway upgrades websocket requests, authenticates them and runs one read
// worker per connection.
type Gateway struct {
	registry   *Registry
	convs      *chat.ConversationStore
	msgs       *chat.MessageStore
	reads      *chat.ReadTracker
	verifier   identity.Verifier
	sendBuffer int
	log        *logrus.Logger
	upgrader   websocket.Upgrader
}

// New creates a Gateway and starts its room registry.
func New(opts Opts) (*Gateway, error) {
	if opts.Conversations == nil || opts.Messages == nil || opts.Reads == nil {
		return nil, fmt.Errorf("gateway: stores are required")
	}
	if opts.Verifier == nil {
		return nil, fmt.Errorf("gateway: verifier is required")
	}
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Gateway{
		registry:   NewRegistry(),
		convs:      opts.Conversations,
		msgs:       opts.Messages,
		reads:      opts.Reads,
		verifier:   opts.Verifier,
		sendBuffer: opts.SendBuffer,
		log:        log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}, nil
}

// Close shuts down the registry and every live connection.
func (g *Gateway) Close() {
	g.registry.Close()
}

// Handler returns the gin handler that upgrades and serves one connection.
func (g *Gateway) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ws, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			g.log.WithError(err).Warn("gateway: upgrade failed")
			return
		}
		conn := newConnection(ws, g.sendBuffer)
		go conn.writeLoop()
		g.serve(c.Request.Context(), conn)
	}
}

// Publish fans a freshly persisted message out to its room and relays a
// coarse activity signal to every session of the receiving user. Best-effort:
// a client that misses it catches up by polling.
func (g *Gateway) Publish(msg models.Message) {
	view := chat.NewMessageView(msg)
	g.registry.Broadcast(msg.ConversationID, encodeEvent(EventNewMessage, view))
	g.registry.NotifyUser(msg.ReceiverID, encodeEvent(EventActivity, ActivityPayload{
		ConversationID: msg.ConversationID,
		MessageID:      msg.ID,
		SenderID:       msg.SenderID,
	}))
}

// PublishRead announces a read receipt to the conversation's room. Used by
// the REST read path so both channels observe the same receipt.
func (g *Gateway) PublishRead(conversationID, readerID uint) {
	g.registry.Broadcast(conversationID, encodeEvent(EventMessageRead, MessageReadPayload{
		ConversationID: conversationID,
		ReaderID:       readerID,
	}))
}

// serve runs the connection's read worker until the socket drops. The first
// frame must authenticate; afterwards every failure short of a read error is
// reported as an error event without closing.
func (g *Gateway) serve(ctx context.Context, conn *Connection) {
	defer func() {
		g.registry.Detach(conn)
		conn.Close(websocket.CloseNormalClosure, "bye")
	}()

	conn.ws.SetReadLimit(64 << 10)
	conn.ws.SetPongHandler(func(string) error {
		return conn.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	if !g.authenticate(conn) {
		return
	}

	_ = conn.ws.SetReadDeadline(time.Now().Add(pongWait))
	for {
		_, frame, err := conn.ws.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.ws.SetReadDeadline(time.Now().Add(pongWait))

		var env Envelope
		if err := json.Unmarshal(frame, &env); err != nil {
			g.sendError(conn, "validation")
			continue
		}
		g.dispatch(ctx, conn, env)
	}
}

// authenticate reads the first frame and verifies its token. Failure is the
// one case that closes the connection.
func (g *Gateway) authenticate(conn *Connection) bool {
	_ = conn.ws.SetReadDeadline(time.Now().Add(authWait))
	_, frame, err := conn.ws.ReadMessage()
	if err != nil {
		return false
	}

	var env Envelope
	var payload AuthenticatePayload
	if err := json.Unmarshal(frame, &env); err != nil || env.Type != EventAuthenticate {
		g.rejectAuth(conn, "authenticate first")
		return false
	}
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		g.rejectAuth(conn, "bad authenticate payload")
		return false
	}

	userID, err := g.verifier.Verify(payload.Token)
	if err != nil {
		g.rejectAuth(conn, "invalid token")
		return false
	}

	conn.UserID = userID
	conn.setState(stateAuthenticated)
	g.registry.Register(conn)
	g.log.WithFields(logrus.Fields{
		"conn": conn.ID,
		"user": userID,
	}).Debug("gateway: connection authenticated")
	return true
}

func (g *Gateway) dispatch(ctx context.Context, conn *Connection, env Envelope) {
	if !conn.authenticated() {
		g.sendError(conn, "unauthenticated")
		return
	}

	switch env.Type {
	case EventJoin:
		var p JoinPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			g.sendError(conn, "validation")
			return
		}
		g.handleJoin(ctx, conn, p)

	case EventSend:
		var p SendPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			g.sendError(conn, "validation")
			return
		}
		g.handleSend(ctx, conn, p)

	case EventMarkRead:
		var p MarkReadPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			g.sendError(conn, "validation")
			return
		}
		g.handleMarkRead(ctx, conn, p)

	default:
		g.sendError(conn, "validation")
	}
}

// handleJoin re-validates participancy before joining the room. A connection
// can only ever subscribe to its own conversations.
func (g *Gateway) handleJoin(ctx context.Context, conn *Connection, p JoinPayload) {
	if _, err := g.convs.GetByID(ctx, p.ConversationID, conn.UserID); err != nil {
		g.sendError(conn, reasonFor(err))
		return
	}
	g.registry.Join(p.ConversationID, conn)
}

func (g *Gateway) handleSend(ctx context.Context, conn *Connection, p SendPayload) {
	msg, err := g.msgs.Append(ctx, p.ConversationID, conn.UserID, p.Content, p.Attachments, p.FileTypes)
	if err != nil {
		g.sendError(conn, reasonFor(err))
		return
	}
	g.Publish(*msg)
}

// handleMarkRead flips read state for the calling user only, then announces
// the receipt if anything changed.
func (g *Gateway) handleMarkRead(ctx context.Context, conn *Connection, p MarkReadPayload) {
	updated, err := g.reads.MarkConversationRead(ctx, p.ConversationID, conn.UserID)
	if err != nil {
		g.sendError(conn, reasonFor(err))
		return
	}
	if updated > 0 {
		g.PublishRead(p.ConversationID, conn.UserID)
	}
}

func (g *Gateway) sendError(conn *Connection, reason string) {
	_ = conn.Send(encodeEvent(EventError, ErrorPayload{Reason: reason}))
}

// rejectAuth writes the error frame synchronously so it reaches the client
// ahead of the close that follows; queueing it would race the shutdown.
func (g *Gateway) rejectAuth(conn *Connection, reason string) {
	_ = conn.writeFrame(encodeEvent(EventError, ErrorPayload{Reason: "unauthenticated"}))
	conn.Close(websocket.ClosePolicyViolation, reason)
}

func reasonFor(err error) string {
	switch {
	case errors.Is(err, chat.ErrForbidden):
		return "forbidden"
	case errors.Is(err, chat.ErrNotFound):
		return "not_found"
	case errors.Is(err, chat.ErrValidation):
		return "validation"
	default:
		return "internal"
	}
}
