// Package api exposes the messaging core's REST surface and mounts the
// websocket gateway endpoint.
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ilanpazar/messaging/internal/chat"
	"github.com/ilanpazar/messaging/internal/gateway"
	"github.com/ilanpazar/messaging/internal/identity"
	"github.com/ilanpazar/messaging/internal/storage"
)

// Opts holds the collaborators and settings for the HTTP server.
type Opts struct {
	Conversations *chat.ConversationStore
	Messages      *chat.MessageStore
	Reads         *chat.ReadTracker
	Unread        *chat.UnreadAggregator
	Poll          *chat.PollService
	Gateway       *gateway.Gateway
	Verifier      identity.Verifier
	Objects       storage.ObjectStore
	Addr          string
	Log           *logrus.Logger
}

// Start launches the HTTP server. It blocks until ctx is cancelled, then
// shuts down gracefully.
func Start(ctx context.Context, opts Opts) error {
	router, err := NewRouter(opts)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:    opts.Addr,
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api: %w", err)
	}
	return nil
}

// NewRouter builds the gin engine with all routes registered. Split from
// Start so tests can drive it with httptest.
func NewRouter(opts Opts) (*gin.Engine, error) {
	if opts.Conversations == nil || opts.Messages == nil || opts.Reads == nil ||
		opts.Unread == nil || opts.Poll == nil {
		return nil, fmt.Errorf("api: stores are required")
	}
	if opts.Verifier == nil {
		return nil, fmt.Errorf("api: verifier is required")
	}
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	registerRoutes(router, opts)
	return router, nil
}

func registerRoutes(router *gin.Engine, opts Opts) {
	h := &handlers{
		convs:   opts.Conversations,
		msgs:    opts.Messages,
		reads:   opts.Reads,
		unread:  opts.Unread,
		poll:    opts.Poll,
		gw:      opts.Gateway,
		objects: opts.Objects,
		log:     opts.Log,
	}

	authed := router.Group("/api", authRequired(opts.Verifier))
	authed.POST("/conversations/find", h.findConversation)
	authed.GET("/conversations", h.listConversations)
	authed.GET("/conversations/:id/messages", h.pageMessages)
	authed.GET("/conversations/:id/events", h.pollEvents)
	authed.PATCH("/conversations/:id/read", h.markRead)
	authed.DELETE("/conversations/:id", h.deleteConversation)
	authed.POST("/messages", h.postMessage)
	authed.GET("/unread", h.unreadCounts)

	if opts.Gateway != nil {
		router.GET("/ws", opts.Gateway.Handler())
	}
}
