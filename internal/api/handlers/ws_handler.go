package handlers

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/nexusbot/internal/events"
	"github.com/yoockh/nexusbot/internal/models"
	"github.com/yoockh/nexusbot/internal/token"
	"github.com/yoockh/nexusbot/internal/utils"
)

// WSHandler streams session events to every open widget tab of that session.
type WSHandler struct {
	events   events.Subscriber
	tokens   *token.Signer
	upgrader websocket.Upgrader
	log      logrus.FieldLogger
}

// NewWSHandler accepts upgrades only from appOrigin, where the widget page lives.
func NewWSHandler(sub events.Subscriber, tokens *token.Signer, appOrigin string, log logrus.FieldLogger) *WSHandler {
	appOrigin = strings.TrimRight(appOrigin, "/")
	return &WSHandler{
		events: sub,
		tokens: tokens,
		log:    log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || appOrigin == "" || strings.EqualFold(origin, appOrigin)
			},
		},
	}
}

type wsConn struct {
	c  *websocket.Conn
	mu sync.Mutex
}

func (w *wsConn) writeText(b []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.c.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return w.c.WriteMessage(websocket.TextMessage, b)
}

func (w *wsConn) ping() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.c.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
}

func (h *WSHandler) SessionEvents(c *gin.Context) {
	const op = "WSHandler.SessionEvents"

	if h.events == nil {
		writeError(c, utils.E(utils.CodeUnavailable, op, "live updates are not enabled", nil))
		return
	}

	botID := c.Query("bot_id")
	sessionID, err := h.tokens.Parse(c.Param("session_token"), botID)
	if err != nil || !models.IsPersistedSessionID(sessionID) {
		writeError(c, utils.E(utils.CodeForbidden, op, "invalid session", err))
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	msgs, stop, err := h.events.Subscribe(ctx, sessionID)
	if err != nil {
		writeError(c, utils.E(utils.CodeUnavailable, op, "live updates unavailable", err))
		return
	}
	defer stop()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// upgrade already wrote response in most cases
		return
	}
	defer conn.Close()

	wc := &wsConn{c: conn}

	// reader: only keeps the deadline fresh and notices the close
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		conn.SetPongHandler(func(string) error {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	pinger := time.NewTicker(30 * time.Second)
	defer pinger.Stop()

	// writer: Redis Pub/Sub -> WS
	for {
		select {
		case <-readDone:
			return
		case <-ctx.Done():
			return
		case <-pinger.C:
			if err := wc.ping(); err != nil {
				return
			}
		case payload, ok := <-msgs:
			if !ok {
				return
			}
			if err := wc.writeText(payload); err != nil {
				h.log.WithError(err).WithField("session_id", sessionID).Debug("ws write failed")
				return
			}
		}
	}
}
