package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sakif/repo-rater/internal/service"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10

	// Clients only send control frames; anything bigger is a protocol error.
	maxClientMessage = 512
)

// FeedFrame is one websocket message: the complete current feed.
type FeedFrame struct {
	Type  string             `json:"type"`
	Cards []service.FeedItem `json:"cards"`
}

// LiveHandler streams the feed over a websocket. Each frame carries the whole
// ordered list, re-queried after every store change.
type LiveHandler struct {
	feed     Feed
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewLiveHandler accepts websocket connections from allowedOrigins. "*"
// allows any origin; same-host requests and requests without an Origin
// header are always allowed.
func NewLiveHandler(feed Feed, allowedOrigins []string, logger *slog.Logger) *LiveHandler {
	return &LiveHandler{
		feed: feed,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		logger: logger,
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || slices.Contains(allowed, "*") || slices.Contains(allowed, origin) {
			return true
		}
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}
}

// HandleLive upgrades to a websocket and pushes feed frames until the client
// goes away.
//
// HTTP: GET /api/cards/live?previews=true
func (h *LiveHandler) HandleLive(w http.ResponseWriter, r *http.Request) {
	opts, ok := feedOptions(w, r)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already answered the client.
		h.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go h.readLoop(conn, cancel)
	go h.pingLoop(ctx, conn)

	h.logger.Debug("live feed connected", slog.String("remote", r.RemoteAddr))

	err = h.feed.Watch(ctx, opts, func(items []service.FeedItem) error {
		if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			return err
		}
		return conn.WriteJSON(FeedFrame{Type: "feed", Cards: items})
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		h.logger.Warn("live feed stopped", slog.String("error", err.Error()))
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "feed unavailable"),
			time.Now().Add(writeWait))
		return
	}

	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	h.logger.Debug("live feed disconnected", slog.String("remote", r.RemoteAddr))
}

// readLoop consumes client frames so control messages are processed, and
// cancels the watch once the connection breaks.
func (h *LiveHandler) readLoop(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()

	conn.SetReadLimit(maxClientMessage)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}

// pingLoop keeps idle connections alive. WriteControl may run concurrently
// with the feed writer.
func (h *LiveHandler) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
