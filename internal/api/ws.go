package api

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/codecheckerai/analysis-console/internal/models"
	"github.com/codecheckerai/analysis-console/internal/screen"
)

const (
	wsWriteWait = 10 * time.Second
	wsPongWait  = 60 * time.Second
	wsPingEvery = (wsPongWait * 9) / 10
	wsReadLimit = 64 << 20
)

type wsInbound struct {
	Type    string    `json:"type"`
	Code    string    `json:"code,omitempty"`
	RepoURL string    `json:"repo_url,omitempty"`
	File    *wsUpload `json:"file,omitempty"`
}

// wsUpload carries a dataset over the socket; Data is base64 in JSON.
type wsUpload struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type,omitempty"`
	Data        []byte `json:"data"`
}

type wsOutbound struct {
	Type    string       `json:"type"`
	ID      string       `json:"id,omitempty"`
	View    *screen.View `json:"view,omitempty"`
	Code    string       `json:"code,omitempty"`
	Message string       `json:"message,omitempty"`
}

// WSHandler binds one private screen to each WebSocket connection.
type WSHandler struct {
	console  Console
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler constructs the WebSocket binding. Connections from origins
// outside allowed are refused; requests without an Origin header are accepted.
func NewWSHandler(console Console, logger *slog.Logger, allowed []string) *WSHandler {
	if logger == nil {
		logger = slog.Default()
	}
	origins := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		origins[strings.TrimRight(strings.ToLower(o), "/")] = struct{}{}
	}
	return &WSHandler{
		console: console,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				if _, ok := origins["*"]; ok {
					return true
				}
				if u, err := url.Parse(origin); err == nil && strings.EqualFold(u.Host, r.Host) {
					return true
				}
				_, ok := origins[strings.TrimRight(strings.ToLower(origin), "/")]
				return ok
			},
		},
	}
}

// Serve handles GET /api/screens/{screen}/ws. The screen lives as long as the
// connection.
func (h *WSHandler) Serve(w http.ResponseWriter, r *http.Request) {
	id, b, err := h.console.Mount(chi.URLParam(r, "screen"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
		return
	}
	defer func() {
		if err := h.console.Unmount(id); err != nil {
			h.logger.Debug("ws unmount", slog.String("id", id), slog.Any("error", err))
		}
	}()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	conn.SetReadLimit(wsReadLimit)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if err := conn.SetReadDeadline(time.Now().Add(wsPongWait)); err != nil {
		h.logger.Warn("ws set read deadline failed", slog.Any("error", err))
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	writeCh := make(chan wsOutbound, 32)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		ticker := time.NewTicker(wsPingEvery)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case out := <-writeCh:
				if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
					return
				}
				if err := conn.WriteJSON(out); err != nil {
					return
				}
			case <-ticker.C:
				if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
					return
				}
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	pushWS(writeCh, wsOutbound{Type: "mounted", ID: id})

	views, stopViews := b.Watch()
	defer stopViews()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case v, ok := <-views:
				if !ok {
					return
				}
				pushWS(writeCh, wsOutbound{Type: "view", ID: id, View: &v})
			}
		}
	}()

	for {
		var in wsInbound
		if err := conn.ReadJSON(&in); err != nil {
			cancel()
			<-writerDone
			return
		}
		switch strings.ToLower(strings.TrimSpace(in.Type)) {
		case "ping":
			pushWS(writeCh, wsOutbound{Type: "pong"})
		case "submit":
			// The resulting view reaches the client through the watch stream.
			b.Submit(in.input())
		case "":
			pushWS(writeCh, wsOutbound{Type: "error", Code: "invalid_argument", Message: "type is required"})
		default:
			pushWS(writeCh, wsOutbound{Type: "error", Code: "invalid_argument", Message: "unsupported type: " + in.Type})
		}
	}
}

func (in wsInbound) input() screen.Input {
	out := screen.Input{Code: in.Code, RepositoryURL: in.RepoURL}
	if in.File != nil {
		out.File = &models.Upload{Name: in.File.Name, ContentType: in.File.ContentType, Data: in.File.Data}
	}
	return out
}

// pushWS enqueues out, dropping the oldest queued message when the writer
// falls behind.
func pushWS(writeCh chan wsOutbound, out wsOutbound) {
	if writeCh == nil {
		return
	}
	select {
	case writeCh <- out:
		return
	default:
	}
	select {
	case <-writeCh:
	default:
	}
	select {
	case writeCh <- out:
	default:
	}
}
