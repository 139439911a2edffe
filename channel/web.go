package channel

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"github.com/linanwx/waitbot/internal/runtimecfg"
	"github.com/linanwx/waitbot/logger"
)

// WebStopCommand is emitted for a web session when its socket closes.
const WebStopCommand = "/stop"

//go:embed web/index.html
var webIndexHTML []byte

// WebChannel implements the Channel interface for browser chat. Every
// websocket connection is its own conversation.
type WebChannel struct {
	addr     string
	status   func() any
	health   func() any
	messages chan *Message
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	server   *http.Server

	mu      sync.RWMutex
	clients map[string]*wsClient
	msgID   int64
}

type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// WebConfig holds web channel configuration.
type WebConfig struct {
	Addr   string
	Status func() any // served as JSON on /api/sessions when set
	Health func() any // served on /api/health; ?format=text uses its String method
}

type webInboundMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type webOutboundMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	Text      string `json:"text,omitempty"`
	Error     string `json:"error,omitempty"`
}

// NewWebChannel creates a new web channel.
func NewWebChannel(cfg WebConfig) *WebChannel {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		addr = runtimecfg.WebChannelDefaultAddr
	}
	return &WebChannel{
		addr:     addr,
		status:   cfg.Status,
		health:   cfg.Health,
		messages: make(chan *Message, runtimecfg.WebChannelMessageBufferSize),
		done:     make(chan struct{}),
		clients:  make(map[string]*wsClient),
	}
}

// Name returns the channel name.
func (w *WebChannel) Name() string { return "web" }

// Handler returns the HTTP handler serving the page, the websocket and the
// status endpoint.
func (w *WebChannel) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", w.handleWS)
	mux.HandleFunc("/api/sessions", w.handleSessions)
	mux.HandleFunc("/api/health", w.handleHealth)
	mux.HandleFunc("/", func(rw http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(rw, r)
			return
		}
		rw.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = rw.Write(webIndexHTML)
	})
	return mux
}

// Start starts the web server.
func (w *WebChannel) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", w.addr)
	if err != nil {
		return fmt.Errorf("web channel listen failed on %s: %w", w.addr, err)
	}

	w.server = &http.Server{Handler: w.Handler()}
	bindAddr := ln.Addr().String()
	logger.Info("web channel started", "addr", bindAddr, "url", webURLHintFromAddr(bindAddr))

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if serveErr := w.server.Serve(ln); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logger.Error("web channel server error", "err", serveErr)
		}
	}()
	return nil
}

// Stop closes every connection and shuts the server down.
func (w *WebChannel) Stop() error {
	w.stopOnce.Do(func() {
		close(w.done)

		w.mu.Lock()
		clients := make([]*wsClient, 0, len(w.clients))
		for _, c := range w.clients {
			clients = append(clients, c)
		}
		w.clients = make(map[string]*wsClient)
		w.mu.Unlock()

		for _, c := range clients {
			_ = c.conn.Close(websocket.StatusNormalClosure, "shutdown")
		}

		if w.server != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), runtimecfg.WebChannelShutdownTimeout)
			defer cancel()
			if err := w.server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn("web channel shutdown error", "err", err)
			}
		}
		w.wg.Wait()
		logger.Info("web channel stopped")
	})
	return nil
}

// Send sends a message to the websocket session named by resp.ReplyTo.
func (w *WebChannel) Send(ctx context.Context, resp *Response) error {
	if resp == nil {
		return fmt.Errorf("response is nil")
	}

	w.mu.RLock()
	client := w.clients[strings.TrimSpace(resp.ReplyTo)]
	w.mu.RUnlock()
	if client == nil {
		return fmt.Errorf("web session not connected: %s", resp.ReplyTo)
	}
	return client.write(ctx, webOutboundMessage{Type: "response", Text: resp.Text})
}

// Messages returns the incoming message channel.
func (w *WebChannel) Messages() <-chan *Message { return w.messages }

func (c *wsClient) write(ctx context.Context, msg webOutboundMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := wsjson.Write(ctx, c.conn, msg); err != nil {
		return fmt.Errorf("websocket send failed: %w", err)
	}
	return nil
}

func (w *WebChannel) handleWS(rw http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(rw, r, nil)
	if err != nil {
		return
	}

	sessionID := uuid.NewString()
	client := &wsClient{conn: conn}

	w.mu.Lock()
	w.clients[sessionID] = client
	w.mu.Unlock()

	w.wg.Add(1)
	defer w.wg.Done()

	chatted := false
	defer func() {
		w.mu.Lock()
		if w.clients[sessionID] == client {
			delete(w.clients, sessionID)
		}
		w.mu.Unlock()
		_ = conn.Close(websocket.StatusNormalClosure, "")

		// Nobody can read this tab any more; silence its agent.
		if chatted {
			w.push(w.newMessage(sessionID, WebStopCommand))
		}
	}()

	ctx := r.Context()
	if err := client.write(ctx, webOutboundMessage{Type: "session", SessionID: sessionID}); err != nil {
		return
	}
	logger.Debug("web session connected", "session", sessionID)

	for {
		var req webInboundMessage
		if err := wsjson.Read(ctx, conn, &req); err != nil {
			return
		}

		if t := strings.TrimSpace(req.Type); t != "" && t != "message" {
			_ = client.write(ctx, webOutboundMessage{Type: "error", Error: "unsupported message type"})
			continue
		}
		text := strings.TrimSpace(req.Text)
		if text == "" {
			continue
		}

		select {
		case w.messages <- w.newMessage(sessionID, text):
			chatted = true
		case <-w.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (w *WebChannel) newMessage(sessionID, text string) *Message {
	return &Message{
		ID:        fmt.Sprintf("web-%d", atomic.AddInt64(&w.msgID, 1)),
		ChannelID: "web:" + sessionID,
		UserID:    sessionID,
		Username:  "web-user",
		Text:      text,
		Metadata:  map[string]string{"chat_id": sessionID},
	}
}

// push queues msg unless the channel is shutting down.
func (w *WebChannel) push(msg *Message) {
	select {
	case w.messages <- msg:
	case <-w.done:
	}
}

func (w *WebChannel) handleSessions(rw http.ResponseWriter, r *http.Request) {
	if w.status == nil {
		http.Error(rw, "status not available", http.StatusNotFound)
		return
	}
	rw.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(rw).Encode(w.status())
}

func (w *WebChannel) handleHealth(rw http.ResponseWriter, r *http.Request) {
	if w.health == nil {
		http.Error(rw, "health not available", http.StatusNotFound)
		return
	}
	snap := w.health()
	if r.URL.Query().Get("format") == "text" {
		if s, ok := snap.(fmt.Stringer); ok {
			rw.Header().Set("Content-Type", "text/plain; charset=utf-8")
			_, _ = rw.Write([]byte(s.String()))
			return
		}
	}
	rw.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(rw).Encode(snap)
}

func webURLHintFromAddr(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return ""
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr
	}

	host = strings.TrimSpace(host)
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("http://%s", net.JoinHostPort(host, port))
}
