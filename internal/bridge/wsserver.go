package bridge

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Server exposes a Bridge to websocket clients. Each session may issue
// printers/print calls; Broadcast pushes frames to every session.
type Server struct {
	bridge   Bridge
	log      *slog.Logger
	upgrader websocket.Upgrader

	mu       sync.Mutex
	sessions map[*session]struct{}
}

type session struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (s *session) close() {
	s.once.Do(func() { close(s.done) })
}

// NewServer creates a websocket bridge server
func NewServer(b Bridge, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		bridge: b,
		log:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Front ends are served from the same box or a LAN POS terminal
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		sessions: make(map[*session]struct{}),
	}
}

// ServeHTTP upgrades the request and runs the session until it closes
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("WebSocket upgrade failed", "error", err)
		return
	}

	sess := &session{
		conn: conn,
		send: make(chan []byte, 32),
		done: make(chan struct{}),
	}

	s.mu.Lock()
	s.sessions[sess] = struct{}{}
	s.mu.Unlock()

	s.log.Info("Bridge session opened", "remote", r.RemoteAddr)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.writeLoop(sess)
	}()
	go func() {
		defer wg.Done()
		s.readLoop(r.Context(), sess)
	}()
	wg.Wait()

	s.mu.Lock()
	delete(s.sessions, sess)
	s.mu.Unlock()
	conn.Close()

	s.log.Info("Bridge session closed", "remote", r.RemoteAddr)
}

// Broadcast sends a frame to every open session. Slow sessions drop it.
func (s *Server) Broadcast(resp Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.log.Error("Failed to marshal broadcast", "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for sess := range s.sessions {
		select {
		case sess.send <- data:
		default:
			s.log.Warn("Session send buffer full, dropping frame", "type", resp.Type)
		}
	}
}

// Sessions returns the number of open sessions
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Server) readLoop(ctx context.Context, sess *session) {
	defer sess.close()

	var calls sync.WaitGroup
	defer calls.Wait()

	for {
		_, message, err := sess.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn("WebSocket read error", "error", err)
			}
			return
		}

		var req Request
		if err := json.Unmarshal(message, &req); err != nil {
			s.log.Warn("Failed to parse message", "error", err)
			continue
		}

		if req.Type == TypePing {
			s.reply(sess, Response{Type: TypePong})
			continue
		}

		calls.Add(1)
		go func() {
			defer calls.Done()
			s.reply(sess, s.handle(ctx, req))
		}()
	}
}

func (s *Server) handle(ctx context.Context, req Request) Response {
	resp := Response{ID: req.ID}

	switch req.Call {
	case CallPrinters:
		printers, err := s.bridge.Printers(ctx)
		if err != nil {
			resp.Error = err.Error()
			return resp
		}
		resp.Printers = printers

	case CallPrint:
		if req.Config == nil || req.Config.Printer == "" {
			resp.Error = "print call without printer"
			return resp
		}
		if err := s.bridge.Print(ctx, *req.Config, req.Data); err != nil {
			s.log.Error("Print failed", "printer", req.Config.Printer, "error", err)
			resp.Error = err.Error()
			return resp
		}
		s.log.Info("Print job completed", "printer", req.Config.Printer, "segments", len(req.Data))

	default:
		resp.Error = "unknown call: " + req.Call
	}

	return resp
}

func (s *Server) reply(sess *session, resp Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.log.Error("Failed to marshal response", "error", err)
		return
	}
	select {
	case sess.send <- data:
	case <-sess.done:
	}
}

func (s *Server) writeLoop(sess *session) {
	defer sess.conn.Close()

	for {
		select {
		case <-sess.done:
			return
		case message := <-sess.send:
			sess.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := sess.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				s.log.Warn("WebSocket write error", "error", err)
				sess.close()
				return
			}
		}
	}
}
