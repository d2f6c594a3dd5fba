package signaling

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/1ureka/duocall/internal/util"
)

const (
	maxMessageBytes = 64 * 1024       // session descriptions with all candidates fit comfortably
	writeWait       = 10 * time.Second // per-message write deadline
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server exposes a Relay over WebSocket. Each connection becomes one
// participant; whatever it sends is fanned out to the others.
type Server struct {
	relay *Relay

	listener net.Listener
	httpSrv  *http.Server

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

// NewServer creates a relay server around the given relay.
func NewServer(relay *Relay) *Server {
	return &Server{
		relay: relay,
		conns: make(map[*websocket.Conn]struct{}),
	}
}

// Handler returns the HTTP routes: /ws for participants and /healthz.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/healthz", s.handleHealth)
	return mux
}

// Start begins listening on addr (":0" picks a random port) and serves in the
// background. Returns the bound address.
func (s *Server) Start(addr string) (net.Addr, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to start relay server: %w", err)
	}
	s.listener = listener
	s.httpSrv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.httpSrv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			util.LogError("relay server stopped: %v", err)
		}
	}()

	return listener.Addr(), nil
}

// Close stops accepting connections and drops every connected participant.
func (s *Server) Close() error {
	var err error
	if s.httpSrv != nil {
		err = s.httpSrv.Close()
	}

	s.mu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintf(w, "ok %d\n", s.relay.Len())
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		util.LogDebug("upgrade failed: %v", err)
		return
	}
	conn.SetReadLimit(maxMessageBytes)
	s.track(conn)
	defer s.untrack(conn)

	id, out := s.relay.Join()
	util.LogInfo("[%s] participant connected from %s", shortID(id), r.RemoteAddr)

	// Single writer per connection; the queue closes on Leave.
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for msg := range out {
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				util.LogDebug("[%s] write failed: %v", shortID(id), err)
				conn.Close()
			}
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		n := s.relay.Broadcast(id, data)
		util.LogDebug("[%s] relayed %d bytes to %d participant(s)", shortID(id), len(data), n)
	}

	s.relay.Leave(id)
	<-writerDone
	conn.Close()
	util.LogInfo("[%s] participant disconnected", shortID(id))
}

func (s *Server) track(conn *websocket.Conn) {
	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) untrack(conn *websocket.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}
