package server

import (
	"bufio"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/WindOfMind/discussions-tcp-server/pkg/auth"
	"github.com/WindOfMind/discussions-tcp-server/pkg/discussion"
	"github.com/WindOfMind/discussions-tcp-server/pkg/notify"
)

// Server wires the domain services to the transports. One logical worker
// (goroutine) services each connection's read path; the notification hub's
// dispatch loop runs independently.
type Server struct {
	config     ServerConfig
	configPath string

	registry   *auth.Registry
	store      *discussion.Store
	hub        *notify.Hub
	dispatcher *Dispatcher

	listener    net.Listener
	httpServer  *http.Server
	sshListener net.Listener

	metrics     *Metrics
	activeConns atomic.Int64
	nextConnID  atomic.Uint64
	shutdown    chan struct{}
	wg          sync.WaitGroup
}

// NewServer creates a server instance with fresh in-memory state. Nothing is
// shared through globals: tests construct isolated instances per case.
func NewServer(config ServerConfig, configPath string) *Server {
	registry := auth.NewRegistry()
	hub := notify.NewHub(config.MaxMailboxSize)
	store := discussion.NewStore(registry, hub)

	return &Server{
		config:     config,
		configPath: configPath,
		registry:   registry,
		store:      store,
		hub:        hub,
		dispatcher: NewDispatcher(registry, store, hub),
		shutdown:   make(chan struct{}),
	}
}

// SetMetrics attaches Prometheus metrics to the server, dispatcher and hub.
func (s *Server) SetMetrics(m *Metrics) {
	s.metrics = m
	s.dispatcher.SetMetrics(m)
	s.hub.SetMetrics(m)
}

// Start starts the TCP listener, the notification dispatch loop and, when
// configured, the HTTP (WebSocket + metrics) and SSH transports.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.TCPPort)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener
	log.Printf("TCP server listening on %s", listener.Addr())

	if err := s.startHTTPServer(); err != nil {
		s.listener.Close()
		return err
	}

	if err := s.startSSHServer(); err != nil {
		s.listener.Close()
		s.stopHTTPServer()
		return err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.hub.Run(s.config.DispatchInterval, s.shutdown)
	}()

	s.wg.Add(1)
	go s.acceptLoop()

	return nil
}

// Addr returns the TCP listener address, for tests using port 0.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop gracefully stops the server.
func (s *Server) Stop() error {
	close(s.shutdown)

	if s.listener != nil {
		s.listener.Close()
		s.listener = nil
	}
	s.stopHTTPServer()
	if s.sshListener != nil {
		s.sshListener.Close()
		s.sshListener = nil
	}

	s.wg.Wait()
	return nil
}

// acceptLoop accepts incoming TCP connections.
func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
				return
			default:
				log.Printf("Accept error: %v", err)
				continue
			}
		}

		go s.handleConnection(conn, "tcp")
	}
}

// handleConnection services one connection's read path until it closes.
// Shared by every transport: TCP directly, WebSocket and SSH through their
// net.Conn adapters.
func (s *Server) handleConnection(conn net.Conn, transport string) {
	defer conn.Close()

	if tcpConn, ok := conn.(*net.TCPConn); ok {
		tcpConn.SetNoDelay(true)
	}

	clientID := fmt.Sprintf("%s-%d", transport, s.nextConnID.Add(1))
	safe := NewSafeConn(conn)

	active := s.activeConns.Add(1)
	if s.metrics != nil {
		s.metrics.RecordConnectionOpened(transport, int(active))
	}
	log.Printf("Client %s connected from %s", clientID, conn.RemoteAddr())

	// Register the write path with the hub so queued notifications can reach
	// this connection as soon as its user signs in.
	s.hub.RegisterConnection(clientID, safe.WriteLine)

	// Teardown is guaranteed and idempotent regardless of why the read loop
	// exits: hub unregistration, user unbinding, session sign-out.
	defer func() {
		s.hub.UnregisterConnection(clientID)
		if name, ok := s.registry.WhoAmI(clientID); ok {
			s.hub.UnregisterUser(name, clientID)
		}
		s.registry.SignOut(clientID)

		active := s.activeConns.Add(-1)
		if s.metrics != nil {
			s.metrics.RecordConnectionClosed(int(active))
		}
		log.Printf("Client %s disconnected", clientID)
	}()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), s.config.MaxLineLength)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		debugLog.Printf("Client %s ← RECV: %s", clientID, line)

		response := s.dispatcher.Dispatch(line, clientID)

		debugLog.Printf("Client %s → SEND: %s", clientID, response)
		if err := safe.WriteLine(response); err != nil {
			log.Printf("Client %s write error: %v", clientID, err)
			return
		}
	}

	if err := scanner.Err(); err != nil {
		log.Printf("Client %s read error: %v", clientID, err)
	}
}

// startHTTPServer serves the WebSocket transport and Prometheus metrics.
func (s *Server) startHTTPServer() error {
	if s.config.HTTPPort <= 0 {
		return nil
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.HandleWebSocket)
	mux.Handle("/metrics", promhttp.Handler())

	addr := fmt.Sprintf(":%d", s.config.HTTPPort)
	httpListener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.httpServer = &http.Server{Handler: mux}
	log.Printf("HTTP server (websocket + metrics) listening on %s", httpListener.Addr())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpServer.Serve(httpListener); err != nil && err != http.ErrServerClosed {
			log.Printf("HTTP server error: %v", err)
		}
	}()

	return nil
}

func (s *Server) stopHTTPServer() {
	if s.httpServer != nil {
		s.httpServer.Close()
		s.httpServer = nil
	}
}
