package server

import (
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// debugLog traces per-frame activity; enabled with -debug.
var debugLog = log.New(io.Discard, "DEBUG: ", log.Ldate|log.Ltime|log.Lmicroseconds)

// Server owns the connection registry, the delivery queue, the history
// log and all background goroutines. Construct one with NewServer and
// pass nothing around globally.
type Server struct {
	config   ServerConfig
	registry *Registry
	queue    *Queue
	history  *History
	sink     LogSink
	metrics  *Metrics

	listener     net.Listener
	httpListener net.Listener
	httpServer   *http.Server

	shutdown chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewServer creates a new server instance. When config.LogFile is
// empty the log sink is kept in memory only.
func NewServer(config ServerConfig) (*Server, error) {
	var sink LogSink
	if config.LogFile != "" {
		fileSink, err := NewFileSink(config.LogFile)
		if err != nil {
			return nil, err
		}
		sink = fileSink
	} else {
		sink = NewMemorySink()
	}

	return &Server{
		config:   config,
		registry: NewRegistry(),
		queue:    NewQueue(),
		history:  NewHistory(),
		sink:     sink,
		metrics:  NewMetrics(),
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// EnableDebugLogging turns on per-frame debug output
func (s *Server) EnableDebugLogging() {
	debugLog.SetOutput(log.Writer())
}

// History exposes the in-memory history log for auditing collaborators
func (s *Server) History() *History {
	return s.history
}

// Addr returns the TCP listen address once the server has started
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// HTTPAddr returns the WebSocket/metrics listen address, or "" when
// the HTTP listener is disabled.
func (s *Server) HTTPAddr() string {
	if s.httpListener == nil {
		return ""
	}
	return s.httpListener.Addr().String()
}

// Start opens the listeners and spawns the accept loop and the
// delivery scheduler. It does not block.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.TCPPort)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener
	s.logf("Server listening on %s", listener.Addr())

	if s.config.HTTPPort >= 0 {
		if err := s.startHTTPServer(); err != nil {
			s.listener.Close()
			return err
		}
	}

	s.wg.Add(1)
	go s.deliveryLoop()

	s.wg.Add(1)
	go s.acceptLoop()

	return nil
}

// startHTTPServer serves the WebSocket transport and Prometheus
// metrics on a shared HTTP listener.
func (s *Server) startHTTPServer() error {
	addr := fmt.Sprintf(":%d", s.config.HTTPPort)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.HandleWebSocket)
	mux.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}))

	s.httpListener = listener
	s.httpServer = &http.Server{Handler: mux}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Printf("HTTP server error: %v", err)
		}
	}()

	log.Printf("WebSocket and metrics listening on %s", listener.Addr())
	return nil
}

// acceptLoop accepts incoming TCP connections until shutdown
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

		if tcpConn, ok := conn.(*net.TCPConn); ok {
			tcpConn.SetNoDelay(true)
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(conn, "tcp")
		}()
	}
}

// Stop gracefully stops the server: close the listeners, close every
// client connection so blocked handler reads return, then wait for all
// goroutines to observe the shutdown flag and exit.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.shutdown)

		if s.listener != nil {
			s.listener.Close()
		}
		if s.httpServer != nil {
			s.httpServer.Close()
		}

		for _, client := range s.registry.All() {
			client.Conn.Close()
		}

		s.wg.Wait()

		s.logf("Server stopped")
		s.sink.Close()
		close(s.done)
	})
}

// Done is closed once a Stop (including the last-user-disconnected
// shutdown) has fully completed.
func (s *Server) Done() <-chan struct{} {
	return s.done
}

func (s *Server) stopping() bool {
	select {
	case <-s.shutdown:
		return true
	default:
		return false
	}
}

// onClientRemoved applies the last-user-gone policy: when the final
// client leaves and the policy is enabled, the server shuts itself
// down. Stop must run off the handler goroutine because it waits for
// that same goroutine to exit.
func (s *Server) onClientRemoved(remaining int) {
	if remaining != 0 || !s.config.ShutdownOnLastDisconnect || s.stopping() {
		return
	}
	s.logf("Last client disconnected - shutting down")
	go s.Stop()
}

// logf records an operational event both to the process log and to
// the persistent log sink served by GET_LOG.
func (s *Server) logf(format string, args ...any) {
	log.Printf(format, args...)
	s.sink.Printf(format, args...)
}
