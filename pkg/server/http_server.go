package server

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"nncli/pkg/network"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDHeader carries the id assigned to every request.
const RequestIDHeader = "X-Request-ID"

// HTTPServer serves inference requests for a network that is not modified
// while the server runs.
type HTTPServer struct {
	Router *gin.Engine
	Addr   string

	nn       *network.NeuronNetwork
	srv      *http.Server
	logger   *log.Logger
	done     chan struct{}
	stopOnce sync.Once
}

// NewHTTPServer creates the server and registers its routes.
func NewHTTPServer(addr string, nn *network.NeuronNetwork, logger *log.Logger) *HTTPServer {
	if logger == nil {
		logger = log.Default()
	}
	router := gin.New()
	router.Use(gin.LoggerWithWriter(logger.Writer()), gin.Recovery(), requestID())

	hs := &HTTPServer{
		Router: router,
		Addr:   addr,
		nn:     nn,
		srv: &http.Server{
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
		done:   make(chan struct{}),
	}
	// hijacked websocket connections are not tracked by Shutdown
	hs.srv.RegisterOnShutdown(func() {
		hs.stopOnce.Do(func() { close(hs.done) })
	})
	hs.routes()
	return hs
}

func (hs *HTTPServer) routes() {
	hs.Router.GET("/health", hs.handleHealth)
	hs.Router.GET("/topology", hs.handleTopology)
	hs.Router.POST("/feed", hs.handleFeed)
	hs.Router.GET("/feed/ws", hs.handleFeedSocket)
}

// Start listens on Addr and serves until Stop is called. It returns nil
// after a clean shutdown.
func (hs *HTTPServer) Start() error {
	ln, err := net.Listen("tcp", hs.Addr)
	if err != nil {
		return err
	}
	return hs.Serve(ln)
}

// Serve serves on ln until Stop is called.
func (hs *HTTPServer) Serve(ln net.Listener) error {
	hs.logger.Printf("serving network topology=%v addr=%s", hs.nn.Topology(), ln.Addr())
	if err := hs.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop shuts the server down, waiting for in-flight requests until ctx ends.
func (hs *HTTPServer) Stop(ctx context.Context) error {
	return hs.srv.Shutdown(ctx)
}

// GetRouter returns the gin engine.
func (hs *HTTPServer) GetRouter() *gin.Engine {
	return hs.Router
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		c.Set("request_id", id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}
