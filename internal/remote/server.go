package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/san-kum/mindstone/internal/plant"
	"github.com/san-kum/mindstone/internal/state"
)

const clientQueue = 16

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type ServerOption func(*Server)

// WithComponent nests published readings under name.
func WithComponent(name string) ServerOption {
	return func(s *Server) { s.component = name }
}

func WithServerLogger(l *slog.Logger) ServerOption {
	return func(s *Server) { s.logger = l }
}

// WithRegistry registers the worker's metrics on reg instead of a private
// registry.
func WithRegistry(reg *prometheus.Registry) ServerOption {
	return func(s *Server) { s.registry = reg }
}

// Server owns a plant and streams its snapshots to every connected client.
// Commands received from any client are applied to the plant.
type Server struct {
	plant     *plant.Plant
	period    time.Duration
	component string
	logger    *slog.Logger
	registry  *prometheus.Registry
	engine    *gin.Engine

	mu      sync.Mutex
	clients map[*conn]struct{}

	published prometheus.Counter
	commands  prometheus.Counter
	rejected  prometheus.Counter
	dropped   prometheus.Counter
	connected prometheus.Gauge
}

type conn struct {
	ws   *websocket.Conn
	send chan Message
}

// NewServer builds a worker for p. period is the plant step and publish
// interval used by Run.
func NewServer(p *plant.Plant, period time.Duration, opts ...ServerOption) *Server {
	s := &Server{
		plant:   p,
		period:  period,
		logger:  slog.Default(),
		clients: make(map[*conn]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
	}

	factory := promauto.With(s.registry)
	s.published = factory.NewCounter(prometheus.CounterOpts{
		Name: "mindstone_worker_observations_total",
		Help: "Observations published to clients.",
	})
	s.commands = factory.NewCounter(prometheus.CounterOpts{
		Name: "mindstone_worker_commands_total",
		Help: "Commands applied to the plant.",
	})
	s.rejected = factory.NewCounter(prometheus.CounterOpts{
		Name: "mindstone_worker_command_errors_total",
		Help: "Commands the plant rejected.",
	})
	s.dropped = factory.NewCounter(prometheus.CounterOpts{
		Name: "mindstone_worker_dropped_total",
		Help: "Observations dropped for slow clients.",
	})
	s.connected = factory.NewGauge(prometheus.GaugeOpts{
		Name: "mindstone_worker_clients",
		Help: "Connected websocket clients.",
	})

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/healthz", s.health)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))
	router.GET("/ws", s.handleWebSocket)
	s.engine = router
	return s
}

func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) Registry() *prometheus.Registry { return s.registry }

// Run steps the plant, publishes its snapshots, and serves HTTP on addr until
// ctx is done.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.engine}
	parent := ctx
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.plant.Run(ctx, s.period) })
	g.Go(func() error { return s.Publish(ctx) })
	g.Go(func() error {
		s.logger.Info("worker listening", "addr", addr, "plant", s.plant.System().Name())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdown)
	})
	err := g.Wait()
	if parent.Err() != nil && errors.Is(err, parent.Err()) {
		return nil
	}
	return err
}

// Publish forwards every new plant snapshot to connected clients until ctx
// is done.
func (s *Server) Publish(ctx context.Context) error {
	for {
		snap, ok := s.plant.Acquire(ctx, s.period*10)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !ok {
			continue
		}
		s.broadcast(observation(snap, s.component))
	}
}

func (s *Server) broadcast(msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		select {
		case c.send <- msg:
			s.published.Inc()
		default:
			s.dropped.Inc()
		}
	}
}

func (s *Server) health(c *gin.Context) {
	s.mu.Lock()
	n := len(s.clients)
	s.mu.Unlock()
	snap := s.plant.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"plant":   s.plant.System().Name(),
		"time":    snap.Time(),
		"clients": n,
	})
}

func (s *Server) handleWebSocket(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	cl := &conn{ws: ws, send: make(chan Message, clientQueue)}
	s.register(cl)
	defer s.unregister(cl)

	done := make(chan struct{})
	go s.writeLoop(cl, done)
	defer close(done)

	// The current snapshot goes out first so a new client never waits a full
	// period for its first observation.
	if snap := s.plant.Snapshot(); !snap.IsZero() {
		cl.send <- observation(snap, s.component)
	}

	for {
		var msg Message
		if err := ws.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("websocket read ended", "error", err)
			}
			return
		}
		received := time.Now()
		if msg.Type != TypeCommand {
			s.reply(cl, fmt.Errorf("unsupported message type %q", msg.Type), received)
			continue
		}
		out := state.NewOutput(msg.Time, msg.Values)
		if err := s.plant.Apply(c.Request.Context(), out); err != nil {
			s.rejected.Inc()
			s.reply(cl, err, received)
			continue
		}
		s.commands.Inc()
	}
}

func (s *Server) reply(cl *conn, err error, received time.Time) {
	msg := Message{Type: TypeError, Error: err.Error(), ReceivedAt: received, SentAt: time.Now()}
	select {
	case cl.send <- msg:
	default:
		s.dropped.Inc()
	}
}

func (s *Server) writeLoop(cl *conn, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case msg := <-cl.send:
			msg.SentAt = time.Now()
			_ = cl.ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := cl.ws.WriteJSON(msg); err != nil {
				s.logger.Debug("websocket write failed", "error", err)
				_ = cl.ws.Close()
				return
			}
		}
	}
}

func (s *Server) register(cl *conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[cl] = struct{}{}
	s.connected.Inc()
}

func (s *Server) unregister(cl *conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[cl]; ok {
		delete(s.clients, cl)
		s.connected.Dec()
		_ = cl.ws.Close()
	}
}
