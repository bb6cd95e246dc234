package server

import (
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/restock-alert/restock-alert/internal/config"
	"github.com/restock-alert/restock-alert/internal/metrics"
	"github.com/restock-alert/restock-alert/internal/store"
	"github.com/restock-alert/restock-alert/internal/widget"
)

// DefaultRelayTimeout bounds one upstream subscribe call.
const DefaultRelayTimeout = 15 * time.Second

type Server struct {
	store        store.Store
	port         int
	merchant     config.MerchantConfig
	subscriber   widget.Subscriber
	validate     *RequestValidator
	metrics      *metrics.Metrics
	logger       *zap.Logger
	relayTimeout time.Duration
	router       *http.ServeMux
	startTime    time.Time
}

type Option func(*Server)

// WithMerchant sets the configuration served by /bis.js.
func WithMerchant(cfg config.MerchantConfig) Option {
	return func(s *Server) { s.merchant = cfg }
}

// WithSubscriber enables /api/subscribe.
func WithSubscriber(sub widget.Subscriber) Option {
	return func(s *Server) { s.subscriber = sub }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

func WithRelayTimeout(d time.Duration) Option {
	return func(s *Server) { s.relayTimeout = d }
}

func New(s store.Store, port int, opts ...Option) *Server {
	srv := &Server{
		store:        s,
		port:         port,
		validate:     NewRequestValidator(),
		logger:       zap.NewNop(),
		relayTimeout: DefaultRelayTimeout,
		router:       http.NewServeMux(),
		startTime:    time.Now(),
	}
	for _, opt := range opts {
		opt(srv)
	}
	if srv.metrics == nil {
		srv.metrics = metrics.NewMetrics()
	}

	srv.setupRoutes()
	return srv
}

func (s *Server) setupRoutes() {
	m := s.metrics
	s.router.HandleFunc("/health", m.Middleware("/health", s.handleHealth))
	s.router.HandleFunc("/b", m.Middleware("/b", s.handleBeacon))
	s.router.HandleFunc("/bis.js", m.Middleware("/bis.js", s.handleSettingsJS))
	s.router.HandleFunc("/api/subscribe", m.Middleware("/api/subscribe", s.handleSubscribe))
	s.router.Handle("/metrics", m.Handler())
}

func (s *Server) Start() error {
	return s.StartWithOptions(true)
}

// StartQuiet starts the server without printing startup messages
func (s *Server) StartQuiet() error {
	return s.StartWithOptions(false)
}

func (s *Server) StartWithOptions(printMessages bool) error {
	addr := fmt.Sprintf(":%d", s.port)

	if printMessages {
		fmt.Println()
		fmt.Printf("restock-alert running on http://localhost:%d\n", s.port)
		fmt.Printf("Widget settings: http://localhost:%d/bis.js\n", s.port)
		if s.subscriber == nil {
			fmt.Println("Relay disabled: no Klaviyo public API key configured")
		}
		fmt.Println()
		fmt.Println("Press Ctrl+C to stop")
	}

	s.logger.Info("relay server listening", zap.String("addr", addr), zap.Bool("relay", s.subscriber != nil))
	return http.ListenAndServe(addr, s.router)
}

func (s *Server) Store() store.Store {
	return s.store
}

func (s *Server) Metrics() *metrics.Metrics {
	return s.metrics
}

func (s *Server) StartTime() time.Time {
	return s.startTime
}

func (s *Server) Handler() http.Handler {
	return s.router
}
