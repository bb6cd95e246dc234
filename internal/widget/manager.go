package widget

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/restock-alert/restock-alert/internal/analytics"
	"github.com/restock-alert/restock-alert/internal/config"
	"github.com/restock-alert/restock-alert/internal/subcache"
)

// DefaultSettleDelay lets a content update finish rendering before re-scanning.
const DefaultSettleDelay = 100 * time.Millisecond

// ManagerDeps are shared by every controller the Manager creates.
type ManagerDeps struct {
	Config        ConfigProvider
	Cache         *subcache.Cache
	Emitter       *analytics.Emitter
	NewSubscriber func(cfg config.MerchantConfig) Subscriber
	Logger        *zap.Logger
	SubmitTimeout time.Duration
}

// Manager owns the registry of bound widget instances.
type Manager struct {
	deps        ManagerDeps
	logger      *zap.Logger
	settleDelay time.Duration

	mu          sync.Mutex
	controllers map[string]*Controller
	pending     *time.Timer
}

type ManagerOption func(*Manager)

func WithSettleDelay(d time.Duration) ManagerOption {
	return func(m *Manager) { m.settleDelay = d }
}

func NewManager(deps ManagerDeps, opts ...ManagerOption) *Manager {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		deps:        deps,
		logger:      logger,
		settleDelay: DefaultSettleDelay,
		controllers: map[string]*Controller{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Scan binds every marker in doc that is not bound yet and returns how many
// were newly bound.
func (m *Manager) Scan(doc Document) int {
	if doc == nil {
		return 0
	}

	bound := 0
	for _, marker := range doc.Markers() {
		if _, created := m.BindIfUnbound(marker); created {
			bound++
		}
	}
	return bound
}

// BindIfUnbound returns the controller for the marker, creating and binding
// it on first sight. The bool reports whether it was created now. Nothing
// is bound while the merchant has the widget disabled.
func (m *Manager) BindIfUnbound(marker Marker) (*Controller, bool) {
	if marker.View == nil {
		m.logger.Warn("widget marker has no view", zap.String("widget", marker.Instance.Key()))
		return nil, false
	}

	id := marker.Instance.Key()

	m.mu.Lock()
	if existing, ok := m.controllers[id]; ok {
		m.mu.Unlock()
		return existing, false
	}

	cfg := m.resolveConfig()
	if !cfg.Enabled {
		m.mu.Unlock()
		m.logger.Debug("back-in-stock disabled, leaving widget unbound", zap.String("widget", id))
		return nil, false
	}

	var sub Subscriber
	if m.deps.NewSubscriber != nil && cfg.HasAPIKey() {
		sub = m.deps.NewSubscriber(cfg)
	}

	ctrl := NewController(marker.Instance, marker.View, Deps{
		Config:        cfg,
		Cache:         m.deps.Cache,
		Emitter:       m.deps.Emitter,
		Subscriber:    sub,
		Logger:        m.logger,
		SubmitTimeout: m.deps.SubmitTimeout,
	})
	m.controllers[id] = ctrl
	m.mu.Unlock()

	ctrl.Bind()
	m.logger.Debug("widget bound", zap.String("widget", id))
	return ctrl, true
}

// ContentUpdated schedules a re-scan of doc after the settle delay. A
// burst of updates collapses into one re-scan.
func (m *Manager) ContentUpdated(doc Document) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pending != nil {
		m.pending.Stop()
	}
	m.pending = time.AfterFunc(m.settleDelay, func() {
		if n := m.Scan(doc); n > 0 {
			m.logger.Debug("re-scan bound new widgets", zap.Int("count", n))
		}
	})
}

// Stop cancels a pending re-scan.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pending != nil {
		m.pending.Stop()
		m.pending = nil
	}
}

// Forget drops an instance whose markup was removed and releases its view,
// so a later scan that finds the same markup binds it exactly once.
func (m *Manager) Forget(id string) {
	m.mu.Lock()
	ctrl, ok := m.controllers[id]
	delete(m.controllers, id)
	m.mu.Unlock()

	if ok {
		ctrl.Release()
		m.logger.Debug("widget released", zap.String("widget", id))
	}
}

func (m *Manager) Controller(id string) (*Controller, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.controllers[id]
	return c, ok
}

// Controllers returns the bound controllers in no particular order.
func (m *Manager) Controllers() []*Controller {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*Controller, 0, len(m.controllers))
	for _, c := range m.controllers {
		out = append(out, c)
	}
	return out
}

// resolveConfig is called once per new instance. Caller holds mu.
func (m *Manager) resolveConfig() config.MerchantConfig {
	if m.deps.Config == nil {
		return config.NewResolver().Resolve()
	}
	return m.deps.Config.Resolve()
}
