// Package rpcpool manages a prioritized pool of Solana RPC endpoints with
// background health probing and automatic failover.
package rpcpool

import (
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/ybbus/jsonrpc"

	"github.com/artbay/nft-server/pkg/config"
	"github.com/artbay/nft-server/pkg/solana"
)

// ConnectionProvider is the narrow surface builders and verifiers depend on.
// The manager implements it; tests substitute their own.
type ConnectionProvider interface {
	// GetConnection returns a client bound to the currently selected
	// endpoint.
	GetConnection() solana.Client

	// RecordSuccess reports a successful call against the current endpoint.
	RecordSuccess(latency time.Duration)

	// RecordError reports a failed call against the current endpoint.
	// Sustained errors trigger failover.
	RecordError()
}

// Endpoint is a remote RPC endpoint in priority order.
type Endpoint struct {
	Name string
	URL  string
}

// endpointState is the mutable health record for one endpoint. It is owned
// exclusively by the manager and only touched under the manager's lock, since
// both request paths and the background probe write the same fields.
type endpointState struct {
	Endpoint

	healthy           bool
	lastCheckedAt     time.Time
	latency           time.Duration
	consecutiveErrors int

	client solana.Client
}

type ClientFactory func(endpoint string, timeout time.Duration) solana.Client

func defaultClientFactory(endpoint string, timeout time.Duration) solana.Client {
	if timeout <= 0 {
		return solana.New(endpoint)
	}

	return solana.NewWithRPCOptions(endpoint, &jsonrpc.RPCClientOpts{
		HTTPClient: &http.Client{Timeout: timeout},
	})
}

type Manager struct {
	log *logrus.Entry

	mu        sync.Mutex
	endpoints []*endpointState
	current   int

	maxErrors     int
	probeInterval time.Duration
	probeTimeout  time.Duration

	newClient ClientFactory

	shutdownCh   chan struct{}
	shutdownOnce sync.Once
}

type Option func(*Manager)

// WithMaxErrorsBeforeFailover sets the consecutive error threshold at which
// an endpoint is marked unhealthy and failover is triggered.
func WithMaxErrorsBeforeFailover(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxErrors = n
		}
	}
}

// WithProbeInterval sets the background health probe interval.
func WithProbeInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.probeInterval = d
		}
	}
}

// WithProbeTimeout sets the per-probe request timeout.
func WithProbeTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.probeTimeout = d
		}
	}
}

// WithClientFactory overrides how clients are constructed. Used by tests.
func WithClientFactory(f ClientFactory) Option {
	return func(m *Manager) {
		m.newClient = f
	}
}

// NewManager creates a manager over the provided endpoints, in priority
// order. All endpoints start healthy optimistically and are corrected by the
// first probe cycle.
func NewManager(endpoints []Endpoint, opts ...Option) *Manager {
	m := &Manager{
		log:           logrus.StandardLogger().WithField("type", "rpcpool/manager"),
		maxErrors:     config.DefaultMaxErrorsBeforeFailover,
		probeInterval: config.DefaultHealthCheckInterval,
		probeTimeout:  5 * time.Second,
		newClient:     defaultClientFactory,
		shutdownCh:    make(chan struct{}),
	}

	for _, opt := range opts {
		opt(m)
	}

	for _, e := range endpoints {
		if e.URL == "" {
			continue
		}

		m.endpoints = append(m.endpoints, &endpointState{
			Endpoint: e,
			healthy:  true,
		})
	}

	if len(m.endpoints) == 0 {
		panic("rpcpool: no endpoints configured")
	}

	return m
}

// NewManagerFromConfig creates a manager from the environment configuration,
// wiring primary, backup and fallback endpoints in that priority order.
func NewManagerFromConfig(cfg *config.Config) *Manager {
	endpoints := []Endpoint{
		{Name: "primary", URL: cfg.PrimaryRPCURL},
		{Name: "backup", URL: cfg.BackupRPCURL},
		{Name: "fallback", URL: cfg.FallbackRPCURL},
	}

	return NewManager(
		endpoints,
		WithMaxErrorsBeforeFailover(cfg.MaxErrorsBeforeFailover),
		WithProbeInterval(cfg.HealthCheckInterval),
	)
}

// Start launches the background health probe loop. It runs until Shutdown.
func (m *Manager) Start() {
	go func() {
		ticker := time.NewTicker(m.probeInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				m.probeAll()
			case <-m.shutdownCh:
				return
			}
		}
	}()
}

// Shutdown stops the background probe loop.
func (m *Manager) Shutdown() {
	m.shutdownOnce.Do(func() {
		close(m.shutdownCh)
	})
}

// GetConnection returns a client bound to the currently selected endpoint.
// The client is lazily constructed and cached until failover.
func (m *Manager) GetConnection() solana.Client {
	m.mu.Lock()
	defer m.mu.Unlock()

	ep := m.endpoints[m.current]
	if ep.client == nil {
		ep.client = m.newClient(ep.URL, 0)
	}

	return ep.client
}

// RecordSuccess resets the current endpoint's error counter and updates its
// latency metric.
func (m *Manager) RecordSuccess(latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ep := m.endpoints[m.current]
	ep.consecutiveErrors = 0
	ep.healthy = true
	ep.latency = latency
}

// RecordError increments the current endpoint's error counter. At or above
// the failover threshold the endpoint is marked unhealthy and the manager
// fails over to the next healthy endpoint.
func (m *Manager) RecordError() {
	m.mu.Lock()
	defer m.mu.Unlock()

	ep := m.endpoints[m.current]
	ep.consecutiveErrors++

	if ep.consecutiveErrors >= m.maxErrors {
		ep.healthy = false

		m.log.WithFields(logrus.Fields{
			"endpoint": ep.Name,
			"errors":   ep.consecutiveErrors,
		}).Warn("endpoint unhealthy, failing over")

		m.failover()
	}
}

// CurrentEndpoint returns the name of the currently selected endpoint.
func (m *Manager) CurrentEndpoint() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.endpoints[m.current].Name
}

// failover scans the endpoints starting after the current index, in priority
// order, and selects the first healthy one. If none are healthy the current
// endpoint is kept; degraded service beats no service.
//
// Callers must hold m.mu.
func (m *Manager) failover() {
	for offset := 1; offset <= len(m.endpoints); offset++ {
		candidate := (m.current + offset) % len(m.endpoints)
		if !m.endpoints[candidate].healthy {
			continue
		}

		m.current = candidate
		m.log.WithField("endpoint", m.endpoints[candidate].Name).Info("failed over to endpoint")
		return
	}

	m.log.Error("no healthy rpc endpoint available, continuing with current endpoint")
}

// probeAll issues a liveness call against every endpoint with a short
// timeout and updates health state. It never blocks in-flight requests: the
// probes run outside the lock, and state is updated after each probe
// completes.
func (m *Manager) probeAll() {
	for i := range m.endpoints {
		m.mu.Lock()
		url := m.endpoints[i].URL
		m.mu.Unlock()

		probe := m.newClient(url, m.probeTimeout)

		start := time.Now()
		err := probe.GetHealth()
		latency := time.Since(start)

		m.mu.Lock()
		ep := m.endpoints[i]
		ep.lastCheckedAt = time.Now()

		if err != nil {
			ep.healthy = false
			ep.consecutiveErrors++
			m.log.WithField("endpoint", ep.Name).WithError(err).Debug("health probe failed")
		} else {
			wasUnhealthy := !ep.healthy
			ep.healthy = true
			ep.consecutiveErrors = 0
			ep.latency = latency

			if wasUnhealthy {
				m.log.WithField("endpoint", ep.Name).Info("endpoint recovered")
			}
		}
		m.mu.Unlock()
	}

	// If the probe round found the selected endpoint unhealthy, move off it
	// proactively rather than waiting for the next request to fail.
	m.mu.Lock()
	if !m.endpoints[m.current].healthy {
		m.failover()
	}
	m.mu.Unlock()
}
