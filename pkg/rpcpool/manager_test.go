package rpcpool

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artbay/nft-server/pkg/solana"
)

type fakeClient struct {
	solana.Client

	endpoint  string
	healthErr error
}

func (f *fakeClient) GetHealth() error {
	return f.healthErr
}

func newTestManager(t *testing.T, health map[string]error) *Manager {
	t.Helper()

	endpoints := []Endpoint{
		{Name: "primary", URL: "http://primary"},
		{Name: "backup", URL: "http://backup"},
		{Name: "fallback", URL: "http://fallback"},
	}

	return NewManager(
		endpoints,
		WithClientFactory(func(endpoint string, timeout time.Duration) solana.Client {
			return &fakeClient{
				endpoint:  endpoint,
				healthErr: health[endpoint],
			}
		}),
	)
}

func TestManager_FailoverAfterConsecutiveErrors(t *testing.T) {
	m := newTestManager(t, nil)
	assert.Equal(t, "primary", m.CurrentEndpoint())

	// First three calls fail against the primary; the fourth call is
	// served from the backup.
	for i := 0; i < 3; i++ {
		client := m.GetConnection().(*fakeClient)
		assert.Equal(t, "http://primary", client.endpoint)
		m.RecordError()
	}

	assert.Equal(t, "backup", m.CurrentEndpoint())
	client := m.GetConnection().(*fakeClient)
	assert.Equal(t, "http://backup", client.endpoint)
}

func TestManager_SuccessResetsErrorCount(t *testing.T) {
	m := newTestManager(t, nil)

	m.RecordError()
	m.RecordError()
	m.RecordSuccess(5 * time.Millisecond)
	m.RecordError()
	m.RecordError()

	// Never hit three consecutive errors, so no failover.
	assert.Equal(t, "primary", m.CurrentEndpoint())
}

func TestManager_GracefulDegradation(t *testing.T) {
	m := newTestManager(t, nil)

	// Exhaust every endpoint. With none healthy the manager keeps serving
	// from wherever it last landed instead of refusing connections.
	for i := 0; i < 9; i++ {
		m.RecordError()
	}

	require.NotNil(t, m.GetConnection())
}

func TestManager_CachedConnection(t *testing.T) {
	m := newTestManager(t, nil)

	first := m.GetConnection()
	second := m.GetConnection()
	assert.Same(t, first, second)

	for i := 0; i < 3; i++ {
		m.RecordError()
	}

	assert.NotSame(t, first, m.GetConnection())
}

func TestManager_ProbeRecoversEndpoint(t *testing.T) {
	health := map[string]error{
		"http://primary": errors.New("unhealthy"),
	}
	m := newTestManager(t, health)

	// Probe marks the primary unhealthy and moves off it.
	m.probeAll()
	assert.Equal(t, "backup", m.CurrentEndpoint())

	// Once the primary recovers, a failing backup sends traffic back.
	delete(health, "http://primary")
	m.probeAll()
	for i := 0; i < 3; i++ {
		m.RecordError()
	}
	assert.Equal(t, "fallback", m.CurrentEndpoint())
}

func TestManager_ProbeMovesOffUnhealthyCurrent(t *testing.T) {
	health := map[string]error{
		"http://primary": errors.New("unhealthy"),
		"http://backup":  errors.New("unhealthy"),
	}
	m := newTestManager(t, health)

	m.probeAll()
	assert.Equal(t, "fallback", m.CurrentEndpoint())
}

func TestManager_StartStop(t *testing.T) {
	m := newTestManager(t, nil)
	m.Start()
	m.Shutdown()

	// Shutdown is idempotent.
	m.Shutdown()
}
