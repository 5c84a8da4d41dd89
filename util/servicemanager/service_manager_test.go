package servicemanager

import (
	"context"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/bsv-blockchain/chainstate/errors"
	"github.com/bsv-blockchain/chainstate/ulogger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockService struct {
	mu       sync.Mutex
	name     string
	failOn   string
	healthy  bool
	started  chan struct{}
	calls    []string
	startErr error
}

func newMockService(name string) *mockService {
	return &mockService{name: name, healthy: true, started: make(chan struct{})}
}

func (m *mockService) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, call)
}

func (m *mockService) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]string(nil), m.calls...)
}

func (m *mockService) Health(_ context.Context, _ bool) (int, string, error) {
	if !m.healthy {
		return http.StatusServiceUnavailable, `{"resource": "mock"}`, errors.NewServiceUnavailableError("%s unhealthy", m.name)
	}

	return http.StatusOK, `{"resource": "mock"}`, nil
}

func (m *mockService) Init(_ context.Context) error {
	m.record("init")

	if m.failOn == "init" {
		return errors.NewServiceError("init failed")
	}

	return nil
}

func (m *mockService) Start(ctx context.Context, readyCh chan<- struct{}) error {
	m.record("start")
	close(m.started)
	readyCh <- struct{}{}

	if m.failOn == "start" {
		return m.startErr
	}

	<-ctx.Done()

	return nil
}

func (m *mockService) Stop(_ context.Context) error {
	m.record("stop")
	return nil
}

func newTestManager(t *testing.T) *ServiceManager {
	t.Helper()

	return NewServiceManager(context.Background(), ulogger.New("test", ulogger.WithWriter(io.Discard)))
}

func TestServiceManager_AddService(t *testing.T) {
	t.Run("init is called", func(t *testing.T) {
		sm := newTestManager(t)
		defer sm.ForceShutdown()

		s := newMockService("svc")
		require.NoError(t, sm.AddService("svc", s))
		assert.Contains(t, s.Calls(), "init")
		assert.Len(t, sm.services, 1)
	})

	t.Run("init failure", func(t *testing.T) {
		sm := newTestManager(t)
		defer sm.ForceShutdown()

		s := newMockService("svc")
		s.failOn = "init"

		err := sm.AddService("svc", s)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrServiceError))
	})
}

func TestServiceManager_Lifecycle(t *testing.T) {
	sm := newTestManager(t)

	s1 := newMockService("one")
	s2 := newMockService("two")

	require.NoError(t, sm.AddService("one", s1))
	require.NoError(t, sm.AddService("two", s2))

	sm.WaitForServiceToBeReady()

	select {
	case <-s2.started:
	case <-time.After(time.Second):
		t.Fatal("second service did not start")
	}

	sm.ForceShutdown()

	require.NoError(t, sm.Wait())

	assert.Equal(t, []string{"init", "start", "stop"}, s1.Calls())
	assert.Equal(t, []string{"init", "start", "stop"}, s2.Calls())
}

func TestServiceManager_StartError(t *testing.T) {
	sm := newTestManager(t)

	s1 := newMockService("ok")
	s2 := newMockService("bad")
	s2.failOn = "start"
	s2.startErr = errors.NewStorageError("boom")

	require.NoError(t, sm.AddService("ok", s1))
	require.NoError(t, sm.AddService("bad", s2))

	err := sm.Wait()
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrStorageError))

	// the failing service cancels the others, and all are stopped
	assert.Contains(t, s1.Calls(), "stop")
	assert.Contains(t, s2.Calls(), "stop")
}

func TestServiceManager_HealthHandler(t *testing.T) {
	sm := newTestManager(t)
	defer sm.ForceShutdown()

	s1 := newMockService("one")
	require.NoError(t, sm.AddService("one", s1))

	status, body, err := sm.HealthHandler(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `"service": "one"`)

	s2 := newMockService("two")
	s2.healthy = false
	require.NoError(t, sm.AddService("two", s2))

	status, _, err = sm.HealthHandler(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, status)
}
