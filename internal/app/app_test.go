package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Corphon/VNScriptCreator/internal/config"
	"github.com/Corphon/VNScriptCreator/internal/di"
)

// mockServer 模拟服务器：阻塞到 Shutdown 被调用
type mockServer struct {
	shutdownCalled atomic.Bool
	stopped        chan struct{}
}

func newMockServer() *mockServer {
	return &mockServer{stopped: make(chan struct{})}
}

func (m *mockServer) ListenAndServe() error {
	<-m.stopped
	return http.ErrServerClosed
}

func (m *mockServer) Shutdown(ctx context.Context) error {
	m.shutdownCalled.Store(true)
	close(m.stopped)
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		Port:                 "0",
		DebugMode:            false,
		SessionTTL:           time.Hour,
		SessionSweepInterval: time.Minute,
		ShutdownTimeout:      time.Second,
	}
}

func TestNew_RegistersServices(t *testing.T) {
	a, err := New(testConfig())
	require.NoError(t, err)

	for _, name := range []string{
		di.ServiceSessions, di.ServiceProjects, di.ServiceAnalyzer,
		di.ServiceExport, di.ServiceWebSocket,
	} {
		assert.True(t, a.GetDIContainer().Has(name), name)
	}
	assert.False(t, a.GetDIContainer().Has(di.ServiceMetrics))
	assert.False(t, a.IsDebugMode())
}

func TestApp_Health(t *testing.T) {
	a, err := New(testConfig())
	require.NoError(t, err)

	w := httptest.NewRecorder()
	a.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestApp_RunShutsDownOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	a, err := New(testConfig())
	require.NoError(t, err)
	srv := newMockServer()
	a.server = srv

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run 未在取消后返回")
	}
	assert.True(t, srv.shutdownCalled.Load())
}
