package observability_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/warp/commission-engine/observability"
)

func TestNewLogger_Levels(t *testing.T) {
	for level, want := range map[string]zapcore.Level{
		"debug": zapcore.DebugLevel,
		"WARN":  zapcore.WarnLevel,
		"":      zapcore.InfoLevel,
		"loud":  zapcore.InfoLevel,
	} {
		logger, err := observability.NewLogger(level)
		require.NoError(t, err)
		assert.True(t, logger.Core().Enabled(want), "level %q", level)
		assert.False(t, logger.Core().Enabled(want-1), "level %q", level)
	}
}

func TestRequestLogger_LogsStatusAndRoute(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)

	r := chi.NewRouter()
	r.Use(observability.RequestLogger(zap.New(core)))
	r.Get("/api/plans/{id}", func(w http.ResponseWriter, r *http.Request) {
		observability.FromContext(r.Context()).Info("handler ran")
		w.WriteHeader(http.StatusNotFound)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/plans/x", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.Equal(t, 2, logs.Len())
	assert.Equal(t, "handler ran", logs.All()[0].Message)

	done := logs.All()[1]
	assert.Equal(t, zapcore.WarnLevel, done.Level)
	fields := done.ContextMap()
	assert.Equal(t, int64(http.StatusNotFound), fields["status"])
	assert.Equal(t, "/api/plans/{id}", fields["route"])
}

func TestRecoverer(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)

	h := observability.Recoverer(zap.New(core))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, rec.Body.String())
	assert.Equal(t, 1, logs.FilterMessage("panic recovered").Len())
}
