package bootstrap

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeAddr(t *testing.T) {
	cases := map[string]string{
		"":      ":8080",
		"5000":  ":5000",
		":9090": ":9090",
		" 80 ":  ":80",
	}
	for in, want := range cases {
		if got := normalizeAddr(in); got != want {
			t.Fatalf("normalizeAddr(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	require.Equal(t, slog.LevelWarn, parseLevel("warning"))
	require.Equal(t, slog.LevelError, parseLevel("error"))
	require.Equal(t, slog.LevelInfo, parseLevel("verbose"))
}

func TestBuildAPIWithDefaultsServesHealth(t *testing.T) {
	t.Setenv("POLLBOT_LOG_LEVEL", "error")
	app, err := BuildAPI("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	require.Nil(t, app.bus)
	rec := httptest.NewRecorder()
	app.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "OK", rec.Body.String())
}

func TestBuildWorkerRequiresSweepSecret(t *testing.T) {
	t.Setenv("POLLBOT_LOG_LEVEL", "error")
	_, err := BuildWorker("")
	require.Error(t, err)

	t.Setenv("POLLBOT_SWEEP_SECRET", "s3cret")
	worker, err := BuildWorker("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = worker.Close() })
	require.Equal(t, "s3cret", worker.trigger.Secret)
}
