package logger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		config  *Config
		wantErr bool
	}{
		{
			name:    "default config",
			config:  DefaultConfig(),
			wantErr: false,
		},
		{
			name: "console output",
			config: &Config{
				Level:  "info",
				Format: "console",
				Output: "console",
			},
			wantErr: false,
		},
		{
			name: "file output",
			config: &Config{
				Level:  "debug",
				Format: "json",
				Output: "file",
				File: FileConfig{
					Filename:   filepath.Join(dir, "file.log"),
					MaxSize:    10,
					MaxAge:     7,
					MaxBackups: 3,
					Compress:   true,
				},
			},
			wantErr: false,
		},
		{
			name: "both output",
			config: &Config{
				Level:  "warn",
				Format: "json",
				Output: "both",
				File: FileConfig{
					Filename:   filepath.Join(dir, "logs", "both.log"),
					MaxSize:    10,
					MaxAge:     7,
					MaxBackups: 3,
				},
			},
			wantErr: false,
		},
		{
			name:    "invalid level",
			config:  &Config{Level: "invalid", Format: "json", Output: "console"},
			wantErr: true,
		},
		{
			name:    "invalid format",
			config:  &Config{Level: "info", Format: "invalid", Output: "console"},
			wantErr: true,
		},
		{
			name:    "invalid output",
			config:  &Config{Level: "info", Format: "json", Output: "invalid"},
			wantErr: true,
		},
		{
			name:    "file output without filename",
			config:  &Config{Level: "info", Format: "json", Output: "file"},
			wantErr: true,
		},
		{
			name: "file output with zero maxage",
			config: &Config{
				Level:  "info",
				Format: "json",
				Output: "file",
				File:   FileConfig{Filename: filepath.Join(dir, "x.log"), MaxSize: 1},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, l)
			l.Info("test message", zap.String("case", tt.name))
			_ = l.Sync()
		})
	}
}

func TestLogger_WithAndNamed(t *testing.T) {
	l, err := New(DefaultConfig())
	require.NoError(t, err)

	child := l.With(zap.String("key", "value")).Named("store")
	require.NotNil(t, child)
	assert.Same(t, l.Config(), child.Config())
}

func TestRequestIDContext(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetRequestID(ctx))
	assert.Equal(t, zap.Skip(), RequestID(ctx))

	ctx = WithRequestID(ctx, "req-1")
	assert.Equal(t, "req-1", GetRequestID(ctx))
	assert.Equal(t, zap.String("request_id", "req-1"), RequestID(ctx))

	l, err := New(DefaultConfig())
	require.NoError(t, err)
	assert.NotSame(t, l, l.WithContext(ctx))
	assert.Same(t, l, l.WithContext(context.Background()))
}

func TestGlobalLogger(t *testing.T) {
	require.NotNil(t, L())
	require.NoError(t, InitGlobal(DefaultConfig()))

	Info("info message", zap.String("key", "value"))
	Warn("warn message")
	Error("error message")
	_ = Sync()
}

func TestGinLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	l, err := New(DefaultConfig())
	require.NoError(t, err)

	var seen string
	router := gin.New()
	router.Use(GinRecovery(l), GinLogger(l, MiddlewareOptions{SkipPaths: []string{"/health"}}))
	router.GET("/ping", func(c *gin.Context) {
		seen = GetRequestID(c.Request.Context())
		c.Status(http.StatusNoContent)
	})
	router.GET("/panic", func(c *gin.Context) {
		panic("boom")
	})

	t.Run("generates request id", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.NotEmpty(t, seen)
		assert.Equal(t, seen, w.Header().Get(requestIDHeader))
	})

	t.Run("keeps incoming request id", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set(requestIDHeader, "abc")
		router.ServeHTTP(w, req)
		assert.Equal(t, "abc", seen)
	})

	t.Run("recovers from panic", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}
