package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompositeHealthChecker(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	t.Run("all healthy", func(t *testing.T) {
		c := NewCompositeHealthChecker("test")
		c.AddCheck("postgres", ok, true)
		c.AddCheck("redis", ok, false)

		st := c.Check(context.Background())
		assert.True(t, st.Healthy)
		assert.False(t, st.Degraded)
		assert.Len(t, st.Checks, 2)
		assert.Equal(t, "test", st.Version)
	})

	t.Run("optional failure degrades", func(t *testing.T) {
		c := NewCompositeHealthChecker("test")
		c.AddCheck("postgres", ok, true)
		c.AddCheck("redis", down, false)

		st := c.Check(context.Background())
		assert.True(t, st.Healthy)
		assert.True(t, st.Degraded)
		assert.Equal(t, "degraded: redis", st.Message)
		assert.Equal(t, "connection refused", st.Checks["redis"].Message)
	})

	t.Run("critical failure", func(t *testing.T) {
		c := NewCompositeHealthChecker("test")
		c.AddCheck("postgres", down, true)

		st := c.Check(context.Background())
		assert.False(t, st.Healthy)
		assert.Equal(t, "failing: postgres", st.Message)
	})

	t.Run("timeout", func(t *testing.T) {
		c := NewCompositeHealthChecker("test")
		c.SetTimeout(10 * time.Millisecond)
		c.AddCheck("slow", func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}, true)

		st := c.Check(context.Background())
		assert.False(t, st.Healthy)
	})
}

func TestHealthHandler_Ready(t *testing.T) {
	gin.SetMode(gin.TestMode)

	c := NewCompositeHealthChecker("test")
	c.AddCheck("postgres", func(context.Context) error { return errors.New("down") }, true)

	r := gin.New()
	h := NewHealthHandler(c)
	r.GET("/ready", h.Ready)
	r.GET("/health", h.Health)
	r.GET("/live", h.Live)

	for path, want := range map[string]int{
		"/ready":  http.StatusServiceUnavailable,
		"/health": http.StatusOK,
		"/live":   http.StatusOK,
	} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, want, rec.Code, path)
	}
}
