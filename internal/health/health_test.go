package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func static(s Status) Check {
	return func(context.Context) Result { return Result{Status: s} }
}

func TestOverallStatus(t *testing.T) {
	tests := []struct {
		name     string
		critical Status
		optional Status
		want     Status
	}{
		{"all healthy", StatusHealthy, StatusHealthy, StatusHealthy},
		{"optional failing", StatusHealthy, StatusUnhealthy, StatusDegraded},
		{"critical failing", StatusUnhealthy, StatusHealthy, StatusUnhealthy},
		{"critical degraded", StatusDegraded, StatusHealthy, StatusDegraded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker()
			c.RegisterFunc("keyboard", true, static(tt.critical))
			c.RegisterFunc("trackpad", false, static(tt.optional))
			c.Check(context.Background())
			assert.Equal(t, tt.want, c.OverallStatus())
		})
	}
}

func TestOverallStatus_UnknownBeforeFirstCheck(t *testing.T) {
	c := NewChecker()
	c.RegisterFunc("keyboard", true, static(StatusHealthy))
	assert.Equal(t, StatusUnknown, c.OverallStatus())
}

func TestCheck_RecoversPanicsAndTimeouts(t *testing.T) {
	c := NewChecker()
	c.RegisterFunc("boom", false, func(context.Context) Result { panic("bad") })
	c.Register(&Component{
		Name:    "slow",
		Timeout: 10 * time.Millisecond,
		Check: func(ctx context.Context) Result {
			<-ctx.Done()
			time.Sleep(5 * time.Millisecond)
			return Result{Status: StatusHealthy}
		},
	})

	res := c.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, res["boom"].Status)
	assert.Equal(t, "bad", res["boom"].Error)
	assert.Equal(t, StatusUnhealthy, res["slow"].Status)
	assert.Equal(t, []string{"boom", "slow"}, c.Names())
}

func TestMonitorCheck(t *testing.T) {
	running := MonitorCheck(func() (bool, error) { return true, nil })
	assert.Equal(t, StatusHealthy, running(context.Background()).Status)

	denied := MonitorCheck(func() (bool, error) { return false, errors.New("permission denied") })
	res := denied(context.Background())
	assert.Equal(t, StatusUnhealthy, res.Status)
	assert.Equal(t, "permission denied", res.Error)
}

func TestQueueCheck_DegradesOnNewDrops(t *testing.T) {
	var dropped uint64
	check := QueueCheck(func() uint64 { return dropped })

	assert.Equal(t, StatusHealthy, check(context.Background()).Status)
	dropped = 3
	assert.Equal(t, StatusDegraded, check(context.Background()).Status)
	assert.Equal(t, StatusHealthy, check(context.Background()).Status)
}

func TestHandlers(t *testing.T) {
	c := NewChecker()
	c.RegisterFunc("keyboard", true, static(StatusHealthy))

	rec := httptest.NewRecorder()
	c.ReadinessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	c.SetReady(true)
	rec = httptest.NewRecorder()
	c.ReadinessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	c.HealthHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var rep Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rep))
	assert.Equal(t, StatusHealthy, rep.Status)
	assert.Contains(t, rep.Components, "keyboard")

	rec = httptest.NewRecorder()
	c.LivenessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
