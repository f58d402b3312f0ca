package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_Observations(t *testing.T) {
	c := NewCollector()

	c.ObserveTick(OutcomeOK, 3, 1, 7)
	c.ObserveTick(OutcomeUnavailable, 0, 0, 7)
	c.ObserveBackup("s3", errors.New("denied"))
	c.ObserveFlush(20*time.Millisecond, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.accrualTicks.WithLabelValues(OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.accrualTicks.WithLabelValues(OutcomeUnavailable)))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.xpIncrements))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.levelUps))
	assert.Equal(t, 7.0, testutil.ToFloat64(c.records))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.backups.WithLabelValues("s3", OutcomeError)))

	c.ObserveCommand("rank", nil)
	c.ObserveCommand("rank", nil)
	c.ObserveHTTP("/healthz", 200, time.Millisecond)
	assert.Equal(t, 2.0, testutil.ToFloat64(c.commands.WithLabelValues("rank", OutcomeOK)))
	assert.Equal(t, 1, testutil.CollectAndCount(c.httpDuration))
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector()
	c.ObserveTick(OutcomeOK, 1, 0, 1)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "voicexp_accrual_ticks_total")
	assert.Contains(t, string(body), "go_goroutines")
}

func TestCollector_NilIsNoop(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.ObserveTick(OutcomeOK, 1, 1, 1)
		c.ObserveFlush(time.Second, nil)
		c.ObserveBackup("discord", nil)
		c.ObserveEvent("x", nil)
		c.ObserveAnnounceFailure()
		c.ObserveCommand("top", nil)
		c.ObserveHTTP("/", 404, time.Millisecond)
	})
	assert.Nil(t, c.Registry())
}
