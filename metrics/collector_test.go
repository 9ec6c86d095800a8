package metrics

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorCounters(t *testing.T) {
	c := NewCollector()

	c.RecordEmitted()
	c.RecordEmitted()
	c.RecordDropped()
	c.RecordAppenderError("file")
	c.RecordAppenderError("file")
	c.RecordAppenderError("stdout")
	c.RecordRotationFailure("file")
	c.RecordReload(nil)
	c.RecordReload(errors.New("bad config"))

	assert.Equal(t, 2.0, c.Value(Emitted, nil))
	assert.Equal(t, 1.0, c.Value(Dropped, nil))
	assert.Equal(t, 2.0, c.Value(AppenderErrors, map[string]string{"appender": "file"}))
	assert.Equal(t, 3.0, c.Total(AppenderErrors))
	assert.Equal(t, 1.0, c.Total(RotationFailures))
	assert.Equal(t, 1.0, c.Value(Reloads, nil))
	assert.Equal(t, 1.0, c.Value(ReloadFailures, nil))
	assert.Zero(t, c.Value("unknown", nil))
}

func TestBuildKeyIsOrderIndependent(t *testing.T) {
	a := buildKey("m", map[string]string{"x": "1", "y": "2"})
	b := buildKey("m", map[string]string{"y": "2", "x": "1"})
	assert.Equal(t, a, b)
	assert.Equal(t, "m", buildKey("m", nil))
}

func TestGetMetricsReturnsCopies(t *testing.T) {
	c := NewCollector()
	c.SetActiveAppenders(3)

	all := c.GetMetrics()
	require.Contains(t, all, "active_appenders")
	all["active_appenders"].Value = 99

	assert.Equal(t, 3.0, c.Value("active_appenders", nil))
	assert.Contains(t, all, Emitted)
}

func TestCollectorConcurrent(t *testing.T) {
	c := NewCollector()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.RecordEmitted()
				c.RecordAppenderError("a")
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 2000.0, c.Value(Emitted, nil))
	assert.Equal(t, 2000.0, c.Total(AppenderErrors))

	c.Reset()
	assert.Zero(t, c.Total(Emitted))
	assert.Zero(t, c.Total(AppenderErrors))
}
