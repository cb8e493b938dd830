package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveConversion(t *testing.T) {
	c := New()
	c.ObserveConversion(DirectionWrite, 10*time.Millisecond, nil)
	c.ObserveConversion(DirectionWrite, 20*time.Millisecond, errors.New("boom"))
	c.ObserveConversion(DirectionRead, time.Millisecond, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.conversions.WithLabelValues(DirectionWrite, "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.conversions.WithLabelValues(DirectionWrite, "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.conversions.WithLabelValues(DirectionRead, "success")))
	assert.Equal(t, 2, testutil.CollectAndCount(c.duration))
}

func TestEntitiesAndShape(t *testing.T) {
	c := New()
	c.AddEntity("matrix")
	c.AddEntity("matrix")
	c.AddEntity("table")
	c.SetShape(300, 20)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.entities.WithLabelValues("matrix")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.entities.WithLabelValues("table")))
	assert.Equal(t, 300.0, testutil.ToFloat64(c.cells))
	assert.Equal(t, 20.0, testutil.ToFloat64(c.features))
}

func TestTimer(t *testing.T) {
	c := New()
	timer := c.Start(DirectionToRDS)
	elapsed := timer.Stop(nil)
	assert.GreaterOrEqual(t, elapsed, time.Duration(0))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.conversions.WithLabelValues(DirectionToRDS, "success")))
}

func TestNilCollector(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.ObserveConversion(DirectionRead, time.Second, nil)
		c.AddEntity("matrix")
		c.SetShape(1, 1)
		c.Start(DirectionRead).Stop(nil)
	})
	assert.Nil(t, c.Registry())
	assert.NoError(t, c.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")))
}

func TestWriteTextfile(t *testing.T) {
	c := New()
	c.AddEntity("spatial")
	path := filepath.Join(t.TempDir(), "scdior.prom")
	require.NoError(t, c.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `scdior_entities_total{kind="spatial"} 1`))
}
