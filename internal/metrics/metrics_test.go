package metrics

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_Sessions(t *testing.T) {
	c := New()

	c.SessionOpened()
	c.SessionOpened()
	assert.Equal(t, int64(2), c.ActiveSessions())

	c.SessionClosed()
	assert.Equal(t, int64(1), c.ActiveSessions())
	assert.Equal(t, int64(2), c.TotalSessions(), "total should remain 2")
}

func TestCollector_Evaluations(t *testing.T) {
	c := New()

	c.EvaluationDone(10 * time.Millisecond)
	c.EvaluationDone(5 * time.Millisecond)
	c.Interrupted()

	assert.Equal(t, int64(2), c.Evaluations())
	assert.Equal(t, int64(1), c.Interrupts())
	assert.Equal(t, "15ms", c.Snapshot().GateWait)
}

func TestCollector_Bytes(t *testing.T) {
	c := New()

	c.BytesReceived(1024)
	c.BytesSent(512)
	c.BytesReceived(100)

	assert.Equal(t, int64(1124), c.TotalBytesIn())
	assert.Equal(t, int64(512), c.TotalBytesOut())
}

func TestCollector_Snapshot(t *testing.T) {
	c := New()
	c.SessionOpened()
	c.Highlighted()
	c.RecordError("accept failed")

	snap := c.Snapshot()
	assert.Equal(t, int64(1), snap.SessionsActive)
	assert.Equal(t, int64(1), snap.Highlights)
	assert.Equal(t, int64(1), snap.ErrorsTotal)
	assert.Equal(t, "accept failed", snap.LastErrorMessage)
}

func TestCollector_JSON(t *testing.T) {
	c := New()
	c.SessionOpened()
	c.BytesSent(42)

	var snap Snapshot
	require.NoError(t, json.Unmarshal([]byte(c.JSON()), &snap))
	assert.Equal(t, int64(1), snap.SessionsActive)
	assert.Equal(t, int64(42), snap.BytesOut)
}

func TestNilCollector_NoOps(t *testing.T) {
	var c *Collector

	assert.NotPanics(t, func() {
		c.SessionOpened()
		c.SessionClosed()
		c.EvaluationDone(time.Second)
		c.Interrupted()
		c.BytesReceived(100)
		c.BytesSent(100)
		c.Highlighted()
		c.RecordError("test")
	})

	assert.Zero(t, c.ActiveSessions())
	assert.Zero(t, c.Evaluations())
	assert.Zero(t, c.ErrorCount())
	assert.NotEmpty(t, c.JSON(), "nil JSON should return valid JSON")
}
