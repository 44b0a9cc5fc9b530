package session

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"formrepl/internal/metrics"
	"formrepl/util"
)

func TestSession_Append(t *testing.T) {
	s := &Session{}
	s.Append("(+ 1")
	s.Append("2)")
	assert.Equal(t, "(+ 1\n2)", s.Buffer)
	assert.Equal(t, []string{"(+ 1", "2)"}, s.Lines)
	assert.True(t, s.Pending())

	s.IndentHint = 2
	s.Reset()
	assert.Empty(t, s.Buffer)
	assert.Empty(t, s.Lines)
	assert.Zero(t, s.IndentHint)
	assert.False(t, s.Pending())
}

func TestManager_IDs(t *testing.T) {
	m := NewManager(nil, nil)
	local := m.Local("user", &bytes.Buffer{}, nil)
	assert.True(t, local.IsLocal())
	assert.Equal(t, "user", local.Namespace)

	a := m.Open("user", &bytes.Buffer{}, nil)
	b := m.Open("user", &bytes.Buffer{}, nil)
	assert.NotZero(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.False(t, a.IsLocal())
	assert.Equal(t, 3, m.Len())
}

func TestManager_ConcurrentOpenUnique(t *testing.T) {
	m := NewManager(nil, nil)
	var (
		mu  sync.Mutex
		ids = map[int64]bool{}
		wg  sync.WaitGroup
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := m.Open("user", &bytes.Buffer{}, nil)
			mu.Lock()
			ids[s.ID] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, ids, 50)
	assert.False(t, ids[LocalID])
}

func TestManager_CloseUpdatesMetrics(t *testing.T) {
	mc := metrics.New()
	m := NewManager(mc, nil)

	s := m.Open("user", &bytes.Buffer{}, nil)
	assert.Equal(t, int64(1), mc.ActiveSessions())

	m.Close(s)
	m.Close(s)
	assert.Equal(t, int64(0), mc.ActiveSessions())
	assert.Equal(t, int64(1), mc.TotalSessions())
	assert.Zero(t, m.Len())
}

type closer struct{ closed bool }

func (c *closer) Close() error { c.closed = true; return nil }

func TestManager_CloseAll(t *testing.T) {
	m := NewManager(nil, nil)
	m.Local("user", &bytes.Buffer{}, nil)
	c1, c2 := &closer{}, &closer{}
	m.Open("user", &bytes.Buffer{}, c1)
	m.Open("user", &bytes.Buffer{}, c2)

	m.CloseAll()
	assert.True(t, c1.closed)
	assert.True(t, c2.closed)
}

func TestManager_SessionLogger(t *testing.T) {
	var logs bytes.Buffer
	logger := util.NewLogger(2)
	logger.SetOutput(&logs)

	m := NewManager(nil, logger)
	s := m.Open("user", &bytes.Buffer{}, nil)
	m.Close(s)

	assert.Equal(t, "[VRB] session 1: opened\n[VRB] session 1: closed\n", logs.String())
}
