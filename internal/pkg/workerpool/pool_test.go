package workerpool

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew(t *testing.T) {
	_, err := New(&Config{Size: 0}, nil)
	assert.Error(t, err)

	p, err := New(nil, zap.NewNop())
	require.NoError(t, err)
	defer p.Shutdown(time.Second)
	assert.Equal(t, DefaultConfig().Size, p.Cap())
}

func TestGroup_WaitsForAllTasks(t *testing.T) {
	p, err := New(&Config{Size: 4}, zap.NewNop())
	require.NoError(t, err)
	defer p.Shutdown(time.Second)

	var done atomic.Int32
	g := p.NewGroup()
	for i := 0; i < 50; i++ {
		g.Go(func() error {
			time.Sleep(time.Millisecond)
			done.Add(1)
			return nil
		})
	}

	require.NoError(t, g.Wait())
	assert.Equal(t, int32(50), done.Load())
}

func TestGroup_FirstError(t *testing.T) {
	p, err := New(&Config{Size: 2}, zap.NewNop())
	require.NoError(t, err)
	defer p.Shutdown(time.Second)

	boom := errors.New("boom")
	g := p.NewGroup()
	g.Go(func() error { return boom })
	g.Go(func() error { return nil })

	assert.ErrorIs(t, g.Wait(), boom)
}

func TestGroup_RecoversPanic(t *testing.T) {
	p, err := New(&Config{Size: 1}, zap.NewNop())
	require.NoError(t, err)
	defer p.Shutdown(time.Second)

	g := p.NewGroup()
	g.Go(func() error { panic("bad task") })

	err = g.Wait()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad task")
}

func TestGroup_InlineFallback(t *testing.T) {
	p, err := New(&Config{Size: 1}, zap.NewNop())
	require.NoError(t, err)
	p.Shutdown(time.Second)

	assert.ErrorIs(t, p.Submit(func() {}), ErrPoolClosed)

	ran := false
	g := p.NewGroup()
	g.Go(func() error {
		ran = true
		return nil
	})
	require.NoError(t, g.Wait())
	assert.True(t, ran)

	var nilPool *Pool
	g = nilPool.NewGroup()
	calls := 0
	g.Go(func() error { calls++; return nil })
	require.NoError(t, g.Wait())
	assert.Equal(t, 1, calls)
}
