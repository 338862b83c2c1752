package lazy

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOpensOnce(t *testing.T) {
	var opens int
	r := New(func() (int, error) {
		opens++
		return 42, nil
	}, nil)

	assert.Equal(t, NotAttempted, r.State())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := r.Get()
			assert.NoError(t, err)
			assert.Equal(t, 42, v)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, opens)
	assert.Equal(t, Ready, r.State())
}

func TestFailureIsPermanent(t *testing.T) {
	boom := errors.New("locked")
	var opens int
	r := New(func() (string, error) {
		opens++
		return "", boom
	}, nil)

	for i := 0; i < 3; i++ {
		_, err := r.Get()
		assert.ErrorIs(t, err, boom)
	}
	assert.Equal(t, 1, opens)
	assert.Equal(t, Failed, r.State())

	require.NoError(t, r.Reset())
	assert.Equal(t, NotAttempted, r.State())
	_, _ = r.Get()
	assert.Equal(t, 2, opens)
}

func TestTerminate(t *testing.T) {
	var closed []int
	n := 0
	r := New(func() (int, error) {
		n++
		return n, nil
	}, func(v int) error {
		closed = append(closed, v)
		return nil
	})

	v, err := r.Get()
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	require.NoError(t, r.Terminate())
	assert.Equal(t, []int{1}, closed)

	_, err = r.Get()
	assert.ErrorIs(t, err, ErrTerminated)

	require.NoError(t, r.Reset())
	v, err = r.Get()
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestTerminateWithoutValue(t *testing.T) {
	r := New(func() (int, error) { return 0, errors.New("never") }, func(int) error {
		t.Fatal("close must not run without a value")
		return nil
	})
	assert.NoError(t, r.Terminate())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "ready", Ready.String())
	assert.Equal(t, "State(9)", State(9).String())
}
