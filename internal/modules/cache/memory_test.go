package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type summary struct {
	Total int
}

func TestManager(t *testing.T) {
	m := New[summary](time.Minute)

	_, ok := m.Get("missing")
	require.False(t, ok)

	require.NoError(t, m.Set("a", summary{Total: 3}))
	v, ok := m.Get("a")
	require.True(t, ok)
	require.Equal(t, 3, v.Total)

	require.NoError(t, m.Delete("a"))
	_, ok = m.Get("a")
	require.False(t, ok)
}

func TestManagerExpires(t *testing.T) {
	m := New[string](time.Minute)
	require.NoError(t, m.SetWithExpiration("k", "v", 20*time.Millisecond))
	require.Eventually(t, func() bool {
		_, ok := m.Get("k")
		return !ok
	}, time.Second, 10*time.Millisecond)
}
