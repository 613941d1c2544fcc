package stream

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromSlice_NextEnd(t *testing.T) {
	s := FromSlice([]int{1, 2, 3})

	for _, want := range []int{1, 2, 3} {
		it, err := s.Next()
		require.NoError(t, err)
		require.False(t, it.End)
		assert.Equal(t, want, it.Value)
	}

	it, err := s.Next()
	require.NoError(t, err)
	assert.True(t, it.End)
}

func TestPeek_DoesNotAdvance(t *testing.T) {
	s := FromSlice([]int{1, 2})

	p1, err := s.Peek()
	require.NoError(t, err)
	p2, err := s.Peek()
	require.NoError(t, err)
	assert.Equal(t, p1, p2)

	n, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, p1, n)
}

func TestPush_Restores(t *testing.T) {
	s := FromSlice([]int{1, 2})

	first, err := s.Next()
	require.NoError(t, err)
	s.Push(first)

	again, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, first, again)

	second, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, 2, second.Value)
}

func TestFail_Sticky(t *testing.T) {
	s := FromSlice([]int{1, 2, 3})
	boom := errors.New("boom")

	_, err := s.Next()
	require.NoError(t, err)

	s.Fail(boom)

	_, err = s.Next()
	assert.ErrorIs(t, err, boom)
	_, err = s.Peek()
	assert.ErrorIs(t, err, boom)
}

func TestMap(t *testing.T) {
	s := Map(FromSlice([]int{1, 2, 3}), func(i int) int { return i * 2 })
	out, err := ToSlice(s)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 4, 6}, out)
}

func TestFilter(t *testing.T) {
	s := Filter(FromSlice([]int{1, 2, 3, 4}), func(i int) bool { return i%2 == 0 })
	out, err := ToSlice(s)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 4}, out)
}

func TestFilterMap(t *testing.T) {
	s := FilterMap(FromSlice([]string{"1", "x", "3"}), func(v string) (int, bool) {
		switch v {
		case "1":
			return 1, true
		case "3":
			return 3, true
		default:
			return 0, false
		}
	})
	out, err := ToSlice(s)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, out)
}

func TestFold(t *testing.T) {
	sum, err := Fold(FromSlice([]int{1, 2, 3, 4}), 0, func(a, b int) int { return a + b })
	require.NoError(t, err)
	assert.Equal(t, 10, sum)
}

func TestIter_StopsOnError(t *testing.T) {
	boom := errors.New("boom")
	var seen []int
	err := Iter(FromSlice([]int{1, 2, 3}), func(v int) error {
		seen = append(seen, v)
		if v == 2 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []int{1, 2}, seen)
}

func TestLazyEvaluation(t *testing.T) {
	calls := 0
	src := New(func() (Item[int], error) {
		calls++
		if calls > 3 {
			return Item[int]{End: true}, nil
		}
		return Of(calls), nil
	})

	mapped := Map(src, func(i int) int { return i * 10 })
	assert.Equal(t, 0, calls, "Map must not pull eagerly")

	first, err := mapped.Next()
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 10, first.Value)
}
