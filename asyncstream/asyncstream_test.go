package asyncstream

import (
	"errors"
	"testing"

	"github.com/gomarkup/markup/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStream_DrainsInOrder(t *testing.T) {
	s := FromSync(stream.FromSlice([]int{1, 2, 3}))

	var got []int
	done := Iter(s, func(v int) *Task[struct{}] {
		got = append(got, v)
		return Done(struct{}{}, nil)
	})
	_, err := done.Await()
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, got)
}

func TestStream_PushRereadsItem(t *testing.T) {
	s := FromSync(stream.FromSlice([]int{1, 2}))

	it, err := s.Next().Await()
	require.NoError(t, err)
	assert.Equal(t, 1, it.Value)

	s.Push(it)

	it2, err := s.Next().Await()
	require.NoError(t, err)
	assert.Equal(t, 1, it2.Value)
}

func TestStream_FailureSticks(t *testing.T) {
	boom := errors.New("boom")
	s := New(func() *Task[stream.Item[int]] {
		return Done(stream.Item[int]{}, boom)
	})

	_, err := s.Next().Await()
	assert.Equal(t, boom, err)

	_, err = s.Next().Await()
	assert.Equal(t, boom, err)
}

func TestGo_ResolvesFromGoroutine(t *testing.T) {
	task := Go(func() (int, error) { return 42, nil })
	v, err := task.Await()
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}
