package handler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallbackHandlerDeliversSynchronously(t *testing.T) {
	var got []Sample
	h := NewCallback(func(s Sample) { got = append(got, s) }, nil)

	Deliver(h, Sample{KE: "a/b", Payload: []byte("1")})
	Deliver(h, Sample{KE: "a/c", Payload: []byte("2")})

	require.Len(t, got, 2)
	assert.Equal(t, "a/b", got[0].KE)
	assert.Equal(t, "a/c", got[1].KE)
}

func TestCallbackHandlerDropInvokedOnce(t *testing.T) {
	calls := 0
	h := NewCallback(func(Sample) {}, func(error) { calls++ })

	Drop(h, ErrClosed)
	Drop(h, ErrClosed)
	assert.Equal(t, 2, calls, "Drop has no idempotency guarantee of its own; pkg/session is responsible for calling it once")
}

func TestChannelBlockOnFullDeliversInOrder(t *testing.T) {
	ch := NewChannel(2, BlockOnFull)
	Deliver(ch, Sample{KE: "1"})
	Deliver(ch, Sample{KE: "2"})

	ctx := context.Background()
	s1, err := ch.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1", s1.KE)
	s2, err := ch.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2", s2.KE)
}

func TestChannelDropNewDiscardsIncomingWhenFull(t *testing.T) {
	ch := NewChannel(1, DropNew)
	Deliver(ch, Sample{KE: "first"})
	Deliver(ch, Sample{KE: "second"}) // dropped: buffer already full

	ctx := context.Background()
	s, err := ch.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, "first", s.KE)
}

func TestChannelDropOldestKeepsMostRecent(t *testing.T) {
	ch := NewChannel(1, DropOldest)
	Deliver(ch, Sample{KE: "first"})
	Deliver(ch, Sample{KE: "second"}) // evicts "first"

	ctx := context.Background()
	s, err := ch.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, "second", s.KE)
}

func TestChannelRecvSeesClosedAfterDrop(t *testing.T) {
	ch := NewChannel(2, BlockOnFull)
	Deliver(ch, Sample{KE: "only"})
	Drop(ch, ErrClosed)

	ctx := context.Background()
	s, err := ch.Recv(ctx)
	require.NoError(t, err, "buffered sample delivered before close must still be readable")
	assert.Equal(t, "only", s.KE)

	_, err = ch.Recv(ctx)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestChannelRecvRespectsContextCancellation(t *testing.T) {
	ch := NewChannel(1, BlockOnFull)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := ch.Recv(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
