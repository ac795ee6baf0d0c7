package capture

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamSourceExclusiveHandle(t *testing.T) {
	t.Parallel()

	s := NewStreamSource(0, nil)
	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.Active())

	err := s.Start(context.Background())
	assert.ErrorIs(t, err, ErrSourceBusy)

	require.NoError(t, s.Stop())
	assert.False(t, s.Active())
	// Stop when inactive is a no-op.
	require.NoError(t, s.Stop())
}

func TestStreamSourceDeliversCumulativeResults(t *testing.T) {
	t.Parallel()

	s := NewStreamSource(0, nil)
	var got []string
	s.SetHandlers(func(cumulative string) {
		got = append(got, cumulative)
	}, nil)

	require.NoError(t, s.Start(context.Background()))
	s.Push("Hello")
	s.Push("Hello world")

	assert.Equal(t, []string{"Hello", "Hello world"}, got)
}

func TestStreamSourceDropsResultsWhenInactive(t *testing.T) {
	t.Parallel()

	s := NewStreamSource(0, nil)
	var got []string
	s.SetHandlers(func(cumulative string) {
		got = append(got, cumulative)
	}, nil)

	s.Push("ignored before start")
	require.NoError(t, s.Start(context.Background()))
	s.Push("kept")
	require.NoError(t, s.Stop())
	s.Push("ignored after stop")

	assert.Equal(t, []string{"kept"}, got)
}

func TestStreamSourceEnforcesSizeBound(t *testing.T) {
	t.Parallel()

	s := NewStreamSource(8, nil)
	var results []string
	var kinds []ErrorKind
	s.SetHandlers(func(cumulative string) {
		results = append(results, cumulative)
	}, func(kind ErrorKind, err error) {
		kinds = append(kinds, kind)
	})

	require.NoError(t, s.Start(context.Background()))
	s.Push("short")
	s.Push("this one is far too long")

	assert.Equal(t, []string{"short"}, results)
	assert.Equal(t, []ErrorKind{ErrorOther}, kinds)
}

func TestStreamSourcePushError(t *testing.T) {
	t.Parallel()

	s := NewStreamSource(0, nil)
	var kinds []ErrorKind
	s.SetHandlers(nil, func(kind ErrorKind, err error) {
		kinds = append(kinds, kind)
	})

	// Errors before start are dropped with the same rule as results.
	s.PushError(ErrorNoSpeech, "no speech")
	require.NoError(t, s.Start(context.Background()))
	s.PushError(ErrorNoSpeech, "no speech")
	s.PushError(ErrorOther, "network")

	assert.Equal(t, []ErrorKind{ErrorNoSpeech, ErrorOther}, kinds)
}
