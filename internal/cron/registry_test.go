package cron

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubJob struct {
	name string
}

func (s *stubJob) Name() string              { return s.name }
func (s *stubJob) Run(context.Context) error { return nil }

func TestRegistryKeepsOrderAndSkipsNil(t *testing.T) {
	sweep := &stubJob{name: "abandoned-carts"}
	prune := &stubJob{name: "outbox-retention"}

	registry, err := NewRegistry(sweep, nil, prune)
	require.NoError(t, err)

	jobs := registry.Jobs()
	require.Len(t, jobs, 2)
	assert.Same(t, sweep, jobs[0])
	assert.Same(t, prune, jobs[1])

	jobs[0] = nil
	assert.NotNil(t, registry.Jobs()[0], "internal slice leaked")
}

func TestRegistryRejectsDuplicateNames(t *testing.T) {
	_, err := NewRegistry(&stubJob{name: "sweep"}, &stubJob{name: "sweep"})
	require.Error(t, err)

	_, err = NewRegistry(&stubJob{})
	require.Error(t, err)
}

func TestRegistryOnly(t *testing.T) {
	registry, err := NewRegistry(&stubJob{name: "a"}, &stubJob{name: "b"})
	require.NoError(t, err)

	narrowed, err := registry.Only("b")
	require.NoError(t, err)
	require.Len(t, narrowed.Jobs(), 1)
	assert.Equal(t, "b", narrowed.Jobs()[0].Name())

	_, err = registry.Only("missing")
	require.Error(t, err)
}
