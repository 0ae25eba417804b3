package domain_test

import (
	"errors"
	"testing"

	"github.com/Amund211/watchlight/internal/domain"
	"github.com/stretchr/testify/require"
)

func TestEntityOf(t *testing.T) {
	t.Parallel()

	t.Run("nil becomes the removed marker", func(t *testing.T) {
		t.Parallel()
		require.True(t, domain.EntityOf(nil).IsRemoved())
	})

	t.Run("errors are stored as error entities", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("boom")
		require.Equal(t, boom, domain.EntityOf(boom).Err())
	})

	t.Run("values keep identity", func(t *testing.T) {
		t.Parallel()
		doc := &struct{ Foo int }{Foo: 1}
		value, ok := domain.EntityOf(doc).Value()
		require.True(t, ok)
		require.Same(t, doc, value)
	})
}

func TestProject(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")

	cases := []struct {
		name     string
		entity   domain.Entity
		present  bool
		expected domain.EntityTuple
	}{
		{
			name:     "absent key is idle",
			present:  false,
			expected: domain.EntityTuple{Status: domain.StatusIdle},
		},
		{
			name:     "pending marker",
			entity:   domain.PendingEntity(),
			present:  true,
			expected: domain.EntityTuple{Status: domain.StatusPending},
		},
		{
			name:     "error entity",
			entity:   domain.ErrorEntity(boom),
			present:  true,
			expected: domain.EntityTuple{Status: domain.StatusError, Err: boom},
		},
		{
			name:     "removed marker",
			entity:   domain.RemovedEntity(),
			present:  true,
			expected: domain.EntityTuple{Status: domain.StatusRemoved},
		},
		{
			name:     "concrete value",
			entity:   domain.ValueEntity(map[string]any{"foo": 1}),
			present:  true,
			expected: domain.EntityTuple{Status: domain.StatusSuccess, Value: map[string]any{"foo": 1}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.expected, domain.Project(tc.entity, tc.present))
		})
	}
}
