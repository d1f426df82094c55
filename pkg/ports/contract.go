package ports

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aretw0/redo/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunLogStoreContract runs a suite of tests to verify that a LogStore implementation
// adheres to the defined interface contract.
func RunLogStoreContract(t *testing.T, store LogStore) {
	ctx := context.Background()
	name := "contract-" + time.Now().Format("20060102150405")

	sample := func() domain.Log {
		ok := domain.NewRecord(domain.Index{0}, "Fetch")
		ok.Inputs["url"] = "https://example.com/data.csv"
		ok.Inputs["args_"] = []any{"a", 1}
		ok.Outputs["file"] = []any{"data/raw.csv", int64(1700000000123456789)}
		ok.Info["rows"] = 42
		ok.SetSuccess(true)

		failed := domain.NewRecord(domain.Index{1, 0}, "Clean")
		failed.SetSuccess(false)

		unknown := domain.NewRecord(domain.Index{1, 1}, "Plot")

		return domain.Log{
			domain.Leaf(ok),
			domain.Nest(domain.Leaf(failed), domain.Leaf(unknown)),
			domain.Nest(),
		}
	}

	t.Run("Save and Load", func(t *testing.T) {
		log := sample()
		require.NoError(t, store.Save(ctx, name, log), "Save should not return error")
		defer func() { _ = store.Delete(ctx, name) }()

		loaded, err := store.Load(ctx, name)
		require.NoError(t, err, "Load should not return error")
		assert.True(t, log.Equal(loaded), "loaded log should equal saved log:\n%v\n%v", log, loaded)
		require.Len(t, loaded, 3)
		assert.True(t, loaded[1].IsGroup())
		assert.True(t, loaded[2].IsGroup())
		assert.Nil(t, loaded[1].Group[1].Record.LastRunSuccess)
	})

	t.Run("Save Replaces", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, name, sample()))
		defer func() { _ = store.Delete(ctx, name) }()

		replacement := domain.Log{domain.Leaf(domain.NewRecord(domain.Index{0}, "Only"))}
		require.NoError(t, store.Save(ctx, name, replacement))

		loaded, err := store.Load(ctx, name)
		require.NoError(t, err)
		assert.True(t, replacement.Equal(loaded))
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+name)
		assert.ErrorIs(t, err, domain.ErrLogNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, name, sample()))

		require.NoError(t, store.Delete(ctx, name), "Delete should not return error")

		_, err := store.Load(ctx, name)
		assert.ErrorIs(t, err, domain.ErrLogNotFound, "Load after Delete should return ErrLogNotFound")
		assert.NoError(t, store.Delete(ctx, name), "deleting twice is not an error")
	})

	t.Run("List", func(t *testing.T) {
		names := []string{name + "-b", name + "-a"}
		for _, n := range names {
			require.NoError(t, store.Save(ctx, n, sample()))
		}
		defer func() {
			for _, n := range names {
				_ = store.Delete(ctx, n)
			}
		}()

		listed, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, listed, names[0])
		assert.Contains(t, listed, names[1])
		assert.IsNonDecreasing(t, listed)
	})

	t.Run("Names Close To Internal Keys", func(t *testing.T) {
		names := []string{"index", "lock", "tmp-build", "_index"}
		for _, n := range names {
			require.NoError(t, store.Save(ctx, n, sample()), "save %q", n)
		}
		defer func() {
			for _, n := range names {
				_ = store.Delete(ctx, n)
			}
		}()

		listed, err := store.List(ctx)
		require.NoError(t, err)
		for _, n := range names {
			assert.Contains(t, listed, n)
			loaded, err := store.Load(ctx, n)
			require.NoError(t, err, "load %q", n)
			assert.True(t, sample().Equal(loaded))
		}
	})

	t.Run("Invalid Name", func(t *testing.T) {
		for _, bad := range []string{"", "../escape", "a/b"} {
			err := store.Save(ctx, bad, sample())
			assert.ErrorIs(t, err, domain.ErrInvalidName, fmt.Sprintf("name %q", bad))
		}
	})
}
