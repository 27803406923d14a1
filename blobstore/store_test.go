package blobstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStores(t *testing.T) {
	stores := map[string]func(t *testing.T) Store{
		"Memory": func(t *testing.T) Store { return NewMemoryStore() },
		"Local":  func(t *testing.T) Store { return NewLocalStore(t.TempDir()) },
	}

	for name, newStore := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t)

			t.Run("PutGet", func(t *testing.T) {
				require.NoError(t, s.Put(ctx, "a/one", []byte("hello")))
				got, err := s.Get(ctx, "a/one")
				require.NoError(t, err)
				assert.Equal(t, []byte("hello"), got)
			})

			t.Run("Overwrite", func(t *testing.T) {
				require.NoError(t, s.Put(ctx, "a/one", []byte("bye")))
				got, err := s.Get(ctx, "a/one")
				require.NoError(t, err)
				assert.Equal(t, []byte("bye"), got)
			})

			t.Run("NotFound", func(t *testing.T) {
				_, err := s.Get(ctx, "missing")
				assert.ErrorIs(t, err, ErrNotFound)
			})

			t.Run("List", func(t *testing.T) {
				require.NoError(t, s.Put(ctx, "a/two", []byte("2")))
				require.NoError(t, s.Put(ctx, "b/three", []byte("3")))

				names, err := s.List(ctx, "a/")
				require.NoError(t, err)
				assert.Equal(t, []string{"a/one", "a/two"}, names)

				all, err := s.List(ctx, "")
				require.NoError(t, err)
				assert.Len(t, all, 3)
			})

			t.Run("Delete", func(t *testing.T) {
				require.NoError(t, s.Delete(ctx, "a/two"))
				require.NoError(t, s.Delete(ctx, "a/two"))
				_, err := s.Get(ctx, "a/two")
				assert.ErrorIs(t, err, ErrNotFound)
			})

			t.Run("Canceled", func(t *testing.T) {
				cctx, cancel := context.WithCancel(ctx)
				cancel()
				assert.ErrorIs(t, s.Put(cctx, "c", []byte("x")), context.Canceled)
				_, err := s.Get(cctx, "a/one")
				assert.ErrorIs(t, err, context.Canceled)
			})
		})
	}
}

func TestMemoryStore_CopiesData(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	data := []byte("abc")
	require.NoError(t, s.Put(ctx, "x", data))
	data[0] = 'z'

	got, err := s.Get(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)

	got[1] = 'z'
	again, err := s.Get(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), again)
}

func TestLocalStore(t *testing.T) {
	ctx := context.Background()

	t.Run("MissingRoot", func(t *testing.T) {
		s := NewLocalStore(filepath.Join(t.TempDir(), "nope"))
		names, err := s.List(ctx, "")
		require.NoError(t, err)
		assert.Empty(t, names)
	})

	t.Run("NoTempFilesLeft", func(t *testing.T) {
		root := t.TempDir()
		s := NewLocalStore(root)
		require.NoError(t, s.Put(ctx, "block.cla", []byte("payload")))

		entries, err := os.ReadDir(root)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "block.cla", entries[0].Name())
		assert.Equal(t, root, s.Root())
	})
}
