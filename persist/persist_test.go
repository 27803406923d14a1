package persist

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/cla"
	"github.com/hupe1980/cla/blobstore"
	"github.com/hupe1980/cla/codec"
	"github.com/hupe1980/cla/internal/hash"
	"github.com/hupe1980/cla/resource"
	"github.com/hupe1980/cla/testutil"
)

func compressed(t *testing.T) *cla.CompressedBlock {
	t.Helper()
	m := testutil.NewRNG(7).Runs(600, 6, 30, 4)
	b, err := cla.Compress(context.Background(), m, 2)
	require.NoError(t, err)
	require.True(t, b.IsCompressed())
	return b
}

func TestSaveLoad(t *testing.T) {
	ctx := context.Background()
	b := compressed(t)
	want, err := b.Decompress(ctx, 1)
	require.NoError(t, err)

	for _, kind := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD} {
		t.Run(kind.String(), func(t *testing.T) {
			store := blobstore.NewMemoryStore()

			m, err := Save(ctx, store, "block", b, WithCompression(kind))
			require.NoError(t, err)
			assert.Equal(t, kind.String(), m.Compression)
			assert.Equal(t, b.ExactSizeOnDisk(), m.SerializedSize)
			assert.Equal(t, b.Rows(), m.Rows)
			assert.Equal(t, b.NonZeros(), m.NonZeros)
			assert.True(t, m.Compressed)
			assert.NotEmpty(t, m.Groups)
			require.NotNil(t, m.Statistics)

			got, err := Load(ctx, store, "block")
			require.NoError(t, err)
			assert.True(t, got.IsCompressed())
			assert.Equal(t, b.NonZeros(), got.NonZeros())

			out, err := got.Decompress(ctx, 1)
			require.NoError(t, err)
			testutil.AssertBlocksEqual(t, want, out)

			names, err := List(ctx, store, "")
			require.NoError(t, err)
			assert.Equal(t, []string{"block"}, names)
		})
	}
}

func TestSeal_Checksum(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	m, err := Save(ctx, store, "block", compressed(t), WithCompression(CompressionZSTD))
	require.NoError(t, err)

	data, err := store.Get(ctx, blobName("block"))
	require.NoError(t, err)
	end := len(data) - trailerSize
	trailer := binary.LittleEndian.Uint32(data[end:])

	assert.Equal(t, hash.CRC32C(data[:end]), trailer)
	assert.Equal(t, trailer, checksum(data[:headerSize], data[headerSize:end]))
	assert.Equal(t, m.Checksum, trailer)
}

func TestSave_CompressesPayload(t *testing.T) {
	ctx := context.Background()
	b := compressed(t)

	for _, kind := range []Compression{CompressionLZ4, CompressionZSTD} {
		m, err := Save(ctx, blobstore.NewMemoryStore(), "block", b, WithCompression(kind))
		require.NoError(t, err)
		assert.Less(t, m.EnvelopeSize, m.SerializedSize+headerSize+trailerSize, kind.String())
	}
}

func TestSave_Uncompressed(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	m := testutil.NewRNG(1).Dense(20, 3)
	b, err := cla.Wrap(m)
	require.NoError(t, err)

	man, err := Save(ctx, store, "raw", b)
	require.NoError(t, err)
	assert.False(t, man.Compressed)
	assert.Nil(t, man.Statistics)

	got, err := Load(ctx, store, "raw")
	require.NoError(t, err)
	assert.False(t, got.IsCompressed())
	testutil.AssertBlocksEqual(t, m, got.Raw())
}

func TestLoad_Corrupt(t *testing.T) {
	ctx := context.Background()
	b := compressed(t)

	t.Run("Checksum", func(t *testing.T) {
		store := blobstore.NewMemoryStore()
		_, err := Save(ctx, store, "block", b, WithCompression(CompressionZSTD))
		require.NoError(t, err)

		data, err := store.Get(ctx, "block.cla")
		require.NoError(t, err)
		data[headerSize+3] ^= 0xFF
		require.NoError(t, store.Put(ctx, "block.cla", data))

		_, err = Load(ctx, store, "block")
		require.Error(t, err)
		assert.ErrorIs(t, err, cla.ErrCorrupt)

		var mismatch *ChecksumMismatchError
		assert.ErrorAs(t, err, &mismatch)
	})

	t.Run("Magic", func(t *testing.T) {
		store := blobstore.NewMemoryStore()
		_, err := Save(ctx, store, "block", b)
		require.NoError(t, err)

		data, err := store.Get(ctx, "block.cla")
		require.NoError(t, err)
		data[0] = 'X'
		require.NoError(t, store.Put(ctx, "block.cla", data))

		_, err = Load(ctx, store, "block")
		assert.ErrorIs(t, err, ErrInvalidMagic)
	})

	t.Run("Truncated", func(t *testing.T) {
		store := blobstore.NewMemoryStore()
		require.NoError(t, store.Put(ctx, "block.cla", []byte("CLA1")))

		_, err := Load(ctx, store, "block")
		assert.ErrorIs(t, err, cla.ErrCorrupt)
	})

	t.Run("Missing", func(t *testing.T) {
		_, err := Load(ctx, blobstore.NewMemoryStore(), "nope")
		assert.ErrorIs(t, err, blobstore.ErrNotFound)
	})
}

func TestManifest(t *testing.T) {
	ctx := context.Background()
	b := compressed(t)

	for _, c := range []codec.Codec{codec.JSON{}, codec.GoJSON{}} {
		t.Run(c.Name(), func(t *testing.T) {
			store := blobstore.NewLocalStore(t.TempDir())

			saved, err := Save(ctx, store, "nested/block", b, WithCodec(c))
			require.NoError(t, err)

			// Decoding with the other codec switches to the recorded one.
			loaded, err := LoadManifest(ctx, store, "nested/block", WithCodec(codec.JSON{}))
			require.NoError(t, err)
			assert.Equal(t, c.Name(), loaded.Codec)
			assert.Equal(t, saved.Checksum, loaded.Checksum)
			assert.Equal(t, saved.Groups, loaded.Groups)
			assert.Equal(t, saved.Statistics.Size, loaded.Statistics.Size)

			names, err := List(ctx, store, "nested/")
			require.NoError(t, err)
			assert.Equal(t, []string{"nested/block"}, names)

			require.NoError(t, Delete(ctx, store, "nested/block"))
			_, err = LoadManifest(ctx, store, "nested/block")
			assert.ErrorIs(t, err, blobstore.ErrNotFound)
		})
	}
}

func TestSaveLoad_ResourceController(t *testing.T) {
	ctx := context.Background()
	b := compressed(t)
	rc := resource.NewController(resource.Config{
		MemoryLimitBytes:   1 << 20,
		IOLimitBytesPerSec: 64 << 20,
	})
	store := blobstore.NewMemoryStore()

	_, err := Save(ctx, store, "block", b, WithResourceController(rc))
	require.NoError(t, err)

	got, err := Load(ctx, store, "block", WithResourceController(rc))
	require.NoError(t, err)
	assert.Equal(t, b.Rows(), got.Rows())
	assert.Zero(t, rc.MemoryUsage())

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = Load(canceled, store, "block", WithResourceController(rc))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseCompression(t *testing.T) {
	for _, kind := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD} {
		got, err := ParseCompression(kind.String())
		require.NoError(t, err)
		assert.Equal(t, kind, got)
	}

	_, err := ParseCompression("brotli")
	assert.ErrorIs(t, err, ErrUnknownKind)
}
