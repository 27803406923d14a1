package persist

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hupe1980/cla"
	"github.com/hupe1980/cla/blobstore"
	"github.com/hupe1980/cla/codec"
	"github.com/hupe1980/cla/internal/hash"
	"github.com/hupe1980/cla/resource"
)

// Save serializes b into an envelope blob and writes its manifest.
// The envelope is written first so a visible manifest always points at a
// complete blob.
func Save(ctx context.Context, store blobstore.Store, name string, b *cla.CompressedBlock, opts ...Option) (*Manifest, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	log := o.Logger.WithOp("save")

	var buf bytes.Buffer
	buf.Grow(int(b.ExactSizeOnDisk()))
	if _, err := b.WriteTo(resource.NewRateLimitedWriter(ctx, &buf, o.Resources)); err != nil {
		return nil, fmt.Errorf("serialize %s: %w", name, err)
	}
	serialized := buf.Len()

	envelope, kind, err := seal(buf.Bytes(), o.Compression)
	if err != nil {
		return nil, fmt.Errorf("seal %s: %w", name, err)
	}

	if err := store.Put(ctx, blobName(name), envelope); err != nil {
		return nil, fmt.Errorf("put %s: %w", blobName(name), err)
	}

	m := &Manifest{
		Version:        ManifestVersion,
		Name:           name,
		Blob:           blobName(name),
		Codec:          o.Codec.Name(),
		Compression:    kind.String(),
		CreatedAt:      time.Now().UTC(),
		Rows:           b.Rows(),
		Cols:           b.Cols(),
		NonZeros:       b.NonZeros(),
		Compressed:     b.IsCompressed(),
		SerializedSize: int64(serialized),
		EnvelopeSize:   int64(len(envelope)),
		Checksum:       hash.CRC32C(envelope[:len(envelope)-trailerSize]),
	}
	if b.IsCompressed() {
		m.Groups = make(map[string]int)
		for _, g := range b.Groups() {
			m.Groups[g.Type().String()]++
		}
		if stats := b.Statistics(); stats.Size > 0 {
			m.Statistics = &stats
		}
	}

	data, err := o.Codec.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	if err := store.Put(ctx, manifestName(name), data); err != nil {
		return nil, fmt.Errorf("put %s: %w", manifestName(name), err)
	}

	log.Debug("block saved",
		"name", name,
		"compression", m.Compression,
		"serialized", m.SerializedSize,
		"stored", m.EnvelopeSize,
	)
	return m, nil
}

// Load reads and verifies the envelope written by Save and rebuilds the block.
func Load(ctx context.Context, store blobstore.Store, name string, opts ...Option) (*cla.CompressedBlock, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	data, err := store.Get(ctx, blobName(name))
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", blobName(name), err)
	}

	var envelope bytes.Buffer
	envelope.Grow(len(data))
	if _, err := io.Copy(&envelope, resource.NewRateLimitedReader(ctx, bytes.NewReader(data), o.Resources)); err != nil {
		return nil, err
	}

	raw, err := unseal(envelope.Bytes())
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}

	if err := o.Resources.AcquireMemory(ctx, int64(len(raw))); err != nil {
		return nil, err
	}
	defer o.Resources.ReleaseMemory(int64(len(raw)))

	b, err := cla.Read(bytes.NewReader(raw), o.BlockOptions...)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}

	o.Logger.WithOp("load").Debug("block loaded", "name", name, "rows", b.Rows(), "cols", b.Cols())
	return b, nil
}

// LoadManifest reads the manifest of a saved block. A manifest written with
// another built-in codec is re-decoded with that codec.
func LoadManifest(ctx context.Context, store blobstore.Store, name string, opts ...Option) (*Manifest, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	data, err := store.Get(ctx, manifestName(name))
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", manifestName(name), err)
	}

	var m Manifest
	if err := o.Codec.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: manifest %s: %w", cla.ErrCorrupt, name, err)
	}
	if m.Codec != "" && m.Codec != o.Codec.Name() {
		c, err := codec.Lookup(m.Codec)
		if err != nil {
			return nil, err
		}
		m = Manifest{}
		if err := c.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("%w: manifest %s: %w", cla.ErrCorrupt, name, err)
		}
	}
	if m.Version != ManifestVersion {
		return nil, fmt.Errorf("%w: manifest version %d", ErrInvalidVersion, m.Version)
	}
	return &m, nil
}

// Delete removes the manifest and then the envelope.
func Delete(ctx context.Context, store blobstore.Store, name string) error {
	if err := store.Delete(ctx, manifestName(name)); err != nil {
		return err
	}
	return store.Delete(ctx, blobName(name))
}

// List returns the names of saved blocks under prefix.
func List(ctx context.Context, store blobstore.Store, prefix string) ([]string, error) {
	keys, err := store.List(ctx, prefix)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, k := range keys {
		if name, ok := strings.CutSuffix(k, manifestSuffix); ok {
			names = append(names, name)
		}
	}
	return names, nil
}
