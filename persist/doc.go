// Package persist stores compressed blocks in a blobstore.Store.
//
// Each block is written as two blobs:
//
//	<name>.cla            envelope: header, payload, CRC32-C trailer
//	<name>.manifest.json  shape, group counts and compression statistics
//
// The envelope header carries the magic "CLA1", the format version and the
// payload compression (none, lz4 or zstd). Load verifies the checksum before
// decoding.
//
//	store := blobstore.NewLocalStore("/var/lib/cla")
//	m, err := persist.Save(ctx, store, "features", block, persist.WithCompression(persist.CompressionZSTD))
//	...
//	block, err = persist.Load(ctx, store, "features")
package persist
