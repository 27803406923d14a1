package persist

import (
	"time"

	"github.com/hupe1980/cla"
)

// ManifestVersion is the current manifest schema version.
const ManifestVersion = 1

// Manifest describes a persisted block. It is stored next to the envelope as
// "<name>.manifest.json".
type Manifest struct {
	Version     int       `json:"version"`
	Name        string    `json:"name"`
	Blob        string    `json:"blob"`
	Codec       string    `json:"codec"`
	Compression string    `json:"compression"`
	CreatedAt   time.Time `json:"created_at"`

	Rows       int   `json:"rows"`
	Cols       int   `json:"cols"`
	NonZeros   int64 `json:"non_zeros"`
	Compressed bool  `json:"compressed"`

	// Groups counts column groups per encoding name.
	Groups map[string]int `json:"groups,omitempty"`

	// SerializedSize is the block size before envelope compression.
	SerializedSize int64 `json:"serialized_size"`
	// EnvelopeSize is the stored blob size.
	EnvelopeSize int64  `json:"envelope_size"`
	Checksum     uint32 `json:"checksum"`

	Statistics *cla.Statistics `json:"statistics,omitempty"`
}

func blobName(name string) string {
	return name + ".cla"
}

func manifestName(name string) string {
	return name + manifestSuffix
}

const manifestSuffix = ".manifest.json"
