package storage

import "time"

const ManifestSuffix = ".manifest.json"

// Manifest describes how an object was encoded on upload so that a download
// can reverse it.
type Manifest struct {
	Bucket      string    `json:"bucket"`
	Object      string    `json:"object"`
	Compression string    `json:"compression"`
	Encryption  bool      `json:"encryption"`
	CreatedAt   time.Time `json:"created_at"`
	SourceBytes int64     `json:"source_bytes"`
	SHA256      string    `json:"sha256"`
	ToolVersion string    `json:"tool_version"`
}

func ManifestKey(object string) string {
	return object + ManifestSuffix
}
