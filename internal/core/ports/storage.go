package ports

import "context"

// Backend is the versioned document storage contract consumed by the record
// store. A path names one JSON document; the version token is opaque and
// identifies the exact content revision last observed.
type Backend interface {
	// Get fetches the document at path and its current version token.
	// Returns domain.ErrDocumentNotFound when the document does not exist.
	Get(ctx context.Context, path string) (content []byte, version string, err error)
	// Put replaces the document at path, submitting the version token
	// returned by the last Get (empty for a first write). Returns the new
	// token on success and domain.ErrVersionConflict when the submitted
	// token is stale.
	Put(ctx context.Context, path string, content []byte, version string) (newVersion string, err error)
}
