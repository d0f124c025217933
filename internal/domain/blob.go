package domain

import (
	"context"
	"io"
	"time"
)

// BlobWriter ships journal batches to object storage. Size is the exact
// byte length of data; implementations pick the transfer mechanism from it.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string, size int64) error
}

// BlobReader retrieves and probes archived batches.
type BlobReader interface {
	// Get returns the object body. Missing objects wrap ErrNotFound.
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	Exists(ctx context.Context, path string) (bool, error)
}

// Archiver moves old journal rows from the database to cold storage.
type Archiver interface {
	ArchiveQuotes(ctx context.Context, before time.Time) (int64, error)
	ArchiveAssessments(ctx context.Context, before time.Time) (int64, error)
	ArchiveSnipes(ctx context.Context, before time.Time) (int64, error)
}
