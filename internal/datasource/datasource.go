// Package datasource abstracts where staged JSON comes from. A location
// (a local file or directory, or an S3 prefix) lists to a set of objects, and
// each object opens as a byte stream.
package datasource

import (
	"context"
	"io"
)

// Source is a single readable object.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// Object is a Source with a display name (a path or an s3:// URI).
type Object interface {
	Source
	Name() string
}

// Lister enumerates the objects stored under a location, in a stable order.
type Lister interface {
	List(ctx context.Context) ([]Object, error)
}
