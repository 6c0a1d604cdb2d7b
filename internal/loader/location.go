package loader

import (
	"fmt"
	"strings"

	"sparkify/internal/datasource"
	"sparkify/internal/datasource/file"
	"sparkify/internal/datasource/s3ds"
)

func isS3(loc string) bool { return strings.HasPrefix(loc, "s3://") }

// lister resolves a staging location to the objects under it.
func (l *Loader) lister(loc string) (datasource.Lister, error) {
	if !isS3(loc) {
		return file.NewTree(loc), nil
	}
	if l.S3 == nil {
		return nil, fmt.Errorf("location %s: no S3 client configured", loc)
	}
	return s3ds.NewPrefix(l.S3, loc)
}

// object resolves a single-object location such as a jsonpaths file.
func (l *Loader) object(loc string) (datasource.Object, error) {
	if !isS3(loc) {
		return file.NewLocal(loc), nil
	}
	if l.S3 == nil {
		return nil, fmt.Errorf("location %s: no S3 client configured", loc)
	}
	return s3ds.NewObject(l.S3, loc)
}
