// Package s3ds implements S3 locations on aws-sdk-go-v2. A location URI
// s3://bucket/prefix lists every object whose key starts with prefix, the same
// set a Redshift COPY from that URI would read.
package s3ds

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"sparkify/internal/datasource"
)

// API is the subset of the S3 client used here.
type API interface {
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

var _ API = (*s3.Client)(nil)

// ParseURI splits s3://bucket/key into bucket and key. The key may be empty.
func ParseURI(uri string) (bucket, key string, err error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", "", fmt.Errorf("s3 uri %q: %w", uri, err)
	}
	if u.Scheme != "s3" || u.Host == "" {
		return "", "", fmt.Errorf("s3 uri %q: want s3://bucket/key", uri)
	}
	return u.Host, strings.TrimPrefix(u.Path, "/"), nil
}

// Prefix lists the objects under one bucket/prefix.
type Prefix struct {
	api    API
	bucket string
	prefix string
}

// NewPrefix returns a Prefix for uri.
func NewPrefix(api API, uri string) (*Prefix, error) {
	bucket, prefix, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}
	return &Prefix{api: api, bucket: bucket, prefix: prefix}, nil
}

// List pages through ListObjectsV2 and returns every non-folder object in key
// order.
func (p *Prefix) List(ctx context.Context) ([]datasource.Object, error) {
	var out []datasource.Object
	pager := s3.NewListObjectsV2Paginator(p.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(p.bucket),
		Prefix: aws.String(p.prefix),
	})
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list s3://%s/%s: %w", p.bucket, p.prefix, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if key == "" || strings.HasSuffix(key, "/") {
				continue
			}
			out = append(out, &Object{api: p.api, bucket: p.bucket, key: key})
		}
	}
	return out, nil
}

// Object is one S3 object.
type Object struct {
	api    API
	bucket string
	key    string
}

// NewObject returns the object at uri without checking that it exists.
func NewObject(api API, uri string) (*Object, error) {
	bucket, key, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}
	if key == "" {
		return nil, fmt.Errorf("s3 uri %q: missing object key", uri)
	}
	return &Object{api: api, bucket: bucket, key: key}, nil
}

func (o *Object) Name() string { return "s3://" + o.bucket + "/" + o.key }

// Open starts a GetObject and returns its body.
func (o *Object) Open(ctx context.Context) (io.ReadCloser, error) {
	out, err := o.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(o.bucket),
		Key:    aws.String(o.key),
	})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", o.Name(), err)
	}
	return out.Body, nil
}
