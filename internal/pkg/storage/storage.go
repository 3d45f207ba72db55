package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ErrNotFound is returned when the object is absent in the bucket
var ErrNotFound = errors.New("not found")

// Options for the object store connection
type Options struct {
	URL       string
	User      string
	Key       string
	Bucket    string
	Secure    bool
	PublicURL string // base for public links, endpoint is used if empty
}

type objectStater interface {
	StatObject(ctx context.Context, bucket, name string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
}

// Store resolves public URLs of files in a bucket
type Store struct {
	client objectStater
	bucket string
	base   string
}

// NewStore creates minio backed store
func NewStore(opts Options) (*Store, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("no storage url")
	}
	if opts.Bucket == "" {
		return nil, fmt.Errorf("no bucket")
	}
	mc, err := minio.New(opts.URL, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.User, opts.Key, ""),
		Secure: opts.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("can't init minio client: %w", err)
	}
	base := opts.PublicURL
	if base == "" {
		base = mc.EndpointURL().String()
	}
	goapp.Log.Info().Str("url", opts.URL).Str("bucket", opts.Bucket).Str("public", base).Msg("storage")
	return newStore(mc, opts.Bucket, base)
}

func newStore(client objectStater, bucket, base string) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("no client")
	}
	return &Store{client: client, bucket: bucket, base: strings.TrimSuffix(base, "/")}, nil
}

// PublicURL returns a fixed public URL of an existing file
func (s *Store) PublicURL(ctx context.Context, name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("no file name")
	}
	if _, err := s.client.StatObject(ctx, s.bucket, name, minio.StatObjectOptions{}); err != nil {
		if isNotFound(err) {
			return "", fmt.Errorf("file %s %w in storage", name, ErrNotFound)
		}
		return "", fmt.Errorf("can't stat %s: %w", name, err)
	}
	res := FixPublicURL(fmt.Sprintf("%s/%s/%s", s.base, s.bucket, url.PathEscape(name)), s.bucket)
	goapp.Log.Debug().Str("file", name).Str("url", res).Msg("public url")
	return res, nil
}

// FixPublicURL doubles the separator after the bucket, links resolve only in such form
func FixPublicURL(u, bucket string) string {
	return strings.Replace(u, "/"+bucket+"/", "/"+bucket+"//", 1)
}

func isNotFound(err error) bool {
	er := minio.ToErrorResponse(err)
	return er.StatusCode == http.StatusNotFound || er.Code == "NoSuchKey" || er.Code == "NoSuchBucket"
}
