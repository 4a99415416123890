package minio

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path"
	"slices"
	"strings"

	"github.com/hupe1980/mmapbits/blobstore"
	"github.com/minio/minio-go/v7"
)

// Store is a blobstore.BlobStore over a MinIO or other S3-compatible bucket.
// Blob names are joined to the root prefix to form object keys.
type Store struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewStore returns a Store for bucket, keeping objects under rootPrefix.
func NewStore(client *minio.Client, bucket, rootPrefix string) *Store {
	return &Store{client: client, bucket: bucket, prefix: rootPrefix}
}

func (s *Store) key(name string) string {
	return path.Join(s.prefix, name)
}

// relName maps an object key back to a blob name. ok is false for keys
// outside the root prefix.
func (s *Store) relName(key string) (name string, ok bool) {
	root := strings.TrimSuffix(s.prefix, "/")
	if root != "" {
		name, ok = strings.CutPrefix(key, root+"/")
		if !ok {
			return "", false
		}
	} else {
		name = key
	}
	return name, name != ""
}

func isNotFound(err error) bool {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NotFound":
		return true
	}
	return false
}

// Open implements blobstore.BlobStore. The object is stat'ed once; reads
// are ranged GETs.
func (s *Store) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	key := s.key(name)
	info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	switch {
	case isNotFound(err):
		return nil, blobstore.ErrNotFound
	case err != nil:
		return nil, err
	}
	return &object{store: s, key: key, size: info.Size}, nil
}

// Put uploads data in a single request.
func (s *Store) Put(ctx context.Context, name string, data []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, s.key(name), bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{})
	return err
}

// Create implements blobstore.BlobStore. The object is uploaded with an
// unknown length while it is written and appears when Close succeeds.
func (s *Store) Create(ctx context.Context, name string) (blobstore.WritableBlob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := s.key(name)
	return blobstore.NewPipeWriter(func(r io.Reader) error {
		_, err := s.client.PutObject(ctx, s.bucket, key, r, -1, minio.PutObjectOptions{})
		return err
	}), nil
}

// Delete implements blobstore.BlobStore. A missing object is not an error.
func (s *Store) Delete(ctx context.Context, name string) error {
	err := s.client.RemoveObject(ctx, s.bucket, s.key(name), minio.RemoveObjectOptions{})
	if isNotFound(err) {
		return nil
	}
	return err
}

// List implements blobstore.BlobStore.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	opts := minio.ListObjectsOptions{Prefix: s.key(prefix), Recursive: true}

	var names []string
	for obj := range s.client.ListObjects(ctx, s.bucket, opts) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		if name, ok := s.relName(obj.Key); ok && strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names, nil
}

// object is an open blob. It holds no connection between reads.
type object struct {
	store *Store
	key   string
	size  int64
}

func (o *object) Size() int64  { return o.size }
func (o *object) Close() error { return nil }

// fetch issues a GET for the inclusive byte range [first, last].
func (o *object) fetch(ctx context.Context, first, last int64) (*minio.Object, error) {
	var opts minio.GetObjectOptions
	if err := opts.SetRange(first, last); err != nil {
		return nil, err
	}
	return o.store.client.GetObject(ctx, o.store.bucket, o.key, opts)
}

func (o *object) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if off < 0 || off >= o.size {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}
	want := min(int64(len(p)), o.size-off)

	body, err := o.fetch(ctx, off, off+want-1)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	n, err := io.ReadFull(body, p[:want])
	switch {
	case errors.Is(err, io.ErrUnexpectedEOF):
		return n, io.EOF
	case err != nil:
		return n, err
	case n < len(p):
		return n, io.EOF
	}
	return n, nil
}

func (o *object) ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error) {
	if off < 0 || off >= o.size {
		return nil, io.EOF
	}
	return o.fetch(ctx, off, min(off+length, o.size)-1)
}
