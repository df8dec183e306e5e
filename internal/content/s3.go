package content

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"hash"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectStoreConfig configures the S3-compatible backend.
type ObjectStoreConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// ObjectStore stores payloads in an S3-compatible object store. Suited
// to large files: native byte-range reads and server-side copies.
type ObjectStore struct {
	client *minio.Client
	bucket string
}

// NewObjectStore creates an object-store backend for the given bucket.
func NewObjectStore(cfg ObjectStoreConfig) (*ObjectStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create object store client: %w", err)
	}
	return &ObjectStore{client: client, bucket: cfg.Bucket}, nil
}

// Put streams the payload to the object store, hashing and counting on
// the way through. Size is unknown up front, so the upload is chunked.
func (s *ObjectStore) Put(ctx context.Context, key string, r io.Reader) (PutResult, error) {
	hr := newHashingReader(r)
	_, err := s.client.PutObject(ctx, s.bucket, key, hr, -1,
		minio.PutObjectOptions{ContentType: "application/octet-stream"})
	if err != nil {
		return PutResult{}, fmt.Errorf("put object %q: %w", key, err)
	}
	return PutResult{MD5: hr.MD5(), Length: hr.Count()}, nil
}

// Get streams the requested byte range of an object to w.
func (s *ObjectStore) Get(ctx context.Context, key string, start, end int64, w io.Writer) error {
	opts := minio.GetObjectOptions{}
	if start > 0 || end > -1 {
		if start < 0 {
			start = 0
		}
		if end < 0 {
			// open-ended range
			if err := opts.SetRange(start, 0); err != nil {
				return fmt.Errorf("set range for %q: %w", key, err)
			}
		} else if err := opts.SetRange(start, end); err != nil {
			return fmt.Errorf("set range for %q: %w", key, err)
		}
	}

	obj, err := s.client.GetObject(ctx, s.bucket, key, opts)
	if err != nil {
		return s.wrapErr("get object", key, err)
	}
	defer obj.Close()

	if _, err := io.Copy(w, obj); err != nil {
		return s.wrapErr("read object", key, err)
	}
	return nil
}

// Copy duplicates an object server-side; no payload bytes travel
// through this process.
func (s *ObjectStore) Copy(ctx context.Context, srcKey, dstKey string) error {
	if _, err := s.client.StatObject(ctx, s.bucket, dstKey, minio.StatObjectOptions{}); err == nil {
		return ErrAlreadyExists
	}
	if _, err := s.client.StatObject(ctx, s.bucket, srcKey, minio.StatObjectOptions{}); err != nil {
		return s.wrapErr("stat object", srcKey, err)
	}

	_, err := s.client.CopyObject(ctx,
		minio.CopyDestOptions{Bucket: s.bucket, Object: dstKey},
		minio.CopySrcOptions{Bucket: s.bucket, Object: srcKey})
	if err != nil {
		return s.wrapErr("copy object", srcKey, err)
	}
	return nil
}

// Delete removes an object.
func (s *ObjectStore) Delete(ctx context.Context, key string) error {
	if _, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{}); err != nil {
		return s.wrapErr("stat object", key, err)
	}
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return s.wrapErr("remove object", key, err)
	}
	return nil
}

func (s *ObjectStore) wrapErr(op, key string, err error) error {
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" {
		return ErrNotFound
	}
	return fmt.Errorf("%s %q: %w", op, key, err)
}

// hashingReader counts and hashes bytes as they stream through.
type hashingReader struct {
	r io.Reader
	h hash.Hash
	n int64
}

func newHashingReader(r io.Reader) *hashingReader {
	return &hashingReader{r: r, h: md5.New()}
}

func (hr *hashingReader) Read(p []byte) (int, error) {
	n, err := hr.r.Read(p)
	if n > 0 {
		hr.h.Write(p[:n])
		hr.n += int64(n)
	}
	return n, err
}

func (hr *hashingReader) MD5() string {
	return hex.EncodeToString(hr.h.Sum(nil))
}

func (hr *hashingReader) Count() int64 {
	return hr.n
}

var _ Store = (*ObjectStore)(nil)
