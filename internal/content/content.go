// Package content provides byte payload storage for representation
// files. Payloads are addressed by a composite object key and stored in
// one of two interchangeable backends: an inline backend sharing the
// metadata database, and an S3-compatible object store. A Router picks
// the backend per file by size.
package content

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrNotFound is returned when a requested object does not exist.
var ErrNotFound = errors.New("content not found")

// ErrAlreadyExists is returned when a copy destination is already taken.
var ErrAlreadyExists = errors.New("content already exists")

// PutResult carries the checksum and length computed while storing a
// payload.
type PutResult struct {
	MD5    string
	Length int64
}

// Store is the capability interface over named byte blobs. Both
// backends implement it; all methods stream and never buffer a whole
// payload in memory.
type Store interface {
	// Put stores the payload read from r under key, computing its MD5
	// checksum and length on the way through.
	Put(ctx context.Context, key string, r io.Reader) (PutResult, error)

	// Get streams the object to w. start and end are inclusive byte
	// offsets; -1 leaves the corresponding end open.
	Get(ctx context.Context, key string, start, end int64, w io.Writer) error

	// Copy duplicates an object under a new key. Fails with
	// ErrAlreadyExists if the destination exists, so copies never
	// silently overwrite.
	Copy(ctx context.Context, srcKey, dstKey string) error

	// Delete removes an object. Returns ErrNotFound if it is absent.
	Delete(ctx context.Context, key string) error
}

// keyDelimiter separates object key components. Identifiers containing
// it are rejected at the API boundary.
const keyDelimiter = "|"

// BuildKey assembles the object key for a representation file.
func BuildKey(cloudID, schema, version, fileName string) (string, error) {
	for _, part := range []string{cloudID, schema, version, fileName} {
		if part == "" {
			return "", fmt.Errorf("object key component must not be empty")
		}
		if strings.Contains(part, keyDelimiter) {
			return "", fmt.Errorf("object key component %q must not contain %q", part, keyDelimiter)
		}
	}
	return cloudID + keyDelimiter + schema + keyDelimiter + version + keyDelimiter + fileName, nil
}
