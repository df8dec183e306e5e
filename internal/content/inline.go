package content

import (
	"bytes"
	"context"
	"crypto/md5"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io"
)

// InlineStore keeps payloads as blob rows in the same SQLite database
// that holds the file metadata. Best for small files: no hop to a
// second system, at the cost of a bounded payload size.
type InlineStore struct {
	db *sql.DB
}

// NewInlineStore creates an inline backend over the metadata database
// connection.
func NewInlineStore(db *sql.DB) *InlineStore {
	return &InlineStore{db: db}
}

// Put stores the payload as a blob row, hashing it on the way in.
func (s *InlineStore) Put(ctx context.Context, key string, r io.Reader) (PutResult, error) {
	hasher := md5.New()
	var buf bytes.Buffer
	n, err := io.Copy(io.MultiWriter(&buf, hasher), r)
	if err != nil {
		return PutResult{}, fmt.Errorf("read payload: %w", err)
	}

	data := buf.Bytes()
	if data == nil {
		// a nil slice binds as NULL, which the NOT NULL column rejects;
		// an empty payload is a valid empty blob
		data = []byte{}
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO content_blobs (object_key, data, content_length)
		VALUES (?, ?, ?)
		ON CONFLICT(object_key) DO UPDATE SET data = excluded.data,
			content_length = excluded.content_length`,
		key, data, n)
	if err != nil {
		return PutResult{}, fmt.Errorf("store payload: %w", err)
	}

	return PutResult{MD5: hex.EncodeToString(hasher.Sum(nil)), Length: n}, nil
}

// Get streams the requested byte range of a blob row to w.
func (s *InlineStore) Get(ctx context.Context, key string, start, end int64, w io.Writer) error {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM content_blobs WHERE object_key = ?`, key).Scan(&data)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("load payload: %w", err)
	}

	length := int64(len(data))
	if start < 0 {
		start = 0
	}
	if start > length {
		start = length
	}
	if end < 0 || end >= length {
		end = length - 1
	}
	if end < start {
		return nil
	}
	if _, err := w.Write(data[start : end+1]); err != nil {
		return fmt.Errorf("write payload: %w", err)
	}
	return nil
}

// Copy duplicates a blob row under a new key without rereading the
// payload through the application.
func (s *InlineStore) Copy(ctx context.Context, srcKey, dstKey string) error {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM content_blobs WHERE object_key = ?`, dstKey).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check copy destination: %w", err)
	}
	if exists > 0 {
		return ErrAlreadyExists
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO content_blobs (object_key, data, content_length)
		SELECT ?, data, content_length FROM content_blobs WHERE object_key = ?`,
		dstKey, srcKey)
	if err != nil {
		return fmt.Errorf("copy payload: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a blob row.
func (s *InlineStore) Delete(ctx context.Context, key string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM content_blobs WHERE object_key = ?`, key)
	if err != nil {
		return fmt.Errorf("delete payload: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

var _ Store = (*InlineStore)(nil)
