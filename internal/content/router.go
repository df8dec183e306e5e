package content

import (
	"bytes"
	"context"
	"fmt"
	"io"
)

// Backend names recorded in file metadata so reads are routed to the
// backend that was used at write time instead of probing.
const (
	BackendInline = "inline"
	BackendObject = "object"
)

// Router wraps both backends and picks one per file at write time by a
// size threshold: payloads up to Threshold bytes stay inline, larger
// ones go to the object store. With no object store configured
// everything stays inline.
type Router struct {
	inline    Store
	object    Store
	threshold int64
}

// NewRouter creates a content router. object may be nil; threshold is
// the largest payload size (in bytes) stored inline.
func NewRouter(inline Store, object Store, threshold int64) *Router {
	return &Router{inline: inline, object: object, threshold: threshold}
}

// Put stores the payload and returns the result together with the name
// of the backend that holds the key. The first threshold+1 bytes are
// spooled to decide the route; the spool and the remaining stream are
// then replayed into the chosen backend, so large payloads are never
// buffered whole.
func (r *Router) Put(ctx context.Context, key string, src io.Reader) (PutResult, string, error) {
	if r.object == nil {
		res, err := r.inline.Put(ctx, key, src)
		return res, BackendInline, err
	}

	spool := make([]byte, r.threshold+1)
	n, err := io.ReadFull(src, spool)
	switch err {
	case nil:
		// more than threshold bytes: spill to the object store
		combined := io.MultiReader(bytes.NewReader(spool[:n]), src)
		res, putErr := r.object.Put(ctx, key, combined)
		return res, BackendObject, putErr
	case io.ErrUnexpectedEOF, io.EOF:
		res, putErr := r.inline.Put(ctx, key, bytes.NewReader(spool[:n]))
		return res, BackendInline, putErr
	default:
		return PutResult{}, "", fmt.Errorf("read payload: %w", err)
	}
}

// Get streams from the backend recorded for the key at write time.
func (r *Router) Get(ctx context.Context, backend, key string, start, end int64, w io.Writer) error {
	store, err := r.pick(backend)
	if err != nil {
		return err
	}
	return store.Get(ctx, key, start, end, w)
}

// Copy duplicates a key within its backend. Payloads never change
// backend on copy: the original routing decision travels with the file
// metadata.
func (r *Router) Copy(ctx context.Context, backend, srcKey, dstKey string) error {
	store, err := r.pick(backend)
	if err != nil {
		return err
	}
	return store.Copy(ctx, srcKey, dstKey)
}

// Delete removes a key from its backend.
func (r *Router) Delete(ctx context.Context, backend, key string) error {
	store, err := r.pick(backend)
	if err != nil {
		return err
	}
	return store.Delete(ctx, key)
}

func (r *Router) pick(backend string) (Store, error) {
	switch backend {
	case BackendInline, "":
		// empty backend covers rows written before routing was recorded
		return r.inline, nil
	case BackendObject:
		if r.object == nil {
			return nil, fmt.Errorf("object store backend not configured")
		}
		return r.object, nil
	default:
		return nil, fmt.Errorf("unknown content backend %q", backend)
	}
}
