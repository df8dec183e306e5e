// Package index maintains the denormalized search projection of
// representation versions. The primary store is the source of truth;
// this index is updated asynchronously and is allowed to lag. Failed
// updates are journaled and replayed by a periodic sweep.
package index

import (
	"context"
	"time"
)

// ClassName is the index class holding one document per representation
// version.
const ClassName = "RepresentationVersion"

// Document is the query-optimized projection of one representation
// version. DataSets holds encoded compound data set ids.
type Document struct {
	CloudID      string    `json:"cloudId"`
	VersionID    string    `json:"versionId"`
	Schema       string    `json:"schema"`
	ProviderID   string    `json:"providerId"`
	CreationDate time.Time `json:"creationDate"`
	Persistent   bool      `json:"persistent"`
	DataSets     []string  `json:"dataSets"`
}

// SearchParams is the bounded set of filter dimensions supported by the
// index. Zero values mean "no filter on this dimension".
type SearchParams struct {
	Schema        string
	ProviderID    string
	Persistent    *bool
	DataSet       string // encoded compound data set id
	CreatedAfter  time.Time
	CreatedBefore time.Time
}

// Client is the contract for index storage operations. The production
// implementation talks to Weaviate; a mock is provided for tests.
type Client interface {
	// EnsureSchema creates the index class if it does not exist yet.
	EnsureSchema(ctx context.Context) error

	// UpsertDocument inserts or replaces the document for a version.
	// Data set ids already recorded for the version are preserved and
	// merged with the ones on doc.
	UpsertDocument(ctx context.Context, doc *Document) error

	// GetDocument returns the document for a version id, or nil if the
	// index does not hold one.
	GetDocument(ctx context.Context, versionID string) (*Document, error)

	// DeleteDocument removes the document of a single version.
	DeleteDocument(ctx context.Context, versionID string) error

	// DeleteByRepresentation removes the documents of every version of
	// one representation.
	DeleteByRepresentation(ctx context.Context, cloudID, schema string) error

	// DeleteByRecord removes the documents of every representation
	// version of a record.
	DeleteByRecord(ctx context.Context, cloudID string) error

	// AddDataSet records a data set assignment on a version document.
	AddDataSet(ctx context.Context, versionID, dataSet string) error

	// RemoveDataSet removes a data set assignment from a version
	// document.
	RemoveDataSet(ctx context.Context, versionID, dataSet string) error

	// RemoveDataSetEverywhere strips a data set id from all documents
	// that carry it. Used when a whole data set is deleted.
	RemoveDataSetEverywhere(ctx context.Context, dataSet string) error

	// Search returns one page of documents matching the filters,
	// ordered by creation date descending.
	Search(ctx context.Context, params SearchParams, offset, limit int) ([]Document, error)
}
