package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/fault"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	wmodels "github.com/weaviate/weaviate/entities/models"
)

// WeaviateClient implements Client against a Weaviate server. Documents
// are stored as objects of the RepresentationVersion class; the object
// id is the version id, which is already a UUID.
type WeaviateClient struct {
	client *weaviate.Client
}

// NewWeaviateClient creates an index client for the given URL.
func NewWeaviateClient(url string) (*WeaviateClient, error) {
	cfg := weaviate.Config{
		Host:   url,
		Scheme: "http",
	}
	if strings.HasPrefix(url, "http://") {
		cfg.Host = url[len("http://"):]
	} else if strings.HasPrefix(url, "https://") {
		cfg.Host = url[len("https://"):]
		cfg.Scheme = "https"
	}

	client, err := weaviate.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create index client: %w", err)
	}
	return &WeaviateClient{client: client}, nil
}

// Ping checks if the index server is reachable.
func (c *WeaviateClient) Ping(ctx context.Context) error {
	live, err := c.client.Misc().LiveChecker().Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to index server: %w", err)
	}
	if !live {
		return fmt.Errorf("index server is not live")
	}
	return nil
}

// EnsureSchema creates the index class unless it already exists.
func (c *WeaviateClient) EnsureSchema(ctx context.Context) error {
	exists, err := c.client.Schema().ClassExistenceChecker().
		WithClassName(ClassName).Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to check index class: %w", err)
	}
	if exists {
		return nil
	}

	textProp := func(name string) *wmodels.Property {
		return &wmodels.Property{Name: name, DataType: []string{"text"}}
	}
	class := &wmodels.Class{
		Class:      ClassName,
		Vectorizer: "none",
		Properties: []*wmodels.Property{
			textProp("cloudId"),
			textProp("versionId"),
			textProp("schema"),
			textProp("providerId"),
			{Name: "creationDate", DataType: []string{"date"}},
			{Name: "persistent", DataType: []string{"boolean"}},
			{Name: "dataSets", DataType: []string{"text[]"}},
		},
	}
	if err := c.client.Schema().ClassCreator().WithClass(class).Do(ctx); err != nil {
		return fmt.Errorf("failed to create index class: %w", err)
	}
	return nil
}

// UpsertDocument inserts or replaces a version document, merging data
// set ids already recorded for the version.
func (c *WeaviateClient) UpsertDocument(ctx context.Context, doc *Document) error {
	existing, err := c.GetDocument(ctx, doc.VersionID)
	if err != nil {
		return err
	}

	dataSets := doc.DataSets
	if existing != nil {
		dataSets = mergeDataSets(existing.DataSets, doc.DataSets)
	}

	props := map[string]any{
		"cloudId":      doc.CloudID,
		"versionId":    doc.VersionID,
		"schema":       doc.Schema,
		"providerId":   doc.ProviderID,
		"creationDate": doc.CreationDate.UTC().Format(time.RFC3339Nano),
		"persistent":   doc.Persistent,
		"dataSets":     dataSets,
	}

	if existing != nil {
		err = c.client.Data().Updater().
			WithClassName(ClassName).
			WithID(doc.VersionID).
			WithProperties(props).
			Do(ctx)
	} else {
		_, err = c.client.Data().Creator().
			WithClassName(ClassName).
			WithID(doc.VersionID).
			WithProperties(props).
			Do(ctx)
	}
	if err != nil {
		return fmt.Errorf("failed to upsert document %s: %w", doc.VersionID, err)
	}
	return nil
}

// GetDocument fetches a version document, or nil if absent. Only a 404
// counts as absent; other failures are returned so callers do not
// mistake an unreachable index for a missing document.
func (c *WeaviateClient) GetDocument(ctx context.Context, versionID string) (*Document, error) {
	objs, err := c.client.Data().ObjectsGetter().
		WithClassName(ClassName).
		WithID(versionID).
		Do(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch document %s: %w", versionID, err)
	}
	if len(objs) == 0 {
		return nil, nil
	}
	return objectToDocument(objs[0].Properties)
}

// isNotFound reports whether a client error is the server saying the
// object does not exist.
func isNotFound(err error) bool {
	var clientErr *fault.WeaviateClientError
	return errors.As(err, &clientErr) && clientErr.StatusCode == http.StatusNotFound
}

// DeleteDocument removes one version document.
func (c *WeaviateClient) DeleteDocument(ctx context.Context, versionID string) error {
	err := c.client.Data().Deleter().
		WithClassName(ClassName).
		WithID(versionID).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete document %s: %w", versionID, err)
	}
	return nil
}

// DeleteByRepresentation removes all version documents of one
// representation.
func (c *WeaviateClient) DeleteByRepresentation(ctx context.Context, cloudID, schema string) error {
	where := filters.Where().
		WithOperator(filters.And).
		WithOperands([]*filters.WhereBuilder{
			filters.Where().WithPath([]string{"cloudId"}).WithOperator(filters.Equal).WithValueText(cloudID),
			filters.Where().WithPath([]string{"schema"}).WithOperator(filters.Equal).WithValueText(schema),
		})
	return c.batchDelete(ctx, where)
}

// DeleteByRecord removes all version documents of a record.
func (c *WeaviateClient) DeleteByRecord(ctx context.Context, cloudID string) error {
	where := filters.Where().
		WithPath([]string{"cloudId"}).
		WithOperator(filters.Equal).
		WithValueText(cloudID)
	return c.batchDelete(ctx, where)
}

func (c *WeaviateClient) batchDelete(ctx context.Context, where *filters.WhereBuilder) error {
	_, err := c.client.Batch().ObjectsBatchDeleter().
		WithClassName(ClassName).
		WithWhere(where).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete documents: %w", err)
	}
	return nil
}

// AddDataSet records a data set id on a version document.
func (c *WeaviateClient) AddDataSet(ctx context.Context, versionID, dataSet string) error {
	doc, err := c.GetDocument(ctx, versionID)
	if err != nil {
		return err
	}
	if doc == nil {
		return fmt.Errorf("document %s not found in index", versionID)
	}
	doc.DataSets = mergeDataSets(doc.DataSets, []string{dataSet})
	return c.replaceDocument(ctx, doc)
}

// RemoveDataSet removes a data set id from a version document.
func (c *WeaviateClient) RemoveDataSet(ctx context.Context, versionID, dataSet string) error {
	doc, err := c.GetDocument(ctx, versionID)
	if err != nil {
		return err
	}
	if doc == nil {
		return nil
	}
	kept := doc.DataSets[:0]
	for _, ds := range doc.DataSets {
		if ds != dataSet {
			kept = append(kept, ds)
		}
	}
	doc.DataSets = kept
	return c.replaceDocument(ctx, doc)
}

// RemoveDataSetEverywhere strips a data set id from every document that
// carries it.
func (c *WeaviateClient) RemoveDataSetEverywhere(ctx context.Context, dataSet string) error {
	for {
		docs, err := c.Search(ctx, SearchParams{DataSet: dataSet}, 0, 100)
		if err != nil {
			return err
		}
		if len(docs) == 0 {
			return nil
		}
		for i := range docs {
			if err := c.RemoveDataSet(ctx, docs[i].VersionID, dataSet); err != nil {
				return err
			}
		}
	}
}

func (c *WeaviateClient) replaceDocument(ctx context.Context, doc *Document) error {
	err := c.client.Data().Updater().
		WithClassName(ClassName).
		WithID(doc.VersionID).
		WithProperties(map[string]any{
			"cloudId":      doc.CloudID,
			"versionId":    doc.VersionID,
			"schema":       doc.Schema,
			"providerId":   doc.ProviderID,
			"creationDate": doc.CreationDate.UTC().Format(time.RFC3339Nano),
			"persistent":   doc.Persistent,
			"dataSets":     doc.DataSets,
		}).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to update document %s: %w", doc.VersionID, err)
	}
	return nil
}

// Search runs a filtered, offset-paginated query ordered by creation
// date descending.
func (c *WeaviateClient) Search(ctx context.Context, params SearchParams, offset, limit int) ([]Document, error) {
	fields := []graphql.Field{
		{Name: "cloudId"},
		{Name: "versionId"},
		{Name: "schema"},
		{Name: "providerId"},
		{Name: "creationDate"},
		{Name: "persistent"},
		{Name: "dataSets"},
	}

	query := c.client.GraphQL().Get().
		WithClassName(ClassName).
		WithFields(fields...).
		WithSort(graphql.Sort{Path: []string{"creationDate"}, Order: graphql.Desc}).
		WithOffset(offset).
		WithLimit(limit)

	if where := buildWhere(params); where != nil {
		query = query.WithWhere(where)
	}

	result, err := query.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("index search failed: %w", err)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("index search failed: %s", result.Errors[0].Message)
	}

	data, ok := result.Data["Get"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("unexpected index search response format")
	}
	rows, ok := data[ClassName].([]any)
	if !ok {
		return nil, nil
	}

	docs := make([]Document, 0, len(rows))
	for _, row := range rows {
		props, ok := row.(map[string]any)
		if !ok {
			continue
		}
		doc, err := objectToDocument(props)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, nil
}

func buildWhere(params SearchParams) *filters.WhereBuilder {
	var operands []*filters.WhereBuilder

	if params.Schema != "" {
		operands = append(operands, filters.Where().
			WithPath([]string{"schema"}).WithOperator(filters.Equal).WithValueText(params.Schema))
	}
	if params.ProviderID != "" {
		operands = append(operands, filters.Where().
			WithPath([]string{"providerId"}).WithOperator(filters.Equal).WithValueText(params.ProviderID))
	}
	if params.Persistent != nil {
		operands = append(operands, filters.Where().
			WithPath([]string{"persistent"}).WithOperator(filters.Equal).WithValueBoolean(*params.Persistent))
	}
	if params.DataSet != "" {
		operands = append(operands, filters.Where().
			WithPath([]string{"dataSets"}).WithOperator(filters.Equal).WithValueText(params.DataSet))
	}
	if !params.CreatedAfter.IsZero() {
		operands = append(operands, filters.Where().
			WithPath([]string{"creationDate"}).WithOperator(filters.GreaterThanEqual).WithValueDate(params.CreatedAfter))
	}
	if !params.CreatedBefore.IsZero() {
		operands = append(operands, filters.Where().
			WithPath([]string{"creationDate"}).WithOperator(filters.LessThanEqual).WithValueDate(params.CreatedBefore))
	}

	switch len(operands) {
	case 0:
		return nil
	case 1:
		return operands[0]
	default:
		return filters.Where().WithOperator(filters.And).WithOperands(operands)
	}
}

// objectToDocument converts raw object properties into a Document via a
// JSON round trip, which tolerates the interface-typed values the
// client returns.
func objectToDocument(props any) (*Document, error) {
	data, err := json.Marshal(props)
	if err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	var raw struct {
		CloudID      string   `json:"cloudId"`
		VersionID    string   `json:"versionId"`
		Schema       string   `json:"schema"`
		ProviderID   string   `json:"providerId"`
		CreationDate string   `json:"creationDate"`
		Persistent   bool     `json:"persistent"`
		DataSets     []string `json:"dataSets"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}

	doc := &Document{
		CloudID:    raw.CloudID,
		VersionID:  raw.VersionID,
		Schema:     raw.Schema,
		ProviderID: raw.ProviderID,
		Persistent: raw.Persistent,
		DataSets:   raw.DataSets,
	}
	if raw.CreationDate != "" {
		if t, err := time.Parse(time.RFC3339Nano, raw.CreationDate); err == nil {
			doc.CreationDate = t
		} else if t, err := time.Parse(time.RFC3339, raw.CreationDate); err == nil {
			doc.CreationDate = t
		}
	}
	return doc, nil
}

func mergeDataSets(existing, added []string) []string {
	merged := make([]string, 0, len(existing)+len(added))
	seen := make(map[string]bool, len(existing)+len(added))
	for _, ds := range existing {
		if !seen[ds] {
			seen[ds] = true
			merged = append(merged, ds)
		}
	}
	for _, ds := range added {
		if !seen[ds] {
			seen[ds] = true
			merged = append(merged, ds)
		}
	}
	return merged
}

var _ Client = (*WeaviateClient)(nil)
