// Package weaviate provides a VectorIndex backed by a Weaviate server.
//
// Chunks are stored as objects of a single class with vectorizer "none"
// and cosine distance. Object ids are name-based UUIDs derived from the
// chunk id so re-upserting a chunk overwrites the same object. An empty
// role list is stored as ["*"] so the role filter can be a single
// ContainsAny clause.
package weaviate

import (
	"context"
	"fmt"
	"sort"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/custodia-labs/sercha-kb/internal/core/domain"
	"github.com/custodia-labs/sercha-kb/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-kb/internal/logger"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

const (
	// DefaultClass is the class chunks are stored under.
	DefaultClass = "KnowledgeChunk"

	// anyRole marks a chunk visible to every role.
	anyRole = "*"
)

// chunkNamespace seeds the name-based object UUIDs.
var chunkNamespace = uuid.MustParse("6f1c3d0a-8d2b-4b7e-9a51-2f0c9e4b7d13")

// Config holds connection settings.
type Config struct {
	Host   string
	Scheme string
	Class  string
}

// Index stores chunk vectors in Weaviate.
type Index struct {
	client     *weaviate.Client
	class      string
	dimensions int
	identity   string
}

// New connects to Weaviate and makes sure the chunk class exists.
func New(ctx context.Context, cfg Config, dimensions int) (*Index, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("%w: weaviate host is required", domain.ErrInvalidInput)
	}
	if cfg.Scheme == "" {
		cfg.Scheme = "http"
	}
	if cfg.Class == "" {
		cfg.Class = DefaultClass
	}

	client, err := weaviate.NewClient(weaviate.Config{Host: cfg.Host, Scheme: cfg.Scheme})
	if err != nil {
		return nil, fmt.Errorf("%w: creating weaviate client: %v", domain.ErrVectorIndexUnavailable, err)
	}

	idx := &Index{client: client, class: cfg.Class, dimensions: dimensions, identity: Identity(cfg)}
	if err := idx.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return idx, nil
}

func (x *Index) ensureSchema(ctx context.Context) error {
	if _, err := x.client.Schema().ClassGetter().WithClassName(x.class).Do(ctx); err == nil {
		return nil
	}
	logger.Info("Creating weaviate class %s", x.class)
	if err := x.client.Schema().ClassCreator().WithClass(ChunkClass(x.class)).Do(ctx); err != nil {
		return fmt.Errorf("%w: creating class %s: %v", domain.ErrVectorIndexUnavailable, x.class, err)
	}
	return nil
}

// ChunkClass returns the schema for the chunk class.
func ChunkClass(name string) *models.Class {
	filterable := new(bool)
	*filterable = true

	text := func(prop string) *models.Property {
		return &models.Property{Name: prop, DataType: []string{"text"}, Tokenization: "field", IndexFilterable: filterable}
	}

	return &models.Class{
		Class:             name,
		Description:       "A chunk of a knowledge base document.",
		Vectorizer:        "none",
		VectorIndexConfig: map[string]interface{}{"distance": "cosine"},
		Properties: []*models.Property{
			text("chunkId"),
			text("docId"),
			{Name: "ordinal", DataType: []string{"int"}},
			{Name: "text", DataType: []string{"text"}, Tokenization: "word"},
			text("title"),
			text("path"),
			{Name: "sectionPath", DataType: []string{"text[]"}, Tokenization: "field"},
			{Name: "page", DataType: []string{"int"}},
			text("contentHash"),
			{Name: "allowedRoles", DataType: []string{"text[]"}, Tokenization: "field", IndexFilterable: filterable},
		},
	}
}

// ObjectID returns the deterministic object id of a chunk.
func ObjectID(chunkID string) strfmt.UUID {
	return strfmt.UUID(uuid.NewSHA1(chunkNamespace, []byte(chunkID)).String())
}

// ToObject converts a record into a Weaviate object.
func ToObject(class string, rec driven.VectorRecord) *models.Object {
	sections := rec.SectionPath
	if sections == nil {
		sections = []string{}
	}
	return &models.Object{
		Class:  class,
		ID:     ObjectID(rec.ID),
		Vector: rec.Vector,
		Properties: map[string]interface{}{
			"chunkId":      rec.ID,
			"docId":        rec.DocID,
			"ordinal":      rec.Ordinal,
			"text":         rec.Text,
			"title":        rec.Title,
			"path":         rec.Path,
			"sectionPath":  sections,
			"page":         rec.Page,
			"contentHash":  rec.ContentHash,
			"allowedRoles": storedRoles(rec.AllowedRoles),
		},
	}
}

func storedRoles(roles []string) []string {
	if len(roles) == 0 {
		return []string{anyRole}
	}
	return roles
}

// MetadataProperties returns the properties merged by UpdateMetadata.
func MetadataProperties(meta driven.DocMetadata) map[string]interface{} {
	return map[string]interface{}{
		"title":        meta.Title,
		"path":         meta.Path,
		"allowedRoles": storedRoles(meta.AllowedRoles),
	}
}

// Upsert writes records in one batch request.
func (x *Index) Upsert(ctx context.Context, records []driven.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	objects := make([]*models.Object, 0, len(records))
	for _, rec := range records {
		if x.dimensions > 0 && len(rec.Vector) != x.dimensions {
			return fmt.Errorf("%w: record %s has %d dimensions, want %d",
				domain.ErrDimensionMismatch, rec.ID, len(rec.Vector), x.dimensions)
		}
		objects = append(objects, ToObject(x.class, rec))
	}

	resp, err := x.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
	if err != nil {
		return fmt.Errorf("batch import to weaviate: %w", err)
	}
	for _, item := range resp {
		if item.Result != nil && item.Result.Errors != nil && len(item.Result.Errors.Error) > 0 {
			return fmt.Errorf("weaviate rejected object %s: %s", item.ID, item.Result.Errors.Error[0].Message)
		}
	}
	return nil
}

// DeleteFilter selects the objects of docID not listed in keep.
func DeleteFilter(docID string, keep []string) *filters.WhereBuilder {
	byDoc := filters.Where().
		WithPath([]string{"docId"}).
		WithOperator(filters.Equal).
		WithValueString(docID)
	if len(keep) == 0 {
		return byDoc
	}

	operands := []*filters.WhereBuilder{byDoc}
	for _, id := range keep {
		operands = append(operands, filters.Where().
			WithPath([]string{"chunkId"}).
			WithOperator(filters.NotEqual).
			WithValueString(id))
	}
	return filters.Where().
		WithOperator(filters.And).
		WithOperands(operands)
}

// DeleteByDoc removes the records of docID whose ids are not in keep.
func (x *Index) DeleteByDoc(ctx context.Context, docID string, keep []string) error {
	_, err := x.client.Batch().ObjectsBatchDeleter().
		WithClassName(x.class).
		WithOutput("minimal").
		WithWhere(DeleteFilter(docID, keep)).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("deleting chunks of %s: %w", docID, err)
	}
	return nil
}

// UpdateMetadata merges the title, path and roles into each listed object.
// Objects keep their vectors.
func (x *Index) UpdateMetadata(ctx context.Context, docID string, ids []string, meta driven.DocMetadata) error {
	props := MetadataProperties(meta)
	for _, id := range ids {
		err := x.client.Data().Updater().
			WithMerge().
			WithClassName(x.class).
			WithID(ObjectID(id).String()).
			WithProperties(props).
			Do(ctx)
		if err != nil {
			return fmt.Errorf("updating metadata of %s chunk %s: %w", docID, id, err)
		}
	}
	return nil
}

// RoleFilter selects chunks visible to role.
func RoleFilter(role string) *filters.WhereBuilder {
	return filters.Where().
		WithPath([]string{"allowedRoles"}).
		WithOperator(filters.ContainsAny).
		WithValueText(role, anyRole)
}

var searchFields = []graphql.Field{
	{Name: "chunkId"},
	{Name: "docId"},
	{Name: "ordinal"},
	{Name: "text"},
	{Name: "title"},
	{Name: "path"},
	{Name: "sectionPath"},
	{Name: "page"},
	{Name: "contentHash"},
	{Name: "allowedRoles"},
	{Name: "_additional", Fields: []graphql.Field{{Name: "distance"}}},
}

// Search returns up to k records nearest to query that role may see.
func (x *Index) Search(ctx context.Context, query []float32, k int, filter driven.VectorFilter) ([]driven.VectorHit, error) {
	if k <= 0 {
		return nil, nil
	}
	if x.dimensions > 0 && len(query) != x.dimensions {
		return nil, fmt.Errorf("%w: query has %d dimensions, want %d",
			domain.ErrDimensionMismatch, len(query), x.dimensions)
	}

	nearVector := x.client.GraphQL().NearVectorArgBuilder().WithVector(query)
	get := x.client.GraphQL().Get().
		WithClassName(x.class).
		WithFields(searchFields...).
		WithNearVector(nearVector).
		WithLimit(k)
	if filter.Role != "" {
		get = get.WithWhere(RoleFilter(filter.Role))
	}

	result, err := get.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("weaviate search: %w", err)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("weaviate search: %s", result.Errors[0].Message)
	}
	return ParseHits(result.Data, x.class)
}

// ParseHits extracts hits from a GraphQL Get response.
func ParseHits(data map[string]models.JSONObject, class string) ([]driven.VectorHit, error) {
	get, ok := data["Get"].(map[string]interface{})
	if !ok {
		return nil, nil
	}
	items, ok := get[class].([]interface{})
	if !ok {
		return nil, nil
	}

	hits := make([]driven.VectorHit, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("unexpected weaviate object %T", item)
		}
		rec := driven.VectorRecord{
			ID:           stringProp(obj, "chunkId"),
			DocID:        stringProp(obj, "docId"),
			Ordinal:      intProp(obj, "ordinal"),
			Text:         stringProp(obj, "text"),
			Title:        stringProp(obj, "title"),
			Path:         stringProp(obj, "path"),
			SectionPath:  listProp(obj, "sectionPath"),
			Page:         intProp(obj, "page"),
			ContentHash:  stringProp(obj, "contentHash"),
			AllowedRoles: listProp(obj, "allowedRoles"),
		}
		if len(rec.AllowedRoles) == 1 && rec.AllowedRoles[0] == anyRole {
			rec.AllowedRoles = nil
		}

		distance := 1.0
		if additional, ok := obj["_additional"].(map[string]interface{}); ok {
			if d, ok := additional["distance"].(float64); ok {
				distance = d
			}
		}
		hits = append(hits, driven.VectorHit{Record: rec, Similarity: 1 - distance})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Similarity > hits[j].Similarity
	})
	return hits, nil
}

func stringProp(obj map[string]interface{}, name string) string {
	s, _ := obj[name].(string)
	return s
}

func intProp(obj map[string]interface{}, name string) int {
	switch v := obj[name].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	}
	return 0
}

func listProp(obj map[string]interface{}, name string) []string {
	raw, ok := obj[name].([]interface{})
	if !ok || len(raw) == 0 {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Identity names the server and class an index writes to.
func Identity(cfg Config) string {
	return "weaviate:" + cfg.Scheme + "://" + cfg.Host + "/" + cfg.Class
}

// Identity names the server and class this index writes to.
func (x *Index) Identity() string {
	return x.identity
}

// ScoreRange reports cosine similarity bounds.
func (x *Index) ScoreRange() (lo, hi float64) {
	return -1, 1
}

// Close releases resources. The Weaviate client holds no open handles.
func (x *Index) Close() error {
	return nil
}
