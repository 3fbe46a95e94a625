// Package search mirrors non-deleted catalog entities into a full-text index.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"

	"github.com/schemajeli/schemajeli/internal/types"
)

// Document is the indexed form of a catalog entity.
type Document struct {
	EntityType  types.EntityType `json:"entityType"`
	EntityID    string           `json:"entityId"`
	ParentID    string           `json:"parentId,omitempty"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Keywords    []string         `json:"keywords,omitempty"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

func DocumentID(entityType types.EntityType, id string) string {
	return strings.ToLower(string(entityType)) + ":" + id
}

type Indexer interface {
	Index(ctx context.Context, doc Document) error
	Delete(ctx context.Context, entityType types.EntityType, id string) error
}

// Noop is used when the search index is disabled.
type Noop struct{}

func (Noop) Index(context.Context, Document) error                 { return nil }
func (Noop) Delete(context.Context, types.EntityType, string) error { return nil }

type Elasticsearch struct {
	client *elasticsearch.Client
	index  string
}

// NewElasticsearch connects to the cluster and verifies it answers.
func NewElasticsearch(ctx context.Context, addresses []string, index string) (*Elasticsearch, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: addresses})
	if err != nil {
		return nil, fmt.Errorf("error creating Elasticsearch client: %w", err)
	}

	res, err := client.Info(client.Info.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("error connecting to Elasticsearch: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("error response from Elasticsearch: %s", res.String())
	}

	return &Elasticsearch{client: client, index: index}, nil
}

func (e *Elasticsearch) Index(ctx context.Context, doc Document) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("error encoding document: %w", err)
	}

	res, err := e.client.Index(
		e.index,
		bytes.NewReader(body),
		e.client.Index.WithContext(ctx),
		e.client.Index.WithDocumentID(DocumentID(doc.EntityType, doc.EntityID)),
	)
	if err != nil {
		return fmt.Errorf("error indexing document: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("error response from Elasticsearch: %s", res.String())
	}
	return nil
}

// Delete removes a document; a document that is already gone is not an error.
func (e *Elasticsearch) Delete(ctx context.Context, entityType types.EntityType, id string) error {
	res, err := e.client.Delete(
		e.index,
		DocumentID(entityType, id),
		e.client.Delete.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("error deleting document: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("error response from Elasticsearch: %s", res.String())
	}
	return nil
}
