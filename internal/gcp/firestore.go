package gcp

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"

	"github.com/Lllllllleong/listingflow/internal/pipeline"
)

// NewFirestoreClient creates and returns a new Firestore client for the given project ID.
func NewFirestoreClient(ctx context.Context, projectID string) (*firestore.Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID must be provided to create a firestore client")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	return client, nil
}

// TableStore writes items as Firestore documents, one collection per table.
type TableStore struct {
	client *firestore.Client
}

var _ pipeline.TableWriter = (*TableStore)(nil)

// NewTableStore wraps client.
func NewTableStore(client *firestore.Client) *TableStore {
	return &TableStore{client: client}
}

// Put upserts item under its DocumentID.
func (s *TableStore) Put(ctx context.Context, collection string, item pipeline.Item) error {
	_, err := s.client.Collection(collection).Doc(DocumentID(item)).Set(ctx, map[string]interface{}(item))
	if err != nil {
		return fmt.Errorf("failed to set document in %s: %w", collection, err)
	}
	return nil
}

// DocumentID derives a stable document ID from the item keys. Items whose pk
// and sk match use the pk alone. Slashes are escaped since Firestore treats
// them as path separators.
func DocumentID(item pipeline.Item) string {
	id := item.PartitionKey()
	if sk := item.SortKey(); sk != id {
		id += "#" + sk
	}
	return strings.ReplaceAll(id, "/", "%2F")
}
