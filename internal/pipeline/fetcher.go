package pipeline

import (
	"context"

	"github.com/Lllllllleong/listingflow/internal/models"
)

// RawDocument is the body of one fetched source object.
type RawDocument struct {
	Body        []byte
	ContentType string
}

// Fetcher retrieves the raw document a descriptor points at.
type Fetcher interface {
	Fetch(ctx context.Context, src models.Descriptor) (RawDocument, error)
}

// ObjectReader is the read half of an object store. Implementations wrap
// missing objects with ErrNotFound.
type ObjectReader interface {
	Get(ctx context.Context, container, key string) ([]byte, error)
}

// ObjectFetcher reads source documents from an object store.
type ObjectFetcher struct {
	store ObjectReader
}

// NewObjectFetcher creates an ObjectFetcher over store.
func NewObjectFetcher(store ObjectReader) *ObjectFetcher {
	return &ObjectFetcher{store: store}
}

// Fetch performs exactly one store read. Every failure, including a missing
// object, is returned as a *FetchError carrying the original cause.
func (f *ObjectFetcher) Fetch(ctx context.Context, src models.Descriptor) (RawDocument, error) {
	if err := src.Validate(); err != nil {
		return RawDocument{}, &FetchError{Source: src, Err: err}
	}
	body, err := f.store.Get(ctx, src.Container, src.Key)
	if err != nil {
		return RawDocument{}, &FetchError{Source: src, Err: err}
	}
	return RawDocument{Body: body}, nil
}
