package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Lllllllleong/listingflow/internal/models"
)

// Write is everything a persister may need to store one record.
type Write struct {
	Source   models.Descriptor
	Document RawDocument
	Record   Record
	// Item is nil when the processor runs without a transformer.
	Item Item
}

// Persister performs the single destination write of a record.
type Persister interface {
	Persist(ctx context.Context, w Write) error
}

// TableWriter is the write half of a key-value table store. Put is an upsert.
type TableWriter interface {
	Put(ctx context.Context, table string, item Item) error
}

// PutOptions carries object metadata for ObjectWriter.Put.
type PutOptions struct {
	ContentType string
	// EncryptionKey names a customer-managed key; empty uses the container default.
	EncryptionKey string
}

// ObjectWriter is the write half of an object store.
type ObjectWriter interface {
	Put(ctx context.Context, container, key string, body []byte, opts PutOptions) error
}

// Emitter publishes a copy of a fetched document to downstream consumers.
type Emitter interface {
	Emit(ctx context.Context, src models.Descriptor, body []byte) error
}

var errNoItem = errors.New("table write requires a transformed item")

// TablePersister upserts transformed items into one table.
type TablePersister struct {
	store TableWriter
	table string
}

// NewTablePersister creates a TablePersister writing to table.
func NewTablePersister(store TableWriter, table string) *TablePersister {
	return &TablePersister{store: store, table: table}
}

func (p *TablePersister) Persist(ctx context.Context, w Write) error {
	if w.Item == nil {
		return errNoItem
	}
	if err := p.store.Put(ctx, p.table, w.Item); err != nil {
		return fmt.Errorf("failed to put item into table %s: %w", p.table, err)
	}
	return nil
}

// ObjectPersisterConfig configures copy-through writes.
type ObjectPersisterConfig struct {
	Container string
	KeyPrefix string
	Options   PutOptions
	// Emitter is optional.
	Emitter Emitter
	Logger  *slog.Logger
}

// ObjectPersister copies fetched documents unchanged into a destination container.
type ObjectPersister struct {
	store ObjectWriter
	cfg   ObjectPersisterConfig
}

// NewObjectPersister creates an ObjectPersister.
func NewObjectPersister(store ObjectWriter, cfg ObjectPersisterConfig) *ObjectPersister {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &ObjectPersister{store: store, cfg: cfg}
}

// DestinationKey returns the object key a source key is copied to.
func (p *ObjectPersister) DestinationKey(src models.Descriptor) string {
	return p.cfg.KeyPrefix + src.Key
}

func (p *ObjectPersister) Persist(ctx context.Context, w Write) error {
	p.cfg.Logger.Info("Fetched document.", "container", w.Source.Container, "key", w.Source.Key, "body", string(w.Document.Body))

	opts := p.cfg.Options
	if opts.ContentType == "" {
		opts.ContentType = w.Document.ContentType
	}
	key := p.DestinationKey(w.Source)
	if err := p.store.Put(ctx, p.cfg.Container, key, w.Document.Body, opts); err != nil {
		return fmt.Errorf("failed to put object %s/%s: %w", p.cfg.Container, key, err)
	}

	// Consumers only hear about documents that were copied.
	if p.cfg.Emitter != nil {
		if err := p.cfg.Emitter.Emit(ctx, w.Source, w.Document.Body); err != nil {
			return fmt.Errorf("failed to emit document: %w", err)
		}
	}
	return nil
}
