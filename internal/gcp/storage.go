package gcp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"

	"github.com/Lllllllleong/listingflow/internal/pipeline"
)

// ObjectStore adapts a Cloud Storage client to the pipeline's object reader and writer.
type ObjectStore struct {
	client *storage.Client
	// ifAbsent makes writes conditional on the object not existing yet.
	ifAbsent bool
}

var (
	_ pipeline.ObjectReader = (*ObjectStore)(nil)
	_ pipeline.ObjectWriter = (*ObjectStore)(nil)
)

// NewStorageClient creates a Cloud Storage client.
func NewStorageClient(ctx context.Context) (*storage.Client, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return client, nil
}

// NewObjectStore wraps client. With ifAbsent set, Put skips objects that already exist.
func NewObjectStore(client *storage.Client, ifAbsent bool) *ObjectStore {
	return &ObjectStore{client: client, ifAbsent: ifAbsent}
}

// Get reads a whole object. Missing buckets or objects are wrapped with pipeline.ErrNotFound.
func (s *ObjectStore) Get(ctx context.Context, bucket, object string) ([]byte, error) {
	reader, err := s.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		if IsNotFound(err) {
			return nil, fmt.Errorf("gs://%s/%s: %w: %w", bucket, object, pipeline.ErrNotFound, err)
		}
		return nil, fmt.Errorf("failed to get GCS object reader for gs://%s/%s: %w", bucket, object, err)
	}
	defer reader.Close()

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read gs://%s/%s: %w", bucket, object, err)
	}
	return body, nil
}

// Put writes body to bucket/object.
func (s *ObjectStore) Put(ctx context.Context, bucket, object string, body []byte, opts pipeline.PutOptions) error {
	handle := s.client.Bucket(bucket).Object(object)
	if s.ifAbsent {
		handle = handle.If(storage.Conditions{DoesNotExist: true})
	}
	writer := handle.NewWriter(ctx)
	writer.ContentType = opts.ContentType
	if opts.EncryptionKey != "" {
		writer.KMSKeyName = opts.EncryptionKey
	}

	if _, err := io.Copy(writer, bytes.NewReader(body)); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write to GCS: %w", err)
	}
	if err := writer.Close(); err != nil {
		if s.ifAbsent && IsPreconditionFailed(err) {
			slog.Info("SKIPPING: Object already exists.", "gcsBucket", bucket, "gcsObject", object)
			return nil
		}
		return fmt.Errorf("failed to finalize GCS write: %w", err)
	}
	return nil
}

// IsNotFound reports whether err means the bucket or object does not exist.
func IsNotFound(err error) bool {
	if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
		return true
	}
	return hasStatus(err, http.StatusNotFound)
}

// IsPreconditionFailed reports whether a conditional write was rejected.
func IsPreconditionFailed(err error) bool {
	return hasStatus(err, http.StatusPreconditionFailed)
}

func hasStatus(err error, code int) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == code
}
