package models

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidDescriptor is returned for a source reference missing its container or key.
	ErrInvalidDescriptor = errors.New("invalid record descriptor")
	// ErrEmptyNotification is returned when a notification carries no records.
	ErrEmptyNotification = errors.New("notification contains no records")
)

// Descriptor identifies one raw document in object storage.
type Descriptor struct {
	Container string `json:"container"`
	Key       string `json:"key"`
}

// String renders the descriptor as container/key.
func (d Descriptor) String() string {
	return fmt.Sprintf("%s/%s", d.Container, d.Key)
}

// Validate checks that both parts of the descriptor are set.
func (d Descriptor) Validate() error {
	if d.Container == "" || d.Key == "" {
		return fmt.Errorf("%w: container=%q key=%q", ErrInvalidDescriptor, d.Container, d.Key)
	}
	return nil
}

// NotificationRecord is one entry of a batch notification.
type NotificationRecord struct {
	Source Descriptor `json:"source"`
}

// Notification is the batch envelope delivered to a listing function.
type Notification struct {
	Records []NotificationRecord `json:"records"`
}

// Descriptors extracts the source of every record, preserving order.
func (n Notification) Descriptors() ([]Descriptor, error) {
	if len(n.Records) == 0 {
		return nil, ErrEmptyNotification
	}
	out := make([]Descriptor, 0, len(n.Records))
	for i, rec := range n.Records {
		if err := rec.Source.Validate(); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		out = append(out, rec.Source)
	}
	return out, nil
}

// StorageObjectEvent is the data payload of a Cloud Storage object notification.
type StorageObjectEvent struct {
	Bucket string `json:"bucket"`
	Name   string `json:"name"`
}

// Descriptor converts the storage event into a single descriptor.
func (e StorageObjectEvent) Descriptor() (Descriptor, error) {
	d := Descriptor{Container: e.Bucket, Key: e.Name}
	if err := d.Validate(); err != nil {
		return Descriptor{}, err
	}
	return d, nil
}
