// Package objectstore keeps source documents and produced podcasts in NATS
// JetStream object store buckets.
package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/book-expert/podcast-service/internal/core"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const bucketDescriptionFmt = "Podcast service storage for the %s bucket."

// Error formats.
const (
	errFmtBind     = "failed to bind to existing object store bucket '%s': %w"
	errFmtCreate   = "failed to create object store bucket '%s': %w"
	errFmtGet      = "failed to get object '%s' from bucket '%s': %w"
	errFmtNotFound = "%w: object '%s' in bucket '%s'"
	errFmtRead     = "failed to read object '%s': %w"
	errFmtClose    = "failed to close object '%s': %w"
	errFmtPut      = "failed to put object '%s' to bucket '%s': %w"
)

// Store implements core.ObjectStore on one JetStream bucket.
type Store struct {
	bucket string
	store  nats.ObjectStore
}

// New creates the bucket, or binds to it when it already exists.
func New(jetstreamContext nats.JetStreamContext, bucketName string) (*Store, error) {
	store, err := jetstreamContext.CreateObjectStore(&nats.ObjectStoreConfig{
		Bucket:      bucketName,
		Description: fmt.Sprintf(bucketDescriptionFmt, bucketName),
		Storage:     nats.FileStorage,
		Replicas:    1,
	})
	if err != nil {
		if !errors.Is(err, jetstream.ErrBucketExists) && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
			return nil, fmt.Errorf(errFmtCreate, bucketName, err)
		}

		store, err = jetstreamContext.ObjectStore(bucketName)
		if err != nil {
			return nil, fmt.Errorf(errFmtBind, bucketName, err)
		}
	}

	return &Store{bucket: bucketName, store: store}, nil
}

// Bucket returns the bucket name.
func (s *Store) Bucket() string {
	return s.bucket
}

// Download reads a whole object. A missing key wraps core.ErrNotFound.
func (s *Store) Download(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.store.Get(key, nats.Context(ctx))
	if err != nil {
		if errors.Is(err, nats.ErrObjectNotFound) {
			return nil, fmt.Errorf(errFmtNotFound, core.ErrNotFound, key, s.bucket)
		}

		return nil, fmt.Errorf(errFmtGet, key, s.bucket, err)
	}

	data, readErr := io.ReadAll(obj)
	closeErr := obj.Close()

	if readErr != nil {
		return nil, fmt.Errorf(errFmtRead, key, readErr)
	}

	if closeErr != nil {
		return data, fmt.Errorf(errFmtClose, key, closeErr)
	}

	return data, nil
}

// Upload stores data under key, replacing any previous object.
func (s *Store) Upload(ctx context.Context, key string, data []byte) error {
	_, err := s.store.Put(&nats.ObjectMeta{Name: key}, bytes.NewReader(data), nats.Context(ctx))
	if err != nil {
		return fmt.Errorf(errFmtPut, key, s.bucket, err)
	}

	return nil
}
