// Package objectstore provides the ObjectStore abstraction (§1, §6): a
// source of recipient CSVs and the unsubscribe file, backed by S3 the way
// internal/agent/s3_storage.go constructs and calls its S3 client.
package objectstore

import (
	"context"
	"errors"
	"io"
)

// ErrNotExist is returned by Open when the object does not exist. Callers
// that treat a missing object as "empty" (the unsubscribe file, §4.2)
// check for this with errors.Is.
var ErrNotExist = errors.New("objectstore: object does not exist")

// Store streams objects by key. Implementations must return ErrNotExist
// (wrapped or bare) when the key is absent.
type Store interface {
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}
