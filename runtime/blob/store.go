// Package blob provides the binary primitives behind media references:
// data URI and base64 decoding, in-memory binary objects, and revocable
// "blob:" handles that point at them.
//
// A handle created by Registry.CreateObjectURL is owned by the caller. The
// registry keeps the bytes alive until the owner calls RevokeObjectURL;
// nothing in this package revokes on the owner's behalf.
package blob

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a handle or object does not exist.
var ErrNotFound = errors.New("blob: not found")

// Object is a binary large object: raw bytes plus their media type.
type Object struct {
	MIMEType  string
	Data      []byte
	CreatedAt time.Time
}

// Size returns the payload length in bytes.
func (o *Object) Size() int {
	if o == nil {
		return 0
	}
	return len(o.Data)
}

// Store holds objects keyed by handle id.
// Implementations must be safe for concurrent use.
type Store interface {
	// Put saves obj under id, replacing any previous object.
	Put(ctx context.Context, id string, obj *Object) error

	// Get returns the object stored under id or ErrNotFound.
	Get(ctx context.Context, id string) (*Object, error)

	// Delete removes id. Deleting a missing id is not an error.
	Delete(ctx context.Context, id string) error

	// Len returns the number of stored objects.
	Len(ctx context.Context) (int, error)

	// Close releases resources held by the store.
	Close() error
}
