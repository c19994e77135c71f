package blob

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Jari57/studio-agents-sub002/runtime/logger"
)

// DefaultOrigin is the origin segment of handles created without WithOrigin.
const DefaultOrigin = "studio"

// handleNamespace seeds the name-based UUIDs used as handle ids, so equal
// content always maps to the same handle.
var handleNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:studio:blob-handle"))

// EventType names a handle lifecycle event.
type EventType string

// Handle lifecycle events.
const (
	EventCreated  EventType = "created"
	EventRetained EventType = "retained"
	EventReleased EventType = "released"
	EventRevoked  EventType = "revoked"
)

// Event describes a handle lifecycle change. Registry listeners receive one
// per create or revoke call.
type Event struct {
	Type     EventType
	Ref      string
	MIMEType string
	Size     int
	// Holders is the reference count after the event.
	Holders int
}

// Listener observes handle lifecycle events.
type Listener func(Event)

type handle struct {
	holders   int
	mimeType  string
	size      int
	createdAt time.Time
}

// idLock serializes store calls for one handle id.
type idLock struct {
	mu   sync.Mutex
	refs int
}

// Registry creates and revokes "blob:<origin>/<uuid>" handles.
//
// Handles are reference counted: materializing the same bytes twice returns
// the same handle with two holders, and the object is deleted from the store
// only when every holder has revoked it. Store calls run outside the
// registry lock, serialized per handle id.
type Registry struct {
	origin    string
	store     Store
	listeners []Listener
	now       func() time.Time

	mu      sync.Mutex
	handles map[string]*handle
	locks   map[string]*idLock
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithOrigin sets the origin segment of created handles.
func WithOrigin(origin string) RegistryOption {
	return func(r *Registry) {
		r.origin = origin
	}
}

// WithStore sets the object store. Default is a MemoryStore.
func WithStore(store Store) RegistryOption {
	return func(r *Registry) {
		r.store = store
	}
}

// WithListener registers a lifecycle listener.
func WithListener(l Listener) RegistryOption {
	return func(r *Registry) {
		r.listeners = append(r.listeners, l)
	}
}

// NewRegistry creates a Registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		origin:  DefaultOrigin,
		handles: make(map[string]*handle),
		locks:   make(map[string]*idLock),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.store == nil {
		r.store = NewMemoryStore()
	}
	return r
}

// DefaultRegistry backs the package-level media resolvers.
var DefaultRegistry = NewRegistry()

// Origin returns the origin segment of this registry's handles.
func (r *Registry) Origin() string {
	return r.origin
}

// URL returns the handle for id.
func (r *Registry) URL(id string) string {
	return SchemeBlob + r.origin + "/" + id
}

// ID extracts the handle id from ref. ref may be a full "blob:" handle of
// this registry's origin or a bare id.
func (r *Registry) ID(ref string) (string, bool) {
	id := ref
	if HasScheme(ref, SchemeBlob) {
		prefix := SchemeBlob + r.origin + "/"
		if !strings.HasPrefix(ref, prefix) {
			return "", false
		}
		id = ref[len(prefix):]
	}
	if _, err := uuid.Parse(id); err != nil {
		return "", false
	}
	return id, true
}

// CreateObjectURL stores data as a binary object and returns a handle for it.
// The caller owns the handle and must revoke it when done. Retaining an
// existing handle writes the object again, so a store that expired it (Redis
// TTL) serves it once more and its TTL restarts.
func (r *Registry) CreateObjectURL(ctx context.Context, mimeType string, data []byte) (string, error) {
	id := handleID(mimeType, data)
	ref := r.URL(id)

	unlock := r.lockID(id)
	defer unlock()

	r.mu.Lock()
	h, retained := r.handles[id]
	created := r.now()
	if retained {
		created = h.createdAt
	}
	r.mu.Unlock()

	obj := &Object{MIMEType: mimeType, Data: data, CreatedAt: created}
	if err := r.store.Put(ctx, id, obj); err != nil {
		return "", fmt.Errorf("store blob: %w", err)
	}

	r.mu.Lock()
	if retained {
		h.holders++
	} else {
		h = &handle{holders: 1, mimeType: mimeType, size: len(data), createdAt: created}
		r.handles[id] = h
	}
	ev := Event{Type: EventCreated, Ref: ref, MIMEType: mimeType, Size: len(data), Holders: h.holders}
	if retained {
		ev.Type = EventRetained
	}
	r.mu.Unlock()

	r.emit(ctx, ev)
	return ref, nil
}

// RevokeObjectURL releases one holder of ref. The object is deleted when the
// last holder releases it. Unknown or foreign handles are ignored.
func (r *Registry) RevokeObjectURL(ctx context.Context, ref string) error {
	id, ok := r.ID(ref)
	if !ok {
		return nil
	}

	unlock := r.lockID(id)
	defer unlock()

	r.mu.Lock()
	h, ok := r.handles[id]
	if !ok {
		r.mu.Unlock()
		return nil
	}
	h.holders--
	if h.holders > 0 {
		ev := Event{Type: EventReleased, Ref: r.URL(id), MIMEType: h.mimeType, Size: h.size, Holders: h.holders}
		r.mu.Unlock()
		r.emit(ctx, ev)
		return nil
	}
	delete(r.handles, id)
	r.mu.Unlock()

	err := r.store.Delete(ctx, id)
	r.emit(ctx, Event{Type: EventRevoked, Ref: r.URL(id), MIMEType: h.mimeType, Size: h.size})
	if err != nil {
		return fmt.Errorf("delete blob: %w", err)
	}
	return nil
}

// lockID acquires the per-id lock and returns its release function.
func (r *Registry) lockID(id string) func() {
	r.mu.Lock()
	l, ok := r.locks[id]
	if !ok {
		l = &idLock{}
		r.locks[id] = l
	}
	l.refs++
	r.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		r.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(r.locks, id)
		}
		r.mu.Unlock()
	}
}

// Lookup returns the object behind ref (a handle or bare id).
func (r *Registry) Lookup(ctx context.Context, ref string) (*Object, error) {
	id, ok := r.ID(ref)
	if !ok {
		return nil, ErrNotFound
	}
	return r.store.Get(ctx, id)
}

// Live returns the number of handles this registry has created and not yet
// fully revoked.
func (r *Registry) Live() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}

// Holders returns the reference count of ref, zero when unknown.
func (r *Registry) Holders(ref string) int {
	id, ok := r.ID(ref)
	if !ok {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.handles[id]; ok {
		return h.holders
	}
	return 0
}

func (r *Registry) emit(ctx context.Context, ev Event) {
	logger.BlobEvent(ctx, string(ev.Type), ev.Ref, ev.MIMEType, ev.Size, "holders", ev.Holders)
	for _, l := range r.listeners {
		l(ev)
	}
}

func handleID(mimeType string, data []byte) string {
	name := make([]byte, 0, len(mimeType)+1+len(data))
	name = append(name, mimeType...)
	name = append(name, 0)
	name = append(name, data...)
	return uuid.NewSHA1(handleNamespace, name).String()
}

// IsLocalRef reports whether s is a "blob:" handle.
func IsLocalRef(s string) bool {
	return HasScheme(s, SchemeBlob)
}
