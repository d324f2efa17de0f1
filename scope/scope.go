// Package scope provides the explicit session object that owns checkout
// components for the lifetime of one user session.
//
// A Scope is created when a session starts (create-on-mount) and closed when
// it ends (dispose-on-unmount). Components are registered under a Key and
// retrieved with typed helpers. Nothing is package-global: whoever needs a
// component is handed the Scope.
//
// Notes on performance:
//   - The success path is a map access under a read lock.
//   - Error paths avoid fmt.Errorf so TryGet misses stay cheap.
package scope

import (
	"errors"
	"io"
	"reflect"
	"strconv"
	"sync"
)

var (
	// ErrNilScope is returned when a helper is called with a nil *Scope.
	ErrNilScope = errors.New("scope: nil scope")

	// ErrClosed is returned when registering into a closed Scope.
	ErrClosed = errors.New("scope: closed")
)

// Key identifies a component stored in a Scope.
//
// Keys are typically declared next to the component they name:
//
//	const ScopeKey scope.Key = "instruments.cache"
type Key string

// DuplicateKeyError is returned when a key is registered twice.
type DuplicateKeyError struct{ Key Key }

// Error implements the error interface.
func (e DuplicateKeyError) Error() string {
	// Example: scope: duplicate key "instruments.cache"
	return "scope: duplicate key " + strconv.Quote(string(e.Key))
}

// MissingError is returned when a key is not present.
type MissingError struct{ Key Key }

// Error implements the error interface.
func (e MissingError) Error() string {
	// Example: scope: "instruments.cache" missing
	return "scope: " + strconv.Quote(string(e.Key)) + " missing"
}

// WrongTypeError is returned when a key holds a different type than requested.
type WrongTypeError struct {
	Key Key

	// GotType is reflect.TypeOf(raw).String() for the stored value.
	GotType string
}

// Error implements the error interface.
func (e WrongTypeError) Error() string {
	// Example: scope: "instruments.cache" has wrong type (*push.Hub)
	return "scope: " + strconv.Quote(string(e.Key)) + " has wrong type (" + e.GotType + ")"
}

// NilComponentError is returned when a nil component is registered.
type NilComponentError struct{ Key Key }

// Error implements the error interface.
func (e NilComponentError) Error() string {
	// Example: scope: nil component for key "instruments.cache"
	return "scope: nil component for key " + strconv.Quote(string(e.Key))
}

// Scope holds the components of one session.
type Scope struct {
	mu     sync.RWMutex
	items  map[Key]any
	order  []Key
	closed bool
}

// New returns an open, empty Scope.
func New() *Scope {
	return &Scope{items: make(map[Key]any)}
}

// Provide registers v under key.
//
// It fails if the scope is nil or closed (ErrNilScope, ErrClosed), v is nil
// (NilComponentError) or key is taken (DuplicateKeyError).
func Provide[T any](s *Scope, key Key, v *T) error {
	if s == nil {
		return ErrNilScope
	}
	if v == nil {
		return NilComponentError{Key: key}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if _, exists := s.items[key]; exists {
		return DuplicateKeyError{Key: key}
	}
	s.items[key] = v
	s.order = append(s.order, key)
	return nil
}

// Has reports whether key is registered (regardless of type).
func (s *Scope) Has(key Key) bool {
	if s == nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.items[key]
	return ok
}

// Len returns the number of registered components.
func (s *Scope) Len() int {
	if s == nil {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Get returns the component typed as *T.
//
// ok is false if the key is missing or holds another type.
func Get[T any](s *Scope, key Key) (*T, bool) {
	v, err := TryGet[T](s, key)
	return v, err == nil
}

// TryGet returns the component typed as *T, or MissingError / WrongTypeError.
func TryGet[T any](s *Scope, key Key) (*T, error) {
	if s == nil {
		return nil, MissingError{Key: key}
	}
	s.mu.RLock()
	raw, ok := s.items[key]
	s.mu.RUnlock()
	if !ok || raw == nil {
		return nil, MissingError{Key: key}
	}
	v, ok := raw.(*T)
	if !ok {
		return nil, WrongTypeError{Key: key, GotType: reflect.TypeOf(raw).String()}
	}
	return v, nil
}

// MustGet returns the component typed as *T or panics.
func MustGet[T any](s *Scope, key Key) *T {
	v, err := TryGet[T](s, key)
	if err != nil {
		panic(err)
	}
	return v
}

// Closed reports whether Close has been called.
func (s *Scope) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Close disposes every component implementing io.Closer in reverse
// registration order and empties the scope. Errors are joined. Calling Close
// again is a no-op.
func (s *Scope) Close() error {
	if s == nil {
		return nil
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	order, items := s.order, s.items
	s.order, s.items = nil, make(map[Key]any)
	s.mu.Unlock()

	var errs []error
	for i := len(order) - 1; i >= 0; i-- {
		if c, ok := items[order[i]].(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
