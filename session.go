package stallone

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// IntWidth selects the Go element type produced for foreign integer arrays.
// The wrapped library does not declare a fixed width, so the choice is made
// by configuration rather than by the host architecture.
type IntWidth int

const (
	IntWidth32 IntWidth = 32
	IntWidth64 IntWidth = 64
)

// DefaultIntWidth is used when no width is configured.
const DefaultIntWidth = IntWidth64

// DType returns the array element type for the width.
func (w IntWidth) DType() DType {
	if w == IntWidth32 {
		return Int32
	}
	return Int64
}

// normalize maps zero to DefaultIntWidth and rejects anything but 32 and 64.
func (w IntWidth) normalize() (IntWidth, error) {
	switch w {
	case 0:
		return DefaultIntWidth, nil
	case IntWidth32, IntWidth64:
		return w, nil
	}
	return 0, newError(PhaseBootstrap, KindInvalidInput, "integer width must be 32 or 64, got %d", int(w))
}

// Session holds the live handles into a foreign object space: the namespace
// root and the API root. Every marshaling operation is a Session method.
//
// Marshaling calls may run from several goroutines once the session exists,
// as far as the underlying space allows; RemoteSpace and stallonetest.Space
// both do.
type Session struct {
	space     ObjectSpace
	namespace *ForeignObject
	api       *ForeignObject
	intWidth  IntWidth

	archive string
	args    []string

	mu        sync.Mutex
	factories map[string]*ForeignObject
}

// NewSession resolves the namespace and API roots in space and checks the
// API root's identity. The space is not closed on failure.
//
// A wrong identity, or roots the space reports as missing, is
// KindIdentityMismatch. If the space cannot be reached at all the runtime
// did not start and the error is KindRuntimeStart.
func NewSession(ctx context.Context, space ObjectSpace, intWidth IntWidth) (*Session, error) {
	intWidth, err := intWidth.normalize()
	if err != nil {
		return nil, err
	}

	ns, err := space.Resolve(ctx, NamespaceRoot)
	if err != nil {
		return nil, handshakeError(err, "resolve %s", NamespaceRoot)
	}
	api, err := space.Resolve(ctx, APIClass)
	if err != nil {
		return nil, handshakeError(err, "resolve %s", APIClass)
	}
	identity, err := space.ClassOf(ctx, api)
	if err != nil {
		return nil, handshakeError(err, "identify %s", APIClass)
	}
	if identity != APIIdentity {
		Logger().Error("stallone package initialization corrupted",
			zap.String("want", APIIdentity), zap.String("got", identity))
		return nil, newError(PhaseBootstrap, KindIdentityMismatch,
			"API root is %q, want %q; check the archive and class path", identity, APIIdentity)
	}

	return &Session{
		space:     space,
		namespace: &ForeignObject{Ref: ns, space: space},
		api:       &ForeignObject{Ref: api, space: space},
		intWidth:  intWidth,
		factories: make(map[string]*ForeignObject),
	}, nil
}

// handshakeError classifies a failed identity lookup. A lost or closed
// transport means the runtime never came up and is KindRuntimeStart; an
// answer from the runtime that the roots are missing is KindIdentityMismatch.
func handshakeError(err error, format string, args ...any) error {
	kind := KindIdentityMismatch
	if errors.Is(err, ErrTransport) {
		kind = KindRuntimeStart
	}
	return wrapError(PhaseBootstrap, kind, err, format, args...)
}

// Namespace returns the namespace root (the stallone package).
func (s *Session) Namespace() *ForeignObject {
	return s.namespace
}

// API returns the API root, the static factory entry point of the library.
func (s *Session) API() *ForeignObject {
	return s.api
}

// Space returns the session's object space.
func (s *Session) Space() ObjectSpace {
	return s.space
}

// IntWidth returns the width used for foreign integer arrays.
func (s *Session) IntWidth() IntWidth {
	return s.intWidth
}

// Archive returns the path of the archive placed on the class path.
// It is empty for sessions created with NewSession.
func (s *Session) Archive() string {
	return s.archive
}

// Args returns the JVM arguments the runtime was started with.
func (s *Session) Args() []string {
	out := make([]string, len(s.args))
	copy(out, s.args)
	return out
}

// Class resolves a class by its fully qualified name.
func (s *Session) Class(ctx context.Context, name string) (*ForeignObject, error) {
	ref, err := s.space.Resolve(ctx, name)
	if err != nil {
		return nil, err
	}
	return &ForeignObject{Ref: ref, space: s.space}, nil
}

// Object adopts a reference returned by the space.
func (s *Session) Object(ref Ref) *ForeignObject {
	return &ForeignObject{Ref: ref, space: s.space}
}

// WrapArray adopts a reference to a Stallone array returned by some other
// call. The element kind is checked when the array is converted.
func (s *Session) WrapArray(ref Ref) *ForeignArray {
	return &ForeignArray{ForeignObject: ForeignObject{Ref: ref, space: s.space}}
}

// Close shuts down the object space.
func (s *Session) Close() error {
	return s.space.Close()
}

// factory returns API.<field>, caching the handle.
func (s *Session) factory(ctx context.Context, field string) (*ForeignObject, error) {
	s.mu.Lock()
	f, ok := s.factories[field]
	s.mu.Unlock()
	if ok {
		return f, nil
	}

	f, err := s.api.Object(ctx, field)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.factories[field] = f
	s.mu.Unlock()
	return f, nil
}
