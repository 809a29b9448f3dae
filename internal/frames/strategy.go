package frames

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

// Strategy decodes uploaded payloads into textures.
type Strategy interface {
	Kind() Kind
	Initialize(ctx *ApplyContext) error
	// TryHandleUpload takes ownership of a copy of payload. It returns
	// false when the payload was refused outright.
	TryHandleUpload(payload []byte) bool
	// Pending reports queued payloads not yet processed.
	Pending() int
	Dispose()
}

// Options configures strategy construction.
type Options struct {
	MaxPending int
	// WorkerDecoder backs the async strategy. Nil selects the synchronous
	// fallback.
	WorkerDecoder DecoderFactory
}

func (o Options) maxPending() int {
	if o.MaxPending < 1 {
		return DefaultMaxPending
	}
	return o.MaxPending
}

func NewStrategy(kind Kind, opts Options) (Strategy, error) {
	switch kind {
	case KindSimple:
		return NewSimpleStrategy(opts.maxPending()), nil
	case KindRaw:
		return NewRawStrategy(opts.maxPending()), nil
	case KindASTC:
		return NewASTCStrategy(opts.maxPending()), nil
	case KindAsync:
		return NewAsyncStrategy(opts.maxPending(), opts.WorkerDecoder), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// Registry holds one initialized strategy per kind and picks one per
// upload by Content-Type.
type Registry struct {
	def        Kind
	strategies map[Kind]Strategy
}

func NewRegistry(ctx *ApplyContext, def Kind, opts Options) (*Registry, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if _, err := ParseKind(string(def)); err != nil {
		return nil, err
	}
	r := &Registry{def: def, strategies: make(map[Kind]Strategy, len(allKinds))}
	for _, kind := range allKinds {
		s, err := NewStrategy(kind, opts)
		if err != nil {
			r.Dispose()
			return nil, err
		}
		if err := s.Initialize(ctx); err != nil {
			r.Dispose()
			return nil, fmt.Errorf("frames: initialize %s: %w", kind, err)
		}
		r.strategies[kind] = s
	}
	log.Info().Str("default", def.String()).Int("max_pending", opts.maxPending()).Msg("decode strategies ready")
	return r, nil
}

func (r *Registry) Default() Kind {
	return r.def
}

func (r *Registry) Get(kind Kind) (Strategy, bool) {
	s, ok := r.strategies[kind]
	return s, ok
}

// ForContentType returns the strategy for an upload Content-Type.
func (r *Registry) ForContentType(contentType string) Strategy {
	kind := KindForContentType(strings.TrimSpace(contentType), r.def)
	if s, ok := r.strategies[kind]; ok {
		return s
	}
	return r.strategies[r.def]
}

// Pending sums queued payloads across strategies.
func (r *Registry) Pending() map[string]int {
	out := make(map[string]int, len(r.strategies))
	for kind, s := range r.strategies {
		out[kind.String()] = s.Pending()
	}
	return out
}

func (r *Registry) Dispose() {
	for _, s := range r.strategies {
		s.Dispose()
	}
}
