package engine

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/polisai/polis-flow/pkg/domain"
	"github.com/polisai/polis-flow/pkg/engine/runtime"
)

// Factory constructs a node from its declaration. The returned node must carry
// spec.ID as its identity.
type Factory func(spec domain.NodeSpec) (runtime.Node, error)

// KindRegistry stores node factories by canonical kind and alias.
type KindRegistry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	aliases   map[string]string
}

// NewKindRegistry creates an empty registry.
func NewKindRegistry() *KindRegistry {
	return &KindRegistry{
		factories: make(map[string]Factory),
		aliases:   make(map[string]string),
	}
}

func normalizeKind(kind string) string {
	return strings.ToLower(strings.TrimSpace(kind))
}

// Register installs factory under kind and each alias. Registering a kind again
// replaces the previous factory.
func (r *KindRegistry) Register(kind string, factory Factory, aliases ...string) {
	canonical := normalizeKind(kind)
	if canonical == "" || factory == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.factories[canonical] = factory
	for _, alias := range aliases {
		if key := normalizeKind(alias); key != "" && key != canonical {
			r.aliases[key] = canonical
		}
	}
}

func (r *KindRegistry) resolve(raw string) (Factory, string, bool) {
	key := normalizeKind(raw)

	r.mu.RLock()
	defer r.mu.RUnlock()

	if factory, ok := r.factories[key]; ok {
		return factory, key, true
	}
	if canonical, ok := r.aliases[key]; ok {
		factory, ok := r.factories[canonical]
		return factory, canonical, ok
	}
	return nil, "", false
}

// New instantiates the node declared by spec.
func (r *KindRegistry) New(spec domain.NodeSpec) (runtime.Node, error) {
	factory, canonical, ok := r.resolve(spec.Kind)
	if !ok {
		return nil, fmt.Errorf("%w: %q (node %s)", domain.ErrUnknownKind, spec.Kind, spec.ID)
	}
	spec.Kind = canonical

	node, err := factory(spec)
	if err != nil {
		return nil, err
	}
	if spec.ID != "" && node.ID() != spec.ID {
		return nil, fmt.Errorf("%w: factory for %q returned identity %s, want %s",
			domain.ErrConfigInvalid, canonical, node.ID(), spec.ID)
	}
	for _, tag := range []domain.TypeTag{node.InputType(), node.OutputType()} {
		if !tag.Valid() {
			return nil, fmt.Errorf("%w: factory for %q declared unknown type tag %q (node %s)",
				domain.ErrConfigInvalid, canonical, tag, node.ID())
		}
	}
	return node, nil
}

// Kinds lists the canonical kinds in lexical order.
func (r *KindRegistry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.factories))
	for kind := range r.factories {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}
