package kinds

import (
	"fmt"
	"slices"

	"github.com/cascadehq/cascade/pkg/models"
)

// Registry resolves kind tags to their capability implementations.
type Registry struct {
	kinds map[models.NodeKind]Kind
}

// NewRegistry builds a registry with every built-in kind registered.
func NewRegistry() *Registry {
	r := &Registry{kinds: make(map[models.NodeKind]Kind)}

	r.register(dataFrameKind{})
	r.register(figureKind{})
	r.register(callableKind{})
	r.register(objectKind{})

	return r
}

func (r *Registry) register(k Kind) {
	r.kinds[k.Tag()] = k
}

// Resolve returns the Kind for a tag. An empty tag resolves to the generic
// object kind; an unknown tag is an error.
func (r *Registry) Resolve(tag models.NodeKind) (Kind, error) {
	if tag == "" {
		tag = models.KindObject
	}

	kind, ok := r.kinds[tag]
	if !ok {
		return nil, fmt.Errorf("node kind %q not registered", tag)
	}

	return kind, nil
}

// Tags returns every registered kind tag, sorted.
func (r *Registry) Tags() []models.NodeKind {
	tags := make([]models.NodeKind, 0, len(r.kinds))
	for tag := range r.kinds {
		tags = append(tags, tag)
	}

	slices.Sort(tags)

	return tags
}
