package exit

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// HandlerRegistry holds the registered exit handlers.
type HandlerRegistry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{
		handlers: make(map[string]Handler),
	}
}

// Register adds h, replacing any handler with the same ID.
func (r *HandlerRegistry) Register(h Handler) {
	if r == nil || h == nil {
		return
	}
	id := strings.TrimSpace(h.ID())
	if id == "" {
		panic("exit handler registration failed: empty ID")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[id] = h
}

func (r *HandlerRegistry) Handler(id string) (Handler, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[strings.TrimSpace(id)]
	return h, ok
}

func (r *HandlerRegistry) MustHandler(id string) Handler {
	if h, ok := r.Handler(id); ok {
		return h
	}
	panic(fmt.Sprintf("exit handler not registered: %s", id))
}

// Handlers returns the registered handlers sorted by ID.
func (r *HandlerRegistry) Handlers() []Handler {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]Handler, 0, len(r.handlers))
	for _, h := range r.handlers {
		list = append(list, h)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID() < list[j].ID() })
	return list
}

// Validate checks one rule spec against its handler.
func (r *HandlerRegistry) Validate(spec RuleSpec) error {
	h, ok := r.Handler(spec.Handler)
	if !ok {
		return fmt.Errorf("unknown exit handler: %s", spec.Handler)
	}
	if err := h.Validate(spec.Params); err != nil {
		return fmt.Errorf("%s: %w", h.ID(), err)
	}
	return nil
}

// BuildChain validates and instantiates specs in order.
func (r *HandlerRegistry) BuildChain(specs []RuleSpec) (*Chain, error) {
	rules := make([]Rule, 0, len(specs))
	for _, spec := range specs {
		if err := r.Validate(spec); err != nil {
			return nil, err
		}
		rule, err := r.MustHandler(spec.Handler).Build(spec.Params)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", spec.Handler, err)
		}
		rules = append(rules, rule)
	}
	return NewChain(rules...), nil
}
