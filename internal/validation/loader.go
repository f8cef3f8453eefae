package validation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/coalops/minesafe/pkg/repository"
	"github.com/qri-io/jsonschema"
)

// fallbackType is the event_schemas row applied to any event type without a
// schema of its own.
const fallbackType = "*"

// Loader loads and caches compiled JSON schemas from the repository. Ingestion
// validates request payloads against the schema registered for the event type,
// falling back to the '*' envelope schema.
type Loader struct {
	repo  repository.SchemaRepo
	mu    sync.RWMutex
	cache map[string]*jsonschema.Schema
}

func NewLoader(ctx context.Context, r repository.SchemaRepo) (*Loader, error) {
	l := &Loader{
		repo:  r,
		cache: make(map[string]*jsonschema.Schema),
	}
	// initial load
	if err := l.Reload(ctx); err != nil {
		return nil, err
	}

	return l, nil
}

// SchemaFor returns the compiled schema for an event type, or the fallback
// envelope schema when no type-specific one is registered.
func (l *Loader) SchemaFor(eventType string) (*jsonschema.Schema, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if s, ok := l.cache[eventType]; ok {
		return s, true
	}
	s, ok := l.cache[fallbackType]
	return s, ok
}

// Validate checks payload against the schema for eventType. A missing schema
// is not an error; the vocabulary check at ingestion is the gate that matters.
func (l *Loader) Validate(ctx context.Context, eventType string, payload []byte) error {
	s, ok := l.SchemaFor(eventType)
	if !ok {
		return nil
	}

	errs, err := s.ValidateBytes(ctx, payload)
	if err != nil {
		return fmt.Errorf("validate payload: %w", err)
	}
	if len(errs) > 0 {
		msgs := make([]string, 0, len(errs))
		for _, e := range errs {
			msgs = append(msgs, e.Error())
		}
		return fmt.Errorf("invalid payload: %s", strings.Join(msgs, "; "))
	}
	return nil
}

// Reload loads all schemas from the DB and compiles them.
func (l *Loader) Reload(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	rows, err := l.repo.ListEventSchemas(ctx)
	if err != nil {
		return fmt.Errorf("load schemas: %w", err)
	}

	newCache := make(map[string]*jsonschema.Schema)
	for _, r := range rows {
		rs := &jsonschema.Schema{}
		if err := json.Unmarshal([]byte(r.SchemaJSON), rs); err != nil {
			return fmt.Errorf("compile schema %s: %w", r.EventType, err)
		}

		newCache[r.EventType] = rs
	}

	l.cache = newCache
	return nil
}
