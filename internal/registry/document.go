package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spboyer/churnkit/internal/artifact"
	"github.com/spboyer/churnkit/internal/validation"
)

// DefaultKey is where DocumentStore keeps the registry.
const DefaultKey = "model_registry.json"

// DocumentStore keeps the registry as one JSON document in an artifact store.
type DocumentStore struct {
	store artifact.Store
	key   string
}

// NewDocumentStore returns a DocumentStore at DefaultKey.
func NewDocumentStore(store artifact.Store) *DocumentStore {
	return &DocumentStore{store: store, key: DefaultKey}
}

// Load reads and validates the registry. A missing document is an empty
// registry.
func (s *DocumentStore) Load(ctx context.Context) (*Document, error) {
	data, err := s.store.Get(ctx, s.key)
	if errors.Is(err, artifact.ErrNotFound) {
		return NewDocument(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading registry: %w", err)
	}
	if errs := validation.ValidateRegistryBytes(data); len(errs) > 0 {
		return nil, fmt.Errorf("invalid registry %s: %s", s.key, strings.Join(errs, "; "))
	}
	doc := NewDocument()
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("decoding registry: %w", err)
	}
	if doc.Models == nil {
		doc.Models = map[string]Entry{}
	}
	return doc, nil
}

// Save writes the whole registry.
func (s *DocumentStore) Save(ctx context.Context, doc *Document) error {
	if doc == nil {
		doc = NewDocument()
	}
	if doc.Models == nil {
		doc.Models = map[string]Entry{}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding registry: %w", err)
	}
	if err := s.store.Put(ctx, s.key, data); err != nil {
		return fmt.Errorf("writing registry: %w", err)
	}
	return nil
}
