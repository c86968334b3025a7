// Package registry records which trained model serves which data domain.
package registry

import (
	"context"
	"slices"
	"time"
)

// Entry describes the model trained for one domain.
type Entry struct {
	DomainName           string    `json:"domain_name"`
	ModelLocation        string    `json:"model_location"`
	PreprocessorLocation string    `json:"preprocessor_location,omitempty"`
	TrainingColumns      []string  `json:"training_columns"`
	TargetColumn         string    `json:"target_column,omitempty"`
	FeatureCount         int       `json:"feature_count"`
	SampleCount          int       `json:"sample_count"`
	CreatedAt            time.Time `json:"created_at"`
}

// Document is the whole registry, keyed by domain name.
type Document struct {
	Models map[string]Entry `json:"models"`
}

// NewDocument returns an empty registry.
func NewDocument() *Document {
	return &Document{Models: map[string]Entry{}}
}

// Names returns the registered domain names in sorted order.
func (d *Document) Names() []string {
	names := make([]string, 0, len(d.Models))
	for n := range d.Models {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Get returns the entry for domain.
func (d *Document) Get(domain string) (Entry, bool) {
	e, ok := d.Models[domain]
	return e, ok
}

// Upsert adds or replaces the entry for e.DomainName.
func (d *Document) Upsert(e Entry) {
	if d.Models == nil {
		d.Models = map[string]Entry{}
	}
	d.Models[e.DomainName] = e
}

// Store loads and saves the whole registry document. Writers to one store are
// assumed to be serialized by the caller.
type Store interface {
	Load(ctx context.Context) (*Document, error)
	Save(ctx context.Context, doc *Document) error
}
