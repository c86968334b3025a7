package model

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/spboyer/churnkit/internal/artifact"
	"github.com/spboyer/churnkit/internal/classifier"
	"github.com/spboyer/churnkit/internal/mapper"
	"github.com/spboyer/churnkit/internal/preprocess"
	"github.com/spboyer/churnkit/internal/signals"
)

// ArtifactVersion is the current artifact layout version.
const ArtifactVersion = 1

// ArtifactExt is the file extension of saved pipelines.
const ArtifactExt = ".churnkit"

// Artifact is the persisted form of a trained pipeline. It is stored as
// zstd-compressed JSON under one key so the preprocessor and the classifier
// cannot drift apart.
type Artifact struct {
	Version         int                   `json:"version"`
	RunID           string                `json:"run_id"`
	Family          classifier.Family     `json:"family"`
	Hyperparameters map[string]any        `json:"hyperparameters"`
	Mapping         *mapper.MappingResult `json:"mapping"`
	Preprocessor    preprocess.State      `json:"preprocessor"`
	Classifier      json.RawMessage       `json:"classifier"`
	Thresholds      *signals.Thresholds   `json:"thresholds"`
	Metrics         *TrainingResult       `json:"metrics"`
	CreatedAt       time.Time             `json:"created_at"`
}

// Artifact snapshots the trained pipeline.
func (p *Pipeline) Artifact() (*Artifact, error) {
	if !p.Trained() {
		return nil, ErrNotTrained
	}
	state, err := p.clf.MarshalState()
	if err != nil {
		return nil, fmt.Errorf("encoding classifier: %w", err)
	}
	return &Artifact{
		Version:         ArtifactVersion,
		RunID:           p.runID,
		Family:          p.family,
		Hyperparameters: p.clf.Params(),
		Mapping:         p.mapping,
		Preprocessor:    p.prep.State(),
		Classifier:      state,
		Thresholds:      p.thresholds,
		Metrics:         p.result,
		CreatedAt:       p.createdAt,
	}, nil
}

// Save writes the pipeline to store under key.
func (p *Pipeline) Save(ctx context.Context, store artifact.Store, key string) error {
	a, err := p.Artifact()
	if err != nil {
		return err
	}
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encoding artifact: %w", err)
	}
	packed, err := artifact.Compress(data)
	if err != nil {
		return err
	}
	if err := store.Put(ctx, key, packed); err != nil {
		return fmt.Errorf("saving model %s: %w", key, err)
	}
	slog.Debug("model saved", "key", key, "bytes", len(packed), "run_id", p.runID)
	return nil
}

// Load reads a pipeline saved with Save. opts configure the mapper used by
// later Train calls.
func Load(ctx context.Context, store artifact.Store, key string, opts ...Option) (*Pipeline, error) {
	packed, err := store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("loading model %s: %w", key, err)
	}
	data, err := artifact.Decompress(packed)
	if err != nil {
		return nil, fmt.Errorf("loading model %s: %w", key, err)
	}
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decoding model %s: %w", key, err)
	}
	return FromArtifact(&a, opts...)
}

// FromArtifact rebuilds a trained pipeline from its persisted form.
func FromArtifact(a *Artifact, opts ...Option) (*Pipeline, error) {
	if a.Version != ArtifactVersion {
		return nil, fmt.Errorf("unsupported artifact version %d (want %d)", a.Version, ArtifactVersion)
	}
	clf, err := classifier.Restore(a.Family, a.Classifier)
	if err != nil {
		return nil, err
	}
	prep, err := preprocess.FromState(a.Preprocessor)
	if err != nil {
		return nil, fmt.Errorf("restoring preprocessor: %w", err)
	}
	if n := len(prep.FeatureNames()); n != clf.NumFeatures() {
		return nil, fmt.Errorf("artifact mismatch: preprocessor emits %d features, classifier expects %d", n, clf.NumFeatures())
	}
	if a.Thresholds == nil {
		return nil, fmt.Errorf("artifact has no signal thresholds")
	}

	p, err := New(a.Family, append([]Option{WithHyperparameters(a.Hyperparameters)}, opts...)...)
	if err != nil {
		return nil, err
	}
	p.clf = clf
	p.prep = prep
	p.mapping = a.Mapping
	p.thresholds = a.Thresholds
	p.result = a.Metrics
	p.runID = a.RunID
	p.createdAt = a.CreatedAt
	return p, nil
}

// CreatedAt is when the pipeline was trained.
func (p *Pipeline) CreatedAt() time.Time { return p.createdAt }
