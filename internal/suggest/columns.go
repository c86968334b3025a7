package suggest

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spboyer/churnkit/internal/mapper"
	"github.com/spboyer/churnkit/internal/template"
	"github.com/spboyer/churnkit/internal/validation"
)

// ColumnSuggester asks a model which role each column plays.
type ColumnSuggester struct {
	client *Client
}

var _ mapper.Suggester = (*ColumnSuggester)(nil)

// NewColumnSuggester returns a suggester over client.
func NewColumnSuggester(client *Client) *ColumnSuggester {
	return &ColumnSuggester{client: client}
}

func (s *ColumnSuggester) SuggestRoles(ctx context.Context, columns []mapper.ColumnInfo) (*mapper.Suggestions, error) {
	if len(columns) == 0 {
		return nil, nil
	}
	summary, err := json.MarshalIndent(columns, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding column summary: %w", err)
	}

	raw, err := s.client.Ask(ctx, KindColumns, columnsPrompt, &template.Context{
		Vars: map[string]string{
			"columns": string(summary),
			"roles":   roleList(),
		},
	})
	if err != nil {
		return nil, err
	}

	var out mapper.Suggestions
	if !decode(KindColumns, raw, validation.ValidateSuggestionsJSON, &out) || len(out.Roles) == 0 {
		return nil, nil
	}
	return &out, nil
}
