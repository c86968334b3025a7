package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationFailedError(t *testing.T) {
	err := &ValidationFailedError{
		Message: "2 of 3 dataset(s) failed pre-flight checks",
	}

	assert.Equal(t, "2 of 3 dataset(s) failed pre-flight checks", err.Error())
}

func TestErrorTypeDetection(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		validation bool
	}{
		{
			name:       "ValidationFailedError",
			err:        &ValidationFailedError{Message: "dataset failed validation with 1 error(s)"},
			validation: true,
		},
		{
			name:       "regular error",
			err:        errors.New("config error"),
			validation: false,
		},
		{
			name:       "wrapped ValidationFailedError",
			err:        fmt.Errorf("smart run: %w", &ValidationFailedError{Message: "bad data"}),
			validation: true,
		},
		{
			name:       "joined ValidationFailedError",
			err:        errors.Join(&ValidationFailedError{Message: "bad data"}, errors.New("additional context")),
			validation: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var validationErr *ValidationFailedError
			assert.Equal(t, tt.validation, errors.As(tt.err, &validationErr))
		})
	}
}
