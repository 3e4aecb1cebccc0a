package dto

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraversalRequest_Validate(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		req := &TraversalRequest{GraphID: "g", Steps: []string{"V", "out"}}
		require.NoError(t, req.Validate())
		assert.Equal(t, 100, req.Config.MaxSupersteps)
	})

	t.Run("keeps explicit bound", func(t *testing.T) {
		req := &TraversalRequest{GraphID: "g", Steps: []string{"V"}, Config: ComputationConfig{MaxSupersteps: 7}}
		require.NoError(t, req.Validate())
		assert.Equal(t, 7, req.Config.MaxSupersteps)
	})

	tests := []struct {
		name string
		req  TraversalRequest
		want error
	}{
		{"missing graph", TraversalRequest{Steps: []string{"V"}}, ErrMissingGraphID},
		{"missing steps", TraversalRequest{GraphID: "g"}, ErrMissingSteps},
		{"negative timeout", TraversalRequest{GraphID: "g", Steps: []string{"V"},
			Config: ComputationConfig{Timeout: -time.Second}}, ErrInvalidConfig},
		{"negative retries", TraversalRequest{GraphID: "g", Steps: []string{"V"},
			Config: ComputationConfig{MaxRetries: -1}}, ErrInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.req.Validate(), tt.want)
		})
	}
}
