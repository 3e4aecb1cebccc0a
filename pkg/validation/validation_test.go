package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	ID      string `yaml:"id" validate:"required,element_id"`
	Key     string `yaml:"key" validate:"omitempty,key_name"`
	Workers int    `yaml:"workers" validate:"gte=0"`
}

func TestValidateStruct(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		require.NoError(t, ValidateStruct(sample{ID: "v-1", Key: "gremlin.pageRank"}))
	})

	t.Run("reports yaml field names", func(t *testing.T) {
		err := ValidateStruct(sample{ID: "bad id", Workers: -1})
		require.Error(t, err)

		var verrs ValidationErrors
		require.ErrorAs(t, err, &verrs)
		require.Len(t, verrs, 2)
		assert.Equal(t, "sample.id", verrs[0].Field)
		assert.Contains(t, verrs[0].Message, "element identifier")
		assert.Equal(t, "sample.workers", verrs[1].Field)
	})

	t.Run("missing required", func(t *testing.T) {
		err := ValidateStruct(sample{})
		assert.ErrorContains(t, err, "field is required")
	})
}

func TestIsKeyName(t *testing.T) {
	assert.True(t, IsKeyName("voteToHalt"))
	assert.True(t, IsKeyName("gremlin.traversalVertexProgram.tracker"))
	assert.False(t, IsKeyName(""))
	assert.False(t, IsKeyName("1abc"))
	assert.False(t, IsKeyName("has space"))
}
