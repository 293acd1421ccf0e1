package knowledge

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/brightclass/knowledged/internal/logging"
)

func TestConfigApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	assert.Equal(t, 20, cfg.BatchSize)
	assert.Equal(t, 5, cfg.SearchLimit)
	assert.Equal(t, uint32(256), cfg.ScrollPageSize)
	assert.Equal(t, 10000, cfg.ScrollMaxPoints)
	assert.Equal(t, 100, cfg.DeleteBatchSize)
	assert.Equal(t, 200, cfg.PreviewLength)
	assert.NoError(t, cfg.Validate())
}

func TestNewServiceRequiresCollaborators(t *testing.T) {
	_, err := NewService(Config{}, nil, &fakeEmbedder{dims: 4}, logging.NewNop())
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
