package mongo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromMap(t *testing.T) {
	cfg, err := FromMap(map[string]any{
		"uri":             "mongodb://127.0.0.1:27017/",
		"connect_timeout": 3 * time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, "mongodb://127.0.0.1:27017/", cfg.URI)
	assert.Equal(t, DefaultDatabase, cfg.Database)
	assert.Equal(t, 3*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, int32(1000), cfg.CursorBatchSize)
}

func TestFromMap_RequiresURI(t *testing.T) {
	_, err := FromMap(map[string]any{"database": "films"})
	assert.EqualError(t, err, "uri is required")
}
