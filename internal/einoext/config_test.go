package einoext

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"research-agent/pkg/config"
)

func TestRedisOptionsFromVectorConfig(t *testing.T) {
	opts, err := RedisOptionsFromVectorConfig(config.VectorConfig{})
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", opts.Addr)
	assert.Equal(t, 0, opts.DB)
	assert.Equal(t, 2, opts.Protocol)
	assert.True(t, opts.UnstableResp3)

	opts, err = RedisOptionsFromVectorConfig(config.VectorConfig{Addr: "redis:6380", DB: "3", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "redis:6380", opts.Addr)
	assert.Equal(t, 3, opts.DB)
	assert.Equal(t, "pw", opts.Password)

	_, err = RedisOptionsFromVectorConfig(config.VectorConfig{DB: "x"})
	assert.Error(t, err)
}

func TestNaming(t *testing.T) {
	assert.Equal(t, "research", collectionName(config.VectorConfig{}))
	assert.Equal(t, "papers", collectionName(config.VectorConfig{Collection: "papers"}))
	assert.Equal(t, "papers:active", activeKey("papers"))
	assert.Equal(t, "papers:g42", generationName("papers", 42))
	assert.Equal(t, "papers:g42:", keyPrefix("papers:g42"))
	assert.Equal(t, "p:", keyPrefix("p:"))
}
