// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadConfig_FromFile(t *testing.T) {
	path := writeConfig(t, `
api:
  port: 9000
  host: "127.0.0.1"
log:
  level: "debug"
agent:
  max_iterations: 4
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.API.Port)
	assert.Equal(t, "127.0.0.1", cfg.API.Host)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 4, cfg.Agent.MaxIterations)
	// untouched sections keep defaults
	assert.Equal(t, 3, cfg.Agent.MaxParseErrors)
	assert.Equal(t, 1000, cfg.Storage.Ingest.ChunkSize)
	assert.Equal(t, 200, cfg.Storage.Ingest.ChunkOverlap)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "gsk-test")
	t.Setenv("SERPAPI_API_KEY", "serp-test")
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	ref, err := cfg.LLMModel()
	require.NoError(t, err)
	assert.Equal(t, "groq", ref.Provider)
	assert.Equal(t, "openai", ref.Type)
	assert.Equal(t, "gsk-test", ref.APIKey)
	assert.Equal(t, "llama-3.1-8b-instant", ref.Info.Name)
	assert.InDelta(t, 0.3, ref.Info.Temperature, 1e-9)

	assert.Equal(t, "serp-test", cfg.Search.APIKey)
	assert.Equal(t, "google_scholar", cfg.Search.Engine)
	assert.Equal(t, 3, cfg.Search.Num)
	assert.Equal(t, 10, cfg.Agent.MaxIterations)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_LegacyEnv(t *testing.T) {
	t.Setenv("FAISS_INDEX_DIR", "/tmp/idx")
	t.Setenv("EMBEDDING_MODEL", "bge-small")
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/idx", cfg.Storage.Vector.IndexDir)

	ref, err := cfg.EmbeddingModel()
	require.NoError(t, err)
	assert.Equal(t, "bge-small", ref.Info.Name)
	assert.Equal(t, 384, ref.Info.Dimension)
}

func TestValidate_MissingCredentials(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "")
	t.Setenv("SERPAPI_API_KEY", "")
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingCredential))
	assert.Contains(t, err.Error(), "groq")
	assert.Contains(t, err.Error(), "SERPAPI_API_KEY")
}

func TestValidate_BadValues(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "k")
	t.Setenv("SERPAPI_API_KEY", "k")
	path := writeConfig(t, `
agent:
  max_iterations: 0
storage:
  vector:
    type: faiss
  ingest:
    chunk_size: 100
    chunk_overlap: 100
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_iterations")
	assert.Contains(t, err.Error(), "faiss")
	assert.Contains(t, err.Error(), "chunk_overlap")
	assert.False(t, errors.Is(err, ErrMissingCredential))
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("RA_TEST_VAR", "value")
	assert.Equal(t, "value", ExpandEnv("${RA_TEST_VAR}"))
	assert.Equal(t, "x-value-y", ExpandEnv("x-${RA_TEST_VAR}-y"))
	assert.Equal(t, "fallback", ExpandEnv("${RA_TEST_UNSET:-fallback}"))
	assert.Equal(t, "", ExpandEnv("${RA_TEST_UNSET}"))
	assert.Equal(t, "plain", ExpandEnv("plain"))
}

func TestSetLLMAPIKey(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "")
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	cfg.SetLLMAPIKey("from-vault")
	ref, err := cfg.LLMModel()
	require.NoError(t, err)
	assert.Equal(t, "from-vault", ref.APIKey)
}

func TestParseDuration(t *testing.T) {
	assert.Equal(t, 5*time.Second, ParseDuration("5s", time.Minute))
	assert.Equal(t, time.Minute, ParseDuration("", time.Minute))
	assert.Equal(t, time.Minute, ParseDuration("bogus", time.Minute))
}

func TestValidate_LocalLLMStillNeedsKey(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "")
	t.Setenv("SERPAPI_API_KEY", "k")
	path := writeConfig(t, `
model:
  llm:
    providers:
      groq:
        type: local
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	err = cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingCredential))
	assert.Contains(t, err.Error(), "groq")
}

func TestValidateIngest_IgnoresQueryCredentials(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "")
	t.Setenv("SERPAPI_API_KEY", "")
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Error(t, cfg.Validate())
	assert.NoError(t, cfg.ValidateIngest())

	cfg.Storage.Ingest.ChunkOverlap = cfg.Storage.Ingest.ChunkSize
	err = cfg.ValidateIngest()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chunk_overlap")
}

func TestLLMModel_Timeout(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "k")
	cfg, err := LoadConfig(writeConfig(t, `
model:
  llm:
    providers:
      groq:
        timeout: "15s"
`))
	require.NoError(t, err)
	ref, err := cfg.LLMModel()
	require.NoError(t, err)
	assert.Equal(t, 15*time.Second, ref.Timeout)

	cfg.Model.LLM.Providers["groq"] = ProviderConfig{
		Type:   "openai",
		Models: cfg.Model.LLM.Providers["groq"].Models,
	}
	ref, err = cfg.LLMModel()
	require.NoError(t, err)
	assert.Zero(t, ref.Timeout)
}
