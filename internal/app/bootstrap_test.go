package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"research-agent/internal/storage/vector"
	"research-agent/pkg/config"
	"research-agent/pkg/log"
	"research-agent/pkg/secrets"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("GROQ_API_KEY", "gsk-test")
	t.Setenv("SERPAPI_API_KEY", "serp-test")
	cfg, err := config.LoadConfig("")
	require.NoError(t, err)
	cfg.Storage.Vector.IndexDir = t.TempDir()
	cfg.Storage.Ingest.ChunkSize = 200
	cfg.Storage.Ingest.ChunkOverlap = 20
	return cfg
}

func TestNewBootstrap_WiresToolsInOrder(t *testing.T) {
	b, err := NewBootstrapWithLogger(context.Background(), testConfig(t), log.Discard())
	require.NoError(t, err)
	defer b.Close()

	assert.Equal(t, []string{"PDF_Retriever", "Web_Search", "Citation_Generator"}, b.Registry.Names())
	assert.Equal(t, "groq", b.LLM.Provider())
	assert.Equal(t, "llama-3.1-8b-instant", b.LLM.Model())
	assert.Equal(t, 384, b.Embedder.Dimension())
	require.NotNil(t, b.Agent)
	assert.Equal(t, 10, b.Agent.MaxIterations())

	err = b.Registry.RegisterFunc("Late", "too late", nil)
	assert.Error(t, err)
}

func TestNewBootstrap_MissingCredential(t *testing.T) {
	cfg := testConfig(t)
	t.Setenv("GROQ_API_KEY", "")
	cfg.SetLLMAPIKey("")

	_, err := NewBootstrapWithLogger(context.Background(), cfg, log.Discard())
	require.Error(t, err)
	assert.True(t, errors.Is(err, config.ErrMissingCredential))
}

func TestNewBootstrap_ClosesLoggerOnValidationFailure(t *testing.T) {
	cfg := testConfig(t)
	cfg.Search.APIKey = ""
	t.Setenv("SERPAPI_API_KEY", "")

	logger, err := log.NewLogger(&log.Config{File: filepath.Join(t.TempDir(), "app.log")})
	require.NoError(t, err)

	_, err = NewBootstrapWithLogger(context.Background(), cfg, logger)
	require.Error(t, err)
	assert.ErrorIs(t, logger.Close(), os.ErrClosed)
}

func TestNewIngestBootstrap_WithoutQueryCredentials(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "")
	t.Setenv("SERPAPI_API_KEY", "")
	cfg, err := config.LoadConfig(filepath.Join("..", "..", "configs", "api.yaml"))
	require.NoError(t, err)
	cfg.Storage.Vector.IndexDir = t.TempDir()
	cfg.Storage.Vector.Watch = true

	_, err = NewBootstrapWithLogger(context.Background(), cfg, log.Discard())
	require.ErrorIs(t, err, config.ErrMissingCredential)

	ctx := context.Background()
	b, err := NewIngestBootstrapWithLogger(ctx, cfg, log.Discard())
	require.NoError(t, err)
	defer b.Close()
	assert.Nil(t, b.LLM)
	assert.Nil(t, b.Agent)
	assert.Nil(t, b.watcher)

	doc := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(doc, []byte("Transformers replace recurrence with attention."), 0644))
	report, err := b.Pipeline.Ingest(ctx, []string{doc})
	require.NoError(t, err)
	require.Positive(t, report.Chunks)

	snap, err := vector.LoadSnapshot(cfg.Storage.Vector.IndexDir)
	require.NoError(t, err)
	assert.Equal(t, report.Chunks, snap.Len())
}

func TestBootstrap_IngestThenRetrieve(t *testing.T) {
	ctx := context.Background()
	b, err := NewBootstrapWithLogger(ctx, testConfig(t), log.Discard())
	require.NoError(t, err)
	defer b.Close()

	pdf, err := b.Registry.Get("PDF_Retriever")
	require.NoError(t, err)
	_, err = pdf.Invoke(ctx, "attention")
	assert.ErrorIs(t, err, vector.ErrIndexUnavailable)

	_, err = b.ReloadIndex()
	assert.True(t, vector.IsNotExist(err))

	doc := filepath.Join(t.TempDir(), "attention.txt")
	require.NoError(t, os.WriteFile(doc, []byte("Self attention relates positions of a sequence to compute a representation."), 0644))
	report, err := b.Pipeline.Ingest(ctx, []string{doc})
	require.NoError(t, err)
	require.Positive(t, report.Chunks)

	out, err := pdf.Invoke(ctx, "self attention")
	require.NoError(t, err)
	assert.Contains(t, out, "Results from PDFs:\n")
	assert.Contains(t, out, "Source: "+doc)

	n, err := b.ReloadIndex()
	require.NoError(t, err)
	assert.Equal(t, report.Chunks, n)
}

func TestResolveCredentials_FromSecretStore(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "")
	t.Setenv("SERPAPI_API_KEY", "")
	cfg, err := config.LoadConfig("")
	require.NoError(t, err)

	ctx := context.Background()
	store := secrets.NewMemoryStore()
	require.NoError(t, store.Set(ctx, SecretLLMKey, "gsk-vault"))
	require.NoError(t, store.Set(ctx, SecretSearchKey, "serp-vault"))

	require.NoError(t, ResolveCredentials(ctx, cfg, store))
	ref, err := cfg.LLMModel()
	require.NoError(t, err)
	assert.Equal(t, "gsk-vault", ref.APIKey)
	assert.Equal(t, "serp-vault", cfg.Search.APIKey)
	assert.NoError(t, cfg.Validate())
}

func TestResolveCredentials_KeepsConfiguredValues(t *testing.T) {
	cfg := testConfig(t)
	store := secrets.NewMemoryStore()
	require.NoError(t, store.Set(context.Background(), SecretLLMKey, "other"))

	require.NoError(t, ResolveCredentials(context.Background(), cfg, store))
	ref, err := cfg.LLMModel()
	require.NoError(t, err)
	assert.Equal(t, "gsk-test", ref.APIKey)
}
