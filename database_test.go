package scriptorium

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/poiesic/scriptorium/ai"
	"github.com/poiesic/scriptorium/ai/mock"
	"github.com/poiesic/scriptorium/config"
	"github.com/poiesic/scriptorium/core"
	"github.com/poiesic/scriptorium/ingestion"
	"github.com/poiesic/scriptorium/reembed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pageText = "Fracture dislocation of the cervical vertebrae produced complete paralysis below the lesion. Traction relieved compression of the spinal cord."

func mockProvider() ai.Provider {
	vision := mock.NewMockVision()
	vision.ExtractTextFunc = func(context.Context, []byte, string, ai.VisionOptions) (*ai.VisionResult, error) {
		return &ai.VisionResult{Text: pageText, Confidence: 0.9}, nil
	}
	return mock.NewMockProviderWithServices(nil, vision, nil, nil)
}

func pageImage(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 2, 2))))
	return buf.Bytes()
}

func TestNewDatabase(t *testing.T) {
	t.Run("create new database", func(t *testing.T) {
		tmpDir := filepath.Join(t.TempDir(), "test_db")
		db, err := NewDatabase(tmpDir)
		require.NoError(t, err)
		require.NotNil(t, db)
		defer db.Close()

		repos := db.Repositories()
		assert.NotNil(t, repos.Documents)
		assert.NotNil(t, repos.Blobs)
		assert.NotNil(t, db.Provider().Vision())
		assert.NotNil(t, db.logger)
	})

	t.Run("error with invalid path", func(t *testing.T) {
		tmpFile := filepath.Join(t.TempDir(), "not_a_dir")
		err := os.WriteFile(tmpFile, []byte("test"), 0644)
		require.NoError(t, err)

		db, err := NewDatabase(tmpFile)
		assert.Error(t, err)
		assert.Nil(t, db)
	})

	t.Run("invalid ai config", func(t *testing.T) {
		cfg := ai.DefaultConfig()
		cfg.EmbeddingModel = ""
		db, err := NewDatabase(t.TempDir(), WithAIConfig(cfg))
		assert.Error(t, err)
		assert.Nil(t, db)
	})
}

func TestDatabase_Close(t *testing.T) {
	db, err := NewDatabase(t.TempDir(), WithProvider(mockProvider()))
	require.NoError(t, err)

	assert.NoError(t, db.Close())
	assert.NoError(t, db.Close(), "second close is a no-op")
}

func TestDatabase_FactoryMethods(t *testing.T) {
	db, err := NewDatabase(t.TempDir(), WithProvider(mockProvider()))
	require.NoError(t, err)
	defer db.Close()

	t.Run("can create ingestion pipeline", func(t *testing.T) {
		pipeline, err := db.NewPipeline()
		require.NoError(t, err)
		require.NotNil(t, pipeline)
		pipeline.Release()
	})

	t.Run("can create searcher", func(t *testing.T) {
		searcher, err := db.NewSearcher()
		require.NoError(t, err)
		require.NotNil(t, searcher)
	})

	t.Run("can create reembedder", func(t *testing.T) {
		r, err := db.NewReembedder(nil, nil)
		require.NoError(t, err)
		require.NotNil(t, r)
	})
}

func TestDatabase_EndToEnd(t *testing.T) {
	db, err := NewDatabase(t.TempDir(), WithProvider(mockProvider()))
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()

	pipeline, err := db.NewPipeline(ingestion.WithSettings(core.Settings{ChunkSize: 16, Overlap: 4}))
	require.NoError(t, err)
	defer pipeline.Release()

	doc, err := pipeline.Upload(ctx, ingestion.UploadRequest{FileName: "cervical.png", Data: pageImage(t)})
	require.NoError(t, err)
	assert.Equal(t, "cervical", doc.Title)

	doc, err = pipeline.Process(ctx, doc.Id)
	require.NoError(t, err)
	require.Equal(t, core.StatusReady, doc.Status)

	searcher, err := db.NewSearcher()
	require.NoError(t, err)
	answer, err := searcher.Ask(ctx, "spinal cord compression", 3)
	require.NoError(t, err)
	require.NotEmpty(t, answer.Citations)
	assert.Equal(t, doc.Id, answer.Citations[0].DocumentId)
	assert.True(t, strings.HasPrefix(answer.Text, "Answer to:"))

	var progress bytes.Buffer
	r, err := db.NewReembedder(&reembed.Config{BatchSize: 2, ReportInterval: 1, Concurrency: 1, MaxRetries: 1}, &progress)
	require.NoError(t, err)
	n, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Positive(t, n)

	require.NoError(t, pipeline.Delete(ctx, doc.Id))
	_, err = pipeline.Get(ctx, doc.Id)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestOpen_FromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Database.Path = filepath.Join(t.TempDir(), "db")

	db, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	cfg.Blobs.Backend = config.BlobBackendGCS
	_, err = Open(context.Background(), cfg)
	assert.ErrorIs(t, err, core.ErrInvalidConfig, "gcs requires a bucket")
}
