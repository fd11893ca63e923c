package mock

import (
	"context"
	"sync"
	"testing"

	"github.com/poiesic/scriptorium/ai"
	"github.com/poiesic/scriptorium/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockEmbedder_Deterministic(t *testing.T) {
	m := NewMockEmbedder()
	ctx := context.Background()

	a, err := m.EmbedText(ctx, "paralysis")
	require.NoError(t, err)
	b, err := m.EmbedText(ctx, "paralysis")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 384)

	batch, err := m.EmbedTexts(ctx, []string{"paralysis", "congestion"})
	require.NoError(t, err)
	assert.Equal(t, a, batch[0])
	assert.NotEqual(t, batch[0], batch[1])
	assert.Equal(t, 3, m.CallCount())

	m.Reset()
	assert.Zero(t, m.CallCount())
}

func TestMockVision_ConcurrentCalls(t *testing.T) {
	m := NewMockVision()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := m.ExtractText(context.Background(), []byte(" page text "), "image/png", ai.VisionOptions{DPI: 300})
			assert.NoError(t, err)
			assert.Equal(t, "page text", res.Text)
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, m.CallCount())
	assert.Len(t, m.Options(), 20)
	assert.Equal(t, 300, m.Options()[0].DPI)
}

func TestMockGraphExtractor_Default(t *testing.T) {
	m := NewMockGraphExtractor()
	graph, err := m.ExtractGraph(context.Background(), "Paralysis with congestion; paralysis again.", ai.DefaultSchema())
	require.NoError(t, err)
	require.Len(t, graph.Nodes, 2)
	assert.Equal(t, "paralysis", graph.Nodes[0].ID)
	assert.Equal(t, "congestion", graph.Nodes[1].ID)
	require.Len(t, graph.Edges, 1)
	assert.Equal(t, string(core.RelCoOccursWith), graph.Edges[0].Type)
	assert.Equal(t, []string{"Paralysis with congestion; paralysis again."}, m.Texts())
}

func TestMockProvider(t *testing.T) {
	p := NewMockProvider().(*MockProvider)
	assert.Same(t, p.GetMockEmbedder(), p.Embedder())
	assert.Same(t, p.GetMockVision(), p.Vision())
	assert.Same(t, p.GetMockExtractor(), p.GraphExtractor())
	assert.Same(t, p.GetMockAnswerer(), p.AnswerGenerator())

	answer, err := p.AnswerGenerator().GenerateAnswer(context.Background(), "why?", make([]ai.Passage, 2))
	require.NoError(t, err)
	assert.Equal(t, "Answer to: why? [1] [2]", answer)

	require.NoError(t, p.Close())
	assert.True(t, p.Closed())

	vision := NewMockVision()
	custom := NewMockProviderWithServices(nil, vision, nil, nil).(*MockProvider)
	assert.Same(t, vision, custom.GetMockVision())
	assert.NotNil(t, custom.GetMockEmbedder())
}
