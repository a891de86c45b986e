package llm

import "context"

// MockClient permite tests sin llamar a un LLM real.
type MockClient struct {
	Response     string
	Err          error
	Embedding    []float32
	EmbeddingErr error

	// Prompts acumula lo enviado para inspeccion en tests.
	Prompts  []string
	Embedded []string
}

func (m *MockClient) Generate(ctx context.Context, prompt string) (string, error) {
	m.Prompts = append(m.Prompts, prompt)
	return m.Response, m.Err
}

func (m *MockClient) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	m.Embedded = append(m.Embedded, text)
	if m.EmbeddingErr != nil {
		return nil, m.EmbeddingErr
	}
	if m.Embedding != nil {
		return m.Embedding, nil
	}
	return []float32{0.1, 0.2, 0.3}, nil
}
