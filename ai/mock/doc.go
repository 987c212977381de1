// Package mock provides test double implementations of AI service interfaces.
//
// # Usage in Tests
//
//	// Distinct texts get unrelated unit vectors
//	embedder := mock.NewMockEmbedder(64)
//
//	// Texts sharing words get nearby vectors
//	embedder := mock.NewBagOfWordsEmbedder(64)
//
//	// Custom behavior injection
//	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
//	    return nil, errors.New("provider down")
//	}
//
//	// Check call counts
//	count := embedder.CallCount()
package mock
