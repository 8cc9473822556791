package semantic

import (
	"context"
	"crypto/sha256"
	"math"
	"sync"
)

// fakeEmbedder produces deterministic vectors derived from the text bytes,
// so identical text always lands on the identical vector.
type fakeEmbedder struct {
	dim       int
	failTexts map[string]bool
	mu        sync.Mutex
	calls     int
}

func newFakeEmbedder(dim int) *fakeEmbedder {
	return &fakeEmbedder{dim: dim, failTexts: make(map[string]bool)}
}

func (f *fakeEmbedder) ModelName() string { return "fake-model" }
func (f *fakeEmbedder) Dimensions() int   { return f.dim }

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.failTexts[text] {
		return nil, Errf(KindEmbedding, "forced failure")
	}
	sum := sha256.Sum256([]byte(text))
	vec := make([]float32, f.dim)
	for i := range vec {
		vec[i] = float32(sum[i%len(sum)])/255 - 0.5
	}
	return vec, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := f.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (f *fakeEmbedder) HealthCheck(ctx context.Context) error { return nil }

// fakeVectorStore is an in-memory VectorStore with real cosine ranking.
type fakeVectorStore struct {
	mu     sync.Mutex
	exists bool
	dim    int
	points []VectorPoint
}

func newFakeVectorStore() *fakeVectorStore {
	return &fakeVectorStore{}
}

func (f *fakeVectorStore) EnsureCollection(ctx context.Context, dimensions int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.exists {
		f.exists = true
		f.dim = dimensions
	}
	return nil
}

func (f *fakeVectorStore) CollectionExists(ctx context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exists, nil
}

func (f *fakeVectorStore) PointCount(ctx context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return uint64(len(f.points)), nil
}

func (f *fakeVectorStore) UpsertPoints(ctx context.Context, points []VectorPoint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.points = append(f.points, points...)
	return nil
}

func (f *fakeVectorStore) Search(ctx context.Context, vector []float32, limit int) ([]ScoredPoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	scored := make([]ScoredPoint, 0, len(f.points))
	for _, p := range f.points {
		scored = append(scored, ScoredPoint{
			FilePath:   p.FilePath,
			ChunkID:    p.ChunkID,
			ParentDirs: p.ParentDirs,
			Score:      cosine(vector, p.Vector),
		})
	}
	// Insertion sort by descending score keeps ties stable.
	for i := 1; i < len(scored); i++ {
		for j := i; j > 0 && scored[j].Score > scored[j-1].Score; j-- {
			scored[j], scored[j-1] = scored[j-1], scored[j]
		}
	}
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

func (f *fakeVectorStore) DeleteByFilePath(ctx context.Context, filePath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.points[:0]
	for _, p := range f.points {
		if p.FilePath != filePath {
			kept = append(kept, p)
		}
	}
	f.points = kept
	return nil
}

func (f *fakeVectorStore) DeleteCollection(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exists = false
	f.points = nil
	return nil
}

func (f *fakeVectorStore) Info(ctx context.Context) (*CollectionInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := uint64(len(f.points))
	return &CollectionInfo{PointsCount: n, IndexedVectorsCount: n}, nil
}

func (f *fakeVectorStore) Close() error { return nil }

func (f *fakeVectorStore) pointsFor(path string) []VectorPoint {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []VectorPoint
	for _, p := range f.points {
		if p.FilePath == path {
			out = append(out, p)
		}
	}
	return out
}

func cosine(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		if i >= len(b) {
			break
		}
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
