package semantic

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// qdrantOpTimeout bounds every vector store operation.
const qdrantOpTimeout = 30 * time.Second

// VectorPoint is one chunk embedding plus its payload, ready for upsert.
type VectorPoint struct {
	FilePath   string
	ChunkID    int
	ParentDirs []string
	Vector     []float32
}

// ScoredPoint is a search hit decoded from the vector store payload.
type ScoredPoint struct {
	FilePath   string
	ChunkID    int
	ParentDirs []string
	Score      float32
}

// CollectionInfo summarizes the vector collection for status reporting.
type CollectionInfo struct {
	PointsCount         uint64
	IndexedVectorsCount uint64
}

// VectorStore is the vector side of the dual store. The pipeline writes
// here first on every commit so the metadata store never references
// vectors that were not stored.
type VectorStore interface {
	EnsureCollection(ctx context.Context, dimensions int) error
	CollectionExists(ctx context.Context) (bool, error)
	PointCount(ctx context.Context) (uint64, error)
	UpsertPoints(ctx context.Context, points []VectorPoint) error
	Search(ctx context.Context, vector []float32, limit int) ([]ScoredPoint, error)
	DeleteByFilePath(ctx context.Context, filePath string) error
	DeleteCollection(ctx context.Context) error
	Info(ctx context.Context) (*CollectionInfo, error)
	Close() error
}

// QdrantConfig configures the Qdrant-backed vector store.
type QdrantConfig struct {
	Endpoint   string // full URL, e.g. http://localhost:6334
	APIKey     string
	Collection string
}

// QdrantStore implements VectorStore over the Qdrant gRPC client.
type QdrantStore struct {
	client     *qdrant.Client
	collection string
	mu         sync.RWMutex
	closed     bool
}

// NewQdrantStore connects to the Qdrant endpoint named in cfg. The
// collection is not created here; EnsureCollection does that once the
// embedding dimension is known.
func NewQdrantStore(cfg QdrantConfig) (*QdrantStore, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:6334"
	}
	if cfg.Collection == "" {
		cfg.Collection = "dirindex"
	}

	host, port, useTLS, err := parseQdrantURL(cfg.Endpoint)
	if err != nil {
		return nil, Wrap(KindConfig, err, "invalid Qdrant endpoint %s", cfg.Endpoint)
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, Wrap(KindVectorStore, err, "failed to create Qdrant client")
	}

	return &QdrantStore{client: client, collection: cfg.Collection}, nil
}

// parseQdrantURL extracts host, port, and TLS setting from an endpoint URL.
// The port defaults to Qdrant's gRPC port.
func parseQdrantURL(rawURL string) (host string, port int, useTLS bool, err error) {
	port = 6334

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", 0, false, err
	}
	useTLS = u.Scheme == "https"

	host = u.Hostname()
	if host == "" {
		return "", 0, false, Errf(KindConfig, "missing host in URL %s", rawURL)
	}
	if portStr := u.Port(); portStr != "" {
		port, err = strconv.Atoi(portStr)
		if err != nil {
			return "", 0, false, err
		}
	}
	return host, port, useTLS, nil
}

func (s *QdrantStore) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, qdrantOpTimeout)
}

// CollectionExists reports whether the configured collection is present.
func (s *QdrantStore) CollectionExists(ctx context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false, ErrStoreClosed
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	collections, err := s.client.ListCollections(ctx)
	if err != nil {
		return false, Wrap(KindVectorStore, err, "failed to list collections")
	}
	for _, c := range collections {
		if c == s.collection {
			return true, nil
		}
	}
	return false, nil
}

// EnsureCollection creates the collection with cosine distance when it
// does not already exist.
func (s *QdrantStore) EnsureCollection(ctx context.Context, dimensions int) error {
	exists, err := s.CollectionExists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimensions),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return Wrap(KindVectorStore, err, "failed to create collection %s", s.collection)
	}
	return nil
}

// PointCount returns the number of points in the collection, or 0 when
// the collection does not exist.
func (s *QdrantStore) PointCount(ctx context.Context) (uint64, error) {
	exists, err := s.CollectionExists(ctx)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, nil
	}
	info, err := s.Info(ctx)
	if err != nil {
		return 0, err
	}
	return info.PointsCount, nil
}

// UpsertPoints writes a batch of chunk embeddings. Each point gets a
// fresh random UUID; stale points for a file are removed separately via
// DeleteByFilePath before re-embedding.
func (s *QdrantStore) UpsertPoints(ctx context.Context, points []VectorPoint) error {
	if len(points) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	structs := make([]*qdrant.PointStruct, len(points))
	for i, p := range points {
		parents, err := json.Marshal(p.ParentDirs)
		if err != nil {
			return Wrap(KindJSON, err, "failed to encode parent_dirs")
		}
		structs[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(uuid.NewString()),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: map[string]*qdrant.Value{
				"file_path":   qdrant.NewValueString(p.FilePath),
				"chunk_id":    qdrant.NewValueInt(int64(p.ChunkID)),
				"parent_dirs": qdrant.NewValueString(string(parents)),
			},
		}
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         structs,
	})
	if err != nil {
		return Wrap(KindVectorStore, err, "failed to upsert points")
	}
	return nil
}

// Search returns the limit nearest points to vector by cosine similarity.
func (s *QdrantStore) Search(ctx context.Context, vector []float32, limit int) ([]ScoredPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	hits, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		WithPayload:    qdrant.NewWithPayload(true),
		Limit:          qdrant.PtrOf(uint64(limit)),
	})
	if err != nil {
		return nil, Wrap(KindVectorStore, err, "search failed")
	}

	results := make([]ScoredPoint, 0, len(hits))
	for _, hit := range hits {
		results = append(results, decodeScoredPoint(hit))
	}
	return results, nil
}

func decodeScoredPoint(point *qdrant.ScoredPoint) ScoredPoint {
	sp := ScoredPoint{Score: point.Score}
	payload := point.Payload
	if payload == nil {
		return sp
	}
	if v, ok := payload["file_path"]; ok {
		sp.FilePath = v.GetStringValue()
	}
	if v, ok := payload["chunk_id"]; ok {
		sp.ChunkID = int(v.GetIntegerValue())
	}
	if v, ok := payload["parent_dirs"]; ok {
		_ = json.Unmarshal([]byte(v.GetStringValue()), &sp.ParentDirs)
	}
	return sp
}

// DeleteByFilePath removes every point whose payload names filePath.
// Deleting a path with no points is not an error.
func (s *QdrantStore) DeleteByFilePath(ctx context.Context, filePath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
				Filter: &qdrant.Filter{
					Must: []*qdrant.Condition{
						qdrant.NewMatch("file_path", filePath),
					},
				},
			},
		},
	})
	if err != nil {
		return Wrap(KindVectorStore, err, "failed to delete points for %s", filePath)
	}
	return nil
}

// DeleteCollection drops the collection entirely.
func (s *QdrantStore) DeleteCollection(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	if err := s.client.DeleteCollection(ctx, s.collection); err != nil {
		return Wrap(KindVectorStore, err, "failed to delete collection %s", s.collection)
	}
	return nil
}

// Info returns collection counters for status reporting.
func (s *QdrantStore) Info(ctx context.Context) (*CollectionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	info, err := s.client.GetCollectionInfo(ctx, s.collection)
	if err != nil {
		return nil, Wrap(KindVectorStore, err, "failed to get collection info")
	}

	out := &CollectionInfo{}
	if info.PointsCount != nil {
		out.PointsCount = *info.PointsCount
	}
	if info.IndexedVectorsCount != nil {
		out.IndexedVectorsCount = *info.IndexedVectorsCount
	}
	return out, nil
}

// Close releases the gRPC connection.
func (s *QdrantStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.client.Close()
}
