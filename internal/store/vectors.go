package store

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/coder/hnsw"

	luminaerr "github.com/lumina-index/lumina/internal/errors"
	"github.com/lumina-index/lumina/internal/model"
)

// vectorIndex serves nearest-neighbor queries from an in-memory HNSW graph.
// The file_embeddings table is the durable copy; the graph is rebuilt from it
// at open. Deletion is lazy: the node stays in the graph but loses its ID
// mapping, which sidesteps a coder/hnsw bug when removing the last node.
// Synchronization is the owning Store's job.
type vectorIndex struct {
	graph *hnsw.Graph[uint64]
	dims  int

	idMap   map[int64]uint64
	keyMap  map[uint64]int64
	nextKey uint64
}

func newVectorIndex() *vectorIndex {
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = 16
	graph.EfSearch = 20
	graph.Ml = 0.25

	return &vectorIndex{
		graph:  graph,
		idMap:  make(map[int64]uint64),
		keyMap: make(map[uint64]int64),
	}
}

// add inserts or replaces the vector for a file. The first vector fixes the
// index dimensionality.
func (v *vectorIndex) add(fileID int64, vec []float32) error {
	if len(vec) == 0 {
		return luminaerr.ValidationError("embedding vector is empty")
	}
	if v.dims == 0 {
		v.dims = len(vec)
	} else if len(vec) != v.dims {
		return luminaerr.New(luminaerr.ErrCodeDimensionMismatch,
			fmt.Sprintf("embedding has %d dimensions, index expects %d", len(vec), v.dims), nil)
	}

	if existing, ok := v.idMap[fileID]; ok {
		delete(v.keyMap, existing)
		delete(v.idMap, fileID)
	}

	key := v.nextKey
	v.nextKey++

	normalized := make([]float32, len(vec))
	copy(normalized, vec)
	normalizeVector(normalized)

	v.graph.Add(hnsw.MakeNode(key, normalized))
	v.idMap[fileID] = key
	v.keyMap[key] = fileID
	return nil
}

func (v *vectorIndex) remove(fileID int64) {
	if key, ok := v.idMap[fileID]; ok {
		delete(v.keyMap, key)
		delete(v.idMap, fileID)
	}
}

type vectorHit struct {
	FileID   int64
	Distance float32
}

// search returns up to k live neighbors ordered by ascending distance.
// Orphaned graph nodes are filtered out, so it over-fetches to compensate.
func (v *vectorIndex) search(query []float32, k int) ([]vectorHit, error) {
	if len(v.idMap) == 0 {
		return nil, nil
	}
	if v.dims != 0 && len(query) != v.dims {
		return nil, luminaerr.New(luminaerr.ErrCodeDimensionMismatch,
			fmt.Sprintf("query has %d dimensions, index expects %d", len(query), v.dims), nil)
	}

	normalized := make([]float32, len(query))
	copy(normalized, query)
	normalizeVector(normalized)

	orphans := v.graph.Len() - len(v.idMap)
	nodes := v.graph.Search(normalized, k+orphans)

	hits := make([]vectorHit, 0, k)
	for _, node := range nodes {
		fileID, ok := v.keyMap[node.Key]
		if !ok {
			continue
		}
		hits = append(hits, vectorHit{
			FileID:   fileID,
			Distance: v.graph.Distance(normalized, node.Value),
		})
		if len(hits) == k {
			break
		}
	}
	return hits, nil
}

func (v *vectorIndex) count() int {
	return len(v.idMap)
}

func normalizeVector(vec []float32) {
	var sum float64
	for _, x := range vec {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sum))
	for i := range vec {
		vec[i] *= inv
	}
}

// UpsertFileEmbeddings persists the vector for a stored file and refreshes
// the in-memory graph. The record must already exist.
func (s *Store) UpsertFileEmbeddings(ctx context.Context, fileID int64, vec []float32, modelName string) error {
	if len(vec) == 0 {
		return luminaerr.ValidationError("embedding vector is empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO file_embeddings (file_id, model, dimensions, vector, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(file_id) DO UPDATE SET
			model = excluded.model,
			dimensions = excluded.dimensions,
			vector = excluded.vector,
			updated_at = excluded.updated_at`,
		fileID, modelName, len(vec), encodeVector(vec), encodeTime(now()))
	if err != nil {
		return luminaerr.StoreError("upsert embedding", err)
	}

	if err := tx.Commit(); err != nil {
		return luminaerr.StoreError("commit embedding", err)
	}

	return s.vectors.add(fileID, vec)
}

// SimilarResult pairs a record with its cosine distance from the query.
type SimilarResult struct {
	File     *model.FileRecord
	Distance float32
}

// SearchSimilar returns the limit nearest records by embedding distance,
// ascending. Ties break toward the more recently modified file.
func (s *Store) SearchSimilar(ctx context.Context, query []float32, limit int) ([]SimilarResult, error) {
	if limit <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, luminaerr.New(luminaerr.ErrCodeStoreClosed, "store is closed", nil)
	}

	hits, err := s.vectors.search(query, limit)
	if err != nil {
		return nil, err
	}

	results := make([]SimilarResult, 0, len(hits))
	for _, hit := range hits {
		rec, err := s.getFileWhere(ctx, `f.id = ?`, hit.FileID)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			continue
		}
		results = append(results, SimilarResult{File: rec, Distance: hit.Distance})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].File.Modified.After(results[j].File.Modified)
	})
	return results, nil
}

// Vectors are stored as little-endian float32 blobs.

func encodeVector(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, x := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(x))
	}
	return buf
}

func decodeVector(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, luminaerr.New(luminaerr.ErrCodeStoreCorrupt,
			fmt.Sprintf("embedding blob length %d is not a multiple of 4", len(blob)), nil)
	}
	vec := make([]float32, len(blob)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vec, nil
}
