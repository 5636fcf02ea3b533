package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strconv"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
)

// bleveIndex is the alternate full-text backend. Unlike FTS5 it lives outside
// SQLite, so writes are applied best-effort rather than transactionally; the
// metadata row remains the source of truth.
type bleveIndex struct {
	idx bleve.Index
}

var _ textIndex = (*bleveIndex)(nil)

func newBleveIndex(dataDir string) (*bleveIndex, error) {
	if dataDir == "" {
		idx, err := bleve.NewMemOnly(bleveMapping())
		if err != nil {
			return nil, err
		}
		return &bleveIndex{idx: idx}, nil
	}

	path := filepath.Join(dataDir, "text.bleve")
	idx, err := bleve.Open(path)
	if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) || os.IsNotExist(err) {
		idx, err = bleve.New(path, bleveMapping())
	}
	if err != nil {
		return nil, err
	}
	return &bleveIndex{idx: idx}, nil
}

func bleveMapping() *mapping.IndexMappingImpl {
	text := bleve.NewTextFieldMapping()

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("filename", text)
	doc.AddFieldMappingsAt("content", text)
	doc.AddFieldMappingsAt("summary", text)
	doc.AddFieldMappingsAt("title", text)

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	return m
}

type bleveDoc struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
	Summary  string `json:"summary"`
	Title    string `json:"title"`
}

func (b *bleveIndex) Index(_ context.Context, _ *sql.Tx, fileID int64, doc textDocument) error {
	return b.idx.Index(strconv.FormatInt(fileID, 10), bleveDoc{
		Filename: doc.Filename,
		Content:  doc.Content,
		Summary:  doc.Summary,
		Title:    doc.Title,
	})
}

func (b *bleveIndex) Delete(_ context.Context, _ *sql.Tx, fileID int64) error {
	return b.idx.Delete(strconv.FormatInt(fileID, 10))
}

func (b *bleveIndex) Search(ctx context.Context, qstr string, limit int) ([]textHit, error) {
	fields := []string{"filename", "content", "summary", "title"}
	queries := make([]query.Query, 0, len(fields))
	for _, field := range fields {
		q := bleve.NewMatchQuery(qstr)
		q.SetField(field)
		queries = append(queries, q)
	}

	req := bleve.NewSearchRequest(bleve.NewDisjunctionQuery(queries...))
	req.Size = limit

	res, err := b.idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, err
	}

	hits := make([]textHit, 0, len(res.Hits))
	for _, hit := range res.Hits {
		id, err := strconv.ParseInt(hit.ID, 10, 64)
		if err != nil {
			continue
		}
		hits = append(hits, textHit{FileID: id, Score: hit.Score})
	}
	return hits, nil
}

func (b *bleveIndex) Close() error {
	return b.idx.Close()
}
