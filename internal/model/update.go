package model

import "time"

// UpdateKind identifies the pipeline transition an Update describes.
type UpdateKind string

const (
	UpdateDiscovered  UpdateKind = "discovered"
	UpdateParsing     UpdateKind = "parsing"
	UpdateParsed      UpdateKind = "parsed"
	UpdateSummarizing UpdateKind = "summarizing"
	UpdateSummarized  UpdateKind = "summarized"
	UpdateEmbedding   UpdateKind = "embedding"
	UpdateEmbedded    UpdateKind = "embedded"
	UpdateComplete    UpdateKind = "complete"
	UpdateFailed      UpdateKind = "failed"
	UpdateDeleted     UpdateKind = "deleted"
)

// Update is an immutable progress event published to the hub at every
// pipeline transition. Updates are transient: they are never persisted and a
// late subscriber never sees earlier ones.
type Update struct {
	Kind      UpdateKind `json:"kind"`
	Path      string     `json:"path"`
	Status    Status     `json:"status"`
	Error     string     `json:"error,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// NewUpdate builds a progress event for the given transition.
func NewUpdate(kind UpdateKind, f *FileRecord) Update {
	return Update{
		Kind:      kind,
		Path:      f.Path,
		Status:    f.Status,
		Error:     f.ProcessingError,
		Timestamp: time.Now().UTC(),
	}
}
