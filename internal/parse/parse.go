// Package parse extracts indexable text content from files on disk.
package parse

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	luminaerr "github.com/lumina-index/lumina/internal/errors"
	"github.com/lumina-index/lumina/internal/model"
	"github.com/lumina-index/lumina/internal/pipeline"
)

// contentTypes maps supported extensions to their reported content type.
var contentTypes = map[string]string{
	".txt":      "text/plain",
	".text":     "text/plain",
	".log":      "text/plain",
	".md":       "text/markdown",
	".markdown": "text/markdown",
	".rst":      "text/x-rst",
	".org":      "text/org",
	".csv":      "text/csv",
	".json":     "application/json",
	".yaml":     "application/yaml",
	".yml":      "application/yaml",
	".toml":     "application/toml",
	".xml":      "application/xml",
	".html":     "text/html",
	".htm":      "text/html",
}

// TextParser handles plain-text formats. Content is read whole; the SHA-256
// of the raw bytes becomes the record's change signal.
type TextParser struct {
	// MaxSize rejects larger files. Zero means no limit.
	MaxSize int64
}

var _ pipeline.Parser = (*TextParser)(nil)

func NewTextParser(maxSize int64) *TextParser {
	return &TextParser{MaxSize: maxSize}
}

// Supports reports whether the record's extension is a known text format.
func (p *TextParser) Supports(rec *model.FileRecord) bool {
	_, ok := contentTypes[rec.Extension]
	return ok
}

// Parse reads the file and fills Content, ContentHash, and ContentType.
// Files that claim a text extension but contain binary data are rejected.
func (p *TextParser) Parse(ctx context.Context, rec *model.FileRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	contentType, ok := contentTypes[rec.Extension]
	if !ok {
		return luminaerr.New(luminaerr.ErrCodeParseFailed,
			fmt.Sprintf("unsupported extension %q", rec.Extension), nil)
	}

	if p.MaxSize > 0 {
		info, err := os.Stat(rec.Path)
		if err != nil {
			return luminaerr.New(luminaerr.ErrCodeParseFailed,
				fmt.Sprintf("stat %s", rec.Path), err)
		}
		if info.Size() > p.MaxSize {
			return luminaerr.New(luminaerr.ErrCodeParseFailed,
				fmt.Sprintf("file is %d bytes, limit is %d", info.Size(), p.MaxSize), nil)
		}
	}

	data, err := os.ReadFile(rec.Path)
	if err != nil {
		return luminaerr.New(luminaerr.ErrCodeParseFailed,
			fmt.Sprintf("read %s", rec.Path), err)
	}

	if bytes.ContainsRune(data, 0) {
		return luminaerr.New(luminaerr.ErrCodeParseFailed,
			"file contains binary data", nil)
	}

	sum := sha256.Sum256(data)
	rec.ContentHash = hex.EncodeToString(sum[:])
	rec.ContentType = contentType
	rec.Content = normalizeText(data)
	rec.Size = int64(len(data))
	return nil
}

// normalizeText converts raw bytes to valid UTF-8 with unix line endings.
// Invalid sequences are replaced rather than dropped so offsets stay close
// to the original.
func normalizeText(data []byte) string {
	s := strings.ReplaceAll(string(data), "\r\n", "\n")
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, string(utf8.RuneError))
}
