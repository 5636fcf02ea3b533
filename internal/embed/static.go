package embed

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// StaticDimensions is the fixed width of hash-based vectors.
const StaticDimensions = 256

const (
	staticTokenWeight = 0.7
	staticNgramWeight = 0.3
	staticNgramSize   = 3
)

// StaticEmbedder hashes tokens and character trigrams into a fixed-width
// vector. No network, no model download, deterministic output; semantic
// quality is accordingly limited. It backs offline use and tests.
type StaticEmbedder struct{}

var _ TextEmbedder = (*StaticEmbedder)(nil)

func NewStaticEmbedder() *StaticEmbedder {
	return &StaticEmbedder{}
}

func (e *StaticEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, StaticDimensions)
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return vec, nil
	}

	for _, token := range staticTokens(trimmed) {
		vec[hashToIndex(token)] += staticTokenWeight
	}
	for _, ngram := range staticNgrams(trimmed) {
		vec[hashToIndex(ngram)] += staticNgramWeight
	}

	normalize(vec)
	return vec, nil
}

func (e *StaticEmbedder) Dimensions() int { return StaticDimensions }

func (e *StaticEmbedder) ModelName() string { return "static-hash-v1" }

func staticTokens(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func staticNgrams(text string) []string {
	flat := strings.ToLower(strings.Join(strings.Fields(text), " "))
	if len(flat) < staticNgramSize {
		return nil
	}
	grams := make([]string, 0, len(flat)-staticNgramSize+1)
	for i := 0; i+staticNgramSize <= len(flat); i++ {
		grams = append(grams, flat[i:i+staticNgramSize])
	}
	return grams
}

func hashToIndex(s string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return int(h.Sum32() % StaticDimensions)
}

func normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sum))
	for i := range vec {
		vec[i] *= inv
	}
}
