package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/bnema/tribora/internal/domain"
	"github.com/bnema/tribora/internal/port"
)

type SearchWeights struct {
	Transcript float64
	Frame      float64
	// TextMatchBoost is added to a frame whose description or OCR text
	// contains the query literally.
	TextMatchBoost float64
}

func DefaultSearchWeights() SearchWeights {
	return SearchWeights{Transcript: 0.7, Frame: 0.3, TextMatchBoost: 0.2}
}

type SearchMatch struct {
	Source     domain.EmbeddingSource
	Text       string
	Score      float64
	FrameIndex int
}

type SearchResult struct {
	Content *domain.Content
	Score   float64
	Best    SearchMatch
	// Frame is the best frame match, when any frame scored.
	Frame *SearchMatch
}

type SearchService struct {
	contents  port.ContentStore
	artifacts port.ArtifactStore
	embedder  port.Embedder
	weights   SearchWeights
}

func NewSearchService(contents port.ContentStore, artifacts port.ArtifactStore, embedder port.Embedder, weights SearchWeights) *SearchService {
	return &SearchService{
		contents:  contents,
		artifacts: artifacts,
		embedder:  embedder,
		weights:   weights,
	}
}

type contentScore struct {
	text    SearchMatch
	hasText bool
	frame   SearchMatch
	hasFrm  bool
}

// Search ranks the organization's records against query. Transcript and
// document chunks and frame descriptions are scored by cosine similarity,
// frames with a literal text match are boosted, and the two sides are
// merged with the configured weights.
func (s *SearchService) Search(ctx context.Context, orgID, query string, limit int) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if orgID == "" || query == "" {
		return nil, fmt.Errorf("%w: org and query are required", domain.ErrValidation)
	}
	if limit <= 0 {
		limit = 10
	}

	vecs, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embed query: got %d vectors", len(vecs))
	}
	qv := vecs[0]

	embeddings, err := s.artifacts.ListOrgEmbeddings(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("load embeddings: %w", err)
	}
	textHits, err := s.artifacts.SearchFrames(ctx, orgID, query, limit*10)
	if err != nil {
		return nil, fmt.Errorf("search frames: %w", err)
	}
	boosted := make(map[string]map[int]bool)
	for _, f := range textHits {
		if boosted[f.ContentID] == nil {
			boosted[f.ContentID] = make(map[int]bool)
		}
		boosted[f.ContentID][f.FrameIndex] = true
	}

	scores := make(map[string]*contentScore)
	entry := func(id string) *contentScore {
		cs, ok := scores[id]
		if !ok {
			cs = &contentScore{}
			scores[id] = cs
		}
		return cs
	}

	for _, e := range embeddings {
		sim := CosineSimilarity(qv, e.Vector)
		m := SearchMatch{Source: e.Source, Text: e.Text, Score: sim, FrameIndex: -1}
		cs := entry(e.ContentID)
		if e.Source == domain.EmbeddingSourceFrame {
			m.FrameIndex = e.ChunkIndex
			if boosted[e.ContentID][e.ChunkIndex] {
				m.Score = math.Min(1, m.Score+s.weights.TextMatchBoost)
				delete(boosted[e.ContentID], e.ChunkIndex)
			}
			if !cs.hasFrm || m.Score > cs.frame.Score {
				cs.frame, cs.hasFrm = m, true
			}
			continue
		}
		if !cs.hasText || m.Score > cs.text.Score {
			cs.text, cs.hasText = m, true
		}
	}
	// Text matches on frames that have no embedding yet still count.
	for _, f := range textHits {
		if !boosted[f.ContentID][f.FrameIndex] {
			continue
		}
		cs := entry(f.ContentID)
		m := SearchMatch{Source: domain.EmbeddingSourceFrame, Text: frameText(f), Score: s.weights.TextMatchBoost, FrameIndex: f.FrameIndex}
		if !cs.hasFrm || m.Score > cs.frame.Score {
			cs.frame, cs.hasFrm = m, true
		}
	}

	results := make([]SearchResult, 0, len(scores))
	for id, cs := range scores {
		r := SearchResult{}
		if cs.hasText {
			r.Score += s.weights.Transcript * cs.text.Score
			r.Best = cs.text
		}
		if cs.hasFrm {
			r.Score += s.weights.Frame * cs.frame.Score
			frame := cs.frame
			r.Frame = &frame
			if !cs.hasText {
				r.Best = cs.frame
			}
		}
		r.Content = &domain.Content{ID: id}
		results = append(results, r)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Content.ID < results[j].Content.ID
	})

	out := make([]SearchResult, 0, limit)
	for _, r := range results {
		if len(out) == limit {
			break
		}
		c, err := s.contents.Get(ctx, r.Content.ID)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load content %s: %w", r.Content.ID, err)
		}
		if c.OrgID != orgID || c.IsDeleted() {
			continue
		}
		r.Content = c
		out = append(out, r)
	}
	return out, nil
}

func frameText(f *domain.Frame) string {
	return strings.TrimSpace(f.Description + "\n" + f.OCRText)
}

// CosineSimilarity returns 0 for empty or mismatched vectors.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
