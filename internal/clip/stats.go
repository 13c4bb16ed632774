package clip

import (
	"cmp"
	"context"
	"slices"

	"github.com/Kai-project-00/clipgo/internal/domain"
	"github.com/Kai-project-00/clipgo/internal/textutil"
)

// Similar is a clip ranked by its similarity to another.
type Similar struct {
	Clip       domain.Clip `json:"clip"`
	Similarity float64     `json:"similarity"`
}

// FindSimilarClips ranks the other clips by word-set similarity to clipID,
// most similar first, keeping those above SimilarityFloor. A non-positive
// limit means DefaultSimilarLimit.
func (m *Manager) FindSimilarClips(ctx context.Context, clipID string, limit int) ([]Similar, error) {
	target, err := m.GetClip(ctx, clipID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultSimilarLimit
	}
	clips, err := m.all(ctx)
	if err != nil {
		return nil, err
	}

	words := textutil.WordSet(target.Text)
	out := []Similar{}
	for _, c := range clips {
		if c.ID == clipID {
			continue
		}
		if sim := textutil.Jaccard(words, textutil.WordSet(c.Text)); sim > SimilarityFloor {
			out = append(out, Similar{Clip: c, Similarity: sim})
		}
	}
	slices.SortStableFunc(out, func(a, b Similar) int { return cmp.Compare(b.Similarity, a.Similarity) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Stats aggregates the clip collection.
type Stats struct {
	TotalClips      int `json:"totalClips"`
	TotalWords      int `json:"totalWords"`
	TotalCharacters int `json:"totalCharacters"`

	// AverageReadingTime is in minutes.
	AverageReadingTime float64 `json:"averageReadingTime"`

	Sources    map[string]int `json:"sources"`
	Languages  map[string]int `json:"languages"`
	Importance map[string]int `json:"importance"`
	Tags       map[string]int `json:"tags"`
	Categories map[string]int `json:"categories"`
}

// GetClipStats counts clips by source, language, importance, tag and
// category, and sums their metadata.
func (m *Manager) GetClipStats(ctx context.Context) (Stats, error) {
	if err := m.ensureInit(); err != nil {
		return Stats{}, err
	}
	clips, err := m.all(ctx)
	if err != nil {
		return Stats{}, err
	}
	return computeStats(clips), nil
}

func computeStats(clips []domain.Clip) Stats {
	s := Stats{
		TotalClips: len(clips),
		Sources:    make(map[string]int),
		Languages:  make(map[string]int),
		Importance: make(map[string]int),
		Tags:       make(map[string]int),
		Categories: make(map[string]int),
	}
	reading := 0
	for _, c := range clips {
		s.TotalWords += c.Metadata.WordCount
		s.TotalCharacters += c.Metadata.CharacterCount
		reading += c.Metadata.EstimatedReadingTime

		s.Sources[string(c.Source)]++
		s.Languages[cmp.Or(c.Language, "unknown")]++
		s.Importance[string(cmp.Or(c.Importance, domain.ImportanceNormal))]++
		for _, t := range c.Tags {
			s.Tags[t]++
		}
		for _, catID := range c.CategoryIDs {
			s.Categories[catID]++
		}
	}
	if len(clips) > 0 {
		s.AverageReadingTime = float64(reading) / float64(len(clips))
	}
	return s
}
