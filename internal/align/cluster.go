package align

import (
	"cmp"
	"slices"
	"strings"

	"github.com/MeKo-Tech/kvmap/internal/geometry"
	"github.com/MeKo-Tech/kvmap/internal/ocrwords"
)

// AutoValue is a line-level text run built from coarse OCR words,
// independently of the template.
type AutoValue struct {
	Text string
	BBox geometry.Box
}

func meanHeight(words []ocrwords.Word) float64 {
	if len(words) == 0 {
		return 0
	}
	var sum float64
	for _, w := range words {
		sum += w.BBox.Height()
	}
	return sum / float64(len(words))
}

// merge joins words left to right into one run.
func merge(words []ocrwords.Word) AutoValue {
	sorted := slices.Clone(words)
	slices.SortStableFunc(sorted, func(a, b ocrwords.Word) int {
		return cmp.Compare(a.BBox.MinX, b.BBox.MinX)
	})
	boxes := make([]geometry.Box, len(sorted))
	texts := make([]string, len(sorted))
	for i, w := range sorted {
		boxes[i] = w.BBox
		texts[i] = w.Text
	}
	return AutoValue{Text: strings.Join(texts, " "), BBox: geometry.Union(boxes...)}
}

// ClusterLines groups coarse words into horizontal runs. Two words share a
// line when their vertical centres differ by less than sameLine times the
// mean word height; a word joins a run when its gap to the run's last word
// is between 0 and the mean word height.
func ClusterLines(words []ocrwords.Word, sameLine float64) []AutoValue {
	if len(words) == 0 {
		return nil
	}
	avg := meanHeight(words)
	maxGap := avg
	lineTol := avg * sameLine

	sorted := slices.Clone(words)
	slices.SortStableFunc(sorted, func(a, b ocrwords.Word) int {
		if c := cmp.Compare(a.BBox.Center().Y, b.BBox.Center().Y); c != 0 {
			return c
		}
		return cmp.Compare(a.BBox.MinX, b.BBox.MinX)
	})

	used := make([]bool, len(sorted))
	var runs []AutoValue
	for i := range sorted {
		if used[i] {
			continue
		}
		used[i] = true
		cluster := []ocrwords.Word{sorted[i]}
		last := sorted[i]
		for j := i + 1; j < len(sorted); j++ {
			if used[j] {
				continue
			}
			cur := sorted[j]
			dy := cur.BBox.Center().Y - last.BBox.Center().Y
			if dy < 0 {
				dy = -dy
			}
			if dy >= lineTol {
				continue
			}
			if gap := cur.BBox.MinX - last.BBox.MaxX; gap >= 0 && gap <= maxGap {
				cluster = append(cluster, cur)
				used[j] = true
				last = cur
			}
		}
		runs = append(runs, merge(cluster))
	}
	return runs
}

// SplitLines orders words top to bottom and splits them wherever the gap
// between a word's top and the previous word's bottom exceeds factor times
// the mean word height. Each group is returned as one merged run.
func SplitLines(words []ocrwords.Word, factor float64) []AutoValue {
	if len(words) == 0 {
		return nil
	}
	sorted := slices.Clone(words)
	slices.SortStableFunc(sorted, func(a, b ocrwords.Word) int {
		return cmp.Compare(a.BBox.MinY, b.BBox.MinY)
	})
	threshold := meanHeight(sorted) * factor

	var runs []AutoValue
	start := 0
	for i := 1; i < len(sorted); i++ {
		if sorted[i].BBox.MinY-sorted[i-1].BBox.MaxY > threshold {
			runs = append(runs, merge(sorted[start:i]))
			start = i
		}
	}
	return append(runs, merge(sorted[start:]))
}
