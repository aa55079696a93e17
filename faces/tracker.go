package faces

// DefaultTrackThreshold is the similarity above which two detections are
// considered the same person.
const DefaultTrackThreshold = 0.6

// Tracker groups face embeddings seen across video frames into distinct
// tracks. Each track keeps the running mean of its members as representative.
// It is not safe for concurrent use.
type Tracker struct {
	threshold float32
	centroids [][]float32
	counts    []int
}

// NewTracker returns a Tracker joining detections whose similarity to a track
// is at least threshold. A non-positive threshold selects DefaultTrackThreshold.
func NewTracker(threshold float32) *Tracker {
	if threshold <= 0 {
		threshold = DefaultTrackThreshold
	}
	return &Tracker{threshold: threshold}
}

// Observe assigns embedding to the most similar existing track, or opens a
// new one. It returns the 0-based track index and whether the track is new.
// Track indices are assigned in order of first appearance.
func (t *Tracker) Observe(embedding []float32) (int, bool) {
	best := -1
	var bestScore float32
	for i, c := range t.centroids {
		score := CosineSimilarity(embedding, c)
		if score >= t.threshold && (best < 0 || score > bestScore) {
			best, bestScore = i, score
		}
	}

	if best < 0 {
		c := make([]float32, len(embedding))
		copy(c, Normalize(embedding))
		t.centroids = append(t.centroids, c)
		t.counts = append(t.counts, 1)
		return len(t.centroids) - 1, true
	}

	// running mean of unit vectors, renormalised
	n := float32(t.counts[best])
	unit := Normalize(embedding)
	c := t.centroids[best]
	for i := range c {
		c[i] = (c[i]*n + unit[i]) / (n + 1)
	}
	t.centroids[best] = Normalize(c)
	t.counts[best]++
	return best, false
}

// Len returns the number of distinct tracks seen so far.
func (t *Tracker) Len() int {
	return len(t.centroids)
}

// Count returns how many detections joined track idx.
func (t *Tracker) Count(idx int) int {
	if idx < 0 || idx >= len(t.counts) {
		return 0
	}
	return t.counts[idx]
}
