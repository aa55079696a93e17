package faces

import "github.com/camden-git/facesession/models"

// DefaultMatchThreshold is the lowest similarity reported as a named match.
const DefaultMatchThreshold = 0.5

// Reference is one embedded gallery image.
type Reference struct {
	Person    string
	Embedding []float32
}

// Match is the outcome of comparing a face against the gallery.
type Match struct {
	Name  string
	Score float32
	// Index of the matched person in the gallery, -1 when unmatched.
	Index int
}

// BestMatch compares query against every reference and returns the person
// with the highest similarity. A person scores as their best reference. When
// the best score is below threshold the name is models.UnknownMatch, Index is
// -1 and Score still carries the best similarity seen. Ties go to the person
// listed first.
func BestMatch(query []float32, people []string, refs []Reference, threshold float32) Match {
	index := make(map[string]int, len(people))
	for i, name := range people {
		if _, ok := index[name]; !ok {
			index[name] = i
		}
	}

	best := Match{Name: models.UnknownMatch, Index: -1}
	bestIdx := -1
	var bestScore float32
	for _, ref := range refs {
		idx, ok := index[ref.Person]
		if !ok {
			continue
		}
		score := CosineSimilarity(query, ref.Embedding)
		if bestIdx < 0 || score > bestScore || (score == bestScore && idx < bestIdx) {
			bestIdx, bestScore = idx, score
		}
	}
	if bestIdx < 0 {
		return best
	}

	best.Score = bestScore
	if bestScore >= threshold {
		best.Name = people[bestIdx]
		best.Index = bestIdx
	}
	return best
}

// Identification is the result of identifying one face image: the best
// matching person, the similarity score, and that person's frontal reference
// images in preference order. FrontalCandidates is empty for an unknown face.
type Identification struct {
	Name              string
	Score             float64
	FrontalCandidates []string
}
