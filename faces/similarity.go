// Package faces holds the pure parts of face matching: embedding similarity,
// track deduplication across video frames, and the reference gallery.
package faces

import "math"

// CosineSimilarity calculates cosine similarity between two embeddings. It
// returns 0 for vectors of different or zero length and for zero vectors.
func CosineSimilarity(embedding1, embedding2 []float32) float32 {
	if len(embedding1) != len(embedding2) || len(embedding1) == 0 {
		return 0.0
	}

	var dotProduct float32
	var norm1 float32
	var norm2 float32

	for i := 0; i < len(embedding1); i++ {
		dotProduct += embedding1[i] * embedding2[i]
		norm1 += embedding1[i] * embedding1[i]
		norm2 += embedding2[i] * embedding2[i]
	}

	if norm1 == 0 || norm2 == 0 {
		return 0.0
	}

	norm1Sqrt := float32(math.Sqrt(float64(norm1)))
	norm2Sqrt := float32(math.Sqrt(float64(norm2)))

	return dotProduct / (norm1Sqrt * norm2Sqrt)
}

// Normalize returns embedding scaled to unit length. A zero vector is returned unchanged.
func Normalize(embedding []float32) []float32 {
	var norm float32
	for _, val := range embedding {
		norm += val * val
	}
	if norm == 0 {
		return embedding
	}
	norm = float32(math.Sqrt(float64(norm)))

	normalized := make([]float32, len(embedding))
	for i, val := range embedding {
		normalized[i] = val / norm
	}
	return normalized
}
