package vision

import (
	"errors"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/camden-git/facesession/faces"
	"gocv.io/x/gocv"
)

// GalleryIdentifier names faces by comparing them with the reference gallery.
// The gallery is embedded on first use; Reload forces a rescan.
type GalleryIdentifier struct {
	galleryDir string
	detector   *DNNFaceDetector
	model      *FaceRecognitionModel
	threshold  float32

	mu     sync.Mutex
	loaded bool
	people []faces.Person
	names  []string
	refs   []faces.Reference
}

// NewGalleryIdentifier returns an identifier over galleryDir. detector may be
// nil, in which case gallery images are embedded whole instead of by their
// largest face.
func NewGalleryIdentifier(galleryDir string, detector *DNNFaceDetector, model *FaceRecognitionModel, threshold float32) *GalleryIdentifier {
	if threshold <= 0 {
		threshold = faces.DefaultMatchThreshold
	}
	return &GalleryIdentifier{
		galleryDir: galleryDir,
		detector:   detector,
		model:      model,
		threshold:  threshold,
	}
}

// Reload rescans and re-embeds the gallery.
func (g *GalleryIdentifier) Reload() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.loaded = false
	return g.loadLocked()
}

func (g *GalleryIdentifier) loadLocked() error {
	if g.loaded {
		return nil
	}
	people, err := faces.ScanGallery(g.galleryDir)
	if err != nil {
		return err
	}

	var refs []faces.Reference
	names := make([]string, 0, len(people))
	for _, p := range people {
		names = append(names, p.Name)
		for _, refPath := range p.References {
			embedding, err := g.embedFile(refPath, true)
			if err != nil {
				log.Printf("vision.identifier: skipping reference %s: %v", refPath, err)
				continue
			}
			refs = append(refs, faces.Reference{Person: p.Name, Embedding: embedding})
		}
	}

	g.people, g.names, g.refs = people, names, refs
	g.loaded = true
	log.Printf("vision.identifier: loaded %d reference embedding(s) for %d people from %s", len(refs), len(people), g.galleryDir)
	return nil
}

// embedFile embeds an image. With detect set and a detector loaded, only the
// largest face in the image is used.
func (g *GalleryIdentifier) embedFile(path string, detect bool) ([]float32, error) {
	img := gocv.IMRead(path, gocv.IMReadColor)
	if img.Empty() {
		return nil, fmt.Errorf("failed to read image file: %s", path)
	}
	defer img.Close()

	if detect && g.detector != nil && g.detector.Enabled {
		if det, ok := largest(g.detector.Detect(img)); ok {
			region := img.Region(rectOf(det))
			defer region.Close()
			return g.model.Embed(region)
		}
	}
	return g.model.Embed(img)
}

// Identify returns the best matching gallery person for a face crop.
func (g *GalleryIdentifier) Identify(imagePath string) (faces.Identification, error) {
	if g.model == nil || !g.model.Enabled {
		return faces.Identification{}, ErrRecognitionDisabled
	}
	if _, err := os.Stat(imagePath); err != nil {
		return faces.Identification{}, fmt.Errorf("cannot read face image: %w", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.loadLocked(); err != nil {
		return faces.Identification{}, fmt.Errorf("failed to load gallery: %w", err)
	}
	if len(g.refs) == 0 {
		return faces.Identification{}, errors.New("gallery has no usable reference images")
	}

	embedding, err := g.embedFile(imagePath, false)
	if err != nil {
		return faces.Identification{}, err
	}

	match := faces.BestMatch(embedding, g.names, g.refs, g.threshold)
	result := faces.Identification{Name: match.Name, Score: float64(match.Score)}
	if match.Index >= 0 {
		result.FrontalCandidates = append([]string(nil), g.people[match.Index].FrontalCandidates...)
	}
	log.Printf("vision.identifier: %s -> %s (%.3f, %d frontal candidate(s))", imagePath, result.Name, result.Score, len(result.FrontalCandidates))
	return result, nil
}
