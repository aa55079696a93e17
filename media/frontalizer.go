package media

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

const (
	FrontalJpegQuality   = 90
	FrontalFileSuffix    = "_frontal"
	FrontalFileExtension = ".jpg"
	DefaultFrontalSize   = 512
)

// Frontalizer turns a frontal reference image into the per-track result
// image: EXIF orientation applied, fitted into a square box, encoded as JPEG.
type Frontalizer struct {
	size int
}

// NewFrontalizer returns a Frontalizer fitting results into size x size pixels.
func NewFrontalizer(size int) *Frontalizer {
	if size <= 0 {
		size = DefaultFrontalSize
	}
	return &Frontalizer{size: size}
}

// FrontalFilename is the result file name for a track. The same track always
// maps to the same name, so a repeated identification overwrites its result.
func FrontalFilename(trackID string) string {
	return trackID + FrontalFileSuffix + FrontalFileExtension
}

// Frontalize writes the result for trackID into outputDir and returns its full path.
func (f *Frontalizer) Frontalize(candidatePath, outputDir, trackID string) (string, error) {
	if trackID == "" || strings.ContainsAny(trackID, `/\`) || trackID == "." || trackID == ".." {
		return "", fmt.Errorf("invalid track id '%s'", trackID)
	}

	img, err := imaging.Open(candidatePath, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("failed to open frontal candidate '%s': %w", candidatePath, err)
	}
	if b := img.Bounds(); b.Dx() <= 0 || b.Dy() <= 0 {
		return "", fmt.Errorf("invalid candidate image dimensions: %dx%d", b.Dx(), b.Dy())
	}

	fitted := imaging.Fit(img, f.size, f.size, imaging.Lanczos)

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to ensure output directory '%s': %w", outputDir, err)
	}
	target := filepath.Join(outputDir, FrontalFilename(trackID))

	tmp, err := os.CreateTemp(outputDir, "."+FrontalFilename(trackID)+"-*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file for frontal image: %w", err)
	}
	tmpName := tmp.Name()
	if err := imaging.Encode(tmp, fitted, imaging.JPEG, imaging.JPEGQuality(FrontalJpegQuality)); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to encode frontal image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to close frontal image: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to move frontal image into place: %w", err)
	}

	log.Printf("frontalizer: Wrote %s from %s (%dx%d)", target, candidatePath, fitted.Bounds().Dx(), fitted.Bounds().Dy())
	return target, nil
}
