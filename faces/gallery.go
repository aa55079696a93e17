package faces

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/facette/natsort"
)

// FrontalPrefix marks reference images that show a person facing the camera.
const FrontalPrefix = "frontal"

var supportedImageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".bmp": true, ".tif": true, ".tiff": true,
}

// IsRasterImage checks if the filename has a common raster image extension
func IsRasterImage(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return supportedImageExtensions[ext]
}

// Person is one known identity in the reference gallery.
type Person struct {
	Name string
	// References are every reference image of the person, natural order.
	References []string
	// FrontalCandidates are the references named frontal*, natural order;
	// the first is the preferred frontal image.
	FrontalCandidates []string
}

// ScanGallery reads a gallery laid out as <dir>/<person>/<image>. People and
// images are returned in natural order. Directories without images are skipped.
func ScanGallery(dir string) ([]Person, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read gallery directory '%s': %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			names = append(names, e.Name())
		}
	}
	natsort.Sort(names)

	var people []Person
	for _, name := range names {
		personDir := filepath.Join(dir, name)
		files, err := os.ReadDir(personDir)
		if err != nil {
			return nil, fmt.Errorf("failed to read gallery entry '%s': %w", personDir, err)
		}

		var images []string
		for _, f := range files {
			if f.Type().IsRegular() && IsRasterImage(f.Name()) && !strings.HasPrefix(f.Name(), ".") {
				images = append(images, f.Name())
			}
		}
		if len(images) == 0 {
			continue
		}
		natsort.Sort(images)

		p := Person{Name: name}
		for _, img := range images {
			full := filepath.Join(personDir, img)
			p.References = append(p.References, full)
			if strings.HasPrefix(strings.ToLower(img), FrontalPrefix) {
				p.FrontalCandidates = append(p.FrontalCandidates, full)
			}
		}
		people = append(people, p)
	}
	return people, nil
}
