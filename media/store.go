package media

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// LocalStorage keeps every asset type in its own directory under one base path.
type LocalStorage struct {
	basePath        string               // absolute path to DATA_DIR
	resolvedPathMap map[AssetType]string // maps AssetType to full absolute path
	urlPrefixMap    map[AssetType]string // maps AssetType to the URL prefix it is served under
}

// NewLocalStorage creates a new local filesystem store. urlPrefixes gives the
// public URL prefix of each asset type that is served over HTTP.
func NewLocalStorage(basePath string, subDirs map[AssetType]string, urlPrefixes map[AssetType]string) (*LocalStorage, error) {
	absBasePath, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("invalid base storage path '%s': %w", basePath, err)
	}

	if err := os.MkdirAll(absBasePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base storage directory '%s': %w", absBasePath, err)
	}

	resolvedPaths := make(map[AssetType]string)
	for assetType, subDir := range subDirs {
		fullPath := filepath.Join(absBasePath, subDir)
		if !isWithin(absBasePath, fullPath) || filepath.Clean(fullPath) == absBasePath {
			return nil, fmt.Errorf("invalid subdirectory configuration: '%s' resolves outside base path '%s'", subDir, absBasePath)
		}
		resolvedPaths[assetType] = fullPath
	}

	prefixes := make(map[AssetType]string)
	for assetType, prefix := range urlPrefixes {
		prefixes[assetType] = "/" + strings.Trim(prefix, "/")
	}

	log.Printf("media.store: Initialized LocalStorage at %s", absBasePath)
	return &LocalStorage{
		basePath:        absBasePath,
		resolvedPathMap: resolvedPaths,
		urlPrefixMap:    prefixes,
	}, nil
}

// BasePath returns the absolute storage root.
func (ls *LocalStorage) BasePath() string {
	return ls.basePath
}

// Dir resolves the absolute directory of an asset type.
func (ls *LocalStorage) Dir(assetType AssetType) (string, error) {
	dirPath, ok := ls.resolvedPathMap[assetType]
	if !ok {
		return "", fmt.Errorf("asset type '%s' is not configured", assetType)
	}
	return dirPath, nil
}

// EnsureDir creates the directory for the asset type if it doesn't exist
func (ls *LocalStorage) EnsureDir(assetType AssetType) (string, error) {
	dirPath, err := ls.Dir(assetType)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return "", fmt.Errorf("failed to ensure directory '%s': %w", dirPath, err)
	}
	return dirPath, nil
}

// SanitizeFilename reduces a client supplied name to a bare file name.
func SanitizeFilename(name string) (string, error) {
	base := filepath.Base(filepath.FromSlash(strings.ReplaceAll(name, "\\", "/")))
	base = strings.TrimSpace(base)
	if base == "" || base == "." || base == ".." || base == string(filepath.Separator) {
		return "", fmt.Errorf("invalid file name '%s'", name)
	}
	base = strings.Map(func(r rune) rune {
		switch {
		case r < 0x20, r == '/', r == '\\', r == ':':
			return '_'
		}
		return r
	}, base)
	return base, nil
}

// SaveUpload stores an uploaded video as "<uuid>_<name>" and returns its full
// path. Two uploads never collide, even with identical names.
func (ls *LocalStorage) SaveUpload(name string, data io.Reader) (string, error) {
	base, err := SanitizeFilename(name)
	if err != nil {
		return "", err
	}
	return ls.save(AssetTypeUpload, uuid.NewString()+"_"+base, data)
}

func (ls *LocalStorage) save(assetType AssetType, filename string, data io.Reader) (string, error) {
	targetDir, err := ls.EnsureDir(assetType)
	if err != nil {
		return "", err
	}
	fullSavePath := filepath.Join(targetDir, filename)
	if filepath.Dir(fullSavePath) != targetDir {
		return "", fmt.Errorf("invalid file name '%s'", filename)
	}

	outFile, err := os.Create(fullSavePath)
	if err != nil {
		return "", fmt.Errorf("failed to create destination file '%s': %w", fullSavePath, err)
	}

	if _, err := io.Copy(outFile, data); err != nil {
		outFile.Close()
		os.Remove(fullSavePath)
		return "", fmt.Errorf("failed to write data to '%s': %w", fullSavePath, err)
	}
	if err := outFile.Close(); err != nil {
		os.Remove(fullSavePath)
		return "", fmt.Errorf("failed to close '%s': %w", fullSavePath, err)
	}

	log.Printf("media.store: Saved asset to %s", fullSavePath)
	return fullSavePath, nil
}

// ResetDir empties the directory of an asset type and recreates it.
func (ls *LocalStorage) ResetDir(assetType AssetType) (string, error) {
	dirPath, err := ls.Dir(assetType)
	if err != nil {
		return "", err
	}
	if err := os.RemoveAll(dirPath); err != nil {
		return "", fmt.Errorf("failed to clear directory '%s': %w", dirPath, err)
	}
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return "", fmt.Errorf("failed to recreate directory '%s': %w", dirPath, err)
	}
	log.Printf("media.store: Reset %s directory %s", assetType, dirPath)
	return dirPath, nil
}

// PublicURL derives the URL a file of the given asset type is served under.
// Only the base name is used, so nested or absolute paths map to the same URL.
func (ls *LocalStorage) PublicURL(assetType AssetType, fullPath string) string {
	prefix, ok := ls.urlPrefixMap[assetType]
	if !ok {
		log.Printf("media.store: Warning - no URL prefix configured for asset type '%s'", assetType)
		prefix = "/" + string(assetType)
	}
	return path.Join(prefix, filepath.Base(fullPath))
}

// Delete removes a file inside the storage root. Missing files are not an error.
func (ls *LocalStorage) Delete(fullPath string) error {
	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return fmt.Errorf("failed to get absolute path for '%s': %w", fullPath, err)
	}
	if !isWithin(ls.basePath, absPath) || absPath == ls.basePath {
		return fmt.Errorf("invalid path: access denied for '%s'", fullPath)
	}

	err = os.Remove(absPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete asset '%s': %w", fullPath, err)
	}
	if err == nil {
		log.Printf("media.store: Deleted asset %s", absPath)
	}
	return nil
}

func isWithin(base, target string) bool {
	rel, err := filepath.Rel(base, filepath.Clean(target))
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
