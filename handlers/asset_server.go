package handlers

import (
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// AssetServer serves files from dir for requests under routePrefix, e.g.
//
//	r.Get("/results/*", AssetServer("/results", resultsDir))
//
// Only files directly inside dir are reachable.
func AssetServer(routePrefix, dir string) http.HandlerFunc {
	fullAssetDirPath := filepath.Clean(dir)
	routePrefix = "/" + strings.Trim(routePrefix, "/") + "/"
	log.Printf("handlers: serving assets for '%s*' from directory: %s", routePrefix, fullAssetDirPath)

	return func(w http.ResponseWriter, r *http.Request) {
		relativePath := strings.TrimPrefix(r.URL.Path, routePrefix)
		if relativePath == "" || relativePath == r.URL.Path || strings.Contains(relativePath, "..") ||
			strings.ContainsAny(relativePath, `/\`) {
			http.Error(w, "Invalid asset path", http.StatusBadRequest)
			return
		}

		cleanedAssetPath := filepath.Join(fullAssetDirPath, relativePath)
		if filepath.Dir(cleanedAssetPath) != fullAssetDirPath {
			http.Error(w, "Forbidden", http.StatusForbidden)
			log.Printf("handlers: SECURITY: attempted asset access outside designated directory: Request='%s', Resolved='%s'",
				r.URL.Path, cleanedAssetPath)
			return
		}

		info, err := os.Stat(cleanedAssetPath)
		if os.IsNotExist(err) || (err == nil && info.IsDir()) {
			http.NotFound(w, r)
			return
		} else if err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			log.Printf("handlers: error stating asset file %s: %v", cleanedAssetPath, err)
			return
		}

		// artifacts keep their names across sessions, so clients must revalidate
		w.Header().Set("Cache-Control", "no-cache")
		http.ServeFile(w, r, cleanedAssetPath)
	}
}
