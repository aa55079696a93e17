package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	DefaultUploadsSubDir = "uploads"
	DefaultTempSubDir    = "temp"
	DefaultFacesSubDir   = "faces"
	DefaultResultsSubDir = "results"
	DefaultSessionFile   = "last_faces_map.json"
)

const (
	SessionBackendFile   = "file"
	SessionBackendSQLite = "sqlite"

	RetentionRetain = "retain"
	RetentionPurge  = "purge"
)

const (
	defaultJanitorWorkers      = 1
	defaultFrameStride         = 5
	defaultMinFaceSize         = 40
	defaultFrontalSize         = 512
	defaultMaxUploadMB         = 512
	defaultTrackThreshold      = 0.6
	defaultMatchThreshold      = 0.5
	defaultDetectionConfidence = 0.5
)

type Config struct {
	// storage layout, all absolute
	DataDir       string
	UploadsSubDir string
	FacesSubDir   string // relative to DataDir, inside the temp area
	ResultsSubDir string
	UploadsPath   string
	FacesPath     string
	ResultsPath   string

	// public URL prefixes of served artifacts
	UploadsURLPrefix string
	FacesURLPrefix   string
	ResultsURLPrefix string

	// session persistence
	SessionBackend string
	SessionFile    string
	DatabasePath   string // artifact ledger, and sessions when SessionBackend is sqlite
	DBLogLevel     string

	// orphaned artifact handling
	ArtifactRetention string
	JanitorWorkers    int

	// face detection model paths (DNN)
	FaceDNNNetConfigPath string
	FaceDNNNetModelPath  string
	DetectionConfidence  float64

	// face recognition
	FaceRecognitionModelPath string
	FaceRecognitionModelName string
	GalleryDir               string
	MatchThreshold           float64

	// video extraction
	FrameStride              int
	MinFaceSize              int
	TrackSimilarityThreshold float64

	FrontalSize int

	// http
	Port               string
	CORSAllowedOrigins []string
	MaxUploadBytes     int64
}

func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvIntOrDefault(envVar string, defaultVal int) int {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil || val <= 0 {
		log.Printf("config: Warning: Invalid %s '%s'. Using default %d. Error: %v", envVar, valStr, defaultVal, err)
		return defaultVal
	}
	return val
}

func getEnvFloatOrDefault(envVar string, defaultVal float64) float64 {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.ParseFloat(valStr, 64)
	if err != nil || val <= 0 || val > 1 {
		log.Printf("config: Warning: Invalid %s '%s'. Using default %g. Error: %v", envVar, valStr, defaultVal, err)
		return defaultVal
	}
	return val
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func LoadConfig() (Config, error) {
	dataDir := getEnvOrDefault("DATA_DIR", filepath.Join(".", "data"))
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return Config{}, fmt.Errorf("failed to get absolute path for data directory '%s': %w", dataDir, err)
	}

	uploadsSubDir := getEnvOrDefault("UPLOADS_SUBDIR", DefaultUploadsSubDir)
	facesSubDir := filepath.Join(getEnvOrDefault("TEMP_SUBDIR", DefaultTempSubDir), getEnvOrDefault("FACES_SUBDIR", DefaultFacesSubDir))
	resultsSubDir := getEnvOrDefault("RESULTS_SUBDIR", DefaultResultsSubDir)
	for _, sub := range []string{uploadsSubDir, facesSubDir, resultsSubDir} {
		if filepath.IsAbs(sub) || strings.HasPrefix(filepath.Clean(sub), "..") {
			return Config{}, fmt.Errorf("storage subdirectory '%s' must be relative to DATA_DIR", sub)
		}
	}

	sessionFile := getEnvOrDefault("SESSION_FILE", filepath.Join(absDataDir, DefaultTempSubDir, DefaultSessionFile))
	absSessionFile, err := filepath.Abs(sessionFile)
	if err != nil {
		return Config{}, fmt.Errorf("failed to get absolute path for session file '%s': %w", sessionFile, err)
	}

	backend := strings.ToLower(getEnvOrDefault("SESSION_BACKEND", SessionBackendFile))
	if backend != SessionBackendFile && backend != SessionBackendSQLite {
		return Config{}, fmt.Errorf("invalid SESSION_BACKEND '%s': want %s or %s", backend, SessionBackendFile, SessionBackendSQLite)
	}

	retention := strings.ToLower(getEnvOrDefault("ARTIFACT_RETENTION", RetentionRetain))
	if retention != RetentionRetain && retention != RetentionPurge {
		return Config{}, fmt.Errorf("invalid ARTIFACT_RETENTION '%s': want %s or %s", retention, RetentionRetain, RetentionPurge)
	}

	cfg := Config{
		DataDir:       absDataDir,
		UploadsSubDir: uploadsSubDir,
		FacesSubDir:   facesSubDir,
		ResultsSubDir: resultsSubDir,
		UploadsPath:   filepath.Join(absDataDir, uploadsSubDir),
		FacesPath:     filepath.Join(absDataDir, facesSubDir),
		ResultsPath:   filepath.Join(absDataDir, resultsSubDir),

		UploadsURLPrefix: getEnvOrDefault("UPLOADS_URL_PREFIX", "/uploads"),
		FacesURLPrefix:   getEnvOrDefault("FACES_URL_PREFIX", "/temp/faces"),
		ResultsURLPrefix: getEnvOrDefault("RESULTS_URL_PREFIX", "/results"),

		SessionBackend: backend,
		SessionFile:    absSessionFile,
		DatabasePath:   getEnvOrDefault("DATABASE_PATH", filepath.Join(absDataDir, "facesession.db")),
		DBLogLevel:     getEnvOrDefault("DB_LOG_LEVEL", "warn"),

		ArtifactRetention: retention,
		JanitorWorkers:    getEnvIntOrDefault("JANITOR_WORKERS", defaultJanitorWorkers),

		FaceDNNNetConfigPath: getEnvOrDefault("FACE_DNN_CONFIG_PATH", "./models/deploy.prototxt.txt"),
		FaceDNNNetModelPath:  getEnvOrDefault("FACE_DNN_MODEL_PATH", "./models/res10_300x300_ssd_iter_140000_fp16.caffemodel"),
		DetectionConfidence:  getEnvFloatOrDefault("DETECTION_CONFIDENCE", defaultDetectionConfidence),

		FaceRecognitionModelPath: getEnvOrDefault("FACE_RECOGNITION_MODEL_PATH", "./models/arcface.onnx"),
		FaceRecognitionModelName: getEnvOrDefault("FACE_RECOGNITION_MODEL_NAME", "arcface"),
		GalleryDir:               getEnvOrDefault("GALLERY_DIR", filepath.Join(".", "gallery")),
		MatchThreshold:           getEnvFloatOrDefault("MATCH_THRESHOLD", defaultMatchThreshold),

		FrameStride:              getEnvIntOrDefault("FRAME_STRIDE", defaultFrameStride),
		MinFaceSize:              getEnvIntOrDefault("MIN_FACE_SIZE", defaultMinFaceSize),
		TrackSimilarityThreshold: getEnvFloatOrDefault("TRACK_SIMILARITY_THRESHOLD", defaultTrackThreshold),

		FrontalSize: getEnvIntOrDefault("FRONTAL_SIZE", defaultFrontalSize),

		Port:               getEnvOrDefault("PORT", "8000"),
		CORSAllowedOrigins: splitList(getEnvOrDefault("CORS_ALLOWED_ORIGINS", "*")),
		MaxUploadBytes:     int64(getEnvIntOrDefault("MAX_UPLOAD_MB", defaultMaxUploadMB)) << 20,
	}

	return cfg, nil
}
