package cmd

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/camden-git/facesession/config"
	"github.com/camden-git/facesession/database"
	"github.com/camden-git/facesession/media"
	"github.com/camden-git/facesession/repository"
	"github.com/camden-git/facesession/services"
	"github.com/camden-git/facesession/session"
	"github.com/camden-git/facesession/vision"
	"github.com/camden-git/facesession/workers"
	"github.com/gofrs/flock"
	"gorm.io/gorm"
)

// app holds the components shared by every command.
type app struct {
	cfg      config.Config
	storage  *media.LocalStorage
	sessions *session.Manager
	ledgerDB *sql.DB
	ledger   *database.Ledger
	gormDB   *gorm.DB
	janitor  *workers.Janitor

	detector    *vision.DNNFaceDetector
	model       *vision.FaceRecognitionModel
	extractor   *vision.VideoFaceExtractor
	identifier  *vision.GalleryIdentifier
	frontalizer *media.Frontalizer
}

func newApp(cfg config.Config) (*app, error) {
	a := &app{cfg: cfg}

	storage, err := media.NewLocalStorage(cfg.DataDir,
		map[media.AssetType]string{
			media.AssetTypeUpload: cfg.UploadsSubDir,
			media.AssetTypeFace:   cfg.FacesSubDir,
			media.AssetTypeResult: cfg.ResultsSubDir,
		},
		map[media.AssetType]string{
			media.AssetTypeUpload: cfg.UploadsURLPrefix,
			media.AssetTypeFace:   cfg.FacesURLPrefix,
			media.AssetTypeResult: cfg.ResultsURLPrefix,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize media store: %w", err)
	}
	a.storage = storage

	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	a.ledgerDB, err = database.InitDB(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize artifact ledger: %w", err)
	}
	a.ledger = database.NewLedger(a.ledgerDB)

	switch cfg.SessionBackend {
	case config.SessionBackendSQLite:
		a.gormDB, err = database.InitGormDB(cfg.DatabasePath, database.ParseLogLevel(cfg.DBLogLevel))
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to initialize session database: %w", err)
		}
		if err := database.AutoMigrateModels(a.gormDB); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to migrate session database: %w", err)
		}
		var repo repository.SessionRepositoryInterface = repository.NewSessionRepository(a.gormDB)
		a.sessions = session.NewManager(repo, flock.New(cfg.DatabasePath+".session.lock"))
		log.Printf("bootstrap: sessions stored in %s", cfg.DatabasePath)
	default:
		store, err := session.NewFileStore(cfg.SessionFile)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to initialize session file: %w", err)
		}
		a.sessions = session.NewManager(store, store.Locker())
		log.Printf("bootstrap: sessions stored in %s", cfg.SessionFile)
	}

	if cfg.ArtifactRetention == config.RetentionPurge {
		a.janitor = workers.NewJanitor(a.sessions, a.ledger, a.storage, cfg.JanitorWorkers)
	}
	return a, nil
}

// loadVision loads the detection and recognition networks. Commands that
// only read the session skip it.
func (a *app) loadVision() {
	a.detector = vision.NewDNNFaceDetector(a.cfg.FaceDNNNetConfigPath, a.cfg.FaceDNNNetModelPath, float32(a.cfg.DetectionConfidence))
	a.model = vision.NewFaceRecognitionModel(a.cfg.FaceRecognitionModelPath, a.cfg.FaceRecognitionModelName)
	a.extractor = vision.NewVideoFaceExtractor(a.detector, a.model, vision.ExtractorOptions{
		FrameStride:    a.cfg.FrameStride,
		TrackThreshold: float32(a.cfg.TrackSimilarityThreshold),
		MinFaceSize:    a.cfg.MinFaceSize,
		CropPadding:    vision.DefaultCropPadding,
	})
	a.identifier = vision.NewGalleryIdentifier(a.cfg.GalleryDir, a.detector, a.model, float32(a.cfg.MatchThreshold))
	a.frontalizer = media.NewFrontalizer(a.cfg.FrontalSize)
}

func (a *app) purger(inline bool) services.PurgeRequester {
	if a.janitor == nil {
		return nil
	}
	if inline {
		return inlinePurge{a.janitor}
	}
	return a.janitor
}

// events must be a nil interface, not a typed nil, when nothing listens.
func (a *app) ingestion(events services.EventPublisher, purger services.PurgeRequester) *services.IngestionService {
	return services.NewIngestionService(a.sessions, a.storage, a.extractor, a.ledger, events, purger)
}

func (a *app) identification(events services.EventPublisher) *services.IdentificationService {
	return services.NewIdentificationService(a.sessions, a.storage, a.identifier, a.frontalizer, a.ledger, events)
}

func (a *app) Close() {
	if a.janitor != nil {
		a.janitor.Stop()
	}
	if a.detector != nil {
		a.detector.Close()
	}
	if a.model != nil {
		a.model.Close()
	}
	if a.gormDB != nil {
		if sqlDB, err := a.gormDB.DB(); err == nil {
			sqlDB.Close()
		}
	}
	if a.ledgerDB != nil {
		a.ledgerDB.Close()
	}
}

// inlinePurge runs the purge before returning so a short-lived command does
// not exit with it still queued.
type inlinePurge struct {
	j *workers.Janitor
}

func (p inlinePurge) RequestPurge() bool {
	stats, err := p.j.Purge()
	if err != nil {
		log.Printf("janitor: purge failed: %v", err)
		return false
	}
	log.Printf("janitor: purged %d of %d orphaned artifact(s)", stats.Deleted, stats.Listed)
	return true
}
