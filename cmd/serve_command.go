package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camden-git/facesession/config"
	"github.com/camden-git/facesession/handlers"
	"github.com/camden-git/facesession/realtime"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/spf13/cobra"
)

func newServeCommand() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if port != "" {
				cfg.Port = port
			}
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			a.loadVision()

			hub := realtime.NewHub()
			go hub.Run()
			defer hub.Stop()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, newRouter(cfg, a, hub))
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "Listen port (overrides PORT)")
	return cmd
}

func newRouter(cfg config.Config, a *app, hub *realtime.Hub) http.Handler {
	r := chi.NewRouter()

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-CSRF-Token"},
		AllowCredentials: false,
		MaxAge:           300,
	})

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(corsHandler.Handler)

	sessionHandler := &handlers.SessionHandler{
		Ingestion:      a.ingestion(hub, a.purger(false)),
		Identification: a.identification(hub),
		Sessions:       a.sessions,
		MaxUploadBytes: cfg.MaxUploadBytes,
	}
	r.Group(func(r chi.Router) {
		// detection and identification run for as long as the video takes
		r.Use(middleware.Timeout(10 * time.Minute))
		sessionHandler.Mount(r)
	})

	(&handlers.GalleryHandler{Gallery: a.identifier}).Mount(r)
	r.Get("/api/events", hub.ServeWS)

	for _, asset := range []struct{ prefix, dir string }{
		{cfg.UploadsURLPrefix, cfg.UploadsPath},
		{cfg.FacesURLPrefix, cfg.FacesPath},
		{cfg.ResultsURLPrefix, cfg.ResultsPath},
	} {
		r.Get(asset.prefix+"/*", handlers.AssetServer(asset.prefix, asset.dir))
	}
	return r
}

func serve(ctx context.Context, cfg config.Config, h http.Handler) error {
	serverAddr := ":" + cfg.Port
	server := &http.Server{
		Addr:              serverAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Printf("Server starting on http://localhost:%s\n", cfg.Port)
		log.Printf("Server listening on %s", serverAddr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		log.Println("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}
