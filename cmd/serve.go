package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lensview/insight/internal/model"
	"github.com/lensview/insight/internal/pipeline"
	"github.com/lensview/insight/internal/store"
	"github.com/lensview/insight/internal/usage"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initApp(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut},
			AllowedHeaders: []string{"Accept", "Content-Type", "Authorization"},
		}))

		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Post("/v1/content", handleCreateContent(env))
		r.Post("/v1/process", handleProcess(env))
		r.Put("/v1/owners/{ownerID}/preferences", handleSetPreferences(env))

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

type createContentRequest struct {
	URL     string            `json:"url"`
	Type    string            `json:"type"`
	OwnerID string            `json:"ownerId"`
	Title   string            `json:"title,omitempty"`
	Text    string            `json:"text,omitempty"` // for uploaded documents
	Meta    map[string]string `json:"metadata,omitempty"`
}

func handleCreateContent(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createContentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.URL == "" || req.OwnerID == "" {
			writeError(w, http.StatusBadRequest, "url and ownerId are required")
			return
		}

		item := &model.ContentItem{
			ID:                 uuid.New().String(),
			URL:                model.NormalizeURL(req.URL),
			Type:               model.ContentType(req.Type),
			OwnerID:            req.OwnerID,
			Title:              req.Title,
			RawText:            req.Text,
			StructuredMetadata: req.Meta,
			AnalysisLanguage:   model.DefaultLanguage,
		}
		switch item.Type {
		case model.TypeVideo, model.TypeArticle, model.TypePodcast, model.TypeDocument, model.TypeSocialPost:
		default:
			writeError(w, http.StatusBadRequest, "unknown content type")
			return
		}

		if err := env.Store.CreateContentItem(r.Context(), item); err != nil {
			zap.L().Error("content item not created", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "content item could not be created")
			return
		}

		writeJSON(w, http.StatusCreated, map[string]string{"contentId": item.ID})
	}
}

func handleProcess(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req model.ProcessRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.ContentID == "" {
			writeError(w, http.StatusBadRequest, "contentId is required")
			return
		}

		if !allowRate(r, env.Limiter, req.OwnerID) {
			writeError(w, http.StatusTooManyRequests, "too many requests")
			return
		}

		resp, err := env.Pipeline.Process(r.Context(), req)
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "content not found")
		case errors.Is(err, pipeline.ErrQuotaExceeded):
			writeJSON(w, http.StatusForbidden, resp)
		case err != nil:
			zap.L().Error("process failed",
				zap.String("content_id", req.ContentID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "processing failed")
		default:
			// Recoverable content problems ride a 200 with Success=false.
			writeJSON(w, http.StatusOK, resp)
		}
	}
}

// handleSetPreferences stores the free-text analysis preferences injected
// into the owner's prompts.
func handleSetPreferences(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID := chi.URLParam(r, "ownerID")
		var req struct {
			Preferences string `json:"preferences"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if err := env.Store.SetOwnerPreferences(r.Context(), ownerID, req.Preferences); err != nil {
			zap.L().Error("owner preferences not saved",
				zap.String("owner_id", ownerID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "preferences could not be saved")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"ownerId": ownerID})
	}
}

func allowRate(r *http.Request, limiter usage.RateLimiter, ownerID string) bool {
	if limiter == nil {
		return true
	}
	key := ownerID
	if key == "" {
		key = r.RemoteAddr
	}
	allowed, err := limiter.Allow(r.Context(), key)
	if err != nil {
		zap.L().Warn("rate limiter unavailable, allowing request", zap.Error(err))
		return true
	}
	return allowed
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
