package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/LW1989/red-data-database/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the computed statistics over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(st),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// newRouter builds the stats API router.
func newRouter(st store.Store) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if err := st.Ping(req.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "store unreachable")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/api/stats", func(w http.ResponseWriter, req *http.Request) {
		filter, err := parseStatFilter(req)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		rows, err := st.ListStatistics(req.Context(), filter)
		if err != nil {
			zap.L().Error("list statistics failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "list statistics failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"limit":  filter.Limit,
			"offset": filter.Offset,
			"stats":  rows,
		})
	})

	r.Get("/api/stats/{propertyID}", func(w http.ResponseWriter, req *http.Request) {
		propertyID := chi.URLParam(req, "propertyID")
		stat, err := st.GetStatistic(req.Context(), propertyID)
		if err != nil {
			zap.L().Error("get statistic failed",
				zap.String("property_id", propertyID),
				zap.Error(err),
			)
			writeError(w, http.StatusInternalServerError, "get statistic failed")
			return
		}
		if stat == nil {
			writeError(w, http.StatusNotFound, "no statistics for property "+propertyID)
			return
		}
		writeJSON(w, http.StatusOK, stat)
	})

	r.Get("/api/summary", func(w http.ResponseWriter, req *http.Request) {
		coverage, err := st.CoverageSummary(req.Context())
		if err != nil {
			zap.L().Error("coverage summary failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "coverage summary failed")
			return
		}
		writeJSON(w, http.StatusOK, coverage)
	})

	return r
}

func parseStatFilter(req *http.Request) (store.StatFilter, error) {
	var filter store.StatFilter
	q := req.URL.Query()

	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > 1000 {
			return filter, eris.New("limit must be between 1 and 1000")
		}
		filter.Limit = limit
	}
	if raw := q.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return filter, eris.New("offset must be >= 0")
		}
		filter.Offset = offset
	}
	return filter, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("response encode failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
