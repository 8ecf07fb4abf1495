package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ofertas-ai/offers-cli/internal/extract"
	"github.com/ofertas-ai/offers-cli/internal/offers"
	"github.com/ofertas-ai/offers-cli/pkg/anthropic"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the offers search HTTP service",
	Long:  "Exposes POST /api/search so browser clients and http-mode CLIs can search without holding Anthropic credentials.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if cfg.Anthropic.Key == "" {
			return eris.New("anthropic key not configured (set OFERTAS_ANTHROPIC_KEY)")
		}
		client := anthropic.NewClient(cfg.Anthropic.Key,
			anthropic.WithRateLimit(cfg.Anthropic.RateLimit, cfg.Anthropic.RateBurst))
		backend := offers.NewLLMBackend(client, cfg.Anthropic.Model)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(backend),
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx) //nolint:errcheck
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

func newRouter(backend offers.Backend) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"}) //nolint:errcheck
	})
	r.Post("/api/search", handleSearch(backend))

	return r
}

func handleSearch(backend offers.Backend) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Action     string `json:"action"`
			State      string `json:"state"`
			City       string `json:"city"`
			MarketName string `json:"marketName"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		action := offers.Action(req.Action)
		if action != offers.ActionFind && action != offers.ActionDetails {
			writeJSONError(w, http.StatusBadRequest, "unknown action")
			return
		}
		if req.State == "" || req.City == "" {
			writeJSONError(w, http.StatusBadRequest, "state and city are required")
			return
		}
		if action == offers.ActionDetails && req.MarketName == "" {
			writeJSONError(w, http.StatusBadRequest, "marketName is required for details")
			return
		}

		q := offers.Query{State: req.State, City: req.City, MarketName: req.MarketName}
		body, err := backend.Request(r.Context(), action, q)

		var obj json.RawMessage
		if err == nil {
			obj, err = extract.Object(body)
		}
		if err != nil {
			if action == offers.ActionDetails {
				// Detail failures never surface to clients; they degrade to
				// the fallback payload and the market stays renderable.
				zap.L().Warn("details request failed, serving fallback",
					zap.String("market", req.MarketName),
					zap.Error(err),
				)
				writeFallback(w)
				return
			}
			zap.L().Error("find request failed", zap.Error(err))
			writeJSONError(w, http.StatusBadGateway, "search backend unavailable")
			return
		}

		if action == offers.ActionDetails && emptyProducts(obj) {
			// An empty offer list degrades the same as a failed call, so
			// http-mode clients see exactly what in-process clients see.
			zap.L().Info("details returned no products, serving fallback",
				zap.String("market", req.MarketName),
			)
			writeFallback(w)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write(obj) //nolint:errcheck
	}
}

// emptyProducts reports whether a details object carries no products.
func emptyProducts(obj json.RawMessage) bool {
	var payload struct {
		Products []json.RawMessage `json:"products"`
	}
	if err := json.Unmarshal(obj, &payload); err != nil {
		return false
	}
	return len(payload.Products) == 0
}

func writeFallback(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(offers.FallbackPayload()) //nolint:errcheck
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg}) //nolint:errcheck
}
