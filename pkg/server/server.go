package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jonboulle/clockwork"
	"github.com/levenlabs/go-lflag"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/raterudder/solarwatch/pkg/common"
	"github.com/raterudder/solarwatch/pkg/engine"
	"github.com/raterudder/solarwatch/pkg/log"
	"github.com/raterudder/solarwatch/pkg/observability"
	"github.com/raterudder/solarwatch/pkg/timeseries"
	"github.com/raterudder/solarwatch/pkg/types"
)

// Server serves the monitoring API over the current time series snapshot.
type Server struct {
	holder  *timeseries.Holder
	engine  *engine.Engine
	metrics *observability.Metrics
	clock   clockwork.Clock

	plant types.Plant
	loc   *time.Location

	listenAddr string
	httpServer *http.Server
	serverName string

	verifyToken   tokenVerifier
	allowedEmails []string
}

// parseFloatFlag panics on a malformed value since flags are only read at
// startup.
func parseFloatFlag(name, value string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		panic(fmt.Sprintf("invalid --%s %q: %v", name, value, err))
	}
	return f
}

// Configured initializes the Server with dependencies.
// It uses lflag to register command-line flags for configuration.
func Configured(h *timeseries.Holder, m *observability.Metrics) *Server {
	srv := &Server{
		holder:     h,
		engine:     engine.New(),
		metrics:    m,
		clock:      clockwork.NewRealClock(),
		serverName: "solarwatch/" + common.Version(),
	}
	revision := os.Getenv("K_REVISION")
	if revision != "" {
		srv.serverName = revision
	}

	// get the port from PORT when running in cloud run
	port := os.Getenv("PORT")
	if port == "" {
		// otherwise default to 8080
		port = "8080"
	}

	defaults := types.DefaultPlant()
	listenAddr := lflag.String("http-listen", ":"+port, "HTTP server listen address")
	oidcAudience := lflag.String("oidc-audience", "", "audience to validate Google id tokens against (empty disables auth)")
	allowedEmails := lflag.String("allowed-emails", "", "comma-delimited list of email addresses allowed to use the API")
	plantName := lflag.String("plant-name", defaults.Name, "Name of the monitored plant")
	capacity := lflag.String("plant-capacity-kwp", strconv.FormatFloat(defaults.CapacityKWP, 'f', -1, 64), "Installed capacity in kWp")
	latitude := lflag.String("plant-latitude", strconv.FormatFloat(defaults.Latitude, 'f', -1, 64), "Plant latitude")
	longitude := lflag.String("plant-longitude", strconv.FormatFloat(defaults.Longitude, 'f', -1, 64), "Plant longitude")
	timezone := lflag.String("plant-timezone", defaults.Timezone, "IANA timezone the plant's calendar days are in")
	threshold := lflag.String("alert-threshold-pct", strconv.FormatFloat(defaults.AlertThresholdPct, 'f', -1, 64), "Flag days whose performance ratio is below 100 minus this percentage")

	lflag.Do(func() {
		srv.listenAddr = *listenAddr
		if *allowedEmails != "" {
			srv.allowedEmails = strings.Split(*allowedEmails, ",")
			for i, email := range srv.allowedEmails {
				srv.allowedEmails[i] = strings.TrimSpace(email)
			}
		}

		srv.plant = types.Plant{
			Name:              *plantName,
			CapacityKWP:       parseFloatFlag("plant-capacity-kwp", *capacity),
			Latitude:          parseFloatFlag("plant-latitude", *latitude),
			Longitude:         parseFloatFlag("plant-longitude", *longitude),
			Timezone:          *timezone,
			AlertThresholdPct: parseFloatFlag("alert-threshold-pct", *threshold),
		}
		if err := types.ValidateThreshold(srv.plant.AlertThresholdPct); err != nil {
			panic(fmt.Sprintf("invalid --alert-threshold-pct: %v", err))
		}
		loc, err := srv.plant.Location()
		if err != nil {
			panic(fmt.Sprintf("invalid --plant-timezone: %v", err))
		}
		srv.loc = loc

		if *oidcAudience != "" {
			ctx := oidc.ClientContext(context.Background(), common.HTTPClient(10*time.Second))
			provider, err := oidc.NewProvider(ctx, "https://accounts.google.com")
			if err != nil {
				log.Ctx(ctx).Error("failed to initialize Google OIDC provider", slog.Any("error", err))
				os.Exit(1)
			}
			srv.verifyToken = oidcEmailVerifier(provider.Verifier(&oidc.Config{ClientID: *oidcAudience}))
		}
	})

	return srv
}

// Plant returns the configured plant.
func (s *Server) Plant() types.Plant {
	return s.plant
}

// Location returns the plant's zone.
func (s *Server) Location() *time.Location {
	return s.loc
}

func (s *Server) setupHandler() http.Handler {
	apiMux := http.NewServeMux()
	s.handle(apiMux, "GET /api/plant", s.handlePlant)
	s.handle(apiMux, "GET /api/overview", s.handleOverview)
	s.handle(apiMux, "GET /api/daily", s.handleDaily)
	s.handle(apiMux, "GET /api/trend", s.handleTrend)
	s.handle(apiMux, "GET /api/anomalies", s.handleAnomalies)
	s.handle(apiMux, "GET /api/residuals", s.handleResiduals)
	s.handle(apiMux, "GET /api/period", s.handlePeriod)
	s.handle(apiMux, "GET /api/series", s.handleSeries)
	s.handle(apiMux, "GET /api/model", s.handleModel)

	mux := http.NewServeMux()
	mux.Handle("/api/", s.authMiddleware(apiMux))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", s.handleHealthz)
	return s.revisionMiddleware(s.requestIDMiddleware(gziphandler.GzipHandler(s.securityHeadersMiddleware(mux))))
}

// Run starts the HTTP server and blocks until the context is canceled or an error occurs.
// It also handles graceful shutdown when the context is done.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.listenAddr,
		Handler:      s.setupHandler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	// use a channel to capturing server errors
	errChan := make(chan error, 1)
	go func() {
		defer close(errChan)
		log.Ctx(ctx).InfoContext(ctx, "starting server", slog.String("addr", s.listenAddr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		// Context canceled, shut down gracefully
		log.Ctx(ctx).InfoContext(ctx, "shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}
}

func writeJSONError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(struct {
		Error string `json:"error"`
	}{Error: msg}); err != nil {
		slog.Warn("failed to write error response", slog.Any("error", err))
		panic(http.ErrAbortHandler)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		panic(http.ErrAbortHandler)
	}
}

// errorStatus maps the error taxonomy onto HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, types.ErrInvalidRange),
		errors.Is(err, types.ErrInvalidArgument),
		errors.Is(err, types.ErrTimezoneMismatch):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrEmptyStore):
		return http.StatusNotFound
	case errors.Is(err, types.ErrDataUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError logs err and writes it with the status its class maps to.
// Internal errors are reported as msg only.
func writeError(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	code := errorStatus(err)
	if code >= http.StatusInternalServerError {
		log.Ctx(ctx).ErrorContext(ctx, msg, slog.Any("error", err))
	} else {
		log.Ctx(ctx).WarnContext(ctx, msg, slog.Any("error", err))
	}
	if code == http.StatusInternalServerError {
		writeJSONError(w, msg, code)
		return
	}
	writeJSONError(w, msg+": "+err.Error(), code)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok")); err != nil {
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) revisionMiddleware(next http.Handler) http.Handler {
	if s.serverName == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", s.serverName)
		next.ServeHTTP(w, r)
	})
}
