// Package api serves the admin HTTP API next to the factory test port. It
// reads and writes the same flash slots and LEDs as the wire commands but
// never changes their behavior.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/smazurov/factoryd/internal/api/models"
	"github.com/smazurov/factoryd/internal/command"
	"github.com/smazurov/factoryd/internal/events"
	"github.com/smazurov/factoryd/internal/led"
	"github.com/smazurov/factoryd/internal/logging"
	"github.com/smazurov/factoryd/internal/mac"
	"github.com/smazurov/factoryd/internal/metrics"
	"github.com/smazurov/factoryd/internal/version"
)

const authRealm = `Basic realm="factoryd"`

// Commands runs flash and LED operations through the same code paths as the
// wire commands.
type Commands interface {
	ReadMACs() (command.MACs, error)
	SetWiFiMAC(base mac.Addr) error
	SetLEDs(level led.Level) error
}

// LEDState reports the last level driven onto each LED.
type LEDState interface {
	State() led.State
}

// TestFlag reports whether the test-pass flag is set.
type TestFlag interface {
	TestPassed() bool
}

// ServiceStatus queries a systemd unit.
type ServiceStatus interface {
	GetServiceStatus(ctx context.Context, serviceName string) (string, error)
}

// Options configures the admin API. Nil collaborators disable their routes.
type Options struct {
	AuthUsername      string
	AuthPassword      string
	Commands          Commands
	LEDs              LEDState
	TestFlag          TestFlag
	Systemd           ServiceStatus
	ServiceName       string // systemd unit reported in /api/status
	EventBus          *events.Bus
	PrometheusHandler http.Handler // served at /metrics without auth
}

// Server is the admin API server.
type Server struct {
	api        huma.API
	mux        *http.ServeMux
	httpServer *http.Server
	options    *Options
	eventBus   *events.Bus
	logger     *slog.Logger
}

// NewServer creates the admin API on a standard library mux.
func NewServer(opts *Options) *Server {
	mux := http.NewServeMux()

	corsConfig := DefaultCORSConfig()
	AddCORSHandler(mux, corsConfig)

	config := huma.DefaultConfig("factoryd API", version.String())
	config.Info.Description = "Admin API for the QCA9531 factory test daemon"
	config.Servers = []*huma.Server{}
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"basicAuth": {
			Type:   "http",
			Scheme: "basic",
		},
	}

	api := humago.New(mux, config)

	eventBus := opts.EventBus
	if eventBus == nil {
		eventBus = events.New()
	}

	server := &Server{
		api:      api,
		mux:      mux,
		options:  opts,
		eventBus: eventBus,
		logger:   logging.GetLogger("api"),
	}

	api.UseMiddleware(NewCORSMiddleware(corsConfig))
	api.UseMiddleware(HTTPLoggingMiddleware)
	if opts.AuthUsername != "" && opts.AuthPassword != "" {
		api.UseMiddleware(server.basicAuthMiddleware(opts.AuthUsername, opts.AuthPassword))
	}

	if opts.PrometheusHandler != nil {
		mux.Handle("GET /metrics", opts.PrometheusHandler)
	}

	server.registerRoutes()
	return server
}

// basicAuthMiddleware checks HTTP basic credentials on operations that
// declare a security requirement. EventSource clients cannot set headers, so
// the base64 credentials may also come in the "auth" query parameter.
func (s *Server) basicAuthMiddleware(username, password string) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		op := ctx.Operation()
		if op != nil && len(op.Security) == 0 {
			next(ctx)
			return
		}

		encoded := ctx.Query("auth")
		if header := ctx.Header("Authorization"); header != "" {
			var ok bool
			encoded, ok = strings.CutPrefix(header, "Basic ")
			if !ok {
				s.unauthorized(ctx, "Invalid authentication type")
				return
			}
		}
		if encoded == "" {
			s.unauthorized(ctx, "Authentication required")
			return
		}

		decoded, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			s.unauthorized(ctx, "Invalid credentials format", err)
			return
		}
		user, pass, ok := strings.Cut(string(decoded), ":")
		if !ok {
			s.unauthorized(ctx, "Invalid credentials format")
			return
		}

		userOK := subtle.ConstantTimeCompare([]byte(user), []byte(username)) == 1
		passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(password)) == 1
		if !userOK || !passOK {
			s.unauthorized(ctx, "Invalid credentials")
			return
		}

		next(ctx)
	}
}

func (s *Server) unauthorized(ctx huma.Context, msg string, errs ...error) {
	ctx.SetHeader("WWW-Authenticate", authRealm)
	huma.WriteErr(s.api, ctx, http.StatusUnauthorized, msg, errs...)
}

// GetMux returns the underlying HTTP ServeMux for additional setup
func (s *Server) GetMux() *http.ServeMux {
	return s.mux
}

// GetAPI returns the Huma API instance
func (s *Server) GetAPI() huma.API {
	return s.api
}

// Start serves on addr until Stop. It returns nil after Stop.
func (s *Server) Start(addr string) error {
	s.logger.Info("Starting admin API server", "addr", addr)
	s.logger.Info("OpenAPI documentation available", "url", "http://"+addr+"/docs")

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop closes the listener and any open connections.
func (s *Server) Stop() error {
	s.logger.Info("Stopping admin API server")
	if s.httpServer != nil {
		return s.httpServer.Close()
	}
	return nil
}

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health",
		Description: "Check API health status",
		Tags:        []string{"health"},
		Security:    []map[string][]string{},
	}, func(ctx context.Context, input *struct{}) (*models.HealthResponse, error) {
		return &models.HealthResponse{
			Body: models.HealthData{
				Status:  "ok",
				Message: "API is healthy",
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-version",
		Method:      http.MethodGet,
		Path:        "/api/version",
		Summary:     "Version",
		Description: "Get application version information",
		Tags:        []string{"system"},
		Security:    []map[string][]string{},
	}, func(ctx context.Context, input *struct{}) (*models.VersionResponse, error) {
		info := version.Get()
		return &models.VersionResponse{
			Body: models.VersionData{
				Version:   info.Version,
				GitCommit: info.GitCommit,
				BuildDate: info.BuildDate,
				BuildID:   info.BuildID,
				GoVersion: info.GoVersion,
				Compiler:  info.Compiler,
				Platform:  info.Platform,
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-status",
		Method:      http.MethodGet,
		Path:        "/api/status",
		Summary:     "Status",
		Description: "Test-pass flag, test port client and service state",
		Tags:        []string{"system"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(ctx context.Context, input *struct{}) (*models.StatusResponse, error) {
		resp := &models.StatusResponse{}
		resp.Body.ClientConnected = metrics.GetSummary().ClientConnected
		if s.options.TestFlag != nil {
			resp.Body.TestPassed = s.options.TestFlag.TestPassed()
		}
		if s.options.Systemd != nil && s.options.ServiceName != "" {
			status, err := s.options.Systemd.GetServiceStatus(ctx, s.options.ServiceName)
			if err != nil {
				s.logger.Warn("Failed to get service status", "service", s.options.ServiceName, "error", err)
				status = "unknown"
			}
			resp.Body.SystemdStatus = status
		}
		return resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-metrics-summary",
		Method:      http.MethodGet,
		Path:        "/api/metrics/summary",
		Summary:     "Metrics Summary",
		Description: "Command, connection and flash write counters since start",
		Tags:        []string{"metrics"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(ctx context.Context, input *struct{}) (*models.MetricsSummaryResponse, error) {
		return &models.MetricsSummaryResponse{Body: metrics.GetSummary()}, nil
	})

	s.registerMACRoutes()
	s.registerLEDRoutes()
	s.registerLogRoutes()
	s.registerEventRoutes()
}

// withAuth returns security requirement for basic auth
func withAuth() []map[string][]string {
	return []map[string][]string{
		{"basicAuth": {}},
	}
}
