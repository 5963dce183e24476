package ledgerapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"deployledger/pkg/deployment"
	"deployledger/pkg/networks"
	"deployledger/services/ledger"
)

// Config controls which trees the API reads and which chain it defaults to.
type Config struct {
	BroadcastDir string
	DefaultChain deployment.ChainID
}

// Server exposes read-only deployment queries over HTTP.
type Server struct {
	resolver *ledger.Resolver
	registry *networks.Registry
	tracker  *Tracker
	gatherer prometheus.Gatherer
	logger   zerolog.Logger
	config   Config
}

// Options wires a Server. Resolver and Registry are required; Tracker is optional.
type Options struct {
	Resolver *ledger.Resolver
	Registry *networks.Registry
	Tracker  *Tracker
	Gatherer prometheus.Gatherer
	Logger   zerolog.Logger
	Config   Config
}

// New validates opts and returns a Server.
func New(opts Options) (*Server, error) {
	if opts.Resolver == nil {
		return nil, errors.New("resolver is required")
	}
	if opts.Registry == nil {
		return nil, errors.New("network registry is required")
	}
	if opts.Config.BroadcastDir == "" {
		return nil, errors.New("broadcast dir is required")
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	return &Server{
		resolver: opts.Resolver,
		registry: opts.Registry,
		tracker:  opts.Tracker,
		gatherer: opts.Gatherer,
		logger:   opts.Logger,
		config:   opts.Config,
	}, nil
}

// Routes constructs the chi router containing all API endpoints.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", s.handleHealthz)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		r.Get("/deployments/{name}", s.handleDeployment)
		r.Get("/deployments/{name}/history", s.handleHistory)
		r.Get("/networks", s.handleNetworks)
		r.Get("/networks/{chainID}", s.handleNetwork)
		r.Get("/events", s.handleEvents)
	})
	return r
}
