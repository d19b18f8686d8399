package build

import (
	"context"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/blogbuilder/internal/audit"
	"git.home.luguber.info/inful/blogbuilder/internal/config"
	"git.home.luguber.info/inful/blogbuilder/internal/eventstore"
	ferrors "git.home.luguber.info/inful/blogbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/blogbuilder/internal/logfields"
	"git.home.luguber.info/inful/blogbuilder/internal/metrics"
)

// Request contains the inputs of one build.
type Request struct {
	// ExportPath is the export document to read.
	ExportPath string
	// OutputDir is replaced by the built site on success.
	OutputDir string
	// BaseURL prefixes sitemap locations. Required unless SkipSitemap.
	BaseURL string

	SkipMedia   bool
	SkipSitemap bool
	SkipAudit   bool
}

// FindingsPublisher forwards audit findings to an external sink.
type FindingsPublisher interface {
	Publish(ctx context.Context, buildID string, r *audit.Report) int
}

// Service runs builds. The zero value is not usable; use NewService.
type Service struct {
	cfg        *config.Config
	logger     *slog.Logger
	recorder   metrics.Recorder
	history    eventstore.Store
	publisher  FindingsPublisher
	httpClient *http.Client
	now        func() time.Time
	newID      func() string
}

// NewService creates a Service for cfg (defaults when nil).
func NewService(cfg *config.Config, logger *slog.Logger) *Service {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:      cfg,
		logger:   logger,
		recorder: metrics.NoopRecorder{},
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// WithRecorder sets the metrics recorder.
func (s *Service) WithRecorder(r metrics.Recorder) *Service {
	if r != nil {
		s.recorder = r
	}
	return s
}

// WithHistory records build events in store. History failures are logged
// and never fail a build.
func (s *Service) WithHistory(store eventstore.Store) *Service {
	s.history = store
	return s
}

// WithPublisher publishes audit findings after the audit stage.
func (s *Service) WithPublisher(p FindingsPublisher) *Service {
	s.publisher = p
	return s
}

// WithHTTPClient overrides the client used for media downloads.
func (s *Service) WithHTTPClient(c *http.Client) *Service {
	s.httpClient = c
	return s
}

// WithClock overrides the wall clock (report timestamps, sitemap lastmod).
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Run executes the pipeline for req. The returned report is non-nil
// whenever the request was valid, also when err is non-nil.
func (s *Service) Run(ctx context.Context, req Request) (*Report, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	r := s.begin(ctx, req)
	stages := []struct {
		name StageName
		skip bool
		fn   func(context.Context) error
	}{
		{StageParseExport, false, r.parseExport},
		{StageCanonicalize, false, r.canonicalize},
		{StageAllocateFilenames, false, r.allocateFilenames},
		{StageResolveMedia, false, r.resolveMedia},
		{StageRenderSite, false, r.renderSite},
		{StageSitemap, req.SkipSitemap, r.generateSitemap},
		{StageAudit, req.SkipAudit, r.audit},
		{StagePromote, false, r.promote},
	}

	stage, err := beginStaging(req.OutputDir, r.logger)
	if err != nil {
		return r.end(ctx, "", err)
	}
	defer stage.abort()
	r.stage = stage
	r.root = stage.dir

	for _, st := range stages {
		if st.skip {
			r.logger.Debug("Stage skipped", logfields.Stage(string(st.name)))
			continue
		}
		if err := r.runStage(ctx, st.name, st.fn); err != nil {
			return r.end(ctx, st.name, err)
		}
	}
	return r.end(ctx, "", nil)
}

// FetchMedia downloads every image referenced by the export into
// <OutputDir>/media without rendering pages. Only ExportPath and
// OutputDir of req are used.
func (s *Service) FetchMedia(ctx context.Context, req Request) (*Report, error) {
	req.SkipSitemap = true
	req.SkipAudit = true
	if err := req.validate(); err != nil {
		return nil, err
	}

	r := s.begin(ctx, req)
	r.root = filepath.Clean(req.OutputDir)

	for _, st := range []struct {
		name StageName
		fn   func(context.Context) error
	}{
		{StageParseExport, r.parseExport},
		{StageCanonicalize, r.canonicalize},
		{StageResolveMedia, r.resolveMedia},
	} {
		if err := r.runStage(ctx, st.name, st.fn); err != nil {
			return r.end(ctx, st.name, err)
		}
	}
	return r.end(ctx, "", nil)
}

func (req Request) validate() error {
	if req.ExportPath == "" {
		return ferrors.ValidationError("export path is required").Build()
	}
	if req.OutputDir == "" {
		return ferrors.ValidationError("output directory is required").Build()
	}
	clean := filepath.Clean(req.OutputDir)
	if clean == "." || filepath.Dir(clean) == clean {
		return ferrors.ValidationError("output directory must be a named directory").
			WithContext("path", req.OutputDir).
			Build()
	}
	if !req.SkipSitemap {
		if req.BaseURL == "" {
			return ferrors.ValidationError("base URL is required to generate the sitemap").Build()
		}
		if err := config.ValidateBaseURL(req.BaseURL); err != nil {
			return ferrors.ValidationError("invalid base URL").
				WithCause(err).
				WithContext("base_url", req.BaseURL).
				Build()
		}
	}
	return nil
}
