// Package pipeline drives the FastFuels job chain: domain lookup, grid and
// feature jobs, inventory export, artifact downloads and the local
// post-processing of the downloaded tree list.
package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"fuels-pipeline/internal/config"
	"fuels-pipeline/internal/fastfuels"
	"fuels-pipeline/internal/model"

	"go.uber.org/zap"
)

// Orchestrator runs the stages of one pipeline run in order. It owns the
// run's Session; nothing else writes to it.
type Orchestrator struct {
	cfg     *config.Config
	client  *fastfuels.Client
	poller  *Poller
	fetcher *Fetcher
	tracker Tracker
	logger  *zap.Logger
	session *model.Session
	stages  []Stage
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithTracker reports stage transitions to t.
func WithTracker(t Tracker) Option {
	return func(o *Orchestrator) { o.tracker = t }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithPollObserver counts poll attempts.
func WithPollObserver(obs PollObserver) Option {
	return func(o *Orchestrator) { o.poller.WithObserver(obs) }
}

// WithFetcher replaces the artifact fetcher.
func WithFetcher(f *Fetcher) Option {
	return func(o *Orchestrator) { o.fetcher = f }
}

// New creates the orchestrator for run runID writing artifacts to outputDir.
func New(cfg *config.Config, client *fastfuels.Client, runID, outputDir string, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:     cfg,
		client:  client,
		tracker: NopTracker{},
		logger:  zap.NewNop(),
		stages:  Stages(),
	}
	o.poller = NewPoller(client, cfg.Poll, nil)
	for _, opt := range opts {
		opt(o)
	}

	o.logger = o.logger.With(zap.String("run_id", runID))
	o.poller.logger = o.logger
	if o.fetcher == nil {
		o.fetcher = NewFetcher(&http.Client{}, o.logger)
	}
	o.session = model.NewSession(runID, cfg.ProjectName, client.BaseURL(), client.Headers(), outputDir, cfg.GridResolution)
	return o
}

// NewClient builds the FastFuels client a run uses from its config.
func NewClient(cfg *config.Config, logger *zap.Logger) *fastfuels.Client {
	return fastfuels.New(cfg.BaseURL, cfg.APIKey,
		fastfuels.WithHTTPClient(&http.Client{Timeout: cfg.HTTP.Timeout}),
		fastfuels.WithRateLimit(cfg.HTTP.RateLimitRPS, cfg.HTTP.RateBurst),
		fastfuels.WithLogger(logger),
	)
}

// Session exposes the run state, mainly for reporting after Run returns.
func (o *Orchestrator) Session() *model.Session { return o.session }

// Run executes every stage in order and stops at the first failure. The
// returned error is a *Error.
func (o *Orchestrator) Run(ctx context.Context) (err error) {
	o.session.StartedAt = time.Now()
	o.tracker.RunStarted(o.session)
	defer func() { o.tracker.RunFinished(o.session, err) }()

	o.logger.Info("pipeline started",
		zap.String("project", o.session.ProjectName),
		zap.String("output_dir", o.session.OutputDir),
	)
	if err := os.MkdirAll(o.session.OutputDir, 0o755); err != nil {
		return newError(KindIO, "", err)
	}

	for _, st := range o.stages {
		if err := o.runStage(ctx, st); err != nil {
			return err
		}
	}

	o.logger.Info("pipeline finished",
		zap.String("stage", string(model.StageDone)),
		zap.Duration("elapsed", o.session.Elapsed()),
	)
	return nil
}

func (o *Orchestrator) runStage(ctx context.Context, st Stage) error {
	start := time.Now()
	log := o.logger.With(zap.String("stage", string(st.Name)))
	o.tracker.StageStarted(o.session, st.Name)
	log.Info("stage started")

	attempts, err := o.execute(ctx, st)
	took := time.Since(start)
	if err != nil {
		pe := classify(st.Name, err)
		pe.Elapsed = o.session.Elapsed()
		log.Error("stage failed",
			zap.String("kind", string(pe.Kind)),
			zap.Error(pe.Err),
			zap.Duration("took", took),
			zap.Duration("elapsed", pe.Elapsed),
		)
		o.tracker.StageFinished(o.session, st.Name, attempts, took, pe)
		return pe
	}

	log.Info("stage completed", zap.Duration("took", took), zap.Duration("elapsed", o.session.Elapsed()))
	o.tracker.StageFinished(o.session, st.Name, attempts, took, nil)
	return nil
}

func (o *Orchestrator) execute(ctx context.Context, st Stage) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	for _, req := range st.Requires {
		if err := req.check(o.session); err != nil {
			return 0, err
		}
	}
	if st.Job != nil {
		return o.runJob(ctx, st)
	}
	return 1, st.Action(o, ctx)
}

// runJob creates the remote job and polls it to completion. Creation must
// answer 201; anything else fails the stage without polling.
func (o *Orchestrator) runJob(ctx context.Context, st Stage) (int, error) {
	domainID, err := o.session.RequireDomain()
	if err != nil {
		return 0, err
	}
	endpoint := st.Job.Endpoint(domainID)

	var body any
	if st.Job.Payload != nil {
		body = st.Job.Payload(o.cfg)
	}
	resp, err := o.client.Post(ctx, endpoint, body)
	if err != nil {
		return 0, err
	}
	if resp.StatusCode != http.StatusCreated {
		se := fastfuels.NewStatusError(http.MethodPost, resp)
		return 0, &Error{
			Kind:       KindHTTPStatus,
			Stage:      st.Name,
			StatusCode: resp.StatusCode,
			Body:       string(resp.Body),
			Err:        se,
		}
	}
	o.logger.Info("job requested", zap.String("stage", string(st.Name)), zap.String("endpoint", endpoint))

	out := o.poller.Poll(ctx, endpoint, st.Name)
	switch out.Kind {
	case OutcomeCompleted:
		o.session.RecordCompletion(st.Name, model.CompletedJob{
			SignedURL: out.Status.SignedURL,
			Payload:   out.Status.Raw,
			At:        time.Now(),
		})
		return out.Attempts, nil
	case OutcomeTimedOut:
		err := fmt.Errorf("job not complete after %s", o.cfg.Poll.Timeout)
		if out.Err != nil {
			err = fmt.Errorf("%w, last error: %w", err, out.Err)
		}
		return out.Attempts, newError(KindTimeout, st.Name, err)
	}

	if out.Err != nil && ctx.Err() != nil {
		return out.Attempts, out.Err
	}
	if out.Reason == ReasonNotFound {
		return out.Attempts, newError(KindNotFound, st.Name, fmt.Errorf("job resource %s not found", endpoint))
	}
	return out.Attempts, newError(KindJobFailed, st.Name, fmt.Errorf("job reported %s", out.Reason))
}

func (o *Orchestrator) resolveDomain(ctx context.Context) error {
	project := o.session.ProjectName
	size := o.cfg.Domains.PageSize
	for page := 0; page < o.cfg.Domains.MaxPages; page++ {
		res, err := o.client.ListDomains(ctx, page, size)
		if err != nil {
			return err
		}
		for _, d := range res.Domains {
			if d.Name == project {
				o.session.DomainID = d.ID
				o.logger.Info("domain resolved",
					zap.String("stage", string(model.StageResolveDomain)),
					zap.String("domain_id", d.ID),
				)
				o.tracker.DomainResolved(o.session)
				return nil
			}
		}
		if len(res.Domains) < size {
			break
		}
	}
	return newError(KindNotFound, model.StageResolveDomain, fmt.Errorf("no domain named %q", project))
}

func (o *Orchestrator) downloadTopographyImage(ctx context.Context) error {
	return o.download(ctx, model.StageExportTopographyImage, model.ArtifactTopographyImage, o.cfg.Artifact.TopographyImage)
}

func (o *Orchestrator) downloadTreeInventory(ctx context.Context) error {
	return o.download(ctx, model.StageExportTreeInventory, model.ArtifactTreeInventory, o.cfg.Artifact.TreeInventory)
}

func (o *Orchestrator) download(ctx context.Context, export model.StageName, artifact, file string) error {
	signed, err := o.session.SignedURL(export)
	if err != nil {
		return err
	}
	dest := o.artifactPath(file)
	n, err := o.fetcher.Download(ctx, signed, dest)
	if err != nil {
		return err
	}
	o.recordArtifact(artifact, dest, n)
	return nil
}

func (o *Orchestrator) fetchTopoMetadata(ctx context.Context) error {
	attrs, err := o.client.TopographyAttributes(ctx, o.session.DomainID)
	if err != nil {
		return err
	}
	nx, ny, err := attrs.Dimensions()
	if err != nil {
		return newError(KindData, model.StageFetchTopoMetadata, err)
	}
	o.session.SetGrid(nx, ny)
	o.logger.Info("topography grid", zap.Int("nx", nx), zap.Int("ny", ny))

	dest := o.artifactPath(o.cfg.Artifact.TopoMetadata)
	if err := WriteTopoMetadata(dest, attrs.Raw); err != nil {
		return err
	}
	o.recordArtifact(model.ArtifactTopoMetadata, dest, 0)
	return nil
}

func (o *Orchestrator) fetchDomainGeometry(ctx context.Context) error {
	detail, err := o.client.GetDomain(ctx, o.session.DomainID)
	if err != nil {
		return err
	}
	crs, err := detail.CRS.Code()
	if err != nil {
		return newError(KindData, model.StageFetchDomainGeometry, err)
	}
	ring, err := detail.OuterRing()
	if err != nil {
		return newError(KindData, model.StageFetchDomainGeometry, err)
	}
	bounds, err := BoundsOf(ring)
	if err != nil {
		return err
	}
	o.session.CRS = crs
	o.session.Bounds = &bounds
	o.logger.Info("domain geometry",
		zap.String("crs", crs),
		zap.Float64("min_x", bounds.MinX),
		zap.Float64("min_y", bounds.MinY),
		zap.Float64("max_x", bounds.MaxX),
		zap.Float64("max_y", bounds.MaxY),
	)
	return nil
}

func (o *Orchestrator) fetchBackgroundImagery(ctx context.Context) error {
	nx, ny, _ := o.session.RequireGrid()
	bounds, _ := o.session.RequireBounds()
	target, err := ImageryURL(o.cfg.Imagery, bounds, o.session.CRS, nx, ny)
	if err != nil {
		return newError(KindData, model.StageFetchBackgroundImagery, err)
	}

	if o.cfg.Imagery.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.Imagery.Timeout)
		defer cancel()
	}
	dest := o.artifactPath(o.cfg.Artifact.Imagery)
	n, err := o.fetcher.Download(ctx, target, dest)
	if err != nil {
		return err
	}
	o.recordArtifact(model.ArtifactImagery, dest, n)
	return nil
}

func (o *Orchestrator) rescaleTreeCoordinates(context.Context) error {
	src, _ := o.session.Artifact(model.ArtifactTreeInventory)
	header, records, err := ReadTreeListFile(src)
	if err != nil {
		return err
	}
	halfW, halfH, err := o.session.HalfExtents()
	if err != nil {
		return err
	}

	rescaled := RescaleTrees(records, halfW, halfH)
	dest := o.artifactPath(o.cfg.Artifact.RescaledTrees)
	if err := WriteTreeListFile(dest, header, rescaled); err != nil {
		return err
	}
	o.logger.Info("tree inventory rescaled",
		zap.Int("trees", len(rescaled)),
		zap.Float64("half_width", halfW),
		zap.Float64("half_height", halfH),
	)
	o.recordArtifact(model.ArtifactRescaledTrees, dest, 0)
	return nil
}

func (o *Orchestrator) fetchElevationStatistics(ctx context.Context) error {
	data, err := o.client.ElevationData(ctx, o.session.DomainID)
	if err != nil {
		return err
	}
	values, _, err := data.Values()
	if err != nil {
		return newError(KindData, model.StageFetchElevationStatistics, err)
	}
	stats, err := ElevationStatistics(values)
	if err != nil {
		return err
	}

	nx, ny, _ := o.session.RequireGrid()
	if len(values) != nx*ny {
		o.logger.Warn("elevation sample count does not match the grid",
			zap.Int("samples", len(values)),
			zap.Int("nx", nx),
			zap.Int("ny", ny),
		)
	}
	o.session.Elevation = &stats
	o.logger.Info("elevation statistics",
		zap.Float64("min", stats.Min),
		zap.Float64("max", stats.Max),
		zap.Float64("range", stats.Range),
	)

	dest := o.artifactPath(o.cfg.Artifact.ElevationGrid)
	grid := ElevationGrid{NX: nx, NY: ny, Min: stats.Min, Max: stats.Max, Range: stats.Range, Data: values}
	if err := WriteElevationGrid(dest, grid); err != nil {
		return err
	}
	o.recordArtifact(model.ArtifactElevationGrid, dest, 0)
	return nil
}

func (o *Orchestrator) artifactPath(file string) string {
	return filepath.Join(o.session.OutputDir, file)
}

func (o *Orchestrator) recordArtifact(artifact, path string, n int64) {
	o.session.SetArtifact(artifact, path)
	o.tracker.ArtifactWritten(o.session, artifact, path, n)
}
