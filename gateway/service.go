package gateway

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/viant/afs"
	"github.com/viant/mcpgate/bridge"
	"github.com/viant/mcpgate/image"
	"github.com/viant/mcpgate/process"
	"github.com/viant/mcpgate/recipe"
	"github.com/viant/mcpgate/repository"
	"github.com/viant/mcpgate/server"
	"go.uber.org/zap"
)

// Service provisions the tool server and attaches sessions to it.
type Service struct {
	config       *Config
	logger       *zap.SugaredLogger
	fs           afs.Service
	materializer *repository.Materializer
	engine       image.Engine
	builder      *image.Builder
	supervisor   *process.Supervisor
	launcher     process.Launcher
	cloner       repository.Cloner

	ctx    context.Context
	cancel context.CancelFunc

	mux      sync.Mutex
	attempt  chan struct{}
	err      error
	repo     *repository.Repository
	artifact *image.Artifact
	proc     *process.Process
	bridge   *bridge.Bridge
}

// Option configures a Service.
type Option func(s *Service)

// WithLogger sets the logger shared by every component.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithCloner replaces the version control collaborator.
func WithCloner(cloner repository.Cloner) Option {
	return func(s *Service) {
		s.cloner = cloner
	}
}

// WithEngine replaces the image build collaborator.
func WithEngine(engine image.Engine) Option {
	return func(s *Service) {
		s.engine = engine
	}
}

// WithLauncher replaces the process launcher.
func WithLauncher(launcher process.Launcher) Option {
	return func(s *Service) {
		s.launcher = launcher
	}
}

// Config returns the validated configuration.
func (s *Service) Config() *Config {
	return s.config
}

// Provision runs the provisioning pipeline once. Concurrent and later calls
// share the outcome of the first attempt; a failure is never retried.
func (s *Service) Provision(ctx context.Context) error {
	s.mux.Lock()
	if s.attempt == nil {
		s.attempt = make(chan struct{})
		go s.provision(s.attempt)
	}
	attempt := s.attempt
	s.mux.Unlock()
	select {
	case <-attempt:
	case <-ctx.Done():
		return ctx.Err()
	}
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.err
}

func (s *Service) provision(done chan struct{}) {
	err := s.run(s.ctx)
	s.mux.Lock()
	s.err = err
	s.mux.Unlock()
	if err != nil {
		s.logger.Errorw("provisioning failed", "error", err)
	}
	close(done)
}

func (s *Service) run(ctx context.Context) (err error) {
	ref := s.config.Reference()
	if ref == nil {
		return &ProvisionError{Stage: StageResolve, Err: errors.New("repository reference was not resolved")}
	}
	s.logger.Infow("provisioning", "repository", ref.String())
	repo, err := s.materializer.Clone(ctx, ref.CloneURL, ref.Branch)
	if err != nil {
		return &ProvisionError{Stage: StageClone, Err: err}
	}
	defer func() {
		if err == nil {
			return
		}
		if cleanupErr := s.materializer.Cleanup(context.Background(), repo.ID); cleanupErr != nil {
			s.logger.Warnw("failed to clean up repository", "id", repo.ID, "error", cleanupErr)
		}
	}()
	buildFile, contextDir, err := s.locateBuild(ctx, repo, ref.Subdirectory)
	if err != nil {
		return &ProvisionError{Stage: StageRecipe, Err: err}
	}
	artifact, err := s.builder.Build(ctx, contextDir, buildFile, "")
	if err != nil {
		return &ProvisionError{Stage: StageBuild, Err: err}
	}
	proc, err := s.supervisor.Start(ctx, artifact.Tag, s.config.Args, s.config.Env)
	if err != nil {
		return &ProvisionError{Stage: StageStart, Err: err}
	}
	policy, _ := bridge.ParsePolicy(s.config.Policy)
	bridgeOptions := []bridge.Option{
		bridge.WithPolicy(policy),
		bridge.WithMaxFrameSize(s.config.MaxFrameSize),
		bridge.WithLogger(s.logger),
	}
	if s.config.QueueSize > 0 {
		bridgeOptions = append(bridgeOptions, bridge.WithQueueSize(s.config.QueueSize))
	}
	if s.config.DeliveryTimeoutMs > 0 {
		bridgeOptions = append(bridgeOptions, bridge.WithDeliveryTimeout(milliseconds(s.config.DeliveryTimeoutMs)))
	}
	aBridge, err := bridge.New(proc, bridgeOptions...)
	if err != nil {
		_ = proc.Terminate(context.Background())
		return &ProvisionError{Stage: StageBridge, Err: err}
	}
	s.mux.Lock()
	s.repo, s.artifact, s.proc, s.bridge = repo, artifact, proc, aBridge
	s.mux.Unlock()
	s.logger.Infow("tool server ready", "image", artifact.Tag, "pid", proc.Pid(), "policy", policy)
	return nil
}

// locateBuild returns the build file and context. A recipe declaring
// build.dockerfile takes precedence over a Dockerfile in the resolved dir.
func (s *Service) locateBuild(ctx context.Context, repo *repository.Repository, subdirectory string) (string, string, error) {
	dir, err := s.materializer.Dir(repo, subdirectory)
	if err != nil {
		return "", "", err
	}
	found, err := s.materializer.FindRecipe(ctx, repo, subdirectory)
	if err != nil {
		return "", "", err
	}
	if found != nil {
		manifest, err := recipe.Load(ctx, s.fs, found.Path)
		if err != nil {
			return "", "", err
		}
		if buildFile := manifest.Dockerfile(found.Dir); buildFile != "" {
			if !s.materializer.Contains(ctx, repo, buildFile) {
				return "", "", &repository.RecipeNotFoundError{Dir: filepath.Dir(buildFile)}
			}
			contextDir := manifest.BuildPath(found.Dir)
			if rel, err := filepath.Rel(repo.Path, contextDir); err != nil || !filepath.IsLocal(rel) {
				return "", "", fmt.Errorf("%w: %v", repository.ErrOutsideRepository, contextDir)
			}
			s.logger.Infow("using recipe build", "recipe", found.Path, "dockerfile", buildFile, "context", contextDir)
			return buildFile, contextDir, nil
		}
	}
	buildFile, err := s.materializer.FindBuildFile(ctx, repo, subdirectory)
	if err != nil {
		return "", "", err
	}
	if buildFile == "" {
		return "", "", &repository.RecipeNotFoundError{Dir: dir}
	}
	return buildFile, dir, nil
}

// Attach provisions on demand and attaches a new bridge session.
func (s *Service) Attach(ctx context.Context) (*bridge.Session, error) {
	if err := s.Provision(ctx); err != nil {
		return nil, err
	}
	s.mux.Lock()
	proc, aBridge := s.proc, s.bridge
	s.mux.Unlock()
	select {
	case <-proc.Done():
		return nil, bridge.ErrProcessExited
	default:
	}
	return aBridge.Attach()
}

// Status reports the provisioning and process state.
func (s *Service) Status() *server.Status {
	s.mux.Lock()
	defer s.mux.Unlock()
	ret := &server.Status{State: server.StatePending}
	if s.attempt == nil {
		return ret
	}
	select {
	case <-s.attempt:
	default:
		ret.State = server.StateProvisioning
		return ret
	}
	if s.err != nil {
		ret.State = server.StateFailed
		ret.Reason = s.err.Error()
		return ret
	}
	ret.Image = s.artifact.Tag
	ret.Sessions = s.bridge.Sessions()
	select {
	case <-s.proc.Done():
		ret.State = server.StateExited
		ret.Reason = fmt.Sprintf("tool server %v with code %d", s.proc.State(), s.proc.ExitCode())
		if err := s.proc.Err(); err != nil {
			ret.Reason += ": " + err.Error()
		}
	default:
		ret.State = server.StateReady
	}
	return ret
}

// Server creates the streaming HTTP server for this service.
func (s *Service) Server() (*server.Server, error) {
	options := []server.Option{
		server.WithStatus(s),
		server.WithLogger(s.logger),
		server.WithAddr(s.config.Addr),
		server.WithSSEURI(s.config.SSEURI),
		server.WithMessageURI(s.config.MessageURI),
		server.WithWebSocketURI(s.config.WebSocketURI),
		server.WithMaxMessageSize(int64(s.config.MaxFrameSize)),
	}
	if s.config.Cors != nil {
		options = append(options, server.WithCORS(s.config.Cors))
	}
	if s.config.KeepAliveMs > 0 {
		options = append(options, server.WithPingInterval(milliseconds(s.config.KeepAliveMs)))
	}
	if s.config.BearerKey != "" {
		options = append(options, server.WithBearerKey([]byte(s.config.BearerKey)))
	}
	return server.New(s, options...)
}

// Shutdown stops provisioning, terminates the tool server and removes
// materialized repositories.
func (s *Service) Shutdown(ctx context.Context) error {
	s.cancel()
	s.mux.Lock()
	attempt := s.attempt
	s.mux.Unlock()
	if attempt != nil {
		select {
		case <-attempt:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	var errs []error
	s.mux.Lock()
	proc, aBridge := s.proc, s.bridge
	s.mux.Unlock()
	if proc != nil {
		if err := proc.Terminate(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to terminate tool server: %w", err))
		}
	}
	if aBridge != nil {
		if err := aBridge.Wait(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.materializer.CleanupAll(ctx); err != nil {
		errs = append(errs, err)
	}
	s.logger.Infow("gateway stopped")
	return errors.Join(errs...)
}

// New creates a Service for a validated copy of config.
func New(ctx context.Context, config *Config, options ...Option) (*Service, error) {
	config.Init()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	ret := &Service{config: config, logger: zap.NewNop().Sugar(), fs: afs.New()}
	for _, option := range options {
		option(ret)
	}
	ret.ctx, ret.cancel = context.WithCancel(context.Background())
	if err := ret.init(ctx); err != nil {
		ret.cancel()
		return nil, err
	}
	return ret, nil
}

func (s *Service) init(ctx context.Context) error {
	if s.cloner == nil {
		switch s.config.Cloner {
		case ClonerShell:
			cloner, err := repository.NewShellCloner(s.ctx)
			if err != nil {
				return err
			}
			s.cloner = cloner
		default:
			s.cloner = &repository.GitCloner{Depth: 1}
		}
	}
	var err error
	s.materializer, err = repository.New(s.config.WorkDir,
		repository.WithCloner(s.cloner),
		repository.WithRegistry(repository.NewRegistry()),
		repository.WithLogger(s.logger))
	if err != nil {
		return err
	}
	if s.engine == nil {
		if s.engine, err = image.NewDockerEngine(); err != nil {
			return err
		}
	}
	credentials, err := s.config.Registry.Credentials(ctx)
	if err != nil {
		return err
	}
	s.builder = image.NewBuilder(s.engine, image.WithCredentials(credentials), image.WithLogger(s.logger))
	if s.launcher == nil {
		s.launcher = &process.DockerLauncher{Name: s.config.ContainerName, Options: s.config.DockerOptions}
	}
	supervisorOptions := []process.Option{process.WithLauncher(s.launcher), process.WithLogger(s.logger)}
	if s.config.StartWindowMs > 0 {
		supervisorOptions = append(supervisorOptions, process.WithStartWindow(milliseconds(s.config.StartWindowMs)))
	}
	if s.config.GracePeriodMs > 0 {
		supervisorOptions = append(supervisorOptions, process.WithGracePeriod(milliseconds(s.config.GracePeriodMs)))
	}
	s.supervisor = process.NewSupervisor(supervisorOptions...)
	return nil
}
