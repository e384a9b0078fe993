package bootstrap

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/kbukum/gostream/component"
	"github.com/kbukum/gostream/errors"
	"github.com/kbukum/gostream/logger"
	"github.com/kbukum/gostream/observability"
	"github.com/kbukum/gostream/stream"
)

// DefaultGracefulTimeout bounds the shutdown of all components.
const DefaultGracefulTimeout = 15 * time.Second

// App hosts pipelines with uniform lifecycle management. The type
// parameter C is the config type.
type App[C Config] struct {
	Name       string
	Version    string
	Cfg        C
	Components *component.Registry
	Telemetry  *observability.Telemetry
	Logger     *logger.Logger
	Summary    *Summary

	gracefulTimeout time.Duration
	summaryOut      io.Writer
	onConfigure     []func(ctx context.Context, app *App[C]) error

	onStart []Hook
	onReady []Hook
	onStop  []Hook

	mu      sync.Mutex
	runners []*stream.Runner
}

// NewApp creates an application from a typed config. It applies defaults,
// validates the config, initializes the logger and registers the
// telemetry component ahead of every pipeline.
func NewApp[C Config](cfg C, opts ...Option) (*App[C], error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	base := cfg.GetServiceConfig()
	o := resolveOptions(opts)

	app := &App[C]{
		Name:            base.Name,
		Version:         base.Version,
		Cfg:             cfg,
		Components:      component.NewRegistry(),
		Telemetry:       base.NewTelemetry(),
		gracefulTimeout: DefaultGracefulTimeout,
		summaryOut:      os.Stdout,
	}
	if o.gracefulTimeout != nil {
		app.gracefulTimeout = *o.gracefulTimeout
	}
	if o.summary != nil {
		app.summaryOut = o.summary
	}
	if o.logger != nil {
		app.Logger = o.logger
	} else {
		logger.Init(base.Logging)
		app.Logger = logger.GetGlobalLogger()
	}

	if err := app.Components.Register(app.Telemetry); err != nil {
		return nil, err
	}
	app.Summary = NewSummary(base.Name, base.Version)
	return app, nil
}

// RegisterComponent adds a component to the application's registry.
func (a *App[C]) RegisterComponent(c component.Component) error {
	return a.Components.Register(c)
}

// AddPipeline builds a pipeline over stages and registers it as a
// component. Pipeline events are recorded by the telemetry component.
// Options are applied after the app's logger and observer, so they may
// replace either. Pipeline names must be unique within the app; a
// duplicate is rejected before the stages are claimed.
func (a *App[C]) AddPipeline(stages []*stream.Stage, opts ...stream.Option) (*stream.Runner, error) {
	obs := &telemetryObserver{tel: a.Telemetry}
	all := append([]stream.Option{
		stream.WithLogger(a.Logger.WithComponent("stream")),
		stream.WithObserver(obs),
	}, opts...)

	a.mu.Lock()
	defer a.mu.Unlock()
	if name := stream.NameOf(all...); a.Components.Get(name) != nil {
		return nil, errors.InvalidInput("name", fmt.Sprintf("component %s already registered", name))
	}
	p, err := stream.Build(stages, all...)
	if err != nil {
		return nil, err
	}
	obs.pipeline = p.Name()

	r := stream.NewRunner(p)
	if err := a.Components.Register(r); err != nil {
		return nil, err
	}
	a.runners = append(a.runners, r)
	return r, nil
}

// Pipelines returns the runners in the order they were added.
func (a *App[C]) Pipelines() []*stream.Runner {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]*stream.Runner(nil), a.runners...)
}

// OnConfigure registers a callback run after the components started.
// Pipelines added from it are started before the ready check.
func (a *App[C]) OnConfigure(fn func(ctx context.Context, app *App[C]) error) {
	a.onConfigure = append(a.onConfigure, fn)
}

// ReadyCheck fails when any registered component is unhealthy.
func (a *App[C]) ReadyCheck(ctx context.Context) error {
	var unhealthy []string
	for _, h := range a.Components.HealthAll(ctx) {
		if h.Status == component.StatusUnhealthy {
			detail := h.Name + "=" + string(h.Status)
			if h.Message != "" {
				detail += "(" + h.Message + ")"
			}
			unhealthy = append(unhealthy, detail)
		}
	}
	if len(unhealthy) > 0 {
		return fmt.Errorf("unhealthy components: %v", unhealthy)
	}
	return nil
}

// Run starts every component and blocks until all pipelines finished or
// ctx is cancelled or a shutdown signal arrives, then shuts down
// gracefully. It returns the joined pipeline failures; a cancelled
// pipeline is not a failure.
func (a *App[C]) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.startup(ctx); err != nil {
		_ = a.stop()
		return err
	}

	a.Logger.Info("Application ready", logger.Fields("pipelines", len(a.Pipelines())))
	a.waitPipelines(ctx)
	return a.finish(a.stop())
}

// RunTask executes a finite task with the full lifecycle. Unlike Run it
// does not wait for the pipelines: the app shuts down once task returns,
// cancelling pipelines still flowing.
func (a *App[C]) RunTask(ctx context.Context, task func(ctx context.Context) error) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.startup(ctx); err != nil {
		_ = a.stop()
		return err
	}

	taskErr := task(ctx)
	runErr := a.finish(a.stop())
	if taskErr != nil {
		return taskErr
	}
	return runErr
}

// Shutdown stops all components. Use it when managing the lifecycle
// yourself.
func (a *App[C]) Shutdown(context.Context) error {
	return a.stop()
}

// DisplaySummary writes the run summary with live component health.
func (a *App[C]) DisplaySummary() {
	a.Summary.Write(a.summaryOut, a.Components)
}

func (a *App[C]) startup(ctx context.Context) error {
	start := time.Now()
	a.Logger.Info("Starting application", logger.Fields("name", a.Name, "version", a.Version))

	if err := a.initialize(ctx); err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}
	if err := runHooks(ctx, a.onStart); err != nil {
		return fmt.Errorf("onStart hook failed: %w", err)
	}
	if err := a.configure(ctx); err != nil {
		return fmt.Errorf("configuration failed: %w", err)
	}
	if err := a.ReadyCheck(ctx); err != nil {
		a.Logger.Warn("Ready check reported issues", logger.Fields(logger.FieldError, err.Error()))
	}
	if err := runHooks(ctx, a.onReady); err != nil {
		return fmt.Errorf("onReady hook failed: %w", err)
	}

	a.Summary.SetStartupDuration(time.Since(start))
	return nil
}

func (a *App[C]) initialize(ctx context.Context) error {
	if err := a.Components.StartAll(ctx); err != nil {
		return fmt.Errorf("failed to start components: %w", err)
	}
	return nil
}

// configure runs the OnConfigure callbacks, then starts whatever they
// registered.
func (a *App[C]) configure(ctx context.Context) error {
	for _, fn := range a.onConfigure {
		if err := fn(ctx, a); err != nil {
			return err
		}
	}
	if len(a.onConfigure) == 0 {
		return nil
	}
	return a.initialize(ctx)
}

func (a *App[C]) waitPipelines(ctx context.Context) {
	for _, r := range a.Pipelines() {
		select {
		case <-r.Done():
		case <-ctx.Done():
			a.Logger.Info("Shutdown requested, cancelling pipelines")
			return
		}
	}
}

func (a *App[C]) stop() error {
	a.Logger.Info("Shutting down application", logger.Fields("timeout", a.gracefulTimeout.String()))

	ctx, cancel := context.WithTimeout(context.Background(), a.gracefulTimeout)
	defer cancel()

	var shutdownErr error
	if err := runHooks(ctx, a.onStop); err != nil {
		a.Logger.Error("OnStop hook error", logger.Fields(logger.FieldError, err.Error()))
		shutdownErr = err
	}
	if err := a.Components.StopAll(ctx); err != nil {
		a.Logger.Debug("Shutdown completed with errors", logger.Fields(logger.FieldError, err.Error()))
		if shutdownErr == nil {
			shutdownErr = err
		}
	}

	a.Logger.Info("Application shutdown complete")
	return shutdownErr
}

// finish records every finished pipeline in the summary and returns their
// joined failures, or stopErr when none failed.
func (a *App[C]) finish(stopErr error) error {
	var errs []error
	for _, r := range a.Pipelines() {
		select {
		case <-r.Done():
		default:
			continue
		}
		res, err := r.Wait(context.Background())
		a.Summary.TrackPipeline(r.Name(), res, err)
		if err != nil && !errors.HasCode(err, errors.ErrCodeCancellationRequested) {
			errs = append(errs, err)
		}
	}
	a.DisplaySummary()

	if err := stderrors.Join(errs...); err != nil {
		return err
	}
	return stopErr
}

// telemetryObserver forwards pipeline events to the telemetry metrics,
// which exist only once the telemetry component started. Pipelines run
// after it, so the first event always sees them.
type telemetryObserver struct {
	tel      *observability.Telemetry
	pipeline string

	once sync.Once
	m    *observability.StreamMetrics
}

func (o *telemetryObserver) metrics() *observability.StreamMetrics {
	o.once.Do(func() {
		if m := o.tel.Metrics(); m != nil {
			o.m = m.ForPipeline(o.pipeline)
		}
	})
	return o.m
}

func (o *telemetryObserver) OnChunk(stage string, size int) {
	if m := o.metrics(); m != nil {
		m.OnChunk(stage, size)
	}
}

func (o *telemetryObserver) OnPause(stage string) {
	if m := o.metrics(); m != nil {
		m.OnPause(stage)
	}
}

func (o *telemetryObserver) OnResume(stage string) {
	if m := o.metrics(); m != nil {
		m.OnResume(stage)
	}
}

func (o *telemetryObserver) OnStageDone(stage, outcome string, elapsed time.Duration) {
	if m := o.metrics(); m != nil {
		m.OnStageDone(stage, outcome, elapsed)
	}
}
