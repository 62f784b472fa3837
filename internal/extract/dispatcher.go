package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"github.com/joseph-ayodele/elsai-console/constants"
	"github.com/joseph-ayodele/elsai-console/internal/common"
	"github.com/joseph-ayodele/elsai-console/internal/intake"
	"github.com/joseph-ayodele/elsai-console/internal/repository"
	"github.com/joseph-ayodele/elsai-console/internal/telemetry"
)

// Dispatcher routes a staged file to the selected backend.
type Dispatcher struct {
	cfg      common.BackendsConfig
	registry Registry
	gate     *semaphore.Weighted
	timeout  time.Duration
	recorder repository.Recorder
	metrics  *telemetry.Metrics
	tracer   trace.Tracer
	logger   *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

func WithRegistry(r Registry) Option { return func(d *Dispatcher) { d.registry = r } }

// WithConcurrency bounds simultaneous backend calls (minimum 1).
func WithConcurrency(n int) Option {
	return func(d *Dispatcher) {
		if n < 1 {
			n = 1
		}
		d.gate = semaphore.NewWeighted(int64(n))
	}
}

// WithTimeout bounds each backend call; 0 disables.
func WithTimeout(t time.Duration) Option { return func(d *Dispatcher) { d.timeout = t } }

func WithRecorder(r repository.Recorder) Option { return func(d *Dispatcher) { d.recorder = r } }

func WithMetrics(m *telemetry.Metrics) Option { return func(d *Dispatcher) { d.metrics = m } }

func WithTracer(t trace.Tracer) Option { return func(d *Dispatcher) { d.tracer = t } }

func NewDispatcher(cfg common.BackendsConfig, logger *slog.Logger, opts ...Option) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		cfg:      cfg,
		registry: DefaultRegistry(),
		gate:     semaphore.NewWeighted(1),
		recorder: repository.NoopRecorder{},
		tracer:   telemetry.Tracer(),
		logger:   logger,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// BackendInfo describes a backend for selectors and the API.
type BackendInfo struct {
	Backend    constants.Backend `json:"id"`
	Label      string            `json:"label"`
	Formats    []string          `json:"formats"`
	Configured bool              `json:"configured"`
	Missing    []string          `json:"missing,omitempty"`
}

// Backends lists every registered backend in display order.
func (d *Dispatcher) Backends() []BackendInfo {
	out := make([]BackendInfo, 0, len(d.registry))
	for _, b := range constants.Backends {
		p, ok := d.registry[b]
		if !ok {
			continue
		}
		m := p.Missing(d.cfg)
		out = append(out, BackendInfo{
			Backend:    b,
			Label:      b.Label(),
			Formats:    p.Formats,
			Configured: len(m) == 0,
			Missing:    m,
		})
	}
	return out
}

// Dispatch runs the selected backend on file. The file is released before
// Dispatch returns, whatever the outcome.
//
// Rejections made before any backend call (unknown format, missing credentials)
// are CONFIG_MISSING / UNSUPPORTED_FORMAT warnings. Anything the backend or its
// construction returns is BACKEND_CALL_FAILED with the original error text.
func (d *Dispatcher) Dispatch(ctx context.Context, b constants.Backend, file *intake.File) (res Result, err error) {
	if file == nil {
		return Result{}, common.InvalidInput("no file uploaded")
	}
	defer func() {
		if rerr := file.Release(); rerr != nil {
			d.logger.Error("extract.release_failed", "path", file.Path, "error", rerr)
		}
	}()

	start := time.Now()
	logger := common.LoggerFromContext(ctx, d.logger).With("backend", string(b), "file", file.Name)
	ctx, span := d.tracer.Start(ctx, "extract.dispatch", trace.WithAttributes(
		attribute.String("elsai.backend", string(b)),
		attribute.String("elsai.file.format", file.Format),
		attribute.Int64("elsai.file.bytes", file.Size),
	))
	defer func() {
		res.Duration = time.Since(start)
		d.finish(ctx, b, file, start, res, err, logger)
		telemetry.EndSpan(span, err)
	}()

	p, ok := d.registry[b]
	if !ok {
		return Result{}, common.InvalidInput(fmt.Sprintf("unknown extractor %q", b))
	}
	if !p.Accepts(file.Format) {
		return Result{}, common.UnsupportedFormat(fmt.Sprintf("%s currently only supports %s files", b.Label(), strings.Join(p.Formats, ", ")))
	}
	if m := p.Missing(d.cfg); len(m) > 0 {
		return Result{}, common.ConfigMissing(fmt.Sprintf("%s is not configured: missing %s", b.Label(), strings.Join(m, ", ")))
	}

	if err := d.gate.Acquire(ctx, 1); err != nil {
		return Result{}, common.BackendCallFailed(b.Label(), err)
	}
	defer d.gate.Release(1)
	defer d.metrics.ExtractionStarted()()

	callCtx := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	logger.Info("extract.start", "format", file.Format, "bytes", file.Size)
	ex, err := p.New(callCtx, d.cfg, logger)
	if err != nil {
		return Result{}, common.BackendCallFailed(b.Label(), err)
	}
	res, err = ex.Extract(callCtx, file.Path)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && d.timeout > 0 {
			err = fmt.Errorf("no response within %s: %w", d.timeout, err)
		}
		return Result{}, common.BackendCallFailed(b.Label(), err)
	}
	res.Backend = b
	if res.Pages == 0 {
		res.Pages = file.Pages
	}
	return res, nil
}

func (d *Dispatcher) finish(ctx context.Context, b constants.Backend, file *intake.File, start time.Time, res Result, err error, logger *slog.Logger) {
	status := constants.RunStatusOK
	switch common.SeverityOf(err) {
	case common.SeverityWarning:
		status = constants.RunStatusWarning
		logger.Warn("extract.rejected", "code", common.CodeOf(err), "reason", common.UserMessage(err))
	case common.SeverityError:
		status = constants.RunStatusFailed
		logger.Error("extract.failed", "code", common.CodeOf(err), "error", err, "elapsed_ms", res.Duration.Milliseconds())
	default:
		logger.Info("extract.ok",
			"kind", res.Kind,
			"method", res.Method,
			"pages", res.Pages,
			"chars", len(res.Text),
			"elapsed_ms", res.Duration.Milliseconds(),
		)
	}
	d.metrics.ObserveExtraction(string(b), string(status), common.CodeOf(err), res.Duration)

	run := repository.Run{
		ID:         uuid.New(),
		Backend:    b,
		FileName:   file.Name,
		FileExt:    file.Ext,
		FileSize:   file.Size,
		SHA256:     file.SHA256,
		Status:     status,
		ErrorCode:  common.CodeOf(err),
		Method:     res.Method,
		Pages:      res.Pages,
		TextBytes:  len(res.Display()),
		StartedAt:  start.UTC(),
		FinishedAt: time.Now().UTC(),
	}
	if err != nil {
		run.ErrorMessage = common.UserMessage(err)
	}
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if rerr := d.recorder.Record(rctx, run); rerr != nil {
		logger.Warn("extract.history_record_failed", "run_id", run.ID, "error", rerr)
	}
}
