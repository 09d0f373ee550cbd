package llm

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/capitalize-ai/convsynth/pkg/logger"
	"github.com/capitalize-ai/convsynth/pkg/metrics"
	"github.com/capitalize-ai/convsynth/pkg/tracing"
)

// InstrumentOptions configure Instrument.
type InstrumentOptions struct {
	// Delay is slept before every Generate call to stay under provider rate limits.
	Delay time.Duration
	// Timeout bounds each call. Zero means the caller's context only.
	Timeout time.Duration
	Tracer  trace.Tracer
	Logger  *logger.Logger
}

// InstrumentedBackend adds pacing, timeouts, spans, metrics and CallError wrapping.
type InstrumentedBackend struct {
	next   Backend
	opts   InstrumentOptions
	logger *logger.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// Instrument wraps next.
func Instrument(next Backend, opts InstrumentOptions) *InstrumentedBackend {
	if opts.Tracer == nil {
		opts.Tracer = tracing.Tracer()
	}
	return &InstrumentedBackend{
		next:   next,
		opts:   opts,
		logger: logger.OrGlobal(opts.Logger).Named("llm"),
		sleep:  sleepContext,
	}
}

// Name returns the wrapped provider name.
func (b *InstrumentedBackend) Name() string {
	return b.next.Name()
}

// Upload records the upload in a span. Errors are returned unwrapped; the
// uploader decides they are not fatal.
func (b *InstrumentedBackend) Upload(ctx context.Context, path string, modality Modality) (Handle, error) {
	ctx, span := b.opts.Tracer.Start(ctx, "llm.upload", trace.WithAttributes(
		attribute.String("llm.backend", b.next.Name()),
		attribute.String("artifact.modality", string(modality)),
		attribute.String("artifact.path", path),
	))
	defer span.End()

	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	h, err := b.next.Upload(ctx, path, modality)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return h, err
}

// Generate runs one paced, traced and measured call.
func (b *InstrumentedBackend) Generate(ctx context.Context, req *Request) (*Response, error) {
	if err := b.sleep(ctx, b.opts.Delay); err != nil {
		return nil, b.callError(req, err)
	}

	ctx, span := b.opts.Tracer.Start(ctx, "llm.generate", trace.WithAttributes(
		attribute.String("llm.backend", b.next.Name()),
		attribute.String("llm.model", req.Model),
		attribute.String("llm.purpose", req.Purpose),
		attribute.Int("llm.turn", req.Turn),
		attribute.Int("llm.history_len", len(req.Messages)),
	))
	defer span.End()

	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	resp, err := b.next.Generate(ctx, req)
	elapsed := time.Since(start)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.RecordLLMCall(b.next.Name(), req.Purpose, "error", elapsed.Seconds(), 0, 0, 0, 0)
		b.logger.Error("model call failed",
			zap.String("purpose", req.Purpose),
			zap.Int("turn", req.Turn),
			zap.Duration("duration", elapsed),
			zap.Error(err),
		)
		return nil, b.callError(req, err)
	}

	u := resp.Usage
	span.SetAttributes(
		attribute.Int("llm.tokens_in", u.Input()),
		attribute.Int("llm.tokens_out", u.OutputTokens),
	)
	metrics.RecordLLMCall(b.next.Name(), req.Purpose, "success", elapsed.Seconds(),
		u.InputTextTokens, u.InputImageTokens, u.InputAudioTokens, u.OutputTokens)
	b.logger.Debug("model call completed",
		zap.String("purpose", req.Purpose),
		zap.Int("turn", req.Turn),
		zap.Duration("duration", elapsed),
		zap.Int("tokens_in", u.Input()),
		zap.Int("tokens_out", u.OutputTokens),
		zap.String("prompt", req.LastUserText()),
	)
	return resp, nil
}

func (b *InstrumentedBackend) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if b.opts.Timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, b.opts.Timeout)
}

func (b *InstrumentedBackend) callError(req *Request, err error) error {
	return &CallError{Backend: b.next.Name(), Purpose: req.Purpose, Turn: req.Turn, Err: err}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
