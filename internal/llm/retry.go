package llm

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/capitalize-ai/convsynth/pkg/logger"
	"github.com/capitalize-ai/convsynth/pkg/metrics"
)

// RetryBackend retries failed Generate and Upload calls with exponential backoff.
type RetryBackend struct {
	next       Backend
	maxRetries uint64
	newBackOff func() backoff.BackOff
	logger     *logger.Logger
}

// WithRetry wraps next. maxRetries of zero returns next unchanged.
func WithRetry(next Backend, maxRetries int, log *logger.Logger) Backend {
	if maxRetries <= 0 {
		return next
	}
	return &RetryBackend{
		next:       next,
		maxRetries: uint64(maxRetries),
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = time.Second
			b.MaxInterval = 30 * time.Second
			b.MaxElapsedTime = 0
			return b
		},
		logger: logger.OrGlobal(log),
	}
}

// Name returns the wrapped provider name.
func (r *RetryBackend) Name() string {
	return r.next.Name()
}

// Upload retries the wrapped upload. ErrUploadUnsupported is not retried.
func (r *RetryBackend) Upload(ctx context.Context, path string, modality Modality) (Handle, error) {
	var h Handle
	err := r.retry(ctx, "upload", func() error {
		var err error
		h, err = r.next.Upload(ctx, path, modality)
		if errors.Is(err, ErrUploadUnsupported) {
			return backoff.Permanent(err)
		}
		return err
	})
	return h, err
}

// Generate retries the wrapped call.
func (r *RetryBackend) Generate(ctx context.Context, req *Request) (*Response, error) {
	var resp *Response
	err := r.retry(ctx, req.Purpose, func() error {
		var err error
		resp, err = r.next.Generate(ctx, req)
		return err
	})
	return resp, err
}

func (r *RetryBackend) retry(ctx context.Context, purpose string, op func() error) error {
	attempt := 0
	wrapped := func() error {
		attempt++
		err := op()
		if err != nil && ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		metrics.LLMRetriesTotal.WithLabelValues(r.next.Name(), purpose).Inc()
		r.logger.Warn("model call failed, retrying",
			zap.String("backend", r.next.Name()),
			zap.String("purpose", purpose),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}
	b := backoff.WithContext(backoff.WithMaxRetries(r.newBackOff(), r.maxRetries), ctx)
	return backoff.RetryNotify(wrapped, b, notify)
}
