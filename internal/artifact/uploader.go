// Package artifact uploads per-track media to the model backend.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/capitalize-ai/convsynth/internal/llm"
	"github.com/capitalize-ai/convsynth/internal/model"
	"github.com/capitalize-ai/convsynth/pkg/logger"
	"github.com/capitalize-ai/convsynth/pkg/metrics"
)

// Upload outcomes, used as metric labels.
const (
	statusUploaded = "uploaded"
	statusCached   = "cached"
	statusMissing  = "missing"
	statusFailed   = "failed"
	statusSkipped  = "unsupported"
)

// Uploader uploads one modality of track artifacts. Each (track id, modality)
// is uploaded at most once per Uploader, so one Uploader serves one run.
type Uploader struct {
	backend  llm.Backend
	modality llm.Modality
	basePath string
	logger   *logger.Logger

	mu       sync.Mutex
	cache    map[string]llm.Handle
	warnings []model.ArtifactWarning
}

// NewUploader creates an uploader resolving relative paths against basePath.
func NewUploader(backend llm.Backend, modality llm.Modality, basePath string, log *logger.Logger) *Uploader {
	return &Uploader{
		backend:  backend,
		modality: modality,
		basePath: basePath,
		logger:   logger.OrGlobal(log).Named("artifact").With(zap.String("modality", string(modality))),
		cache:    make(map[string]llm.Handle),
	}
}

// Modality returns the modality this uploader handles.
func (u *Uploader) Modality() llm.Modality {
	return u.modality
}

// BatchUpload uploads the artifacts of tracks and returns track id -> handle.
// Tracks without a usable artifact are left out and recorded as warnings.
// The only error returned is the context's.
func (u *Uploader) BatchUpload(ctx context.Context, tracks model.Tracks) (map[string]llm.Handle, error) {
	handles := make(map[string]llm.Handle, len(tracks))
	for _, t := range tracks {
		if err := ctx.Err(); err != nil {
			return handles, err
		}
		h, ok, err := u.upload(ctx, t)
		if err != nil {
			return handles, err
		}
		if ok {
			handles[t.TrackID] = h
		}
	}

	u.logger.Info("artifacts uploaded",
		zap.Int("tracks", len(tracks)),
		zap.Int("handles", len(handles)),
	)
	return handles, nil
}

// Warnings returns the artifacts that could not be uploaded so far.
func (u *Uploader) Warnings() []model.ArtifactWarning {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]model.ArtifactWarning(nil), u.warnings...)
}

func (u *Uploader) upload(ctx context.Context, t model.Track) (llm.Handle, bool, error) {
	key := t.TrackID + "-" + string(u.modality)

	u.mu.Lock()
	h, cached := u.cache[key]
	u.mu.Unlock()
	if cached {
		metrics.RecordUpload(string(u.modality), statusCached)
		return h, true, nil
	}

	path := t.ArtifactPath(string(u.modality), u.basePath)
	if path == "" {
		// No artifact for this modality is normal; nothing to warn about.
		return llm.Handle{}, false, nil
	}
	if _, err := os.Stat(path); err != nil {
		u.warn(t.TrackID, path, statusMissing, fmt.Sprintf("file not found: %v", err))
		return llm.Handle{}, false, nil
	}

	h, err := u.backend.Upload(ctx, path, u.modality)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return llm.Handle{}, false, ctxErr
		}
		status := statusFailed
		if errors.Is(err, llm.ErrUploadUnsupported) {
			status = statusSkipped
		}
		u.warn(t.TrackID, path, status, err.Error())
		return llm.Handle{}, false, nil
	}
	h.TrackID = t.TrackID
	if h.Modality == "" {
		h.Modality = u.modality
	}

	u.mu.Lock()
	u.cache[key] = h
	u.mu.Unlock()

	metrics.RecordUpload(string(u.modality), statusUploaded)
	u.logger.Debug("artifact uploaded",
		zap.String("track_id", t.TrackID),
		zap.String("path", path),
		zap.String("uri", h.URI),
	)
	return h, true, nil
}

func (u *Uploader) warn(trackID, path, status, reason string) {
	metrics.RecordUpload(string(u.modality), status)
	u.logger.Warn("artifact skipped",
		zap.String("track_id", trackID),
		zap.String("path", path),
		zap.String("reason", reason),
	)

	u.mu.Lock()
	u.warnings = append(u.warnings, model.ArtifactWarning{
		TrackID:  trackID,
		Modality: string(u.modality),
		Path:     path,
		Reason:   reason,
	})
	u.mu.Unlock()
}
