// Package upload implements the simple and chunked ingestion engines: the
// real engineering core named by the specification's upload-engine
// component.
package upload

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rexmedia/mediavault/internal/apperr"
	"github.com/rexmedia/mediavault/internal/config"
	"github.com/rexmedia/mediavault/internal/imaging"
	"github.com/rexmedia/mediavault/internal/metrics"
	"github.com/rexmedia/mediavault/internal/models"
	"github.com/rexmedia/mediavault/internal/obslog"
	"github.com/rexmedia/mediavault/internal/store/blob"
	"github.com/rexmedia/mediavault/internal/store/meta"
)

// Engine ties the metadata store, blob store, and image pipeline together
// behind the simple and chunked upload operations.
type Engine struct {
	meta    *meta.Store
	blobs   *blob.Store
	cfg     *config.Config
	log     obslog.Logger
	metrics *metrics.Registry
}

// NewEngine builds an Engine over the given stores and configuration.
func NewEngine(metaStore *meta.Store, blobStore *blob.Store, cfg *config.Config, log obslog.Logger) *Engine {
	return &Engine{meta: metaStore, blobs: blobStore, cfg: cfg, log: log}
}

// SetMetrics attaches the admin metrics registry. Left unset, counters are
// simply not incremented; tests that build an Engine directly need no
// registry.
func (e *Engine) SetMetrics(reg *metrics.Registry) { e.metrics = reg }

func (e *Engine) policy() imaging.Policy {
	return imaging.Policy{
		AllowedImageTypes: e.cfg.Upload.AllowedImageTypes,
		MaxDimension:      e.cfg.Processing.MaxImageDimension,
		OutputFormat:      e.cfg.Processing.OutputFormat,
		OutputQuality:     e.cfg.Processing.OutputQuality,
		StripEXIF:         e.cfg.Processing.StripEXIF,
	}
}

// ingest runs the shared dedup-check + pipeline + persist steps used by
// both the simple path and the chunked-complete path. The returned bool
// reports whether this was a dedup hit (no new writes occurred).
func (e *Engine) ingest(raw []byte, filename string) (*models.Media, bool, error) {
	hash := ContentHash(raw)

	if existing, err := e.meta.FindByHash(hash); err == nil {
		if e.metrics != nil {
			e.metrics.DedupHitsTotal.Inc()
		}
		return existing, true, nil
	} else if ae, ok := apperr.Of(err); !ok || ae.Kind != apperr.KindNotFound {
		return nil, false, err
	}

	result, err := imaging.Process(raw, e.policy())
	if err != nil {
		return nil, false, err
	}

	id := uuid.New().String()
	optExt := imaging.ExtForMIME(result.OptimizedMIME)
	if err := e.blobs.SaveOptimized(id, optExt, result.OptimizedBytes); err != nil {
		return nil, false, err
	}
	if e.cfg.Processing.KeepOriginals {
		origExt := imaging.ExtForMIME(result.OriginalMIME)
		if err := e.blobs.SaveOriginal(id, origExt, result.OriginalBytes); err != nil {
			return nil, false, err
		}
	}

	media := &models.Media{
		ID:                id,
		OriginalFilename:  filename,
		OriginalMimeType:  result.OriginalMIME,
		OptimizedMimeType: result.OptimizedMIME,
		MediaType:         models.MediaTypeFromMIME(result.OriginalMIME),
		OriginalSize:      int64(len(result.OriginalBytes)),
		OptimizedSize:     int64(len(result.OptimizedBytes)),
		Width:             result.Width,
		Height:            result.Height,
		ContentHash:       hash,
		CreatedAt:         time.Now().UTC(),
	}
	if err := e.meta.InsertMedia(media); err != nil {
		return nil, false, err
	}
	return media, false, nil
}

// Simple implements the single-shot multipart upload path (§4.5).
func (e *Engine) Simple(raw []byte, filename string) (*models.Media, bool, error) {
	if int64(len(raw)) > e.cfg.Upload.MaxSimpleUploadSize {
		e.recordUpload("simple", false)
		return nil, false, apperr.Newf(apperr.KindPayloadTooLarge, "upload exceeds maximum size of %d bytes", e.cfg.Upload.MaxSimpleUploadSize)
	}
	media, hit, err := e.ingest(raw, filename)
	e.recordUpload("simple", err == nil)
	return media, hit, err
}

func (e *Engine) recordUpload(path string, ok bool) {
	if e.metrics == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	e.metrics.UploadsTotal.WithLabelValues(path, outcome).Inc()
}

// ExtForMedia returns the on-disk extension the blob store uses for m's
// optimized and original files, derived from their stored MIME types.
func ExtForMedia(m *models.Media) (optimizedExt, originalExt string) {
	return imaging.ExtForMIME(m.OptimizedMimeType), imaging.ExtForMIME(m.OriginalMimeType)
}

// DeleteMedia removes both the KV record and the on-disk blobs for id.
// Filesystem deletion is best-effort; the KV delete is the atomic unit of
// truth.
func (e *Engine) DeleteMedia(id string) error {
	media, err := e.meta.GetMedia(id)
	if err != nil {
		return err
	}
	optExt, origExt := ExtForMedia(media)
	if err := e.blobs.DeleteOptimized(id, optExt); err != nil {
		e.log.Warn("failed to delete optimized blob", zap.String("media_id", id), zap.Error(err))
	}
	if err := e.blobs.DeleteOriginal(id, origExt); err != nil {
		e.log.Warn("failed to delete original blob", zap.String("media_id", id), zap.Error(err))
	}
	return e.meta.DeleteMedia(id)
}
