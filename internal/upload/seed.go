package upload

import (
	"encoding/base64"
	"time"

	"github.com/rexmedia/mediavault/internal/apperr"
	"github.com/rexmedia/mediavault/internal/imaging"
	"github.com/rexmedia/mediavault/internal/models"
)

// DefaultMediaID is the reserved pseudo-id backing the locked-with-defaults
// response's image URLs (`<base_url>/m/default`, §4.9).
const DefaultMediaID = "default"

// defaultPlaceholderPNG is a 1x1 transparent pixel, the smallest valid PNG.
const defaultPlaceholderPNG = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNkYAAAAAYAAjCB0C8AAAAASUVORK5CYII="

// SeedDefaultMedia ensures the "default" media record and its blob files
// exist, inserting a placeholder if absent. It is idempotent and meant to
// run once at startup, before the listeners start.
func (e *Engine) SeedDefaultMedia() error {
	if _, err := e.meta.GetMedia(DefaultMediaID); err == nil {
		return nil
	} else if ae, ok := apperr.Of(err); !ok || ae.Kind != apperr.KindNotFound {
		return err
	}

	raw, err := base64.StdEncoding.DecodeString(defaultPlaceholderPNG)
	if err != nil {
		return apperr.Wrap(err, apperr.KindInternal, "decode default placeholder image")
	}

	policy := e.policy()
	policy.AllowedImageTypes = append(append([]string{}, policy.AllowedImageTypes...), "image/png")

	result, err := imaging.Process(raw, policy)
	if err != nil {
		return apperr.Wrap(err, apperr.KindImageProcessing, "process default placeholder image")
	}

	optExt := imaging.ExtForMIME(result.OptimizedMIME)
	if err := e.blobs.SaveOptimized(DefaultMediaID, optExt, result.OptimizedBytes); err != nil {
		return err
	}
	if e.cfg.Processing.KeepOriginals {
		origExt := imaging.ExtForMIME(result.OriginalMIME)
		if err := e.blobs.SaveOriginal(DefaultMediaID, origExt, result.OriginalBytes); err != nil {
			return err
		}
	}

	media := &models.Media{
		ID:                DefaultMediaID,
		OriginalFilename:  "default.png",
		OriginalMimeType:  result.OriginalMIME,
		OptimizedMimeType: result.OptimizedMIME,
		MediaType:         models.MediaTypeImage,
		OriginalSize:      int64(len(result.OriginalBytes)),
		OptimizedSize:     int64(len(result.OptimizedBytes)),
		Width:             result.Width,
		Height:            result.Height,
		ContentHash:       ContentHash(raw),
		CreatedAt:         time.Now().UTC(),
	}
	return e.meta.InsertMedia(media)
}
