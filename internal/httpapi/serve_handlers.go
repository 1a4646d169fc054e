package httpapi

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/rexmedia/mediavault/internal/apperr"
	"github.com/rexmedia/mediavault/internal/imaging"
	"github.com/rexmedia/mediavault/internal/store/blob"
)

func (a *API) bumpLastAccessedAsync(id string) {
	go func() {
		if err := a.Meta.UpdateLastAccessed(id); err != nil {
			a.Log.Warn("failed to bump last_accessed_at", zap.String("media_id", id), zap.Error(err))
		}
	}()
}

func setCacheHeaders(w http.ResponseWriter, contentHash string, maxAge int) {
	w.Header().Set("ETag", fmt.Sprintf("%q", contentHash))
	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d, immutable", maxAge))
	w.Header().Set("X-Content-Type-Options", "nosniff")
}

func notModified(r *http.Request, contentHash string) bool {
	inm := r.Header.Get("If-None-Match")
	return inm != "" && inm == fmt.Sprintf("%q", contentHash)
}

// handleServeOptimized implements GET /m/{id} (§4.7).
func (a *API) handleServeOptimized(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	media, err := a.Meta.GetMedia(id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	setCacheHeaders(w, media.ContentHash, a.Cfg.Server.CacheMaxAgeSeconds)
	if notModified(r, media.ContentHash) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	ext := imaging.ExtForMIME(media.OptimizedMimeType)
	w.Header().Set("Content-Type", media.OptimizedMimeType)
	if _, err := a.Blobs.CopyOptimizedTo(w, id, ext); err != nil {
		a.Log.Error("failed to stream optimized blob", zap.String("media_id", id), zap.Error(err))
		return
	}
	a.bumpLastAccessedAsync(id)
}

// handleServeOriginal implements GET /m/{id}/original (§4.7).
func (a *API) handleServeOriginal(w http.ResponseWriter, r *http.Request) {
	if !a.Cfg.Processing.KeepOriginals {
		a.writeError(w, r, apperr.New(apperr.KindNotFound, "original files are not retained by this deployment"))
		return
	}
	id := r.PathValue("id")
	media, err := a.Meta.GetMedia(id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	setCacheHeaders(w, media.ContentHash, a.Cfg.Server.CacheMaxAgeSeconds)
	if notModified(r, media.ContentHash) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	ext := imaging.ExtForMIME(media.OriginalMimeType)
	w.Header().Set("Content-Type", media.OriginalMimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", blob.SanitizeFilename(media.OriginalFilename)))
	if _, err := a.Blobs.CopyOriginalTo(w, id, ext); err != nil {
		a.Log.Error("failed to stream original blob", zap.String("media_id", id), zap.Error(err))
		return
	}
	a.bumpLastAccessedAsync(id)
}
