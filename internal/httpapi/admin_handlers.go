package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/rexmedia/mediavault/internal/apperr"
	"github.com/rexmedia/mediavault/internal/models"
	"github.com/rexmedia/mediavault/internal/store/blob"
)

// handleAdminGetMedia implements GET /admin/media/{id}.
func (a *API) handleAdminGetMedia(w http.ResponseWriter, r *http.Request) {
	media, err := a.Meta.GetMedia(r.PathValue("id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, media)
}

// handleAdminDeleteMedia implements DELETE /admin/media/{id}.
func (a *API) handleAdminDeleteMedia(w http.ResponseWriter, r *http.Request) {
	if err := a.Uploads.DeleteMedia(r.PathValue("id")); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type adminStatsResponse struct {
	MediaCount     int    `json:"media_count"`
	OriginalsBytes int64  `json:"originals_bytes"`
	OriginalsSize  string `json:"originals_size"`
	OriginalsCount int64  `json:"originals_count"`
	OptimizedBytes int64  `json:"optimized_bytes"`
	OptimizedSize  string `json:"optimized_size"`
	OptimizedCount int64  `json:"optimized_count"`
}

// handleAdminStats implements GET /admin/stats.
func (a *API) handleAdminStats(w http.ResponseWriter, r *http.Request) {
	count, err := a.Meta.MediaCount()
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	stats, err := a.Blobs.GetStats()
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, adminStatsResponse{
		MediaCount:     count,
		OriginalsBytes: stats.OriginalsBytes,
		OriginalsSize:  blob.HumanSize(stats.OriginalsBytes),
		OriginalsCount: stats.OriginalsCount,
		OptimizedBytes: stats.OptimizedBytes,
		OptimizedSize:  blob.HumanSize(stats.OptimizedBytes),
		OptimizedCount: stats.OptimizedCount,
	})
}

// handleAdminCleanup implements POST /admin/cleanup: an on-demand trigger
// of the same expiry sweep the background cron schedule runs (§4.6).
func (a *API) handleAdminCleanup(w http.ResponseWriter, r *http.Request) {
	if err := a.Uploads.Sweep(); err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleAdminMetrics implements GET /admin/metrics.
func (a *API) handleAdminMetrics(w http.ResponseWriter, r *http.Request) {
	a.Metrics.Handler().ServeHTTP(w, r)
}

type lockRequest struct {
	LockType string `json:"lock_type"`
	Reason   string `json:"reason"`
}

// handleAdminLock implements POST /admin/rexpump/lock/{c}/{a} (§4.9).
func (a *API) handleAdminLock(w http.ResponseWriter, r *http.Request) {
	chainID, err := strconv.ParseInt(r.PathValue("chain"), 10, 64)
	if err != nil {
		a.writeError(w, r, apperr.New(apperr.KindValidation, "chain must be an integer"))
		return
	}
	var req lockRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<12)).Decode(&req); err != nil {
		a.writeError(w, r, apperr.New(apperr.KindValidation, "invalid JSON body"))
		return
	}
	lockType := models.LockType(req.LockType)
	if lockType != models.LockTypeLocked && lockType != models.LockTypeLockedWithDefaults {
		a.writeError(w, r, apperr.New(apperr.KindValidation, "lock_type must be \"locked\" or \"locked_with_defaults\""))
		return
	}
	if err := a.RexPump.AdminLock(chainID, r.PathValue("addr"), lockType, req.Reason, "admin"); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAdminUnlock implements DELETE /admin/rexpump/lock/{c}/{a} (§4.9).
func (a *API) handleAdminUnlock(w http.ResponseWriter, r *http.Request) {
	chainID, err := strconv.ParseInt(r.PathValue("chain"), 10, 64)
	if err != nil {
		a.writeError(w, r, apperr.New(apperr.KindValidation, "chain must be an integer"))
		return
	}
	existed, err := a.RexPump.AdminUnlock(chainID, r.PathValue("addr"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if !existed {
		a.writeError(w, r, apperr.New(apperr.KindNotFound, "no lock exists for this token"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type adminMetadataResponse struct {
	Metadata *models.MetadataResponse `json:"metadata,omitempty"`
	Lock     *models.TokenLock        `json:"lock,omitempty"`
	IsLocked bool                     `json:"is_locked"`
}

// handleAdminGetMetadata implements GET /admin/rexpump/metadata/{c}/{a}.
func (a *API) handleAdminGetMetadata(w http.ResponseWriter, r *http.Request) {
	chainID, err := strconv.ParseInt(r.PathValue("chain"), 10, 64)
	if err != nil {
		a.writeError(w, r, apperr.New(apperr.KindValidation, "chain must be an integer"))
		return
	}
	addr := r.PathValue("addr")

	resp := adminMetadataResponse{}
	if lock, err := a.Meta.GetTokenLock(chainID, addr); err == nil {
		resp.Lock = lock
		resp.IsLocked = true
	}
	if tm, err := a.Meta.GetTokenMetadata(chainID, addr); err == nil {
		m := tm.ToResponse(a.baseURL())
		resp.Metadata = &m
	}
	a.writeJSON(w, http.StatusOK, resp)
}

// handleAdminPutMetadata implements PUT /admin/rexpump/metadata/{c}/{a}:
// the same write path as the signed update, skipping §4.8 steps 3-7 and
// stamped with last_update_by="admin".
func (a *API) handleAdminPutMetadata(w http.ResponseWriter, r *http.Request) {
	chainID, err := strconv.ParseInt(r.PathValue("chain"), 10, 64)
	if err != nil {
		a.writeError(w, r, apperr.New(apperr.KindValidation, "chain must be an integer"))
		return
	}
	addr := r.PathValue("addr")

	if err := r.ParseMultipartForm(a.Cfg.Upload.MaxSimpleUploadSize * 2); err != nil {
		a.writeError(w, r, apperr.Wrap(err, apperr.KindValidation, "failed to parse multipart form"))
		return
	}
	description, socials, err := parseMetadataField(r.FormValue("metadata"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	imageLight, lightName, err := readFormFileBytes(r, "image_light")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	imageDark, darkName, err := readFormFileBytes(r, "image_dark")
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	tm, err := a.RexPump.AdminUpdate(chainID, addr, description, socials, imageLight, imageDark, lightName, darkName)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, tm.ToResponse(a.baseURL()))
}

// handleAdminDeleteMetadata implements DELETE /admin/rexpump/metadata/{c}/{a}.
func (a *API) handleAdminDeleteMetadata(w http.ResponseWriter, r *http.Request) {
	chainID, err := strconv.ParseInt(r.PathValue("chain"), 10, 64)
	if err != nil {
		a.writeError(w, r, apperr.New(apperr.KindValidation, "chain must be an integer"))
		return
	}
	if err := a.RexPump.AdminDeleteMetadata(chainID, r.PathValue("addr")); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
