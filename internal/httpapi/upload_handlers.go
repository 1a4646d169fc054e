package httpapi

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/rexmedia/mediavault/internal/apperr"
	"github.com/rexmedia/mediavault/internal/upload"
)

// handleSimpleUpload implements POST /api/upload (§4.5).
func (a *API) handleSimpleUpload(w http.ResponseWriter, r *http.Request) {
	maxMem := a.Cfg.Upload.MaxSimpleUploadSize
	if err := r.ParseMultipartForm(maxMem); err != nil {
		a.writeError(w, r, apperr.Wrap(err, apperr.KindValidation, "failed to parse multipart form"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		a.writeError(w, r, apperr.New(apperr.KindValidation, "missing required multipart field \"file\""))
		return
	}
	defer file.Close()

	raw, err := io.ReadAll(io.LimitReader(file, a.Cfg.Upload.MaxSimpleUploadSize+1))
	if err != nil {
		a.writeError(w, r, apperr.Wrap(err, apperr.KindIO, "read uploaded file"))
		return
	}
	if int64(len(raw)) > a.Cfg.Upload.MaxSimpleUploadSize {
		a.writeError(w, r, apperr.Newf(apperr.KindPayloadTooLarge, "upload exceeds maximum size of %d bytes", a.Cfg.Upload.MaxSimpleUploadSize))
		return
	}

	media, _, err := a.Uploads.Simple(raw, header.Filename)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	resp := media.ToUploadResponse(a.baseURL(), a.Cfg.Processing.KeepOriginals)
	a.writeJSON(w, http.StatusCreated, resp)
}

type initRequest struct {
	Filename  string `json:"filename"`
	MimeType  string `json:"mime_type"`
	TotalSize int64  `json:"total_size"`
}

// handleInitUpload implements POST /api/upload/init (§4.6 "Init").
func (a *API) handleInitUpload(w http.ResponseWriter, r *http.Request) {
	var req initRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil {
		a.writeError(w, r, apperr.New(apperr.KindValidation, "invalid JSON body"))
		return
	}
	sess, err := a.Uploads.InitSession(req.Filename, req.MimeType, req.TotalSize)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, sess.ToResponse(a.baseURL()))
}

// handleChunk implements PATCH /api/upload/{id}/chunk (§4.6 "Chunk").
func (a *API) handleChunk(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	var rng *upload.ContentRange
	if header := r.Header.Get("Content-Range"); header != "" {
		parsed, err := upload.ParseContentRange(header)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		rng = parsed
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		a.writeError(w, r, apperr.Wrap(err, apperr.KindIO, "read chunk body"))
		return
	}

	sess, err := a.Uploads.AppendChunk(sessionID, data, rng)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, sess.ToResponse(a.baseURL()))
}

// handleCompleteUpload implements POST /api/upload/{id}/complete (§4.6
// "Complete").
func (a *API) handleCompleteUpload(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	media, _, err := a.Uploads.Complete(sessionID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	resp := media.ToUploadResponse(a.baseURL(), a.Cfg.Processing.KeepOriginals)
	a.writeJSON(w, http.StatusOK, resp)
}

// handleUploadStatus implements GET /api/upload/{id}/status (§4.6
// "Status").
func (a *API) handleUploadStatus(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	sess, err := a.Uploads.Status(sessionID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, sess.ToResponse(a.baseURL()))
}
