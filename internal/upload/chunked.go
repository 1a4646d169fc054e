package upload

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rexmedia/mediavault/internal/apperr"
	"github.com/rexmedia/mediavault/internal/models"
)

// ContentRange is the parsed form of a `Content-Range: bytes s-e/t` header.
type ContentRange struct {
	Start, End, Total int64
}

// ParseContentRange parses a "bytes <start>-<end>/<total>" header value.
func ParseContentRange(header string) (*ContentRange, error) {
	const prefix = "bytes "
	if !strings.HasPrefix(header, prefix) {
		return nil, apperr.Newf(apperr.KindValidation, "malformed Content-Range header %q", header)
	}
	rest := strings.TrimPrefix(header, prefix)
	dash := strings.IndexByte(rest, '-')
	slash := strings.IndexByte(rest, '/')
	if dash < 0 || slash < 0 || slash < dash {
		return nil, apperr.Newf(apperr.KindValidation, "malformed Content-Range header %q", header)
	}
	start, err := strconv.ParseInt(rest[:dash], 10, 64)
	if err != nil {
		return nil, apperr.Newf(apperr.KindValidation, "malformed Content-Range start in %q", header)
	}
	end, err := strconv.ParseInt(rest[dash+1:slash], 10, 64)
	if err != nil {
		return nil, apperr.Newf(apperr.KindValidation, "malformed Content-Range end in %q", header)
	}
	total, err := strconv.ParseInt(rest[slash+1:], 10, 64)
	if err != nil {
		return nil, apperr.Newf(apperr.KindValidation, "malformed Content-Range total in %q", header)
	}
	return &ContentRange{Start: start, End: end, Total: total}, nil
}

// InitSession creates a new chunked-upload session (§4.6 "Init").
func (e *Engine) InitSession(filename, mimeType string, totalSize int64) (*models.UploadSession, error) {
	if totalSize <= 0 {
		return nil, apperr.New(apperr.KindValidation, "total_size must be > 0")
	}
	if totalSize > e.cfg.Upload.MaxChunkedUploadSize {
		return nil, apperr.Newf(apperr.KindPayloadTooLarge, "total_size exceeds maximum of %d bytes", e.cfg.Upload.MaxChunkedUploadSize)
	}
	if !allowedMime(e.cfg.Upload.AllowedImageTypes, mimeType) {
		return nil, apperr.Newf(apperr.KindUnsupportedMediaType, "mime type %q is not allowed", mimeType)
	}

	now := time.Now().UTC()
	sess := &models.UploadSession{
		ID:            uuid.New().String(),
		Filename:      filename,
		MimeType:      mimeType,
		TotalSize:     totalSize,
		ReceivedBytes: 0,
		ChunkSize:     e.cfg.Upload.ChunkSize,
		Status:        models.SessionInProgress,
		CreatedAt:     now,
		UpdatedAt:     now,
		ExpiresAt:     now.Add(e.cfg.Upload.UploadSessionTimeout()),
	}
	if err := e.blobs.CreateSessionDir(sess.ID); err != nil {
		return nil, err
	}
	if err := e.meta.InsertSession(sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func allowedMime(allowed []string, mime string) bool {
	for _, m := range allowed {
		if m == mime {
			return true
		}
	}
	return false
}

// AppendChunk implements the chunk-append state transition (§4.6 "Chunk").
// On an offset mismatch it returns the session unchanged with no error: the
// caller resumes from the session's NextOffset, which is a recovery
// primitive rather than a failure.
func (e *Engine) AppendChunk(sessionID string, data []byte, rng *ContentRange) (*models.UploadSession, error) {
	sess, err := e.meta.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status != models.SessionInProgress {
		return nil, apperr.Newf(apperr.KindUploadSessionError, "session %s is not accepting chunks (status=%s)", sessionID, sess.Status)
	}

	now := time.Now().UTC()
	if now.After(sess.ExpiresAt) {
		sess.Status = models.SessionExpired
		sess.UpdatedAt = now
		_ = e.meta.UpdateSession(sess)
		return nil, apperr.New(apperr.KindUploadSessionError, "upload session has expired")
	}

	start := sess.ReceivedBytes
	if rng != nil {
		start = rng.Start
	}
	if start != sess.ReceivedBytes {
		return sess, nil
	}

	if err := e.blobs.AppendChunk(sessionID, data); err != nil {
		return nil, err
	}
	sess.ReceivedBytes += int64(len(data))
	sess.UpdatedAt = now
	if err := e.meta.UpdateSession(sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Complete implements §4.6 "Complete": it reads the assembled temp file,
// runs the ingestion pipeline, and transitions the session to its terminal
// state.
func (e *Engine) Complete(sessionID string) (*models.Media, *models.UploadSession, error) {
	sess, err := e.meta.GetSession(sessionID)
	if err != nil {
		return nil, nil, err
	}
	if sess.Status != models.SessionInProgress {
		return nil, nil, apperr.Newf(apperr.KindUploadSessionError, "session %s cannot be completed (status=%s)", sessionID, sess.Status)
	}
	if sess.ReceivedBytes < sess.TotalSize {
		return nil, nil, apperr.Newf(apperr.KindUploadSessionError, "session %s has only received %d of %d bytes", sessionID, sess.ReceivedBytes, sess.TotalSize)
	}

	sess.Status = models.SessionProcessing
	sess.UpdatedAt = time.Now().UTC()
	if err := e.meta.UpdateSession(sess); err != nil {
		return nil, nil, err
	}

	raw, err := e.blobs.ReadTemp(sessionID)
	if err != nil {
		e.recordUpload("chunked", false)
		return e.failSession(sess, err)
	}

	media, _, err := e.ingest(raw, sess.Filename)
	if err != nil {
		e.recordUpload("chunked", false)
		return e.failSession(sess, err)
	}
	e.recordUpload("chunked", true)

	sess.Status = models.SessionCompleted
	sess.MediaID = media.ID
	sess.UpdatedAt = time.Now().UTC()
	if err := e.meta.UpdateSession(sess); err != nil {
		return nil, nil, err
	}
	if err := e.blobs.DeleteSessionDir(sessionID); err != nil {
		e.log.Warn("failed to remove completed upload session directory", zap.String("session_id", sessionID), zap.Error(err))
	}
	return media, sess, nil
}

func (e *Engine) failSession(sess *models.UploadSession, cause error) (*models.Media, *models.UploadSession, error) {
	sess.Status = models.SessionFailed
	sess.ErrorMessage = cause.Error()
	sess.UpdatedAt = time.Now().UTC()
	if err := e.meta.UpdateSession(sess); err != nil {
		return nil, nil, err
	}
	return nil, sess, cause
}

// Status returns the current session record (§4.6 "Status").
func (e *Engine) Status(sessionID string) (*models.UploadSession, error) {
	return e.meta.GetSession(sessionID)
}
