package models

import "time"

// SessionStatus is the state of a chunked upload session. Only
// SessionInProgress accepts chunk appends.
type SessionStatus string

const (
	SessionInProgress SessionStatus = "in_progress"
	SessionProcessing SessionStatus = "processing"
	SessionCompleted  SessionStatus = "completed"
	SessionFailed     SessionStatus = "failed"
	SessionExpired    SessionStatus = "expired"
	SessionCancelled  SessionStatus = "cancelled"
)

// IsTerminal reports whether no further chunks or transitions are accepted.
func (s SessionStatus) IsTerminal() bool {
	switch s {
	case SessionCompleted, SessionFailed, SessionExpired, SessionCancelled:
		return true
	default:
		return false
	}
}

// UploadSession is the server-side record of one resumable chunked upload.
type UploadSession struct {
	ID            string        `json:"id"`
	Filename      string        `json:"filename"`
	MimeType      string        `json:"mime_type"`
	TotalSize     int64         `json:"total_size"`
	ReceivedBytes int64         `json:"received_bytes"`
	ChunkSize     int64         `json:"chunk_size"`
	Status        SessionStatus `json:"status"`
	ErrorMessage  string        `json:"error_message,omitempty"`
	MediaID       string        `json:"media_id,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
	ExpiresAt     time.Time     `json:"expires_at"`
}

// UploadSessionResponse is the wire DTO for session status queries.
type UploadSessionResponse struct {
	ID            string        `json:"id"`
	Status        SessionStatus `json:"status"`
	ReceivedBytes int64         `json:"received_bytes"`
	TotalSize     int64         `json:"total_size"`
	Progress      float64       `json:"progress"`
	ChunkSize     int64         `json:"chunk_size"`
	NextOffset    int64         `json:"next_offset"`
	ExpiresAt     time.Time     `json:"expires_at"`
	Error         string        `json:"error,omitempty"`
	MediaID       string        `json:"media_id,omitempty"`
	MediaURL      string        `json:"media_url,omitempty"`
}

// ToResponse builds the wire DTO, filling in MediaURL from baseURL when the
// session has completed.
func (s *UploadSession) ToResponse(baseURL string) UploadSessionResponse {
	resp := UploadSessionResponse{
		ID:            s.ID,
		Status:        s.Status,
		ReceivedBytes: s.ReceivedBytes,
		TotalSize:     s.TotalSize,
		ChunkSize:     s.ChunkSize,
		NextOffset:    s.ReceivedBytes,
		ExpiresAt:     s.ExpiresAt,
		Error:         s.ErrorMessage,
		MediaID:       s.MediaID,
	}
	if s.TotalSize > 0 {
		resp.Progress = float64(s.ReceivedBytes) / float64(s.TotalSize) * 100
	}
	if s.Status == SessionCompleted && s.MediaID != "" {
		resp.MediaURL = baseURL + "/m/" + s.MediaID
	}
	return resp
}
