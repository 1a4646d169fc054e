// Package models holds the persisted record types shared by the metadata
// store, the upload engines, and the HTTP DTOs.
package models

import "time"

// MediaType is derived from a MIME type's prefix at ingest time.
type MediaType string

const (
	MediaTypeImage MediaType = "image"
	MediaTypeVideo MediaType = "video"
)

// Media is the record of one ingested file. It is solely owned by its KV
// entry: deleting it must delete both on-disk files and the hash index
// entry that points to it.
type Media struct {
	ID                string     `json:"id"`
	OriginalFilename  string     `json:"original_filename"`
	OriginalMimeType  string     `json:"original_mime_type"`
	OptimizedMimeType string     `json:"optimized_mime_type"`
	MediaType         MediaType  `json:"media_type"`
	OriginalSize      int64      `json:"original_size"`
	OptimizedSize     int64      `json:"optimized_size"`
	Width             int        `json:"width"`
	Height            int        `json:"height"`
	ContentHash       string     `json:"content_hash"`
	CreatedAt         time.Time  `json:"created_at"`
	LastAccessedAt    *time.Time `json:"last_accessed_at,omitempty"`
}

// MediaTypeFromMIME derives the coarse media type from a MIME type's prefix.
// Any non-image, non-video MIME is treated as MediaTypeImage by callers that
// already rejected it earlier in the pipeline; this function itself only
// distinguishes the two recognized prefixes.
func MediaTypeFromMIME(mime string) MediaType {
	if len(mime) >= 6 && mime[:6] == "video/" {
		return MediaTypeVideo
	}
	return MediaTypeImage
}

// UploadResponse is the DTO returned on successful ingestion, whether via
// the simple or the chunked path.
type UploadResponse struct {
	ID           string    `json:"id"`
	URL          string    `json:"url"`
	OriginalURL  string    `json:"original_url,omitempty"`
	MediaType    MediaType `json:"media_type"`
	MimeType     string    `json:"mime_type"`
	Size         int64     `json:"size"`
	Width        int       `json:"width"`
	Height       int       `json:"height"`
}

// ToUploadResponse builds the wire DTO for m, given the service's base URL
// and whether originals are being kept (and thus worth linking to).
func (m *Media) ToUploadResponse(baseURL string, keepOriginals bool) UploadResponse {
	resp := UploadResponse{
		ID:        m.ID,
		URL:       baseURL + "/m/" + m.ID,
		MediaType: m.MediaType,
		MimeType:  m.OptimizedMimeType,
		Size:      m.OptimizedSize,
		Width:     m.Width,
		Height:    m.Height,
	}
	if keepOriginals {
		resp.OriginalURL = baseURL + "/m/" + m.ID + "/original"
	}
	return resp
}
