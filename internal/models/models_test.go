package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMediaTypeFromMIME(t *testing.T) {
	assert.Equal(t, MediaTypeImage, MediaTypeFromMIME("image/png"))
	assert.Equal(t, MediaTypeVideo, MediaTypeFromMIME("video/mp4"))
}

func TestMediaToUploadResponse(t *testing.T) {
	m := &Media{ID: "abc", OptimizedMimeType: "image/webp", Width: 10, Height: 20, OptimizedSize: 123, MediaType: MediaTypeImage}

	resp := m.ToUploadResponse("https://cdn.example", true)
	assert.Equal(t, "https://cdn.example/m/abc", resp.URL)
	assert.Equal(t, "https://cdn.example/m/abc/original", resp.OriginalURL)

	resp = m.ToUploadResponse("https://cdn.example", false)
	assert.Empty(t, resp.OriginalURL)
}

func TestSessionStatusIsTerminal(t *testing.T) {
	assert.False(t, SessionInProgress.IsTerminal())
	assert.False(t, SessionProcessing.IsTerminal())
	assert.True(t, SessionCompleted.IsTerminal())
	assert.True(t, SessionFailed.IsTerminal())
	assert.True(t, SessionExpired.IsTerminal())
	assert.True(t, SessionCancelled.IsTerminal())
}

func TestSessionToResponse(t *testing.T) {
	s := &UploadSession{ID: "s1", TotalSize: 200, ReceivedBytes: 50, Status: SessionInProgress}
	resp := s.ToResponse("https://cdn.example")
	assert.Equal(t, int64(50), resp.NextOffset)
	assert.InDelta(t, 25.0, resp.Progress, 0.001)
	assert.Empty(t, resp.MediaURL)

	s.Status = SessionCompleted
	s.MediaID = "media1"
	resp = s.ToResponse("https://cdn.example")
	assert.Equal(t, "https://cdn.example/m/media1", resp.MediaURL)
}

func TestDefaultMetadataResponse(t *testing.T) {
	resp := DefaultMetadataResponse(1, "0xabc", "https://cdn.example")
	assert.Equal(t, "", resp.Description)
	assert.Empty(t, resp.SocialNetworks)
	assert.Equal(t, "https://cdn.example/m/default", resp.ImageLightURL)
	assert.Equal(t, "https://cdn.example/m/default", resp.ImageDarkURL)
}
