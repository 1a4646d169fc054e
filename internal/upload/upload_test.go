package upload

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rexmedia/mediavault/internal/apperr"
	"github.com/rexmedia/mediavault/internal/config"
	"github.com/rexmedia/mediavault/internal/models"
	"github.com/rexmedia/mediavault/internal/obslog"
	"github.com/rexmedia/mediavault/internal/store/blob"
	"github.com/rexmedia/mediavault/internal/store/meta"
)

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 1, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func testEngine(t *testing.T) *Engine {
	t.Helper()
	dir := t.TempDir()
	metaStore, err := meta.Open(filepath.Join(dir, "meta.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = metaStore.Close() })

	blobStore, err := blob.New(dir, 2)
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Upload.MaxSimpleUploadSize = 1 << 20
	cfg.Upload.MaxChunkedUploadSize = 1 << 20
	cfg.Upload.AllowedImageTypes = []string{"image/png"}

	return NewEngine(metaStore, blobStore, &cfg, testLogger(t))
}

func testLogger(t *testing.T) obslog.Logger {
	t.Helper()
	l, err := obslog.New(obslog.Config{Environment: "development", LogLevel: "debug", ServiceName: "test"})
	require.NoError(t, err)
	return l
}

func TestSimpleUploadRejectsOversized(t *testing.T) {
	e := testEngine(t)
	e.cfg.Upload.MaxSimpleUploadSize = 4
	_, _, err := e.Simple([]byte("12345"), "big.png")
	ae, ok := apperr.Of(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindPayloadTooLarge, ae.Kind)
}

func TestSimpleUploadDedup(t *testing.T) {
	e := testEngine(t)
	raw := testPNG(t, 10, 10)

	m1, hit1, err := e.Simple(raw, "a.png")
	require.NoError(t, err)
	assert.False(t, hit1)

	m2, hit2, err := e.Simple(raw, "b.png")
	require.NoError(t, err)
	assert.True(t, hit2)
	assert.Equal(t, m1.ID, m2.ID)
}

func TestChunkedUploadHappyPath(t *testing.T) {
	e := testEngine(t)
	raw := testPNG(t, 20, 20)
	mid := len(raw) / 2

	sess, err := e.InitSession("chunked.png", "image/png", int64(len(raw)))
	require.NoError(t, err)
	assert.Equal(t, models.SessionInProgress, sess.Status)

	sess, err = e.AppendChunk(sess.ID, raw[:mid], &ContentRange{Start: 0, End: int64(mid - 1), Total: int64(len(raw))})
	require.NoError(t, err)
	assert.EqualValues(t, mid, sess.ReceivedBytes)

	sess, err = e.AppendChunk(sess.ID, raw[mid:], &ContentRange{Start: int64(mid), End: int64(len(raw) - 1), Total: int64(len(raw))})
	require.NoError(t, err)
	assert.EqualValues(t, len(raw), sess.ReceivedBytes)

	media, final, err := e.Complete(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionCompleted, final.Status)
	assert.Equal(t, media.ID, final.MediaID)
}

func TestChunkedUploadOffsetMismatchReturnsUnchanged(t *testing.T) {
	e := testEngine(t)
	sess, err := e.InitSession("x.png", "image/png", 1000)
	require.NoError(t, err)

	got, err := e.AppendChunk(sess.ID, make([]byte, 500), &ContentRange{Start: 500, End: 999, Total: 1000})
	require.NoError(t, err)
	assert.EqualValues(t, 0, got.ReceivedBytes)
	assert.Equal(t, models.SessionInProgress, got.Status)
}

func TestParseContentRange(t *testing.T) {
	rng, err := ParseContentRange("bytes 0-499/1000")
	require.NoError(t, err)
	assert.Equal(t, int64(0), rng.Start)
	assert.Equal(t, int64(499), rng.End)
	assert.Equal(t, int64(1000), rng.Total)

	_, err = ParseContentRange("garbage")
	assert.Error(t, err)
}

func TestSeedDefaultMediaIsIdempotent(t *testing.T) {
	e := testEngine(t)
	require.NoError(t, e.SeedDefaultMedia())

	media, err := e.meta.GetMedia(DefaultMediaID)
	require.NoError(t, err)
	assert.Equal(t, DefaultMediaID, media.ID)

	byHash, err := e.meta.FindByHash(media.ContentHash)
	require.NoError(t, err)
	assert.Equal(t, DefaultMediaID, byHash.ID)

	// Re-seeding must not error or duplicate the record.
	require.NoError(t, e.SeedDefaultMedia())
	count, err := e.meta.MediaCount()
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}
