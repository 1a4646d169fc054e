package httpapi

import "net/http"

// PublicRouter builds the mux serving uploads, blob reads, rexpump, and
// health endpoints (§6 "Public API"). It is meant to listen on
// cfg.Server.Host:Port.
func (a *API) PublicRouter() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/upload", a.handleSimpleUpload)
	mux.HandleFunc("POST /api/upload/init", a.handleInitUpload)
	mux.HandleFunc("PATCH /api/upload/{id}/chunk", a.handleChunk)
	mux.HandleFunc("POST /api/upload/{id}/complete", a.handleCompleteUpload)
	mux.HandleFunc("GET /api/upload/{id}/status", a.handleUploadStatus)

	mux.HandleFunc("GET /m/{id}", a.handleServeOptimized)
	mux.HandleFunc("GET /m/{id}/original", a.handleServeOriginal)

	if a.Cfg.RexPump.Enabled {
		mux.HandleFunc("POST /api/rexpump/metadata", a.handleRexPumpUpdate)
		mux.HandleFunc("GET /api/rexpump/metadata/{chain}/{addr}", a.handleRexPumpGet)
	}

	mux.HandleFunc("GET /health/live", a.handleHealthLive)
	mux.HandleFunc("GET /health/ready", a.handleHealthReady)
	mux.HandleFunc("GET /health/stats", a.handleHealthStats)

	rl := newRateLimiter(a.Cfg.RateLimit)
	return chain(mux, a.loggingMiddleware, corsMiddleware, a.apiKeyMiddleware, a.rateLimitMiddleware(rl))
}

// AdminRouter builds the mux serving operator-only endpoints (§6 "Admin
// API"). It is meant to listen separately on
// cfg.Server.AdminHost:AdminPort, never exposed publicly.
func (a *API) AdminRouter() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /admin/media/{id}", a.handleAdminGetMedia)
	mux.HandleFunc("DELETE /admin/media/{id}", a.handleAdminDeleteMedia)
	mux.HandleFunc("GET /admin/stats", a.handleAdminStats)
	mux.HandleFunc("POST /admin/cleanup", a.handleAdminCleanup)
	mux.HandleFunc("GET /admin/metrics", a.handleAdminMetrics)

	if a.Cfg.RexPump.Enabled {
		mux.HandleFunc("POST /admin/rexpump/lock/{chain}/{addr}", a.handleAdminLock)
		mux.HandleFunc("DELETE /admin/rexpump/lock/{chain}/{addr}", a.handleAdminUnlock)
		mux.HandleFunc("GET /admin/rexpump/metadata/{chain}/{addr}", a.handleAdminGetMetadata)
		mux.HandleFunc("PUT /admin/rexpump/metadata/{chain}/{addr}", a.handleAdminPutMetadata)
		mux.HandleFunc("DELETE /admin/rexpump/metadata/{chain}/{addr}", a.handleAdminDeleteMetadata)
	}

	mux.HandleFunc("GET /health/live", a.handleHealthLive)

	return chain(mux, a.loggingMiddleware)
}
