// Package httpapi is the thin glue layer the specification calls "Request
// handlers + routing" (§2): it adapts the upload, rexpump, and health
// engines to stdlib net/http, with middleware for auth, rate limiting,
// logging, and CORS.
package httpapi

import (
	"github.com/rexmedia/mediavault/internal/config"
	"github.com/rexmedia/mediavault/internal/health"
	"github.com/rexmedia/mediavault/internal/metrics"
	"github.com/rexmedia/mediavault/internal/obslog"
	"github.com/rexmedia/mediavault/internal/rexpump"
	"github.com/rexmedia/mediavault/internal/store/blob"
	"github.com/rexmedia/mediavault/internal/store/meta"
	"github.com/rexmedia/mediavault/internal/upload"
)

// API bundles every collaborator a handler might need. Handlers are plain
// methods on *API so they share one set of dependencies without a global.
type API struct {
	Cfg     *config.Config
	Meta    *meta.Store
	Blobs   *blob.Store
	Uploads *upload.Engine
	RexPump *rexpump.Engine
	Health  *health.Checker
	Metrics *metrics.Registry
	Log     obslog.Logger
}

// New builds an API bundle.
func New(cfg *config.Config, metaStore *meta.Store, blobStore *blob.Store, uploadEngine *upload.Engine, rexpumpEngine *rexpump.Engine, healthChecker *health.Checker, metricsReg *metrics.Registry, log obslog.Logger) *API {
	return &API{
		Cfg: cfg, Meta: metaStore, Blobs: blobStore,
		Uploads: uploadEngine, RexPump: rexpumpEngine,
		Health: healthChecker, Metrics: metricsReg, Log: log,
	}
}

func (a *API) baseURL() string { return a.Cfg.Server.BaseURL }
