// Package health implements the three /health endpoints: a liveness probe
// that only confirms the process is serving, a readiness probe that
// confirms the metadata store is reachable, and a stats summary built from
// the metadata and blob stores.
package health

import (
	"time"

	"github.com/rexmedia/mediavault/internal/store/blob"
	"github.com/rexmedia/mediavault/internal/store/meta"
)

// Checker backs the /health/{live,ready,stats} handlers.
type Checker struct {
	meta      *meta.Store
	blobs     *blob.Store
	startedAt time.Time
}

// New builds a Checker over the given stores, stamping its start time for
// the uptime field in Stats.
func New(metaStore *meta.Store, blobStore *blob.Store) *Checker {
	return &Checker{meta: metaStore, blobs: blobStore, startedAt: time.Now()}
}

// Live always reports true once the process has reached the point of
// constructing a Checker; it never touches the store.
func (c *Checker) Live() bool { return true }

// Ready reports whether the metadata store answers a trivial read. A
// failure here means the KV store is unusable, which should take the
// process out of a load balancer's rotation.
func (c *Checker) Ready() error {
	_, err := c.meta.MediaCount()
	return err
}

// Stats is the response shape for /health/stats.
type Stats struct {
	UptimeSeconds  int64 `json:"uptime_seconds"`
	MediaCount     int   `json:"media_count"`
	OriginalsBytes int64 `json:"originals_bytes"`
	OriginalsCount int64 `json:"originals_count"`
	OptimizedBytes int64 `json:"optimized_bytes"`
	OptimizedCount int64 `json:"optimized_count"`
}

// Collect gathers the stats snapshot.
func (c *Checker) Collect() (Stats, error) {
	count, err := c.meta.MediaCount()
	if err != nil {
		return Stats{}, err
	}
	blobStats, err := c.blobs.GetStats()
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		UptimeSeconds:  int64(time.Since(c.startedAt).Seconds()),
		MediaCount:     count,
		OriginalsBytes: blobStats.OriginalsBytes,
		OriginalsCount: blobStats.OriginalsCount,
		OptimizedBytes: blobStats.OptimizedBytes,
		OptimizedCount: blobStats.OptimizedCount,
	}, nil
}
