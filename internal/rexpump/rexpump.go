// Package rexpump implements the signed token-metadata update pipeline
// (§4.8) and the admin lock state machine (§4.9).
package rexpump

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rexmedia/mediavault/internal/apperr"
	"github.com/rexmedia/mediavault/internal/config"
	"github.com/rexmedia/mediavault/internal/evmsig"
	"github.com/rexmedia/mediavault/internal/metrics"
	"github.com/rexmedia/mediavault/internal/models"
	"github.com/rexmedia/mediavault/internal/obslog"
	"github.com/rexmedia/mediavault/internal/store/meta"
	"github.com/rexmedia/mediavault/internal/upload"
)

// Engine ties the metadata store, the signature/RPC verifier, and the
// upload engine (for attached images) together behind the signed update
// and admin lock operations.
type Engine struct {
	meta    *meta.Store
	uploads *upload.Engine
	rpc     map[string]*evmsig.RPCClient // keyed by network name
	cfg     *config.Config
	log     obslog.Logger
	metrics *metrics.Registry

	// keyMutexes serializes steps 6-12 of the signed-update pipeline per
	// (chain_id, address), hardening the cooldown/lock race the
	// specification flags as a SHOULD.
	keyMutexes   map[string]*sync.Mutex
	keyMutexesMu sync.Mutex
}

// NewEngine builds an Engine. rpcClients must have one entry per network
// name used in cfg.RexPump.Networks.
func NewEngine(metaStore *meta.Store, uploadEngine *upload.Engine, rpcClients map[string]*evmsig.RPCClient, cfg *config.Config, log obslog.Logger) *Engine {
	return &Engine{
		meta: metaStore, uploads: uploadEngine, rpc: rpcClients, cfg: cfg, log: log,
		keyMutexes: make(map[string]*sync.Mutex),
	}
}

// SetMetrics attaches the admin metrics registry.
func (e *Engine) SetMetrics(reg *metrics.Registry) { e.metrics = reg }

func (e *Engine) recordUpdate(actor string, ok bool) {
	if e.metrics == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	e.metrics.RexPumpUpdatesTotal.WithLabelValues(actor, outcome).Inc()
}

func (e *Engine) lockFor(chainID int64, address string) *sync.Mutex {
	key := tokenKey(chainID, address)
	e.keyMutexesMu.Lock()
	defer e.keyMutexesMu.Unlock()
	m, ok := e.keyMutexes[key]
	if !ok {
		m = &sync.Mutex{}
		e.keyMutexes[key] = m
	}
	return m
}

func tokenKey(chainID int64, address string) string {
	return strconv.FormatInt(chainID, 10) + ":" + address
}

// UpdateRequest is the parsed form of a signed rexpump update request.
type UpdateRequest struct {
	ChainID      int64
	TokenAddress string
	TokenOwner   string
	Timestamp    int64
	Signature    []byte
	Description  *string
	Socials      []models.SocialLink
	ImageLight   []byte
	ImageDark    []byte
	ImageLightFilename string
	ImageDarkFilename  string
}

func networkNameForChain(cfg *config.Config, chainID int64) (string, config.NetworkConfig, bool) {
	for name, n := range cfg.RexPump.Networks {
		if n.ChainID == chainID {
			return name, n, true
		}
	}
	return "", config.NetworkConfig{}, false
}

// SignedUpdate runs the full signed-update pipeline (§4.8 steps 1-12).
func (e *Engine) SignedUpdate(ctx context.Context, req UpdateRequest) (*models.TokenMetadata, error) {
	tm, err := e.signedUpdate(ctx, req)
	e.recordUpdate("owner", err == nil)
	return tm, err
}

func (e *Engine) signedUpdate(ctx context.Context, req UpdateRequest) (*models.TokenMetadata, error) {
	if !e.cfg.RexPump.Enabled {
		return nil, apperr.New(apperr.KindValidation, "rexpump is not enabled")
	}

	tokenAddr, err := evmsig.NormalizeAddress(req.TokenAddress)
	if err != nil {
		return nil, err
	}
	ownerAddr, err := evmsig.NormalizeAddress(req.TokenOwner)
	if err != nil {
		return nil, err
	}

	now := time.Now().Unix()
	if req.Timestamp > now+60 {
		return nil, apperr.New(apperr.KindInvalidSignature, "timestamp is in the future beyond allowed clock skew")
	}
	if now-req.Timestamp > e.cfg.RexPump.SignatureMaxAgeSeconds {
		return nil, apperr.New(apperr.KindInvalidSignature, "signature has expired")
	}

	msg := evmsig.BuildMessage(req.ChainID, tokenAddr, req.Timestamp)
	recovered, err := evmsig.RecoverSigner(msg, req.Signature)
	if err != nil {
		return nil, err
	}
	if recovered != ownerAddr {
		return nil, apperr.New(apperr.KindInvalidSignature, "recovered signer does not match token_owner")
	}

	networkName, network, ok := networkNameForChain(e.cfg, req.ChainID)
	if !ok {
		return nil, apperr.Newf(apperr.KindValidation, "unsupported chain_id %d", req.ChainID)
	}
	client, ok := e.rpc[networkName]
	if !ok {
		return nil, apperr.Newf(apperr.KindInternal, "no RPC client configured for network %q", networkName)
	}
	creator, err := client.CreatorOf(ctx, network.RPCURL, network.FallbackRPCURL, tokenAddr)
	if err != nil {
		return nil, err
	}
	if creator != ownerAddr {
		return nil, apperr.New(apperr.KindNotAuthorized, "token_owner is not the on-chain creator")
	}

	mu := e.lockFor(req.ChainID, tokenAddr)
	mu.Lock()
	defer mu.Unlock()

	if _, err := e.meta.GetTokenLock(req.ChainID, tokenAddr); err == nil {
		return nil, apperr.New(apperr.KindTokenLocked, "token metadata is locked")
	}

	canUpdate, err := e.meta.CanUpdateToken(req.ChainID, tokenAddr, e.cfg.RexPump.UpdateCooldown())
	if err != nil {
		return nil, err
	}
	if !canUpdate {
		remaining, err := e.meta.SecondsUntilUpdate(req.ChainID, tokenAddr, e.cfg.RexPump.UpdateCooldown())
		if err != nil {
			return nil, err
		}
		return nil, &apperr.Error{Kind: apperr.KindUpdateCooldown, Message: "update cooldown has not elapsed", RemainingSeconds: remaining}
	}

	if req.Description == nil && len(req.Socials) == 0 && len(req.ImageLight) == 0 && len(req.ImageDark) == 0 {
		return nil, apperr.New(apperr.KindValidation, "at least one of metadata, image_light, or image_dark is required")
	}

	tm, err := e.loadOrCreate(req.ChainID, tokenAddr, ownerAddr)
	if err != nil {
		return nil, err
	}

	if req.Description != nil {
		if err := validateMetadataFields(*req.Description, req.Socials); err != nil {
			return nil, err
		}
		tm.Description = *req.Description
		tm.SocialNetworks = req.Socials
	}

	if err := e.attachImage(&tm.ImageLightID, req.ImageLight, req.ImageLightFilename); err != nil {
		return nil, err
	}
	if err := e.attachImage(&tm.ImageDarkID, req.ImageDark, req.ImageDarkFilename); err != nil {
		return nil, err
	}

	tm.UpdatedAt = time.Now().UTC()
	tm.LastUpdateBy = ownerAddr
	if err := e.meta.UpsertTokenMetadata(tm); err != nil {
		return nil, err
	}
	if err := e.meta.RecordTokenUpdate(req.ChainID, tokenAddr); err != nil {
		return nil, err
	}
	return tm, nil
}

func (e *Engine) loadOrCreate(chainID int64, address, owner string) (*models.TokenMetadata, error) {
	tm, err := e.meta.GetTokenMetadata(chainID, address)
	if err == nil {
		return tm, nil
	}
	if ae, ok := apperr.Of(err); !ok || ae.Kind != apperr.KindNotFound {
		return nil, err
	}
	now := time.Now().UTC()
	return &models.TokenMetadata{
		ChainID: chainID, Address: address, CreatedAt: now, UpdatedAt: now, LastUpdateBy: owner,
	}, nil
}

// attachImage replaces the image referenced by *slotID with a newly
// ingested one, best-effort deleting the previous Media.
func (e *Engine) attachImage(slotID *string, data []byte, filename string) error {
	if len(data) == 0 {
		return nil
	}
	if *slotID != "" {
		if err := e.uploads.DeleteMedia(*slotID); err != nil {
			e.log.Warn("failed to delete previous token image", zap.Error(err))
		}
	}
	media, _, err := e.uploads.Simple(data, filename)
	if err != nil {
		return err
	}
	*slotID = media.ID
	return nil
}

func validateMetadataFields(description string, socials []models.SocialLink) error {
	if len(description) > 255 {
		return apperr.New(apperr.KindValidation, "description must be <= 255 characters")
	}
	for _, s := range socials {
		if len(s.Name) > 32 {
			return apperr.New(apperr.KindValidation, "social network name must be <= 32 characters")
		}
		if len(s.Link) > 256 {
			return apperr.New(apperr.KindValidation, "social network link must be <= 256 characters")
		}
		if !strings.HasPrefix(s.Link, "http://") && !strings.HasPrefix(s.Link, "https://") {
			return apperr.New(apperr.KindValidation, "social network link must start with http:// or https://")
		}
	}
	return nil
}

// AdminUpdate performs the same write path as SignedUpdate but skips steps
// 3-7 (freshness, signature, on-chain, lock, cooldown) and stamps
// last_update_by="admin" (§4.8 final paragraph).
func (e *Engine) AdminUpdate(chainID int64, address string, description *string, socials []models.SocialLink, imageLight, imageDark []byte, imageLightFilename, imageDarkFilename string) (*models.TokenMetadata, error) {
	tm, err := e.adminUpdate(chainID, address, description, socials, imageLight, imageDark, imageLightFilename, imageDarkFilename)
	e.recordUpdate("admin", err == nil)
	return tm, err
}

func (e *Engine) adminUpdate(chainID int64, address string, description *string, socials []models.SocialLink, imageLight, imageDark []byte, imageLightFilename, imageDarkFilename string) (*models.TokenMetadata, error) {
	addr, err := evmsig.NormalizeAddress(address)
	if err != nil {
		return nil, err
	}

	tm, err := e.loadOrCreate(chainID, addr, "admin")
	if err != nil {
		return nil, err
	}
	if description != nil {
		if err := validateMetadataFields(*description, socials); err != nil {
			return nil, err
		}
		tm.Description = *description
		tm.SocialNetworks = socials
	}
	if err := e.attachImage(&tm.ImageLightID, imageLight, imageLightFilename); err != nil {
		return nil, err
	}
	if err := e.attachImage(&tm.ImageDarkID, imageDark, imageDarkFilename); err != nil {
		return nil, err
	}
	tm.UpdatedAt = time.Now().UTC()
	tm.LastUpdateBy = "admin"
	if err := e.meta.UpsertTokenMetadata(tm); err != nil {
		return nil, err
	}
	return tm, nil
}

// PublicGet implements the public read path (§4.9): locked-with-defaults
// tokens get the reserved default response, otherwise the stored record or
// not_found.
func (e *Engine) PublicGet(chainID int64, address, baseURL string) (*models.MetadataResponse, error) {
	addr, err := evmsig.NormalizeAddress(address)
	if err != nil {
		return nil, err
	}
	lock, lockErr := e.meta.GetTokenLock(chainID, addr)
	if lockErr == nil && lock.LockType == models.LockTypeLockedWithDefaults {
		resp := models.DefaultMetadataResponse(chainID, addr, baseURL)
		return &resp, nil
	}
	tm, err := e.meta.GetTokenMetadata(chainID, addr)
	if err != nil {
		return nil, err
	}
	resp := tm.ToResponse(baseURL)
	return &resp, nil
}

// AdminLock implements §4.9 admin_lock for both lock types.
func (e *Engine) AdminLock(chainID int64, address string, lockType models.LockType, reason, lockedBy string) error {
	addr, err := evmsig.NormalizeAddress(address)
	if err != nil {
		return err
	}

	if lockType == models.LockTypeLockedWithDefaults {
		if tm, err := e.meta.GetTokenMetadata(chainID, addr); err == nil {
			if tm.ImageLightID != "" {
				_ = e.uploads.DeleteMedia(tm.ImageLightID)
			}
			if tm.ImageDarkID != "" {
				_ = e.uploads.DeleteMedia(tm.ImageDarkID)
			}
		}
		now := time.Now().UTC()
		empty := &models.TokenMetadata{
			ChainID: chainID, Address: addr, CreatedAt: now, UpdatedAt: now,
			LastUpdateBy: "admin", SocialNetworks: []models.SocialLink{},
		}
		if err := e.meta.UpsertTokenMetadata(empty); err != nil {
			return err
		}
	}

	return e.meta.LockToken(&models.TokenLock{
		ChainID: chainID, Address: addr, LockedAt: time.Now().UTC(),
		LockedBy: lockedBy, LockType: lockType, Reason: reason,
	})
}

// AdminUnlock implements §4.9 admin_unlock.
func (e *Engine) AdminUnlock(chainID int64, address string) (bool, error) {
	addr, err := evmsig.NormalizeAddress(address)
	if err != nil {
		return false, err
	}
	return e.meta.UnlockToken(chainID, addr)
}

// AdminDeleteMetadata deletes the metadata record and its associated
// images; the lock table is untouched (independent lifecycle).
func (e *Engine) AdminDeleteMetadata(chainID int64, address string) error {
	addr, err := evmsig.NormalizeAddress(address)
	if err != nil {
		return err
	}
	tm, err := e.meta.GetTokenMetadata(chainID, addr)
	if err != nil {
		return err
	}
	if tm.ImageLightID != "" {
		if err := e.uploads.DeleteMedia(tm.ImageLightID); err != nil {
			e.log.Warn("failed to delete token light image on metadata delete", zap.Error(err))
		}
	}
	if tm.ImageDarkID != "" {
		if err := e.uploads.DeleteMedia(tm.ImageDarkID); err != nil {
			e.log.Warn("failed to delete token dark image on metadata delete", zap.Error(err))
		}
	}
	return e.meta.DeleteTokenMetadata(chainID, addr)
}
