package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"vaultScope/internal/config"
	"vaultScope/internal/model"
	"vaultScope/internal/price"
	"vaultScope/internal/storage"
	"vaultScope/internal/vault"
)

// Quoter resolves the live global price of an asset.
type Quoter interface {
	Quote(ctx context.Context, asset model.AssetConfig) model.AssetPrice
}

// ViewCache serves views written by other watch instances.
type ViewCache interface {
	GetView(ctx context.Context, address string) (json.RawMessage, error)
}

type Handler struct {
	store    *vault.Store
	registry *config.AssetRegistry
	quoter   Quoter
	cache    ViewCache
	logger   *zap.Logger
	now      func() time.Time
}

func NewHandler(store *vault.Store, registry *config.AssetRegistry, quoter Quoter, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		store:    store,
		registry: registry,
		quoter:   quoter,
		logger:   logger,
		now:      time.Now,
	}
}

// WithCache makes GetVault fall back to cache for vaults this instance does not track.
func (h *Handler) WithCache(cache ViewCache) *Handler {
	h.cache = cache
	return h
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type VaultResponse struct {
	Vault              model.VaultView `json:"vault"`
	SecondsUntilUnlock int64           `json:"seconds_until_unlock"`
	Countdown          string          `json:"countdown"`
}

type CachedVaultResponse struct {
	Vault  json.RawMessage `json:"vault"`
	Cached bool            `json:"cached"`
}

type VaultListResponse struct {
	Vaults []model.VaultView `json:"vaults"`
	Count  int               `json:"count"`
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) ListAssets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.registry.All())
}

func (h *Handler) GetAssetPrice(w http.ResponseWriter, r *http.Request) {
	asset, ok := h.registry.Lookup(chi.URLParam(r, "code"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown_asset", "asset not found")
		return
	}
	if h.quoter == nil {
		writeError(w, http.StatusServiceUnavailable, "no_quoter", "price feeds are not available")
		return
	}
	writeJSON(w, http.StatusOK, h.quoter.Quote(r.Context(), asset))
}

// ListVaults returns every tracked vault; ?can_withdraw=true keeps only the
// withdrawable ones and ?owner= filters by owner.
func (h *Handler) ListVaults(w http.ResponseWriter, r *http.Request) {
	views := h.store.List()
	onlyUnlockable := r.URL.Query().Get("can_withdraw") == "true"
	owner := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("owner")))

	out := make([]model.VaultView, 0, len(views))
	for _, view := range views {
		if onlyUnlockable && !view.CanWithdraw() {
			continue
		}
		if owner != "" && view.Owner != owner {
			continue
		}
		out = append(out, view)
	}
	writeJSON(w, http.StatusOK, VaultListResponse{Vaults: out, Count: len(out)})
}

func (h *Handler) GetVault(w http.ResponseWriter, r *http.Request) {
	address := chi.URLParam(r, "address")
	if !common.IsHexAddress(address) {
		writeError(w, http.StatusBadRequest, "invalid_address", "invalid vault address")
		return
	}
	view, ok := h.store.Get(address)
	if !ok {
		h.getCachedVault(w, r, vault.NormalizeAddress(address))
		return
	}

	remaining := price.SecondsUntilUnlock(view.UnlockTime, h.now().Unix())
	writeJSON(w, http.StatusOK, VaultResponse{
		Vault:              view,
		SecondsUntilUnlock: remaining,
		Countdown:          price.FormatCountdown(remaining),
	})
}

func (h *Handler) getCachedVault(w http.ResponseWriter, r *http.Request, address string) {
	if h.cache == nil {
		writeError(w, http.StatusNotFound, "not_tracked", vault.ErrNotTracked.Error())
		return
	}
	raw, err := h.cache.GetView(r.Context(), address)
	switch {
	case errors.Is(err, storage.ErrCacheMiss):
		writeError(w, http.StatusNotFound, "not_tracked", vault.ErrNotTracked.Error())
	case err != nil:
		h.logger.Warn("cache lookup failed", zap.String("vault", address), zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "cache_unavailable", "vault cache unavailable")
	default:
		writeJSON(w, http.StatusOK, CachedVaultResponse{Vault: raw, Cached: true})
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}
