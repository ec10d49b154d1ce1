package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/maltedev/listing-toolkit/internal/config"
	"github.com/maltedev/listing-toolkit/internal/csvio"
	"github.com/maltedev/listing-toolkit/internal/dedup"
	"github.com/maltedev/listing-toolkit/internal/models"
	"github.com/maltedev/listing-toolkit/internal/observability"
	"github.com/maltedev/listing-toolkit/internal/parser"
)

const jobAPI = "api"

type Handlers struct {
	pricing config.PricingConfig
	keySet  dedup.KeySet
	maxBody int64
	logger  *slog.Logger
}

// NewHandlers builds the API handlers. keySet may be nil; it backs
// cross-request deduplication when a request asks for it.
func NewHandlers(pricing config.PricingConfig, keySet dedup.KeySet, maxBody int64, logger *slog.Logger) *Handlers {
	return &Handlers{
		pricing: pricing,
		keySet:  keySet,
		maxBody: maxBody,
		logger:  logger.With("component", "api"),
	}
}

// PricesRequest represents a batch of raw prices to normalize
type PricesRequest struct {
	Prices     []string `json:"prices"`
	Multiplier float64  `json:"multiplier,omitempty"`
	Fallback   string   `json:"fallback,omitempty"`
}

type PricesResponse struct {
	Prices     []string `json:"prices"`
	Multiplier float64  `json:"multiplier"`
	Fallbacks  int      `json:"fallbacks"`
}

// NormalizePrices multiplies and formats every price of the batch.
func (h *Handlers) NormalizePrices(w http.ResponseWriter, r *http.Request) {
	var req PricesRequest
	if !h.decode(w, r, &req) {
		return
	}

	multiplier := req.Multiplier
	if multiplier == 0 {
		multiplier = h.pricing.Multiplier
	}
	if multiplier < 0 || !parser.IsFinite(multiplier) {
		h.respondError(w, http.StatusBadRequest, "multiplier must be a finite number greater than 0")
		return
	}

	fallback, err := parser.ParseFallbackPolicy(firstNonEmpty(req.Fallback, h.pricing.Fallback))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := PricesResponse{Prices: make([]string, len(req.Prices)), Multiplier: multiplier}
	normalizer := parser.NewPriceNormalizer(multiplier, fallback, h.logger)
	normalizer.OnFallback = func(string) {
		resp.Fallbacks++
		observability.PriceFallbacks.Inc()
	}
	for i, p := range req.Prices {
		resp.Prices[i] = normalizer.Normalize(p)
	}

	h.respondJSON(w, http.StatusOK, resp)
}

type SlugsRequest struct {
	Titles []string `json:"titles"`
	// IDs, when given, supply the product-<id> fallback for titles that
	// produce an empty slug.
	IDs []string `json:"ids,omitempty"`
}

type SlugsResponse struct {
	Slugs []string `json:"slugs"`
}

func (h *Handlers) GenerateSlugs(w http.ResponseWriter, r *http.Request) {
	var req SlugsRequest
	if !h.decode(w, r, &req) {
		return
	}

	if len(req.IDs) > 0 && len(req.IDs) != len(req.Titles) {
		h.respondError(w, http.StatusBadRequest, "ids must match titles")
		return
	}

	slugs := make([]string, len(req.Titles))
	for i, title := range req.Titles {
		if len(req.IDs) > 0 {
			slugs[i] = parser.SlugOr(title, parser.FallbackSlug(req.IDs[i]))
			continue
		}
		slugs[i] = parser.GenerateSlug(title)
	}

	h.respondJSON(w, http.StatusOK, SlugsResponse{Slugs: slugs})
}

// Dedup reads a CSV body and answers with the deduplicated CSV. Query
// parameters:
//
//	columns   comma-separated key columns (names or letters), default "A"
//	strategy  drop (default) or append-id
//	key       "columns" (default) or "slug" to compare slugs of the first column
//	id        identifier column, used by append-id
//	external  "true" to also match keys remembered from earlier requests
func (h *Handlers) Dedup(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.respondError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		h.respondError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	table, err := csvio.Parse(body, "request")
	if err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	opts, err := h.dedupOptions(r, table.Schema)
	if err != nil {
		var missing *models.MissingColumnError
		if errors.As(err, &missing) {
			h.respondError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := dedup.New(opts).Run(r.Context(), table.Records)
	if err != nil {
		h.logger.Error("failed to deduplicate", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to deduplicate")
		return
	}

	stats := result.Stats
	observability.ObserveDedup(jobAPI, stats.Total, stats.InternalDuplicates, stats.ExternalDuplicates, len(stats.Fixes))

	table.Records = result.Records
	var buf bytes.Buffer
	if err := csvio.Encode(&buf, table); err != nil {
		h.logger.Error("failed to encode csv", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to encode csv")
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("X-Dedup-Total", strconv.Itoa(stats.Total))
	w.Header().Set("X-Dedup-Internal", strconv.Itoa(stats.InternalDuplicates))
	w.Header().Set("X-Dedup-External", strconv.Itoa(stats.ExternalDuplicates))
	w.Header().Set("X-Dedup-Removed", strconv.Itoa(stats.Removed()))
	w.Header().Set("X-Dedup-Fixes", strconv.Itoa(len(stats.Fixes)))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func (h *Handlers) dedupOptions(r *http.Request, schema *models.Schema) (dedup.Options, error) {
	q := r.URL.Query()

	strategy, err := dedup.ParseStrategy(q.Get("strategy"))
	if err != nil {
		return dedup.Options{}, err
	}

	var columns []string
	for _, ref := range strings.Split(firstNonEmpty(q.Get("columns"), "A"), ",") {
		if ref = strings.TrimSpace(ref); ref == "" {
			continue
		}
		col, err := schema.Resolve(ref)
		if err != nil {
			return dedup.Options{}, err
		}
		columns = append(columns, col)
	}
	if len(columns) == 0 {
		return dedup.Options{}, errors.New("at least one key column is required")
	}

	var idCol string
	if ref := q.Get("id"); ref != "" {
		if idCol, err = schema.Resolve(ref); err != nil {
			return dedup.Options{}, err
		}
	}

	opts := dedup.Options{
		Key:      dedup.ColumnKey(columns...),
		Strategy: strategy,
		Field:    columns[0],
		IDField:  idCol,
		Logger:   h.logger,
	}
	if q.Get("key") == "slug" {
		opts.Key = dedup.SlugKey(columns[0], idCol)
	}
	if external, _ := strconv.ParseBool(q.Get("external")); external {
		if h.keySet == nil {
			return dedup.Options{}, errors.New("external deduplication is not enabled")
		}
		opts.External = h.keySet
		opts.Remember = true
	}

	return opts, nil
}

func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxBody)).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.respondError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
