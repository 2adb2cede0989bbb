package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"solana-risk-engine/internal/domain"
	"solana-risk-engine/internal/idhash"
	"solana-risk-engine/internal/normalization"
	"solana-risk-engine/internal/reporting"
	"solana-risk-engine/internal/riskerr"
	"solana-risk-engine/internal/storage"
)

const (
	defaultReportsLimit   = 20
	maxReportsLimit       = 200
	defaultPurchasesLimit = 10
)

// ReportsResponse lists published reports of one mint.
type ReportsResponse struct {
	Mint    string                     `json:"mint"`
	Reports []*domain.TrustScoreReport `json:"reports"`
}

// HistoryResponse lists stored signal records of one mint.
type HistoryResponse struct {
	Mint    string                 `json:"mint"`
	From    int64                  `json:"from"`
	To      int64                  `json:"to"`
	Records []storage.SignalRecord `json:"records"`
}

// Purchase is one buy of the mint.
type Purchase struct {
	Signature   string  `json:"signature"`
	Wallet      string  `json:"wallet"`
	Amount      float64 `json:"amount"`
	Slot        int64   `json:"slot"`
	TimestampMs int64   `json:"timestampMs"`
}

// PurchasesResponse lists the latest buys in the transfer window of one mint.
type PurchasesResponse struct {
	Mint      string     `json:"mint"`
	Height    int64      `json:"height"`
	Partial   bool       `json:"partial"` // window truncated, older buys may be missing
	Purchases []Purchase `json:"purchases"`
}

const healthCheckTimeout = 2 * time.Second

// HealthResponse reports service readiness per backend.
type HealthResponse struct {
	Status  string            `json:"status"` // healthy | degraded
	Service string            `json:"service"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// handleHealth runs every configured check. Any failure answers 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "healthy", Service: "solana-risk-engine"}
	status := http.StatusOK

	if len(s.checks) > 0 {
		resp.Checks = make(map[string]string, len(s.checks))
		names := make([]string, 0, len(s.checks))
		for name := range s.checks {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
			err := s.checks[name](ctx)
			cancel()
			if err != nil {
				s.logger.Warn("health check failed", "check", name, "error", err)
				resp.Checks[name] = err.Error()
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
	}
	respondJSON(w, status, resp)
}

// handleScore serves GET /v1/tokens/{mint}/score?height=N.
func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	mint := mux.Vars(r)["mint"]
	if !normalization.IsAddress(mint) {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "mint is not a valid address")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.evalTimeout)
	defer cancel()

	height, err := s.resolveHeight(ctx, r)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	if s.reportCache != nil {
		payload, err := s.reportCache.Get(ctx, mint, height)
		if err == nil {
			w.Header().Set("X-Cache", "hit")
			writePayload(w, payload)
			return
		}
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("report cache lookup failed", "mint", mint, "height", height, "error", err)
		}
	}

	report, err := s.evaluator.EvaluateToken(ctx, mint, height)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	payload, err := report.CanonicalJSON()
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	w.Header().Set("X-Cache", "miss")
	writePayload(w, payload)
}

// writePayload writes a canonical report. The ETag is the payload digest, so
// equal reports carry equal tags whichever path served them.
func writePayload(w http.ResponseWriter, payload []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("ETag", `"`+idhash.ComputeDigest(payload)+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

// handleReports serves GET /v1/tokens/{mint}/reports?limit=N.
func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	mint := mux.Vars(r)["mint"]
	if !normalization.IsAddress(mint) {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "mint is not a valid address")
		return
	}

	limit := defaultReportsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxReportsLimit {
			respondError(w, http.StatusBadRequest, ErrCodeInvalidInput,
				fmt.Sprintf("limit must be an integer in [1, %d]", maxReportsLimit))
			return
		}
		limit = n
	}

	reports, err := s.reports.ListByMint(r.Context(), mint, limit)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	if reports == nil {
		reports = []*domain.TrustScoreReport{}
	}
	respondJSON(w, http.StatusOK, ReportsResponse{Mint: mint, Reports: reports})
}

// handleHistory serves GET /v1/tokens/{mint}/history?from=A&to=B&format=json|csv.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	mint := mux.Vars(r)["mint"]
	if !normalization.IsAddress(mint) {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "mint is not a valid address")
		return
	}

	q := r.URL.Query()
	from, err := strconv.ParseInt(q.Get("from"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "from must be an integer height")
		return
	}
	to, err := strconv.ParseInt(q.Get("to"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "to must be an integer height")
		return
	}

	format := q.Get("format")
	if format != "" && format != "json" && format != "csv" {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "format must be json or csv")
		return
	}

	records, err := s.history.GetByMint(r.Context(), mint, from, to)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	if format == "csv" {
		w.Header().Set("Content-Type", "text/csv")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(reporting.RenderHistoryCSV(records)))
		return
	}
	if records == nil {
		records = []storage.SignalRecord{}
	}
	respondJSON(w, http.StatusOK, HistoryResponse{Mint: mint, From: from, To: to, Records: records})
}

// handlePurchases serves GET /v1/tokens/{mint}/purchases?height=N&limit=N.
func (s *Server) handlePurchases(w http.ResponseWriter, r *http.Request) {
	mint := mux.Vars(r)["mint"]
	if !normalization.IsAddress(mint) {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "mint is not a valid address")
		return
	}

	limit := defaultPurchasesLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxReportsLimit {
			respondError(w, http.StatusBadRequest, ErrCodeInvalidInput,
				fmt.Sprintf("limit must be an integer in [1, %d]", maxReportsLimit))
			return
		}
		limit = n
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.evalTimeout)
	defer cancel()

	height, err := s.resolveHeight(ctx, r)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	buys, partial, err := s.purchases.RecentPurchases(ctx, mint, height, limit)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	resp := PurchasesResponse{Mint: mint, Height: height, Partial: partial, Purchases: make([]Purchase, 0, len(buys))}
	for _, e := range buys {
		resp.Purchases = append(resp.Purchases, Purchase{
			Signature:   e.ID,
			Wallet:      e.Destination,
			Amount:      e.Amount,
			Slot:        e.Slot,
			TimestampMs: e.TimestampMs,
		})
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) resolveHeight(ctx context.Context, r *http.Request) (int64, error) {
	if raw := r.URL.Query().Get("height"); raw != "" {
		height, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || height < 0 {
			return 0, fmt.Errorf("height must be a non-negative integer: %w", storage.ErrInvalidInput)
		}
		return height, nil
	}
	if s.slots == nil {
		return 0, fmt.Errorf("height is required: %w", storage.ErrInvalidInput)
	}
	height, err := s.slots.GetSlot(ctx)
	if err != nil {
		return 0, riskerr.DataUnavailable("get_slot", err)
	}
	return height, nil
}

func (s *Server) respondErr(w http.ResponseWriter, r *http.Request, err error) {
	status, code := mapError(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			"path", r.URL.Path,
			"status", status,
			"error", err,
			"request_id", RequestID(r.Context()),
		)
	}
	respondError(w, status, code, errorMessage(status, err))
}
