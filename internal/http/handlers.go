package http

import (
	"fmt"
	"net/http"

	"github.com/kina2711/subscription-analytics/internal/cohort"
	"github.com/kina2711/subscription-analytics/internal/core"
	"github.com/kina2711/subscription-analytics/internal/ledger"
	"github.com/kina2711/subscription-analytics/internal/log"
	"github.com/kina2711/subscription-analytics/internal/monthly"
	"github.com/kina2711/subscription-analytics/internal/report"
	"github.com/kina2711/subscription-analytics/internal/storage"
)

type (
	HealthResponse struct {
		Status string `json:"status"`
		Source string `json:"source"`
		RunID  string `json:"last_run_id,omitempty"`
	}

	SummaryResponse struct {
		Envelope
		KPIs    monthly.KPIs   `json:"kpis"`
		Monthly []monthly.Stat `json:"monthly"`
		Drops   ledger.Report  `json:"drops"`
	}

	CohortsResponse struct {
		Envelope
		Matrix   cohort.Matrix    `json:"matrix"`
		Sizes    []int            `json:"sizes"`
		Averages []cohort.Average `json:"average_retention"`
	}

	// TransactionDTO is a cleaned transaction as served over the API.
	TransactionDTO struct {
		ID           int     `json:"id"`
		PaymentDate  string  `json:"payment_date"`
		EndDate      string  `json:"end_date"`
		Product      string  `json:"product"`
		CustomerID   string  `json:"customer_id"`
		DurationDays int     `json:"duration_days"`
		Amount       float64 `json:"amount"`
		DailyRate    float64 `json:"daily_rate"`
	}

	TransactionsResponse struct {
		Envelope
		Total        int              `json:"total"`
		Offset       int              `json:"offset"`
		Transactions []TransactionDTO `json:"transactions"`
	}

	ProductsResponse struct {
		Envelope
		Products []string `json:"products"`
	}

	RunsResponse struct {
		Status string        `json:"status"`
		Runs   []storage.Run `json:"runs"`
	}

	RefreshResponse struct {
		Status      string `json:"status"`
		Invalidated bool   `json:"invalidated"`
		Queued      bool   `json:"queued"`
		MessageID   string `json:"message_id,omitempty"`
	}
)

func toTransactionDTO(tx core.CleanedTransaction) TransactionDTO {
	return TransactionDTO{
		ID:           tx.ID,
		PaymentDate:  tx.PaymentDate.String(),
		EndDate:      tx.EndDate().String(),
		Product:      tx.Product,
		CustomerID:   tx.CustomerID,
		DurationDays: tx.DurationDays,
		Amount:       tx.Amount,
		DailyRate:    tx.DailyRate,
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: StatusOK, Source: s.svc.SourceName()}
	if last, ok := s.svc.Last(); ok {
		resp.RunID = last.RunID
	}
	NewJSONResponse().Body(resp).Send(w, r)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	f, err := ParseFilter(r)
	if err != nil {
		sendError(w, r, http.StatusBadRequest, err)
		return
	}
	rep, snap, err := s.svc.Report(r.Context(), f)
	if err != nil {
		sendError(w, r, StatusFor(err), err)
		return
	}
	NewJSONResponse().Body(SummaryResponse{
		Envelope: EnvelopeFor(snap, rep.Empty()),
		KPIs:     rep.KPIs,
		Monthly:  nonNil(rep.Monthly),
		Drops:    snap.Report,
	}).Send(w, r)
}

func (s *Server) handleCohorts(w http.ResponseWriter, r *http.Request) {
	f, err := ParseFilter(r)
	if err != nil {
		sendError(w, r, http.StatusBadRequest, err)
		return
	}
	rep, snap, err := s.svc.Report(r.Context(), f)
	if err != nil {
		sendError(w, r, StatusFor(err), err)
		return
	}
	matrix := rep.Cohorts
	matrix.Rows = nonNil(matrix.Rows)
	NewJSONResponse().Body(CohortsResponse{
		Envelope: EnvelopeFor(snap, matrix.Empty()),
		Matrix:   matrix,
		Sizes:    nonNil(matrix.Sizes()),
		Averages: nonNil(rep.Averages),
	}).Send(w, r)
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	f, err := ParseFilter(r)
	if err != nil {
		sendError(w, r, http.StatusBadRequest, err)
		return
	}
	limit, err := ParseLimit(r, "limit", defaultTransactionsLimit, maxTransactionsLimit)
	if err != nil {
		sendError(w, r, http.StatusBadRequest, err)
		return
	}
	offset, err := ParseOffset(r)
	if err != nil {
		sendError(w, r, http.StatusBadRequest, err)
		return
	}

	ds, err := s.svc.Dataset(r.Context(), f)
	if err != nil {
		sendError(w, r, StatusFor(err), err)
		return
	}
	snap, _ := s.svc.Last()

	total := len(ds.Transactions)
	page := []TransactionDTO{}
	for i := offset; i < total && len(page) < limit; i++ {
		page = append(page, toTransactionDTO(ds.Transactions[i]))
	}
	NewJSONResponse().Body(TransactionsResponse{
		Envelope:     EnvelopeFor(snap, total == 0),
		Total:        total,
		Offset:       offset,
		Transactions: page,
	}).Send(w, r)
}

func (s *Server) handleProducts(w http.ResponseWriter, r *http.Request) {
	ds, err := s.svc.Dataset(r.Context(), report.Filter{})
	if err != nil {
		sendError(w, r, StatusFor(err), err)
		return
	}
	snap, _ := s.svc.Last()
	products := ds.Products()
	NewJSONResponse().Body(ProductsResponse{
		Envelope: EnvelopeFor(snap, len(products) == 0),
		Products: products,
	}).Send(w, r)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := ParseLimit(r, "limit", defaultRunsLimit, maxRunsLimit)
	if err != nil {
		sendError(w, r, http.StatusBadRequest, err)
		return
	}
	runs, err := s.svc.Runs(r.Context(), limit)
	if err != nil {
		sendError(w, r, http.StatusInternalServerError, fmt.Errorf("list runs: %w", err))
		return
	}
	NewJSONResponse().Body(RunsResponse{Status: StatusOK, Runs: nonNil(runs)}).Send(w, r)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	reason := SanitizeReason(r.URL.Query().Get("reason"))
	resp := RefreshResponse{
		Status:      StatusAccepted,
		Invalidated: s.svc.Refresh(),
	}

	if s.publisher != nil {
		msg, err := s.publisher.PublishRefresh(r.Context(), reason)
		if err != nil {
			sendError(w, r, http.StatusServiceUnavailable, fmt.Errorf("queue refresh: %w", err))
			return
		}
		resp.Queued = true
		resp.MessageID = msg.ID
		log.FromContext(r.Context()).InfoContext(r.Context(), "Refresh queued",
			log.FieldOperation, log.OpRefresh, "message_id", msg.ID, "reason", msg.Reason)
	}
	NewJSONResponse().Status(http.StatusAccepted).Body(resp).Send(w, r)
}

// nonNil keeps empty lists encoding as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
