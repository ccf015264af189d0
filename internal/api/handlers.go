package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/commitlabs/commitment-service/internal/db/model"
	"github.com/commitlabs/commitment-service/internal/registry"
	"github.com/commitlabs/commitment-service/internal/types"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, err error) {
	var domainErr *types.Error
	if !errors.As(err, &domainErr) {
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Code:    "INTERNAL",
			Message: "internal server error",
		})
		return
	}

	status := http.StatusInternalServerError
	switch domainErr.Category {
	case types.CategoryValidation:
		status = http.StatusBadRequest
	case types.CategoryState:
		if errors.Is(domainErr, types.ErrCommitmentNotFound) || errors.Is(domainErr, types.ErrTokenNotFound) {
			status = http.StatusNotFound
		} else {
			status = http.StatusConflict
		}
	case types.CategoryConcurrency:
		status = http.StatusConflict
	case types.CategoryAuthorization:
		status = http.StatusUnauthorized
	}

	writeJSON(w, status, errorResponse{Code: domainErr.Code, Message: err.Error()})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: "BAD_REQUEST", Message: "malformed request body"})
		return false
	}
	return true
}

func tokenIDParam(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: "BAD_REQUEST", Message: "token id must be a positive integer"})
		return 0, false
	}
	return id, true
}

func (s *Server) handleHealthcheck(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Code: "UNAVAILABLE", Message: "store unreachable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type createCommitmentRequest struct {
	Owner  string                `json:"owner"`
	Amount int64                 `json:"amount"`
	Asset  string                `json:"asset"`
	Rules  model.CommitmentRules `json:"rules"`
}

func (s *Server) handleCreateCommitment(w http.ResponseWriter, r *http.Request) {
	var req createCommitmentRequest
	if !decodeBody(w, r, &req) {
		return
	}

	id, err := s.svc.Ledger.CreateCommitment(r.Context(), req.Owner, req.Amount, req.Asset, req.Rules)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) handleListCommitments(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner")
	status := types.CommitmentStatus(r.URL.Query().Get("status"))

	limit := int64(100)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Code: "BAD_REQUEST", Message: "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	docs, err := s.svc.Ledger.ListCommitments(r.Context(), owner, status, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

func (s *Server) handleGetCommitment(w http.ResponseWriter, r *http.Request) {
	doc, err := s.svc.Ledger.GetCommitment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

type updateValueRequest struct {
	Value int64 `json:"value"`
}

func (s *Server) handleUpdateValue(w http.ResponseWriter, r *http.Request) {
	var req updateValueRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := s.svc.Ledger.UpdateValue(r.Context(), chi.URLParam(r, "id"), req.Value); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *Server) handleSettleCommitment(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Ledger.Settle(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "settled"})
}

type earlyExitRequest struct {
	Owner string `json:"owner"`
}

func (s *Server) handleEarlyExit(w http.ResponseWriter, r *http.Request) {
	var req earlyExitRequest
	if !decodeBody(w, r, &req) {
		return
	}

	penalty, err := s.svc.Ledger.EarlyExit(r.Context(), chi.URLParam(r, "id"), req.Owner)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"penalty": penalty})
}

type attestRequest struct {
	Type     types.AttestationType `json:"type"`
	Payload  map[string]string     `json:"payload"`
	Positive bool                  `json:"positive"`
	Verifier string                `json:"verifier"`
}

func (s *Server) handleAttest(w http.ResponseWriter, r *http.Request) {
	var req attestRequest
	if !decodeBody(w, r, &req) {
		return
	}

	err := s.svc.Compliance.Attest(r.Context(), req.Verifier, chi.URLParam(r, "id"), req.Type, req.Payload, req.Positive)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "recorded"})
}

func (s *Server) handleGetAttestations(w http.ResponseWriter, r *http.Request) {
	docs, err := s.svc.Compliance.GetAttestations(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

func (s *Server) handleGetHealthMetrics(w http.ResponseWriter, r *http.Request) {
	view, err := s.svc.Compliance.GetHealthMetrics(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleCalculateScore(w http.ResponseWriter, r *http.Request) {
	score, err := s.svc.Compliance.CalculateComplianceScore(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"score": score})
}

func (s *Server) handleVerifyCompliance(w http.ResponseWriter, r *http.Request) {
	compliant, err := s.svc.Compliance.VerifyCompliance(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"compliant": compliant})
}

type recordFeesRequest struct {
	Amount int64 `json:"amount"`
}

func (s *Server) handleRecordFees(w http.ResponseWriter, r *http.Request) {
	var req recordFeesRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := s.svc.Compliance.RecordFees(r.Context(), chi.URLParam(r, "id"), req.Amount); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}

type recordDrawdownRequest struct {
	Percent int64 `json:"percent"`
}

func (s *Server) handleRecordDrawdown(w http.ResponseWriter, r *http.Request) {
	var req recordDrawdownRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := s.svc.Compliance.RecordDrawdown(r.Context(), chi.URLParam(r, "id"), req.Percent); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}

func (s *Server) handleListTokenIDs(w http.ResponseWriter, r *http.Request) {
	ids, err := s.svc.Registry.ListTokenIDs(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ids)
}

func (s *Server) handleGetToken(w http.ResponseWriter, r *http.Request) {
	id, ok := tokenIDParam(w, r)
	if !ok {
		return
	}

	doc, err := s.svc.Registry.GetToken(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

type transferRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	id, ok := tokenIDParam(w, r)
	if !ok {
		return
	}
	var req transferRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := s.svc.Registry.Transfer(r.Context(), req.From, req.To, id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "transferred"})
}

func (s *Server) handleSettleToken(w http.ResponseWriter, r *http.Request) {
	id, ok := tokenIDParam(w, r)
	if !ok {
		return
	}

	if err := s.svc.Registry.Settle(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "settled"})
}

type batchTransferRequest struct {
	Mode      registry.BatchMode         `json:"mode"`
	Transfers []registry.TransferRequest `json:"transfers"`
}

type batchFailureResponse struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

type batchTransferResponse struct {
	Succeeded int                    `json:"succeeded"`
	Failures  []batchFailureResponse `json:"failures"`
}

func (s *Server) handleBatchTransfer(w http.ResponseWriter, r *http.Request) {
	var req batchTransferRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Mode != registry.Atomic && req.Mode != registry.BestEffort {
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: "BAD_REQUEST", Message: "mode must be ATOMIC or BEST_EFFORT"})
		return
	}

	result, err := s.svc.Registry.BatchTransfer(r.Context(), req.Transfers, req.Mode)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := batchTransferResponse{
		Succeeded: result.Succeeded,
		Failures:  make([]batchFailureResponse, 0, len(result.Failures)),
	}
	for _, f := range result.Failures {
		resp.Failures = append(resp.Failures, batchFailureResponse{Index: f.Index, Error: f.Err.Error()})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTokensByOwner(w http.ResponseWriter, r *http.Request) {
	docs, err := s.svc.Registry.ListTokensByOwner(r.Context(), chi.URLParam(r, "owner"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := s.svc.Registry.BalanceOf(r.Context(), chi.URLParam(r, "owner"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"balance": balance})
}
