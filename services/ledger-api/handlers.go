package ledgerapi

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"deployledger/pkg/deployment"
	"deployledger/services/ledger"
)

type deploymentResponse struct {
	deployment.Record
	Network  string `json:"network,omitempty"`
	Explorer string `json:"explorer,omitempty"`
}

type historyResponse struct {
	Records []deploymentResponse `json:"records"`
	Count   int                  `json:"count"`
}

func (s *Server) describe(rec deployment.Record) deploymentResponse {
	resp := deploymentResponse{Record: rec}
	if n, err := s.registry.Lookup(rec.ChainID); err == nil {
		resp.Network = n.Name
		resp.Explorer = n.AddressURL(rec.Address)
	}
	return resp
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDeployment(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	chain := s.config.DefaultChain
	if raw := r.URL.Query().Get("chain"); raw != "" {
		parsed, err := deployment.ParseChainID(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, fmt.Errorf("invalid chain %q", raw))
			return
		}
		chain = parsed
	}

	rec, err := s.resolver.MostRecent(r.Context(), name, chain, s.config.BroadcastDir)
	if err != nil {
		s.logger.Debug().Err(err).Str("contract", name).Stringer("chain_id", chain).Msg("resolve failed")
		respondError(w, statusFor(err), err)
		return
	}
	respondJSON(w, http.StatusOK, s.describe(rec))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	limit := ledger.DefaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			respondError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", raw))
			return
		}
		limit = parsed
	}

	records := ledger.Collect(s.resolver.All(r.Context(), name, s.config.BroadcastDir), limit)
	if err := r.Context().Err(); err != nil {
		respondError(w, statusFor(err), err)
		return
	}

	resp := historyResponse{Records: make([]deploymentResponse, 0, len(records))}
	for _, rec := range records {
		resp.Records = append(resp.Records, s.describe(rec))
	}
	resp.Count = len(resp.Records)
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleNetworks(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"networks": s.registry.All()})
}

func (s *Server) handleNetwork(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "chainID")
	id, err := deployment.ParseChainID(raw)
	if err != nil {
		respondError(w, http.StatusBadRequest, fmt.Errorf("invalid chain id %q", raw))
		return
	}
	n, err := s.registry.Lookup(id)
	if err != nil {
		respondError(w, statusFor(err), err)
		return
	}
	respondJSON(w, http.StatusOK, n)
}

func (s *Server) handleEvents(w http.ResponseWriter, _ *http.Request) {
	events := []ledger.SavedEvent{}
	if s.tracker != nil {
		events = s.tracker.Recent()
	}
	respondJSON(w, http.StatusOK, map[string]any{"events": events})
}
