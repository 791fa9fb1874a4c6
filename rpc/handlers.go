package rpc

import (
	"encoding/json"
	"net/http"

	"github.com/faceproof/faceproof/proto"
)

func (s *RPC) handleGetToken(w http.ResponseWriter, r *http.Request) {
	var req proto.TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		proto.RespondWithError(w, proto.ErrInvalidArgument.WithCausef("decode request: %w", err))
		return
	}

	grant, err := s.GetToken(r.Context(), &req)
	if err != nil {
		proto.RespondWithError(w, err)
		return
	}
	respondJSON(w, grant)
}

func (s *RPC) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req proto.ValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		proto.RespondWithError(w, proto.ErrInvalidArgument.WithCausef("decode request: %w", err))
		return
	}

	credential, err := s.Validate(r.Context(), &req)
	if err != nil {
		proto.RespondWithError(w, err)
		return
	}
	respondJSON(w, proto.Credential{Credential: credential})
}

func respondJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(v)
}
