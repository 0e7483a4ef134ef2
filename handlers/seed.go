package handlers

import (
	"fmt"
	"net/http"

	wallet_errors "github.com/attocash/wallet-core/errors"
	"github.com/attocash/wallet-core/ledger"
	"github.com/attocash/wallet-core/seeds"
	log "github.com/sirupsen/logrus"
)

// Seed is a HTTP server for the wallet seed lifecycle. The seed itself is
// never returned; responses only carry the registry state.
type Seed struct {
	registry *seeds.Registry
	ledger   *ledger.Service
}

type SeedStateResponse struct {
	State seeds.State `json:"state"`
}

type SetSeedRequest struct {
	Seed     string `json:"seed"`
	Password string `json:"password"`
}

type UnlockRequest struct {
	Password string `json:"password"`
}

func NewSeed(registry *seeds.Registry, ledger *ledger.Service) *Seed {
	return &Seed{registry, ledger}
}

func (s *Seed) State() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		handleJsonResponse(rw, http.StatusOK, SeedStateResponse{s.registry.Current().State})
	})
}

func (s *Seed) Set() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		var req SetSeedRequest
		if err := decodeBody(r, &req); err != nil {
			handleError(rw, r, err)
			return
		}

		if req.Seed == "" || req.Password == "" {
			handleError(rw, r, &wallet_errors.RequestError{
				StatusCode: http.StatusBadRequest,
				Err:        fmt.Errorf("seed and password are required"),
			})
			return
		}

		if err := s.registry.SetSeed(r.Context(), req.Seed, req.Password); err != nil {
			handleError(rw, r, err)
			return
		}

		log.Info("Wallet seed set")

		handleJsonResponse(rw, http.StatusCreated, SeedStateResponse{s.registry.Current().State})
	})
}

func (s *Seed) Clear() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if err := s.registry.ClearSeed(r.Context()); err != nil {
			handleError(rw, r, err)
			return
		}

		log.Info("Wallet seed cleared")

		handleJsonResponse(rw, http.StatusOK, SeedStateResponse{s.registry.Current().State})
	})
}

func (s *Seed) Unlock() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		var req UnlockRequest
		if err := decodeBody(r, &req); err != nil {
			handleError(rw, r, err)
			return
		}

		if _, err := s.registry.Unlock(r.Context(), req.Password); err != nil {
			handleError(rw, r, err)
			return
		}

		handleJsonResponse(rw, http.StatusOK, SeedStateResponse{s.registry.Current().State})
	})
}

// RemoveWallet deletes the seed, its password and the local ledger cache.
func (s *Seed) RemoveWallet() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if err := s.registry.RemoveWallet(r.Context()); err != nil {
			handleError(rw, r, err)
			return
		}

		if err := s.ledger.Clear(r.Context()); err != nil {
			handleError(rw, r, err)
			return
		}

		log.Info("Wallet removed")

		handleJsonResponse(rw, http.StatusOK, SeedStateResponse{s.registry.Current().State})
	})
}
