package handlers

import (
	"encoding/hex"
	"fmt"
	"net/http"

	wallet_errors "github.com/attocash/wallet-core/errors"
	"github.com/attocash/wallet-core/ledger"
	"github.com/gorilla/mux"
)

// Ledger is a HTTP server for the local ledger cache.
// Binary values are hex encoded.
type Ledger struct {
	service *ledger.Service
}

type AccountEntryJSON struct {
	Hash      string `json:"hash"`
	PublicKey string `json:"publicKey"`
	Height    uint64 `json:"height"`
	Entry     string `json:"entry"`
}

type WorkJSON struct {
	PublicKey string `json:"publicKey"`
	Value     string `json:"value"`
}

func NewLedger(service *ledger.Service) *Ledger {
	return &Ledger{service}
}

func (l *Ledger) ListEntries() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		pk, err := decodeHex("publicKey", mux.Vars(r)["publicKey"])
		if err != nil {
			handleError(rw, r, err)
			return
		}

		ee, err := l.service.ListEntries(r.Context(), pk)
		if err != nil {
			handleError(rw, r, err)
			return
		}

		res := make([]AccountEntryJSON, 0, len(ee))
		for _, e := range ee {
			res = append(res, entryToJSON(e))
		}

		handleJsonResponse(rw, http.StatusOK, res)
	})
}

func (l *Ledger) LastEntry() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		pk, err := decodeHex("publicKey", mux.Vars(r)["publicKey"])
		if err != nil {
			handleError(rw, r, err)
			return
		}

		e, found, err := l.service.LastEntry(r.Context(), pk)
		if err != nil {
			handleError(rw, r, err)
			return
		}
		if !found {
			handleError(rw, r, fmt.Errorf("account entry %w", wallet_errors.ErrNotFound))
			return
		}

		handleJsonResponse(rw, http.StatusOK, entryToJSON(e))
	})
}

func (l *Ledger) SaveEntry() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		var req AccountEntryJSON
		if err := decodeBody(r, &req); err != nil {
			handleError(rw, r, err)
			return
		}

		e, err := entryFromJSON(req)
		if err != nil {
			handleError(rw, r, err)
			return
		}

		if err := l.service.SaveEntry(r.Context(), e); err != nil {
			handleError(rw, r, err)
			return
		}

		handleJsonResponse(rw, http.StatusCreated, entryToJSON(*e))
	})
}

func (l *Ledger) GetWork() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		w, found, err := l.service.Work(r.Context())
		if err != nil {
			handleError(rw, r, err)
			return
		}
		if !found {
			handleError(rw, r, fmt.Errorf("work %w", wallet_errors.ErrNotFound))
			return
		}

		handleJsonResponse(rw, http.StatusOK, WorkJSON{
			PublicKey: hex.EncodeToString(w.PublicKey),
			Value:     hex.EncodeToString(w.Value),
		})
	})
}

func (l *Ledger) SetWork() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		var req WorkJSON
		if err := decodeBody(r, &req); err != nil {
			handleError(rw, r, err)
			return
		}

		pk, err := decodeHex("publicKey", req.PublicKey)
		if err != nil {
			handleError(rw, r, err)
			return
		}
		value, err := decodeHex("value", req.Value)
		if err != nil {
			handleError(rw, r, err)
			return
		}

		if err := l.service.SetWork(r.Context(), &ledger.Work{PublicKey: pk, Value: value}); err != nil {
			handleError(rw, r, err)
			return
		}

		handleJsonResponse(rw, http.StatusOK, req)
	})
}

func (l *Ledger) ClearWork() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if err := l.service.ClearWork(r.Context()); err != nil {
			handleError(rw, r, err)
			return
		}

		rw.WriteHeader(http.StatusNoContent)
	})
}

func entryToJSON(e ledger.AccountEntry) AccountEntryJSON {
	return AccountEntryJSON{
		Hash:      hex.EncodeToString(e.Hash),
		PublicKey: hex.EncodeToString(e.PublicKey),
		Height:    e.Height,
		Entry:     e.Entry,
	}
}

func entryFromJSON(j AccountEntryJSON) (*ledger.AccountEntry, error) {
	hash, err := decodeHex("hash", j.Hash)
	if err != nil {
		return nil, err
	}
	pk, err := decodeHex("publicKey", j.PublicKey)
	if err != nil {
		return nil, err
	}

	return &ledger.AccountEntry{Hash: hash, PublicKey: pk, Height: j.Height, Entry: j.Entry}, nil
}
