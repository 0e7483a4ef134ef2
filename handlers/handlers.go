// Package handlers provides HTTP handlers for the wallet services.
package handlers

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	wallet_errors "github.com/attocash/wallet-core/errors"
	log "github.com/sirupsen/logrus"
)

var (
	EmptyBodyError   = &wallet_errors.RequestError{StatusCode: http.StatusBadRequest, Err: fmt.Errorf("empty body")}
	InvalidBodyError = &wallet_errors.RequestError{StatusCode: http.StatusBadRequest, Err: fmt.Errorf("invalid body")}
)

// handleError is a helper function for unified HTTP error handling.
func handleError(rw http.ResponseWriter, r *http.Request, err error) {
	var reqErr *wallet_errors.RequestError

	switch {
	case errors.As(err, &reqErr):
		log.
			WithFields(log.Fields{"error": err, "path": r.URL.Path}).
			Debug("Bad request")
		http.Error(rw, reqErr.Error(), reqErr.StatusCode)
	case errors.Is(err, wallet_errors.ErrUnableToUnlock), wallet_errors.IsDecryptionError(err):
		http.Error(rw, wallet_errors.ErrUnableToUnlock.Error(), http.StatusForbidden)
	case errors.Is(err, wallet_errors.ErrNotFound):
		http.Error(rw, err.Error(), http.StatusNotFound)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		log.
			WithFields(log.Fields{"error": err, "path": r.URL.Path}).
			Info("Request cancelled")
		http.Error(rw, "Request cancelled", http.StatusServiceUnavailable)
	default:
		// Do not send data regarding the error
		log.
			WithFields(log.Fields{
				"error":   err,
				"path":    r.URL.Path,
				"storage": wallet_errors.IsStorageTransactionError(err) || wallet_errors.IsSecretStoreError(err),
			}).
			Error("Request failed")
		http.Error(rw, "Error", http.StatusInternalServerError)
	}
}

// handleJsonResponse is a helper function for unified JSON response handling.
func handleJsonResponse(rw http.ResponseWriter, status int, res interface{}) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	if res == nil {
		return
	}
	if err := json.NewEncoder(rw).Encode(res); err != nil {
		log.
			WithFields(log.Fields{"error": err}).
			Warn("Failed to encode response")
	}
}

func checkNonEmptyBody(r *http.Request) error {
	if r.Body == nil || r.Body == http.NoBody || r.ContentLength == 0 {
		return EmptyBodyError
	}
	return nil
}

func decodeBody(r *http.Request, v interface{}) error {
	if err := checkNonEmptyBody(r); err != nil {
		return err
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return InvalidBodyError
	}
	return nil
}

// decodeHex decodes a non-empty hex value from a request.
func decodeHex(name, s string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil || len(b) == 0 {
		return nil, &wallet_errors.RequestError{
			StatusCode: http.StatusBadRequest,
			Err:        fmt.Errorf("%s must be a non-empty hex string", name),
		}
	}
	return b, nil
}
