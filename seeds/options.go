package seeds

import (
	log "github.com/sirupsen/logrus"
)

type RegistryOption func(*Registry)

// WithKDF sets the parameters used for new encryptions. Envelopes with an
// older version are upgraded on read.
func WithKDF(params KDFParams) RegistryOption {
	return func(r *Registry) {
		r.kdf = params
	}
}

func WithLogger(logger *log.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = logger
	}
}
