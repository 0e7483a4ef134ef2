// Package encryption provides encryption and decryption.
package encryption

const (
	EncryptionKeyTypeLocal     = "local"
	EncryptionKeyTypeAWSKMS    = "aws_kms"
	EncryptionKeyTypeGoogleKMS = "google_kms"
)

type Crypter interface {
	Encrypt(message []byte) (encrypted []byte, err error)
	Decrypt(encrypted []byte) (message []byte, err error)
}

// ProviderError is returned by crypters backed by a remote key management
// service. Code holds the provider's own error code, if any.
type ProviderError struct {
	Provider string
	Code     string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Code != "" {
		return e.Provider + ": " + e.Code + ": " + e.Err.Error()
	}
	return e.Provider + ": " + e.Err.Error()
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
