package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"
)

// AESCrypter seals messages with AES-GCM. The random nonce is prepended to
// the ciphertext.
type AESCrypter struct {
	key []byte
}

func NewAESCrypter(key []byte) *AESCrypter {
	return &AESCrypter{key}
}

func (s *AESCrypter) Encrypt(message []byte) ([]byte, error) {
	return s.EncryptWithAD(message, nil)
}

func (s *AESCrypter) Decrypt(encrypted []byte) ([]byte, error) {
	return s.DecryptWithAD(encrypted, nil)
}

// EncryptWithAD seals message and authenticates additionalData without
// encrypting it. The same additionalData must be given to DecryptWithAD.
func (s *AESCrypter) EncryptWithAD(message, additionalData []byte) ([]byte, error) {
	gcm, err := s.gcm()
	if err != nil {
		return []byte(""), err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return []byte(""), err
	}

	return gcm.Seal(nonce, nonce, message, additionalData), nil
}

func (s *AESCrypter) DecryptWithAD(encrypted, additionalData []byte) ([]byte, error) {
	gcm, err := s.gcm()
	if err != nil {
		return []byte(""), err
	}

	nonceSize := gcm.NonceSize()
	if len(encrypted) < nonceSize {
		return []byte(""), fmt.Errorf("message too short")
	}

	nonce, ciphertext := encrypted[:nonceSize], encrypted[nonceSize:]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, additionalData)
	if err != nil {
		return []byte(""), err
	}

	return plaintext, nil
}

// Wipe zeroes the key held by the crypter. The crypter is unusable after.
func (s *AESCrypter) Wipe() {
	clear(s.key)
	s.key = nil
}

func (s *AESCrypter) gcm() (cipher.AEAD, error) {
	c, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(c)
}
