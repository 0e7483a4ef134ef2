// Package google provides a crypter backed by Google Cloud KMS symmetric keys.
package google

import (
	"bytes"
	"context"
	"fmt"
	"hash/crc32"
	"io"

	kms "cloud.google.com/go/kms/apiv1"
	"github.com/attocash/wallet-core/keys/encryption"
	kmspb "google.golang.org/genproto/googleapis/cloud/kms/v1"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const providerName = "google_kms"

type GoogleKMSCrypter struct {
	keyResourceName string
}

func NewGoogleKMSCrypter(key []byte) *GoogleKMSCrypter {
	return &GoogleKMSCrypter{keyResourceName: string(key)}
}

func (c *GoogleKMSCrypter) Encrypt(message []byte) (encrypted []byte, err error) {
	ctx := context.Background()

	res := new(bytes.Buffer)
	err = encryptSymmetric(ctx, res, c.keyResourceName, message)
	if err != nil {
		return encrypted, providerError(err)
	}

	encrypted = res.Bytes()

	return encrypted, err
}

func (c *GoogleKMSCrypter) Decrypt(encrypted []byte) (message []byte, err error) {
	ctx := context.Background()

	res := new(bytes.Buffer)
	err = decryptSymmetric(ctx, res, c.keyResourceName, encrypted)
	if err != nil {
		return message, providerError(err)
	}

	message = res.Bytes()

	return message, err
}

// encryptSymmetric encrypts the input plaintext with the specified symmetric
// Cloud KMS key.
func encryptSymmetric(ctx context.Context, w io.Writer, name string, plaintext []byte) error {
	client, err := kms.NewKeyManagementClient(ctx)
	if err != nil {
		return fmt.Errorf("failed to create kms client: %w", err)
	}
	defer client.Close()

	req := &kmspb.EncryptRequest{
		Name:            name,
		Plaintext:       plaintext,
		PlaintextCrc32C: wrapperspb.Int64(int64(crc32c(plaintext))),
	}

	result, err := client.Encrypt(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to encrypt: %w", err)
	}

	// https://cloud.google.com/kms/docs/data-integrity-guidelines
	if !result.VerifiedPlaintextCrc32C {
		return fmt.Errorf("Encrypt: request corrupted in-transit")
	}
	if err := verifyCRC32C(result.Ciphertext, result.CiphertextCrc32C); err != nil {
		return fmt.Errorf("Encrypt: %w", err)
	}

	_, err = w.Write(result.Ciphertext)
	return err
}

// decryptSymmetric will decrypt the input ciphertext bytes using the specified symmetric key.
func decryptSymmetric(ctx context.Context, w io.Writer, name string, ciphertext []byte) error {
	client, err := kms.NewKeyManagementClient(ctx)
	if err != nil {
		return fmt.Errorf("failed to create kms client: %w", err)
	}
	defer client.Close()

	req := &kmspb.DecryptRequest{
		Name:             name,
		Ciphertext:       ciphertext,
		CiphertextCrc32C: wrapperspb.Int64(int64(crc32c(ciphertext))),
	}

	result, err := client.Decrypt(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to decrypt ciphertext: %w", err)
	}

	if err := verifyCRC32C(result.Plaintext, result.PlaintextCrc32C); err != nil {
		return fmt.Errorf("Decrypt: %w", err)
	}

	_, err = w.Write(result.Plaintext)
	return err
}

func verifyCRC32C(data []byte, sum *wrapperspb.Int64Value) error {
	if sum == nil || int64(crc32c(data)) != sum.Value {
		return fmt.Errorf("response corrupted in-transit")
	}
	return nil
}

func crc32c(data []byte) uint32 {
	t := crc32.MakeTable(crc32.Castagnoli)
	return crc32.Checksum(data, t)
}

func providerError(err error) error {
	pe := &encryption.ProviderError{Provider: providerName, Err: err}
	if s, ok := status.FromError(unwrapAll(err)); ok && s.Code() != codes.OK {
		pe.Code = s.Code().String()
	}
	return pe
}

func unwrapAll(err error) error {
	for {
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return err
		}
		next := u.Unwrap()
		if next == nil {
			return err
		}
		err = next
	}
}
