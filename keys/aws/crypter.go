// Package aws provides a crypter backed by AWS KMS symmetric keys.
package aws

import (
	"context"
	"errors"
	"sync"

	"github.com/attocash/wallet-core/keys/encryption"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/aws/smithy-go"
	"go.uber.org/ratelimit"
)

const providerName = "aws_kms"

type kmsAPI interface {
	Encrypt(ctx context.Context, params *kms.EncryptInput, optFns ...func(*kms.Options)) (*kms.EncryptOutput, error)
	Decrypt(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error)
}

type AWSKMSCrypter struct {
	keyARN  string
	limiter ratelimit.Limiter

	clientMu  sync.Mutex
	client    kmsAPI
	newClient func(ctx context.Context) (kmsAPI, error)
}

type CrypterOption func(*AWSKMSCrypter)

// WithRatelimiter throttles KMS requests made by the crypter.
func WithRatelimiter(limiter ratelimit.Limiter) CrypterOption {
	return func(c *AWSKMSCrypter) {
		c.limiter = limiter
	}
}

func withClient(client kmsAPI) CrypterOption {
	return func(c *AWSKMSCrypter) {
		c.client = client
	}
}

func withClientFactory(f func(ctx context.Context) (kmsAPI, error)) CrypterOption {
	return func(c *AWSKMSCrypter) {
		c.newClient = f
	}
}

func NewAWSKMSCrypter(key []byte, opts ...CrypterOption) *AWSKMSCrypter {
	c := &AWSKMSCrypter{
		keyARN:    string(key),
		limiter:   ratelimit.NewUnlimited(),
		newClient: loadClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *AWSKMSCrypter) Encrypt(message []byte) (encrypted []byte, err error) {
	ctx := context.Background()
	client, err := c.kmsClient(ctx)
	if err != nil {
		return encrypted, err
	}

	c.limiter.Take()

	encryptOutput, err := client.Encrypt(ctx, &kms.EncryptInput{
		KeyId:               aws.String(c.keyARN),
		Plaintext:           message,
		EncryptionAlgorithm: types.EncryptionAlgorithmSpecSymmetricDefault,
	})
	if err != nil {
		return encrypted, providerError(err)
	}

	encrypted = encryptOutput.CiphertextBlob

	return encrypted, err
}

func (c *AWSKMSCrypter) Decrypt(encrypted []byte) (message []byte, err error) {
	ctx := context.Background()
	client, err := c.kmsClient(ctx)
	if err != nil {
		return message, err
	}

	c.limiter.Take()

	decryptOutput, err := client.Decrypt(ctx, &kms.DecryptInput{
		KeyId:               aws.String(c.keyARN),
		CiphertextBlob:      encrypted,
		EncryptionAlgorithm: types.EncryptionAlgorithmSpecSymmetricDefault,
	})
	if err != nil {
		return message, providerError(err)
	}

	message = decryptOutput.Plaintext

	return message, err
}

// kmsClient returns the shared client, creating it on first use. A failed
// creation is retried on the next call.
func (c *AWSKMSCrypter) kmsClient(ctx context.Context) (kmsAPI, error) {
	c.clientMu.Lock()
	defer c.clientMu.Unlock()

	if c.client != nil {
		return c.client, nil
	}

	client, err := c.newClient(ctx)
	if err != nil {
		return nil, &encryption.ProviderError{Provider: providerName, Err: err}
	}

	c.client = client
	return c.client, nil
}

func loadClient(ctx context.Context) (kmsAPI, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	return kms.NewFromConfig(awsCfg), nil
}

func providerError(err error) error {
	pe := &encryption.ProviderError{Provider: providerName, Err: err}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		pe.Code = apiErr.ErrorCode()
	}

	return pe
}
