package aws

import (
	"bytes"
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/attocash/wallet-core/keys/encryption"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"
)

type fakeKMS struct {
	failWith error
}

func (f *fakeKMS) Encrypt(ctx context.Context, in *kms.EncryptInput, _ ...func(*kms.Options)) (*kms.EncryptOutput, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	blob := append([]byte(*in.KeyId+":"), in.Plaintext...)
	return &kms.EncryptOutput{CiphertextBlob: blob}, nil
}

func (f *fakeKMS) Decrypt(ctx context.Context, in *kms.DecryptInput, _ ...func(*kms.Options)) (*kms.DecryptOutput, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	prefix := []byte(*in.KeyId + ":")
	if !bytes.HasPrefix(in.CiphertextBlob, prefix) {
		return nil, &types.IncorrectKeyException{Message: new(string)}
	}
	return &kms.DecryptOutput{Plaintext: in.CiphertextBlob[len(prefix):]}, nil
}

func TestCrypterWithFakeClient(t *testing.T) {
	crypter := NewAWSKMSCrypter([]byte("arn:aws:kms:eu-west-1:000000000000:key/test"), withClient(&fakeKMS{}))
	plaintext := []byte("this is a test message in plaintext")

	encrypted, err := crypter.Encrypt(plaintext)
	if err != nil {
		t.Fatal(err)
	}

	decrypted, err := crypter.Decrypt(encrypted)
	if err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(decrypted, plaintext) {
		t.Fatal("decrypted does not match original plaintext message")
	}
}

func TestCrypterReportsProviderCode(t *testing.T) {
	crypter := NewAWSKMSCrypter([]byte("arn:aws:kms:eu-west-1:000000000000:key/other"), withClient(&fakeKMS{}))

	_, err := crypter.Decrypt([]byte("arn:aws:kms:eu-west-1:000000000000:key/test:payload"))

	var pe *encryption.ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("expected a provider error, got %v", err)
	}

	if pe.Code != "IncorrectKeyException" {
		t.Errorf("expected IncorrectKeyException, got %q", pe.Code)
	}
}

func TestClientCreatedOnceUnderConcurrency(t *testing.T) {
	var created atomic.Int32
	factory := func(ctx context.Context) (kmsAPI, error) {
		created.Add(1)
		return &fakeKMS{}, nil
	}

	crypter := NewAWSKMSCrypter([]byte("arn:aws:kms:eu-west-1:000000000000:key/test"), withClientFactory(factory))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := crypter.Encrypt([]byte("message")); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	if got := created.Load(); got != 1 {
		t.Fatalf("expected the client to be created once, got %d", got)
	}
}

func TestClientCreationRetried(t *testing.T) {
	var calls atomic.Int32
	factory := func(ctx context.Context) (kmsAPI, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("no credentials")
		}
		return &fakeKMS{}, nil
	}

	crypter := NewAWSKMSCrypter([]byte("arn:aws:kms:eu-west-1:000000000000:key/test"), withClientFactory(factory))

	_, err := crypter.Encrypt([]byte("message"))
	var pe *encryption.ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("expected a provider error, got %v", err)
	}

	if _, err := crypter.Encrypt([]byte("message")); err != nil {
		t.Fatal(err)
	}
}

// Needs to be run manually with proper env configuration
// It's skipped during standard test execution
func TestCrypter(t *testing.T) {
	if os.Getenv("ATTO_WALLET_ENCRYPTION_KEY_TYPE") != encryption.EncryptionKeyTypeAWSKMS {
		t.Skip("skipping since EncryptionKeyType is not", encryption.EncryptionKeyTypeAWSKMS)
	}

	crypter := NewAWSKMSCrypter([]byte(os.Getenv("ATTO_WALLET_ENCRYPTION_KEY")))
	plaintext := []byte("this is a test message in plaintext")
	encrypted, err := crypter.Encrypt(plaintext)
	if err != nil {
		t.Fatal(err)
	}

	decrypted, err := crypter.Decrypt(encrypted)
	if err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(decrypted, plaintext) {
		t.Fatal("decrypted does not match original plaintext message")
	}
}
