package encryption

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"booking-service/internal/config"
	"booking-service/internal/models"
	"booking-service/internal/util"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"
	"go.uber.org/zap"
)

var (
	ErrEncryptionFailed = errors.New("encryption failed")
	ErrDecryptionFailed = errors.New("decryption failed")
)

const (
	fieldVersion = "v1"
	localKeyID   = "local-dev"
)

// KMSAPI is the part of the KMS client used for envelope encryption.
type KMSAPI interface {
	GenerateDataKey(ctx context.Context, params *kms.GenerateDataKeyInput, optFns ...func(*kms.Options)) (*kms.GenerateDataKeyOutput, error)
	Decrypt(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error)
}

var _ KMSAPI = (*kms.Client)(nil)

// EncryptionManager seals sensitive saved-method fields with a per-field
// AES-256-GCM data key. With KMS disabled the data key is stored unwrapped,
// which is only acceptable outside production.
type EncryptionManager struct {
	kmsClient KMSAPI
	config    *config.Config
	keyCache  sync.Map // wrapped DEK -> plaintext DEK
}

type DataKey struct {
	Plaintext  []byte
	Ciphertext []byte
	KeyID      string
}

func NewEncryptionManager(cfg *config.Config, kmsClient KMSAPI) *EncryptionManager {
	return &EncryptionManager{
		kmsClient: kmsClient,
		config:    cfg,
	}
}

func (em *EncryptionManager) kmsEnabled() bool {
	return em.config.KMS.Enabled && em.kmsClient != nil
}

// GenerateDataKey generates a new data encryption key, through KMS when enabled.
func (em *EncryptionManager) GenerateDataKey(ctx context.Context) (*DataKey, error) {
	if !em.kmsEnabled() {
		return em.generateLocalKey()
	}

	result, err := em.kmsClient.GenerateDataKey(ctx, &kms.GenerateDataKeyInput{
		KeyId:   aws.String(em.config.KMS.KeyID),
		KeySpec: types.DataKeySpecAes256,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate data key: %w", err)
	}

	return &DataKey{
		Plaintext:  result.Plaintext,
		Ciphertext: result.CiphertextBlob,
		KeyID:      em.config.KMS.KeyID,
	}, nil
}

func (em *EncryptionManager) generateLocalKey() (*DataKey, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}
	return &DataKey{
		Plaintext:  key,
		Ciphertext: key,
		KeyID:      localKeyID,
	}, nil
}

// EncryptField seals plaintext. purpose is bound as additional data, so a
// ciphertext copied onto another record fails to open.
func (em *EncryptionManager) EncryptField(ctx context.Context, plaintext, purpose string) (*models.EncryptedField, error) {
	dataKey, err := em.GenerateDataKey(ctx)
	if err != nil {
		return nil, err
	}

	gcm, err := newGCM(dataKey.Plaintext)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), []byte(purpose))

	wrapped := base64.StdEncoding.EncodeToString(dataKey.Ciphertext)
	em.keyCache.Store(wrapped, dataKey.Plaintext)

	util.Debug("Field encrypted", zap.String("key_id", dataKey.KeyID))

	return &models.EncryptedField{
		Value:        base64.StdEncoding.EncodeToString(ciphertext),
		EncryptedDEK: wrapped,
		KeyID:        dataKey.KeyID,
		Version:      fieldVersion,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// DecryptField opens a field sealed by EncryptField with the same purpose.
func (em *EncryptionManager) DecryptField(ctx context.Context, field *models.EncryptedField, purpose string) (string, error) {
	if field == nil {
		return "", fmt.Errorf("%w: empty field", ErrDecryptionFailed)
	}

	if cached, ok := em.keyCache.Load(field.EncryptedDEK); ok {
		return decryptWithKey(field.Value, cached.([]byte), purpose)
	}

	blob, err := base64.StdEncoding.DecodeString(field.EncryptedDEK)
	if err != nil {
		return "", fmt.Errorf("%w: invalid DEK format", ErrDecryptionFailed)
	}

	plaintextDEK := blob
	if field.KeyID != localKeyID {
		if !em.kmsEnabled() {
			return "", fmt.Errorf("%w: KMS required for key %s", ErrDecryptionFailed, field.KeyID)
		}
		result, err := em.kmsClient.Decrypt(ctx, &kms.DecryptInput{CiphertextBlob: blob})
		if err != nil {
			return "", fmt.Errorf("%w: failed to decrypt DEK: %v", ErrDecryptionFailed, err)
		}
		plaintextDEK = result.Plaintext
	}

	em.keyCache.Store(field.EncryptedDEK, plaintextDEK)

	return decryptWithKey(field.Value, plaintextDEK, purpose)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func decryptWithKey(encryptedValue string, key []byte, purpose string) (string, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(encryptedValue)
	if err != nil {
		return "", fmt.Errorf("%w: invalid ciphertext format", ErrDecryptionFailed)
	}

	gcm, err := newGCM(key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return "", fmt.Errorf("%w: ciphertext too short", ErrDecryptionFailed)
	}

	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, []byte(purpose))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}

	return string(plaintext), nil
}

// ClearCache drops every cached DEK.
func (em *EncryptionManager) ClearCache() {
	em.keyCache.Range(func(key, _ interface{}) bool {
		em.keyCache.Delete(key)
		return true
	})
}
