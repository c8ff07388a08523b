package bootstrap

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"

	"github.com/target/jobmatch/internal/data/cryptoutil"
)

// errMissingEncryptionKey is returned outside dev mode when no key is configured, so scoring
// credentials are never written in plaintext by a production deployment.
var errMissingEncryptionKey = errors.New("SECRETS_ENCRYPTION_KEY is required outside dev mode")

// CreateEncryptor builds the encryptor for stored scoring keys. A 64-char hex key is used as is;
// any other value is stretched with SHA-256. Dev mode without a key stores keys unencrypted.
//
//nolint:ireturn // services depend on the interface.
func CreateEncryptor(key string, isDev bool, logger *slog.Logger) (cryptoutil.Encryptor, error) {
	if key == "" {
		if !isDev {
			return nil, errMissingEncryptionKey
		}
		if logger != nil {
			logger.Warn("SECRETS_ENCRYPTION_KEY not set; scoring keys are stored unencrypted")
		}
		return cryptoutil.NoopEncryptor{}, nil
	}
	return cryptoutil.NewAESGCMEncryptor(deriveKey(key))
}

func deriveKey(key string) []byte {
	if raw, err := hex.DecodeString(key); err == nil && len(raw) == 32 {
		return raw
	}
	sum := sha256.Sum256([]byte(key))
	return sum[:]
}
