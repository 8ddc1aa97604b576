package hooks

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/ruteri/storage-adapters/adapter"
	"github.com/ruteri/storage-adapters/cryptoutils"
	"github.com/ruteri/storage-adapters/interfaces"
)

// SealedSuffix is appended to the name of files sealed by Seal and SealFor.
const SealedSuffix = ".sealed"

// SealedType is the content type of sealed payloads.
const SealedType = "application/octet-stream"

// Chain runs hooks in order and stops at the first one that skips the write.
// Nil hooks are ignored.
func Chain(hooks ...adapter.BeforeSaveFunc) adapter.BeforeSaveFunc {
	return func(file interfaces.LogicalFile) adapter.SaveAction {
		for _, hook := range hooks {
			if hook == nil {
				continue
			}
			if hook(file) == adapter.SaveSkip {
				return adapter.SaveSkip
			}
		}
		return adapter.SaveContinue
	}
}

// SniffType fills in an empty content type from the payload.
func SniffType() adapter.BeforeSaveFunc {
	return func(file interfaces.LogicalFile) adapter.SaveAction {
		if file.Type() == "" {
			file.SetType(http.DetectContentType(file.Buffer()))
		}
		return adapter.SaveContinue
	}
}

// MaxSize skips files whose payload is larger than limit bytes.
func MaxSize(limit int64, log *slog.Logger) adapter.BeforeSaveFunc {
	log = loggerOrDefault(log)
	return func(file interfaces.LogicalFile) adapter.SaveAction {
		if int64(len(file.Buffer())) > limit {
			log.Debug("File exceeds size limit, skipping write",
				slog.String("file_id", file.ID()),
				slog.Int64("limit", limit),
				slog.Int("size", len(file.Buffer())))
			return adapter.SaveSkip
		}
		return adapter.SaveContinue
	}
}

// Seal encrypts the payload under passphrase. A file that cannot be sealed is
// skipped rather than stored in the clear.
func Seal(passphrase []byte, log *slog.Logger) adapter.BeforeSaveFunc {
	key := append([]byte(nil), passphrase...)
	return sealWith(log, func(data []byte) ([]byte, error) {
		return cryptoutils.SealWithPassphrase(key, data)
	})
}

// SealFor encrypts the payload to the holder of the private key matching
// publicKeyPEM.
func SealFor(publicKeyPEM []byte, log *slog.Logger) adapter.BeforeSaveFunc {
	recipient := append([]byte(nil), publicKeyPEM...)
	return sealWith(log, func(data []byte) ([]byte, error) {
		return cryptoutils.EncryptWithPublicKey(recipient, data)
	})
}

func sealWith(log *slog.Logger, encrypt func([]byte) ([]byte, error)) adapter.BeforeSaveFunc {
	log = loggerOrDefault(log)
	return func(file interfaces.LogicalFile) adapter.SaveAction {
		sealed, err := encrypt(file.Buffer())
		if err != nil {
			log.Warn("Could not seal file, skipping write",
				slog.String("file_id", file.ID()),
				"err", err)
			return adapter.SaveSkip
		}

		file.SetDataFromBinary(sealed)
		file.SetSize(int64(len(sealed)))
		file.SetType(SealedType)
		if !strings.HasSuffix(file.Name(), SealedSuffix) {
			file.SetName(file.Name() + SealedSuffix)
		}
		return adapter.SaveContinue
	}
}

// Open decrypts a payload read back from a store written with Seal.
func Open(passphrase []byte, data []byte) ([]byte, error) {
	return cryptoutils.OpenWithPassphrase(passphrase, data)
}

// OpenFor decrypts a payload read back from a store written with SealFor.
func OpenFor(privateKeyPEM []byte, data []byte) ([]byte, error) {
	return cryptoutils.DecryptWithPrivateKey(privateKeyPEM, data)
}

// OriginalName strips the suffix added by sealing hooks.
func OriginalName(name string) string {
	return strings.TrimSuffix(name, SealedSuffix)
}

func loggerOrDefault(log *slog.Logger) *slog.Logger {
	if log == nil {
		return slog.Default()
	}
	return log
}
