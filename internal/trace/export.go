package trace

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"os"

	"golang.org/x/crypto/argon2"
)

const (
	// ExportMagicHeader identifies encrypted trace exports.
	ExportMagicHeader = "CRTRACE1"

	// Argon2id parameters (RFC 9106 recommendations)
	argon2Time    = 1
	argon2Memory  = 64 * 1024 // 64 MB
	argon2Threads = 4
	argon2KeyLen  = 32 // 256 bits for AES-256

	exportSaltLength = 32
)

func deriveExportKey(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)
}

// ExportEncrypted encrypts a recorded trace file so it can be shared
// without exposing match data. Output layout:
// magic || salt || nonce || ciphertext (GCM auth tag included).
func ExportEncrypted(tracePath, destPath, password string) error {
	if password == "" {
		return fmt.Errorf("password required")
	}

	plaintext, err := os.ReadFile(tracePath)
	if err != nil {
		return fmt.Errorf("read trace file: %w", err)
	}

	salt := make([]byte, exportSaltLength)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("generate salt: %w", err)
	}

	block, err := aes.NewCipher(deriveExportKey(password, salt))
	if err != nil {
		return fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return fmt.Errorf("create GCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("generate nonce: %w", err)
	}
	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)

	out := make([]byte, 0, len(ExportMagicHeader)+len(salt)+len(nonce)+len(ciphertext))
	out = append(out, ExportMagicHeader...)
	out = append(out, salt...)
	out = append(out, nonce...)
	out = append(out, ciphertext...)

	if err := os.WriteFile(destPath, out, 0o600); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	return nil
}

// ImportEncrypted decrypts an exported trace and returns its events.
func ImportEncrypted(path, password string) ([]Event, error) {
	if password == "" {
		return nil, fmt.Errorf("password required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read export: %w", err)
	}
	if len(data) < len(ExportMagicHeader) || string(data[:len(ExportMagicHeader)]) != ExportMagicHeader {
		return nil, fmt.Errorf("not an encrypted trace export")
	}
	data = data[len(ExportMagicHeader):]

	// Minimum: salt + 12-byte nonce + 16-byte auth tag.
	if len(data) < exportSaltLength+12+16 {
		return nil, fmt.Errorf("export file truncated")
	}
	salt := data[:exportSaltLength]
	data = data[exportSaltLength:]

	block, err := aes.NewCipher(deriveExportKey(password, salt))
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	if len(data) < gcm.NonceSize() {
		return nil, fmt.Errorf("export file truncated")
	}
	nonce := data[:gcm.NonceSize()]
	plaintext, err := gcm.Open(nil, nonce, data[gcm.NonceSize():], nil)
	if err != nil {
		return nil, fmt.Errorf("decryption failed (wrong password or corrupted data): %w", err)
	}

	return readEvents(bytes.NewReader(plaintext))
}
