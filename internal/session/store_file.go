package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// FileStore persists the session to a local file, sealed with
// ChaCha20-Poly1305 so a bearer token at rest is not plaintext on disk.
// The sealing key is derived from the configured session secret.
type FileStore struct {
	mu     sync.Mutex
	path   string
	key    []byte
	logger *slog.Logger
}

// NewFileStore creates a file-backed session store at path. The secret must
// be non-empty; it is stretched into a sealing key with HKDF-SHA256.
func NewFileStore(path, secret string, logger *slog.Logger) (*FileStore, error) {
	if secret == "" {
		return nil, fmt.Errorf("session secret must not be empty")
	}
	key := make([]byte, chacha20poly1305.KeySize)
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte("regpay/session-store"))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("derive session key: %w", err)
	}
	return &FileStore{path: path, key: key, logger: logger}, nil
}

func (s *FileStore) Save(_ context.Context, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	plaintext, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return fmt.Errorf("init session cipher: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("generate nonce: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, plaintext, nil)

	if err := os.WriteFile(s.path, sealed, 0o600); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	return nil
}

func (s *FileStore) Load(_ context.Context) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sealed, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("no stored session: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}

	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, fmt.Errorf("init session cipher: %w", err)
	}
	if len(sealed) < aead.NonceSize() {
		s.logger.Warn("discarding truncated session file")
		return nil, fmt.Errorf("no stored session: %w", ErrNotFound)
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		// A tampered or secret-rotated file reads as absent; the admin
		// simply logs in again.
		s.logger.Warn("discarding unreadable session file", "error", err)
		return nil, fmt.Errorf("no stored session: %w", ErrNotFound)
	}

	var sess Session
	if err := json.Unmarshal(plaintext, &sess); err != nil {
		s.logger.Warn("discarding corrupted session file", "error", err)
		return nil, fmt.Errorf("no stored session: %w", ErrNotFound)
	}
	return &sess, nil
}

func (s *FileStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}
