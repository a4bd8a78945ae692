package custodian

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math/big"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	sealedVersion = 1
	sealedExt     = ".key"
	saltSize      = 16
	keySize       = chacha20poly1305.KeySize
)

// KDFParams are the argon2id cost parameters
type KDFParams struct {
	Time    uint32 `json:"time"`
	Memory  uint32 `json:"memory"` // KiB
	Threads uint8  `json:"threads"`
}

// DefaultKDFParams matches the interactive argon2id profile
var DefaultKDFParams = KDFParams{Time: 1, Memory: 64 * 1024, Threads: 4}

// sealedFile is the on-disk envelope; []byte fields are base64 in JSON
type sealedFile struct {
	Version    int       `json:"version"`
	UserID     string    `json:"user_id"`
	KDF        KDFParams `json:"kdf"`
	Salt       []byte    `json:"salt"`
	Nonce      []byte    `json:"nonce"`
	Ciphertext []byte    `json:"ciphertext"`
}

// Sealed is a Custodian that keeps each secret in its own file under dir,
// encrypted with XChaCha20-Poly1305 under a key derived from a passphrase
// with argon2id. The user ID is bound as associated data.
type Sealed struct {
	mu         sync.Mutex
	dir        string
	passphrase []byte
	kdf        KDFParams
}

// SealedOption configures a Sealed custodian
type SealedOption func(*Sealed)

// WithKDFParams overrides the argon2id cost, mostly to keep tests fast
func WithKDFParams(p KDFParams) SealedOption {
	return func(s *Sealed) {
		s.kdf = p
	}
}

// NewSealed creates a sealed-file custodian rooted at dir
func NewSealed(dir string, passphrase []byte, opts ...SealedOption) (*Sealed, error) {
	if len(passphrase) == 0 {
		return nil, errors.New("passphrase must not be empty")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create key directory: %w", err)
	}

	s := &Sealed{
		dir:        dir,
		passphrase: append([]byte(nil), passphrase...),
		kdf:        DefaultKDFParams,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func deriveKey(passphrase, salt []byte, p KDFParams) []byte {
	return argon2.IDKey(passphrase, salt, p.Time, p.Memory, p.Threads, keySize)
}

func (s *Sealed) path(userID string) string {
	return filepath.Join(s.dir, base64.RawURLEncoding.EncodeToString([]byte(userID))+sealedExt)
}

// Put seals secret for userID with a fresh salt and nonce
func (s *Sealed) Put(userID string, secret *big.Int) error {
	if secret == nil || secret.Sign() < 0 {
		return errors.New("secret must be a non-negative integer")
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("failed to generate salt: %w", err)
	}

	aead, err := chacha20poly1305.NewX(deriveKey(s.passphrase, salt, s.kdf))
	if err != nil {
		return fmt.Errorf("failed to create cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}

	envelope := sealedFile{
		Version:    sealedVersion,
		UserID:     userID,
		KDF:        s.kdf,
		Salt:       salt,
		Nonce:      nonce,
		Ciphertext: aead.Seal(nil, nonce, []byte(secret.Text(10)), []byte(userID)),
	}

	data, err := json.MarshalIndent(envelope, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal sealed key: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Write then rename so a crash never leaves a truncated key behind
	tmp := s.path(userID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write sealed key: %w", err)
	}
	if err := os.Rename(tmp, s.path(userID)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to store sealed key: %w", err)
	}
	return nil
}

// Get unseals the secret for userID
func (s *Sealed) Get(userID string) (*big.Int, error) {
	s.mu.Lock()
	data, err := os.ReadFile(s.path(userID))
	s.mu.Unlock()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read sealed key: %w", err)
	}

	var envelope sealedFile
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse sealed key: %w", err)
	}
	if envelope.Version != sealedVersion {
		return nil, fmt.Errorf("unsupported sealed key version %d", envelope.Version)
	}
	if envelope.UserID != userID {
		return nil, ErrUnlock
	}

	aead, err := chacha20poly1305.NewX(deriveKey(s.passphrase, envelope.Salt, envelope.KDF))
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	if len(envelope.Nonce) != aead.NonceSize() {
		return nil, ErrUnlock
	}

	plaintext, err := aead.Open(nil, envelope.Nonce, envelope.Ciphertext, []byte(userID))
	if err != nil {
		return nil, ErrUnlock
	}

	secret, ok := new(big.Int).SetString(string(plaintext), 10)
	if !ok {
		return nil, ErrUnlock
	}
	return secret, nil
}

// Delete removes the sealed file for userID
func (s *Sealed) Delete(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(userID)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete sealed key: %w", err)
	}
	return nil
}

// Users lists user IDs with a sealed file, in order
func (s *Sealed) Users() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list key directory: %w", err)
	}

	var users []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, sealedExt) {
			continue
		}
		raw, err := base64.RawURLEncoding.DecodeString(strings.TrimSuffix(name, sealedExt))
		if err != nil {
			continue
		}
		users = append(users, string(raw))
	}
	sort.Strings(users)
	return users, nil
}
