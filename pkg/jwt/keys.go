package jwt

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// DefaultKeyID is the key ID given to keys generated on first start.
const DefaultKeyID = "zkid-signing-1"

// GenerateES256KeyPair generates a new ECDSA P-256 key pair
func GenerateES256KeyPair() (*ecdsa.PrivateKey, error) {
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ECDSA key: %w", err)
	}
	return privateKey, nil
}

// SavePrivateKeyPEM writes an EC private key to filename with owner-only
// permissions, creating parent directories as needed.
func SavePrivateKeyPEM(privateKey *ecdsa.PrivateKey, filename string) error {
	keyBytes, err := x509.MarshalECPrivateKey(privateKey)
	if err != nil {
		return fmt.Errorf("failed to marshal ECDSA private key: %w", err)
	}

	data := pem.EncodeToMemory(&pem.Block{
		Type:  "EC PRIVATE KEY",
		Bytes: keyBytes,
	})

	if err := writeFile(filename, data, 0o600); err != nil {
		return fmt.Errorf("failed to write key file: %w", err)
	}

	return nil
}

// LoadPrivateKeyPEM loads an ECDSA private key from a PEM file in SEC 1
// or PKCS #8 form.
func LoadPrivateKeyPEM(filename string) (*ecdsa.PrivateKey, error) {
	keyBytes, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}

	block, _ := pem.Decode(keyBytes)
	if block == nil {
		return nil, errors.New("failed to decode PEM block")
	}

	switch block.Type {
	case "EC PRIVATE KEY":
		return x509.ParseECPrivateKey(block.Bytes)
	case "PRIVATE KEY":
		raw, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		key, ok := raw.(*ecdsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("expected ECDSA private key, got %T", raw)
		}
		return key, nil
	default:
		return nil, fmt.Errorf("unsupported key type: %s", block.Type)
	}
}

// KeyConfig represents key configuration
type KeyConfig struct {
	KeyID  string `json:"kid"`    // Key ID
	Issuer string `json:"issuer"` // Issuer identifier
}

// SaveKeyConfig saves key configuration to a JSON file
func SaveKeyConfig(config *KeyConfig, filename string) error {
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := writeFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadKeyConfig loads key configuration from a JSON file
func LoadKeyConfig(filename string) (*KeyConfig, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config KeyConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if config.KeyID == "" {
		return nil, errors.New("key config has no kid")
	}

	return &config, nil
}

// NewES256SignerFromFile creates an ES256 signer from PEM and config files
func NewES256SignerFromFile(keyFile, configFile string) (*ES256Signer, error) {
	privateKey, err := LoadPrivateKeyPEM(keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load private key: %w", err)
	}

	config, err := LoadKeyConfig(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return NewES256Signer(privateKey, config.KeyID, config.Issuer)
}

// GenerateKeyPairFiles generates a key pair and saves it to files
func GenerateKeyPairFiles(keyID, issuer, keyFile, configFile string) error {
	privateKey, err := GenerateES256KeyPair()
	if err != nil {
		return fmt.Errorf("failed to generate key pair: %w", err)
	}

	if err := SavePrivateKeyPEM(privateKey, keyFile); err != nil {
		return fmt.Errorf("failed to save private key: %w", err)
	}

	config := &KeyConfig{
		KeyID:  keyID,
		Issuer: issuer,
	}

	if err := SaveKeyConfig(config, configFile); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	return nil
}

// LoadOrCreateSigner loads the signer from keyFile and configFile, generating
// both on first start. The second return value reports whether keys were
// generated.
func LoadOrCreateSigner(keyFile, configFile, issuer string) (*ES256Signer, bool, error) {
	created := false
	if _, err := os.Stat(keyFile); errors.Is(err, fs.ErrNotExist) {
		if err := GenerateKeyPairFiles(DefaultKeyID, issuer, keyFile, configFile); err != nil {
			return nil, false, err
		}
		created = true
	} else if err != nil {
		return nil, false, fmt.Errorf("failed to stat key file: %w", err)
	}

	signer, err := NewES256SignerFromFile(keyFile, configFile)
	if err != nil {
		return nil, false, err
	}

	return signer, created, nil
}

func writeFile(filename string, data []byte, perm os.FileMode) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}
	return os.WriteFile(filename, data, perm)
}
