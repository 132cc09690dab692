package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"fxarchive/pkg/storage"

	"golang.org/x/crypto/pbkdf2"
)

// PassphraseEnv overrides the generated passphrase of the encrypted store.
const PassphraseEnv = "FXARCHIVE_PASSPHRASE"

const (
	envelopeVersion = 1
	kdfRounds       = 100_000
	kdfSaltLen      = 32
	aesKeyLen       = 32
	passphraseFile  = ".passphrase"
)

var errSealedTooShort = errors.New("sealed data shorter than nonce")

// envelope is the on-disk form. []byte fields travel as base64.
type envelope struct {
	Version  int       `json:"version"`
	Salt     []byte    `json:"salt"`
	Sealed   []byte    `json:"sealed"`
	Modified time.Time `json:"modified"`
}

// EncryptedFileStore keeps every session in one AES-GCM sealed file.
type EncryptedFileStore struct {
	path       string
	passphrase string
	mu         sync.RWMutex
}

// NewEncryptedFileStore opens (lazily) the sealed file at path. With an
// empty passphrase the store uses $FXARCHIVE_PASSPHRASE, or else a random
// one persisted in .passphrase beside the file.
func NewEncryptedFileStore(path, passphrase string) (*EncryptedFileStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", dir, err)
	}

	if passphrase == "" {
		var err error
		if passphrase, err = resolvePassphrase(dir); err != nil {
			return nil, err
		}
	}
	return &EncryptedFileStore{path: path, passphrase: passphrase}, nil
}

func (e *EncryptedFileStore) Store(session *Session) error {
	if session == nil || session.Name == "" {
		return ErrInvalidCredentials
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	all, err := e.readAll()
	if err != nil {
		return err
	}
	all[session.Name] = *session
	return e.writeAll(all)
}

func (e *EncryptedFileStore) Retrieve(name string) (*Session, error) {
	if name == "" {
		return nil, ErrInvalidCredentials
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	all, err := e.readAll()
	if err != nil {
		return nil, err
	}
	s, ok := all[name]
	if !ok {
		return nil, ErrCredentialsNotFound
	}
	return &s, nil
}

func (e *EncryptedFileStore) List() ([]*Session, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	all, err := e.readAll()
	if err != nil {
		return nil, err
	}
	out := make([]*Session, 0, len(all))
	for _, s := range all {
		out = append(out, &s)
	}
	return out, nil
}

// Delete removes one session. The file goes away with the last one.
func (e *EncryptedFileStore) Delete(name string) error {
	if name == "" {
		return ErrInvalidCredentials
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	all, err := e.readAll()
	if err != nil {
		return err
	}
	if _, ok := all[name]; !ok {
		return ErrCredentialsNotFound
	}
	delete(all, name)

	if len(all) == 0 {
		return os.Remove(e.path)
	}
	return e.writeAll(all)
}

func (e *EncryptedFileStore) Exists(name string) bool {
	_, err := e.Retrieve(name)
	return err == nil
}

// readAll returns an empty map when the file does not exist yet.
func (e *EncryptedFileStore) readAll() (map[string]Session, error) {
	raw, err := os.ReadFile(e.path)
	if os.IsNotExist(err) {
		return map[string]Session{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", e.path, err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("corrupt credentials file %s: %w", e.path, err)
	}
	if env.Version != envelopeVersion {
		return nil, fmt.Errorf("credentials file %s: unsupported version %d", e.path, env.Version)
	}

	plain, err := open(deriveKey(e.passphrase, env.Salt), env.Sealed)
	if err != nil {
		return nil, fmt.Errorf("cannot unseal %s (wrong passphrase?): %w", e.path, err)
	}

	all := map[string]Session{}
	if err := json.Unmarshal(plain, &all); err != nil {
		return nil, fmt.Errorf("corrupt session list in %s: %w", e.path, err)
	}
	return all, nil
}

// writeAll reseals with a fresh salt and nonce on every write.
func (e *EncryptedFileStore) writeAll(all map[string]Session) error {
	plain, err := json.Marshal(all)
	if err != nil {
		return err
	}

	salt := make([]byte, kdfSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("failed to generate salt: %w", err)
	}
	sealed, err := seal(deriveKey(e.passphrase, salt), plain)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(envelope{
		Version:  envelopeVersion,
		Salt:     salt,
		Sealed:   sealed,
		Modified: time.Now().UTC(),
	}, "", "  ")
	if err != nil {
		return err
	}
	return storage.WriteFileAtomic(e.path, out, 0600)
}

func resolvePassphrase(dir string) (string, error) {
	if p := os.Getenv(PassphraseEnv); p != "" {
		return p, nil
	}

	keyFile := filepath.Join(dir, passphraseFile)
	if b, err := os.ReadFile(keyFile); err == nil && len(b) > 0 {
		return string(b), nil
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate passphrase: %w", err)
	}
	p := base64.RawURLEncoding.EncodeToString(buf)
	if err := os.WriteFile(keyFile, []byte(p), 0600); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", keyFile, err)
	}
	return p, nil
}

func deriveKey(passphrase string, salt []byte) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, kdfRounds, aesKeyLen, sha256.New)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// seal returns nonce || ciphertext.
func seal(key, plain []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return aead.Seal(nonce, nonce, plain, nil), nil
}

func open(key, sealed []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	n := aead.NonceSize()
	if len(sealed) < n {
		return nil, errSealedTooShort
	}
	return aead.Open(nil, sealed[:n], sealed[n:], nil)
}
