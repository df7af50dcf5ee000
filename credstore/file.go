package credstore

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ferrytech/authkit/session"
)

const (
	stateFileName = "session_state.json"
	tokenFileName = "session_tokens.enc"
)

// ErrInvalidKeyLength is returned by [NewFile] when the supplied key is not
// a valid AES key length.
var ErrInvalidKeyLength = errors.New("encryption key must be 16, 24, or 32 bytes")

// File is a durable [Store] for desktop and CLI clients. The state tier is a
// plain JSON file; the token tier is a separate AES-GCM-encrypted file with
// 0600 permissions, so a leaked state file never exposes credentials.
//
// When a session is stored with persistent=false the tokens are held in
// process memory only: the state file is still written for display
// bookkeeping, but a restart finds an incomplete record and treats the
// session as absent.
type File struct {
	dir string
	key []byte

	mu        sync.Mutex
	ephemeral *tokenRecord
}

// NewFile creates a file-backed store rooted at dir. The directory is
// created with 0700 permissions if missing. key is the AES key protecting
// the token tier; callers typically source it from an OS keychain entry.
func NewFile(dir string, key []byte) (*File, error) {
	switch len(key) {
	case 16, 24, 32:
	default:
		return nil, ErrInvalidKeyLength
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return &File{dir: dir, key: append([]byte(nil), key...)}, nil
}

// Store implements [Store].
func (f *File) Store(_ context.Context, sess *session.Session, persistent bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	state := &stateRecord{
		User:          sess.Clone().User,
		AccessExpiry:  sess.AccessExpiry.Format(time.RFC3339Nano),
		RefreshExpiry: sess.RefreshExpiry.Format(time.RFC3339Nano),
		Persistent:    persistent,
	}
	stateData, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err := writeFileAtomic(filepath.Join(f.dir, stateFileName), stateData); err != nil {
		return err
	}

	tokens := &tokenRecord{
		AccessToken:  sess.AccessToken,
		RefreshToken: sess.RefreshToken,
	}

	if !persistent {
		// Session-only retention: never let the tokens touch disk, and
		// drop any previously persisted copy.
		f.ephemeral = tokens
		if err := removeIfExists(filepath.Join(f.dir, tokenFileName)); err != nil {
			return err
		}
		return nil
	}

	f.ephemeral = nil
	tokenData, err := json.Marshal(tokens)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	sealed, err := sealAESGCM(f.key, tokenData)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return writeFileAtomic(filepath.Join(f.dir, tokenFileName), sealed)
}

// Load implements [Store]. A missing, truncated, or undecryptable record in
// either tier yields (nil, nil).
func (f *File) Load(_ context.Context) (*session.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	stateData, err := os.ReadFile(filepath.Join(f.dir, stateFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	var state stateRecord
	if err := json.Unmarshal(stateData, &state); err != nil {
		return nil, nil
	}

	tokens := f.ephemeral
	if tokens == nil {
		sealed, err := os.ReadFile(filepath.Join(f.dir, tokenFileName))
		if err != nil {
			if os.IsNotExist(err) {
				return nil, nil
			}
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		plain, err := openAESGCM(f.key, sealed)
		if err != nil {
			return nil, nil
		}
		tokens = &tokenRecord{}
		if err := json.Unmarshal(plain, tokens); err != nil {
			return nil, nil
		}
	}

	return assembleSession(tokens, &state)
}

// Clear implements [Store].
func (f *File) Clear(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.ephemeral = nil
	if err := removeIfExists(filepath.Join(f.dir, tokenFileName)); err != nil {
		return err
	}
	return removeIfExists(filepath.Join(f.dir, stateFileName))
}

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// sealAESGCM encrypts plain with AES-GCM, prefixing the random nonce.
func sealAESGCM(key, plain []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plain, nil), nil
}

// openAESGCM reverses sealAESGCM. Any tampering or key mismatch fails.
func openAESGCM(key, sealed []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(sealed) < gcm.NonceSize() {
		return nil, errors.New("sealed blob too short")
	}
	nonce, ciphertext := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, nil)
}
