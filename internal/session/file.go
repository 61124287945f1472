package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"
)

const nonceSize = 24

var ErrCorruptFile = errors.New("session file cannot be opened")

// FileStorage keeps the entries in one JSON file. With a secret the file is
// sealed with secretbox; the key is derived from the secret with HKDF.
type FileStorage struct {
	mu   sync.Mutex
	path string
	key  *[32]byte
}

func NewFileStorage(path, secret string) (*FileStorage, error) {
	fs := &FileStorage{path: path}

	if secret != "" {
		var key [32]byte
		kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte("hrconsole session file"))
		if _, err := io.ReadFull(kdf, key[:]); err != nil {
			return nil, fmt.Errorf("derive session key: %w", err)
		}

		fs.key = &key
	}

	return fs, nil
}

func (f *FileStorage) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := f.load()
	if err != nil {
		return "", err
	}

	v, ok := data[key]
	if !ok {
		return "", ErrNotFound
	}

	return v, nil
}

func (f *FileStorage) Set(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := f.load()
	if err != nil && !errors.Is(err, ErrCorruptFile) {
		return err
	}

	if data == nil {
		data = make(map[string]string)
	}
	data[key] = value

	return f.save(data)
}

func (f *FileStorage) Delete(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := f.load()
	if errors.Is(err, ErrCorruptFile) {
		return os.Remove(f.path)
	}
	if err != nil {
		return err
	}

	for _, k := range keys {
		delete(data, k)
	}

	if len(data) == 0 {
		if err = os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}

		return nil
	}

	return f.save(data)
}

func (f *FileStorage) load() (map[string]string, error) {
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}

	if f.key != nil {
		if len(raw) < nonceSize {
			return nil, ErrCorruptFile
		}

		var nonce [nonceSize]byte
		copy(nonce[:], raw[:nonceSize])

		opened, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, f.key)
		if !ok {
			return nil, ErrCorruptFile
		}

		raw = opened
	}

	data := make(map[string]string)
	if err = json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptFile, err)
	}

	return data, nil
}

func (f *FileStorage) save(data map[string]string) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal session file: %w", err)
	}

	if f.key != nil {
		var nonce [nonceSize]byte
		if _, err = rand.Read(nonce[:]); err != nil {
			return fmt.Errorf("session nonce: %w", err)
		}

		raw = secretbox.Seal(nonce[:], raw, &nonce, f.key)
	}

	if err = os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	tmp := f.path + ".tmp"
	if err = os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}

	return os.Rename(tmp, f.path)
}
