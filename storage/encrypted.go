package storage

import (
	"crypto/rand"
	"errors"
	"io"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/nacl/secretbox"
)

const nonceSize = 24

// ErrDecrypt is returned when a stored value fails authentication
var ErrDecrypt = errors.New("storage: cannot decrypt value")

// EncryptedStorage seals every value with NaCl secretbox before handing it to
// the wrapped storage, so tokens never rest in plaintext.
type EncryptedStorage struct {
	fiber.Storage
	key *[32]byte
}

// NewEncryptedStorage wraps inner with key
func NewEncryptedStorage(inner fiber.Storage, key *[32]byte) *EncryptedStorage {
	return &EncryptedStorage{Storage: inner, key: key}
}

// Get opens the value stored under key
func (s *EncryptedStorage) Get(key string) ([]byte, error) {
	sealed, err := s.Storage.Get(key)
	if err != nil || sealed == nil {
		return nil, err
	}
	if len(sealed) < nonceSize+secretbox.Overhead {
		return nil, ErrDecrypt
	}

	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])

	plain, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, s.key)
	if !ok {
		return nil, ErrDecrypt
	}
	return plain, nil
}

// Set seals val with a fresh nonce
func (s *EncryptedStorage) Set(key string, val []byte, exp time.Duration) error {
	if key == "" || len(val) == 0 {
		return nil
	}

	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return err
	}

	sealed := secretbox.Seal(nonce[:], val, &nonce, s.key)
	return s.Storage.Set(key, sealed, exp)
}
