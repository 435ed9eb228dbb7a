// Package encryption seals blob payloads before they leave the machine.
// The network stores whatever bytes it is given; encrypting client-side
// keeps content private without changing the store/read protocol.
package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
)

// Method enumerates supported encryption algorithms.
type Method string

const (
	// MethodNone skips encryption entirely.
	MethodNone Method = "none"
	// MethodAES256GCM seals data using AES-256-GCM with a random nonce
	// prefix. Decryption authenticates, so a wrong key fails loudly
	// instead of yielding garbage.
	MethodAES256GCM Method = "aes-256-gcm"
)

// Options describes how to encrypt or decrypt payloads.
type Options struct {
	Method Method
	Key    []byte
}

// Enabled reports whether encryption should run.
func (o Options) Enabled() bool {
	return o.Method != "" && o.Method != MethodNone
}

// Validate ensures the configuration is usable for the selected method.
func (o Options) Validate() error {
	if !o.Enabled() {
		return nil
	}
	switch o.Method {
	case MethodAES256GCM:
		if len(o.Key) != 32 {
			return fmt.Errorf("encryption: aes-256-gcm requires 32-byte key, got %d", len(o.Key))
		}
	default:
		return fmt.Errorf("encryption: unsupported method %q", o.Method)
	}
	return nil
}

// Encrypt returns data sealed according to opts. The returned slice includes
// the nonce header.
func Encrypt(data []byte, opts Options) ([]byte, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if !opts.Enabled() {
		return data, nil
	}
	aead, err := newAEAD(opts.Key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return aead.Seal(nonce, nonce, data, nil), nil
}

// Decrypt reverses Encrypt using opts, authenticating the payload.
func Decrypt(ciphertext []byte, opts Options) ([]byte, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if !opts.Enabled() {
		return ciphertext, nil
	}
	aead, err := newAEAD(opts.Key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < aead.NonceSize() {
		return nil, errors.New("encryption: ciphertext missing nonce")
	}
	nonce, sealed := ciphertext[:aead.NonceSize()], ciphertext[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("encryption: open: %w", err)
	}
	return plain, nil
}

// Overhead returns the number of bytes the given method adds to a payload.
func Overhead(method Method) int {
	switch method {
	case MethodAES256GCM:
		// 12-byte nonce plus 16-byte GCM tag.
		return 28
	default:
		return 0
	}
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
