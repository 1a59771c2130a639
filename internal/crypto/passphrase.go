// Package crypto reads and writes platform tokens in the OpenSSL salted
// passphrase format (AES-256-CBC, MD5 key derivation) that CryptoJS emits.
package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
)

const (
	saltHeader = "Salted__"
	saltLen    = 8
	keyLen     = 32
)

var (
	// ErrNoPassphrase is returned when no encryption key is configured.
	ErrNoPassphrase = errors.New("encryption key not configured")
	// ErrMalformed is returned for input that is not a salted ciphertext.
	ErrMalformed = errors.New("malformed ciphertext")
)

// Cipher encrypts and decrypts with a fixed passphrase.
type Cipher struct {
	passphrase []byte
}

// New returns a Cipher for passphrase.
func New(passphrase string) *Cipher {
	return &Cipher{passphrase: []byte(passphrase)}
}

// Encrypt returns base64("Salted__" | salt | ciphertext).
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	if len(c.passphrase) == 0 {
		return "", ErrNoPassphrase
	}
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	key, iv := deriveKey(c.passphrase, salt)

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("new cipher: %w", err)
	}
	padded := pad([]byte(plaintext), aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)

	buf := make([]byte, 0, len(saltHeader)+saltLen+len(out))
	buf = append(buf, saltHeader...)
	buf = append(buf, salt...)
	buf = append(buf, out...)
	return base64.StdEncoding.EncodeToString(buf), nil
}

// Decrypt reverses Encrypt and accepts anything CryptoJS.AES.encrypt produced
// with the same passphrase.
func (c *Cipher) Decrypt(encoded string) (string, error) {
	if len(c.passphrase) == 0 {
		return "", ErrNoPassphrase
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if len(raw) < len(saltHeader)+saltLen+aes.BlockSize || string(raw[:len(saltHeader)]) != saltHeader {
		return "", ErrMalformed
	}
	salt := raw[len(saltHeader) : len(saltHeader)+saltLen]
	body := raw[len(saltHeader)+saltLen:]
	if len(body)%aes.BlockSize != 0 {
		return "", ErrMalformed
	}

	key, iv := deriveKey(c.passphrase, salt)
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("new cipher: %w", err)
	}
	out := make([]byte, len(body))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, body)

	plain, err := unpad(out, aes.BlockSize)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

// deriveKey is OpenSSL's EVP_BytesToKey with MD5 and one iteration.
func deriveKey(passphrase, salt []byte) ([]byte, []byte) {
	var (
		derived []byte
		prev    []byte
	)
	for len(derived) < keyLen+aes.BlockSize {
		h := md5.New()
		h.Write(prev)
		h.Write(passphrase)
		h.Write(salt)
		prev = h.Sum(nil)
		derived = append(derived, prev...)
	}
	return derived[:keyLen], derived[keyLen : keyLen+aes.BlockSize]
}

func pad(data []byte, size int) []byte {
	n := size - len(data)%size
	return append(data, bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(data []byte, size int) ([]byte, error) {
	if len(data) == 0 || len(data)%size != 0 {
		return nil, ErrMalformed
	}
	n := int(data[len(data)-1])
	if n == 0 || n > size || n > len(data) {
		return nil, fmt.Errorf("%w: bad padding", ErrMalformed)
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, fmt.Errorf("%w: bad padding", ErrMalformed)
		}
	}
	return data[:len(data)-n], nil
}
