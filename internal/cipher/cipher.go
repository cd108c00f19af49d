package cipher

import (
	"crypto/aes"
	stdcipher "crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"

	"github.com/bankcards/cardledger/internal/apperr"
)

const (
	// DefaultKey is used when no encryption key is configured.
	DefaultKey = "MySecretKey12345"

	nonceSize = 12
	tagSize   = 16

	fingerprintInfo = "card-number-fingerprint"
)

// Cipher encrypts card numbers at rest with AES-GCM and derives a keyed
// fingerprint used for uniqueness checks and lookups.
type Cipher struct {
	aead   stdcipher.AEAD
	fpKey  []byte
	random io.Reader
}

// New builds a Cipher. A fingerprint secret is derived from key when
// fingerprintKey is empty.
func New(key, fingerprintKey string) (*Cipher, error) {
	if key == "" {
		key = DefaultKey
	}
	block, err := aes.NewCipher(normalizeKey(key))
	if err != nil {
		return nil, fmt.Errorf("init aes: %w", err)
	}
	aead, err := stdcipher.NewGCMWithTagSize(block, tagSize)
	if err != nil {
		return nil, fmt.Errorf("init gcm: %w", err)
	}

	fpKey := []byte(fingerprintKey)
	if len(fpKey) == 0 {
		fpKey = make([]byte, 32)
		if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(key), nil, []byte(fingerprintInfo)), fpKey); err != nil {
			return nil, fmt.Errorf("derive fingerprint key: %w", err)
		}
	}

	return &Cipher{aead: aead, fpKey: fpKey, random: rand.Reader}, nil
}

// normalizeKey space-pads short keys to 16 bytes and truncates longer ones to
// the largest AES key size that fits.
func normalizeKey(key string) []byte {
	switch n := len(key); {
	case n < 16:
		return []byte(key + strings.Repeat(" ", 16-n))
	case n >= 32:
		return []byte(key[:32])
	case n >= 24:
		return []byte(key[:24])
	default:
		return []byte(key[:16])
	}
}

// Encrypt returns base64(nonce || ciphertext || tag). Every call uses a fresh nonce.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, nonceSize, nonceSize+len(plaintext)+tagSize)
	if _, err := io.ReadFull(c.random, nonce); err != nil {
		return "", apperr.Wrap(apperr.KindCrypto, err, "generate nonce")
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt.
func (c *Cipher) Decrypt(encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", apperr.Wrap(apperr.KindCrypto, err, "decode ciphertext")
	}
	if len(raw) < nonceSize+tagSize {
		return "", apperr.New(apperr.KindCrypto, "ciphertext too short")
	}
	plain, err := c.aead.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
	if err != nil {
		return "", apperr.Wrap(apperr.KindCrypto, err, "decrypt ciphertext")
	}
	return string(plain), nil
}

// Fingerprint is a deterministic keyed digest of the card digits.
func (c *Cipher) Fingerprint(number string) string {
	mac := hmac.New(sha256.New, c.fpKey)
	mac.Write([]byte(Digits(number)))
	return hex.EncodeToString(mac.Sum(nil))
}

// MaskCiphertext decrypts only to produce the display form.
func (c *Cipher) MaskCiphertext(encoded string) (string, error) {
	plain, err := c.Decrypt(encoded)
	if err != nil {
		return "", err
	}
	return Mask(plain), nil
}

// Mask renders a card number showing only its last four characters.
func Mask(number string) string {
	if len(number) < 4 {
		return "****"
	}
	return "**** **** **** " + number[len(number)-4:]
}

// Digits strips spaces and dashes commonly typed into card numbers.
func Digits(number string) string {
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return -1
		}
		return r
	}, number)
}
