package cipher

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bankcards/cardledger/internal/apperr"
)

func newTestCipher(t *testing.T) *Cipher {
	t.Helper()
	c, err := New("test-encryption-key", "")
	require.NoError(t, err)
	return c
}

func TestEncryptIsNonDeterministic(t *testing.T) {
	c := newTestCipher(t)

	first, err := c.Encrypt("1234567812345678")
	require.NoError(t, err)
	second, err := c.Encrypt("1234567812345678")
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	for _, ct := range []string{first, second} {
		plain, err := c.Decrypt(ct)
		require.NoError(t, err)
		require.Equal(t, "1234567812345678", plain)
	}
}

func TestMaskRoundTrip(t *testing.T) {
	c := newTestCipher(t)
	for _, n := range []string{"1234567812345678", "4111111111111111", "5500005555555559"} {
		ct, err := c.Encrypt(n)
		require.NoError(t, err)
		require.NotContains(t, ct, n)

		masked, err := c.MaskCiphertext(ct)
		require.NoError(t, err)
		require.Equal(t, Mask(n), masked)
	}
}

func TestDecryptRejectsTamperedInput(t *testing.T) {
	c := newTestCipher(t)
	ct, err := c.Encrypt("1234567812345678")
	require.NoError(t, err)

	raw, _ := base64.StdEncoding.DecodeString(ct)
	raw[len(raw)-1] ^= 0xFF
	_, err = c.Decrypt(base64.StdEncoding.EncodeToString(raw))
	require.ErrorIs(t, err, apperr.ErrCrypto)

	_, err = c.Decrypt("not base64 !!")
	require.ErrorIs(t, err, apperr.ErrCrypto)

	_, err = c.Decrypt(base64.StdEncoding.EncodeToString([]byte("short")))
	require.ErrorIs(t, err, apperr.ErrCrypto)
}

func TestDecryptWithOtherKeyFails(t *testing.T) {
	a := newTestCipher(t)
	b, err := New("another-key", "")
	require.NoError(t, err)

	ct, err := a.Encrypt("1234567812345678")
	require.NoError(t, err)
	_, err = b.Decrypt(ct)
	require.ErrorIs(t, err, apperr.ErrCrypto)
}

func TestMask(t *testing.T) {
	cases := map[string]string{
		"":                 "****",
		"123":              "****",
		"1234":             "**** **** **** 1234",
		"1234567812345678": "**** **** **** 5678",
	}
	for in, want := range cases {
		require.Equal(t, want, Mask(in), "input %q", in)
	}
}

func TestFingerprint(t *testing.T) {
	c := newTestCipher(t)
	require.Equal(t, c.Fingerprint("1234567812345678"), c.Fingerprint("1234 5678 1234 5678"))
	require.NotEqual(t, c.Fingerprint("1234567812345678"), c.Fingerprint("1234567812345679"))

	other, err := New("test-encryption-key", "explicit-fingerprint-secret")
	require.NoError(t, err)
	require.NotEqual(t, c.Fingerprint("1234567812345678"), other.Fingerprint("1234567812345678"))
}

func TestNormalizeKey(t *testing.T) {
	require.Len(t, normalizeKey("short"), 16)
	require.Len(t, normalizeKey("exactly-sixteen!"), 16)
	require.Len(t, normalizeKey("twenty-four-bytes-key-xx"), 24)
	require.Len(t, normalizeKey("a-key-that-is-way-longer-than-thirty-two-bytes"), 32)
}
