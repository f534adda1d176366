// Package codec converts a question map to and from the opaque mapping
// token stored in one spreadsheet cell per event.
//
// Tokens are sealed with AES-256-GCM. The AES key is derived from a
// process-wide secret shared by every ledger; the nonce is the ledger's
// initialization vector, so encoding is deterministic per ledger. The
// encoding exists for opacity and compactness, not confidentiality: a token
// is meaningless outside its ledger but must not be treated as protected.
package codec

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hkdf"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"

	"github.com/okian/tally/internal/domain/model"
)

const (
	// IVSize is the length of a ledger initialization vector in bytes.
	IVSize = 16

	keySize = 32
	keyInfo = "tally mapping token v1"
)

var tokenEncoding = base64.RawURLEncoding

// Key is the derived AES key shared by every ledger.
type Key struct {
	raw []byte
}

// DeriveKey derives the token key from the configured secret.
func DeriveKey(secret string) (Key, error) {
	if secret == "" {
		return Key{}, ErrEmptySecret
	}
	raw, err := hkdf.Key(sha256.New, []byte(secret), nil, keyInfo, keySize)
	if err != nil {
		return Key{}, fmt.Errorf("derive key: %w", err)
	}
	return Key{raw: raw}, nil
}

// NewIV returns a fresh random initialization vector, base64 encoded the
// way ledger settings persist it.
func NewIV() (string, error) {
	iv := make([]byte, IVSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", fmt.Errorf("read iv: %w", err)
	}
	return base64.StdEncoding.EncodeToString(iv), nil
}

// ParseIV decodes a persisted initialization vector.
func ParseIV(encoded string) ([]byte, error) {
	iv, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidIV, err)
	}
	if len(iv) != IVSize {
		return nil, fmt.Errorf("%w: want %d bytes, got %d", ErrInvalidIV, IVSize, len(iv))
	}
	return iv, nil
}

// Encode seals q into a token. The same map, key and iv always produce
// the same token; an empty map produces an empty token.
func Encode(q model.QuestionMap, key Key, iv []byte) (string, error) {
	if q.IsEmpty() {
		return "", nil
	}
	aead, err := newAEAD(key, iv)
	if err != nil {
		return "", err
	}
	pairs := make([][2]string, 0, q.Len())
	for _, e := range q.Entries() {
		pairs = append(pairs, [2]string{e.QuestionID, string(e.Attribute)})
	}
	plain, err := json.Marshal(pairs)
	if err != nil {
		return "", fmt.Errorf("marshal question map: %w", err)
	}
	return tokenEncoding.EncodeToString(aead.Seal(nil, iv, plain, nil)), nil
}

// Decode opens a token produced by Encode with the same key and iv.
// Any failure wraps ErrDecode; callers treat it as "no mapping yet".
func Decode(token string, key Key, iv []byte) (model.QuestionMap, error) {
	if token == "" {
		return model.QuestionMap{}, nil
	}
	aead, err := newAEAD(key, iv)
	if err != nil {
		return model.QuestionMap{}, err
	}
	sealed, err := tokenEncoding.DecodeString(token)
	if err != nil {
		return model.QuestionMap{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if len(sealed) < aead.Overhead() {
		return model.QuestionMap{}, fmt.Errorf("%w: token truncated", ErrDecode)
	}
	plain, err := aead.Open(nil, iv, sealed, nil)
	if err != nil {
		return model.QuestionMap{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	var pairs [][2]string
	if err := json.Unmarshal(plain, &pairs); err != nil {
		return model.QuestionMap{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	var q model.QuestionMap
	for _, p := range pairs {
		attr, err := model.ParseAttribute(p[1])
		if err != nil {
			return model.QuestionMap{}, fmt.Errorf("%w: %w", ErrDecode, err)
		}
		q.Set(p[0], attr)
	}
	return q, nil
}

func newAEAD(key Key, iv []byte) (cipher.AEAD, error) {
	if len(key.raw) != keySize {
		return nil, ErrEmptySecret
	}
	if len(iv) != IVSize {
		return nil, fmt.Errorf("%w: want %d bytes, got %d", ErrInvalidIV, IVSize, len(iv))
	}
	block, err := aes.NewCipher(key.raw)
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}
	aead, err := cipher.NewGCMWithNonceSize(block, IVSize)
	if err != nil {
		return nil, fmt.Errorf("new gcm: %w", err)
	}
	return aead, nil
}

// Codec binds the shared key to one ledger's iv.
type Codec struct {
	key Key
	iv  []byte
}

// New binds key to the base64 iv from ledger settings.
func New(key Key, encodedIV string) (*Codec, error) {
	iv, err := ParseIV(encodedIV)
	if err != nil {
		return nil, err
	}
	return &Codec{key: key, iv: iv}, nil
}

// Encode seals q with the bound key material.
func (c *Codec) Encode(q model.QuestionMap) (string, error) {
	return Encode(q, c.key, c.iv)
}

// Decode opens token with the bound key material.
func (c *Codec) Decode(token string) (model.QuestionMap, error) {
	return Decode(token, c.key, c.iv)
}
