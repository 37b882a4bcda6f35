// Package tokenstore persists iSmart session tokens, encrypted at rest
// with a key derived from the account credentials.
package tokenstore

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"
	"golang.org/x/oauth2"
)

const (
	// envelopeVersion is the current sealed format. Version 1 was the
	// plaintext layout; it is still readable and upgraded on next save.
	envelopeVersion = 2

	// expiryMargin: tokens this close to expiry are not worth reusing.
	expiryMargin = 10 * time.Minute
)

var errWrongKey = errors.New("wrong credentials or corrupted token envelope")

// envelope is the on-disk JSON structure.
type envelope struct {
	Version   int       `json:"version"`
	Salt      []byte    `json:"salt,omitempty"`
	N         int       `json:"scrypt_n,omitempty"`
	R         int       `json:"scrypt_r,omitempty"`
	P         int       `json:"scrypt_p,omitempty"`
	Cipher    []byte    `json:"cipher,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`

	// Legacy version-1 field.
	Token *oauth2.Token `json:"token,omitempty"`
}

func scryptParams() (N, r, p int) { return 1 << 15, 8, 1 }

// keyMaterial matches the original derivation input: the lowercased
// account email joined with the password.
func keyMaterial(username, password string) []byte {
	return []byte(strings.ToLower(strings.TrimSpace(username)) + ":" + password)
}

// seal encrypts the token into an envelope blob.
func seal(secret []byte, token *oauth2.Token) ([]byte, error) {
	raw, err := json.Marshal(token)
	if err != nil {
		return nil, fmt.Errorf("marshal token: %w", err)
	}

	var salt [16]byte
	if _, err := rand.Read(salt[:]); err != nil {
		return nil, err
	}
	N, r, p := scryptParams()
	key, err := scrypt.Key(secret, salt[:], N, r, p, chacha20poly1305.KeySize)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	// Zero nonce; the per-save random salt makes every key unique.
	var nonce [chacha20poly1305.NonceSize]byte
	cipher := aead.Seal(nil, nonce[:], raw, salt[:])

	return json.Marshal(envelope{
		Version:   envelopeVersion,
		Salt:      salt[:],
		N:         N,
		R:         r,
		P:         p,
		Cipher:    cipher,
		ExpiresAt: token.Expiry,
	})
}

// open decrypts an envelope blob back into a token. Legacy version-1
// plaintext envelopes are accepted.
func open(secret []byte, blob []byte) (*oauth2.Token, error) {
	var env envelope
	if err := json.Unmarshal(blob, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Version > envelopeVersion {
		return nil, fmt.Errorf("unsupported token envelope version %d", env.Version)
	}

	if env.Version <= 1 {
		if env.Token == nil {
			return nil, errors.New("legacy envelope holds no token")
		}
		return env.Token, nil
	}

	key, err := scrypt.Key(secret, env.Salt, env.N, env.R, env.P, chacha20poly1305.KeySize)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	var nonce [chacha20poly1305.NonceSize]byte
	raw, err := aead.Open(nil, nonce[:], env.Cipher, env.Salt)
	if err != nil {
		return nil, errWrongKey
	}

	token := &oauth2.Token{}
	if err := json.Unmarshal(raw, token); err != nil {
		return nil, fmt.Errorf("decode token: %w", err)
	}
	return token, nil
}

func expired(token *oauth2.Token) bool {
	return token == nil || time.Until(token.Expiry) < expiryMargin
}
