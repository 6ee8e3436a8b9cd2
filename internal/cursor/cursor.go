// Package cursor issues opaque, tamper-proof pagination cursors.
//
// A cursor carries the position of the last item of a page. Tokens are
// fernet-encrypted so clients cannot forge or inspect them and expire
// after the codec's TTL.
package cursor

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fernet/fernet-go"

	"github.com/ndewijer/Investment-Ledger-Backend/internal/apperrors"
)

// Position is the keyset position a cursor resumes after.
type Position struct {
	PortfolioID string `json:"p"`
	AfterSeq    int64  `json:"s"`
}

// Codec encodes and decodes cursors with a single fernet key.
type Codec struct {
	key *fernet.Key
	ttl time.Duration
}

// NewCodec builds a Codec from a base64 fernet key. An empty key generates a
// random one, which invalidates outstanding cursors on restart.
func NewCodec(encodedKey string, ttl time.Duration) (*Codec, error) {
	var key *fernet.Key
	if encodedKey == "" {
		key = new(fernet.Key)
		if err := key.Generate(); err != nil {
			return nil, fmt.Errorf("failed to generate cursor key: %w", err)
		}
	} else {
		k, err := fernet.DecodeKey(encodedKey)
		if err != nil {
			return nil, fmt.Errorf("invalid cursor key: %w", err)
		}
		key = k
	}
	return &Codec{key: key, ttl: ttl}, nil
}

// Encode returns an opaque token for pos.
func (c *Codec) Encode(pos Position) (string, error) {
	payload, err := json.Marshal(pos)
	if err != nil {
		return "", err
	}
	tok, err := fernet.EncryptAndSign(payload, c.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign cursor: %w", err)
	}
	return string(tok), nil
}

// Decode verifies token and returns its position. Expired, tampered or
// malformed tokens yield apperrors.ErrInvalidCursor.
func (c *Codec) Decode(token string) (Position, error) {
	msg := fernet.VerifyAndDecrypt([]byte(token), c.ttl, []*fernet.Key{c.key})
	if msg == nil {
		return Position{}, apperrors.ErrInvalidCursor
	}
	var pos Position
	if err := json.Unmarshal(msg, &pos); err != nil {
		return Position{}, apperrors.ErrInvalidCursor
	}
	return pos, nil
}
