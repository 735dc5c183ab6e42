// Package session provides per-visitor session state and its storage backends.
package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"todolists/internal/lists"
)

// Data is everything stored for one visitor.
type Data struct {
	Lists   lists.Lists `json:"lists"`
	Success string      `json:"success,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// New returns the state a visitor starts with.
func New() Data {
	return Data{Lists: lists.Lists{}}
}

// TakeFlash returns the pending flash messages and clears them, so each is
// shown on exactly one render.
func (d *Data) TakeFlash() (success, errMsg string) {
	success, errMsg = d.Success, d.Error
	d.Success, d.Error = "", ""
	return success, errMsg
}

var ErrNotFound = errors.New("session not found or expired")

// DefaultTTL applies when a backend is asked to save without a lifetime.
const DefaultTTL = 14 * 24 * time.Hour

// Store persists session data keyed by session id.
type Store interface {
	Load(ctx context.Context, id string) (Data, error)
	Save(ctx context.Context, id string, data Data, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
	Ping(ctx context.Context) error
	Close() error
}

type wireData struct {
	Lists   json.RawMessage `json:"lists"`
	Success string          `json:"success,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Encode serializes data for a backend.
func Encode(data Data) ([]byte, error) {
	if data.Lists == nil {
		data.Lists = lists.Lists{}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal session data: %w", err)
	}
	return raw, nil
}

// Decode parses data read back from a backend. The lists are checked with
// lists.Decode before they are trusted.
func Decode(raw []byte) (Data, error) {
	var wire wireData
	if err := json.Unmarshal(raw, &wire); err != nil {
		return Data{}, fmt.Errorf("unmarshal session data: %w", err)
	}
	decoded, err := lists.Decode(wire.Lists)
	if err != nil {
		return Data{}, err
	}
	return Data{Lists: decoded, Success: wire.Success, Error: wire.Error}, nil
}

// NewID returns a random session id.
func NewID() string {
	buf := make([]byte, 24)
	_, _ = rand.Read(buf)
	return "sess_" + base64.RawURLEncoding.EncodeToString(buf)
}
