// Package entropy supplies the random rolls used by deposit discovery and
// territory generation. Seeded sources make runs reproducible; the batched
// random.org client is available for live servers.
package entropy

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	mrand "math/rand/v2"
	"net/http"
	"sync"
	"time"
)

// Source yields uniform floats in [0, 1).
type Source interface {
	Float() float64
}

// Seeded is a deterministic source. Safe for concurrent use.
type Seeded struct {
	mu  sync.Mutex
	rng *mrand.Rand
}

// NewSeeded creates a deterministic source from seed.
func NewSeeded(seed uint64) *Seeded {
	return &Seeded{rng: mrand.New(mrand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Float returns the next value in the sequence.
func (s *Seeded) Float() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

// Crypto draws from crypto/rand.
type Crypto struct{}

// Float returns a crypto-random float.
func (Crypto) Float() float64 { return cryptoFloat() }

// cryptoFloat keeps the top 53 bits of a crypto/rand word.
func cryptoFloat() float64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return mrand.Float64()
	}
	return float64(binary.BigEndian.Uint64(b[:])>>11) / (1 << 53)
}

const (
	randomOrgURL = "https://api.random.org/json-rpc/4/invoke"
	batchSize    = 100
)

// Client serves draws from batches of random.org decimal fractions. A draw
// whose batch cannot be fetched comes from crypto/rand instead. A nil
// *Client behaves like Crypto.
type Client struct {
	URL string

	key  string
	http *http.Client

	mu    sync.Mutex
	batch []float64
}

// NewClient returns nil when key is empty.
func NewClient(key string) *Client {
	if key == "" {
		return nil
	}
	return &Client{URL: randomOrgURL, key: key, http: &http.Client{Timeout: 15 * time.Second}}
}

// Float pops the next buffered fraction, fetching a new batch when empty.
func (c *Client) Float() float64 {
	if c == nil {
		return cryptoFloat()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.batch) == 0 {
		fresh, err := c.fetch()
		if err != nil {
			slog.Debug("random.org unavailable, using crypto/rand", "error", err)
			return cryptoFloat()
		}
		c.batch = fresh
	}
	v := c.batch[0]
	c.batch = c.batch[1:]
	return v
}

type fractionsRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	ID      int    `json:"id"`
	Params  struct {
		APIKey        string `json:"apiKey"`
		N             int    `json:"n"`
		DecimalPlaces int    `json:"decimalPlaces"`
	} `json:"params"`
}

type fractionsReply struct {
	Result *struct {
		Random struct {
			Data []float64 `json:"data"`
		} `json:"random"`
	} `json:"result"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) fetch() ([]float64, error) {
	req := fractionsRequest{JSONRPC: "2.0", Method: "generateDecimalFractions", ID: 1}
	req.Params.APIKey = c.key
	req.Params.N = batchSize
	req.Params.DecimalPlaces = 6
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Post(c.URL, "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("random.org: %s", resp.Status)
	}

	var reply fractionsReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return nil, fmt.Errorf("decode random.org reply: %w", err)
	}
	switch {
	case reply.Error != nil:
		return nil, fmt.Errorf("random.org: %s", reply.Error.Message)
	case reply.Result == nil || len(reply.Result.Random.Data) == 0:
		return nil, errors.New("random.org: empty batch")
	}
	for _, v := range reply.Result.Random.Data {
		if v < 0 || v >= 1 {
			return nil, fmt.Errorf("random.org: fraction %v out of range", v)
		}
	}
	return reply.Result.Random.Data, nil
}

// New picks a source: the random.org client when apiKey is set, a seeded
// source when seed is non-zero, crypto/rand otherwise.
func New(apiKey string, seed uint64) Source {
	if c := NewClient(apiKey); c != nil {
		return c
	}
	if seed != 0 {
		return NewSeeded(seed)
	}
	return Crypto{}
}
