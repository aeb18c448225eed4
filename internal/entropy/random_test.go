package entropy

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestSeededIsReproducible(t *testing.T) {
	a, b := NewSeeded(7), NewSeeded(7)
	for i := 0; i < 100; i++ {
		x, y := a.Float(), b.Float()
		if x != y {
			t.Fatalf("draw %d differs: %v vs %v", i, x, y)
		}
		if x < 0 || x >= 1 {
			t.Fatalf("draw %d out of range: %v", i, x)
		}
	}
}

func TestNewPicksSource(t *testing.T) {
	if _, ok := New("", 0).(Crypto); !ok {
		t.Error("no key, no seed: want Crypto")
	}
	if _, ok := New("", 3).(*Seeded); !ok {
		t.Error("seed: want Seeded")
	}
	if _, ok := New("key", 3).(*Client); !ok {
		t.Error("api key: want Client")
	}
}

func TestClientDrainsBatchBeforeFetching(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var req fractionsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Params.APIKey != "key" || req.Params.N != batchSize {
			t.Errorf("request = %+v, %v", req, err)
		}
		w.Write([]byte(`{"result":{"random":{"data":[0.25,0.5,0.75]}}}`))
	}))
	defer srv.Close()

	c := NewClient("key")
	c.URL = srv.URL
	for i, want := range []float64{0.25, 0.5, 0.75, 0.25} {
		if got := c.Float(); got != want {
			t.Fatalf("draw %d = %v, want %v", i, got, want)
		}
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("fetched %d batches, want 2", n)
	}
}

func TestClientFallsBackOnError(t *testing.T) {
	tests := []struct {
		name   string
		status int
		reply  string
	}{
		{"rpc error", http.StatusOK, `{"error":{"message":"quota"}}`},
		{"http error", http.StatusServiceUnavailable, ``},
		{"empty batch", http.StatusOK, `{"result":{"random":{"data":[]}}}`},
		{"out of range", http.StatusOK, `{"result":{"random":{"data":[1.5]}}}`},
		{"garbage", http.StatusOK, `not json`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.reply))
			}))
			defer srv.Close()

			c := NewClient("key")
			c.URL = srv.URL
			if got := c.Float(); got < 0 || got >= 1 {
				t.Errorf("fallback draw out of range: %v", got)
			}
			if len(c.batch) != 0 {
				t.Errorf("kept %v from a failed fetch", c.batch)
			}
		})
	}

	var nilClient *Client
	if got := nilClient.Float(); got < 0 || got >= 1 {
		t.Errorf("nil client draw out of range: %v", got)
	}
}
