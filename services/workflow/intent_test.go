package workflow

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intentAPIStub(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/auth/token", func(w http.ResponseWriter, r *http.Request) {
		var creds map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		if creds["apiKey"] != "good-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"access_token": "tok-123"})
	})
	mux.HandleFunc("/v1/signals", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.Equal(t, "pricing,competitors", r.URL.Query().Get("topics"))
		assert.Equal(t, "75.0", r.URL.Query().Get("min_score"))
		json.NewEncoder(w).Encode(map[string]any{
			"signals": []map[string]any{
				{
					"subject":     "acme.example.com",
					"topic":       "pricing",
					"score":       88.5,
					"observed_at": "2026-08-28T10:30:00Z",
					"attributes":  map[string]any{"region": "emea"},
				},
			},
		})
	})
	return httptest.NewServer(mux)
}

func TestIntentClient_RoundTrip(t *testing.T) {
	server := intentAPIStub(t)
	defer server.Close()

	client := NewIntentClient(server.URL)
	ctx := context.Background()

	token, err := client.Authenticate(ctx, Credentials{APIKey: "good-key", APISecret: "s"})
	require.NoError(t, err)
	assert.Equal(t, "tok-123", token)

	signals, err := client.FetchSignals(ctx, token, FilterCriteria{
		Topics:   []string{"pricing", "competitors"},
		MinScore: 75,
	})
	require.NoError(t, err)
	require.Len(t, signals, 1)
	assert.Equal(t, "acme.example.com", signals[0].Subject)
	assert.Equal(t, 88.5, signals[0].Score)
	assert.Equal(t, "emea", signals[0].Attributes["region"])
	assert.Equal(t, 2026, signals[0].ObservedAt.Year())
}

func TestIntentClient_BadCredentials(t *testing.T) {
	server := intentAPIStub(t)
	defer server.Close()

	client := NewIntentClient(server.URL)

	_, err := client.Authenticate(context.Background(), Credentials{APIKey: "bad-key"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "rejected credentials")
}

func TestIntentClient_BadToken(t *testing.T) {
	server := intentAPIStub(t)
	defer server.Close()

	client := NewIntentClient(server.URL)

	_, err := client.FetchSignals(context.Background(), "stale-token", FilterCriteria{
		Topics:   []string{"pricing", "competitors"},
		MinScore: 75,
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}
