package client_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bridge-Point/anonamoose-sub001/internal/client"
)

func TestInferenceClient_Warmup(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/models/load", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"status":"loaded"}`))
	}))
	defer srv.Close()

	c := client.NewInferenceClient(srv.URL, "/models/cache")
	require.NoError(t, c.Warmup(context.Background(), "dslim/bert-base-NER"))
	assert.Equal(t, "dslim/bert-base-NER", got["model"])
	assert.Equal(t, "/models/cache", got["cache_dir"])
}

func TestInferenceClient_Classify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/token-classification", r.URL.Path)
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Priya approved it", req["text"])

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"entity":"B-PER","score":0.97,"start":0,"end":5,"word":"Priya"}]`))
	}))
	defer srv.Close()

	c := client.NewInferenceClient(srv.URL, "")
	preds, err := c.Classify(context.Background(), "dslim/bert-base-NER", "Priya approved it")
	require.NoError(t, err)
	require.Len(t, preds, 1)
	assert.Equal(t, "B-PER", preds[0].Entity)
	assert.Equal(t, 0, preds[0].Start)
	assert.Equal(t, 5, preds[0].End)
	assert.InDelta(t, 0.97, preds[0].Score, 1e-9)
}

func TestInferenceClient_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model exploded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := client.NewInferenceClient(srv.URL, "")
	_, err := c.Classify(context.Background(), "m", "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 500")
}
