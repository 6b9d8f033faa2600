package opensearch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	opensearchgo "github.com/opensearch-project/opensearch-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opentenancy/caseintel/internal/config"
	"github.com/opentenancy/caseintel/internal/infrastructure/monitoring/logging"
	pkgerrors "github.com/opentenancy/caseintel/pkg/errors"
)

// newTestSearchClient wires a Client against a fake cluster without the
// startup ping or background health loop.
func newTestSearchClient(t *testing.T, serverURL string) *Client {
	t.Helper()
	osClient, err := opensearchgo.NewClient(opensearchgo.Config{Addresses: []string{serverURL}})
	require.NoError(t, err)

	c := &Client{
		client: osClient,
		index:  DefaultIndex,
		logger: logging.NewNopLogger(),
		cancel: func() {},
	}
	c.healthy.Store(true)
	return c
}

func TestNewClient_RequiresAddresses(t *testing.T) {
	_, err := NewClient(config.OpenSearchConfig{}, nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeValidation))
}

func TestNewClient_ConnectsAndPings(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"cluster_name":"test"}`))
	}))
	defer server.Close()

	c, err := NewClient(config.OpenSearchConfig{
		Addresses: []string{server.URL},
		Index:     "caseintel-documents",
	}, nil)
	require.NoError(t, err)
	defer c.Close()

	assert.True(t, c.IsHealthy())
	assert.Equal(t, "caseintel-documents", c.Index())
}

func TestNewClient_DefaultsIndexName(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c, err := NewClient(config.OpenSearchConfig{Addresses: []string{server.URL}}, nil)
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, DefaultIndex, c.Index())
}

func TestNewClient_UnreachableCluster(t *testing.T) {
	_, err := NewClient(config.OpenSearchConfig{
		Addresses: []string{"http://127.0.0.1:1"},
	}, nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeSearchUnavailable))
}

func TestPing_TracksHealth(t *testing.T) {
	failing := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failing {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := newTestSearchClient(t, server.URL)

	require.NoError(t, c.Ping(context.Background()))
	assert.True(t, c.IsHealthy())

	failing = true
	err := c.Ping(context.Background())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeSearchUnavailable))
	assert.False(t, c.IsHealthy())
}
