package hiro

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aibtcdev/x402-api/internal/config"
	domainerrors "github.com/aibtcdev/x402-api/internal/domain/errors"
)

const testAddress = "SP000000000000000000002Q6VF78"

func newTestClient(url string) *Client {
	return NewClient(config.HiroConfig{BaseURL: url, APIKey: "hiro-key"})
}

func TestClient_Balances(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/extended/v1/address/"+testAddress+"/balances", r.URL.Path)
		assert.Equal(t, "hiro-key", r.Header.Get("x-api-key"))
		w.Write([]byte(`{
			"stx":{"balance":"12345","total_sent":"100","total_received":"12445","locked":"0"},
			"fungible_tokens":{"SP3Y2ZSH8P7D50B0VBTSX11S7XSG24M1VB9YFQA4K.token-aeusdc::aeusdc":{"balance":"500000"}},
			"non_fungible_tokens":{"SP000.punks::punk":{"count":"2"}}
		}`))
	}))
	defer server.Close()

	balances, err := newTestClient(server.URL).Balances(context.Background(), testAddress)
	require.NoError(t, err)
	assert.Equal(t, "12345", balances.STX.Balance)
	assert.Equal(t, "500000", balances.FungibleTokens["SP3Y2ZSH8P7D50B0VBTSX11S7XSG24M1VB9YFQA4K.token-aeusdc::aeusdc"].Balance)
	assert.Equal(t, "2", balances.NonFungibleTokens["SP000.punks::punk"].Count)
}

func TestClient_Names(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/addresses/stacks/"+testAddress, r.URL.Path)
		w.Write([]byte(`{"names":["satoshi.btc"]}`))
	}))
	defer server.Close()

	names, err := newTestClient(server.URL).Names(context.Background(), testAddress)
	require.NoError(t, err)
	assert.Equal(t, []string{"satoshi.btc"}, names)
}

func TestClient_Names_EmptyIsNotNil(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	names, err := newTestClient(server.URL).Names(context.Background(), testAddress)
	require.NoError(t, err)
	assert.NotNil(t, names)
	assert.Empty(t, names)
}

func TestClient_ErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		status int
		want   error
	}{
		{"not found", http.StatusNotFound, domainerrors.ErrNotFound},
		{"bad request", http.StatusBadRequest, domainerrors.ErrInvalidInput},
		{"rate limited", http.StatusTooManyRequests, domainerrors.ErrUpstream},
		{"server error", http.StatusInternalServerError, domainerrors.ErrUpstream},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
			}))
			defer server.Close()

			_, err := newTestClient(server.URL).Balances(context.Background(), testAddress)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestClient_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close()

	_, err := newTestClient(server.URL).Names(context.Background(), testAddress)
	assert.ErrorIs(t, err, domainerrors.ErrUpstream)
}
