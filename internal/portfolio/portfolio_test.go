package portfolio_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/medashooter/gateway/internal/events"
	"github.com/medashooter/gateway/internal/portfolio"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) (*portfolio.Provider, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	emitter := events.NewEmitter(zap.NewNop().Sugar())
	return portfolio.NewProvider(srv.URL, "test-key", http.DefaultClient, emitter, zap.NewNop().Sugar()), srv
}

func TestERC20PortfolioComputesBalanceAndTotalExcludingFailedPrices(t *testing.T) {
	var sawAPIKey string
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		sawAPIKey = r.Header.Get("X-API-KEY")
		switch {
		case r.URL.Path == "/api/v1/wallets/0xabc/erc20":
			w.Write([]byte(`{"tokens":[
				{"address":"0x1","name":"Mana","symbol":"MANA","logo":"","decimals":18,"balance_wei":"2000000000000000000"},
				{"address":"0x2","name":"Gold","symbol":"GOLD","logo":"","decimals":18,"balance_wei":"1000000000000000000"}
			]}`))
		case r.URL.Path == "/api/v1/tokens/0x1/price":
			w.Write([]byte(`{"usd_price":2.5}`))
		case r.URL.Path == "/api/v1/tokens/0x2/price":
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`price unavailable`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	out, err := p.ERC20Portfolio(t.Context(), "0xabc", "polygon")
	require.NoError(t, err)
	assert.Equal(t, "test-key", sawAPIKey)
	assert.Equal(t, 2, out.TotalTokens)
	require.Len(t, out.Tokens, 2)

	mana := out.Tokens[0]
	assert.Equal(t, 2.0, mana.Balance)
	require.NotNil(t, mana.USDValue)
	assert.Equal(t, 5.0, *mana.USDValue)

	gold := out.Tokens[1]
	assert.Nil(t, gold.USDPrice)
	assert.Nil(t, gold.USDValue)

	assert.Equal(t, 5.0, out.TotalUSDValue, "gold's failed price lookup must not contribute to the total")
}

func TestERC20PortfolioReadsThroughHotCache(t *testing.T) {
	calls := 0
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/wallets/0xabc/erc20" {
			calls++
		}
		w.Write([]byte(`{"tokens":[]}`))
	})

	_, err := p.ERC20Portfolio(t.Context(), "0xabc", "polygon")
	require.NoError(t, err)
	_, err = p.ERC20Portfolio(t.Context(), "0xabc", "polygon")
	require.NoError(t, err)
	assert.Equal(t, 1, calls, "second call within the TTL should be served from cache")
}

func TestNFTCollectionsGroupsByContractAndFallsBackOnBadMetadata(t *testing.T) {
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"nfts":[
			{"contract_address":"0xaaa","contract_name":"Heroes","contract_symbol":"HERO","contract_type":"erc721","token_id":"1","name":"Hero #1","metadata_json":"{\"rarity\":\"epic\"}"},
			{"contract_address":"0xaaa","contract_name":"Heroes","contract_symbol":"HERO","contract_type":"erc721","token_id":"2","name":"Hero #2","metadata_json":"not-json"},
			{"contract_address":"0xbbb","contract_name":"Weapons","contract_symbol":"WPN","contract_type":"erc1155","token_id":"9","name":"Blaster"}
		]}`))
	})

	out, err := p.NFTCollections(t.Context(), "0xabc", "polygon")
	require.NoError(t, err)
	require.Len(t, out.Collections, 2)

	heroes := out.Collections[0]
	assert.Equal(t, "0xaaa", heroes.ContractAddress)
	assert.Equal(t, 2, heroes.TotalCount)
	assert.Equal(t, "epic", heroes.NFTs[0].Metadata["rarity"])
	assert.Empty(t, heroes.NFTs[1].Metadata, "malformed metadata_json must fall back to an empty object, not an error")

	weapons := out.Collections[1]
	assert.Equal(t, 1, weapons.TotalCount)
}

func TestUnauthorizedIsNotRetried(t *testing.T) {
	attempts := 0
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := p.ERC20Portfolio(t.Context(), "0xabc", "polygon")
	require.Error(t, err)
	var unauthorized *portfolio.UnauthorizedError
	require.ErrorAs(t, err, &unauthorized)
	assert.Equal(t, 1, attempts)
}

func TestRateLimitedIsNotRetried(t *testing.T) {
	attempts := 0
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := p.NFTCollections(t.Context(), "0xabc", "polygon")
	require.Error(t, err)
	var rateLimited *portfolio.RateLimitedError
	require.ErrorAs(t, err, &rateLimited)
	assert.Equal(t, "30", rateLimited.RetryAfter)
	assert.Equal(t, 1, attempts)
}

func TestUpstreamErrorIsRetriedThenSurfaced(t *testing.T) {
	attempts := 0
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := p.ERC20Portfolio(t.Context(), "0xabc", "polygon")
	require.Error(t, err)
	var upstream *portfolio.UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, http.StatusBadGateway, upstream.StatusCode)
	assert.Greater(t, attempts, 1, "non-2xx upstream errors should be retried")
}

func TestRefreshPurgesCacheAndReissuesBothCalls(t *testing.T) {
	erc20Calls, nftCalls := 0, 0
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/wallets/0xabc/erc20":
			erc20Calls++
			w.Write([]byte(`{"tokens":[]}`))
		case "/api/v1/wallets/0xabc/nfts":
			nftCalls++
			w.Write([]byte(`{"nfts":[]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	_, err := p.ERC20Portfolio(t.Context(), "0xabc", "polygon")
	require.NoError(t, err)
	_, err = p.NFTCollections(t.Context(), "0xabc", "polygon")
	require.NoError(t, err)
	assert.Equal(t, 1, erc20Calls)
	assert.Equal(t, 1, nftCalls)

	purgedRelated := false
	p.SetPurgeRelated(func(wallet string) {
		purgedRelated = true
		assert.Equal(t, "0xabc", wallet)
	})

	result := p.Refresh(t.Context(), "0xabc", "polygon")
	assert.True(t, result.ERC20Refreshed)
	assert.True(t, result.NFTRefreshed)
	assert.True(t, purgedRelated)
	assert.Equal(t, 2, erc20Calls, "refresh must bypass the cache and re-issue the call")
	assert.Equal(t, 2, nftCalls)
}
