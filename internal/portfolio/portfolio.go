package portfolio

import (
	"context"
	"encoding/json"
	"math/big"
	"net/url"
	"time"
)

// ERC20Portfolio returns wallet's ERC-20 holdings on chain, reading through
// a 5-minute Hot Cache entry keyed by (wallet, chain). Per-token USD price
// comes from a secondary indexer call; a price failure yields a nil price
// for that token and excludes it from TotalUSDValue rather than failing
// the whole call.
func (p *Provider) ERC20Portfolio(ctx context.Context, wallet, chain string) (ERC20Portfolio, error) {
	key := cacheKey(wallet, chain)
	if cached, ok := p.erc20Cache.Get(key); ok {
		return cached, nil
	}

	raw, err := p.doGet(ctx, "/api/v1/wallets/"+wallet+"/erc20", url.Values{"chain": {chain}})
	if err != nil {
		return ERC20Portfolio{}, err
	}
	var resp indexerERC20Response
	if err := p.decodeJSON(raw, &resp); err != nil {
		return ERC20Portfolio{}, err
	}

	out := ERC20Portfolio{
		Wallet:      wallet,
		Chain:       chain,
		Tokens:      make([]Token, 0, len(resp.Tokens)),
		LastUpdated: time.Now().UTC().Format(time.RFC3339),
	}
	for _, t := range resp.Tokens {
		token := Token{
			Address:    t.Address,
			Name:       t.Name,
			Symbol:     t.Symbol,
			Logo:       t.Logo,
			Decimals:   t.Decimals,
			BalanceWei: t.BalanceWei,
			Balance:    balanceFromWei(t.BalanceWei, t.Decimals),
		}
		if price, priceErr := p.tokenUSDPrice(ctx, chain, t.Address); priceErr == nil {
			token.USDPrice = price
			if price != nil {
				value := *price * token.Balance
				token.USDValue = &value
				out.TotalUSDValue += value
			}
		} else {
			p.log.Warnw("indexer token price lookup failed, excluding from total", "chain", chain, "token", t.Address, "error", priceErr)
		}
		out.Tokens = append(out.Tokens, token)
	}
	out.TotalTokens = len(out.Tokens)

	p.erc20Cache.Set(key, out)
	return out, nil
}

// tokenUSDPrice is the secondary indexer call backing each token's
// usd_price field.
func (p *Provider) tokenUSDPrice(ctx context.Context, chain, tokenAddress string) (*float64, error) {
	raw, err := p.doGet(ctx, "/api/v1/tokens/"+tokenAddress+"/price", url.Values{"chain": {chain}})
	if err != nil {
		return nil, err
	}
	var resp indexerTokenPriceResponse
	if err := p.decodeJSON(raw, &resp); err != nil {
		return nil, err
	}
	return resp.USDPrice, nil
}

// balanceFromWei converts a base-10 wei string to a human-scaled float,
// balance = balance_wei / 10^decimals. An unparseable wei string yields 0
// rather than failing the whole token entry.
func balanceFromWei(weiStr string, decimals int) float64 {
	wei, ok := new(big.Int).SetString(weiStr, 10)
	if !ok {
		return 0
	}
	scale := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	result := new(big.Float).Quo(new(big.Float).SetInt(wei), scale)
	f, _ := result.Float64()
	return f
}

// NFTCollections returns wallet's NFTs on chain grouped by contract
// address, reading through the same 5-minute Hot Cache.
func (p *Provider) NFTCollections(ctx context.Context, wallet, chain string) (NFTCollectionsResponse, error) {
	key := cacheKey(wallet, chain)
	if cached, ok := p.nftCache.Get(key); ok {
		return cached, nil
	}

	raw, err := p.doGet(ctx, "/api/v1/wallets/"+wallet+"/nfts", url.Values{"chain": {chain}})
	if err != nil {
		return NFTCollectionsResponse{}, err
	}
	var resp indexerNFTResponse
	if err := p.decodeJSON(raw, &resp); err != nil {
		return NFTCollectionsResponse{}, err
	}

	byContract := make(map[string]*NFTCollection)
	order := make([]string, 0)
	for _, n := range resp.NFTs {
		coll, ok := byContract[n.ContractAddress]
		if !ok {
			coll = &NFTCollection{
				ContractAddress: n.ContractAddress,
				Name:            n.ContractName,
				Symbol:          n.ContractSymbol,
				ContractType:    n.ContractType,
			}
			byContract[n.ContractAddress] = coll
			order = append(order, n.ContractAddress)
		}
		coll.NFTs = append(coll.NFTs, NFTItem{
			TokenID:  n.TokenID,
			Name:     n.Name,
			ImageURL: n.ImageURL,
			Metadata: p.parseMetadata(n.MetadataJSON),
		})
		coll.TotalCount++
	}

	out := NFTCollectionsResponse{Wallet: wallet, Chain: chain}
	for _, addr := range order {
		out.Collections = append(out.Collections, *byContract[addr])
	}

	p.nftCache.Set(key, out)
	return out, nil
}

// parseMetadata decodes a JSON-encoded metadata string once; a parse
// failure yields an empty metadata object rather than failing the NFT
// entry, per spec.md §4.6.
func (p *Provider) parseMetadata(raw string) map[string]any {
	if raw == "" {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		p.log.Warnw("nft metadata_json parse failed, using empty metadata", "error", err)
		return map[string]any{}
	}
	return m
}

// Refresh purges the cached (wallet, chain) entries for both operations —
// plus any related Contract Gateway entries wired via SetPurgeRelated —
// then re-issues both calls. Each operation's success or failure is
// reported independently; one failing does not prevent the other from
// being attempted.
func (p *Provider) Refresh(ctx context.Context, wallet, chain string) RefreshResult {
	key := cacheKey(wallet, chain)
	p.erc20Cache.Purge(key)
	p.nftCache.Purge(key)
	if p.purgeRelated != nil {
		p.purgeRelated(wallet)
	}

	var result RefreshResult
	if _, err := p.ERC20Portfolio(ctx, wallet, chain); err != nil {
		result.ERC20Error = err
	} else {
		result.ERC20Refreshed = true
	}
	if _, err := p.NFTCollections(ctx, wallet, chain); err != nil {
		result.NFTError = err
	} else {
		result.NFTRefreshed = true
	}
	return result
}
