package chainpool

import (
	"context"

	"github.com/ethereum/go-ethereum/ethclient"
)

// DialEthClient is the production Dialer: it opens a real JSON-RPC/WS
// connection via go-ethereum's client.
func DialEthClient(ctx context.Context, url string) (ChainClient, error) {
	return ethclient.DialContext(ctx, url)
}
