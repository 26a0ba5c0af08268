package chaingateway

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Minimal ABIs for the chain-side contracts of spec.md §6. These are not
// full ERC-721/1155/20 surfaces — only the read methods the Contract
// Gateway calls.

const heroABIJSON = `[
	{"name":"tokensOfOwner","type":"function","stateMutability":"view",
	 "inputs":[{"name":"owner","type":"address"}],
	 "outputs":[{"name":"","type":"uint256[]"}]},
	{"name":"getAttribs","type":"function","stateMutability":"view",
	 "inputs":[{"name":"id","type":"uint256"}],
	 "outputs":[{"name":"sec","type":"uint256"},{"name":"ano","type":"uint256"},{"name":"inn","type":"uint256"}]},
	{"name":"getTokenInfo","type":"function","stateMutability":"view",
	 "inputs":[{"name":"id","type":"uint256"}],
	 "outputs":[{"name":"seasonCardId","type":"uint256"},{"name":"serialNumber","type":"uint256"}]}
]`

const weaponABIJSON = `[
	{"name":"tokensOfOwner","type":"function","stateMutability":"view",
	 "inputs":[{"name":"owner","type":"address"}],
	 "outputs":[{"name":"","type":"uint256[]"}]},
	{"name":"getAttribs","type":"function","stateMutability":"view",
	 "inputs":[{"name":"id","type":"uint256"}],
	 "outputs":[{"name":"security","type":"uint256"},{"name":"anonymity","type":"uint256"},{"name":"innovation","type":"uint256"}]},
	{"name":"getTokenInfo","type":"function","stateMutability":"view",
	 "inputs":[{"name":"id","type":"uint256"}],
	 "outputs":[
		{"name":"weaponTier","type":"uint256"},
		{"name":"weaponType","type":"uint256"},
		{"name":"weaponSubtype","type":"uint256"},
		{"name":"category","type":"uint256"},
		{"name":"serialNumber","type":"uint256"}]}
]`

const erc1155ABIJSON = `[
	{"name":"balanceOfBatch","type":"function","stateMutability":"view",
	 "inputs":[{"name":"owners","type":"address[]"},{"name":"ids","type":"uint256[]"}],
	 "outputs":[{"name":"","type":"uint256[]"}]}
]`

const erc20ABIJSON = `[
	{"name":"balanceOf","type":"function","stateMutability":"view",
	 "inputs":[{"name":"owner","type":"address"}],
	 "outputs":[{"name":"","type":"uint256"}]}
]`

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic("chaingateway: invalid embedded ABI: " + err.Error())
	}
	return parsed
}

var (
	heroABI    = mustParseABI(heroABIJSON)
	weaponABI  = mustParseABI(weaponABIJSON)
	erc1155ABI = mustParseABI(erc1155ABIJSON)
	erc20ABI   = mustParseABI(erc20ABIJSON)
)
