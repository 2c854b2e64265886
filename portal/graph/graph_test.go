package graph_test

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/zeebo/assert"

	"github.com/skalenetwork/portal-sub000/portal/graph"
	"github.com/skalenetwork/portal-sub000/portal/models"
)

var (
	usdcMainnet = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	usdcEuropa  = common.HexToAddress("0x5F795bb52dAC3085f578f4877D450e2929D2F13d")
	usdcChainA  = common.HexToAddress("0x7Cf76E740Cb4C9D9e5E5f3b7DB1f1F7e7D4C1a20")
	usdcWrapper = common.HexToAddress("0x1c0a9b4dc8D1E0A7fC0e3f5A2D9b8e6C4a1B2c3D")
	skl         = common.HexToAddress("0x00c83aeCC790e8a4453e5dD3B0B4b3680501a7A7")
)

var chains = []string{"mainnet", "europa", "chain-a", "chain-b"}

func tokens() []models.Token {
	return []models.Token{
		{
			Keyname:     "eth",
			Type:        models.TokenTypeEth,
			OriginChain: "mainnet",
			Symbol:      "ETH",
			Decimals:    18,
			Connections: map[string]models.Connection{
				"mainnet": {},
				"chain-a": {Address: common.HexToAddress("0xD2Aaa00700000000000000000000000000000000"), Clone: true},
				"chain-b": {Address: common.HexToAddress("0xD2Aaa00700000000000000000000000000000000"), Clone: true},
			},
		},
		{
			Keyname:     "usdc",
			Type:        models.TokenTypeERC20,
			OriginChain: "mainnet",
			Symbol:      "USDC",
			Decimals:    6,
			Connections: map[string]models.Connection{
				"mainnet": {Address: usdcMainnet},
				"europa":  {Address: usdcEuropa, Clone: true},
				"chain-a": {
					Address: usdcChainA,
					Clone:   true,
					Wrapper: &usdcWrapper,
					Hubs:    map[string]string{"mainnet": "europa"},
				},
			},
		},
		{
			Keyname:     "skl",
			Type:        models.TokenTypeERC20,
			OriginChain: "europa",
			Symbol:      "SKL",
			Decimals:    18,
			Connections: map[string]models.Connection{
				"europa":  {Address: skl},
				"chain-b": {Address: common.HexToAddress("0x02"), Clone: true},
			},
		},
	}
}

func newGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g, err := graph.New("mainnet", chains, tokens())
	assert.NoError(t, err)
	return g
}

func TestNew_UnknownChain(t *testing.T) {
	_, err := graph.New("mainnet", []string{"mainnet"}, tokens())
	assert.True(t, errors.Is(err, graph.ErrChainNotFound))
}

func TestTokensFor(t *testing.T) {
	g := newGraph(t)

	all, err := g.TokensFor("chain-a", "")
	assert.NoError(t, err)
	assert.Equal(t, len(all), 2)

	filtered, err := g.TokensFor("chain-b", "europa")
	assert.NoError(t, err)
	assert.Equal(t, len(filtered), 1)
	_, ok := filtered["skl"]
	assert.True(t, ok)

	_, err = g.TokensFor("chain-z", "")
	assert.True(t, errors.Is(err, graph.ErrChainNotFound))
}

func TestTokensFor_ReturnsCopies(t *testing.T) {
	g := newGraph(t)

	first, err := g.TokensFor("chain-a", "")
	assert.NoError(t, err)
	usdc := first["usdc"]
	usdc.Connections["chain-a"].Hubs["mainnet"] = "chain-b"
	*usdc.Connections["chain-a"].Wrapper = common.Address{}

	again, err := g.Token("usdc")
	assert.NoError(t, err)
	conn, _ := again.Connection("chain-a")
	assert.Equal(t, conn.HubFor("mainnet"), "europa")
	assert.Equal(t, *conn.Wrapper, usdcWrapper)
}

func TestWrappedTokensFor(t *testing.T) {
	g := newGraph(t)

	wrapped, err := g.WrappedTokensFor("chain-a")
	assert.NoError(t, err)
	assert.Equal(t, len(wrapped), 1)
	_, ok := wrapped["usdc"]
	assert.True(t, ok)

	none, err := g.WrappedTokensFor("mainnet")
	assert.NoError(t, err)
	assert.Equal(t, len(none), 0)
}

func TestOriginAddress(t *testing.T) {
	g := newGraph(t)

	tests := []struct {
		name    string
		chainA  string
		chainB  string
		keyname string
		want    common.Address
		err     error
	}{
		{name: "clone resolves to origin", chainA: "chain-a", chainB: "mainnet", keyname: "usdc", want: usdcMainnet},
		{name: "origin resolves to itself", chainA: "mainnet", chainB: "europa", keyname: "usdc", want: usdcMainnet},
		{name: "clone with non-mainnet origin", chainA: "chain-b", chainB: "europa", keyname: "skl", want: skl},
		{name: "unknown token", chainA: "mainnet", chainB: "europa", keyname: "dai", err: graph.ErrTokenNotFound},
		{name: "token missing on destination", chainA: "europa", chainB: "chain-a", keyname: "skl", err: graph.ErrTokenNotFound},
		{name: "unknown chain", chainA: "chain-z", chainB: "mainnet", keyname: "usdc", err: graph.ErrChainNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := g.OriginAddress(tt.chainA, tt.chainB, tt.keyname)
			if tt.err != nil {
				assert.True(t, errors.Is(err, tt.err))
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, got, tt.want)
		})
	}
}

func TestChains(t *testing.T) {
	g := newGraph(t)
	assert.DeepEqual(t, g.Chains(), []string{"chain-a", "chain-b", "europa", "mainnet"})
}

func TestOriginAddress_WrappedOrigin(t *testing.T) {
	wrapper := common.HexToAddress("0x77")
	g, err := graph.New("mainnet", []string{"mainnet", "chain-a"}, []models.Token{{
		Keyname:     "sfuel",
		Type:        models.TokenTypeERC20,
		OriginChain: "chain-a",
		Connections: map[string]models.Connection{
			"chain-a": {Address: common.HexToAddress("0x76"), Wrapper: &wrapper},
			"mainnet": {Address: common.HexToAddress("0x78"), Clone: true},
		},
	}})
	assert.NoError(t, err)

	got, err := g.OriginAddress("chain-a", "mainnet", "sfuel")
	assert.NoError(t, err)
	assert.Equal(t, got, wrapper)

	got, err = g.OriginAddress("mainnet", "chain-a", "sfuel")
	assert.NoError(t, err)
	assert.Equal(t, got, wrapper)
}
