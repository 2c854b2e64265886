package router_test

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/zeebo/assert"

	"github.com/skalenetwork/portal-sub000/portal/models"
	"github.com/skalenetwork/portal-sub000/portal/router"
)

func addr(s string) *common.Address {
	a := common.HexToAddress(s)
	return &a
}

var (
	eth = models.Token{
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
	}

	// usdc is wrapped on chain-a and on mainnet, no hub
	usdc = models.Token{
		Keyname:     "usdc",
		Type:        models.TokenTypeERC20,
		OriginChain: "mainnet",
		Symbol:      "USDC",
		Decimals:    6,
		Connections: map[string]models.Connection{
			"mainnet": {Address: common.HexToAddress("0x10"), Wrapper: addr("0x11")},
			"chain-a": {Address: common.HexToAddress("0x12"), Clone: true, Wrapper: addr("0x13")},
		},
	}

	// skl routes chain-a -> chain-b through the europa hub
	skl = models.Token{
		Keyname:     "skl",
		Type:        models.TokenTypeERC20,
		OriginChain: "mainnet",
		Symbol:      "SKL",
		Decimals:    18,
		Connections: map[string]models.Connection{
			"mainnet": {Address: common.HexToAddress("0x20")},
			"europa":  {Address: common.HexToAddress("0x21"), Clone: true, Wrapper: addr("0x22")},
			"chain-a": {
				Address: common.HexToAddress("0x23"),
				Clone:   true,
				Wrapper: addr("0x24"),
				Hubs:    map[string]string{"chain-b": "europa"},
			},
			"chain-b": {Address: common.HexToAddress("0x25"), Clone: true},
		},
	}

	nft = models.Token{
		Keyname:     "punks",
		Type:        models.TokenTypeERC721Meta,
		OriginChain: "mainnet",
		Connections: map[string]models.Connection{
			"mainnet": {Address: common.HexToAddress("0x30")},
			"chain-a": {Address: common.HexToAddress("0x31"), Clone: true},
		},
	}
)

func types(steps []models.StepMetadata) []models.ActionType {
	out := make([]models.ActionType, len(steps))
	for i, s := range steps {
		out[i] = s.Type
	}
	return out
}

func TestActionTypeFor(t *testing.T) {
	assert.Equal(t, router.ActionTypeFor(models.TokenTypeEth, "mainnet", "chain-a", "mainnet"), models.ActionEthM2S)
	assert.Equal(t, router.ActionTypeFor(models.TokenTypeERC20, "chain-a", "mainnet", "mainnet"), models.ActionERC20S2M)
	assert.Equal(t, router.ActionTypeFor(models.TokenTypeERC1155, "chain-a", "chain-b", "mainnet"), models.ActionERC1155S2S)
	assert.Equal(t, router.ActionTypeFor(models.TokenTypeERC721Meta, "mainnet", "chain-b", "mainnet"), models.ActionERC721MetaM2S)
}

func TestPlan_WrapTransferUnwrap(t *testing.T) {
	p := router.NewPlanner("mainnet")
	steps := p.Plan(usdc, "chain-a", "mainnet")

	assert.DeepEqual(t, types(steps), []models.ActionType{
		models.ActionWrap, models.ActionERC20S2M, models.ActionUnwrap,
	})
	for _, s := range steps {
		assert.Equal(t, s.From, "chain-a")
		assert.Equal(t, s.To, "mainnet")
	}
	assert.Equal(t, steps[0].SigningChain(), "chain-a")
	assert.Equal(t, steps[1].SigningChain(), "chain-a")
	assert.Equal(t, steps[2].SigningChain(), "mainnet")
}

func TestPlan_NativeDeposit(t *testing.T) {
	p := router.NewPlanner("mainnet")
	steps := p.Plan(eth, "mainnet", "chain-b")
	assert.Equal(t, len(steps), 1)
	assert.Equal(t, steps[0].Type, models.ActionEthM2S)
	assert.True(t, steps[0].OnSource)
}

func TestPlan_NativeExitUnlocks(t *testing.T) {
	p := router.NewPlanner("mainnet")
	steps := p.Plan(eth, "chain-a", "mainnet")
	assert.DeepEqual(t, types(steps), []models.ActionType{models.ActionEthS2M, models.ActionUnlock})
	assert.Equal(t, steps[1].SigningChain(), "mainnet")
}

func TestPlan_NativeBetweenChains(t *testing.T) {
	p := router.NewPlanner("mainnet")
	steps := p.Plan(eth, "chain-a", "chain-b")
	assert.DeepEqual(t, types(steps), []models.ActionType{models.ActionEthS2S})
}

func TestPlan_HubRouting(t *testing.T) {
	p := router.NewPlanner("mainnet")
	steps := p.Plan(skl, "chain-a", "chain-b")

	// chain-a -> europa is clone-to-clone, the token stays wrapped and is not wrapped again on europa
	assert.DeepEqual(t, types(steps), []models.ActionType{
		models.ActionWrap, models.ActionERC20S2S, models.ActionERC20S2S,
	})
	assert.Equal(t, steps[1].To, "europa")
	assert.Equal(t, steps[2].From, "europa")
	assert.Equal(t, steps[2].To, "chain-b")
}

func TestPlan_NFT(t *testing.T) {
	p := router.NewPlanner("mainnet")
	assert.DeepEqual(t, types(p.Plan(nft, "chain-a", "mainnet")), []models.ActionType{models.ActionERC721MetaS2M})
	assert.DeepEqual(t, types(p.Plan(nft, "mainnet", "chain-a")), []models.ActionType{models.ActionERC721MetaM2S})
}

func TestPlan_Empty(t *testing.T) {
	p := router.NewPlanner("mainnet")
	assert.Equal(t, len(p.Plan(models.Token{}, "chain-a", "mainnet")), 0)
	assert.Equal(t, len(p.Plan(usdc, "chain-a", "")), 0)
	assert.Equal(t, len(p.Plan(usdc, "chain-z", "mainnet")), 0)
}

func TestPlan_Properties(t *testing.T) {
	p := router.NewPlanner("mainnet")
	tokens := []models.Token{eth, usdc, skl, nft}
	chains := []string{"mainnet", "europa", "chain-a", "chain-b"}

	for _, token := range tokens {
		for _, from := range chains {
			for _, to := range chains {
				if !token.ConnectedTo(from) || !token.ConnectedTo(to) {
					continue
				}
				first := p.Plan(token, from, to)
				second := p.Plan(token, from, to)
				assert.DeepEqual(t, first, second)

				transfers := 0
				for i, s := range first {
					if i > 0 && s.Type == models.ActionWrap {
						assert.True(t, first[i-1].Type != models.ActionWrap)
					}
					if s.Type == models.ActionUnwrap {
						assert.True(t, i > 0)
					}
					if s.Type != models.ActionWrap && s.Type != models.ActionUnwrap && s.Type != models.ActionUnlock {
						transfers++
					}
				}
				if from != to {
					assert.True(t, transfers >= 1)
				}
			}
		}
	}
}

func TestPlan_DirectWithoutWrappers(t *testing.T) {
	p := router.NewPlanner("mainnet")
	token := models.Token{
		Keyname:     "dai",
		Type:        models.TokenTypeERC20,
		OriginChain: "mainnet",
		Connections: map[string]models.Connection{
			"mainnet": {Address: common.HexToAddress("0x40")},
			"chain-b": {Address: common.HexToAddress("0x41"), Clone: true},
		},
	}
	steps := p.Plan(token, "chain-b", "mainnet")
	assert.Equal(t, len(steps), 1)
	assert.Equal(t, steps[0].Type, models.ActionERC20S2M)
}
