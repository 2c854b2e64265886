package config_test

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/zeebo/assert"

	"github.com/skalenetwork/portal-sub000/portal/config"
	"github.com/skalenetwork/portal-sub000/portal/models"
)

const fixture = "testdata/connections.toml"

func TestConnectionsLoader_LoadFromFile(t *testing.T) {
	loader := config.NewConnectionsLoader()
	cfg, err := loader.LoadFromFile(fixture)
	assert.NoError(t, err)

	assert.Equal(t, cfg.Mainnet, "mainnet")
	assert.Equal(t, len(cfg.Chains), 3)
	assert.Equal(t, len(cfg.Tokens), 2)

	usdc := cfg.Tokens[1]
	assert.Equal(t, usdc.Keyname, "usdc")
	assert.Equal(t, usdc.Decimals, int32(6))
	assert.Equal(t, len(usdc.Connections), 3)
	assert.Equal(t, usdc.Connections[2].Hubs["mainnet"], "europa")
}

func TestConnectionsLoader_LoadFromJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "connections.json")
	content := `{
		"chains": [{"name": "mainnet", "chain_id": 1, "rpcs": ["https://mainnet.example"]}],
		"tokens": [{"keyname": "eth", "type": "eth", "origin_chain": "mainnet", "decimals": 18,
			"connections": [{"chain": "mainnet"}]}]
	}`
	assert.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := config.NewConnectionsLoader().LoadFromFile(path)
	assert.NoError(t, err)
	assert.Equal(t, cfg.Mainnet, "mainnet")
	assert.Equal(t, cfg.Tokens[0].Keyname, "eth")
}

func TestConnectionsLoader_LoadMissingFile(t *testing.T) {
	_, err := config.NewConnectionsLoader().LoadFromFile(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestConnectionsLoader_LoadRemote(t *testing.T) {
	data, err := os.ReadFile(fixture)
	assert.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(data)
	}))
	defer srv.Close()

	cfg, err := config.NewConnectionsLoader().Load(srv.URL + "/connections.toml")
	assert.NoError(t, err)
	assert.Equal(t, len(cfg.Chains), 3)
}

func TestConnectionsLoader_Convert(t *testing.T) {
	loader := config.NewConnectionsLoader()
	cfg, err := loader.LoadFromFile(fixture)
	assert.NoError(t, err)

	catalog, err := loader.ConvertToCatalog(cfg)
	assert.NoError(t, err)
	assert.True(t, catalog.IsMainnet("mainnet"))

	europa, err := catalog.Chain("europa")
	assert.NoError(t, err)
	assert.Equal(t, europa.ChainID.Int64(), int64(2046399126))
	assert.Equal(t, europa.Contracts.TokenManagerERC20,
		common.HexToAddress("0xD2aAA00500000000000000000000000000000000"))

	tokens, err := loader.ConvertToTokens(cfg)
	assert.NoError(t, err)
	assert.Equal(t, len(tokens), 2)

	usdc := tokens[1]
	assert.Equal(t, usdc.Type, models.TokenTypeERC20)
	onA, ok := usdc.Connection("chain-a")
	assert.True(t, ok)
	assert.True(t, onA.Clone)
	assert.True(t, onA.HasWrapper())
	assert.Equal(t, onA.HubFor("mainnet"), "europa")

	onMainnet, ok := usdc.Connection("mainnet")
	assert.True(t, ok)
	assert.False(t, onMainnet.Clone)
	assert.False(t, onMainnet.HasWrapper())
}

func TestConnectionsLoader_ConvertEmpty(t *testing.T) {
	loader := config.NewConnectionsLoader()
	_, err := loader.ConvertToCatalog(&config.ConnectionsConfig{})
	assert.Error(t, err)
	_, err = loader.ConvertToTokens(&config.ConnectionsConfig{})
	assert.Error(t, err)
}
