package config

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	getter "github.com/hashicorp/go-getter"
	"github.com/pelletier/go-toml/v2"

	"github.com/skalenetwork/portal-sub000/portal/chain"
	"github.com/skalenetwork/portal-sub000/portal/models"
)

const defaultMainnet = "mainnet"

// ConnectionsLoader loads the connectivity config and converts it to the catalog and token
// types used by the graph and the actions.
type ConnectionsLoader struct {
	fetchTimeout time.Duration
}

// NewConnectionsLoader creates a new connectivity config loader.
func NewConnectionsLoader() *ConnectionsLoader {
	return &ConnectionsLoader{fetchTimeout: 60 * time.Second}
}

// Load reads the config from a local path or, for anything go-getter can detect
// (https://, git::, s3::, github.com/...), downloads it first.
func (l *ConnectionsLoader) Load(source string) (*ConnectionsConfig, error) {
	if _, err := os.Stat(source); err == nil {
		return l.LoadFromFile(source)
	}

	dir, err := os.MkdirTemp("", "portal-connections-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create download dir: %w", err)
	}
	defer os.RemoveAll(dir)

	dst := filepath.Join(dir, fileNameOf(source))
	if err := l.fetch(source, dst); err != nil {
		return nil, err
	}
	return l.LoadFromFile(dst)
}

func (l *ConnectionsLoader) fetch(source, dst string) error {
	ctx, cancel := context.WithTimeout(context.Background(), l.fetchTimeout)
	defer cancel()

	client := getter.Client{
		Ctx:  ctx,
		Src:  source,
		Dst:  dst,
		Mode: getter.ClientModeFile,
	}
	if err := client.Get(); err != nil {
		return fmt.Errorf("failed to download connections config from %s: %w", source, err)
	}
	return nil
}

// fileNameOf keeps the extension of the source so the format can still be detected.
func fileNameOf(source string) string {
	clean := source
	if i := strings.IndexAny(clean, "?#"); i >= 0 {
		clean = clean[:i]
	}
	if strings.HasSuffix(clean, ".json") {
		return "connections.json"
	}
	return "connections.toml"
}

// LoadFromFile parses a TOML or JSON (by extension) connectivity config.
func (l *ConnectionsLoader) LoadFromFile(filePath string) (*ConnectionsConfig, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read connections config file: %w", err)
	}

	var cfg ConnectionsConfig
	if strings.HasSuffix(filePath, ".json") {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	} else {
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse TOML config: %w", err)
		}
	}
	if cfg.Mainnet == "" {
		cfg.Mainnet = defaultMainnet
	}
	return &cfg, nil
}

// ConvertToCatalog converts the chain section to a chain catalog.
func (l *ConnectionsLoader) ConvertToCatalog(cfg *ConnectionsConfig) (*chain.Catalog, error) {
	if cfg == nil || len(cfg.Chains) == 0 {
		return nil, fmt.Errorf("no chains in config")
	}

	infos := make([]chain.Info, len(cfg.Chains))
	for i, c := range cfg.Chains {
		infos[i] = chain.Info{
			Name:     c.Name,
			ChainID:  big.NewInt(c.ChainID),
			RPCs:     c.RPCs,
			Explorer: c.Explorer,
			Contracts: chain.Contracts{
				DepositBoxEth:          hexAddress(c.Contracts.DepositBoxEth),
				DepositBoxERC20:        hexAddress(c.Contracts.DepositBoxERC20),
				DepositBoxERC721:       hexAddress(c.Contracts.DepositBoxERC721),
				DepositBoxERC721Meta:   hexAddress(c.Contracts.DepositBoxERC721Meta),
				DepositBoxERC1155:      hexAddress(c.Contracts.DepositBoxERC1155),
				CommunityPool:          hexAddress(c.Contracts.CommunityPool),
				TokenManagerEth:        hexAddress(c.Contracts.TokenManagerEth),
				TokenManagerERC20:      hexAddress(c.Contracts.TokenManagerERC20),
				TokenManagerERC721:     hexAddress(c.Contracts.TokenManagerERC721),
				TokenManagerERC721Meta: hexAddress(c.Contracts.TokenManagerERC721Meta),
				TokenManagerERC1155:    hexAddress(c.Contracts.TokenManagerERC1155),
				CommunityLocker:        hexAddress(c.Contracts.CommunityLocker),
				EthERC20:               hexAddress(c.Contracts.EthERC20),
			},
		}
	}
	return chain.NewCatalog(cfg.Mainnet, infos), nil
}

// ConvertToTokens converts the token section to immutable token values.
func (l *ConnectionsLoader) ConvertToTokens(cfg *ConnectionsConfig) ([]models.Token, error) {
	if cfg == nil || len(cfg.Tokens) == 0 {
		return nil, fmt.Errorf("no tokens in config")
	}

	tokens := make([]models.Token, len(cfg.Tokens))
	for i, t := range cfg.Tokens {
		tokens[i] = models.Token{
			Keyname:     t.Keyname,
			Type:        models.TokenType(t.Type),
			OriginChain: t.OriginChain,
			Symbol:      t.Symbol,
			Name:        t.Name,
			Decimals:    t.Decimals,
			IconURL:     t.Icon,
			Connections: make(map[string]models.Connection, len(t.Connections)),
		}
		for _, c := range t.Connections {
			conn := models.Connection{
				Address: hexAddress(c.Address),
				Clone:   c.Clone,
				Hubs:    c.Hubs,
			}
			if c.Wrapper != "" {
				wrapper := common.HexToAddress(c.Wrapper)
				conn.Wrapper = &wrapper
			}
			tokens[i].Connections[c.Chain] = conn
		}
	}
	return tokens, nil
}

func hexAddress(s string) common.Address {
	if s == "" {
		return common.Address{}
	}
	return common.HexToAddress(s)
}
