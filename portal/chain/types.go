package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Client is the read and receipt surface the orchestrator needs from a chain.
// Implementations must be safe for concurrent reads.
type Client interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, account common.Address) (*big.Int, error)
	CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error)
	// WaitMined blocks until the transaction is included and returns its receipt.
	WaitMined(ctx context.Context, hash common.Hash) (*Receipt, error)
}

// Receipt is the subset of a transaction receipt surfaced in progress events.
type Receipt struct {
	Hash        common.Hash
	BlockNumber uint64
	// Timestamp of the including block, unix seconds.
	Timestamp uint64
	Status    uint64
}

// Succeeded reports whether the transaction did not revert.
func (r *Receipt) Succeeded() bool {
	return r.Status == 1
}

// Provider resolves a chain name to its client.
type Provider interface {
	Client(name string) (Client, error)
}

// Contracts are the bridge contract addresses deployed on one chain. Mainnet carries the
// deposit boxes and the community pool, bridge chains carry the token managers and the locker.
type Contracts struct {
	DepositBoxEth        common.Address
	DepositBoxERC20      common.Address
	DepositBoxERC721     common.Address
	DepositBoxERC721Meta common.Address
	DepositBoxERC1155    common.Address
	CommunityPool        common.Address

	TokenManagerEth        common.Address
	TokenManagerERC20      common.Address
	TokenManagerERC721     common.Address
	TokenManagerERC721Meta common.Address
	TokenManagerERC1155    common.Address
	CommunityLocker        common.Address
	// EthERC20 is the chain-local ERC20 representation of mainnet ETH.
	EthERC20 common.Address
}

// Info is the catalog entry of one chain.
type Info struct {
	Name      string
	ChainID   *big.Int
	RPCs      []string
	Explorer  string
	Contracts Contracts
}

// Catalog is a read-only lookup of chain metadata keyed by name.
type Catalog struct {
	mainnet string
	chains  map[string]Info
}

// NewCatalog builds a catalog. mainnet names the public chain hosting the deposit boxes.
func NewCatalog(mainnet string, chains []Info) *Catalog {
	c := &Catalog{
		mainnet: mainnet,
		chains:  make(map[string]Info, len(chains)),
	}
	for _, info := range chains {
		c.chains[info.Name] = info
	}
	return c
}

// Mainnet returns the name of the public mainnet.
func (c *Catalog) Mainnet() string {
	return c.mainnet
}

// IsMainnet reports whether name is the public mainnet.
func (c *Catalog) IsMainnet(name string) bool {
	return name == c.mainnet
}

// Chain returns the catalog entry for name.
func (c *Catalog) Chain(name string) (Info, error) {
	info, ok := c.chains[name]
	if !ok {
		return Info{}, fmt.Errorf("%w: %s", ErrUnknownChain, name)
	}
	return info, nil
}

// Contracts returns the contract registry entry for name.
func (c *Catalog) Contracts(name string) (Contracts, error) {
	info, err := c.Chain(name)
	if err != nil {
		return Contracts{}, err
	}
	return info.Contracts, nil
}

// NameByID finds the chain with the given id.
func (c *Catalog) NameByID(id *big.Int) (string, bool) {
	for name, info := range c.chains {
		if info.ChainID != nil && id != nil && info.ChainID.Cmp(id) == 0 {
			return name, true
		}
	}
	return "", false
}

// Names returns all chain names known to the catalog.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.chains))
	for name := range c.chains {
		names = append(names, name)
	}
	return names
}
