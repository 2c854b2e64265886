// Package chaintest provides an in-memory chain and wallet for testing code that drives the
// bridge contracts.
package chaintest

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/skalenetwork/portal-sub000/portal/chain"
)

// nodeError is a JSON-RPC error as a node returns it, it satisfies go-ethereum's rpc.Error.
type nodeError struct {
	code int
	msg  string
}

func (e nodeError) Error() string  { return e.msg }
func (e nodeError) ErrorCode() int { return e.code }

// ErrExecutionReverted is returned by CallContract when no handler matches the call or the
// handler refuses it. Like a node it carries JSON-RPC error code 3.
var ErrExecutionReverted error = nodeError{code: 3, msg: "execution reverted"}

// Handler answers a view call with the method's decoded inputs.
type Handler func(args []any) ([]any, error)

type boundContract struct {
	abis     []abi.ABI
	handlers map[string]Handler
}

func (bc *boundContract) method(selector []byte) (*abi.Method, bool) {
	for _, parsed := range bc.abis {
		if m, err := parsed.MethodById(selector); err == nil {
			if _, ok := bc.handlers[m.Name]; ok {
				return m, true
			}
		}
	}
	return nil, false
}

// Chain is an in-memory chain.Client. Balances and view handlers are set by the test,
// receipts are added by the Wallet when it sends.
type Chain struct {
	Name string
	ID   *big.Int

	mu        sync.Mutex
	balances  map[common.Address]*big.Int
	contracts map[common.Address]*boundContract
	receipts  map[common.Hash]*chain.Receipt
	block     uint64
	reads     int
}

var _ chain.Client = (*Chain)(nil)

func NewChain(name string, id int64) *Chain {
	return &Chain{
		Name:      name,
		ID:        big.NewInt(id),
		balances:  make(map[common.Address]*big.Int),
		contracts: make(map[common.Address]*boundContract),
		receipts:  make(map[common.Hash]*chain.Receipt),
	}
}

// SetBalance sets the native balance of account.
func (c *Chain) SetBalance(account common.Address, v *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balances[account] = new(big.Int).Set(v)
}

// AddBalance adds delta (may be negative) to the native balance of account.
func (c *Chain) AddBalance(account common.Address, delta *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cur, ok := c.balances[account]
	if !ok {
		cur = new(big.Int)
	}
	c.balances[account] = new(big.Int).Add(cur, delta)
}

// Handle registers h for method of the contract at address.
func (c *Chain) Handle(address common.Address, parsed abi.ABI, method string, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	bc, ok := c.contracts[address]
	if !ok {
		bc = &boundContract{handlers: make(map[string]Handler)}
		c.contracts[address] = bc
	}
	bc.abis = append(bc.abis, parsed)
	bc.handlers[method] = h
}

// Reads returns the number of read calls served.
func (c *Chain) Reads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads
}

func (c *Chain) ChainID(context.Context) (*big.Int, error) {
	return new(big.Int).Set(c.ID), nil
}

func (c *Chain) BalanceAt(_ context.Context, account common.Address) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reads++
	if v, ok := c.balances[account]; ok {
		return new(big.Int).Set(v), nil
	}
	return new(big.Int), nil
}

func (c *Chain) CallContract(_ context.Context, to common.Address, data []byte) ([]byte, error) {
	if len(data) < 4 {
		return nil, ErrExecutionReverted
	}
	c.mu.Lock()
	c.reads++
	var (
		method *abi.Method
		h      Handler
	)
	bc, ok := c.contracts[to]
	if ok {
		method, ok = bc.method(data[:4])
	}
	if ok {
		h = bc.handlers[method.Name]
	}
	c.mu.Unlock()
	if !ok {
		return nil, ErrExecutionReverted
	}

	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method.Name, err)
	}
	out, err := h(args)
	if err != nil {
		return nil, err
	}
	return method.Outputs.Pack(out...)
}

func (c *Chain) WaitMined(ctx context.Context, hash common.Hash) (*chain.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.receipts[hash]
	if !ok {
		return nil, fmt.Errorf("%w: %s", chain.ErrReceiptNotFound, hash.Hex())
	}
	out := *r
	return &out, nil
}

func (c *Chain) mine(hash common.Hash, status uint64) *chain.Receipt {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.block++
	r := &chain.Receipt{
		Hash:        hash,
		BlockNumber: c.block,
		Timestamp:   1_700_000_000 + c.block,
		Status:      status,
	}
	c.receipts[hash] = r
	return r
}

// Network is a set of chains. It implements chain.Provider.
type Network struct {
	Mainnet string
	chains  map[string]*Chain
}

var _ chain.Provider = (*Network)(nil)

func NewNetwork(mainnet string, chains ...*Chain) *Network {
	n := &Network{Mainnet: mainnet, chains: make(map[string]*Chain, len(chains))}
	for _, c := range chains {
		n.chains[c.Name] = c
	}
	return n
}

// Client implements chain.Provider.
func (n *Network) Client(name string) (chain.Client, error) {
	c, ok := n.chains[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", chain.ErrUnknownChain, name)
	}
	return c, nil
}

// Chain returns the named chain or panics.
func (n *Network) Chain(name string) *Chain {
	c, ok := n.chains[name]
	if !ok {
		panic("chaintest: unknown chain " + name)
	}
	return c
}

func (n *Network) byID(id *big.Int) (*Chain, bool) {
	for _, c := range n.chains {
		if c.ID.Cmp(id) == 0 {
			return c, true
		}
	}
	return nil, false
}

// Catalog builds a chain catalog of the network with the given contract registry.
func (n *Network) Catalog(contracts map[string]chain.Contracts) *chain.Catalog {
	infos := make([]chain.Info, 0, len(n.chains))
	for name, c := range n.chains {
		infos = append(infos, chain.Info{
			Name:      name,
			ChainID:   new(big.Int).Set(c.ID),
			RPCs:      []string{"memory://" + name},
			Contracts: contracts[name],
		})
	}
	return chain.NewCatalog(n.Mainnet, infos)
}
