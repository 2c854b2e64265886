package chaintest

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/skalenetwork/portal-sub000/portal/chain"
)

func zeroIfNil(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

// ERC20 is an in-memory fungible token answering balanceOf, allowance and decimals.
type ERC20 struct {
	Address common.Address

	mu         sync.Mutex
	decimals   uint8
	balances   map[common.Address]*big.Int
	allowances map[[2]common.Address]*big.Int
}

// DeployERC20 registers a token at address on c.
func DeployERC20(c *Chain, address common.Address, decimals uint8) *ERC20 {
	t := &ERC20{
		Address:    address,
		decimals:   decimals,
		balances:   make(map[common.Address]*big.Int),
		allowances: make(map[[2]common.Address]*big.Int),
	}
	c.Handle(address, chain.ERC20ABI, "balanceOf", func(args []any) ([]any, error) {
		return []any{t.BalanceOf(args[0].(common.Address))}, nil
	})
	c.Handle(address, chain.ERC20ABI, "allowance", func(args []any) ([]any, error) {
		return []any{t.Allowance(args[0].(common.Address), args[1].(common.Address))}, nil
	})
	c.Handle(address, chain.ERC20ABI, "decimals", func([]any) ([]any, error) {
		return []any{t.decimals}, nil
	})
	return t
}

func (t *ERC20) BalanceOf(owner common.Address) *big.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return zeroIfNil(t.balances[owner])
}

func (t *ERC20) Allowance(owner, spender common.Address) *big.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return zeroIfNil(t.allowances[[2]common.Address{owner, spender}])
}

// Mint adds v to the balance of owner. Negative v burns.
func (t *ERC20) Mint(owner common.Address, v *big.Int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.balances[owner] = new(big.Int).Add(zeroIfNil(t.balances[owner]), v)
}

func (t *ERC20) Approve(owner, spender common.Address, v *big.Int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.allowances[[2]common.Address{owner, spender}] = new(big.Int).Set(v)
}

// ERC721 is an in-memory NFT answering ownerOf and getApproved.
type ERC721 struct {
	Address common.Address

	mu        sync.Mutex
	owners    map[string]common.Address
	approvals map[string]common.Address
}

// DeployERC721 registers an NFT contract at address on c.
func DeployERC721(c *Chain, address common.Address) *ERC721 {
	t := &ERC721{
		Address:   address,
		owners:    make(map[string]common.Address),
		approvals: make(map[string]common.Address),
	}
	c.Handle(address, chain.ERC721ABI, "ownerOf", func(args []any) ([]any, error) {
		owner, ok := t.OwnerOf(args[0].(*big.Int))
		if !ok {
			return nil, ErrExecutionReverted
		}
		return []any{owner}, nil
	})
	c.Handle(address, chain.ERC721ABI, "getApproved", func(args []any) ([]any, error) {
		t.mu.Lock()
		defer t.mu.Unlock()
		return []any{t.approvals[args[0].(*big.Int).String()]}, nil
	})
	return t
}

func (t *ERC721) OwnerOf(id *big.Int) (common.Address, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	owner, ok := t.owners[id.String()]
	return owner, ok
}

// Mint sets the owner of id.
func (t *ERC721) Mint(owner common.Address, id *big.Int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.owners[id.String()] = owner
}

// Burn removes id.
func (t *ERC721) Burn(id *big.Int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.owners, id.String())
	delete(t.approvals, id.String())
}

func (t *ERC721) Approve(spender common.Address, id *big.Int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.approvals[id.String()] = spender
}

// ERC1155 is an in-memory multi-token answering balanceOf and isApprovedForAll.
type ERC1155 struct {
	Address common.Address

	mu        sync.Mutex
	balances  map[string]*big.Int
	operators map[[2]common.Address]bool
}

// DeployERC1155 registers a multi-token contract at address on c.
func DeployERC1155(c *Chain, address common.Address) *ERC1155 {
	t := &ERC1155{
		Address:   address,
		balances:  make(map[string]*big.Int),
		operators: make(map[[2]common.Address]bool),
	}
	c.Handle(address, chain.ERC1155ABI, "balanceOf", func(args []any) ([]any, error) {
		return []any{t.BalanceOf(args[0].(common.Address), args[1].(*big.Int))}, nil
	})
	c.Handle(address, chain.ERC1155ABI, "isApprovedForAll", func(args []any) ([]any, error) {
		t.mu.Lock()
		defer t.mu.Unlock()
		return []any{t.operators[[2]common.Address{args[0].(common.Address), args[1].(common.Address)}]}, nil
	})
	return t
}

func key1155(owner common.Address, id *big.Int) string {
	return owner.Hex() + "/" + id.String()
}

func (t *ERC1155) BalanceOf(owner common.Address, id *big.Int) *big.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return zeroIfNil(t.balances[key1155(owner, id)])
}

// Mint adds v of id to owner. Negative v burns.
func (t *ERC1155) Mint(owner common.Address, id, v *big.Int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	k := key1155(owner, id)
	t.balances[k] = new(big.Int).Add(zeroIfNil(t.balances[k]), v)
}

func (t *ERC1155) SetApprovalForAll(owner, operator common.Address, approved bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.operators[[2]common.Address{owner, operator}] = approved
}
