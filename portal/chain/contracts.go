package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	ERC20ABI           = mustParseABI(erc20ABI)
	ERC721ABI          = mustParseABI(erc721ABI)
	ERC1155ABI         = mustParseABI(erc1155ABI)
	WrapperABI         = mustParseABI(wrapperABI)
	DepositBoxABI      = mustParseABI(depositBoxABI)
	TokenManagerABI    = mustParseABI(tokenManagerABI)
	CommunityPoolABI   = mustParseABI(communityPoolABI)
	CommunityLockerABI = mustParseABI(communityLockerABI)
)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("failed to parse ABI: %v", err))
	}
	return parsed
}

// SchainHash is the identifier bridge contracts use for a chain name.
func SchainHash(name string) common.Hash {
	return crypto.Keccak256Hash([]byte(name))
}

// Contract binds an ABI to an address on one chain.
type Contract struct {
	Address common.Address
	ABI     abi.ABI
	client  Client
}

// NewContract binds parsed to address, reading through client.
func NewContract(address common.Address, parsed abi.ABI, client Client) *Contract {
	return &Contract{Address: address, ABI: parsed, client: client}
}

// Pack encodes a call to method, for use as transaction data.
func (c *Contract) Pack(method string, args ...any) ([]byte, error) {
	data, err := c.ABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}
	return data, nil
}

// Call executes a view method and returns its decoded outputs.
func (c *Contract) Call(ctx context.Context, method string, args ...any) ([]any, error) {
	data, err := c.Pack(method, args...)
	if err != nil {
		return nil, err
	}
	out, err := c.client.CallContract(ctx, c.Address, data)
	if err != nil {
		return nil, fmt.Errorf("call %s on %s: %w", method, c.Address.Hex(), err)
	}
	values, err := c.ABI.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%s returned no values", method)
	}
	return values, nil
}

// Uint calls a view method returning a single uint.
func (c *Contract) Uint(ctx context.Context, method string, args ...any) (*big.Int, error) {
	values, err := c.Call(ctx, method, args...)
	if err != nil {
		return nil, err
	}
	switch v := values[0].(type) {
	case *big.Int:
		return v, nil
	case uint8:
		return big.NewInt(int64(v)), nil
	}
	return nil, fmt.Errorf("invalid %s return type %T", method, values[0])
}

// Bool calls a view method returning a single bool.
func (c *Contract) Bool(ctx context.Context, method string, args ...any) (bool, error) {
	values, err := c.Call(ctx, method, args...)
	if err != nil {
		return false, err
	}
	v, ok := values[0].(bool)
	if !ok {
		return false, fmt.Errorf("invalid %s return type %T", method, values[0])
	}
	return v, nil
}

// AddressOf calls a view method returning a single address.
func (c *Contract) AddressOf(ctx context.Context, method string, args ...any) (common.Address, error) {
	values, err := c.Call(ctx, method, args...)
	if err != nil {
		return common.Address{}, err
	}
	v, ok := values[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("invalid %s return type %T", method, values[0])
	}
	return v, nil
}
