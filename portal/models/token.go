package models

import (
	"maps"

	"github.com/ethereum/go-ethereum/common"
)

// TokenType is the standard a token implements on every chain it is connected to.
type TokenType string

const (
	TokenTypeEth        TokenType = "eth"
	TokenTypeERC20      TokenType = "erc20"
	TokenTypeERC721     TokenType = "erc721"
	TokenTypeERC721Meta TokenType = "erc721meta"
	TokenTypeERC1155    TokenType = "erc1155"
)

// IsNFT reports whether amounts of this type are token ids rather than quantities.
func (t TokenType) IsNFT() bool {
	return t == TokenTypeERC721 || t == TokenTypeERC721Meta
}

// Valid reports whether t is one of the supported token standards.
func (t TokenType) Valid() bool {
	switch t {
	case TokenTypeEth, TokenTypeERC20, TokenTypeERC721, TokenTypeERC721Meta, TokenTypeERC1155:
		return true
	}
	return false
}

// Connection describes a token on one particular chain.
type Connection struct {
	// Address of the token contract on this chain. Zero for the native coin on mainnet.
	Address common.Address
	// Clone is true when the contract is a minted representation, false on the origin chain.
	Clone bool
	// Wrapper is the contract that has to hold a wrapped balance before the token can leave this chain.
	Wrapper *common.Address
	// Hubs maps a destination chain to the intermediate chain the transfer must route through.
	Hubs map[string]string
}

// HasWrapper reports whether the token must be wrapped on this chain.
func (c Connection) HasWrapper() bool {
	return c.Wrapper != nil && *c.Wrapper != (common.Address{})
}

// HubFor returns the hub configured for a destination, or "" if the hop is direct.
func (c Connection) HubFor(destination string) string {
	if c.Hubs == nil {
		return ""
	}
	return c.Hubs[destination]
}

// Token is an immutable view of a token and its connectivity. Copies returned by the graph
// never share maps with the graph itself.
type Token struct {
	Keyname     string
	Type        TokenType
	OriginChain string

	Symbol   string
	Name     string
	Decimals int32
	IconURL  string

	Connections map[string]Connection
}

// ConnectedTo reports whether the token has an entry for the chain.
func (t Token) ConnectedTo(chain string) bool {
	_, ok := t.Connections[chain]
	return ok
}

// Connection returns the token's entry for a chain.
func (t Token) Connection(chain string) (Connection, bool) {
	c, ok := t.Connections[chain]
	return c, ok
}

// IsZero reports whether t is the empty token (nothing selected).
func (t Token) IsZero() bool {
	return t.Keyname == ""
}

// Clone returns a deep copy of the token.
func (t Token) Clone() Token {
	out := t
	out.Connections = make(map[string]Connection, len(t.Connections))
	for chain, c := range t.Connections {
		cc := c
		if c.Wrapper != nil {
			w := *c.Wrapper
			cc.Wrapper = &w
		}
		cc.Hubs = maps.Clone(c.Hubs)
		out.Connections[chain] = cc
	}
	return out
}
