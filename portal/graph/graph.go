package graph

import (
	"errors"
	"fmt"
	"slices"

	"github.com/ethereum/go-ethereum/common"

	"github.com/skalenetwork/portal-sub000/portal/models"
)

var (
	ErrChainNotFound = errors.New("chain not found")
	ErrTokenNotFound = errors.New("token not found")
)

// Graph is a read-only view of which tokens exist on which chains. All lookups return
// copies, a Graph is never mutated after New.
type Graph struct {
	mainnet string
	chains  map[string]bool
	tokens  map[string]models.Token
	// chain -> keynames present on that chain
	onChain map[string][]string
	// chain -> keynames with a wrapper on that chain
	wrapped map[string][]string
}

// New indexes tokens over the given chain names.
func New(mainnet string, chains []string, tokens []models.Token) (*Graph, error) {
	if len(chains) == 0 {
		return nil, fmt.Errorf("no chains to build graph for")
	}

	g := &Graph{
		mainnet: mainnet,
		chains:  make(map[string]bool, len(chains)),
		tokens:  make(map[string]models.Token, len(tokens)),
		onChain: make(map[string][]string),
		wrapped: make(map[string][]string),
	}

	// First pass: register chains
	for _, c := range chains {
		g.chains[c] = true
	}
	if !g.chains[mainnet] {
		return nil, fmt.Errorf("%w: mainnet %s", ErrChainNotFound, mainnet)
	}

	// Second pass: index tokens per chain
	for _, t := range tokens {
		if _, exists := g.tokens[t.Keyname]; exists {
			return nil, fmt.Errorf("duplicate token %s", t.Keyname)
		}
		g.tokens[t.Keyname] = t.Clone()
		for chain, conn := range t.Connections {
			if !g.chains[chain] {
				return nil, fmt.Errorf("%w: %s (token %s)", ErrChainNotFound, chain, t.Keyname)
			}
			g.onChain[chain] = append(g.onChain[chain], t.Keyname)
			if conn.HasWrapper() {
				g.wrapped[chain] = append(g.wrapped[chain], t.Keyname)
			}
		}
	}
	for chain := range g.onChain {
		slices.Sort(g.onChain[chain])
		slices.Sort(g.wrapped[chain])
	}
	return g, nil
}

// Mainnet returns the name of the public mainnet.
func (g *Graph) Mainnet() string {
	return g.mainnet
}

// Chains returns all chain names, sorted.
func (g *Graph) Chains() []string {
	out := make([]string, 0, len(g.chains))
	for c := range g.chains {
		out = append(out, c)
	}
	slices.Sort(out)
	return out
}

func (g *Graph) requireChain(name string) error {
	if !g.chains[name] {
		return fmt.Errorf("%w: %s", ErrChainNotFound, name)
	}
	return nil
}

// Token returns a copy of the token with the given keyname.
func (g *Graph) Token(keyname string) (models.Token, error) {
	t, ok := g.tokens[keyname]
	if !ok {
		return models.Token{}, fmt.Errorf("%w: %s", ErrTokenNotFound, keyname)
	}
	return t.Clone(), nil
}

// TokensFor returns the tokens present on chainA, keyed by keyname. A non-empty chainB
// narrows the result to tokens also connected to chainB.
func (g *Graph) TokensFor(chainA, chainB string) (map[string]models.Token, error) {
	if err := g.requireChain(chainA); err != nil {
		return nil, err
	}
	if chainB != "" {
		if err := g.requireChain(chainB); err != nil {
			return nil, err
		}
	}

	out := make(map[string]models.Token)
	for _, keyname := range g.onChain[chainA] {
		t := g.tokens[keyname]
		if chainB != "" && !t.ConnectedTo(chainB) {
			continue
		}
		out[keyname] = t.Clone()
	}
	return out, nil
}

// WrappedTokensFor returns the tokens that have a wrapper on chainA.
func (g *Graph) WrappedTokensFor(chainA string) (map[string]models.Token, error) {
	if err := g.requireChain(chainA); err != nil {
		return nil, err
	}
	out := make(map[string]models.Token)
	for _, keyname := range g.wrapped[chainA] {
		out[keyname] = g.tokens[keyname].Clone()
	}
	return out, nil
}

// OriginAddress resolves the token address bridge contracts expect when moving keyname from
// chainA to chainB. For a clone on chainA that is the contract on the origin chain, otherwise
// it is the contract on chainA itself. A wrapper on that chain takes the place of the token.
func (g *Graph) OriginAddress(chainA, chainB, keyname string) (common.Address, error) {
	if err := g.requireChain(chainA); err != nil {
		return common.Address{}, err
	}
	if err := g.requireChain(chainB); err != nil {
		return common.Address{}, err
	}
	t, ok := g.tokens[keyname]
	if !ok {
		return common.Address{}, fmt.Errorf("%w: %s", ErrTokenNotFound, keyname)
	}

	onA, ok := t.Connection(chainA)
	if !ok {
		return common.Address{}, fmt.Errorf("%w: %s on %s", ErrTokenNotFound, keyname, chainA)
	}
	if !t.ConnectedTo(chainB) {
		return common.Address{}, fmt.Errorf("%w: %s on %s", ErrTokenNotFound, keyname, chainB)
	}
	if !onA.Clone {
		return bridgedAddress(onA), nil
	}

	origin, ok := t.Connection(t.OriginChain)
	if !ok {
		return common.Address{}, fmt.Errorf("%w: %s has no entry on origin %s", ErrTokenNotFound, keyname, t.OriginChain)
	}
	return bridgedAddress(origin), nil
}

// bridgedAddress is the contract the bridge moves on a chain: the wrapper when there is one.
func bridgedAddress(c models.Connection) common.Address {
	if c.HasWrapper() {
		return *c.Wrapper
	}
	return c.Address
}
