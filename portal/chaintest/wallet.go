package chaintest

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/skalenetwork/portal-sub000/portal/chain"
	"github.com/skalenetwork/portal-sub000/portal/wallet"
)

// knownABIs are used to decode sent transactions for assertions and hooks.
var knownABIs = []abi.ABI{
	chain.DepositBoxABI,
	chain.TokenManagerABI,
	chain.CommunityPoolABI,
	chain.WrapperABI,
	chain.ERC20ABI,
	chain.ERC721ABI,
	chain.ERC1155ABI,
}

// Tx is a transaction the Wallet sent, decoded against the bridge ABIs when possible.
type Tx struct {
	Chain  string
	Hash   common.Hash
	To     common.Address
	Value  *big.Int
	Method string
	Args   []any
}

// Wallet is an in-memory wallet.Wallet bound to a Network. Every sent transaction is
// mined immediately on the current chain.
type Wallet struct {
	net     *Network
	address common.Address

	mu      sync.Mutex
	current *big.Int
	added   map[string]bool
	sent    []Tx
	nonce   uint64

	// OnSend runs after a transaction is mined, to apply its effects. A non-nil
	// error is returned from SendTransaction instead of the hash.
	OnSend func(tx Tx) error
	// Revert marks matching transactions as failed in their receipt.
	Revert func(tx Tx) bool
	// SwitchFailures is the number of SwitchChain calls that fail before one succeeds.
	SwitchFailures int
	// SendErr, when set, is returned by every SendTransaction before anything is mined.
	SendErr error

	switchCalls int
}

var _ wallet.Wallet = (*Wallet)(nil)

func NewWallet(net *Network, address common.Address, current string) *Wallet {
	w := &Wallet{
		net:     net,
		address: address,
		added:   make(map[string]bool),
	}
	if c, ok := net.chains[current]; ok {
		w.current = new(big.Int).Set(c.ID)
	}
	return w
}

func (w *Wallet) Address() common.Address {
	return w.address
}

func (w *Wallet) ChainID(context.Context) (*big.Int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.current == nil {
		return nil, errors.New("wallet not connected")
	}
	return new(big.Int).Set(w.current), nil
}

func (w *Wallet) AddChain(_ context.Context, info chain.Info) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	key := info.ChainID.String()
	if w.added[key] {
		return fmt.Errorf("chain %s already added", info.Name)
	}
	w.added[key] = true
	return nil
}

func (w *Wallet) SwitchChain(_ context.Context, chainID *big.Int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.switchCalls++
	if w.SwitchFailures > 0 {
		w.SwitchFailures--
		return errors.New("switch request pending")
	}
	if _, ok := w.net.byID(chainID); !ok {
		return wallet.ErrChainNotAdded
	}
	w.current = new(big.Int).Set(chainID)
	return nil
}

// SwitchCalls returns how many times SwitchChain was called.
func (w *Wallet) SwitchCalls() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.switchCalls
}

// Sent returns the transactions sent so far.
func (w *Wallet) Sent() []Tx {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]Tx, len(w.sent))
	copy(out, w.sent)
	return out
}

// Methods returns the decoded method names of the sent transactions.
func (w *Wallet) Methods() []string {
	sent := w.Sent()
	out := make([]string, len(sent))
	for i, tx := range sent {
		out[i] = tx.Method
	}
	return out
}

func (w *Wallet) SendTransaction(_ context.Context, req wallet.TxRequest) (common.Hash, error) {
	if w.SendErr != nil {
		return common.Hash{}, w.SendErr
	}

	w.mu.Lock()
	if w.current == nil {
		w.mu.Unlock()
		return common.Hash{}, errors.New("wallet not connected")
	}
	c, _ := w.net.byID(w.current)
	w.nonce++
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], w.nonce)
	hash := crypto.Keccak256Hash(w.address.Bytes(), buf[:])
	w.mu.Unlock()

	tx := Tx{Chain: c.Name, Hash: hash, To: req.To, Value: req.Value}
	tx.Method, tx.Args = decode(req.Data)

	status := uint64(1)
	if w.Revert != nil && w.Revert(tx) {
		status = 0
	}
	c.mine(hash, status)

	w.mu.Lock()
	w.sent = append(w.sent, tx)
	w.mu.Unlock()

	if status == 1 && w.OnSend != nil {
		if err := w.OnSend(tx); err != nil {
			return common.Hash{}, err
		}
	}
	return hash, nil
}

func decode(data []byte) (string, []any) {
	if len(data) < 4 {
		return "", nil
	}
	for _, parsed := range knownABIs {
		m, err := parsed.MethodById(data[:4])
		if err != nil {
			continue
		}
		args, err := m.Inputs.Unpack(data[4:])
		if err != nil {
			continue
		}
		return m.Name, args
	}
	return "", nil
}
