package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"

	"github.com/skalenetwork/portal-sub000/portal/chain"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "wallet").Logger()
}

// SetLogger replaces the package logger.
func SetLogger(l zerolog.Logger) {
	log = l.With().Str("component", "wallet").Logger()
}

// Backend is the node surface the local signer broadcasts through. *ethclient.Client satisfies it.
type Backend interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// Dialer opens a backend for a chain definition.
type Dialer func(ctx context.Context, info chain.Info) (Backend, error)

// DialEthClient dials the first RPC endpoint of the chain.
func DialEthClient(ctx context.Context, info chain.Info) (Backend, error) {
	if len(info.RPCs) == 0 {
		return nil, fmt.Errorf("%w: %s", chain.ErrNoEndpoints, info.Name)
	}
	client, err := ethclient.DialContext(ctx, info.RPCs[0])
	if err != nil {
		return nil, err
	}
	return client, nil
}

// LocalSigner is a Wallet backed by an in-process private key. Used by the CLI and tests.
type LocalSigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
	dial    Dialer

	mu       sync.Mutex
	backends map[string]Backend
	current  *big.Int

	// sendMu serializes signing so nonces are consumed in order.
	sendMu sync.Mutex
}

var _ Wallet = (*LocalSigner)(nil)

// NewLocalSigner parses a hex private key, with or without 0x prefix.
func NewLocalSigner(hexKey string, dial Dialer) (*LocalSigner, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	if dial == nil {
		dial = DialEthClient
	}
	return &LocalSigner{
		key:      key,
		address:  crypto.PubkeyToAddress(key.PublicKey),
		dial:     dial,
		backends: make(map[string]Backend),
	}, nil
}

func (s *LocalSigner) Address() common.Address {
	return s.address
}

// ChainID returns the chain the signer is attached to, or an error if none was selected yet.
func (s *LocalSigner) ChainID(_ context.Context) (*big.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil, ErrChainNotAdded
	}
	return new(big.Int).Set(s.current), nil
}

// AddChain dials the chain. Adding a known chain is an error, callers treat it as harmless.
func (s *LocalSigner) AddChain(ctx context.Context, info chain.Info) error {
	if info.ChainID == nil {
		return fmt.Errorf("chain %s has no id", info.Name)
	}
	key := info.ChainID.String()

	s.mu.Lock()
	_, known := s.backends[key]
	s.mu.Unlock()
	if known {
		return fmt.Errorf("chain %s already added", info.Name)
	}

	backend, err := s.dial(ctx, info)
	if err != nil {
		return fmt.Errorf("failed to add chain %s: %w", info.Name, err)
	}

	s.mu.Lock()
	s.backends[key] = backend
	s.mu.Unlock()
	log.Debug().Str("chain", info.Name).Str("chain_id", key).Msg("Chain added")
	return nil
}

func (s *LocalSigner) SwitchChain(_ context.Context, chainID *big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.backends[chainID.String()]; !ok {
		return fmt.Errorf("%w: %s", ErrChainNotAdded, chainID)
	}
	s.current = new(big.Int).Set(chainID)
	return nil
}

func (s *LocalSigner) backend() (Backend, *big.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil, nil, ErrChainNotAdded
	}
	return s.backends[s.current.String()], new(big.Int).Set(s.current), nil
}

// SendTransaction signs req for the current chain and broadcasts it.
func (s *LocalSigner) SendTransaction(ctx context.Context, req TxRequest) (common.Hash, error) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	backend, chainID, err := s.backend()
	if err != nil {
		return common.Hash{}, err
	}

	value := req.Value
	if value == nil {
		value = new(big.Int)
	}

	nonce, err := backend.PendingNonceAt(ctx, s.address)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to get nonce: %w", err)
	}
	gasPrice, err := backend.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to suggest gas price: %w", err)
	}
	gas := req.Gas
	if gas == 0 {
		to := req.To
		gas, err = backend.EstimateGas(ctx, ethereum.CallMsg{
			From:  s.address,
			To:    &to,
			Value: value,
			Data:  req.Data,
		})
		if err != nil {
			return common.Hash{}, fmt.Errorf("failed to estimate gas: %w", err)
		}
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &req.To,
		Value:    value,
		Gas:      gas,
		GasPrice: gasPrice,
		Data:     req.Data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), s.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to sign transaction: %w", err)
	}
	if err := backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("failed to send transaction: %w", err)
	}

	log.Info().
		Str("hash", signed.Hash().Hex()).
		Str("chain_id", chainID.String()).
		Uint64("nonce", nonce).
		Msg("Transaction sent")
	return signed.Hash(), nil
}
