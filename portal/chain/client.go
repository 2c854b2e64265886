package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"os"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/rs/zerolog"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "chain").Logger()
}

// SetLogger replaces the package logger.
func SetLogger(l zerolog.Logger) {
	log = l.With().Str("component", "chain").Logger()
}

// FailoverConfig controls retry and endpoint failover behaviour.
type FailoverConfig struct {
	// MaxRetries is the number of retries on the current endpoint before failing over.
	MaxRetries int
	// RetryDelay is the initial delay between retries, doubled on each retry.
	RetryDelay time.Duration
	// ReceiptPollInterval is how often WaitMined asks for the receipt.
	ReceiptPollInterval time.Duration
	// MaxReceiptPolls bounds WaitMined. Zero uses DefaultMaxReceiptPolls.
	MaxReceiptPolls int
}

const DefaultMaxReceiptPolls = 90

// DefaultFailoverConfig returns defaults tuned for public EVM endpoints.
func DefaultFailoverConfig() FailoverConfig {
	return FailoverConfig{
		MaxRetries:          2,
		RetryDelay:          500 * time.Millisecond,
		ReceiptPollInterval: 2 * time.Second,
		MaxReceiptPolls:     DefaultMaxReceiptPolls,
	}
}

// EthClient is a Client backed by go-ethereum's ethclient, rotating across the
// configured endpoints when the current one keeps failing.
type EthClient struct {
	name   string
	urls   []string
	config FailoverConfig

	mu      sync.Mutex
	current int
	dialed  map[string]*ethclient.Client
}

var _ Client = (*EthClient)(nil)

// NewEthClient creates a client for one chain. Endpoints are dialed lazily.
func NewEthClient(name string, urls []string, config FailoverConfig) (*EthClient, error) {
	if len(urls) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoEndpoints, name)
	}
	return &EthClient{
		name:   name,
		urls:   urls,
		config: config,
		dialed: make(map[string]*ethclient.Client),
	}, nil
}

func (c *EthClient) endpoint(ctx context.Context) (*ethclient.Client, string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	url := c.urls[c.current]
	if ec, ok := c.dialed[url]; ok {
		return ec, url, nil
	}
	ec, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, url, fmt.Errorf("failed to dial %s: %w", url, err)
	}
	c.dialed[url] = ec
	return ec, url, nil
}

func (c *EthClient) failover(failed string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.urls) < 2 || c.urls[c.current] != failed {
		return
	}
	c.current = (c.current + 1) % len(c.urls)
	log.Warn().
		Str("chain", c.name).
		Str("from", failed).
		Str("to", c.urls[c.current]).
		Msg("Failover to endpoint")
}

// do runs fn against the current endpoint with retries, then once more after failing over.
// JSON-RPC errors returned by the node (reverts, invalid params) are not retried.
func (c *EthClient) do(ctx context.Context, fn func(*ethclient.Client) error) error {
	var lastErr error
	delay := c.config.RetryDelay

	for attempt := 0; attempt <= c.config.MaxRetries+1; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		ec, url, err := c.endpoint(ctx)
		if err != nil {
			lastErr = err
			c.failover(url)
			continue
		}

		err = fn(ec)
		if err == nil {
			return nil
		}
		if isNodeError(err) || errors.Is(err, ethereum.NotFound) {
			return err
		}
		lastErr = err
		log.Debug().Err(err).Str("chain", c.name).Int("attempt", attempt).Msg("RPC request failed")
		if attempt == c.config.MaxRetries {
			c.failover(url)
		}
	}
	return fmt.Errorf("request to %s failed after %d attempts: %w", c.name, c.config.MaxRetries+2, lastErr)
}

func isNodeError(err error) bool {
	var rpcErr rpc.Error
	return errors.As(err, &rpcErr)
}

// ChainID returns the id reported by the node.
func (c *EthClient) ChainID(ctx context.Context) (*big.Int, error) {
	var id *big.Int
	err := c.do(ctx, func(ec *ethclient.Client) error {
		var err error
		id, err = ec.ChainID(ctx)
		return err
	})
	return id, err
}

// BalanceAt returns the native balance of account at the latest block.
func (c *EthClient) BalanceAt(ctx context.Context, account common.Address) (*big.Int, error) {
	var balance *big.Int
	err := c.do(ctx, func(ec *ethclient.Client) error {
		var err error
		balance, err = ec.BalanceAt(ctx, account, nil)
		return err
	})
	return balance, err
}

// CallContract executes a read-only call against the latest block.
func (c *EthClient) CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	var out []byte
	err := c.do(ctx, func(ec *ethclient.Client) error {
		var err error
		out, err = ec.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
		return err
	})
	return out, err
}

// WaitMined polls for the receipt until the transaction is included, MaxReceiptPolls polls
// found nothing, or ctx is done. A dropped or replaced transaction ends in ErrReceiptNotFound.
func (c *EthClient) WaitMined(ctx context.Context, hash common.Hash) (*Receipt, error) {
	polls := c.config.MaxReceiptPolls
	if polls <= 0 {
		polls = DefaultMaxReceiptPolls
	}
	ticker := time.NewTicker(c.config.ReceiptPollInterval)
	defer ticker.Stop()

	for i := 0; i < polls; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %s: %w", ErrReceiptNotFound, hash.Hex(), ctx.Err())
			case <-ticker.C:
			}
		}

		var receipt *Receipt
		err := c.do(ctx, func(ec *ethclient.Client) error {
			r, err := ec.TransactionReceipt(ctx, hash)
			if err != nil {
				return err
			}
			header, err := ec.HeaderByNumber(ctx, r.BlockNumber)
			if err != nil {
				return err
			}
			receipt = &Receipt{
				Hash:        hash,
				BlockNumber: r.BlockNumber.Uint64(),
				Timestamp:   header.Time,
				Status:      r.Status,
			}
			return nil
		})
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, fmt.Errorf("failed to get receipt %s: %w", hash.Hex(), err)
		}
	}
	return nil, fmt.Errorf("%w: %s after %d polls", ErrReceiptNotFound, hash.Hex(), polls)
}

// Close releases all dialed connections.
func (c *EthClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for url, ec := range c.dialed {
		ec.Close()
		delete(c.dialed, url)
	}
}

// Pool is a Provider holding one EthClient per catalog chain.
type Pool struct {
	clients map[string]*EthClient
}

// NewPool creates clients for every chain in the catalog.
func NewPool(catalog *Catalog, config FailoverConfig) (*Pool, error) {
	p := &Pool{clients: make(map[string]*EthClient)}
	for _, name := range catalog.Names() {
		info, _ := catalog.Chain(name)
		client, err := NewEthClient(name, info.RPCs, config)
		if err != nil {
			return nil, err
		}
		p.clients[name] = client
	}
	return p, nil
}

// Client implements Provider.
func (p *Pool) Client(name string) (Client, error) {
	client, ok := p.clients[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownChain, name)
	}
	return client, nil
}

// Close closes every client in the pool.
func (p *Pool) Close() {
	for _, client := range p.clients {
		client.Close()
	}
}
