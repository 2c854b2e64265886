package rpc_test

import (
	"context"
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/websocket"
	"github.com/zeebo/assert"

	"github.com/skalenetwork/portal-sub000/portal/action"
	"github.com/skalenetwork/portal-sub000/portal/chain"
	"github.com/skalenetwork/portal-sub000/portal/chaintest"
	"github.com/skalenetwork/portal-sub000/portal/graph"
	"github.com/skalenetwork/portal-sub000/portal/ledger"
	"github.com/skalenetwork/portal-sub000/portal/models"
	"github.com/skalenetwork/portal-sub000/portal/network"
	"github.com/skalenetwork/portal-sub000/portal/pool"
	"github.com/skalenetwork/portal-sub000/portal/progress"
	"github.com/skalenetwork/portal-sub000/portal/router"
	"github.com/skalenetwork/portal-sub000/portal/rpc"
	"github.com/skalenetwork/portal-sub000/portal/tasks"
	"github.com/skalenetwork/portal-sub000/portal/transfer"
	"github.com/skalenetwork/portal-sub000/portal/waiter"
	"github.com/skalenetwork/portal-sub000/portal/wallet"
)

var (
	wrapper         = common.HexToAddress("0x13")
	operatorAddress = common.HexToAddress("0xaa")

	usdc = models.Token{
		Keyname:     "usdc",
		Type:        models.TokenTypeERC20,
		OriginChain: "mainnet",
		Symbol:      "USDC",
		Decimals:    6,
		Connections: map[string]models.Connection{
			"mainnet": {Address: common.HexToAddress("0x10")},
			"chain-a": {Address: common.HexToAddress("0x12"), Clone: true, Wrapper: &wrapper},
		},
	}
)

type fixture struct {
	net    *chaintest.Network
	srv    *httptest.Server
	server *rpc.Server
	ledger *ledger.Ledger
	bus    *progress.Bus
	runner *tasks.Runner
}

type options struct {
	pool    bool
	session bool
	// sendErr is returned by every transaction the operator wallet sends.
	sendErr error
	// contracts and refresh override the empty catalog contracts and the hourly pool refresh.
	contracts map[string]chain.Contracts
	refresh   time.Duration
	// maxConcurrent overrides the request throttle.
	maxConcurrent int
}

func setup(t *testing.T, withPool bool) *fixture {
	return setupWith(t, options{pool: withPool})
}

func setupWith(t *testing.T, opts options) *fixture {
	t.Helper()
	g, err := graph.New("mainnet", []string{"mainnet", "chain-a"}, []models.Token{usdc})
	assert.NoError(t, err)

	f := &fixture{
		ledger: ledger.New(),
		bus:    progress.NewBus(),
		runner: tasks.NewRunner(context.Background()),
	}
	planner := router.NewPlanner("mainnet")
	svc := rpc.Services{
		Graph:   g,
		Planner: planner,
		Ledger:  f.ledger,
		Bus:     f.bus,
		Tasks:   f.runner,
	}

	net := chaintest.NewNetwork("mainnet",
		chaintest.NewChain("mainnet", 1),
		chaintest.NewChain("chain-a", 1482601649),
	)
	f.net = net
	contracts := opts.contracts
	if contracts == nil {
		contracts = map[string]chain.Contracts{}
	}
	catalog := net.Catalog(contracts)
	if opts.pool {
		svc.Pool = pool.NewAccountant(catalog, net, network.NewEnforcer(catalog), pool.Options{})
	}
	if opts.session {
		w := chaintest.NewWallet(net, operatorAddress, "chain-a")
		w.SendErr = opts.sendErr
		underlying := chaintest.DeployERC20(net.Chain("chain-a"), common.HexToAddress("0x12"), 6)
		underlying.Mint(operatorAddress, big.NewInt(10_000_000))
		chaintest.DeployERC20(net.Chain("chain-a"), wrapper, 6)

		svc.Session = transfer.New(planner, g, f.ledger, action.Deps{
			Catalog:  catalog,
			Clients:  net,
			Wallet:   w,
			Enforcer: network.NewEnforcer(catalog),
			Sink:     f.bus,
			Wait:     waiter.Options{Interval: time.Millisecond, MaxIterations: 5},
		})
	}

	config := rpc.DefaultServerConfig()
	config.OTelConfig = nil
	config.PoolRefresh = time.Hour
	if opts.refresh > 0 {
		config.PoolRefresh = opts.refresh
	}
	if opts.maxConcurrent > 0 {
		config.MaxConcurrentRequests = &opts.maxConcurrent
	}
	ctx, cancel := context.WithCancel(context.Background())
	server, err := rpc.NewServer(ctx, config, svc)
	assert.NoError(t, err)

	f.server = server
	f.srv = httptest.NewServer(server.Handler())
	t.Cleanup(func() {
		cancel()
		f.srv.Close()
		f.runner.StopAll()
	})
	return f
}

func (f *fixture) get(t *testing.T, path string, out any) int {
	t.Helper()
	resp, err := http.Get(f.srv.URL + path)
	assert.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		assert.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	f := setup(t, false)
	var body map[string]string
	assert.Equal(t, f.get(t, "/server/health", &body), http.StatusOK)
	assert.Equal(t, body["status"], "healthy")
}

func TestMetricsEndpoint(t *testing.T) {
	f := setup(t, false)
	f.get(t, "/server/health", nil)

	resp, err := http.Get(f.srv.URL + "/server/metrics")
	assert.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	assert.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "portal_http_requests_total"))
}

func TestChains(t *testing.T) {
	f := setup(t, false)
	var body struct {
		Mainnet string   `json:"mainnet"`
		Chains  []string `json:"chains"`
	}
	assert.Equal(t, f.get(t, "/api/v1/chains", &body), http.StatusOK)
	assert.Equal(t, body.Mainnet, "mainnet")
	assert.Equal(t, len(body.Chains), 2)
}

func TestTokens(t *testing.T) {
	f := setup(t, false)

	var tokens map[string]models.Token
	assert.Equal(t, f.get(t, "/api/v1/tokens?from=chain-a&to=mainnet", &tokens), http.StatusOK)
	assert.Equal(t, len(tokens), 1)
	assert.Equal(t, tokens["usdc"].Symbol, "USDC")

	var errBody map[string]string
	assert.Equal(t, f.get(t, "/api/v1/tokens?from=chain-z", &errBody), http.StatusNotFound)
	assert.True(t, errBody["error"] != "")
	assert.Equal(t, f.get(t, "/api/v1/tokens", nil), http.StatusBadRequest)
}

func TestWrappedTokens(t *testing.T) {
	f := setup(t, false)
	var tokens map[string]models.Token
	assert.Equal(t, f.get(t, "/api/v1/tokens/wrapped?chain=chain-a", &tokens), http.StatusOK)
	assert.Equal(t, len(tokens), 1)

	assert.Equal(t, f.get(t, "/api/v1/tokens/wrapped?chain=mainnet", &tokens), http.StatusOK)
	assert.Equal(t, len(tokens), 0)
}

func TestPlan(t *testing.T) {
	f := setup(t, false)

	var body struct {
		Steps []models.StepMetadata `json:"steps"`
	}
	assert.Equal(t, f.get(t, "/api/v1/plan?token=usdc&from=chain-a&to=mainnet", &body), http.StatusOK)
	assert.Equal(t, len(body.Steps), 2)
	assert.Equal(t, body.Steps[0].Type, models.ActionWrap)
	assert.Equal(t, body.Steps[1].Type, models.ActionERC20S2M)

	assert.Equal(t, f.get(t, "/api/v1/plan?token=dai&from=chain-a&to=mainnet", nil), http.StatusNotFound)
	assert.Equal(t, f.get(t, "/api/v1/plan?token=usdc&from=chain-a&to=chain-z", nil), http.StatusNotFound)
	assert.Equal(t, f.get(t, "/api/v1/plan?token=usdc", nil), http.StatusBadRequest)
}

func TestTransfersAndStats(t *testing.T) {
	f := setup(t, false)

	var empty []models.TransferRecord
	assert.Equal(t, f.get(t, "/api/v1/transfers", &empty), http.StatusOK)
	assert.Equal(t, len(empty), 0)

	f.ledger.FinishTransfer(models.TransferRecord{Chain1: "chain-a", Chain2: "mainnet", Address: "0xAA", Status: models.TransferCompleted})
	f.ledger.FinishTransfer(models.TransferRecord{Chain1: "chain-a", Chain2: "mainnet", Status: models.TransferUnfinished})

	var all []models.TransferRecord
	assert.Equal(t, f.get(t, "/api/v1/transfers", &all), http.StatusOK)
	assert.Equal(t, len(all), 2)

	var mine []models.TransferRecord
	assert.Equal(t, f.get(t, "/api/v1/transfers?address=0xaa", &mine), http.StatusOK)
	assert.Equal(t, len(mine), 1)

	var stats ledger.Stats
	assert.Equal(t, f.get(t, "/api/v1/stats", &stats), http.StatusOK)
	assert.Equal(t, stats.Transfers, 2)
	assert.Equal(t, stats.Completed, 1)
	assert.Equal(t, stats.Unfinished, 1)
}

func TestPoolStatus_NotConfigured(t *testing.T) {
	f := setup(t, false)
	assert.Equal(t, f.get(t, "/api/v1/pool/0x00000000000000000000000000000000000000aa?source=chain-a&destination=mainnet", nil), http.StatusNotFound)
}

func TestPoolStatus_WatchesAddress(t *testing.T) {
	f := setup(t, true)
	const address = "0x00000000000000000000000000000000000000aa"

	var status models.GasReserveStatus
	assert.Equal(t, f.get(t, "/api/v1/pool/"+address+"?source=mainnet&destination=chain-a", &status), http.StatusOK)
	assert.True(t, status.ExitGasOK)
	assert.Equal(t, status.SourceChain, "mainnet")
	assert.True(t, f.runner.Running("pool:"+address))

	assert.Equal(t, f.get(t, "/api/v1/pool/not-an-address?source=mainnet&destination=chain-a", nil), http.StatusBadRequest)
	assert.Equal(t, f.get(t, "/api/v1/pool/"+address, nil), http.StatusBadRequest)

	assert.NoError(t, f.server.Shutdown(context.Background()))
	assert.False(t, f.runner.Running("pool:"+address))
}

func TestPoolStatus_ReplacedWatcherDoesNotOverwrite(t *testing.T) {
	poolAddr := common.HexToAddress("0xc0")
	f := setupWith(t, options{
		pool:      true,
		contracts: map[string]chain.Contracts{"mainnet": {CommunityPool: poolAddr}},
		refresh:   5 * time.Millisecond,
	})
	const address = "0x00000000000000000000000000000000000000aa"

	var armed atomic.Bool
	entered := make(chan struct{})
	release := make(chan struct{})
	mainnet := f.net.Chain("mainnet")
	mainnet.Handle(poolAddr, chain.CommunityPoolABI, "getBalance", func([]any) ([]any, error) {
		if armed.CompareAndSwap(true, false) {
			close(entered)
			<-release
		}
		return []any{big.NewInt(1)}, nil
	})
	mainnet.Handle(poolAddr, chain.CommunityPoolABI, "checkUserBalance", func([]any) ([]any, error) {
		return []any{true}, nil
	})
	mainnet.Handle(poolAddr, chain.CommunityPoolABI, "getRecommendedRechargeAmount", func([]any) ([]any, error) {
		return []any{big.NewInt(0)}, nil
	})

	exitPath := "/api/v1/pool/" + address + "?source=chain-a&destination=mainnet"
	assert.Equal(t, f.get(t, exitPath, nil), http.StatusOK)

	// hold the exit watcher inside a refresh, then switch the address to another pair
	armed.Store(true)
	<-entered
	done := make(chan int)
	go func() {
		resp, err := http.Get(f.srv.URL + "/api/v1/pool/" + address + "?source=mainnet&destination=chain-a")
		if err != nil {
			done <- 0
			return
		}
		resp.Body.Close()
		done <- resp.StatusCode
	}()
	time.Sleep(20 * time.Millisecond)
	close(release)
	assert.Equal(t, <-done, http.StatusOK)

	// the late refresh of the exit pair must not be served as the watched status
	before := mainnet.Reads()
	var status models.GasReserveStatus
	assert.Equal(t, f.get(t, exitPath, &status), http.StatusOK)
	assert.Equal(t, status.SourceChain, "chain-a")
	assert.True(t, mainnet.Reads() > before)
}

func TestPoolStatus_NoPoolContract(t *testing.T) {
	f := setup(t, true)
	code := f.get(t, "/api/v1/pool/0x00000000000000000000000000000000000000aa?source=chain-a&destination=mainnet", nil)
	assert.Equal(t, code, http.StatusNotFound)
}

func TestProgressStream_FiltersByAddress(t *testing.T) {
	f := setup(t, false)

	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/api/v1/progress/stream?address=0xAA"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	assert.NoError(t, err)
	defer conn.Close()

	f.bus.Emit(models.ProgressEvent{ActionName: "Wrap", ActionState: models.StateInit, Address: "0xbb"})
	f.bus.Emit(models.ProgressEvent{ActionName: "Wrap", ActionState: models.StateWrapDone, Address: "0xaa", TxHash: "0x01"})

	assert.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var e models.ProgressEvent
	assert.NoError(t, conn.ReadJSON(&e))
	assert.Equal(t, e.Address, "0xaa")
	assert.Equal(t, e.ActionState, models.StateWrapDone)
	assert.Equal(t, e.TxHash, "0x01")
}

func (f *fixture) post(t *testing.T, path, body string, out any) int {
	t.Helper()
	resp, err := http.Post(f.srv.URL+path, "application/json", strings.NewReader(body))
	assert.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		assert.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestSession_NotMountedWithoutOperator(t *testing.T) {
	f := setup(t, false)
	assert.Equal(t, f.get(t, "/api/v1/session", nil), http.StatusNotFound)
}

func TestSession_SelectAndCheck(t *testing.T) {
	f := setupWith(t, options{session: true})

	var state struct {
		Address    string                `json:"address"`
		TransferID string                `json:"transfer_id"`
		Plan       []models.StepMetadata `json:"plan"`
		Current    int                   `json:"current"`
		Done       bool                  `json:"done"`
	}
	assert.Equal(t, f.get(t, "/api/v1/session", &state), http.StatusOK)
	assert.Equal(t, state.Address, operatorAddress.Hex())
	assert.Equal(t, len(state.Plan), 0)

	var errBody map[string]string
	assert.Equal(t, f.post(t, "/api/v1/session/check", "", &errBody), http.StatusConflict)
	assert.Equal(t, errBody["error"], transfer.ErrNoPlan.Error())

	assert.Equal(t, f.post(t, "/api/v1/session/select", "{", nil), http.StatusBadRequest)
	assert.Equal(t, f.post(t, "/api/v1/session/select",
		`{"chain_name_1":"chain-a","chain_name_2":"mainnet","token":"dai","amount":"1"}`, nil), http.StatusNotFound)
	assert.Equal(t, f.post(t, "/api/v1/session/select",
		`{"chain_name_1":"chain-a","chain_name_2":"chain-z","token":"usdc","amount":"1"}`, nil), http.StatusNotFound)

	assert.Equal(t, f.post(t, "/api/v1/session/select",
		`{"chain_name_1":"chain-a","chain_name_2":"mainnet","token":"usdc","amount":"1"}`, &state), http.StatusOK)
	assert.Equal(t, len(state.Plan), 2)
	assert.Equal(t, state.Plan[0].Type, models.ActionWrap)
	assert.Equal(t, state.Current, 0)
	assert.False(t, state.Done)
}

func TestSession_UnwrapUnknownChain(t *testing.T) {
	f := setupWith(t, options{session: true})
	assert.Equal(t, f.post(t, "/api/v1/session/unwrap?chain=chain-z", "", nil), http.StatusNotFound)
}

func TestSession_ExecuteFailureIsReported(t *testing.T) {
	f := setupWith(t, options{session: true, sendErr: wallet.ErrRejected})

	assert.Equal(t, f.post(t, "/api/v1/session/select",
		`{"chain_name_1":"chain-a","chain_name_2":"mainnet","token":"usdc","amount":"1"}`, nil), http.StatusOK)
	assert.Equal(t, f.post(t, "/api/v1/session/execute", "", nil), http.StatusAccepted)

	var state struct {
		Current   int  `json:"current"`
		Running   bool `json:"running"`
		LastError *struct {
			Task     string `json:"task"`
			Message  string `json:"message"`
			Rejected bool   `json:"rejected"`
			Pending  bool   `json:"pending"`
		} `json:"last_error"`
	}
	deadline := time.Now().Add(2 * time.Second)
	for {
		assert.Equal(t, f.get(t, "/api/v1/session", &state), http.StatusOK)
		if !state.Running && state.LastError != nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("session task did not finish")
		}
		time.Sleep(5 * time.Millisecond)
	}
	assert.Equal(t, state.LastError.Task, "execute")
	assert.Equal(t, state.LastError.Message, "Transaction was rejected by the user")
	assert.True(t, state.LastError.Rejected)
	assert.False(t, state.LastError.Pending)
	assert.Equal(t, state.Current, 0)
}

func TestProgressStream_DoesNotHoldThrottleSlot(t *testing.T) {
	f := setupWith(t, options{maxConcurrent: 1})

	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/api/v1/progress/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	assert.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, f.get(t, "/api/v1/chains", nil), http.StatusOK)
	assert.Equal(t, f.get(t, "/api/v1/stats", nil), http.StatusOK)
}
