package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/skalenetwork/portal-sub000/portal/action"
	"github.com/skalenetwork/portal-sub000/portal/chain"
	"github.com/skalenetwork/portal-sub000/portal/config"
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

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Logger()

	rpc.SetLogger(log)
	action.SetLogger(log)
	chain.SetLogger(log)
	ledger.SetLogger(log)
	network.SetLogger(log)
	pool.SetLogger(log)
	router.SetLogger(log)
	tasks.SetLogger(log)
	transfer.SetLogger(log)
	waiter.SetLogger(log)
	wallet.SetLogger(log)
}

// app is everything built from the configuration.
type app struct {
	cfg        *config.PortalConfig
	catalog    *chain.Catalog
	clients    *chain.Pool
	graph      *graph.Graph
	planner    *router.Planner
	enforcer   *network.Enforcer
	accountant *pool.Accountant
	ledger     *ledger.Ledger
	bus        *progress.Bus
}

func main() {
	configPath := flag.String("config", "", "service config file, PORTAL_* env vars are used when empty")
	connections := flag.String("connections", "", "connectivity config path or go-getter source, overrides connections_source")

	// one-shot transfer mode, signs with PORTAL_PRIVATE_KEY
	token := flag.String("token", "", "token keyname to transfer")
	from := flag.String("from", "", "source chain")
	to := flag.String("to", "", "destination chain")
	amount := flag.String("amount", "", "amount in token units")
	tokenID := flag.String("token-id", "", "token id for ERC721 and ERC1155")
	unwrapOn := flag.String("unwrap-all", "", "unwrap every wrapped balance on this chain and exit")
	flag.Parse()

	var path *string
	if *configPath != "" {
		path = configPath
	}
	cfg, err := config.LoadPortalConfig(path)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load service config")
	}
	if *connections != "" {
		cfg.ConnectionsSource = *connections
	}

	a, err := build(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build portal")
	}
	defer a.clients.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch {
	case *unwrapOn != "":
		if err := a.unwrapAll(ctx, *unwrapOn); err != nil {
			log.Fatal().Err(err).Msg("Unwrap failed")
		}
	case *token != "":
		if err := a.runTransfer(ctx, transfer.Selection{Chain1: *from, Chain2: *to, Amount: *amount, TokenID: *tokenID}, *token); err != nil {
			log.Fatal().Str("reason", action.Describe(err)).Err(err).Msg("Transfer failed")
		}
	default:
		a.serve(ctx)
	}
}

func build(cfg *config.PortalConfig) (*app, error) {
	loader := config.NewConnectionsLoader()
	conns, err := loader.Load(cfg.ConnectionsSource)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(conns).Err(); err != nil {
		return nil, err
	}
	catalog, err := loader.ConvertToCatalog(conns)
	if err != nil {
		return nil, err
	}
	tokens, err := loader.ConvertToTokens(conns)
	if err != nil {
		return nil, err
	}
	g, err := graph.New(conns.Mainnet, catalog.Names(), tokens)
	if err != nil {
		return nil, err
	}
	clients, err := chain.NewPool(catalog, chain.DefaultFailoverConfig())
	if err != nil {
		return nil, err
	}
	log.Info().Int("chains", len(catalog.Names())).Int("tokens", len(tokens)).Msg("Loaded connectivity config")

	enforcer := network.NewEnforcer(catalog)
	enforcer.SwitchBackoff = time.Duration(cfg.NetworkSwitchBackoffMs) * time.Millisecond

	accountant := pool.NewAccountant(catalog, clients, enforcer, pool.Options{
		Multiplier:  cfg.Multiplier(),
		MinRecharge: cfg.MinRecharge(),
		Activation:  waiter.Options{Interval: time.Duration(cfg.WaitIntervalSeconds) * time.Second, MaxIterations: cfg.RechargeMaxIterations},
	})

	return &app{
		cfg:        cfg,
		catalog:    catalog,
		clients:    clients,
		graph:      g,
		planner:    router.NewPlanner(conns.Mainnet),
		enforcer:   enforcer,
		accountant: accountant,
		ledger:     ledger.New(),
		bus:        progress.NewBus(),
	}, nil
}

func (a *app) waitOptions() waiter.Options {
	return waiter.Options{
		Interval:      time.Duration(a.cfg.WaitIntervalSeconds) * time.Second,
		MaxIterations: a.cfg.WaitMaxIterations,
	}
}

func (a *app) serve(ctx context.Context) {
	runner := tasks.NewRunner(ctx)
	defer runner.StopAll()

	svc := rpc.Services{
		Graph:   a.graph,
		Planner: a.planner,
		Ledger:  a.ledger,
		Bus:     a.bus,
		Pool:    a.accountant,
		Tasks:   runner,
	}
	if os.Getenv("PORTAL_PRIVATE_KEY") != "" {
		s, err := a.session(a.bus)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create operator session")
		}
		svc.Session = s
		log.Info().Str("address", s.Address().Hex()).Msg("Operator session enabled")
	}

	server, err := rpc.NewServer(ctx, buildServerConfig(a.cfg), svc)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create server")
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("Received shutdown signal")
	case err := <-errCh:
		log.Error().Err(err).Msg("Server error")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Shutdown error")
	}
	a.bus.Close()
}

// session builds a transfer session signing with the local key from PORTAL_PRIVATE_KEY.
// Progress goes to the log, the metrics and sink.
func (a *app) session(sink progress.Sink) (*transfer.Session, error) {
	key := os.Getenv("PORTAL_PRIVATE_KEY")
	if key == "" {
		return nil, errors.New("PORTAL_PRIVATE_KEY is required for transfers")
	}
	signer, err := wallet.NewLocalSigner(key, nil)
	if err != nil {
		return nil, err
	}
	logEvents := progress.SinkFunc(func(e models.ProgressEvent) {
		ev := log.Info().Str("action", e.ActionName).Str("state", string(e.ActionState))
		if e.TxHash != "" {
			ev = ev.Str("tx", e.TxHash)
		}
		ev.Msg("Progress")
	})
	return transfer.New(a.planner, a.graph, a.ledger, action.Deps{
		Catalog:  a.catalog,
		Clients:  a.clients,
		Wallet:   signer,
		Enforcer: a.enforcer,
		Sink:     progress.Multi(logEvents, rpc.MetricsSink(), sink),
		Wait:     a.waitOptions(),
	}), nil
}

func (a *app) runTransfer(ctx context.Context, sel transfer.Selection, keyname string) error {
	t, err := a.graph.Token(keyname)
	if err != nil {
		return err
	}
	sel.Token = t

	s, err := a.session(progress.Discard)
	if err != nil {
		return err
	}
	steps := s.Select(sel)
	if len(steps) == 0 {
		return transfer.ErrNoPlan
	}
	for i, step := range steps {
		log.Info().Int("step", i+1).Int("of", len(steps)).Str("type", string(step.Type)).Msg(step.Headline)
	}

	if sel.Chain2 == a.catalog.Mainnet() {
		status, err := a.accountant.ComputeStatus(ctx, s.Address(), sel.Chain1, sel.Chain2)
		if err != nil && !errors.Is(err, pool.ErrNoPool) {
			return err
		}
		if err == nil && !status.ExitGasOK {
			log.Warn().
				Str("recommended_wei", status.RecommendedRecharge.String()).
				Msg("Community pool needs a recharge before exiting to mainnet")
		}
	}

	for !s.Done() {
		res, err := s.Check(ctx)
		if err != nil {
			return err
		}
		if !res.OK {
			return errors.New(res.Message)
		}
		if err := s.ExecuteCurrent(ctx); err != nil {
			return err
		}
	}
	log.Info().Str("transfer", s.TransferID()).Msg("Transfer complete")
	return nil
}

func (a *app) unwrapAll(ctx context.Context, chainName string) error {
	s, err := a.session(progress.Discard)
	if err != nil {
		return err
	}
	results, err := s.UnwrapAll(ctx, chainName)
	for _, r := range results {
		log.Info().Str("token", r.Keyname).Str("amount", r.Amount).Msg("Unwrapped")
	}
	return err
}

// buildServerConfig converts the loaded PortalConfig to rpc.ServerConfig
func buildServerConfig(cfg *config.PortalConfig) *rpc.ServerConfig {
	serverConfig := &rpc.ServerConfig{
		Address:        cfg.Host + ":" + strconv.Itoa(cfg.Port),
		AllowedOrigins: cfg.AllowedOrigins,
		EnableMetrics:  cfg.UsePrometheus,
		PoolRefresh:    time.Duration(cfg.PoolRefreshSeconds) * time.Second,
	}
	if cfg.RatePerMinute > 0 {
		serverConfig.RatePerMinute = &cfg.RatePerMinute
	}
	if cfg.MaxConcurrentRequests > 0 {
		serverConfig.MaxConcurrentRequests = &cfg.MaxConcurrentRequests
	}

	if cfg.EnableTracing || cfg.EnableMetrics || cfg.EnableLogs || cfg.UsePrometheus {
		serverConfig.OTelConfig = &rpc.OTelConfig{
			ServiceName:     defaultString(cfg.ServiceName, "portal"),
			ServiceVersion:  defaultString(cfg.ServiceVersion, "1.0.0"),
			Environment:     defaultString(cfg.Environment, "development"),
			EnableTracing:   cfg.EnableTracing,
			UseOTLPTraces:   cfg.UseOTLPTraces,
			OTLPTracesURL:   cfg.OTLPTracesURL,
			EnableMetrics:   cfg.EnableMetrics,
			UsePrometheus:   cfg.UsePrometheus,
			UseOTLPMetrics:  cfg.UseOTLPMetrics,
			OTLPMetricsURL:  cfg.OTLPMetricsURL,
			EnableLogs:      cfg.EnableLogs,
			UseOTLPLogs:     cfg.UseOTLPLogs,
			OTLPLogsURL:     cfg.OTLPLogsURL,
			InsecureOTLP:    cfg.InsecureOTLP,
			DevelopmentMode: cfg.DevelopmentMode,
		}
	}
	return serverConfig
}

func defaultString(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
