package run

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"honeystats/internal/chain"
	"honeystats/internal/config"
	"honeystats/internal/gauges"
	"honeystats/internal/metrics"
	"honeystats/internal/scan"
	"honeystats/internal/schema"
	"honeystats/internal/storage/postgres"
)

// sourceBinding fixes the contract key, event, and field mapping for one
// source kind.
type sourceBinding struct {
	kind        scan.Kind
	contractKey string
	eventName   string
	ownerField  string
	amountField string
}

var sourceBindings = []sourceBinding{
	{scan.Redistribution, "redistribution", "WinnerSelected", "owner", "stake"},
	{scan.Staking, "staking", "StakeUpdated", "owner", "stakeAmount"},
}

// Runner drives the unbounded scan-aggregate-publish loop.
type Runner struct {
	cfg     config.Config
	schemas *schema.Registry
	pg      *postgres.Store
	logger  *zap.Logger
}

func NewRunner(cfg config.Config, pg *postgres.Store, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:     cfg,
		schemas: schema.NewRegistry(cfg.ABIDir),
		pg:      pg,
		logger:  logger,
	}
}

// Loop repeats full runs on the configured interval until the context is
// cancelled. No fault inside a run ever stops the loop.
func (r *Runner) Loop(ctx context.Context) error {
	interval := r.cfg.Interval
	if interval <= 0 {
		interval = time.Minute
	}

	for {
		r.RunOnce(ctx)
		r.logger.Info("run finished, waiting for next cycle", zap.Duration("interval", interval))

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// RunOnce executes one full cycle: concurrent scan units, a barrier join,
// the sequential read-only gauge phase, and the final push. The registry
// is rebuilt from scratch so a failed prior run never leaves stale series
// behind.
func (r *Runner) RunOnce(ctx context.Context) {
	now := time.Now()
	reg := prometheus.NewRegistry()
	tally := metrics.NewTally(reg)

	clients := r.dialChains(ctx, tally)
	defer func() {
		for _, client := range clients {
			client.Close()
		}
	}()

	units := r.buildUnits(clients, tally)

	results := make([]*unitResult, len(units))
	g, gctx := errgroup.WithContext(ctx)
	for i, u := range units {
		i, u := i, u
		g.Go(func() error {
			results[i] = u.process(gctx, now)
			return nil
		})
	}
	// Units never return errors; the join is a pure barrier.
	_ = g.Wait()

	if ctx.Err() != nil {
		return
	}

	r.publishResults(reg, results)
	r.writeSnapshots(results)
	r.collectScalars(ctx, reg, clients)
	r.mirror(ctx, results)

	metrics.Publish(r.cfg.PushgatewayAddr, reg, r.logger)
}

func (r *Runner) dialChains(ctx context.Context, tally *metrics.Tally) map[string]*chain.Client {
	clients := make(map[string]*chain.Client)
	for _, chainKey := range r.chainKeys() {
		chainCfg := r.cfg.Chains[chainKey]
		client, err := chain.NewClient(ctx, chainCfg.RPCURL)
		if err != nil {
			r.logger.Warn("connect rpc failed",
				zap.String("chain", chainKey),
				zap.String("rpc", chainCfg.RPCURL),
				zap.Error(err),
			)
			tally.Add(chainKey, metrics.ErrGetEvents)
			continue
		}
		clients[chainKey] = client
	}
	return clients
}

func (r *Runner) buildUnits(clients map[string]*chain.Client, tally *metrics.Tally) []*unit {
	var units []*unit
	for _, chainKey := range r.chainKeys() {
		client, ok := clients[chainKey]
		if !ok {
			continue
		}
		chainCfg := r.cfg.Chains[chainKey]

		for _, binding := range sourceBindings {
			src, err := r.buildSource(chainKey, chainCfg, binding)
			if err != nil {
				r.logger.Warn("build source failed",
					zap.String("chain", chainKey),
					zap.String("source", string(binding.kind)),
					zap.Error(err),
				)
				continue
			}
			units = append(units, &unit{
				src:       src,
				scanner:   scan.NewScanner(client, tally, r.logger, r.cfg.ChunkSize),
				dataDir:   r.cfg.DataDir,
				retention: r.cfg.Retention(),
				topN:      r.cfg.TopN,
				tally:     tally,
				logger:    r.logger,
			})
		}
	}
	return units
}

func (r *Runner) buildSource(chainKey string, chainCfg config.ChainConfig, binding sourceBinding) (scan.Source, error) {
	contractCfg, ok := chainCfg.Contracts[binding.contractKey]
	if !ok {
		return scan.Source{}, fmt.Errorf("contract %q not configured", binding.contractKey)
	}
	if !common.IsHexAddress(contractCfg.Address) {
		return scan.Source{}, fmt.Errorf("invalid address for %q: %s", binding.contractKey, contractCfg.Address)
	}

	parsed, err := r.schemas.Load(binding.contractKey, chainKey)
	if err != nil {
		return scan.Source{}, err
	}
	event, ok := parsed.Events[binding.eventName]
	if !ok {
		return scan.Source{}, fmt.Errorf("event %q missing from %s abi", binding.eventName, binding.contractKey)
	}

	return scan.Source{
		Chain:        chainKey,
		ContractName: contractCfg.Name,
		Address:      common.HexToAddress(contractCfg.Address),
		Event:        event,
		OwnerField:   binding.ownerField,
		AmountField:  binding.amountField,
		DeployBlock:  contractCfg.DeployBlock,
		Kind:         binding.kind,
	}, nil
}

func (r *Runner) collectScalars(ctx context.Context, reg *prometheus.Registry, clients map[string]*chain.Client) {
	for _, chainKey := range r.chainKeys() {
		client, ok := clients[chainKey]
		if !ok {
			continue
		}
		chainCfg := r.cfg.Chains[chainKey]
		r.logger.Info("querying contracts", zap.String("chain", chainCfg.Name))

		collector := gauges.NewCollector(client, r.schemas, r.logger)
		collector.Collect(ctx, reg, chainKey, contractList(chainCfg))
	}
}

func (r *Runner) chainKeys() []string {
	keys := make([]string, 0, len(r.cfg.Chains))
	for key := range r.cfg.Chains {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func contractList(chainCfg config.ChainConfig) []gauges.Contract {
	keys := make([]string, 0, len(chainCfg.Contracts))
	for key := range chainCfg.Contracts {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	contracts := make([]gauges.Contract, 0, len(keys))
	for _, key := range keys {
		cfg := chainCfg.Contracts[key]
		if !common.IsHexAddress(cfg.Address) {
			continue
		}
		contracts = append(contracts, gauges.Contract{
			Key:     key,
			Name:    cfg.Name,
			Address: common.HexToAddress(cfg.Address),
		})
	}
	return contracts
}
