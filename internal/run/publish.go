package run

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"honeystats/internal/gauges"
	"honeystats/internal/metrics"
	"honeystats/internal/scan"
	"honeystats/internal/stats"
)

var windowOrder = []stats.WindowKind{stats.AllTime, stats.Weekly, stats.Monthly}

// leaderboardSuffix names the gauge for a source kind and window kind.
func leaderboardSuffix(kind scan.Kind, window stats.WindowKind) string {
	subject, noun := "winner", "winnings"
	if kind == scan.Staking {
		subject, noun = "staker", "stake"
	}
	switch window {
	case stats.Weekly:
		return fmt.Sprintf("%s_weekly_%s", subject, noun)
	case stats.Monthly:
		return fmt.Sprintf("%s_monthly_%s", subject, noun)
	default:
		return fmt.Sprintf("%s_total_%s", subject, noun)
	}
}

// publishResults registers the leaderboard and staker gauges on the
// run's registry. Amounts are published in whole BZZ.
func (r *Runner) publishResults(reg *prometheus.Registry, results []*unitResult) {
	for _, res := range results {
		if res == nil {
			continue
		}

		for _, window := range windowOrder {
			entries := res.boards[window]
			if len(entries) == 0 {
				continue
			}

			vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: metrics.MetricName(res.src.Chain, res.src.ContractName, leaderboardSuffix(res.src.Kind, window)),
				Help: fmt.Sprintf("Top %d cumulative stake (%s) for %s", len(entries), window, res.src.ContractName),
			}, []string{"owner"})
			reg.MustRegister(vec)

			for rank, entry := range entries {
				value := gauges.ScaleBZZ(entry.Amount)
				vec.WithLabelValues(entry.Owner).Set(value)
				r.logger.Info("leaderboard entry",
					zap.String("chain", res.src.Chain),
					zap.String("source", string(res.src.Kind)),
					zap.String("window", string(window)),
					zap.Int("rank", rank+1),
					zap.String("owner", entry.Owner),
					zap.Float64("bzz", value),
				)
			}
		}

		if res.src.Kind == scan.Staking {
			count := prometheus.NewGauge(prometheus.GaugeOpts{
				Name: metrics.MetricName(res.src.Chain, res.src.ContractName, "staker_count"),
				Help: "Number of owners with a known committed stake",
			})
			reg.MustRegister(count)
			count.Set(float64(res.stakerCount))

			total := prometheus.NewGauge(prometheus.GaugeOpts{
				Name: metrics.MetricName(res.src.Chain, res.src.ContractName, "total_committed_stake"),
				Help: "Sum of last known committed stakes in BZZ",
			})
			reg.MustRegister(total)
			total.Set(gauges.ScaleBZZ(res.stakerTotal))
		}
	}
}

// writeSnapshots rewrites the per-chain weekly/monthly window snapshot
// files. They are observability artifacts only and are never read back.
func (r *Runner) writeSnapshots(results []*unitResult) {
	byChain := make(map[string]stats.WindowSnapshot)
	for _, res := range results {
		if res == nil {
			continue
		}
		snapshot, ok := byChain[res.src.Chain]
		if !ok {
			snapshot = stats.WindowSnapshot{
				Chain:   res.src.Chain,
				Sources: make(map[string]stats.SourceWindowTotals),
			}
		}
		snapshot.Sources[string(res.src.Kind)] = stats.SourceWindowTotals{
			Weekly:  stats.WindowTotals(res.agg.Weekly),
			Monthly: stats.WindowTotals(res.agg.Monthly),
		}
		byChain[res.src.Chain] = snapshot
	}

	chains := make([]string, 0, len(byChain))
	for chainKey := range byChain {
		chains = append(chains, chainKey)
	}
	sort.Strings(chains)

	for _, chainKey := range chains {
		path := filepath.Join(r.cfg.DataDir, fmt.Sprintf("windows_%s.json", chainKey))
		if err := stats.WriteSnapshot(path, byChain[chainKey]); err != nil {
			r.logger.Warn("write window snapshot failed", zap.String("chain", chainKey), zap.Error(err))
		}
	}
}

// mirror pushes leaderboards and scan progress into Postgres when a DSN
// is configured. Mirror failures never abort the run.
func (r *Runner) mirror(ctx context.Context, results []*unitResult) {
	if r.pg == nil {
		return
	}

	for _, res := range results {
		if res == nil {
			continue
		}
		for _, window := range windowOrder {
			err := r.pg.UpsertLeaderboard(ctx, res.src.Chain, string(res.src.Kind), window, res.boards[window])
			if err != nil {
				r.logger.Warn("mirror leaderboard failed",
					zap.String("chain", res.src.Chain),
					zap.String("source", string(res.src.Kind)),
					zap.Error(err),
				)
			}
		}
		if err := r.pg.SaveScanState(ctx, res.src.Chain, string(res.src.Kind), res.lastBlock); err != nil {
			r.logger.Warn("mirror scan state failed", zap.String("chain", res.src.Chain), zap.Error(err))
		}
	}
}
