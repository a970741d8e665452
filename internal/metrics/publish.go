package metrics

import (
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"go.uber.org/zap"
)

const jobName = "honeystats"

// MetricName builds a gauge name in the honeystats_<chain>_<Contract>_<suffix>
// convention. Spaces in the contract name are replaced with underscores.
func MetricName(chain, contract, suffix string) string {
	contract = strings.ReplaceAll(contract, " ", "_")
	return fmt.Sprintf("honeystats_%s_%s_%s", chain, contract, suffix)
}

// Publish pushes the finished registry to the Pushgateway. Failures are
// logged and swallowed: a lost cycle is republished from scratch on the
// next run, since every run builds a fresh registry.
func Publish(addr string, reg *prometheus.Registry, logger *zap.Logger) {
	if addr == "" {
		logger.Warn("pushgateway address not configured, skipping publish")
		return
	}
	if err := push.New(addr, jobName).Gatherer(reg).Push(); err != nil {
		logger.Warn("push to pushgateway failed", zap.String("addr", addr), zap.Error(err))
		return
	}
	logger.Info("metrics pushed", zap.String("addr", addr))
}
