package gauges

import (
	"context"
	"fmt"
	"math/big"
	"reflect"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"honeystats/internal/metrics"
	"honeystats/internal/schema"
)

// Caller invokes a read-only contract function.
type Caller interface {
	CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error)
}

// Contract is one scrape target on a chain.
type Contract struct {
	Key     string
	Name    string
	Address common.Address
}

// Collector scrapes every zero-argument scalar view function of the
// configured contracts into gauges on the run's registry. This phase is
// read-only and strictly sequential, after all scan units have joined.
type Collector struct {
	caller  Caller
	schemas *schema.Registry
	logger  *zap.Logger
}

func NewCollector(caller Caller, schemas *schema.Registry, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{caller: caller, schemas: schemas, logger: logger}
}

// Collect scrapes all contracts of one chain. Every failure is logged and
// skipped; a contract that cannot be scraped just misses its gauges for
// this cycle.
func (c *Collector) Collect(ctx context.Context, reg *prometheus.Registry, chain string, contracts []Contract) {
	for _, contract := range contracts {
		parsed, err := c.schemas.Load(contract.Key, chain)
		if err != nil {
			c.logger.Warn("load abi failed",
				zap.String("chain", chain),
				zap.String("contract", contract.Name),
				zap.Error(err),
			)
			continue
		}

		if method, ok := parsed.Methods["winner"]; ok {
			c.collectWinner(ctx, reg, chain, contract, parsed, method)
		}

		for _, method := range schema.ScalarFunctions(parsed) {
			c.collectScalar(ctx, reg, chain, contract, parsed, method)
		}
	}
}

func (c *Collector) collectScalar(
	ctx context.Context,
	reg *prometheus.Registry,
	chain string,
	contract Contract,
	parsed abi.ABI,
	method abi.Method,
) {
	values, err := c.call(ctx, contract.Address, parsed, method.Name)
	if err != nil {
		c.logger.Warn("contract call failed",
			zap.String("chain", chain),
			zap.String("contract", contract.Name),
			zap.String("function", method.Name),
			zap.Error(err),
		)
		return
	}
	if len(values) != 1 {
		return
	}

	value, ok := toFloat(values[0])
	if !ok {
		return
	}

	if IsBZZDenominated(contract.Name, method.Name) {
		if amount, isInt := values[0].(*big.Int); isInt {
			value = ScaleBZZ(amount)
		}
	}

	if contract.Name == "PriceOracle" && method.Name == "currentPrice" {
		value = c.applyPriceBase(ctx, contract, parsed, value)
	}

	gauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: metrics.MetricName(chain, contract.Name, method.Name),
		Help: fmt.Sprintf("Value of %s for %s", method.Name, contract.Name),
	})
	reg.MustRegister(gauge)
	gauge.Set(value)
}

// applyPriceBase divides currentPrice by priceBase when the oracle
// exposes a non-zero base.
func (c *Collector) applyPriceBase(ctx context.Context, contract Contract, parsed abi.ABI, price float64) float64 {
	values, err := c.call(ctx, contract.Address, parsed, "priceBase")
	if err != nil {
		c.logger.Warn("priceBase call failed", zap.String("contract", contract.Name), zap.Error(err))
		return price
	}
	if len(values) != 1 {
		return price
	}
	base, ok := toFloat(values[0])
	if !ok || base <= 0 {
		return price
	}
	return price / base
}

func (c *Collector) collectWinner(
	ctx context.Context,
	reg *prometheus.Registry,
	chain string,
	contract Contract,
	parsed abi.ABI,
	method abi.Method,
) {
	values, err := c.call(ctx, contract.Address, parsed, method.Name)
	if err != nil {
		c.logger.Warn("winner call failed",
			zap.String("chain", chain),
			zap.String("contract", contract.Name),
			zap.Error(err),
		)
		return
	}

	values = flattenTuple(values)
	if len(values) < 5 {
		return
	}

	overlay, ok := values[0].([32]byte)
	if !ok {
		return
	}
	owner, ok := values[1].(common.Address)
	if !ok {
		return
	}
	depth, depthOK := toFloat(values[2])
	stake, stakeOK := values[3].(*big.Int)
	density, densityOK := values[4].(*big.Int)
	if !depthOK || !stakeOK || !densityOK {
		return
	}

	// An empty winner slot comes back as zero values between rounds.
	if owner == (common.Address{}) || stake.Sign() == 0 {
		return
	}

	fields := map[string]float64{
		"winner_depth":         depth,
		"winner_stake":         ScaleBZZ(stake),
		"winner_stake_density": ScaleBZZ(density),
	}
	for suffix, value := range fields {
		vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: metrics.MetricName(chain, contract.Name, suffix),
			Help: fmt.Sprintf("Current round %s for %s", suffix, contract.Name),
		}, []string{"overlay", "owner"})
		reg.MustRegister(vec)
		vec.WithLabelValues(fmt.Sprintf("%x", overlay), owner.Hex()).Set(value)
	}
}

func (c *Collector) call(ctx context.Context, to common.Address, parsed abi.ABI, name string) ([]interface{}, error) {
	data, err := parsed.Pack(name)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", name, err)
	}
	raw, err := c.caller.CallContract(ctx, to, data)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", name, err)
	}
	values, err := parsed.Unpack(name, raw)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", name, err)
	}
	return values, nil
}

// flattenTuple expands a single struct return value into its fields, so
// ABIs declaring winner() as one tuple and ABIs declaring flattened
// outputs decode the same way.
func flattenTuple(values []interface{}) []interface{} {
	if len(values) != 1 {
		return values
	}
	v := reflect.ValueOf(values[0])
	if v.Kind() != reflect.Struct {
		return values
	}
	out := make([]interface{}, 0, v.NumField())
	for i := 0; i < v.NumField(); i++ {
		out = append(out, v.Field(i).Interface())
	}
	return out
}

// toFloat converts a decoded scalar into a gauge value. Booleans map to
// 0/1 like the upstream exporter.
func toFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case *big.Int:
		f, _ := new(big.Float).SetInt(v).Float64()
		return f, true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}
