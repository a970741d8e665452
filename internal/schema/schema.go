package schema

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Registry loads contract ABIs from local files named
// <contract-key>_<chain-name>.json and caches the parsed result.
type Registry struct {
	dir string

	mu    sync.RWMutex
	cache map[string]abi.ABI
}

func NewRegistry(dir string) *Registry {
	return &Registry{dir: dir, cache: make(map[string]abi.ABI)}
}

// Load returns the parsed ABI for a contract key on a chain.
func (r *Registry) Load(contractKey, chainName string) (abi.ABI, error) {
	key := contractKey + "_" + chainName

	r.mu.RLock()
	parsed, ok := r.cache[key]
	r.mu.RUnlock()
	if ok {
		return parsed, nil
	}

	path := filepath.Join(r.dir, key+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return abi.ABI{}, fmt.Errorf("read abi %s: %w", path, err)
	}

	parsed, err = abi.JSON(strings.NewReader(string(data)))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("parse abi %s: %w", path, err)
	}

	r.mu.Lock()
	r.cache[key] = parsed
	r.mu.Unlock()

	return parsed, nil
}

// ScalarFunctions returns the zero-argument view/pure functions whose
// single output fits a gauge (unsigned/signed integer or bool), sorted by
// name for deterministic iteration.
func ScalarFunctions(parsed abi.ABI) []abi.Method {
	methods := make([]abi.Method, 0, len(parsed.Methods))
	for _, method := range parsed.Methods {
		if !method.IsConstant() {
			continue
		}
		if len(method.Inputs) > 0 {
			continue
		}
		if !IsScalarOutput(method.Outputs) {
			continue
		}
		methods = append(methods, method)
	}

	sort.Slice(methods, func(i, j int) bool {
		return methods[i].Name < methods[j].Name
	})
	return methods
}

// IsScalarOutput reports whether the output list is a single value
// representable as a gauge.
func IsScalarOutput(outputs abi.Arguments) bool {
	if len(outputs) != 1 {
		return false
	}
	switch outputs[0].Type.T {
	case abi.UintTy, abi.IntTy, abi.BoolTy:
		return true
	default:
		return false
	}
}
