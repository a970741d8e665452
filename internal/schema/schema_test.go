package schema

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const testABI = `[
	{"type":"function","name":"currentPrice","stateMutability":"view","inputs":[],"outputs":[{"type":"uint256"}]},
	{"type":"function","name":"paused","stateMutability":"view","inputs":[],"outputs":[{"type":"bool"}]},
	{"type":"function","name":"bucketDepth","stateMutability":"view","inputs":[],"outputs":[{"type":"uint8"}]},
	{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"type":"address"}],"outputs":[{"type":"uint256"}]},
	{"type":"function","name":"owner","stateMutability":"view","inputs":[],"outputs":[{"type":"address"}]},
	{"type":"function","name":"batches","stateMutability":"view","inputs":[],"outputs":[{"type":"uint256"},{"type":"uint256"}]},
	{"type":"function","name":"setPrice","stateMutability":"nonpayable","inputs":[],"outputs":[{"type":"uint256"}]},
	{"type":"event","name":"PriceUpdate","inputs":[{"name":"price","type":"uint256","indexed":false}]}
]`

func TestScalarFunctions(t *testing.T) {
	parsed, err := abi.JSON(strings.NewReader(testABI))
	if err != nil {
		t.Fatalf("parse abi: %v", err)
	}

	methods := ScalarFunctions(parsed)

	got := make([]string, 0, len(methods))
	for _, method := range methods {
		got = append(got, method.Name)
	}

	// balanceOf takes an input, owner returns an address, batches returns
	// two values, setPrice mutates. Only zero-arg view functions with a
	// single numeric or bool output qualify, sorted by name.
	want := []string{"bucketDepth", "currentPrice", "paused"}
	if len(got) != len(want) {
		t.Fatalf("scalar functions mismatch: %v != %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("scalar functions mismatch: %v != %v", got, want)
		}
	}
}

func TestIsScalarOutput(t *testing.T) {
	parsed, err := abi.JSON(strings.NewReader(testABI))
	if err != nil {
		t.Fatalf("parse abi: %v", err)
	}

	cases := []struct {
		method string
		want   bool
	}{
		{"currentPrice", true},
		{"paused", true},
		{"bucketDepth", true},
		{"owner", false},
		{"batches", false},
	}
	for _, tc := range cases {
		method := parsed.Methods[tc.method]
		if got := IsScalarOutput(method.Outputs); got != tc.want {
			t.Fatalf("IsScalarOutput(%s) = %v, want %v", tc.method, got, tc.want)
		}
	}
}

func TestRegistryLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "priceoracle_gnosis.json")
	if err := os.WriteFile(path, []byte(testABI), 0o644); err != nil {
		t.Fatalf("write abi file: %v", err)
	}

	registry := NewRegistry(dir)

	parsed, err := registry.Load("priceoracle", "gnosis")
	if err != nil {
		t.Fatalf("load abi: %v", err)
	}
	if _, ok := parsed.Methods["currentPrice"]; !ok {
		t.Fatalf("expected currentPrice method in parsed abi")
	}

	// Second load hits the cache even if the file disappears.
	if err := os.Remove(path); err != nil {
		t.Fatalf("remove abi file: %v", err)
	}
	if _, err := registry.Load("priceoracle", "gnosis"); err != nil {
		t.Fatalf("cached load: %v", err)
	}
}

func TestRegistryLoadMissing(t *testing.T) {
	registry := NewRegistry(t.TempDir())
	if _, err := registry.Load("staking", "sepolia"); err == nil {
		t.Fatalf("expected error for missing abi file")
	}
}
