package selector

import (
	"fmt"
	"math/rand"

	"github.com/studiowebux/execbench/internal/catalog"
	"github.com/studiowebux/execbench/internal/types"
)

// ErrEmptyCatalog is returned when random selection has nothing to draw from
var ErrEmptyCatalog = &types.ConfigurationError{
	Field:  "catalog",
	Reason: "uniform-random-one selection needs at least one test case",
}

// ParsePolicy converts a policy name into a SelectionPolicy
func ParsePolicy(s string) (types.SelectionPolicy, error) {
	switch types.SelectionPolicy(s) {
	case types.PolicyAllInOrder, types.PolicyUniformRandomOne:
		return types.SelectionPolicy(s), nil
	}
	return "", types.NewConfigurationError("policy",
		fmt.Sprintf("unknown selection policy %q (use %s or %s)", s, types.PolicyAllInOrder, types.PolicyUniformRandomOne))
}

// Validate checks that policy can select from cat; called once before the run starts
func Validate(cat *catalog.Catalog, policy types.SelectionPolicy) error {
	if _, err := ParsePolicy(string(policy)); err != nil {
		return err
	}
	if policy == types.PolicyUniformRandomOne && cat.Len() == 0 {
		return ErrEmptyCatalog
	}
	return nil
}

// Select returns the cases one iteration runs.
// rng must not be shared between goroutines.
func Select(cat *catalog.Catalog, policy types.SelectionPolicy, rng *rand.Rand) ([]types.TestCase, error) {
	switch policy {
	case types.PolicyAllInOrder:
		return cat.Cases(), nil
	case types.PolicyUniformRandomOne:
		if cat.Len() == 0 {
			return nil, ErrEmptyCatalog
		}
		return []types.TestCase{cat.At(rng.Intn(cat.Len()))}, nil
	}
	_, err := ParsePolicy(string(policy))
	return nil, err
}

// NewRand returns a per-actor source; actor offsets the seed so actors draw independently
func NewRand(seed int64, actor int) *rand.Rand {
	return rand.New(rand.NewSource(seed + int64(actor)*7919))
}
