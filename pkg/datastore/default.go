package datastore

import (
	_ "embed"

	"github.com/getmockd/chaoskit/pkg/policy"
)

//go:embed default.yaml
var defaultPolicy []byte

// DefaultPolicy returns the default policy document source.
func DefaultPolicy() []byte {
	return append([]byte(nil), defaultPolicy...)
}

// DefaultDocument decodes the default policy.
func DefaultDocument() (policy.Document, error) {
	return policy.Parse(defaultPolicy)
}

// DefaultConfig hydrates the default policy, checking its labels against
// DefaultRegistry.
func DefaultConfig(opts ...policy.HydrateOption) (*policy.ChaosConfig, error) {
	doc, err := DefaultDocument()
	if err != nil {
		return nil, err
	}
	opts = append([]policy.HydrateOption{policy.WithLabelCheck(DefaultRegistry().Check)}, opts...)
	return policy.Hydrate(doc, opts...)
}
