package web3

import (
	"strings"

	xerrors "OpenMCP-EVM/internal/errors"

	"github.com/sahilm/fuzzy"
)

// ErrUnknownNetwork is returned when a network key matches no configured chain.
var ErrUnknownNetwork = xerrors.New(xerrors.CodeUnknownNetwork, "unknown network")

// Resolve is Lookup with the UNKNOWN_NETWORK error attached. The error carries
// up to three close names under the "suggestions" metadata key.
func (n *Networks) Resolve(key string) (Network, error) {
	if network, ok := n.Lookup(key); ok {
		return network, nil
	}
	opts := []xerrors.Option{xerrors.WithMetadata("network", key)}
	if suggestions := n.Suggest(key, 3); len(suggestions) > 0 {
		opts = append(opts, xerrors.WithMetadata("suggestions", strings.Join(suggestions, ",")))
	}
	return Network{}, xerrors.New(xerrors.CodeUnknownNetwork, "unknown network: "+key, opts...)
}

// Suggest returns up to limit configured names that fuzzily match key.
func (n *Networks) Suggest(key string, limit int) []string {
	key = normalizeKey(key)
	if key == "" || n == nil {
		return nil
	}
	candidates := n.Names()
	for alias := range n.aliases {
		candidates = append(candidates, alias)
	}
	matches := fuzzy.Find(key, candidates)
	seen := make(map[string]struct{}, limit)
	var out []string
	for _, match := range matches {
		name := match.Str
		if canonical, ok := n.aliases[name]; ok {
			name = canonical
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
		if len(out) == limit {
			break
		}
	}
	return out
}
