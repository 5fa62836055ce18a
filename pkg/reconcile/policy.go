package reconcile

import "strings"

// SyncedTraitPolicy is the normalized set of trait names the operator has
// configured to sync alongside audience membership. Derived once per
// batch from settings.
type SyncedTraitPolicy map[string]struct{}

// NormalizePolicy builds a SyncedTraitPolicy from the raw setting values:
// each name is trimmed, lowercased, and spaces are replaced with
// underscores so the names line up with trait keys.
func NormalizePolicy(syncedTraits []string) SyncedTraitPolicy {
	policy := make(SyncedTraitPolicy, len(syncedTraits))
	for _, name := range syncedTraits {
		normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
		if normalized == "" {
			continue
		}
		policy[normalized] = struct{}{}
	}
	return policy
}

// Contains reports whether name is configured to sync.
func (p SyncedTraitPolicy) Contains(name string) bool {
	_, ok := p[name]
	return ok
}
