// Package reconcile maps one user's trait snapshot onto the Contact
// Store's custom-field schema. The reconciler is a pure function: same
// snapshot, schema and policies always produce the same record.
package reconcile

import (
	"strings"

	"github.com/audienceops/traitsync/pkg/contact"
	"github.com/audienceops/traitsync/pkg/profile"
	"github.com/audienceops/traitsync/pkg/syncerrors"
)

// Reconcile produces the destination-ready contact record for one user.
//
// Traits survive the filter pass only when they are configured to sync,
// reserved, or match the active audience name; everything else is dropped
// silently. Surviving non-reserved traits are then mapped to destination
// field identifiers by name. A trait that was requested (synced or
// audience) but has no identifier in the schema fails the whole
// reconciliation with an unmapped-field error naming the trait and its
// value; silent drops would be invisible data loss, so no partial record
// is ever produced. Reserved fields are not mapped; of them only the
// email is projected into the record today, forced to lowercase because
// the destination treats email case-insensitively.
func Reconcile(traits profile.TraitSnapshot, schema contact.FieldSchema, reserved contact.ReservedFieldSet, policy SyncedTraitPolicy) (*contact.Record, error) {
	audienceName, err := audienceName(traits)
	if err != nil {
		return nil, err
	}

	// Filter pass: keep traits matching at least one of the three policies
	filtered := make(map[string]any, len(traits))
	for name, value := range traits {
		if policy.Contains(name) || reserved.Contains(name) || name == audienceName {
			filtered[name] = value
		}
	}

	// Mapping pass: resolve destination identifiers for requested traits
	mapped := make(map[string]string, len(filtered))
	missing := map[string]any{}
	for name := range filtered {
		if !policy.Contains(name) && name != audienceName {
			continue
		}
		if reserved.Contains(name) {
			continue
		}

		id, ok := schema[name]
		if !ok || id == "" {
			missing[name] = filtered[name]
			continue
		}
		mapped[name] = id
	}

	// Validation gate: a requested trait with no destination field stops
	// the whole reconciliation
	if len(missing) > 0 {
		return nil, syncerrors.NewUnmappedFields(missing)
	}

	customFields := make(map[string]any, len(mapped))
	for name, id := range mapped {
		customFields[id] = CoerceValue(filtered[name])
	}

	record := &contact.Record{CustomFields: customFields}
	if email, ok := filtered["email"].(string); ok && email != "" {
		record.Email = strings.ToLower(email)
	}

	return record, nil
}

// audienceName extracts the active audience name from the synthetic
// audience trait. A snapshot without the trait has no active audience;
// a malformed trait (not a mapping, or not exactly one entry) is a hard
// error rather than an arbitrary key pick.
func audienceName(traits profile.TraitSnapshot) (string, error) {
	raw, ok := traits[profile.AudienceTraitName]
	if !ok {
		return "", nil
	}

	membership, ok := raw.(map[string]any)
	if !ok {
		return "", syncerrors.NewValidationf("audience trait must be a mapping of audience name to membership value, got %T", raw)
	}
	if len(membership) != 1 {
		return "", syncerrors.NewValidationf("audience trait must contain exactly one audience, got %d", len(membership))
	}

	for name := range membership {
		return name, nil
	}
	return "", nil
}
