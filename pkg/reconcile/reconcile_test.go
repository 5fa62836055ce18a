package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/audienceops/traitsync/pkg/contact"
	"github.com/audienceops/traitsync/pkg/profile"
	"github.com/audienceops/traitsync/pkg/syncerrors"
)

func TestReconcileMapsSyncedTraits(t *testing.T) {
	traits := profile.TraitSnapshot{
		"plan":   "gold",
		"email":  "user@example.com",
		"secret": "should never leave",
	}
	schema := contact.FieldSchema{"plan": "f1"}
	policy := NormalizePolicy([]string{"plan"})

	record, err := Reconcile(traits, schema, contact.ReservedFields(), policy)
	require.NoError(t, err)

	assert.Equal(t, "user@example.com", record.Email)
	assert.Equal(t, map[string]any{"f1": "gold"}, record.CustomFields)
}

func TestReconcileDropsUnconfiguredTraitsSilently(t *testing.T) {
	traits := profile.TraitSnapshot{
		"plan":       "gold",
		"internal_x": "nope",
	}
	schema := contact.FieldSchema{"plan": "f1"}

	record, err := Reconcile(traits, schema, contact.ReservedFields(), NormalizePolicy([]string{"plan"}))
	require.NoError(t, err)

	_, leaked := record.CustomFields["internal_x"]
	assert.False(t, leaked)
	assert.Len(t, record.CustomFields, 1)
}

func TestReconcileLowercasesEmail(t *testing.T) {
	traits := profile.TraitSnapshot{"email": "A@B.com"}

	record, err := Reconcile(traits, contact.FieldSchema{}, contact.ReservedFields(), NormalizePolicy(nil))
	require.NoError(t, err)

	assert.Equal(t, "a@b.com", record.Email)
}

func TestReconcileUnmappedFieldFailsWholeRecord(t *testing.T) {
	traits := profile.TraitSnapshot{
		"plan":  "gold",
		"email": "user@example.com",
	}

	// Empty destination schema: "plan" has nowhere to go
	record, err := Reconcile(traits, contact.FieldSchema{}, contact.ReservedFields(), NormalizePolicy([]string{"plan"}))
	require.Error(t, err)
	assert.Nil(t, record)

	assert.True(t, syncerrors.IsUnmappedField(err))
	assert.Contains(t, err.Error(), "plan")
	assert.Contains(t, err.Error(), "gold")
}

func TestReconcileUnmappedFieldNamesEveryMissingTrait(t *testing.T) {
	traits := profile.TraitSnapshot{
		"plan": "gold",
		"tier": 3,
	}

	_, err := Reconcile(traits, contact.FieldSchema{}, contact.ReservedFields(), NormalizePolicy([]string{"plan", "tier"}))
	require.Error(t, err)

	var syncErr *syncerrors.Error
	require.ErrorAs(t, err, &syncErr)
	assert.Len(t, syncErr.Fields, 2)
	assert.Contains(t, err.Error(), "plan=gold")
	assert.Contains(t, err.Error(), "tier=3")
}

func TestReconcileAudienceMembership(t *testing.T) {
	traits := profile.TraitSnapshot{
		"vip_shoppers": true,
		profile.AudienceTraitName: map[string]any{
			"vip_shoppers": true,
		},
	}
	schema := contact.FieldSchema{"vip_shoppers": "f9"}

	record, err := Reconcile(traits, schema, contact.ReservedFields(), NormalizePolicy(nil))
	require.NoError(t, err)

	// Membership is coerced like any other bool; the synthetic trait
	// itself is never emitted
	assert.Equal(t, map[string]any{"f9": "true"}, record.CustomFields)
}

func TestReconcileAudienceTraitNotAMapping(t *testing.T) {
	traits := profile.TraitSnapshot{
		profile.AudienceTraitName: "vip_shoppers",
	}

	_, err := Reconcile(traits, contact.FieldSchema{}, contact.ReservedFields(), NormalizePolicy(nil))
	require.Error(t, err)
	assert.Equal(t, syncerrors.KindValidation, syncerrors.KindOf(err))
}

func TestReconcileAudienceTraitWrongCardinality(t *testing.T) {
	empty := profile.TraitSnapshot{
		profile.AudienceTraitName: map[string]any{},
	}
	_, err := Reconcile(empty, contact.FieldSchema{}, contact.ReservedFields(), NormalizePolicy(nil))
	require.Error(t, err)
	assert.Equal(t, syncerrors.KindValidation, syncerrors.KindOf(err))

	double := profile.TraitSnapshot{
		profile.AudienceTraitName: map[string]any{"a": true, "b": false},
	}
	_, err = Reconcile(double, contact.FieldSchema{}, contact.ReservedFields(), NormalizePolicy(nil))
	require.Error(t, err)
	assert.Equal(t, syncerrors.KindValidation, syncerrors.KindOf(err))
}

func TestReconcileReservedTraitsAreNotMapped(t *testing.T) {
	traits := profile.TraitSnapshot{
		"first_name": "Ada",
		"email":      "ada@example.com",
		"plan":       "gold",
	}
	schema := contact.FieldSchema{"plan": "f1"}

	// first_name survives the filter as a reserved field but is never a
	// custom field and never fails mapping
	record, err := Reconcile(traits, schema, contact.ReservedFields(), NormalizePolicy([]string{"plan"}))
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"f1": "gold"}, record.CustomFields)
	assert.Equal(t, "ada@example.com", record.Email)
}

func TestReconcileIsDeterministic(t *testing.T) {
	traits := profile.TraitSnapshot{
		"plan":  "gold",
		"score": 42,
		"email": "user@example.com",
	}
	schema := contact.FieldSchema{"plan": "f1", "score": "f2"}
	policy := NormalizePolicy([]string{"plan", "score"})
	reserved := contact.ReservedFields()

	first, err := Reconcile(traits, schema, reserved, policy)
	require.NoError(t, err)
	second, err := Reconcile(traits, schema, reserved, policy)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestNormalizePolicy(t *testing.T) {
	policy := NormalizePolicy([]string{" Plan ", "Favorite Color", "", "plan"})

	assert.True(t, policy.Contains("plan"))
	assert.True(t, policy.Contains("favorite_color"))
	assert.False(t, policy.Contains(""))
	assert.False(t, policy.Contains("Plan"))
	assert.Len(t, policy, 2)
}
