package tenant

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateTenantID(t *testing.T) {
	assert.NoError(t, ValidateTenantID("springfield"))
	assert.NoError(t, ValidateTenantID("school42"))

	for _, bad := range []string{"", "Springfield", "spring_field", "spring-field", "spring field"} {
		assert.ErrorIs(t, ValidateTenantID(bad), ErrInvalidTenantID, "id %q", bad)
	}
}

func TestValidateCollection(t *testing.T) {
	assert.NoError(t, ValidateCollection("biology"))
	assert.NoError(t, ValidateCollection("biology_notes_2026"))

	for _, bad := range []string{"", "Biology", "bio-notes", "bio notes"} {
		assert.ErrorIs(t, ValidateCollection(bad), ErrInvalidCollection, "name %q", bad)
	}
}

func TestDisplayNameRoundTrip(t *testing.T) {
	entry := DisplayName("springfield", "biology_notes")
	assert.Equal(t, "biology_notes (springfield)", entry)

	tenantID, collection, err := ParseDisplayName(entry)
	require.NoError(t, err)
	assert.Equal(t, "springfield", tenantID)
	assert.Equal(t, "biology_notes", collection)
}

func TestParseDisplayNameRejectsMalformed(t *testing.T) {
	for _, bad := range []string{
		"",
		"biology",
		"biology (springfield",
		"(springfield)",
		"biology (SPRING)",
	} {
		_, _, err := ParseDisplayName(bad)
		assert.Error(t, err, "entry %q", bad)
	}
}
