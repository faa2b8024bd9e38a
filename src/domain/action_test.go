package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActionTypeFromString(t *testing.T) {
	t.Parallel()

	var typ ActionType
	require.NoError(t, typ.FromString("CLARIFICATION_REQUEST"))
	assert.Equal(t, ActionClarificationRequest, typ)

	assert.Error(t, typ.FromString("NO_SUCH_ACTION"))
}

func TestReasonSetCanonicalIsSortedAndStable(t *testing.T) {
	t.Parallel()

	set := NewReasonSet(ReasonPersonal, ReasonCopyright, ReasonDoesNotHave)
	assert.Equal(t, "COPYRIGHT,DOES_NOT_HAVE,PERSONAL", set.Canonical())

	parsed, err := ParseReasonSet(set.Canonical())
	require.NoError(t, err)
	assert.Equal(t, set, parsed)
}

func TestReasonSetNeverEmpty(t *testing.T) {
	t.Parallel()

	assert.True(t, NewReasonSet().Contains(ReasonNoReason))

	parsed, err := ParseReasonSet("")
	require.NoError(t, err)
	assert.True(t, parsed.Contains(ReasonNoReason))
}

func TestParseReasonSetRejectsUnknown(t *testing.T) {
	t.Parallel()

	_, err := ParseReasonSet("PERSONAL,BOGUS")
	assert.Error(t, err)
}

func TestReasonSetScanRoundTrip(t *testing.T) {
	t.Parallel()

	set := NewReasonSet(ReasonBusinessSecret, ReasonConfidential)
	value, err := set.Value()
	require.NoError(t, err)

	var scanned ReasonSet
	require.NoError(t, scanned.Scan(value))
	assert.Equal(t, set, scanned)

	var nilSet ReasonSet
	require.NoError(t, nilSet.Scan(nil))
	assert.Nil(t, nilSet)
}
