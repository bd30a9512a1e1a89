package nostrcore

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func validSignedEvent(t *testing.T) Event {
	t.Helper()
	e := Event{
		PubKey:    strings.Repeat("a", 64),
		CreatedAt: 1700000000,
		Kind:      1,
		Tags:      [][]string{{"e", strings.Repeat("b", 64)}},
		Content:   "hello",
		Sig:       strings.Repeat("c", 128),
	}
	id, err := e.ComputeID()
	require.NoError(t, err)
	e.ID = id
	return e
}

func TestEventValidate(t *testing.T) {
	e := validSignedEvent(t)
	require.NoError(t, e.Validate())
}

func TestEventValidateRejectsTamperedID(t *testing.T) {
	e := validSignedEvent(t)
	e.Content = "tampered"
	require.ErrorIs(t, e.Validate(), ErrIDMismatch)
}

func TestEventValidateRejectsBadHex(t *testing.T) {
	e := validSignedEvent(t)
	e.Sig = "not-hex"
	require.ErrorIs(t, e.Validate(), ErrBadHexField)
}

func TestEventValidateRejectsMissingField(t *testing.T) {
	e := validSignedEvent(t)
	e.PubKey = ""
	require.ErrorIs(t, e.Validate(), ErrMissingField)
}

func TestIsValidTimestamp(t *testing.T) {
	e := Event{CreatedAt: 1000}
	require.True(t, e.IsValidTimestamp(900, nil))

	window := 100
	require.True(t, e.IsValidTimestamp(950, &window))
	require.False(t, e.IsValidTimestamp(800, &window))
}

func TestTagValues(t *testing.T) {
	e := Event{Tags: [][]string{{"e", "id1"}, {"p", "pub1"}, {"e", "id2"}}}
	require.Equal(t, []string{"id1", "id2"}, e.TagValues("e"))
	require.Empty(t, e.TagValues("missing"))
}
