package notice

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMessageFrame(t *testing.T) {
	n := Message("hello")
	b, err := n.Frame()
	require.NoError(t, err)
	require.JSONEq(t, `["NOTICE","hello"]`, string(b))
}

func TestResultFrame(t *testing.T) {
	n := Stored("abc123")
	b, err := n.Frame()
	require.NoError(t, err)
	require.JSONEq(t, `["OK","abc123",true,"stored"]`, string(b))
}

func TestDuplicateFrame(t *testing.T) {
	n := Duplicate("abc123")
	b, err := n.Frame()
	require.NoError(t, err)
	require.JSONEq(t, `["OK","abc123",true,"duplicate: already have this event"]`, string(b))
}

func TestInvalidFrame(t *testing.T) {
	n := Invalid("abc123", "bad signature")
	b, err := n.Frame()
	require.NoError(t, err)
	require.JSONEq(t, `["OK","abc123",false,"bad signature"]`, string(b))
}
