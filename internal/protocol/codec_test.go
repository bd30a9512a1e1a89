package protocol

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseEvent(t *testing.T) {
	raw := []byte(`["EVENT",{"id":"` + strings.Repeat("a", 64) + `","pubkey":"` + strings.Repeat("b", 64) +
		`","created_at":1,"kind":1,"tags":[],"content":"hi","sig":"` + strings.Repeat("c", 128) + `"}]`)
	cmd, err := Parse(raw, 0)
	require.NoError(t, err)
	ec, ok := cmd.(EventCmd)
	require.True(t, ok)
	require.Equal(t, 1, ec.Event.Kind)
}

func TestParseEventMaxLength(t *testing.T) {
	raw := []byte(`["EVENT",{"id":"x"}]`)
	_, err := Parse(raw, 5)
	var tooLong *EventMaxLengthError
	require.ErrorAs(t, err, &tooLong)
	require.Equal(t, len(raw), tooLong.Size)
}

func TestParseReq(t *testing.T) {
	raw := []byte(`["REQ","sub1",{"kinds":[1]},{"authors":["abc"]}]`)
	cmd, err := Parse(raw, 0)
	require.NoError(t, err)
	rc, ok := cmd.(ReqCmd)
	require.True(t, ok)
	require.Equal(t, "sub1", rc.Sub.ID)
	require.Len(t, rc.Sub.Filters, 2)
}

func TestParseReqStripsQuotesFromSubID(t *testing.T) {
	raw := []byte(`["REQ","su\"b1",{"kinds":[1]}]`)
	cmd, err := Parse(raw, 0)
	require.NoError(t, err)
	rc := cmd.(ReqCmd)
	require.Equal(t, "sub1", rc.Sub.ID)
}

func TestParseClose(t *testing.T) {
	raw := []byte(`["CLOSE","sub1"]`)
	cmd, err := Parse(raw, 0)
	require.NoError(t, err)
	cc, ok := cmd.(CloseCmd)
	require.True(t, ok)
	require.Equal(t, "sub1", cc.SubID)
}

func TestParseInvalidJSON(t *testing.T) {
	_, err := Parse([]byte(`not json`), 0)
	require.ErrorIs(t, err, ErrProtoParse)
}

func TestParseUnknownTag(t *testing.T) {
	_, err := Parse([]byte(`["PING"]`), 0)
	require.ErrorIs(t, err, ErrProtoParse)
}

func TestParseReqMissingFilters(t *testing.T) {
	_, err := Parse([]byte(`["REQ","sub1"]`), 0)
	require.ErrorIs(t, err, ErrProtoParse)
}
