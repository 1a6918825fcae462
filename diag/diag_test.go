package diag

import (
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/require"
)

func TestListAdd(t *testing.T) {
	var l List

	l.Add(0, KindIntegrity, "checksum mismatch")
	l.Addf(512, KindUnsupportedSection, "type code 0x%04X", 0x0700)

	require.Len(t, l, 2)
	require.Equal(t, 0, l[0].Offset)
	require.Equal(t, KindIntegrity, l[0].Kind)
	require.Equal(t, "type code 0x0700", l[1].Detail)
}

func TestListCount(t *testing.T) {
	var l List
	l.Add(0, KindIntegrity, "")
	l.Add(10, KindDropped, "")
	l.Add(20, KindIntegrity, "")

	require.Equal(t, 2, l.Count(KindIntegrity))
	require.Equal(t, 1, l.Count(KindDropped))
	require.Equal(t, 0, l.Count(KindResync))
}

func TestKindString(t *testing.T) {
	require.Equal(t, "integrity", KindIntegrity.String())
	require.Equal(t, "unsupported-section", KindUnsupportedSection.String())
	require.Equal(t, "unknown", Kind(0xFF).String())
}

func TestListJSON(t *testing.T) {
	var l List
	l.Add(128, KindResync, "boundary rewritten")

	data, err := l.JSON()
	require.NoError(t, err)

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded, 1)
	require.Equal(t, float64(128), decoded[0]["offset"])
	require.Equal(t, "resync", decoded[0]["kind"])
	require.Equal(t, "boundary rewritten", decoded[0]["detail"])
}
