package form

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPairsFromJSON(t *testing.T) {
	pairs := PairsFromJSON(`{"size": "L", "weight": 420, "vented": true}`)
	require.Equal(t, []Pair{
		{Key: "size", Value: "L"},
		{Key: "vented", Value: "true"},
		{Key: "weight", Value: "420"},
	}, pairs)
}

func TestPairsFromJSON_MalformedYieldsEmpty(t *testing.T) {
	require.Nil(t, PairsFromJSON(`{"size": `))
	require.Nil(t, PairsFromJSON(nil))
	require.Nil(t, PairsFromJSON(`["not", "an", "object"]`))
}

func TestPairsToObject(t *testing.T) {
	obj := PairsToObject([]Pair{
		{Key: "size", Value: "L"},
		{Key: "weight", Value: "420"},
		{Key: "vented", Value: "true"},
		{Key: "", Value: "dropped"},
	})
	require.Equal(t, map[string]any{
		"size":   "L",
		"weight": float64(420),
		"vented": true,
	}, obj)
}
