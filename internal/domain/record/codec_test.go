package record

import (
	"testing"

	"github.com/gmz-labs/voicexp/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode_DurableFormat(t *testing.T) {
	data, err := Encode([]Record{{MemberID: "375698", XP: 42}})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"memberId":"375698","xp":42}]`, string(data))

	empty, err := Encode(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(empty))
}

func TestDecode_RoundTrip(t *testing.T) {
	original := []Record{
		{MemberID: "a", XP: 100},
		{MemberID: "b", XP: 50},
		{MemberID: "c", XP: 50},
	}

	data, err := Encode(original)
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)
	assert.ElementsMatch(t, original, decoded)
}

func TestDecode_RejectsMalformedInput(t *testing.T) {
	tests := map[string]string{
		"empty":          ``,
		"null":           `null`,
		"object":         `{"memberId":"a","xp":1}`,
		"truncated":      `[{"memberId":"a","xp":1}`,
		"fractional xp":  `[{"memberId":"a","xp":1.5}]`,
		"unknown field":  `[{"memberId":"a","xp":1,"level":3}]`,
		"negative xp":    `[{"memberId":"a","xp":-1}]`,
		"missing id":     `[{"xp":4}]`,
		"duplicate":      `[{"memberId":"a","xp":1},{"memberId":"a","xp":2}]`,
		"trailing value": `[] []`,
	}

	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			records, err := Decode([]byte(input))
			assert.Error(t, err)
			assert.Nil(t, records)
		})
	}
}

func TestDecode_ErrorKinds(t *testing.T) {
	_, err := Decode([]byte(`not json`))
	assert.ErrorIs(t, err, shared.ErrInvalidFormat)

	_, err = Decode([]byte(`[{"memberId":"a","xp":1},{"memberId":"a","xp":2}]`))
	assert.ErrorIs(t, err, shared.ErrAlreadyExists)
}

func TestDecode_EmptyArray(t *testing.T) {
	records, err := Decode([]byte(" [] \n"))
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}
