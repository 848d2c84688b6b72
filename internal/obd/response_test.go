package obd

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractPositiveResponse(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		token string
		ok    bool
	}{
		{
			name:  "banner and bus init before data",
			text:  "ELM327\rBUS INIT: OK\r41 0C 1A F8\r",
			token: "41 0C 1A F8",
			ok:    true,
		},
		{
			name:  "searching preamble",
			text:  "SEARCHING...\r41 05 7B\r",
			token: "41 05 7B",
			ok:    true,
		},
		{
			name:  "data only",
			text:  "41 0D 64",
			token: "41 0D 64",
			ok:    true,
		},
		{
			name:  "no trailing delimiter",
			text:  "\r41 11 80",
			token: "41 11 80",
			ok:    true,
		},
		{
			name: "41 inside another token is not a marker",
			text: "BUS INIT: 41 ERROR\rNO DATA\r",
		},
		{
			name: "error only",
			text: "NO DATA\r",
		},
		{
			name: "empty",
			text: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, ok := ExtractPositiveResponse(tt.text)
			require.Equal(t, tt.ok, ok)
			require.Equal(t, tt.token, token)
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		text string
		kind ResponseKind
	}{
		{"ELM327\rBUS INIT: OK\r41 0C 1A F8\r", HexData},
		{"41 0D 64\r", HexData},
		{"NO DATA\r", NoData},
		{"SEARCHING...\rNO DATA\r", NoData},
		{"BUS BUSY\r", BusBusy},
		{"BUS ERROR\r", BusError},
		{"<DATA ERROR\r", DataError2},
		{"DATA ERROR\r", DataError},
		{"\x01\x7f\x02", SerialError},
		{"?\r", Rubbish},
		{"", Rubbish},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			require.Equal(t, tt.kind, Classify(tt.text))
		})
	}
}

func TestClassifyPositiveWinsOverError(t *testing.T) {
	// A decodable token takes precedence over error phrases elsewhere in
	// the buffer.
	require.Equal(t, HexData, Classify("BUS INIT: OK\r41 05 7B\rNO DATA\r"))
}

func TestRetryable(t *testing.T) {
	require.True(t, BusBusy.Retryable())
	require.True(t, DataError.Retryable())
	require.True(t, DataError2.Retryable())
	require.True(t, SerialError.Retryable())
	require.True(t, Rubbish.Retryable())

	require.False(t, HexData.Retryable())
	require.False(t, NoData.Retryable())
	require.False(t, BusError.Retryable())
}

func TestPayload(t *testing.T) {
	raw, err := Payload("41 0C 1A F8", 2)
	require.NoError(t, err)
	require.EqualValues(t, 0x1AF8, raw)

	// Adapters may pad with extra zero bytes; only the defined width counts.
	raw, err = Payload("41 0D 64 00 00", 1)
	require.NoError(t, err)
	require.EqualValues(t, 0x64, raw)

	raw, err = Payload("410536", 1)
	require.NoError(t, err)
	require.EqualValues(t, 0x36, raw)

	_, err = Payload("41 0C", 2)
	require.Error(t, err)
}
