package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateID(t *testing.T) {
	assert.NoError(t, ValidateID("provider-1"))
	assert.NoError(t, ValidateID("üñíçødé"))

	assert.Error(t, ValidateID(""))
	assert.Error(t, ValidateID("has\nnewline"))
	assert.Error(t, ValidateID("has|pipe"))
}

func TestDataSetKeyRoundTrip(t *testing.T) {
	key := EncodeDataSetKey("provider-1", "ds-1")
	provider, dataSet, err := DecodeDataSetKey(key)
	require.NoError(t, err)
	assert.Equal(t, "provider-1", provider)
	assert.Equal(t, "ds-1", dataSet)

	_, _, err = DecodeDataSetKey("no-separator")
	assert.Error(t, err)
}

func TestPageTokenRoundTrip(t *testing.T) {
	cases := [][2]string{
		{"cloud-1", "edm"},
		{"cloud-1", ""},
		{"", ""},
		// components containing the delimiters other encodings rely on
		{"with|pipe", "with\nnewline"},
		{"ünïcode", "схема"},
	}
	for _, c := range cases {
		token := EncodePageToken(c[0], c[1])
		cloudID, schema, err := DecodePageToken(token)
		require.NoError(t, err, "token for %q/%q", c[0], c[1])
		assert.Equal(t, c[0], cloudID)
		assert.Equal(t, c[1], schema)
	}
}

func TestDecodePageTokenRejectsGarbage(t *testing.T) {
	_, _, err := DecodePageToken("not base64!!!")
	assert.Error(t, err)

	_, _, err = DecodePageToken("AAAA")
	assert.Error(t, err)
}
