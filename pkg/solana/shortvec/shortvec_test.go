package shortvec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	for i := 0; i < (1 << 16); i += 7 {
		buf := &bytes.Buffer{}

		_, err := EncodeLen(buf, i)
		require.NoError(t, err)

		actual, err := DecodeLen(buf)
		require.NoError(t, err)
		assert.Equal(t, i, actual)
	}
}

func TestEncodeLen_Bounds(t *testing.T) {
	buf := &bytes.Buffer{}

	n, err := EncodeLen(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	buf.Reset()
	n, err = EncodeLen(buf, 0x7f)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	buf.Reset()
	n, err = EncodeLen(buf, 0x80)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	buf.Reset()
	n, err = EncodeLen(buf, 0x3fff)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	buf.Reset()
	n, err = EncodeLen(buf, 0x4000)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = EncodeLen(&bytes.Buffer{}, 1<<16)
	assert.Error(t, err)
}

func TestDecodeLen_Invalid(t *testing.T) {
	// Truncated multi-byte length.
	_, err := DecodeLen(bytes.NewBuffer([]byte{0x80}))
	assert.Error(t, err)

	// More than 3 length bytes.
	_, err = DecodeLen(bytes.NewBuffer([]byte{0x80, 0x80, 0x80, 0x80}))
	assert.Error(t, err)

	_, err = DecodeLen(&bytes.Buffer{})
	assert.Error(t, err)
}
