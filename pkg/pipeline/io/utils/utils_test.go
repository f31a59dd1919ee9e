package utils_test

import (
	"testing"

	"freelaw.courtlistener.cl-update-index/pkg/pipeline/io/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressRoundTrip(t *testing.T) {
	in := []byte(`{"name":"add_or_update_items","ids":[1,2,3]}`)
	compressed, err := utils.Compress(in)
	require.NoError(t, err)
	assert.NotEqual(t, in, compressed)
	assert.Equal(t, in, utils.Decompress(compressed))
}

func TestDecompressPassesPlainData(t *testing.T) {
	in := []byte(`{"plain":true}`)
	assert.Equal(t, in, utils.Decompress(in))
}

func TestCheckPayload(t *testing.T) {
	out, err := utils.CheckPayload([]byte(" {\"a\":1}\n"))
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(out))

	for _, bad := range []string{"", "   ", "[1,2]", "{broken", "42"} {
		_, err := utils.CheckPayload([]byte(bad))
		assert.Error(t, err, bad)
	}
}
