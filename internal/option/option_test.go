package option

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Pablu23/tftp/internal/common"
)

func TestParseMode(t *testing.T) {
	t.Run("KnownModesIgnoreCase", func(t *testing.T) {
		assert.Equal(t, Octet, ParseMode("OCTET"))
		assert.Equal(t, Netascii, ParseMode("NetAscii"))
		assert.Equal(t, Mail, ParseMode("mail"))
	})

	t.Run("UnknownModeKeepsText", func(t *testing.T) {
		pck := common.NewReadRequest("f", "x-vendor")
		assert.Equal(t, Unknown, ParseMode(pck.Mode))
		assert.Equal(t, "x-vendor", pck.Mode)
	})
}

func TestGetOptions(t *testing.T) {
	opts := common.Options{
		{Name: BlockSize, Value: "1428"},
		{Name: Timeout, Value: "5"},
		{Name: TransferSize, Value: "0"},
		{Name: WindowSize, Value: "16"},
	}

	blksize, err := GetBlockSize(opts)
	require.NoError(t, err)
	assert.Equal(t, 1428, blksize)

	timeout, err := GetTimeout(opts)
	require.NoError(t, err)
	assert.Equal(t, 5, timeout)

	tsize, err := GetTransferSize(opts)
	require.NoError(t, err)
	assert.Equal(t, int64(0), tsize)

	window, err := GetWindowSize(opts)
	require.NoError(t, err)
	assert.Equal(t, 16, window)
}

func TestGetOptionErrors(t *testing.T) {
	t.Run("Missing", func(t *testing.T) {
		_, err := GetBlockSize(nil)
		assert.ErrorIs(t, err, common.ErrOptionNotFound)
	})

	t.Run("NotANumber", func(t *testing.T) {
		_, err := GetTimeout(common.Options{{Name: Timeout, Value: "soon"}})
		assert.ErrorIs(t, err, ErrInvalidValue)
	})

	t.Run("OutOfRange", func(t *testing.T) {
		_, err := GetBlockSize(common.Options{{Name: BlockSize, Value: "7"}})
		assert.ErrorIs(t, err, ErrInvalidValue)

		_, err = GetTimeout(common.Options{{Name: Timeout, Value: "256"}})
		assert.ErrorIs(t, err, ErrInvalidValue)

		_, err = GetTransferSize(common.Options{{Name: TransferSize, Value: "-1"}})
		assert.ErrorIs(t, err, ErrInvalidValue)
	})
}

func TestSetOptions(t *testing.T) {
	var opts common.Options

	require.NoError(t, SetBlockSize(&opts, 1024))
	require.NoError(t, SetTransferSize(&opts, 0))
	require.NoError(t, SetBlockSize(&opts, 512))
	require.NoError(t, SetWindowSize(&opts, 4))
	require.NoError(t, SetTimeout(&opts, 2))

	assert.Equal(t, common.Options{
		{Name: BlockSize, Value: "512"},
		{Name: TransferSize, Value: "0"},
		{Name: WindowSize, Value: "4"},
		{Name: Timeout, Value: "2"},
	}, opts)

	assert.ErrorIs(t, SetWindowSize(&opts, 0), ErrInvalidValue)
	assert.ErrorIs(t, SetTimeout(&opts, 300), ErrInvalidValue)
}
