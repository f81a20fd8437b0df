package apperr_test

import (
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcanaland/arenaswap/internal/apperr"
)

func TestIs_WalksWrappedChain(t *testing.T) {
	base := apperr.NotFound("no bundle for art id %s", "000123")
	wrapped := fmt.Errorf("resolve: %w", base)

	assert.True(t, apperr.Is(wrapped, apperr.KindNotFound))
	assert.False(t, apperr.Is(wrapped, apperr.KindIO))
	assert.Equal(t, "no bundle for art id 000123", wrapped.Error()[len("resolve: "):])
}

func TestError_UnwrapsCause(t *testing.T) {
	err := apperr.IO(os.ErrPermission, "write %s", "bundle.mtga")

	require.ErrorIs(t, err, os.ErrPermission)
	assert.Equal(t, "write bundle.mtga: permission denied", err.Error())

	ae := apperr.As(err)
	require.NotNil(t, ae)
	assert.Equal(t, apperr.KindIO, ae.Kind)
}

func TestAs_PlainError(t *testing.T) {
	assert.Nil(t, apperr.As(errors.New("plain")))
	assert.False(t, apperr.Is(nil, apperr.KindFormat))
}
