package domain

import (
	"errors"
	"os"
	"testing"

	platformerrors "github.com/jmgilman/go/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorCodes(t *testing.T) {
	assert.Equal(t, platformerrors.CodeInvalidInput, platformerrors.GetCode(ErrInvalidRequest("bad")))
	assert.Equal(t, platformerrors.CodeNotFound, platformerrors.GetCode(ErrNotFound("missing %s", "x")))
	assert.Equal(t, platformerrors.CodeConflict, platformerrors.GetCode(ErrInvalidState("done")))
	assert.Equal(t, platformerrors.CodeInternal, platformerrors.GetCode(ErrIO(os.ErrPermission, "read")))
	assert.Equal(t, platformerrors.CodeNetwork, platformerrors.GetCode(ErrNetwork(nil, "status %d", 502)))
}

func TestErrNetworkIsRetryable(t *testing.T) {
	assert.True(t, platformerrors.IsRetryable(ErrNetwork(errors.New("reset"), "fetch")))
	assert.False(t, platformerrors.IsRetryable(ErrNotFound("gone")))
}

func TestErrIOKeepsCause(t *testing.T) {
	err := ErrIO(os.ErrPermission, "open %s", "/cache")
	assert.ErrorIs(t, err, os.ErrPermission)
	assert.Equal(t, "open /cache: permission denied", ErrorMessage(err))
}

func TestErrConflictCandidates(t *testing.T) {
	err := ErrConflict([]string{"a--x", "b--x"}, "ambiguous name %s", "x")

	assert.True(t, IsConflict(err))
	resp := platformerrors.ToJSON(err)
	assert.Equal(t, []string{"a--x", "b--x"}, resp.Context["candidates"])
}

func TestNewClearError(t *testing.T) {
	assert.NoError(t, NewClearError(nil))

	err := NewClearError(map[string]error{
		"b--two": os.ErrPermission,
		"a--one": errors.New("busy"),
	})
	require.Error(t, err)

	var clearErr *ClearError
	require.True(t, errors.As(err, &clearErr))
	assert.Equal(t, []string{"a--one", "b--two"}, clearErr.FailedFolders)
	assert.Len(t, clearErr.Causes(), 2)
	assert.ErrorIs(t, err, os.ErrPermission)
	assert.Equal(t, platformerrors.CodeInternal, platformerrors.GetCode(err))
	assert.Contains(t, err.Error(), "a--one, b--two")
}
