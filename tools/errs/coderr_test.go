package errs

import (
	stderrors "errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapMsgKeepsSentinelUntouched(t *testing.T) {
	err := ErrRecordNotFound.WrapMsg("user", "id", "u1")

	assert.True(t, stderrors.Is(err, ErrRecordNotFound))
	assert.False(t, stderrors.Is(err, ErrArgs))
	assert.Empty(t, ErrRecordNotFound.Detail)

	ce, ok := Code(err)
	require.True(t, ok)
	assert.Equal(t, RecordNotFoundError, ce.Code)
	assert.Equal(t, http.StatusNotFound, ce.Status)
	assert.Equal(t, "user, id=u1", ce.Detail)
}

func TestCodeThroughPlainWrap(t *testing.T) {
	err := WrapMsg(ErrConflict.Wrap(), "insert user")

	ce, ok := Code(err)
	require.True(t, ok)
	assert.Equal(t, ConflictError, ce.Code)

	_, ok = Code(New("plain"))
	assert.False(t, ok)
	_, ok = Code(nil)
	assert.False(t, ok)
}

func TestWithDetailAppends(t *testing.T) {
	ce := ErrArgs.WithDetail("a").WithDetail("b")
	assert.Equal(t, "a, b", ce.Detail)
	assert.Equal(t, "1001 ArgsError a, b", ce.Error())
}

func TestToStringOddPairs(t *testing.T) {
	assert.Equal(t, "msg, k=MISSING", toString("msg", []any{"k"}))
	assert.Equal(t, "k=1", toString("", []any{"k", 1}))
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(nil))
	assert.Nil(t, WrapMsg(nil, "x"))
	assert.Nil(t, ErrPanic(nil))

	ce, ok := Code(ErrPanic("boom"))
	require.True(t, ok)
	assert.Equal(t, "boom", ce.Detail)
}
