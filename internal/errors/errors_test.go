package errors

import (
	stderrs "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorRendering(t *testing.T) {
	var nilErr *Error
	assert.Equal(t, "<nil>", nilErr.Error())

	err := New(CodeConfiguration, "no products selected")
	assert.Equal(t, "no products selected", err.Error())

	err = WithStage(err, "config")
	assert.Equal(t, "config: no products selected", err.Error())

	err = WithRecord(Wrap(stderrs.New("boom"), CodeSourceUnavailable, "fetch transcript"), "c-17")
	err = WithStage(err, "fetch")
	assert.Equal(t, "fetch: fetch transcript (record c-17): boom", err.Error())
}

func TestCodeHelpers(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"invalid range", InvalidRangef("start %s after end", "x"), CodeInvalidRange},
		{"config", Configf("bad"), CodeConfiguration},
		{"unavailable", Unavailablef("down"), CodeSourceUnavailable},
		{"foreign", stderrs.New("plain"), CodeUnknown},
		{"wrapped by fmt", fmt.Errorf("outer: %w", New(CodePartialFetch, "cancelled")), CodePartialFetch},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, CodeOf(c.err))
			assert.True(t, IsCode(c.err, c.want))
		})
	}
	assert.False(t, IsCode(nil, CodeUnknown))
}

func TestMutatorsCopyOnWrite(t *testing.T) {
	base := New(CodePartialFetch, "cancelled")
	staged := WithStage(base, "fetch")
	withOp := WithOp(staged, "list_calls")

	b, ok := As(base)
	require.True(t, ok)
	assert.Empty(t, b.Stage())

	e, ok := As(withOp)
	require.True(t, ok)
	assert.Equal(t, "fetch", e.Stage())
	assert.Equal(t, "list_calls", e.Op())

	plain := stderrs.New("plain")
	assert.Same(t, plain, WithRecord(plain, "r1"))
	assert.Nil(t, WithStage(nil, "x"))

	wrapped := WithStage(plain, "report")
	assert.Equal(t, CodeUnknown, CodeOf(wrapped))
	assert.ErrorIs(t, wrapped, plain)
}

func TestFatal(t *testing.T) {
	assert.False(t, CodeArtifactGeneration.Fatal())
	for _, c := range []ErrorCode{CodeInvalidRange, CodeSourceUnavailable, CodeConfiguration, CodePartialFetch, CodeUnknown} {
		assert.True(t, c.Fatal(), c.String())
	}
	assert.Equal(t, "partial_fetch", CodePartialFetch.String())
	assert.Equal(t, "code_99", ErrorCode(99).String())
}
