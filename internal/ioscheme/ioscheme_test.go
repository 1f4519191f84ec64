package ioscheme_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weigaofei/casadi/internal/ioscheme"
)

func TestNew(t *testing.T) {
	s, err := ioscheme.New([]string{"x", "p"}, []string{"state", "parameter"})
	require.NoError(t, err)
	assert.Equal(t, 2, s.Len())

	name, err := s.Entry(0)
	require.NoError(t, err)
	assert.Equal(t, "x", name)

	desc, err := s.Describe(1)
	require.NoError(t, err)
	assert.Equal(t, "p 'parameter'", desc)

	_, err = ioscheme.New([]string{"x"}, []string{"a", "b"})
	assert.Error(t, err)
}

func TestNew_NilDescriptions(t *testing.T) {
	s, err := ioscheme.New([]string{"a", "b"}, nil)
	require.NoError(t, err)

	desc, err := s.Describe(0)
	require.NoError(t, err)
	assert.Equal(t, "a", desc)
}

func TestIndex(t *testing.T) {
	s, err := ioscheme.New([]string{"x", "p"}, nil)
	require.NoError(t, err)

	i, err := s.Index("p")
	require.NoError(t, err)
	assert.Equal(t, 1, i)

	_, err = s.Index("q")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ioscheme.ErrNotFound))
	assert.Contains(t, err.Error(), "x, p", "error lists available entries")
}

func TestDefault(t *testing.T) {
	s := ioscheme.Default("i", 3)
	assert.Equal(t, 3, s.Len())
	i, err := s.Index("i2")
	require.NoError(t, err)
	assert.Equal(t, 2, i)
	assert.Equal(t, "io(i0, i1, i2)", s.String())
}

func TestEntry_OutOfRange(t *testing.T) {
	s := ioscheme.Default("o", 1)
	_, err := s.Entry(5)
	assert.Error(t, err)
	_, err = s.Describe(-1)
	assert.Error(t, err)
}
