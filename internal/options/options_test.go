package options_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weigaofei/casadi/internal/options"
)

func testSchema() *options.Schema {
	return options.NewSchema(map[string]options.Entry{
		"tolerance":      {Type: options.Float, Doc: "convergence tolerance", Default: 1e-10},
		"max_iterations": {Type: options.Int, Doc: "iteration cap", Default: 100},
		"linsol":         {Type: options.String, Doc: "backend name", Default: "lu"},
		"verbose":        {Type: options.Bool, Doc: "print progress", Default: false},
	})
}

func TestValidate(t *testing.T) {
	s := testSchema()

	require.NoError(t, s.Validate(options.Dict{"tolerance": 1e-8, "max_iterations": 50}))
	require.NoError(t, s.Validate(nil))

	// Integer literal where a float is declared is accepted.
	require.NoError(t, s.Validate(options.Dict{"tolerance": 1}))

	assert.Error(t, s.Validate(options.Dict{"tollerance": 1e-8}), "unknown key")
	assert.Error(t, s.Validate(options.Dict{"max_iterations": "many"}), "type mismatch")
	assert.Error(t, s.Validate(options.Dict{"verbose": 1}), "type mismatch")
}

func TestTypedReads(t *testing.T) {
	s := testSchema()
	d := options.Dict{"tolerance": 1e-8, "linsol": "qr"}

	assert.Equal(t, 1e-8, s.Float(d, "tolerance"))
	assert.Equal(t, 100, s.Int(d, "max_iterations"), "default")
	assert.Equal(t, "qr", s.String(d, "linsol"))
	assert.Equal(t, false, s.Bool(d, "verbose"), "default")

	// Float read of an int value converts.
	assert.Equal(t, 2.0, s.Float(options.Dict{"tolerance": 2}, "tolerance"))
}

func TestNames(t *testing.T) {
	s := testSchema()
	assert.Equal(t, []string{"linsol", "max_iterations", "tolerance", "verbose"}, s.Names())

	e, ok := s.Entry("tolerance")
	require.True(t, ok)
	assert.Equal(t, options.Float, e.Type)
	_, ok = s.Entry("absent")
	assert.False(t, ok)
}
