package interp_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xalexb/confect/interp"
	"github.com/0xalexb/confect/value"
)

func testRoot() *value.Dict {
	db := value.NewDict()
	db.Insert("host", value.String("localhost"))
	db.Insert("port", value.Int(3306))
	db.Insert("timeout", value.Float(2.0))

	root := value.NewDict()
	root.Insert("db", value.DictVal(db))
	root.Insert("name", value.String("myapp"))
	root.Insert("alias", value.Interpolation("${name}"))

	return root
}

func TestResolvePathLookup(t *testing.T) {
	t.Parallel()

	e := interp.New(testRoot())

	v, err := e.Resolve(value.Interpolation("${db.host}"))
	require.NoError(t, err)

	s, ok := v.AsString()
	require.True(t, ok)
	assert.Equal(t, "localhost", s)

	// Whole-string interpolations keep the looked-up type.
	v, err = e.Resolve(value.Interpolation("${db.port}"))
	require.NoError(t, err)

	i, ok := v.AsInt()
	require.True(t, ok)
	assert.Equal(t, int64(3306), i)
}

func TestResolveSplicing(t *testing.T) {
	t.Parallel()

	e := interp.New(testRoot())

	v, err := e.Resolve(value.Interpolation("${db.host}:${db.port}"))
	require.NoError(t, err)

	s, ok := v.AsString()
	require.True(t, ok)
	assert.Equal(t, "localhost:3306", s)

	// Plain strings with embedded markers resolve too.
	v, err = e.Resolve(value.String("host is ${db.host}"))
	require.NoError(t, err)

	s, _ = v.AsString()
	assert.Equal(t, "host is localhost", s)

	// Whole floats splice without a trailing ".0".
	v, err = e.Resolve(value.String("wait ${db.timeout}s"))
	require.NoError(t, err)

	s, _ = v.AsString()
	assert.Equal(t, "wait 2s", s)
}

func TestResolveEscaped(t *testing.T) {
	t.Parallel()

	e := interp.New(testRoot())

	// A $-escaped marker yields the literal ${...} text.
	v, err := e.Resolve(value.String("$${db.host}"))
	require.NoError(t, err)

	s, ok := v.AsString()
	require.True(t, ok)
	assert.Equal(t, "${db.host}", s)

	// Escaped and live markers mix in one string.
	v, err = e.Resolve(value.String("set $${db.host} to ${db.host}"))
	require.NoError(t, err)

	s, _ = v.AsString()
	assert.Equal(t, "set ${db.host} to localhost", s)

	// Marked interpolation values honor the escape too.
	v, err = e.Resolve(value.FromString("$${db.port}"))
	require.NoError(t, err)

	s, _ = v.AsString()
	assert.Equal(t, "${db.port}", s)
}

func TestResolveChained(t *testing.T) {
	t.Parallel()

	e := interp.New(testRoot())

	v, err := e.Resolve(value.Interpolation("${alias}"))
	require.NoError(t, err)

	s, _ := v.AsString()
	assert.Equal(t, "myapp", s)
}

func TestResolveDepthLimit(t *testing.T) {
	t.Parallel()

	root := value.NewDict()
	root.Insert("a", value.Interpolation("${b}"))
	root.Insert("b", value.Interpolation("${a}"))

	e := interp.New(root)

	_, err := e.Resolve(value.Interpolation("${a}"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Maximum interpolation depth exceeded")
}

func TestResolveMissingKey(t *testing.T) {
	t.Parallel()

	e := interp.New(testRoot())

	_, err := e.Resolve(value.Interpolation("${db.missing}"))
	require.Error(t, err)
	assert.Equal(t, "Interpolation error at 'db.missing': Key 'missing' not found", err.Error())

	_, err = e.Resolve(value.Interpolation("${name.sub}"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Cannot traverse non-dict value")
}

func TestResolveContainers(t *testing.T) {
	t.Parallel()

	e := interp.New(testRoot())

	inner := value.NewDict()
	inner.Insert("ref", value.Interpolation("${name}"))

	v, err := e.Resolve(value.List(value.DictVal(inner), value.Interpolation("${db.port}")))
	require.NoError(t, err)

	items, ok := v.AsList()
	require.True(t, ok)
	require.Len(t, items, 2)

	dict, ok := items[0].AsDict()
	require.True(t, ok)

	ref, _ := dict.Get("ref")
	s, _ := ref.AsString()
	assert.Equal(t, "myapp", s)

	i, _ := items[1].AsInt()
	assert.Equal(t, int64(3306), i)
}

func TestResolveRoot(t *testing.T) {
	t.Parallel()

	e := interp.New(testRoot())

	resolved, err := e.ResolveRoot()
	require.NoError(t, err)

	alias, ok := resolved.Get("alias")
	require.True(t, ok)

	s, _ := alias.AsString()
	assert.Equal(t, "myapp", s)
}

func TestEnvResolver(t *testing.T) {
	t.Setenv("CONFECT_TEST_VAR", "from_env")

	e := interp.New(value.NewDict())

	v, err := e.Resolve(value.Interpolation("${oc.env:CONFECT_TEST_VAR}"))
	require.NoError(t, err)

	s, _ := v.AsString()
	assert.Equal(t, "from_env", s)

	v, err = e.Resolve(value.Interpolation("${oc.env:CONFECT_NO_SUCH_VAR,fallback}"))
	require.NoError(t, err)

	s, _ = v.AsString()
	assert.Equal(t, "fallback", s)

	_, err = e.Resolve(value.Interpolation("${oc.env:CONFECT_NO_SUCH_VAR}"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Environment variable 'CONFECT_NO_SUCH_VAR' not found")
}

func TestDecodeResolver(t *testing.T) {
	t.Parallel()

	e := interp.New(value.NewDict())

	tests := []struct {
		expr string
		want value.Value
	}{
		{"${oc.decode:null}", value.Null()},
		{"${oc.decode:~}", value.Null()},
		{"${oc.decode:true}", value.Bool(true)},
		{"${oc.decode:false}", value.Bool(false)},
		{"${oc.decode:42}", value.Int(42)},
		{"${oc.decode:-123}", value.Int(-123)},
		{"${oc.decode:3.14}", value.Float(3.14)},
		{"${oc.decode:hello}", value.String("hello")},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.expr, func(t *testing.T) {
			t.Parallel()

			v, err := e.Resolve(value.Interpolation(tt.expr))
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(v), "got %s", v)
		})
	}
}

func TestMandatoryResolver(t *testing.T) {
	t.Parallel()

	e := interp.New(value.NewDict())

	_, err := e.Resolve(value.Interpolation("${oc.mandatory:db.password}"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Mandatory value db.password is missing")
}

func TestCustomResolver(t *testing.T) {
	t.Parallel()

	e := interp.New(value.NewDict())
	e.Register("add", func(args []string) (value.Value, error) {
		var sum int64

		for range args {
			sum++
		}

		return value.Int(sum), nil
	})

	v, err := e.Resolve(value.Interpolation("${add:a,b,c}"))
	require.NoError(t, err)

	i, _ := v.AsInt()
	assert.Equal(t, int64(3), i)

	// Unknown resolver names fall back to path lookup and fail there.
	_, err = e.Resolve(value.Interpolation("${nope:x}"))
	require.Error(t, err)
}
