package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dueldanov/embedscript/internal/script"
)

func TestManager_LoadAndInvoke(t *testing.T) {
	m := NewManager()

	diags := m.Load("main.script", `
		int32 add(int32 a, int32 b) { return a + b; }
	`)
	require.Empty(t, diags)

	result, err := m.Invoke(context.Background(), "add", script.NewInt(script.I32, 2), script.NewInt(script.I32, 3))
	require.NoError(t, err)
	assert.Equal(t, int64(5), result.AsInt64())
}

func TestManager_CheckDoesNotRegister(t *testing.T) {
	m := NewManager()

	diags := m.Check("scratch.script", `int32 f() { return 1; }`)
	require.Empty(t, diags)

	assert.Empty(t, m.Procedures())
	_, err := m.Invoke(context.Background(), "f")
	assert.Error(t, err)
}

func TestManager_SameFileDuplicateProcedureIsCompileError(t *testing.T) {
	m := NewManager()

	diags := m.Load("dup.script", `
		int32 f() { return 1; }
		int32 f() { return 2; }
	`)
	require.NotEmpty(t, diags)

	found := false
	for _, d := range diags {
		if d.Code == script.CodeDuplicateProcedure {
			found = true
		}
	}
	assert.True(t, found)
	assert.Empty(t, m.Procedures(), "a file with a same-name duplicate must not register any of its procedures")
}

func TestManager_CrossFileDuplicateSilentlyReplaces(t *testing.T) {
	m := NewManager()

	diags1 := m.Load("v1.script", `int32 f() { return 1; }`)
	require.Empty(t, diags1)

	diags2 := m.Load("v2.script", `int32 f() { return 2; }`)
	require.Empty(t, diags2)

	result, err := m.Invoke(context.Background(), "f")
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.AsInt64(), "the later load must win")
}

func TestManager_ExternalFunctionAndVariable(t *testing.T) {
	m := NewManager()
	m.RegisterExternalFn("twice", func(args []script.Value) (script.Value, error) {
		return script.NewInt(script.I32, args[0].AsInt64()*2), nil
	})
	m.RegisterExternalVar("base", script.NewInt(script.I32, 10), false)

	diags := m.Load("ext.script", `
		int32 f() {
			base = base + 1;
			return twice(base);
		}
	`)
	require.Empty(t, diags)

	result, err := m.Invoke(context.Background(), "f")
	require.NoError(t, err)
	assert.Equal(t, int64(22), result.AsInt64())

	stored, ok := m.ExternalVar("base")
	require.True(t, ok)
	assert.Equal(t, int64(11), stored.AsInt64())
}

func TestManager_SignatureAndProcedures(t *testing.T) {
	m := NewManager()
	m.Load("sig.script", `double compute(int32 a, string b) { return 1.5; }`)

	names := m.Procedures()
	require.Len(t, names, 1)
	assert.Equal(t, "compute", names[0])

	params, ret, ok := m.Signature("compute")
	require.True(t, ok)
	require.Len(t, params, 2)
	assert.Equal(t, script.I32, params[0].Base)
	assert.Equal(t, script.String, params[1].Base)
	assert.Equal(t, script.Double, ret.Base)
}

func TestManager_ClearRemovesProceduresNotExternals(t *testing.T) {
	m := NewManager()
	m.RegisterExternalVar("kept", script.NewBool(true), false)
	m.Load("a.script", `int32 f() { return 1; }`)

	m.Clear()

	assert.Empty(t, m.Procedures())
	v, ok := m.ExternalVar("kept")
	require.True(t, ok)
	assert.True(t, v.AsBool())
}

func TestManager_UnregisterAndHasExternalFn(t *testing.T) {
	m := NewManager()
	m.RegisterExternalFn("double", func(args []script.Value) (script.Value, error) {
		return args[0], nil
	})
	assert.True(t, m.HasExternalFn("double"))

	m.UnregisterExternalFn("double")
	assert.False(t, m.HasExternalFn("double"))
}

func TestManager_UnregisterAndHasExternalVar(t *testing.T) {
	m := NewManager()
	m.RegisterExternalVar("x", script.NewInt(script.I32, 1), false)
	assert.True(t, m.HasExternalVar("x"))

	m.UnregisterExternalVar("x")
	assert.False(t, m.HasExternalVar("x"))
	_, ok := m.ExternalVar("x")
	assert.False(t, ok)
}

func TestManager_Origin(t *testing.T) {
	m := NewManager()
	m.Load("a.script", `int32 f() { return 1; }`)

	origin, ok := m.Origin("f")
	require.True(t, ok)
	assert.Equal(t, "a.script", origin)

	_, ok = m.Origin("nope")
	assert.False(t, ok)
}

func TestManager_UnknownCharacterReportsLexerDiagnostic(t *testing.T) {
	m := NewManager()
	diags := m.Check("bad.script", `int32 f() { return 1 @ 2; }`)
	require.NotEmpty(t, diags)
	assert.Equal(t, script.CodeUnknownChar, diags[0].Code)
}

func TestManager_UnterminatedStringReportsLexerDiagnostic(t *testing.T) {
	m := NewManager()
	diags := m.Check("bad.script", "int32 f() { return \"oops; }")
	require.NotEmpty(t, diags)
	found := false
	for _, d := range diags {
		if d.Code == script.CodeUnterminatedString {
			found = true
		}
	}
	assert.True(t, found)
}

func TestManager_RuntimeErrorPropagates(t *testing.T) {
	m := NewManager()
	m.Load("err.script", `int32 f(int32 a, int32 b) { return a / b; }`)

	_, err := m.Invoke(context.Background(), "f", script.NewInt(script.I32, 1), script.NewInt(script.I32, 0))
	assert.Error(t, err)
}
