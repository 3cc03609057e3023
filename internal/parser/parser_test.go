package parser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_PythonFunction(t *testing.T) {
	src := []byte("def add(a, b):\n    return a + b\n")

	p := New()
	result, err := p.Parse(context.Background(), "calc.py", src)
	require.NoError(t, err)

	assert.Equal(t, "python", result.Language)
	assert.Equal(t, "calc.py", result.FilePath)
	require.Len(t, result.Units, 1)

	u := result.Units[0]
	assert.Equal(t, "add", u.Name)
	assert.Equal(t, "function", string(u.UnitType))
	assert.Equal(t, 1, u.StartLine)
}

func TestParse_PythonMethodInsideClass(t *testing.T) {
	src := []byte("class Greeter:\n    def greet(self):\n        return 'hi'\n")

	p := New()
	result, err := p.Parse(context.Background(), "greeter.py", src)
	require.NoError(t, err)
	require.Len(t, result.Units, 2)

	var sawClass, sawMethod bool
	for _, u := range result.Units {
		switch u.Name {
		case "Greeter":
			sawClass = true
			assert.Equal(t, "class", string(u.UnitType))
		case "greet":
			sawMethod = true
			assert.Equal(t, "method", string(u.UnitType))
			assert.Equal(t, "Greeter", u.ParentName)
		}
	}
	assert.True(t, sawClass)
	assert.True(t, sawMethod)
}

func TestParse_GoFunction(t *testing.T) {
	src := []byte("package main\n\nfunc Add(a, b int) int {\n\treturn a + b\n}\n")

	p := New()
	result, err := p.Parse(context.Background(), "calc.go", src)
	require.NoError(t, err)

	assert.Equal(t, "go", result.Language)
	require.Len(t, result.Units, 1)
	assert.Equal(t, "Add", result.Units[0].Name)
}

func TestParse_UnknownExtensionReturnsEmptyUnits(t *testing.T) {
	p := New()
	result, err := p.Parse(context.Background(), "data.bin", []byte{0x00, 0x01, 0x02})
	require.NoError(t, err)

	assert.Equal(t, "unknown", result.Language)
	assert.Empty(t, result.Units)
}

func TestParse_InvalidSyntaxDoesNotError(t *testing.T) {
	src := []byte("def broken(:\n   this is not valid python at all ???\n")

	p := New()
	result, err := p.Parse(context.Background(), "broken.py", src)
	require.NoError(t, err)
	assert.Equal(t, "python", result.Language)
	// Best-effort: may find zero or partial units, must never error out.
}

func TestParse_EmptyFileReturnsNoUnits(t *testing.T) {
	p := New()
	result, err := p.Parse(context.Background(), "empty.py", []byte{})
	require.NoError(t, err)
	assert.Empty(t, result.Units)
}

func TestParse_RubyMethod(t *testing.T) {
	src := []byte("class Greeter\n  def hello\n    puts 'hi'\n  end\nend\n")

	p := New()
	result, err := p.Parse(context.Background(), "greeter.rb", src)
	require.NoError(t, err)
	assert.Equal(t, "ruby", result.Language)

	var sawMethod bool
	for _, u := range result.Units {
		if u.Name == "hello" {
			sawMethod = true
			assert.Equal(t, "Greeter", u.ParentName)
		}
	}
	assert.True(t, sawMethod)
}

func TestParse_ReportsParseTime(t *testing.T) {
	p := New()
	result, err := p.Parse(context.Background(), "calc.py", []byte("def f(): pass\n"))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, result.ParseTimeMs, 0.0)
}

func TestParse_JSONRecognizedWithoutUnits(t *testing.T) {
	p := New()
	assert.Equal(t, "json", p.LanguageFor(".json"))

	result, err := p.Parse(context.Background(), "package.json", []byte(`{"name": "demo", "version": "1.0.0"}`))
	require.NoError(t, err)
	assert.Equal(t, "json", result.Language)
	assert.Empty(t, result.Units)
}
