package callextract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/semcode/internal/types"
)

func TestExtract_CallSitesAttributedToEnclosingUnit(t *testing.T) {
	src := []byte("def add(a, b):\n    return helper(a, b)\n")
	units := []types.Unit{
		{Name: "add", StartLine: 1, EndLine: 2},
	}

	sites, _ := Extract("x.py", src, units, "python")
	require.Len(t, sites, 1)
	assert.Equal(t, "helper", sites[0].CalleeName)
	assert.Equal(t, "add", sites[0].CallerFunction)
	assert.Equal(t, 2, sites[0].Line)
}

func TestExtract_SkipsCallsOutsideAnyUnit(t *testing.T) {
	src := []byte("setup_module()\n\ndef add(a, b):\n    return a + b\n")
	units := []types.Unit{
		{Name: "add", StartLine: 3, EndLine: 4},
	}
	sites, _ := Extract("x.py", src, units, "python")
	assert.Empty(t, sites)
}

func TestExtract_SkipsLanguageKeywords(t *testing.T) {
	src := []byte("func f() {\n\tif check() {\n\t\treturn\n\t}\n}\n")
	units := []types.Unit{{Name: "f", StartLine: 1, EndLine: 5}}
	sites, _ := Extract("x.go", src, units, "go")
	require.Len(t, sites, 1)
	assert.Equal(t, "check", sites[0].CalleeName)
}

func TestExtract_IgnoresCallsInsideStringsAndComments(t *testing.T) {
	src := []byte("func f() {\n\t// notcall()\n\tx := \"fake()\"\n\treal()\n}\n")
	units := []types.Unit{{Name: "f", StartLine: 1, EndLine: 5}}
	sites, _ := Extract("x.go", src, units, "go")
	require.Len(t, sites, 1)
	assert.Equal(t, "real", sites[0].CalleeName)
	_ = src
}

func TestExtractImplementations_JavaImplements(t *testing.T) {
	src := []byte("class Cat extends Animal implements Serializable, Comparable {\n}\n")
	_, impls := Extract("x.java", src, nil, "java")
	require.Len(t, impls, 2)
	assert.Equal(t, "Cat", impls[0].TypeName)
	assert.Equal(t, "Serializable", impls[0].InterfaceName)
	assert.Equal(t, "Comparable", impls[1].InterfaceName)
}

func TestExtractImplementations_RustImplFor(t *testing.T) {
	src := []byte("impl Display for Point {\n}\n")
	_, impls := Extract("x.rs", src, nil, "rust")
	require.Len(t, impls, 1)
	assert.Equal(t, "Display", impls[0].InterfaceName)
	assert.Equal(t, "Point", impls[0].TypeName)
}

func TestExtractImplementations_UnsupportedLanguageReturnsNil(t *testing.T) {
	_, impls := Extract("x.go", []byte("package main\n"), nil, "go")
	assert.Nil(t, impls)
}
