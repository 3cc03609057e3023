package pathutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToRelative(t *testing.T) {
	assert.Equal(t, "src/main.go", ToRelative("/home/user/project/src/main.go", "/home/user/project"))
	assert.Equal(t, "/other/location/file.go", ToRelative("/other/location/file.go", "/home/user/project"))
	assert.Equal(t, "src/main.go", ToRelative("src/main.go", "/home/user/project"))
	assert.Equal(t, "", ToRelative("", "/home/user/project"))
	assert.Equal(t, "/home/user/project/a.go", ToRelative("/home/user/project/a.go", ""))
}

func TestToAbsolute(t *testing.T) {
	assert.Equal(t, "/home/user/project/src/main.go", ToAbsolute("src/main.go", "/home/user/project"))
	assert.Equal(t, "/elsewhere/file.go", ToAbsolute("/elsewhere/file.go", "/home/user/project"))
	assert.Equal(t, "", ToAbsolute("", "/home/user/project"))
}

func TestToRelative_ToAbsolute_RoundTrip(t *testing.T) {
	root := "/home/user/project"
	abs := "/home/user/project/internal/store/vector.go"
	assert.Equal(t, abs, ToAbsolute(ToRelative(abs, root), root))
}
