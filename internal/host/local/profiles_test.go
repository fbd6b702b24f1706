package local

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseShells(t *testing.T) {
	data := []byte(`# /etc/shells: valid login shells
/bin/sh
/bin/bash

# modern shells
/usr/bin/zsh
  /usr/bin/fish
`)

	shells := parseShells(data)
	assert.Equal(t, []string{"/bin/sh", "/bin/bash", "/usr/bin/zsh", "/usr/bin/fish"}, shells)
}

func TestParseShellsEmptyInput(t *testing.T) {
	assert.Empty(t, parseShells(nil))
	assert.Empty(t, parseShells([]byte("# only comments\n\n")))
}
