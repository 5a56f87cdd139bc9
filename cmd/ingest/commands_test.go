package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMediaTypeFor(t *testing.T) {
	assert.Equal(t, "image/jpeg", mediaTypeFor("shots/a.JPEG", nil))
	assert.Equal(t, "image/webp", mediaTypeFor("b.webp", nil))

	png := []byte("\x89PNG\r\n\x1a\n0000")
	assert.Equal(t, "image/png", mediaTypeFor("no-extension", png))
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printJSON(&buf, map[string]int{"places": 2}))
	assert.Equal(t, "{\n  \"places\": 2\n}\n", buf.String())
}

func TestCommandTree(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"process", "process-dir", "geocode", "search"} {
		assert.True(t, names[want], want)
	}
}
