package tui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlainRenderer(t *testing.T) {
	out, err := NewRenderer(false, 0)("**hello**")
	require.NoError(t, err)
	assert.Equal(t, "**hello**\n", out)
}

func TestStyledRenderer(t *testing.T) {
	out, err := NewRenderer(true, 120)("Over the last 2 weeks, how often have you been bothered by **little interest**?")
	require.NoError(t, err)
	assert.Contains(t, out, "little interest")
	assert.NotContains(t, out, "**")
}

func TestBanner(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf, "0.1.0")
	assert.Contains(t, buf.String(), "v0.1.0")
	assert.True(t, strings.Count(buf.String(), "\n") > 5)
}
