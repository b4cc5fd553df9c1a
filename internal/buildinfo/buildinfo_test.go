package buildinfo

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserAgent(t *testing.T) {
	orig := buildVersion
	t.Cleanup(func() { buildVersion = orig })

	buildVersion = "N/A"
	assert.Equal(t, "gposync/dev", UserAgent())

	buildVersion = "v1.2.0"
	assert.Equal(t, "gposync/v1.2.0", UserAgent())
}

func TestPrintBuildData(t *testing.T) {
	var buf bytes.Buffer
	PrintBuildData(&buf)
	assert.Contains(t, buf.String(), "Build version: ")
	assert.Contains(t, buf.String(), "Build commit: N/A")
}
