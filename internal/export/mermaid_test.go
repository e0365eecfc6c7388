package export

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateMermaid(t *testing.T) {
	out := GenerateMermaid(runFixture(t))

	assert.True(t, strings.HasPrefix(out, "graph LR\n"))
	assert.Contains(t, out, `subgraph G0["a:1"]`)
	assert.Contains(t, out, `C0["a:1"]`)
	assert.Contains(t, out, `C2["b:1"]`)
	assert.Contains(t, out, `C3["c:1"]`)
	assert.NotContains(t, out, `C1["a:2"]`, "isolated cells are left out")
	assert.Contains(t, out, "C0 ---|0.50| C2")
	assert.Contains(t, out, "C2 -.-|0.20| C3")
}

func TestEscape(t *testing.T) {
	assert.Equal(t, "fov#quot;1:2", escape(`fov"1:2`))
}
