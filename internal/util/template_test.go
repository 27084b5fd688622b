package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type vars struct {
	Topic string
	Name  string
	Mode  string
}

func TestRenderTemplate(t *testing.T) {
	out, err := RenderTemplate("You are {{.Name}} discussing {{.Topic}} ({{upper .Mode}}).", vars{Topic: "tea", Name: "Ann", Mode: "debate"})
	require.NoError(t, err)
	assert.Equal(t, "You are Ann discussing tea (DEBATE).", out)
}

func TestRenderTemplate_NoMarkers(t *testing.T) {
	out, err := RenderTemplate("plain <b>text</b>", nil)
	require.NoError(t, err)
	assert.Equal(t, "plain <b>text</b>", out)
}

func TestRenderTemplate_Helpers(t *testing.T) {
	out, err := RenderTemplate(`{{default "none" .Topic}}|{{title .Name}}|{{join ", " .List}}`, map[string]any{
		"Topic": "",
		"Name":  "bOB",
		"List":  []string{"a", "b"},
	})
	require.NoError(t, err)
	assert.Equal(t, "none|Bob|a, b", out)
}

func TestRenderTemplateOrRaw(t *testing.T) {
	assert.Equal(t, "broken {{.Topic", RenderTemplateOrRaw("broken {{.Topic", vars{}))
	assert.Equal(t, "x tea", RenderTemplateOrRaw("x {{.Topic}}", vars{Topic: "tea"}))
	assert.Equal(t, "{{.Missing}}", RenderTemplateOrRaw("{{.Missing}}", vars{}))
}
