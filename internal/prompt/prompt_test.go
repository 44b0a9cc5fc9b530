package prompt

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		name      string
		ns        string
		secondary bool
		rich      bool
		want      string
	}{
		{"rich single char", "a", false, true, " a=> "},
		{"rich primary", "user", false, true, "user=> "},
		{"plain single char", "a", false, false, "a=> "},
		{"plain primary", "user", false, false, "user=> "},
		{"rich secondary", "user.core", true, true, strings.Repeat(" ", 7) + "#_=> "},
		{"rich secondary short", "user", true, true, "  #_=> "},
		{"rich secondary clamped", "a", true, true, "#_=> "},
		{"plain secondary", "user", true, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(tt.ns, tt.secondary, tt.rich))
		})
	}
}

func TestPrimaryAndSecondaryAlign(t *testing.T) {
	for _, ns := range []string{"ab", "user", "user.core"} {
		assert.Len(t, Format(ns, true, true), len(Format(ns, false, true)), ns)
	}
}

func TestThemeFor(t *testing.T) {
	assert.Equal(t, "dark", ThemeFor("dark").Name)
	assert.Equal(t, "light", ThemeFor("light").Name)
	assert.Equal(t, "none", ThemeFor("none").Name)
	assert.Equal(t, "none", ThemeFor("solarized").Name)
}

func TestTheme_Render(t *testing.T) {
	p := Format("user", true, true)
	assert.Equal(t, p, ThemeFor("none").Render(p, true))
	assert.Equal(t, p, Theme{}.Render(p, false))

	for _, name := range []string{"dark", "light"} {
		got := ThemeFor(name).Render(" a=> ", false)
		assert.Equal(t, 5, lipgloss.Width(got), name)
		assert.True(t, strings.HasPrefix(got, " "), name)
		assert.True(t, strings.HasSuffix(got, " "), name)
		assert.Contains(t, got, "a=>")
	}
}
