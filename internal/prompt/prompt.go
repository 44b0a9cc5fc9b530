// Package prompt formats the primary and continuation prompts.
package prompt

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const (
	primarySuffix   = "=> "
	secondarySuffix = "#_=> "
)

// Format returns the prompt for namespace ns.  Secondary prompts exist
// in rich mode only; in plain mode Format returns "" for them and the
// caller shows nothing.
func Format(ns string, secondary, rich bool) string {
	if secondary {
		if !rich {
			return ""
		}
		pad := len(ns) - 2
		if pad < 0 {
			pad = 0
		}
		return strings.Repeat(" ", pad) + secondarySuffix
	}
	if rich && len(ns) == 1 {
		return " " + ns + primarySuffix
	}
	return ns + primarySuffix
}

// Theme colours prompts for a rich terminal.  The zero Theme renders
// prompts unchanged.
type Theme struct {
	Name      string
	primary   *lipgloss.Style
	secondary *lipgloss.Style
}

// Themes lists the accepted theme names.
var Themes = []string{"dark", "light", "none"}

// ThemeFor returns the named theme; unknown names fall back to "none".
func ThemeFor(name string) Theme {
	var p, s lipgloss.Style
	switch name {
	case "dark":
		p = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
		s = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	case "light":
		p = lipgloss.NewStyle().Foreground(lipgloss.Color("4")).Bold(true)
		s = lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	default:
		return Theme{Name: "none"}
	}
	return Theme{Name: name, primary: &p, secondary: &s}
}

// Render styles p.  Leading and trailing spaces are kept outside the
// styled span so alignment is unaffected.
func (t Theme) Render(p string, secondary bool) string {
	st := t.primary
	if secondary {
		st = t.secondary
	}
	core := strings.TrimSpace(p)
	if st == nil || core == "" {
		return p
	}
	lead := p[:strings.Index(p, core)]
	trail := p[len(lead)+len(core):]
	return lead + st.Render(core) + trail
}
