// Package report renders operator summaries as terminal markdown.
package report

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	md "github.com/nao1215/markdown"

	"finboard/internal/core"
	"finboard/internal/session"
)

// Status describes the state of a finboard installation as seen from the CLI.
type Status struct {
	Backend      string
	TokenPresent bool
	ProfileURL   string
	Profile      *core.UserProfile
	ProfileErr   error
	EventsURL    string
	Currency     string
	Timezone     string
}

// Markdown formats the status as a markdown document.
func (s Status) Markdown() string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)

	doc.H1("finboard status")
	doc.H2("Session")
	doc.Table(md.TableSet{
		Header: []string{"Setting", "Value"},
		Rows: [][]string{
			{"Token backend", "`" + s.Backend + "`"},
			{"Token", presence(s.TokenPresent)},
			{"Profile endpoint", orDash(s.ProfileURL)},
		},
	})

	switch {
	case !s.TokenPresent:
		doc.PlainText("No token stored: the dashboard will redirect to login.")
	case s.ProfileErr != nil:
		doc.PlainText(fmt.Sprintf("Profile check failed (`%s`): the dashboard will discard the token and redirect to login.",
			session.Reason(s.ProfileErr)))
	case s.Profile != nil:
		doc.PlainText(fmt.Sprintf("Signed in as %s (%s).", md.Bold(orDash(s.Profile.FullName)), orDash(s.Profile.Email)))
	}

	events := "Events: disabled"
	if s.EventsURL != "" {
		events = "Events: published to " + s.EventsURL
	}
	doc.H2("Ledger")
	doc.BulletList(
		"Currency: "+s.Currency,
		"Month buckets: "+s.Timezone,
		events,
	)
	return doc.String()
}

// Render turns markdown into styled terminal output. With plain set the
// output carries no ANSI colors.
func Render(doc string, width int, plain bool) (string, error) {
	style := glamour.WithAutoStyle()
	if plain {
		style = glamour.WithStandardStyle("notty")
	}
	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(width))
	if err != nil {
		return "", fmt.Errorf("create markdown renderer: %w", err)
	}
	out, err := r.Render(doc)
	if err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return out, nil
}

func presence(ok bool) string {
	if ok {
		return "present"
	}
	return "absent"
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
