package ui

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/klauern/wikisync/internal/model"
	"github.com/klauern/wikisync/internal/sync"
)

// Styles contains reusable lipgloss styles.
var Styles = struct {
	Title  lipgloss.Style
	Header lipgloss.Style
	Cell   lipgloss.Style
}{
	Title:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6")),
	Header: lipgloss.NewStyle().Bold(true).Padding(0, 1),
	Cell:   lipgloss.NewStyle().Padding(0, 1),
}

var titleCaser = cases.Title(language.English)

// Title renders a heading.
func Title(text string) string {
	if !IsColorEnabled() {
		return text
	}
	return Styles.Title.Render(text)
}

// ActionLabel returns the display label of an action.
func ActionLabel(a sync.Action) string {
	return titleCaser.String(string(a))
}

// PageStatus returns the status line for one reconciled page.
func PageStatus(pr sync.PageResult) string {
	msg := pr.Page.Name
	detail := pr.Message
	if pr.Error != nil {
		detail = pr.Error.Error()
	}
	if detail != "" {
		msg += " " + Dim("("+detail+")")
	}

	switch pr.Action {
	case sync.ActionReconciled:
		return StatusSuccess(msg)
	case sync.ActionConflict:
		return StatusConflict(msg)
	case sync.ActionPending:
		return StatusPending(msg)
	case sync.ActionFailed:
		return StatusError(msg)
	default:
		return StatusSkipped(msg)
	}
}

// RenderResult writes one status line per page followed by the run summary.
// One-sided pages are listed only when verbose is set.
func RenderResult(w io.Writer, res *sync.Result, verbose bool) error {
	if verbose {
		for _, sp := range res.OnlyLocal {
			if _, err := fmt.Fprintln(w, Dim("  local only:  "+sp.Name)); err != nil {
				return err
			}
		}
		for _, sp := range res.OnlyRemote {
			if _, err := fmt.Fprintln(w, Dim("  remote only: "+sp.Name)); err != nil {
				return err
			}
		}
	}

	for _, pr := range res.Pages {
		if pr.Action == sync.ActionSkipped && !verbose {
			continue
		}
		if _, err := fmt.Fprintln(w, "  "+PageStatus(pr)); err != nil {
			return err
		}
	}

	_, err := fmt.Fprint(w, "\n"+res.Summary())
	return err
}

// RenderTags renders the tag log of a page as a table.
func RenderTags(page string, tags []model.Tag) string {
	if len(tags) == 0 {
		return fmt.Sprintf("%s: no tags\n", page)
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("Remote Wiki", "Direction", "Remote Rev", "Local Rev").
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return Styles.Header
			}
			return Styles.Cell
		})
	for _, tag := range tags {
		t.Row(
			model.ParseIdentity(tag.RemoteWiki).DisplayName(),
			titleCaser.String(string(tag.Direction)),
			strconv.Itoa(tag.RemoteRevision),
			strconv.Itoa(tag.LocalRevision),
		)
	}
	return Title(page) + "\n" + t.String() + "\n"
}
