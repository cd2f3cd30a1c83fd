// Package tui provides a terminal user interface.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/user/netcrawl/internal/crawler"
)

// EventMsg wraps a crawl event for the progress view.
type EventMsg struct {
	Event crawler.Event
}

// DoneMsg tells the progress view the crawl has finished.
type DoneMsg struct{}

// Progress is the live crawl progress view. Events are delivered from the
// crawl goroutine through Program.Send.
type Progress struct {
	seed    string
	spinner spinner.Model

	current string
	queued  int64
	crawled int64
	errored int64
	done    bool
	recent  []string
}

// NewProgress creates a progress view for a crawl starting at seed.
func NewProgress(seed string) Progress {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(Primary)

	return Progress{
		seed:    seed,
		spinner: s,
	}
}

// Init initializes the model.
func (p Progress) Init() tea.Cmd {
	return p.spinner.Tick
}

// Update handles messages.
func (p Progress) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return p, tea.Quit
		}

	case EventMsg:
		ev := msg.Event
		p.queued = ev.Queued
		p.crawled = ev.Crawled
		p.errored = ev.Errored
		switch ev.Type {
		case crawler.EventVisiting:
			p.current = ev.Hostname
		case crawler.EventCrawled:
			p.remember(SuccessStyle.Render("✓ ") + ev.Hostname)
		case crawler.EventErrored:
			p.remember(ErrorStyle.Render("✗ ") + ev.Hostname)
		}
		return p, nil

	case DoneMsg:
		p.done = true
		p.current = ""
		return p, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		p.spinner, cmd = p.spinner.Update(msg)
		return p, cmd
	}

	return p, nil
}

// View renders the progress view.
func (p Progress) View() string {
	var b strings.Builder

	b.WriteString(HeaderStyle.Render("netcrawl") + " ")
	b.WriteString(DimStyle.Render("seed: "+p.seed) + "\n\n")

	if p.done {
		b.WriteString(SuccessStyle.Render("Crawl complete") + "\n")
	} else if p.current != "" {
		b.WriteString(fmt.Sprintf("%s visiting %s\n", p.spinner.View(), ValueStyle.Render(p.current)))
	} else {
		b.WriteString(fmt.Sprintf("%s waiting for frontier\n", p.spinner.View()))
	}

	b.WriteString("\n")
	b.WriteString(LabelStyle.Render("Queued") + ValueStyle.Render(fmt.Sprintf("%d", p.queued)) + "\n")
	b.WriteString(LabelStyle.Render("Crawled") + SuccessStyle.Render(fmt.Sprintf("%d", p.crawled)) + "\n")
	b.WriteString(LabelStyle.Render("Errored") + ErrorStyle.Render(fmt.Sprintf("%d", p.errored)) + "\n")

	if len(p.recent) > 0 {
		b.WriteString("\n")
		for _, line := range p.recent {
			b.WriteString("  " + line + "\n")
		}
	}

	if !p.done {
		b.WriteString("\n" + DimStyle.Render("q to detach (crawl keeps running)"))
	}
	b.WriteString("\n")
	return b.String()
}

func (p *Progress) remember(line string) {
	p.recent = append(p.recent, line)
	if len(p.recent) > 8 {
		p.recent = p.recent[len(p.recent)-8:]
	}
}
