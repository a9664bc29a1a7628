package viz

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/azisim/internal/experiment"
)

const progressWidth = 40

type (
	TrialMsg    experiment.ProgressEvent
	FinishedMsg struct{ Err error }
	tickMsg     time.Time
)

type settingsProgress struct {
	done, failed int
}

// Progress is a Bubble Tea model tracking trials across settings documents.
type Progress struct {
	total    int
	done     int
	failed   int
	order    []string
	perName  map[string]*settingsProgress
	frame    int
	start    time.Time
	finished bool
	err      error
}

func NewProgress(total int) Progress {
	return Progress{total: total, perName: map[string]*settingsProgress{}, start: time.Now()}
}

func tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Progress) Init() tea.Cmd { return tick() }

func (m Progress) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		if m.finished {
			return m, nil
		}
		m.frame++
		return m, tick()

	case TrialMsg:
		sp, ok := m.perName[msg.Name]
		if !ok {
			sp = &settingsProgress{}
			m.perName[msg.Name] = sp
			m.order = append(m.order, msg.Name)
		}
		sp.done++
		m.done++
		if msg.Err != nil {
			sp.failed++
			m.failed++
		}
		if msg.Total > 0 {
			m.total = msg.Total
		}
		return m, nil

	case FinishedMsg:
		m.finished = true
		m.err = msg.Err
		return m, tea.Quit
	}
	return m, nil
}

func (m Progress) fraction() float64 {
	if m.total <= 0 {
		return 0
	}
	return float64(m.done) / float64(m.total)
}

func (m Progress) View() string {
	var b strings.Builder

	status := StatusOK.Render(Spinner(m.frame))
	if m.finished {
		status = StatusOK.Render("✓")
	}
	fmt.Fprintf(&b, "%s %s %s %s\n",
		status,
		ProgressBar(m.fraction(), progressWidth),
		MetricValue.Render(fmt.Sprintf("%d/%d", m.done, m.total)),
		Subtle.Render(time.Since(m.start).Round(time.Second).String()),
	)
	if m.failed > 0 {
		b.WriteString(StatusWarn.Render(fmt.Sprintf("  %d trials failed", m.failed)) + "\n")
	}
	for _, name := range m.order {
		sp := m.perName[name]
		line := fmt.Sprintf("  %s %d", name, sp.done)
		if sp.failed > 0 {
			line += StatusWarn.Render(fmt.Sprintf(" (%d failed)", sp.failed))
		}
		b.WriteString(MetricLabel.Render(line) + "\n")
	}
	return b.String()
}

// RunWithProgress runs work while rendering progress to w. work receives
// the callback to hand to the driver; it is called from worker goroutines.
func RunWithProgress(ctx context.Context, w io.Writer, total int, work func(onTrial func(experiment.ProgressEvent)) error) error {
	p := tea.NewProgram(NewProgress(total),
		tea.WithContext(ctx),
		tea.WithInput(nil),
		tea.WithOutput(w),
		tea.WithoutSignalHandler(),
	)

	done := make(chan error, 1)
	go func() {
		err := work(func(e experiment.ProgressEvent) { p.Send(TrialMsg(e)) })
		p.Send(FinishedMsg{Err: err})
		done <- err
	}()

	_, runErr := p.Run()
	workErr := <-done
	if errors.Is(runErr, tea.ErrProgramKilled) || errors.Is(runErr, context.Canceled) {
		runErr = nil
	}
	return errors.Join(workErr, runErr)
}
