package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/chartx/internal/models"
	"github.com/desertthunder/chartx/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	ConfirmView ViewState = iota
	CollectView
	ResultView
)

// maxEvents is how many recent progress messages the collect view keeps.
const maxEvents = 6

// RunFunc starts a collection and reports through progress until it returns.
type RunFunc func(ctx context.Context, progress chan<- tasks.ProgressUpdate) (*tasks.CollectResult, error)

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	cancel       context.CancelFunc
	view         ViewState
	run          *models.CollectionRun
	label        string
	collect      RunFunc
	width        int
	height       int
	progressChan chan tasks.ProgressUpdate
	done         chan collectOutcome
	progress     tasks.ProgressUpdate
	bar          progress.Model
	ticksDone    int
	records      int
	checkpoints  []string
	events       []string
	stopping     bool
	result       *tasks.CollectResult
	resultList   list.Model
	err          error
	help         help.Model
	keys         keyMap
}

// NewModel creates a new TUI model for run. label names the chart being collected.
func NewModel(ctx context.Context, run *models.CollectionRun, label string, collect RunFunc) *Model {
	ctx, cancel := context.WithCancel(ctx)
	return &Model{
		ctx:     ctx,
		cancel:  cancel,
		view:    ConfirmView,
		run:     run,
		label:   label,
		collect: collect,
		bar:     progress.New(progress.WithDefaultGradient()),
		help:    help.New(),
		keys:    newKeyMap(),
	}
}

// Init waits for confirmation, so there is nothing to start.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Result returns the finished run's outcome once the collect view has completed.
func (m *Model) Result() (*tasks.CollectResult, error) {
	return m.result, m.err
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = min(max(msg.Width-8, 20), 80)
		if m.view == ResultView {
			m.resultList.SetSize(msg.Width-4, msg.Height-12)
		}
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case CollectView:
			return m.handleCollectKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case Msg:
		switch msg.kind {
		case MsgProgressUpdate:
			m.applyProgress(msg.data.(tasks.ProgressUpdate))
			return m, m.waitForProgress()
		case MsgCollectComplete:
			outcome := msg.data.(collectOutcome)
			m.complete(outcome.result, outcome.err)
			return m, nil
		}
	}

	if m.view == ResultView {
		var cmd tea.Cmd
		m.resultList, cmd = m.resultList.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case ConfirmView:
		return m.renderConfirm()
	case CollectView:
		return m.renderCollect()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.yes):
		m.view = CollectView
		return m, m.startCollect()
	case key.Matches(msg, m.keys.no), key.Matches(msg, m.keys.quit):
		m.cancel()
		return m, tea.Quit
	}
	return m, nil
}

func (m *Model) handleCollectKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.cancel) && !m.stopping {
		m.stopping = true
		m.cancel()
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.quit) {
		m.cancel()
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.resultList, cmd = m.resultList.Update(msg)
	return m, cmd
}

func (m *Model) applyProgress(update tasks.ProgressUpdate) {
	m.progress = update

	switch update.Phase {
	case tasks.Capture:
		if cumulative, ok := update.Data.(int); ok {
			m.ticksDone = update.Step
			m.records = cumulative
		}
	case tasks.Checkpoint:
		if path, ok := update.Data.(string); ok {
			m.checkpoints = append(m.checkpoints, path)
		}
	case tasks.FetchFeatures, tasks.FetchGenres, tasks.FetchListing:
		return
	}

	m.events = append(m.events, update.Message)
	if len(m.events) > maxEvents {
		m.events = m.events[len(m.events)-maxEvents:]
	}
}

func (m *Model) complete(result *tasks.CollectResult, err error) {
	m.result = result
	m.err = err
	m.view = ResultView
	m.progressChan = nil
	m.done = nil

	var items []list.Item
	if result != nil && result.Run != nil {
		items = captureItems(result.Run.Records())
	}
	m.resultList = list.New(items, list.NewDefaultDelegate(), max(m.width-4, 20), max(m.height-12, 10))
	m.resultList.Title = fmt.Sprintf("Captures for %s", m.label)
}

func (m *Model) startCollect() tea.Cmd {
	m.progressChan = make(chan tasks.ProgressUpdate, 50)
	m.done = make(chan collectOutcome, 1)

	progressChan, done := m.progressChan, m.done
	go func() {
		result, err := m.collect(m.ctx, progressChan)
		done <- collectOutcome{result, err}
		close(progressChan)
	}()

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	progressChan, done := m.progressChan, m.done
	return func() tea.Msg {
		if progressChan == nil {
			return nil
		}

		update, ok := <-progressChan
		if !ok {
			outcome := <-done
			return collectCompleteMsg(outcome.result, outcome.err)
		}
		return progressUpdateMsg(update)
	}
}

func (m *Model) percent() float64 {
	total := m.run.TickCount()
	if total == 0 {
		return 0
	}
	return float64(m.ticksDone) / float64(total)
}

func (m *Model) renderSummary() string {
	return strings.Join([]string{
		field("Chart", m.label),
		field("Playlist", m.run.PlaylistID),
		field("Start", m.run.Start.Format("2006-01-02 15:04")),
		field("End", m.run.End.Format("2006-01-02 15:04")),
		field("Interval", m.run.Interval),
		field("Ticks", m.run.TickCount()),
	}, "\n")
}

func (m *Model) renderConfirm() string {
	title := styles.title.Render("Start chart collection?")
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.yes, m.keys.no})
	return fmt.Sprintf("%s\n%s\n\n%s", title, styles.box.Render(m.renderSummary()), helpView)
}

func (m *Model) renderCollect() string {
	title := styles.title.Render(fmt.Sprintf("Collecting %s", m.label))

	var phase string
	switch m.progress.Phase {
	case tasks.FetchListing:
		phase = "Fetching playlist listing..."
	case tasks.FetchFeatures:
		phase = fmt.Sprintf("Fetching audio features (%d/%d)", m.progress.Step, m.progress.Total)
	case tasks.FetchGenres:
		phase = fmt.Sprintf("Resolving genres (%d/%d)", m.progress.Step, m.progress.Total)
	case tasks.Checkpoint:
		phase = "Writing checkpoint..."
	case tasks.Export:
		phase = "Writing final export..."
	default:
		phase = "Capturing..."
	}
	if m.stopping {
		phase = styles.warn.Render("Stopping, the collected records will still be exported...")
	}

	stats := strings.Join([]string{
		field("Ticks", fmt.Sprintf("%d/%d", m.ticksDone, m.run.TickCount())),
		field("Records", m.records),
		field("Checkpoints", len(m.checkpoints)),
	}, "\n")

	events := styles.help.Render(strings.Join(m.events, "\n"))
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.cancel})

	return fmt.Sprintf("%s\n%s\n\n%s\n%s\n\n%s\n\n%s", title, m.bar.ViewAs(m.percent()), phase, stats, events, helpView)
}

func (m *Model) renderResult() string {
	var header string
	switch {
	case m.result == nil && m.err != nil:
		return styles.err.Render(fmt.Sprintf("Collection failed: %v\n\nPress q to quit", m.err))
	case m.err != nil:
		header = styles.warn.Render(fmt.Sprintf("Collection ended early: %v", m.err))
	default:
		header = styles.ok.Render("✓ Collection Complete!")
	}

	var info []string
	if m.result != nil {
		info = append(info,
			field("Ticks", fmt.Sprintf("%d (%d empty)", m.result.Ticks, m.result.EmptyTicks)),
			field("Records", m.result.Run.Len()),
			field("Checkpoints", len(m.result.Checkpoints)),
		)
		if m.result.FinalPath != "" {
			info = append(info, field("Export", m.result.FinalPath))
		}
	}

	helpView := m.help.ShortHelpView([]key.Binding{m.keys.up, m.keys.down, m.keys.quit})
	return fmt.Sprintf("%s\n\n%s\n\n%s\n\n%s", header, strings.Join(info, "\n"), m.resultList.View(), helpView)
}
