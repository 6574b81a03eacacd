package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ChinoUkaegbu/exportify/internal/models"
	"github.com/ChinoUkaegbu/exportify/internal/tasks"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	PlaylistListView ViewState = iota
	ExportView
	ResultView
)

// PlaylistLister lists the playlists to offer.
type PlaylistLister interface {
	Playlists(ctx context.Context) ([]models.PlaylistRef, error)
}

// Exporter runs the export pipeline. Implemented by tasks.Exporter.
type Exporter interface {
	ExportOne(ctx context.Context, playlist models.PlaylistRef, token string, progress chan<- tasks.ProgressUpdate) (*models.Document, error)
	ExportAll(ctx context.Context, playlists []models.PlaylistRef, token string, progress chan<- tasks.ProgressUpdate) (*tasks.Bundle, error)
}

// Saver persists export results and returns the written path.
type Saver interface {
	SaveDocument(doc *models.Document) (string, error)
	SaveBundle(bundle *tasks.Bundle) (string, error)
}

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	view         ViewState
	library      PlaylistLister
	exporter     Exporter
	saver        Saver
	token        string
	width        int
	height       int
	playlistList list.Model
	playlists    []models.PlaylistRef
	spinner      spinner.Model
	progressChan chan tasks.ProgressUpdate
	done         chan ExportOutcome
	progress     tasks.ProgressUpdate
	target       string
	outcome      ExportOutcome
	err          error
	help         help.Model
	keys         keyMap
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, library PlaylistLister, exporter Exporter, saver Saver, token string) *Model {
	return &Model{
		ctx:          ctx,
		view:         PlaylistListView,
		library:      library,
		exporter:     exporter,
		saver:        saver,
		token:        token,
		playlistList: list.New(nil, list.NewDefaultDelegate(), 0, 0),
		spinner:      spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(styles.success)),
		help:         help.New(),
		keys:         newKeyMap(),
	}
}

// Init initializes the TUI by fetching playlists from Spotify.
func (m *Model) Init() tea.Cmd {
	return m.fetchPlaylists()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.playlistList.SetSize(msg.Width-4, msg.Height-6)
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case PlaylistListView:
			return m.handlePlaylistListKeys(msg)
		case ExportView:
			if key.Matches(msg, m.keys.quit) {
				return m, tea.Quit
			}
			return m, nil
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case spinner.TickMsg:
		if m.view != ExportView {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case Msg:
		return m.handleMsg(msg)
	}

	var cmd tea.Cmd
	m.playlistList, cmd = m.playlistList.Update(msg)
	return m, cmd
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgPlaylistsFetched:
		data := msg.data.(playlistsFetched)
		if data.err != nil {
			m.err = data.err
			return m, nil
		}
		m.playlists = data.playlists
		m.playlistList.SetItems(playlistItems(data.playlists))
		m.playlistList.Title = fmt.Sprintf("Spotify Playlists (%d)", len(data.playlists))
		return m, nil

	case MsgProgressUpdate:
		m.progress = msg.data.(tasks.ProgressUpdate)
		return m, m.waitForProgress()

	case MsgExportComplete:
		m.outcome = msg.data.(ExportOutcome)
		m.view = ResultView
		m.progressChan = nil
		m.done = nil
		return m, nil
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil {
		return styles.error.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	switch m.view {
	case PlaylistListView:
		return m.renderPlaylistList()
	case ExportView:
		return m.renderExport()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handlePlaylistListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.err != nil && key.Matches(msg, m.keys.quit) {
		return m, tea.Quit
	}

	if m.playlistList.FilterState() != list.Filtering {
		switch {
		case key.Matches(msg, m.keys.quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.enter):
			if pl, ok := m.playlistList.SelectedItem().(playlistItem); ok {
				return m, m.startExport([]models.PlaylistRef{pl.playlist}, false)
			}
			return m, nil
		case key.Matches(msg, m.keys.all):
			if len(m.playlists) > 0 {
				return m, m.startExport(m.playlists, true)
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.playlistList, cmd = m.playlistList.Update(msg)
	return m, cmd
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.restart):
		m.view = PlaylistListView
		m.outcome = ExportOutcome{}
		m.progress = tasks.ProgressUpdate{}
		return m, nil
	}
	return m, nil
}

func (m *Model) fetchPlaylists() tea.Cmd {
	return func() tea.Msg {
		playlists, err := m.library.Playlists(m.ctx)
		return playlistsFetchedMsg(playlists, err)
	}
}

// startExport runs the export in the background and streams its progress.
func (m *Model) startExport(playlists []models.PlaylistRef, bundle bool) tea.Cmd {
	progress := make(chan tasks.ProgressUpdate, 64)
	done := make(chan ExportOutcome, 1)
	m.progressChan = progress
	m.done = done
	m.view = ExportView
	m.target = playlists[0].Name
	if bundle {
		m.target = fmt.Sprintf("%d playlists", len(playlists))
	}

	go func() {
		outcome := m.runExport(playlists, bundle, progress)
		close(progress)
		done <- outcome
	}()

	return tea.Batch(m.spinner.Tick, m.waitForProgress())
}

func (m *Model) runExport(playlists []models.PlaylistRef, bundle bool, progress chan<- tasks.ProgressUpdate) ExportOutcome {
	if !bundle {
		doc, err := m.exporter.ExportOne(m.ctx, playlists[0], m.token, progress)
		if err != nil {
			return ExportOutcome{Err: err}
		}
		path, err := m.saver.SaveDocument(doc)
		if err != nil {
			return ExportOutcome{Err: err}
		}
		return ExportOutcome{Paths: []string{path}, Unresolved: len(doc.Unresolved)}
	}

	b, err := m.exporter.ExportAll(m.ctx, playlists, m.token, progress)
	var bundleErr *tasks.BundleError
	if err != nil && !errors.As(err, &bundleErr) {
		return ExportOutcome{Err: err}
	}
	if bundleErr != nil && len(b.Documents) == 0 {
		return ExportOutcome{Err: bundleErr, Failures: b.Failures}
	}
	path, err := m.saver.SaveBundle(b)
	if err != nil {
		return ExportOutcome{Err: err}
	}

	outcome := ExportOutcome{Paths: []string{path}, Failures: b.Failures}
	for _, doc := range b.Documents {
		outcome.Unresolved += len(doc.Unresolved)
	}
	return outcome
}

func (m *Model) waitForProgress() tea.Cmd {
	progress, done := m.progressChan, m.done
	return func() tea.Msg {
		if progress == nil {
			return exportCompleteMsg(ExportOutcome{})
		}
		update, ok := <-progress
		if !ok {
			return exportCompleteMsg(<-done)
		}
		return progressUpdateMsg(update)
	}
}

func (m *Model) renderPlaylistList() string {
	return fmt.Sprintf("%s\n\n%s", m.playlistList.View(), m.help.ShortHelpView(m.keys.ShortHelp()))
}

func (m *Model) renderExport() string {
	title := styles.title.Render(fmt.Sprintf("Exporting %s", m.target))

	var phase string
	switch m.progress.Phase {
	case tasks.FetchTracks:
		phase = "Fetching tracks..."
	case tasks.ResolveArtists:
		phase = fmt.Sprintf("Resolving genres for %d artists...", m.progress.Total)
	case tasks.RenderDocument:
		phase = "Writing CSV..."
	default:
		phase = "Working..."
	}

	return fmt.Sprintf("%s\n\n%s %s\n%s", title, m.spinner.View(), phase, styles.muted.Render(m.progress.Message))
}

func (m *Model) renderResult() string {
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.restart, m.keys.quit})

	if m.outcome.Err != nil {
		msg := fmt.Sprintf("Export failed: %v", m.outcome.Err)
		return fmt.Sprintf("%s\n\n%s", styles.error.Render(msg), helpView)
	}

	var b strings.Builder
	b.WriteString(styles.success.Render("✓ Export Complete!"))
	b.WriteString("\n")
	for _, p := range m.outcome.Paths {
		fmt.Fprintf(&b, "\nSaved %s", p)
	}

	if m.outcome.Unresolved > 0 {
		b.WriteString("\n\n")
		b.WriteString(styles.warning.Render(fmt.Sprintf("%d artists exported without genres", m.outcome.Unresolved)))
	}

	if len(m.outcome.Failures) > 0 {
		b.WriteString("\n\n")
		b.WriteString(styles.warning.Render(fmt.Sprintf("%d playlists could not be exported:", len(m.outcome.Failures))))
		for _, f := range m.outcome.Failures {
			fmt.Fprintf(&b, "\n  • %s (%v)", f.Playlist.Name, f.Err)
		}
	}

	return fmt.Sprintf("%s\n\n%s", b.String(), helpView)
}
