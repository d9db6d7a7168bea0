// Package chatui is the terminal chat view for one direct-message
// conversation, driven by a feed controller.
package chatui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/tOgg1/dmfeed/internal/feed"
	"github.com/tOgg1/dmfeed/internal/logging"
	"github.com/tOgg1/dmfeed/internal/models"
)

const (
	subscriberID  = "chatui"
	eventBuffer   = 256
	toastDuration = 3 * time.Second
	tickInterval  = time.Second
)

// Config configures the chat view.
type Config struct {
	Controller *feed.Controller
	Contact    models.User

	Theme          string
	ShowTimestamps bool

	// PrefetchInterval is how often the visibility of the top of the
	// history is sampled.
	PrefetchInterval time.Duration
}

type inputMode int

const (
	modeInput inputMode = iota
	modeBrowse
)

type feedEventMsg struct {
	event *models.Event
}

type loadResultMsg struct {
	err error
}

type sendResultMsg struct {
	err error
}

type deleteResultMsg struct {
	id  string
	err error
}

type tickMsg struct{}

// Model is the bubbletea model of the chat view.
type Model struct {
	ctrl     *feed.Controller
	prefetch *feed.Prefetcher
	contact  models.User
	viewer   models.User
	theme    Theme
	styles   styles
	logger   zerolog.Logger

	showTimestamps   bool
	prefetchInterval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	events chan *models.Event

	// sentinel is read by the visibility sampler goroutine.
	sentinel atomic.Bool

	width    int
	height   int
	snapshot models.Snapshot
	mode     inputMode
	input    string
	selected string
	// offset is the number of lines scrolled up from the newest message.
	offset     int
	toast      string
	toastUntil time.Time
}

// NewModel subscribes a chat view to cfg.Controller.
func NewModel(cfg Config) (*Model, error) {
	if cfg.Controller == nil {
		return nil, fmt.Errorf("controller required")
	}
	if strings.TrimSpace(cfg.Contact.ID) == "" {
		return nil, fmt.Errorf("contact required")
	}
	theme, _ := ThemeByName(cfg.Theme)
	ctx, cancel := context.WithCancel(context.Background())

	viewer := cfg.Controller.Viewer()
	m := &Model{
		ctrl:             cfg.Controller,
		prefetch:         feed.NewPrefetcher(cfg.Controller),
		contact:          cfg.Contact,
		viewer:           viewer,
		theme:            theme,
		styles:           newStyles(theme),
		logger:           logging.WithUser(logging.Component("chatui"), viewer.ID),
		showTimestamps:   cfg.ShowTimestamps,
		prefetchInterval: cfg.PrefetchInterval,
		ctx:              ctx,
		cancel:           cancel,
		events:           make(chan *models.Event, eventBuffer),
		width:            80,
		height:           24,
		snapshot:         cfg.Controller.Snapshot(),
	}
	if err := cfg.Controller.Subscribe(subscriberID, m.enqueue); err != nil {
		cancel()
		return nil, err
	}
	return m, nil
}

// Run opens the chat view in the alternate screen until the user quits.
func Run(cfg Config) error {
	model, err := NewModel(cfg)
	if err != nil {
		return err
	}
	defer model.Close()

	program := tea.NewProgram(model, tea.WithAltScreen())
	_, err = program.Run()
	return err
}

// Close stops background work and unsubscribes from the controller.
func (m *Model) Close() {
	m.cancel()
	_ = m.ctrl.Unsubscribe(subscriberID)
}

func (m *Model) enqueue(event *models.Event) {
	select {
	case m.events <- event:
	default:
		m.logger.Warn().Str("type", string(event.Type)).Msg("event queue full, dropping event")
	}
}

func (m *Model) Init() tea.Cmd {
	signals := feed.PollSignal(m.ctx, m.prefetchInterval, m.sentinel.Load)
	go m.prefetch.Run(m.ctx, signals)
	return tea.Batch(m.loadCmd(), m.waitForEventCmd(), tickCmd())
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch typed := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = typed.Width
		m.height = typed.Height
	case feedEventMsg:
		m.applyEvent(typed.event)
		cmd = m.waitForEventCmd()
	case loadResultMsg:
		m.reportError(typed.err)
	case sendResultMsg:
		m.reportError(typed.err)
	case deleteResultMsg:
		m.reportError(typed.err)
	case tickMsg:
		m.snapshot = m.latest(m.ctrl.Snapshot())
		if !m.toastUntil.IsZero() && time.Now().After(m.toastUntil) {
			m.toast = ""
			m.toastUntil = time.Time{}
		}
		cmd = tickCmd()
	case tea.KeyMsg:
		cmd = m.handleKey(typed)
	}
	m.sentinel.Store(m.frame().sentinelVisible)
	return m, cmd
}

func (m *Model) applyEvent(event *models.Event) {
	if event == nil {
		return
	}
	switch event.Type {
	case models.EventTypeReset:
		m.prefetch.Reset()
		m.offset = 0
		m.selected = ""
		if event.Snapshot != nil {
			m.snapshot = *event.Snapshot
		}
	case models.EventTypeSnapshot:
		if event.Snapshot != nil {
			m.snapshot = m.latest(*event.Snapshot)
		}
	case models.EventTypeNotice:
		if event.Notice != nil {
			m.setToast(event.Notice.String())
		}
	}
	if m.selected != "" && m.indexOf(m.selected) < 0 {
		m.selected = ""
	}
}

// latest keeps whichever snapshot is newer; the tick may race an event.
func (m *Model) latest(s models.Snapshot) models.Snapshot {
	if s.Version < m.snapshot.Version {
		return m.snapshot
	}
	return s
}

// reportError shows errors that did not already arrive as a notice.
func (m *Model) reportError(err error) {
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	if _, ok := feed.NoticeFor(err, ""); ok {
		return
	}
	m.setToast(err.Error())
}

func (m *Model) setToast(text string) {
	m.toast = strings.TrimSpace(text)
	m.toastUntil = time.Now().Add(toastDuration)
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "ctrl+c":
		return tea.Quit
	case "pgup":
		m.scroll(m.bodyHeight() / 2)
		return nil
	case "pgdown":
		m.scroll(-m.bodyHeight() / 2)
		return nil
	}
	if m.mode == modeBrowse {
		return m.handleBrowseKey(msg)
	}
	return m.handleInputKey(msg)
}

func (m *Model) handleInputKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		m.mode = modeBrowse
		if ids := m.messageIDs(); len(ids) > 0 {
			m.selectID(ids[len(ids)-1])
		}
		return nil
	case "enter":
		content := m.input
		if strings.TrimSpace(content) == "" {
			return nil
		}
		m.input = ""
		m.offset = 0
		return m.sendCmd(content)
	case "backspace", "ctrl+h":
		if len(m.input) > 0 {
			runes := []rune(m.input)
			m.input = string(runes[:len(runes)-1])
		}
		return nil
	case "up":
		m.scroll(1)
		return nil
	case "down":
		m.scroll(-1)
		return nil
	}

	switch msg.Type {
	case tea.KeyRunes:
		m.input += string(msg.Runes)
	case tea.KeySpace:
		m.input += " "
	}
	return nil
}

func (m *Model) handleBrowseKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "q":
		return tea.Quit
	case "esc", "i", "enter":
		m.mode = modeInput
		m.selected = ""
	case "k", "up":
		m.moveSelection(-1)
	case "j", "down":
		m.moveSelection(1)
	case "g", "home":
		if ids := m.messageIDs(); len(ids) > 0 {
			m.selectID(ids[0])
		}
	case "G", "end":
		m.offset = 0
		if ids := m.messageIDs(); len(ids) > 0 {
			m.selectID(ids[len(ids)-1])
		}
	case "d":
		if m.selected != "" {
			return m.deleteCmd(m.selected)
		}
	}
	return nil
}

func (m *Model) messageIDs() []string {
	msgs := m.snapshot.Sequence.Messages()
	ids := make([]string, len(msgs))
	for i := range msgs {
		ids[i] = msgs[i].ID
	}
	return ids
}

func (m *Model) indexOf(id string) int {
	for i, candidate := range m.messageIDs() {
		if candidate == id {
			return i
		}
	}
	return -1
}

func (m *Model) moveSelection(delta int) {
	ids := m.messageIDs()
	if len(ids) == 0 {
		return
	}
	idx := m.indexOf(m.selected)
	if idx < 0 {
		idx = len(ids) - 1
	} else {
		idx += delta
	}
	if idx < 0 {
		// Past the oldest loaded message: reveal the top of the history.
		m.scroll(1)
		idx = 0
	}
	if idx >= len(ids) {
		idx = len(ids) - 1
	}
	m.selectID(ids[idx])
}

func (m *Model) selectID(id string) {
	m.selected = id
	f := m.frame()
	span, ok := f.spans[id]
	if !ok {
		return
	}
	start := f.windowStart()
	switch {
	case span.start < start:
		m.offset = len(f.lines) - f.height - span.start
	case span.end > start+f.height:
		m.offset = len(f.lines) - span.end
	}
	m.clampOffset(f)
}

func (m *Model) scroll(lines int) {
	m.offset += lines
	m.clampOffset(m.frame())
}

func (m *Model) clampOffset(f frame) {
	maxOffset := len(f.lines) - f.height
	if m.offset > maxOffset {
		m.offset = maxOffset
	}
	if m.offset < 0 {
		m.offset = 0
	}
}

func (m *Model) waitForEventCmd() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-m.ctx.Done():
			return nil
		case event := <-m.events:
			return feedEventMsg{event: event}
		}
	}
}

func (m *Model) loadCmd() tea.Cmd {
	contactID := m.contact.ID
	return func() tea.Msg {
		return loadResultMsg{err: m.ctrl.LoadInitial(m.ctx, contactID)}
	}
}

func (m *Model) sendCmd(content string) tea.Cmd {
	return func() tea.Msg {
		_, err := m.ctrl.Send(m.ctx, content)
		return sendResultMsg{err: err}
	}
}

func (m *Model) deleteCmd(id string) tea.Cmd {
	return func() tea.Msg {
		return deleteResultMsg{id: id, err: m.ctrl.Delete(m.ctx, id)}
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(tickInterval, func(time.Time) tea.Msg { return tickMsg{} })
}
