package chatui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/wordwrap"

	"github.com/tOgg1/dmfeed/internal/models"
)

const (
	sentinelText = "↑ older messages"
	loadingText  = "loading older messages..."
)

type span struct {
	start int
	end   int
}

// frame is the laid-out message history for the current size and offset.
type frame struct {
	lines  []string
	spans  map[string]span
	height int
	offset int
	// sentinelVisible is true when the top-of-history marker that requests
	// the next page is on screen.
	sentinelVisible bool
}

func (f frame) windowStart() int {
	return maxInt(0, len(f.lines)-f.height-f.offset)
}

func (f frame) visible() []string {
	start := f.windowStart()
	end := minInt(len(f.lines), start+f.height)
	out := make([]string, 0, f.height)
	for i := end - start; i < f.height; i++ {
		out = append(out, "")
	}
	return append(out, f.lines[start:end]...)
}

func (m *Model) View() string {
	width := maxInt(20, m.width)
	f := m.frame()

	parts := []string{m.renderHeader(width), strings.Join(f.visible(), "\n")}
	if toast := m.renderToast(width); toast != "" {
		parts = append(parts, toast)
	}
	parts = append(parts, m.renderInput(width), m.renderFooter(width))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m *Model) toastActive() bool {
	return m.toast != "" && (m.toastUntil.IsZero() || time.Now().Before(m.toastUntil))
}

func (m *Model) bodyHeight() int {
	chrome := 4 // header, input border, input, footer
	if m.toastActive() {
		chrome++
	}
	return maxInt(1, m.height-chrome)
}

func (m *Model) frame() frame {
	width := maxInt(20, m.width)
	f := frame{
		spans:  make(map[string]span),
		height: m.bodyHeight(),
	}

	snap := m.snapshot
	switch {
	case snap.Conversation.IsZero() || snap.Loading:
		f.lines = append(f.lines, m.styles.muted.Render(loadingText))
	case snap.HasMore:
		f.lines = append(f.lines, m.styles.muted.Render(sentinelText))
	default:
		f.lines = append(f.lines, m.styles.muted.Render("beginning of your conversation with "+m.contactLabel()))
	}
	sentinel := !snap.Conversation.IsZero() && !snap.Loading && snap.HasMore

	for gi, group := range snap.Sequence.Groups {
		if gi > 0 {
			f.lines = append(f.lines, "")
		}
		for _, entry := range group.Entries {
			start := len(f.lines)
			f.lines = append(f.lines, m.renderEntry(entry, width)...)
			f.spans[entry.Message.ID] = span{start: start, end: len(f.lines)}
		}
	}

	f.offset = minInt(maxInt(0, m.offset), maxInt(0, len(f.lines)-f.height))
	f.sentinelVisible = sentinel && f.windowStart() == 0
	return f
}

func (m *Model) renderEntry(entry models.Entry, width int) []string {
	msg := entry.Message
	own := msg.SenderID == m.viewer.ID
	selected := msg.ID == m.selected && m.mode == modeBrowse

	bubbleWidth := maxInt(10, width*2/3)
	body := wordwrap.String(msg.Content, bubbleWidth-2)
	style := m.styles.other
	if own {
		style = m.styles.own
	}
	block := style.Render(body)
	if selected {
		marker := m.styles.selected.Render("▌")
		rows := strings.Split(block, "\n")
		for i := range rows {
			rows[i] = marker + rows[i]
		}
		block = strings.Join(rows, "\n")
	}

	var caption []string
	switch msg.Status {
	case models.StatusPending:
		caption = append(caption, m.styles.pending.Render("sending..."))
	case models.StatusFailed:
		caption = append(caption, m.styles.failed.Render("not sent"))
	}
	if entry.ShowAvatar {
		label := m.senderLabel(msg.SenderID)
		if m.showTimestamps && !msg.CreatedAt.IsZero() {
			label += " " + msg.CreatedAt.Local().Format("15:04")
		}
		caption = append(caption, m.styles.handle.Render(label))
	}
	if len(caption) > 0 {
		block = lipgloss.JoinVertical(lipgloss.Left, block, strings.Join(caption, " "))
	}

	align := lipgloss.Left
	if own {
		align = lipgloss.Right
	}
	return strings.Split(lipgloss.PlaceHorizontal(width, align, block), "\n")
}

func (m *Model) senderLabel(senderID string) string {
	if senderID == m.viewer.ID {
		return "you"
	}
	return m.contactLabel()
}

func (m *Model) contactLabel() string {
	if handle := m.contact.Handle(); handle != "" {
		return handle
	}
	if m.contact.Name != "" {
		return m.contact.Name
	}
	return m.contact.ID
}

func (m *Model) renderHeader(width int) string {
	title := m.contactLabel()
	if m.contact.Name != "" && m.contact.Handle() != "" {
		title = fmt.Sprintf("%s (%s)", m.contact.Name, m.contact.Handle())
	}
	status := fmt.Sprintf("%d loaded", m.snapshot.Sequence.Len())
	if m.snapshot.Pending > 0 {
		status += fmt.Sprintf(", %d pending", m.snapshot.Pending)
	}
	return m.styles.header.Render(truncate(title+"  "+status, width-2))
}

func (m *Model) renderToast(width int) string {
	if !m.toastActive() {
		return ""
	}
	return m.styles.toast.Render(truncate(m.toast, width-2))
}

func (m *Model) renderInput(width int) string {
	line := "> " + m.input
	if m.mode == modeInput {
		line += "_"
	}
	// Keep the tail of long drafts in view.
	if runewidth.StringWidth(line) > width-2 {
		runes := []rune(line)
		for runewidth.StringWidth(string(runes)) > width-3 && len(runes) > 0 {
			runes = runes[1:]
		}
		line = "…" + string(runes)
	}
	return m.styles.input.Width(width).Render(line)
}

func (m *Model) renderFooter(width int) string {
	help := "enter send  esc select  pgup/pgdn scroll  ctrl+c quit"
	if m.mode == modeBrowse {
		help = "j/k move  g/G oldest/newest  d delete  esc compose  q quit"
	}
	return m.styles.footer.Render(truncate(help, width-2))
}

func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	return runewidth.Truncate(s, width, "…")
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
