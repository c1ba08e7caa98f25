// Package browse is a terminal browser for stored recordings.
package browse

import (
	"context"
	"fmt"
	"strings"

	"speechinsight/internal/recording"
	"speechinsight/internal/ui"
	"speechinsight/internal/waveform"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Lister is the part of recording.Store the browser reads from.
type Lister interface {
	List(ctx context.Context) ([]recording.Recording, error)
}

type Model struct {
	store  Lister
	recs   []recording.Recording
	cursor int
	offset int
	detail bool
	loaded bool
	err    error

	width  int
	height int
}

func New(store Lister) Model {
	return Model{store: store}
}

// Run starts the browser on the alternate screen and blocks until it quits.
func Run(store Lister) error {
	p := tea.NewProgram(New(store), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func (m Model) Init() tea.Cmd {
	return loadCmd(m.store)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.clampOffset()
		return m, nil

	case RecordingsLoadedMsg:
		m.loaded = true
		m.err = msg.Err
		if msg.Err == nil {
			m.recs = msg.Recordings
		}
		if m.cursor >= len(m.recs) {
			m.cursor = max(len(m.recs)-1, 0)
		}
		m.clampOffset()
		return m, nil
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case KeyQuit, KeyQuitUpper, KeyCtrlC:
		return m, tea.Quit

	case KeyJ, KeyDown:
		if !m.detail && m.cursor < len(m.recs)-1 {
			m.cursor++
			m.clampOffset()
		}
		return m, nil

	case KeyK, KeyUp:
		if !m.detail && m.cursor > 0 {
			m.cursor--
			m.clampOffset()
		}
		return m, nil

	case KeyTop:
		m.cursor = 0
		m.clampOffset()
		return m, nil

	case KeyBottom:
		m.cursor = max(len(m.recs)-1, 0)
		m.clampOffset()
		return m, nil

	case KeyEnter:
		if len(m.recs) > 0 {
			m.detail = !m.detail
		}
		return m, nil

	case KeyEsc:
		m.detail = false
		return m, nil

	case KeyReload:
		return m, loadCmd(m.store)
	}
	return m, nil
}

// Selected returns the recording under the cursor.
func (m Model) Selected() (recording.Recording, bool) {
	if m.cursor < 0 || m.cursor >= len(m.recs) {
		return recording.Recording{}, false
	}
	return m.recs[m.cursor], true
}

// listHeight is the number of rows available for recordings.
func (m Model) listHeight() int {
	return max(m.height-4, 1)
}

func (m *Model) clampOffset() {
	h := m.listHeight()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+h {
		m.offset = m.cursor - h + 1
	}
	if m.offset < 0 {
		m.offset = 0
	}
}

func (m Model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}
	sections := []string{
		m.renderHeader(),
		ui.DividerStyle.Render(strings.Repeat("─", m.width)),
	}
	switch {
	case m.err != nil:
		sections = append(sections, ui.ErrorStyle.Render("Error: ")+ui.ErrorTextStyle.Render(m.err.Error()))
	case !m.loaded:
		sections = append(sections, ui.DimStyle.Render("Loading recordings..."))
	case len(m.recs) == 0:
		sections = append(sections, ui.DimStyle.Render("No recordings yet. Import one with: speechinsight import <file>"))
	case m.detail:
		sections = append(sections, m.renderDetail())
	default:
		sections = append(sections, m.renderList())
	}
	sections = append(sections,
		ui.DividerStyle.Render(strings.Repeat("─", m.width)),
		m.renderFooter(),
	)
	return strings.Join(sections, "\n")
}

func (m Model) renderHeader() string {
	title := ui.TitleStyle.Render("SPEECHINSIGHT")
	count := ui.DimStyle.Render(fmt.Sprintf(" %d recordings", len(m.recs)))
	return title + count
}

func (m Model) renderList() string {
	h := m.listHeight()
	end := min(m.offset+h, len(m.recs))
	lines := make([]string, 0, end-m.offset)
	for i := m.offset; i < end; i++ {
		lines = append(lines, m.renderRow(i))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderRow(i int) string {
	rec := m.recs[i]
	marker := "  "
	titleStyle := lipgloss.NewStyle()
	if i == m.cursor {
		marker = ui.SelectedStyle.Render("▸ ")
		titleStyle = ui.SelectedStyle
	}
	when := ui.TimestampStyle.Render(ui.FormatTimestamp(rec.CreatedAt()))
	dur := ui.DimStyle.Render(ui.FormatDuration(rec.Length()))
	emotion := ui.DimStyle.Render("not analyzed")
	if rec.EmotionSummary != nil {
		emotion = ui.EmotionStyle.Render(rec.EmotionSummary.DominantEmotion)
	}
	fixed := lipgloss.Width(marker) + lipgloss.Width(when) + lipgloss.Width(dur) + lipgloss.Width(emotion) + 6
	title := titleStyle.Render(ui.Truncate(rec.Title, max(m.width-fixed, 8)))
	return marker + when + "  " + dur + "  " + title + "  " + emotion
}

func (m Model) renderDetail() string {
	rec, ok := m.Selected()
	if !ok {
		return ""
	}
	textW := max(m.width-2, 20)
	var b strings.Builder
	b.WriteString(ui.PanelTitleStyle.Render(rec.Title) + "\n")
	b.WriteString(ui.TimestampStyle.Render(ui.FormatTimestamp(rec.CreatedAt())+"  "+ui.FormatDuration(rec.Length())) + "\n\n")
	b.WriteString(ui.WaveformStyle.Render(ui.RenderBars(rec.WaveformData, min(waveform.Bars, textW))) + "\n\n")

	if sum := rec.EmotionSummary; sum != nil {
		b.WriteString(ui.HeaderStyle.Render("Emotion") + "  " + ui.EmotionStyle.Render(sum.DominantEmotion) + "\n")
		scores := make([]string, 0, len(sum.EmotionScores))
		for _, s := range sum.EmotionScores {
			scores = append(scores, fmt.Sprintf("%s %s", s.Emotion, ui.FormatPercent(s.Score)))
		}
		if len(scores) > 0 {
			b.WriteString(ui.DimStyle.Render(strings.Join(scores, " · ")) + "\n")
		}
		writeWrapped(&b, sum.EmotionSummary, textW)
		if sum.Summary != "" {
			b.WriteString("\n" + ui.HeaderStyle.Render("Summary") + "\n")
			writeWrapped(&b, sum.Summary, textW)
		}
		for _, insight := range sum.InterestingInsights {
			writeWrapped(&b, "• "+insight, textW)
		}
		b.WriteString("\n")
	}

	b.WriteString(ui.HeaderStyle.Render("Transcript") + "\n")
	if strings.TrimSpace(rec.Transcript) == "" {
		b.WriteString(ui.DimStyle.Render("(none yet; run: speechinsight analyze "+rec.ID+")") + "\n")
	} else {
		writeWrapped(&b, rec.Transcript, textW)
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeWrapped(b *strings.Builder, text string, width int) {
	if strings.TrimSpace(text) == "" {
		return
	}
	for _, line := range ui.Wrap(text, width) {
		b.WriteString(line + "\n")
	}
}

func (m Model) renderFooter() string {
	var parts []string
	if m.detail {
		parts = append(parts, ui.FooterKeyStyle.Render("Enter/Esc")+ui.FooterDescStyle.Render(" Back"))
	} else {
		parts = append(parts, ui.FooterKeyStyle.Render("j/k")+ui.FooterDescStyle.Render(" Nav"))
		parts = append(parts, ui.FooterKeyStyle.Render("Enter")+ui.FooterDescStyle.Render(" Details"))
	}
	parts = append(parts, ui.FooterKeyStyle.Render("r")+ui.FooterDescStyle.Render(" Reload"))
	parts = append(parts, ui.FooterKeyStyle.Render("q")+ui.FooterDescStyle.Render(" Quit"))
	return strings.Join(parts, "  ")
}
