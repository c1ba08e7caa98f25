package browse

import (
	"context"
	"errors"
	"strings"
	"testing"

	"speechinsight/internal/recording"

	tea "github.com/charmbracelet/bubbletea"
)

type fakeLister struct {
	recs []recording.Recording
	err  error
}

func (f fakeLister) List(context.Context) ([]recording.Recording, error) {
	out := make([]recording.Recording, len(f.recs))
	copy(out, f.recs)
	return out, f.err
}

func sample() []recording.Recording {
	return []recording.Recording{
		{ID: "recording-1000", Title: "Oldest", Timestamp: 1000, Duration: 65000},
		{ID: "recording-3000", Title: "Newest", Timestamp: 3000, Duration: 5000, Transcript: "What a day.",
			EmotionSummary: &recording.EmotionSummary{DominantEmotion: "Joy", EmotionScores: []recording.EmotionScore{{Emotion: "Joy", Score: 0.8}}}},
		{ID: "recording-2000", Title: "Middle", Timestamp: 2000},
	}
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func loaded(t *testing.T, l Lister) Model {
	t.Helper()
	m := New(l)
	msg := m.Init()()
	updated, _ := m.Update(msg)
	updated, _ = updated.Update(tea.WindowSizeMsg{Width: 100, Height: 20})
	return updated.(Model)
}

func press(m Model, keys ...string) Model {
	for _, k := range keys {
		updated, _ := m.Update(key(k))
		m = updated.(Model)
	}
	return m
}

func TestLoadSortsNewestFirst(t *testing.T) {
	m := loaded(t, fakeLister{recs: sample()})
	got := []string{m.recs[0].Title, m.recs[1].Title, m.recs[2].Title}
	if strings.Join(got, ",") != "Newest,Middle,Oldest" {
		t.Fatalf("order=%v", got)
	}
	if sel, _ := m.Selected(); sel.Title != "Newest" {
		t.Fatalf("selected=%s", sel.Title)
	}
}

func TestNavigationClamps(t *testing.T) {
	m := loaded(t, fakeLister{recs: sample()})
	m = press(m, "k")
	if m.cursor != 0 {
		t.Fatalf("cursor=%d", m.cursor)
	}
	m = press(m, "j", "down", "j", "j")
	if m.cursor != 2 {
		t.Fatalf("cursor=%d", m.cursor)
	}
	m = press(m, "g")
	if m.cursor != 0 {
		t.Fatalf("top: cursor=%d", m.cursor)
	}
	m = press(m, "G")
	if m.cursor != 2 {
		t.Fatalf("bottom: cursor=%d", m.cursor)
	}
}

func TestEnterTogglesDetail(t *testing.T) {
	m := loaded(t, fakeLister{recs: sample()})
	m = press(m, "enter")
	if !m.detail {
		t.Fatalf("detail should be open")
	}
	view := m.View()
	for _, want := range []string{"Newest", "Joy", "80%", "What a day."} {
		if !strings.Contains(view, want) {
			t.Fatalf("detail view missing %q:\n%s", want, view)
		}
	}
	// Navigation is frozen while the detail pane is open.
	m = press(m, "j")
	if m.cursor != 0 {
		t.Fatalf("cursor moved in detail view")
	}
	m = press(m, "esc")
	if m.detail {
		t.Fatalf("esc should close detail")
	}
}

func TestListViewShowsRows(t *testing.T) {
	m := loaded(t, fakeLister{recs: sample()})
	view := m.View()
	for _, want := range []string{"3 recordings", "Newest", "not analyzed", "01:05"} {
		if !strings.Contains(view, want) {
			t.Fatalf("list view missing %q:\n%s", want, view)
		}
	}
}

func TestEmptyAndErrorStates(t *testing.T) {
	m := loaded(t, fakeLister{})
	if !strings.Contains(m.View(), "No recordings yet") {
		t.Fatalf("empty view:\n%s", m.View())
	}
	m = press(m, "enter")
	if m.detail {
		t.Fatalf("enter with no recordings should not open detail")
	}
	m = loaded(t, fakeLister{err: errors.New("disk on fire")})
	if !strings.Contains(m.View(), "disk on fire") {
		t.Fatalf("error view:\n%s", m.View())
	}
}

func TestQuit(t *testing.T) {
	m := loaded(t, fakeLister{recs: sample()})
	for _, k := range []string{"q", "ctrl+c"} {
		_, cmd := m.Update(key(k))
		if cmd == nil {
			t.Fatalf("%s should quit", k)
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Fatalf("%s did not return tea.Quit", k)
		}
	}
}
