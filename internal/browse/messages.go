package browse

import (
	"context"

	"speechinsight/internal/recording"

	tea "github.com/charmbracelet/bubbletea"
)

// RecordingsLoadedMsg carries the result of listing the store.
type RecordingsLoadedMsg struct {
	Recordings []recording.Recording
	Err        error
}

func loadCmd(store Lister) tea.Cmd {
	return func() tea.Msg {
		recs, err := store.List(context.Background())
		if err == nil {
			recording.SortNewestFirst(recs)
		}
		return RecordingsLoadedMsg{Recordings: recs, Err: err}
	}
}
