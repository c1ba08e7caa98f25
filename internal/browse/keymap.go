package browse

// Key binding constants used in handleKey.
const (
	KeyQuit      = "q"
	KeyQuitUpper = "Q"
	KeyCtrlC     = "ctrl+c"
	KeyUp        = "up"
	KeyDown      = "down"
	KeyJ         = "j"
	KeyK         = "k"
	KeyTop       = "g"
	KeyBottom    = "G"
	KeyEnter     = "enter"
	KeyEsc       = "esc"
	KeyReload    = "r"
)
