package tui

import "github.com/charmbracelet/bubbles/key"

// keyMap holds the practice screen bindings.
type keyMap struct {
	Play        key.Binding
	SeekBack    key.Binding
	SeekForward key.Binding
	JumpBack    key.Binding
	JumpForward key.Binding

	MarkStart key.Binding
	MarkEnd   key.Binding
	StartDown key.Binding
	StartUp   key.Binding
	EndDown   key.Binding
	EndUp     key.Binding
	Clear     key.Binding

	Metronome  key.Binding
	VolumeDown key.Binding
	VolumeUp   key.Binding
	BPMDown    key.Binding
	BPMUp      key.Binding
	EditBPM    key.Binding
	EditBeats  key.Binding
	EditOffset key.Binding
	OffsetHere key.Binding

	Left       key.Binding
	Right      key.Binding
	Up         key.Binding
	Down       key.Binding
	PrevBar    key.Binding
	NextBar    key.Binding
	Edit       key.Binding
	ClearCell  key.Binding
	ToPlayhead key.Binding
	ToCursor   key.Binding

	ZoomIn      key.Binding
	ZoomOut     key.Binding
	ScrollLeft  key.Binding
	ScrollRight key.Binding

	Title key.Binding
	Notes key.Binding
	Save  key.Binding
	Help  key.Binding
	Back  key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Play:        key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "play/pause")),
		SeekBack:    key.NewBinding(key.WithKeys("left"), key.WithHelp("←", "back 1s")),
		SeekForward: key.NewBinding(key.WithKeys("right"), key.WithHelp("→", "forward 1s")),
		JumpBack:    key.NewBinding(key.WithKeys("shift+left"), key.WithHelp("⇧←", "back 5s")),
		JumpForward: key.NewBinding(key.WithKeys("shift+right"), key.WithHelp("⇧→", "forward 5s")),

		MarkStart: key.NewBinding(key.WithKeys("["), key.WithHelp("[", "loop start here")),
		MarkEnd:   key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "loop end here")),
		StartDown: key.NewBinding(key.WithKeys("a", "A"), key.WithHelp("a/A", "start earlier")),
		StartUp:   key.NewBinding(key.WithKeys("s", "S"), key.WithHelp("s/S", "start later")),
		EndDown:   key.NewBinding(key.WithKeys("d", "D"), key.WithHelp("d/D", "end earlier")),
		EndUp:     key.NewBinding(key.WithKeys("f", "F"), key.WithHelp("f/F", "end later")),
		Clear:     key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "clear loop")),

		Metronome:  key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "metronome")),
		VolumeDown: key.NewBinding(key.WithKeys("v"), key.WithHelp("v", "click quieter")),
		VolumeUp:   key.NewBinding(key.WithKeys("V"), key.WithHelp("V", "click louder")),
		BPMDown:    key.NewBinding(key.WithKeys("-"), key.WithHelp("-", "bpm down")),
		BPMUp:      key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "bpm up")),
		EditBPM:    key.NewBinding(key.WithKeys("b"), key.WithHelp("b", "set bpm")),
		EditBeats:  key.NewBinding(key.WithKeys("B"), key.WithHelp("B", "set beats/bar")),
		EditOffset: key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "set offset")),
		OffsetHere: key.NewBinding(key.WithKeys("O"), key.WithHelp("O", "offset at playhead")),

		Left:       key.NewBinding(key.WithKeys("h"), key.WithHelp("h", "cell left")),
		Right:      key.NewBinding(key.WithKeys("l"), key.WithHelp("l", "cell right")),
		Up:         key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k", "row up")),
		Down:       key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j", "row down")),
		PrevBar:    key.NewBinding(key.WithKeys("<"), key.WithHelp("<", "previous bar")),
		NextBar:    key.NewBinding(key.WithKeys(">"), key.WithHelp(">", "next bar")),
		Edit:       key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "edit cell")),
		ClearCell:  key.NewBinding(key.WithKeys("backspace", "delete"), key.WithHelp("⌫", "clear cell")),
		ToPlayhead: key.NewBinding(key.WithKeys("g"), key.WithHelp("g", "cursor to playhead")),
		ToCursor:   key.NewBinding(key.WithKeys("G"), key.WithHelp("G", "play from cursor bar")),

		ZoomIn:      key.NewBinding(key.WithKeys("z"), key.WithHelp("z", "zoom in")),
		ZoomOut:     key.NewBinding(key.WithKeys("Z"), key.WithHelp("Z", "zoom out")),
		ScrollLeft:  key.NewBinding(key.WithKeys(","), key.WithHelp(",", "scroll left")),
		ScrollRight: key.NewBinding(key.WithKeys("."), key.WithHelp(".", "scroll right")),

		Title: key.NewBinding(key.WithKeys("T"), key.WithHelp("T", "title")),
		Notes: key.NewBinding(key.WithKeys("N"), key.WithHelp("N", "notes")),
		Save:  key.NewBinding(key.WithKeys("w"), key.WithHelp("w", "save")),
		Help:  key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Back:  key.NewBinding(key.WithKeys("q"), key.WithHelp("q", "back")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Play, k.MarkStart, k.MarkEnd, k.Metronome, k.Edit, k.Save, k.Help, k.Back}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Play, k.SeekBack, k.SeekForward, k.JumpBack, k.JumpForward, k.ZoomIn, k.ZoomOut, k.ScrollLeft, k.ScrollRight},
		{k.MarkStart, k.MarkEnd, k.StartDown, k.StartUp, k.EndDown, k.EndUp, k.Clear},
		{k.Metronome, k.VolumeDown, k.VolumeUp, k.BPMDown, k.BPMUp, k.EditBPM, k.EditBeats, k.EditOffset, k.OffsetHere},
		{k.Left, k.Right, k.Up, k.Down, k.PrevBar, k.NextBar, k.Edit, k.ClearCell, k.ToPlayhead, k.ToCursor},
		{k.Title, k.Notes, k.Save, k.Help, k.Back},
	}
}
