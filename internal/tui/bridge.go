package tui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// taskMsg runs a posted function on the program goroutine.
type taskMsg func()

// Bridge moves work from other goroutines (timers, the audio engine, MIDI
// input) into the bubbletea update loop, which owns the session.
type Bridge struct {
	msgs chan tea.Msg
}

// NewBridge returns a bridge buffering up to capacity messages.
func NewBridge(capacity int) *Bridge {
	return &Bridge{msgs: make(chan tea.Msg, capacity)}
}

// Post queues f to run in Update. It satisfies clock.Poster.
func (b *Bridge) Post(f func()) {
	b.msgs <- taskMsg(f)
}

// Send queues an arbitrary message.
func (b *Bridge) Send(msg tea.Msg) {
	b.msgs <- msg
}

// Wait returns a command delivering the next queued message. Update must
// issue it again after each delivery.
func (b *Bridge) Wait() tea.Cmd {
	return func() tea.Msg {
		return <-b.msgs
	}
}
