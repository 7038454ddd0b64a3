package tui

import "testing"

func TestBridgeDeliversInOrder(t *testing.T) {
	b := NewBridge(4)
	var got []int
	b.Post(func() { got = append(got, 1) })
	b.Send(autosaveMsg{})
	b.Post(func() { got = append(got, 2) })

	for i := 0; i < 3; i++ {
		switch msg := b.Wait()().(type) {
		case taskMsg:
			msg()
		case autosaveMsg:
			if len(got) != 1 {
				t.Errorf("autosave delivered after %d tasks, want 1", len(got))
			}
		default:
			t.Fatalf("unexpected message %T", msg)
		}
	}
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("tasks ran as %v", got)
	}
}
