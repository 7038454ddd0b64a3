package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/icco/riffloop/internal/store"
)

// audioExts are the files the browser offers.
var audioExts = map[string]bool{".wav": true, ".wave": true, ".mp3": true}

// fileBrowserModel manages the file browser state
type fileBrowserModel struct {
	currentDir  string
	files       []fileInfo
	cursor      int
	viewportTop int
	message     string

	// showSessions switches the list to saved sessions.
	showSessions bool
	sessions     []store.Summary
}

type fileInfo struct {
	name  string
	path  string
	isDir bool
}

func (fb *fileBrowserModel) loadFiles() {
	fb.files = []fileInfo{}

	// Add parent directory entry
	if fb.currentDir != "/" {
		fb.files = append(fb.files, fileInfo{
			name:  "..",
			path:  filepath.Dir(fb.currentDir),
			isDir: true,
		})
	}

	entries, err := os.ReadDir(fb.currentDir)
	if err != nil {
		fb.message = fmt.Sprintf("Error reading directory: %v", err)
		fb.clampCursor()
		return
	}

	for _, entry := range entries {
		// Skip hidden files
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if entry.IsDir() || audioExts[strings.ToLower(filepath.Ext(entry.Name()))] {
			fb.files = append(fb.files, fileInfo{
				name:  entry.Name(),
				path:  filepath.Join(fb.currentDir, entry.Name()),
				isDir: entry.IsDir(),
			})
		}
	}
	fb.clampCursor()
}

func (fb *fileBrowserModel) loadSessions(st store.Store) {
	fb.sessions = nil
	if st == nil {
		fb.message = "No session store configured"
		fb.clampCursor()
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	list, err := st.List(ctx)
	if err != nil {
		fb.message = fmt.Sprintf("Error listing sessions: %v", err)
	}
	fb.sessions = list
	fb.clampCursor()
}

// entries is the length of whichever list is showing.
func (fb *fileBrowserModel) entries() int {
	if fb.showSessions {
		return len(fb.sessions)
	}
	return len(fb.files)
}

func (fb *fileBrowserModel) clampCursor() {
	n := fb.entries()
	if fb.cursor >= n {
		fb.cursor = n - 1
	}
	if fb.cursor < 0 {
		fb.cursor = 0
	}
	if fb.viewportTop > fb.cursor {
		fb.viewportTop = fb.cursor
	}
}

// visibleLines is how many entries fit under the header and help lines.
func (m *Model) visibleLines() int {
	return max(m.height-9, 5)
}

func (m *Model) scrollBrowser() {
	fb := &m.browser
	lines := m.visibleLines()
	if fb.cursor < fb.viewportTop {
		fb.viewportTop = fb.cursor
	}
	if fb.cursor >= fb.viewportTop+lines {
		fb.viewportTop = fb.cursor - lines + 1
	}
}

func (m *Model) updateFileBrowser(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	fb := &m.browser

	switch msg.String() {
	case "up", "k":
		if fb.cursor > 0 {
			fb.cursor--
		}
	case "down", "j":
		if fb.cursor < fb.entries()-1 {
			fb.cursor++
		}
	case "tab", "s":
		fb.showSessions = !fb.showSessions
		fb.cursor, fb.viewportTop = 0, 0
		fb.message = ""
		if fb.showSessions {
			fb.loadSessions(m.opts.Store)
		} else {
			fb.loadFiles()
		}
	case "enter":
		if fb.entries() == 0 {
			return m, nil
		}
		if fb.showSessions {
			return m, m.openSession(fb.sessions[fb.cursor].ID)
		}
		selected := fb.files[fb.cursor]
		if selected.isDir {
			fb.currentDir = selected.path
			fb.cursor = 0
			fb.viewportTop = 0
			fb.message = ""
			fb.loadFiles()
			return m, nil
		}
		return m, m.openFile(selected.path)
	case "d":
		// Only saved sessions can be deleted; audio files are left alone.
		if fb.showSessions && fb.entries() > 0 && m.opts.Store != nil {
			selected := fb.sessions[fb.cursor]
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := m.opts.Store.Delete(ctx, selected.ID)
			cancel()
			if err != nil {
				fb.message = fmt.Sprintf("Error deleting: %v", err)
			} else {
				fb.message = fmt.Sprintf("Deleted %s", selected.ID)
				fb.loadSessions(m.opts.Store)
			}
		}
	}

	m.scrollBrowser()
	return m, nil
}

func (m *Model) viewFileBrowser() string {
	fb := m.browser
	var b strings.Builder

	b.WriteString(titleStyle.Render("RIFFLOOP - Practice Looper") + "\n\n")
	if fb.showSessions {
		b.WriteString("Saved sessions\n\n")
	} else {
		b.WriteString(fmt.Sprintf("Current Directory: %s\n\n", fb.currentDir))
	}

	n := fb.entries()
	if n == 0 {
		if fb.showSessions {
			b.WriteString("No saved sessions.\n")
		} else {
			b.WriteString("No audio files or directories found.\n")
		}
	}
	end := min(fb.viewportTop+m.visibleLines(), n)
	for i := fb.viewportTop; i < end; i++ {
		cursor := " "
		if i == fb.cursor {
			cursor = ">"
		}
		var name string
		if fb.showSessions {
			sum := fb.sessions[i]
			label := sum.Title
			if label == "" {
				label = filepath.Base(sum.SourceRef)
			}
			name = fmt.Sprintf("%s  %s", fileStyle.Render(label), helpStyle.Render(sum.ID))
		} else if file := fb.files[i]; file.isDir {
			name = dirStyle.Render(file.name + "/")
		} else {
			name = fileStyle.Render(file.name)
		}

		if i == fb.cursor {
			b.WriteString(selectedStyle.Render(fmt.Sprintf("%s %s", cursor, name)) + "\n")
		} else {
			b.WriteString(fmt.Sprintf("%s %s\n", cursor, name))
		}
	}
	if end < n {
		b.WriteString(helpStyle.Render(fmt.Sprintf("  … %d more", n-end)) + "\n")
	}

	b.WriteString("\n")
	if fb.message != "" {
		b.WriteString(errorStyle.Render(fb.message) + "\n")
	}

	if fb.showSessions {
		b.WriteString("\n" + helpStyle.Render("↑/k: up • ↓/j: down • enter: resume • d: delete • tab: files • q: quit"))
	} else {
		b.WriteString("\n" + helpStyle.Render("↑/k: up • ↓/j: down • enter: open • tab: saved sessions • q: quit"))
	}
	return b.String()
}
