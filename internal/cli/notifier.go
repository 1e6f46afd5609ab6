package cli

import (
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/term"
)

// clearLine erases the current terminal line.
const clearLine = "\r\033[K"

// terminalNotifier is the terminal surface of a capture run. On a TTY the
// progress line is redrawn in place and messages are styled; otherwise every
// message is printed on its own line.
type terminalNotifier struct {
	mu      sync.Mutex
	out     io.Writer
	styled  bool
	theme   Theme
	pending bool // a progress line is on screen
}

// newTerminalNotifier writes to stderr, styled when stderr is a terminal.
func newTerminalNotifier() *terminalNotifier {
	return &terminalNotifier{
		out:    os.Stderr,
		styled: term.IsTerminal(int(os.Stderr.Fd())),
		theme:  defaultTheme,
	}
}

func (n *terminalNotifier) Progress(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.styled {
		fmt.Fprintln(n.out, msg)
		return
	}
	n.clear()
	fmt.Fprint(n.out, n.theme.statusStyle().Render("… "+msg))
	n.pending = true
}

func (n *terminalNotifier) Notice(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.styled {
		fmt.Fprintln(n.out, msg)
		return
	}
	n.clear()
	fmt.Fprintln(n.out, n.theme.hintStyle().Render(msg))
}

func (n *terminalNotifier) Error(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.styled {
		fmt.Fprintf(n.out, "Error: %s\n", msg)
		return
	}
	n.clear()
	fmt.Fprintln(n.out, n.theme.errorStyle().Render("✗ "+msg))
}

func (n *terminalNotifier) Dismiss() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.clear()
}

func (n *terminalNotifier) clear() {
	if n.pending {
		fmt.Fprint(n.out, clearLine)
		n.pending = false
	}
}
