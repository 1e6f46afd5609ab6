package cli

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

const guardWarning = "image update in progress, please wait until it finishes"

// signalGuard keeps the process alive while an image update is in flight.
// While installed, SIGINT and SIGTERM are intercepted and a warning is
// printed; Remove restores default delivery.
type signalGuard struct {
	mu        sync.Mutex
	out       io.Writer
	signals   chan os.Signal
	done      chan struct{}
	installed bool

	installs    int
	removes     int
	intercepted int
}

func newSignalGuard(out io.Writer) *signalGuard {
	return &signalGuard{out: out}
}

func (g *signalGuard) Install() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.installed {
		return
	}
	g.installed = true
	g.installs++

	g.signals = make(chan os.Signal, 1)
	g.done = make(chan struct{})
	signal.Notify(g.signals, os.Interrupt, syscall.SIGTERM)
	go g.loop(g.signals, g.done)
}

func (g *signalGuard) Remove() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.installed {
		return
	}
	g.installed = false
	g.removes++

	signal.Stop(g.signals)
	close(g.done)
}

func (g *signalGuard) loop(signals <-chan os.Signal, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-signals:
			g.mu.Lock()
			g.intercepted++
			g.mu.Unlock()
			fmt.Fprintln(g.out, guardWarning)
		}
	}
}

// counts returns install, remove and intercepted-signal totals.
func (g *signalGuard) counts() (installs, removes, intercepted int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.installs, g.removes, g.intercepted
}
