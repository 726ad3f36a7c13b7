package router

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// MaxRedirects bounds how many redirects one navigation follows
const MaxRedirects = 8

// ErrRedirectLoop is returned when a navigation keeps redirecting
var ErrRedirectLoop = errors.New("too many redirects")

// Navigator tracks the current page and re-runs the guard on every navigation
type Navigator struct {
	table *Table
	state func() State

	mu      sync.Mutex
	current Decision
}

// NewNavigator creates a navigator. state is read fresh at every hop.
func NewNavigator(table *Table, state func() State) *Navigator {
	if table == nil {
		table = DefaultTable
	}
	return &Navigator{table: table, state: state}
}

// Navigate opens path, following guard redirects to the page that is finally shown.
// The returned trail lists every path visited, the final one last.
func (n *Navigator) Navigate(path string) (Decision, []string, error) {
	var trail []string
	target := path

	for hops := 0; hops <= MaxRedirects; hops++ {
		d := n.table.Check(n.state(), target)
		trail = append(trail, d.Path)
		if d.Allowed() {
			n.mu.Lock()
			n.current = d
			n.mu.Unlock()
			return d, trail, nil
		}
		target = d.Redirect
	}
	return Decision{}, trail, fmt.Errorf("%w: %s", ErrRedirectLoop, strings.Join(trail, " -> "))
}

// Current returns the page last shown
func (n *Navigator) Current() Decision {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

// Refresh re-checks the current page against the latest session state
func (n *Navigator) Refresh() (Decision, []string, error) {
	path := n.Current().Path
	if path == "" {
		path = PathRoot
	}
	return n.Navigate(path)
}
