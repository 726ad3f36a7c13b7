// Package router maps app paths to pages and decides which pages the session may open.
package router

import (
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"childbehavior/internal/models"
)

// Well-known paths
const (
	PathRoot          = "/"
	PathLogin         = "/login"
	PathParentHome    = "/parent"
	PathChildHome     = "/child"
	PathRewards       = "/rewards"
	PathReports       = "/reports"
	PathSettings      = "/settings"
	PathPrivacyPolicy = "/privacy-policy"
	PathUserAgreement = "/user-agreement"
)

// BehaviorPath is the record-behavior page for one child
func BehaviorPath(childID int64) string {
	return "/behavior/" + strconv.FormatInt(childID, 10)
}

// Context is the access requirement of a page
type Context int

const (
	// Public pages are open to everyone
	Public Context = iota
	// Protected pages need a signed-in user of any role
	Protected
	// ParentContext pages need a parent in parent view
	ParentContext
	// ChildContext pages are for children and parents in child view
	ChildContext
	// Root never renders; it forwards to the right home page
	Root
)

func (c Context) String() string {
	switch c {
	case Public:
		return "public"
	case Protected:
		return "protected"
	case ParentContext:
		return "parent"
	case ChildContext:
		return "child"
	case Root:
		return "root"
	default:
		return "unknown"
	}
}

// Page is one screen of the app
type Page struct {
	Name    string
	Pattern string
	Context Context
	Title   string
}

// Pages is the app's page table
var Pages = []Page{
	{Name: "login", Pattern: PathLogin, Context: Public, Title: "Sign in"},
	{Name: "privacy-policy", Pattern: PathPrivacyPolicy, Context: Public, Title: "Privacy policy"},
	{Name: "user-agreement", Pattern: PathUserAgreement, Context: Public, Title: "User agreement"},
	{Name: "root", Pattern: PathRoot, Context: Root},
	{Name: "parent-home", Pattern: PathParentHome, Context: ParentContext, Title: "Parent home"},
	{Name: "child-home", Pattern: PathChildHome, Context: ChildContext, Title: "Child home"},
	{Name: "behavior-score", Pattern: "/behavior/{childId:[0-9]+}", Context: ParentContext, Title: "Record behavior"},
	{Name: "rewards", Pattern: PathRewards, Context: Protected, Title: "Reward shop"},
	{Name: "reports", Pattern: PathReports, Context: ParentContext, Title: "Reports"},
	{Name: "settings", Pattern: PathSettings, Context: Protected, Title: "Settings"},
}

// State is the part of the session the guard looks at
type State struct {
	Authenticated bool
	Role          models.Role
	ViewMode      models.ViewMode
}

// StateOf extracts the guard state from a session snapshot
func StateOf(s models.Session) State {
	return State{
		Authenticated: s.Authenticated(),
		Role:          s.Role(),
		ViewMode:      s.ViewMode,
	}
}

// Guard returns the path to redirect to, or "" when state may open page.
// It has no side effects and must be evaluated on every navigation.
func Guard(state State, page Page) string {
	if page.Context == Public {
		return ""
	}
	if !state.Authenticated {
		return PathLogin
	}
	// A role the app does not know gets no page at all
	if !state.Role.Valid() {
		return PathLogin
	}

	switch page.Context {
	case ParentContext:
		if state.Role == models.RoleChild || state.ViewMode == models.ViewChild {
			return PathChildHome
		}
	case ChildContext:
		if state.Role == models.RoleChild {
			return ""
		}
		if state.Role == models.RoleParent && state.ViewMode == models.ViewParent {
			return PathParentHome
		}
	case Root:
		if state.Role == models.RoleParent && state.ViewMode == models.ViewParent {
			return PathParentHome
		}
		return PathChildHome
	}
	return ""
}

// Decision is the guard's verdict for a concrete path
type Decision struct {
	Path     string
	Page     Page
	Params   map[string]string
	Redirect string
}

// Allowed reports whether the page may be shown
func (d Decision) Allowed() bool {
	return d.Redirect == ""
}

// Table resolves paths against a page table
type Table struct {
	router *mux.Router
	pages  map[string]Page
}

// NewTable builds a table from pages
func NewTable(pages []Page) *Table {
	t := &Table{
		router: mux.NewRouter(),
		pages:  make(map[string]Page, len(pages)),
	}
	for _, p := range pages {
		t.router.NewRoute().Name(p.Name).Path(p.Pattern)
		t.pages[p.Name] = p
	}
	return t
}

// DefaultTable is the table for Pages
var DefaultTable = NewTable(Pages)

// Resolve finds the page for path and its path parameters
func (t *Table) Resolve(rawPath string) (Page, map[string]string, bool) {
	req, err := http.NewRequest(http.MethodGet, normalize(rawPath), nil)
	if err != nil {
		return Page{}, nil, false
	}

	var match mux.RouteMatch
	if !t.router.Match(req, &match) || match.Route == nil {
		return Page{}, nil, false
	}
	page, ok := t.pages[match.Route.GetName()]
	return page, match.Vars, ok
}

// Check resolves path and applies the guard. Unknown paths redirect to the root.
func (t *Table) Check(state State, rawPath string) Decision {
	p := normalize(rawPath)
	page, params, ok := t.Resolve(p)
	if !ok {
		return Decision{Path: p, Redirect: PathRoot}
	}
	return Decision{
		Path:     p,
		Page:     page,
		Params:   params,
		Redirect: Guard(state, page),
	}
}

// normalize cleans a path, dropping any query and trailing slash
func normalize(raw string) string {
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		raw = raw[:i]
	}
	if !strings.HasPrefix(raw, "/") {
		raw = "/" + raw
	}
	return path.Clean(raw)
}
