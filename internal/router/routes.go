// Package router holds the declarative route tree of the application and the
// navigation guard that runs before every page request.
package router

import (
	"path"
	"strings"
)

// Meta carries the per-route flags consulted by the guard and the menu.
type Meta struct {
	RequiresAuth bool   `json:"requires_auth"`
	Title        string `json:"title"`
	HideInMenu   bool   `json:"hide_in_menu"`
}

// Route is one node of the route tree. Child paths are relative to their
// parent; a segment starting with ':' captures a parameter.
type Route struct {
	Path     string  `json:"path"`
	Name     string  `json:"name"`
	Meta     Meta    `json:"meta"`
	Children []Route `json:"children,omitempty"`
}

// Route names.
const (
	Login       = "login"
	Register    = "register"
	Layout      = "layout"
	Home        = "home"
	StudyNotes  = "study-notes"
	StudyPlan   = "study-plan"
	Types       = "learning-types"
	IssueList   = "issues"
	IssueDetail = "issue-detail"
	Stocks      = "stocks"
)

// Paths the guard redirects to.
const (
	LoginPath = "/login"
	HomePath  = "/"
)

// Routes returns the application route tree.
func Routes() []Route {
	return []Route{
		{Path: "/login", Name: Login, Meta: Meta{Title: "登录"}},
		{Path: "/register", Name: Register, Meta: Meta{Title: "注册", HideInMenu: true}},
		{
			Path: "/",
			Name: Layout,
			Meta: Meta{RequiresAuth: true},
			Children: []Route{
				{Path: "", Name: Home, Meta: Meta{RequiresAuth: true, Title: "首页"}},
				{Path: "study-notes", Name: StudyNotes, Meta: Meta{RequiresAuth: true, Title: "学习笔记"}},
				{Path: "study-plan", Name: StudyPlan, Meta: Meta{RequiresAuth: true, Title: "学习计划"}},
				{Path: "learning-types", Name: Types, Meta: Meta{RequiresAuth: true, Title: "学习类型"}},
				{Path: "issues", Name: IssueList, Meta: Meta{RequiresAuth: true, Title: "问题记录"}},
				{Path: "issues/:id", Name: IssueDetail, Meta: Meta{RequiresAuth: true, Title: "问题详情", HideInMenu: true}},
				{Path: "stocks", Name: Stocks, Meta: Meta{RequiresAuth: true, Title: "股票列表"}},
			},
		},
	}
}

// Entry is a navigable leaf of the tree with its full path and the chain of
// routes from the root down to it.
type Entry struct {
	FullPath string
	Chain    []Route
	segments []string
}

// Leaf returns the route the entry resolves to.
func (e Entry) Leaf() Route { return e.Chain[len(e.Chain)-1] }

// Pattern returns FullPath with ':name' segments rewritten as '{name}'.
func (e Entry) Pattern() string {
	segs := make([]string, len(e.segments))
	for i, s := range e.segments {
		if strings.HasPrefix(s, ":") {
			s = "{" + s[1:] + "}"
		}
		segs[i] = s
	}
	return "/" + strings.Join(segs, "/")
}

// Match is the result of resolving a request path.
type Match struct {
	Entry
	Params map[string]string
}

// RequiresAuth reports whether any route in the matched chain requires a session.
func (m Match) RequiresAuth() bool {
	for _, r := range m.Chain {
		if r.Meta.RequiresAuth {
			return true
		}
	}
	return false
}

// MenuItem is one visible navigation link.
type MenuItem struct {
	Name  string `json:"name"`
	Title string `json:"title"`
	Path  string `json:"path"`
}

// Table is an immutable, flattened view of a route tree mounted under a base path.
type Table struct {
	base    string
	routes  []Route
	entries []Entry
}

// NewTable flattens routes under base ("/" or "" for the root).
func NewTable(base string, routes []Route) *Table {
	t := &Table{base: normalizeBase(base), routes: routes}
	for _, r := range routes {
		t.flatten(nil, "", r)
	}
	return t
}

func (t *Table) flatten(chain []Route, parent string, r Route) {
	full := r.Path
	if !strings.HasPrefix(full, "/") {
		full = path.Join(parent, full)
	}
	if full == "" {
		full = "/"
	}
	chain = append(append([]Route(nil), chain...), r)
	if len(r.Children) > 0 {
		for _, c := range r.Children {
			t.flatten(chain, full, c)
		}
		return
	}
	t.entries = append(t.entries, Entry{FullPath: full, Chain: chain, segments: split(full)})
}

// Base returns the normalized base path, without a trailing slash.
func (t *Table) Base() string { return t.base }

// Entries returns every navigable leaf in declaration order.
func (t *Table) Entries() []Entry { return append([]Entry(nil), t.entries...) }

// URL prefixes an application path with the base path.
func (t *Table) URL(p string) string {
	if t.base == "" {
		return p
	}
	if p == "/" {
		return t.base + "/"
	}
	return t.base + p
}

// Match resolves a request path, base path included.
func (t *Table) Match(reqPath string) (Match, bool) {
	p, ok := t.strip(reqPath)
	if !ok {
		return Match{}, false
	}
	segs := split(p)
	for _, e := range t.entries {
		if params, ok := matchSegments(e.segments, segs); ok {
			return Match{Entry: e, Params: params}, true
		}
	}
	return Match{}, false
}

// Menu lists the visible children of the authenticated layout.
func (t *Table) Menu() []MenuItem {
	var items []MenuItem
	for _, e := range t.entries {
		leaf := e.Leaf()
		if len(e.Chain) < 2 || e.Chain[0].Name != Layout || leaf.Meta.HideInMenu {
			continue
		}
		items = append(items, MenuItem{Name: leaf.Name, Title: leaf.Meta.Title, Path: t.URL(e.FullPath)})
	}
	return items
}

// Path strips the base path from reqPath, returning "/" for the base itself.
func (t *Table) Path(reqPath string) string {
	p, _ := t.strip(reqPath)
	return p
}

func (t *Table) strip(reqPath string) (string, bool) {
	p := reqPath
	if t.base != "" {
		if p != t.base && !strings.HasPrefix(p, t.base+"/") {
			return p, false
		}
		p = strings.TrimPrefix(p, t.base)
	}
	if p == "" {
		p = "/"
	}
	if len(p) > 1 {
		p = strings.TrimSuffix(p, "/")
	}
	return p, true
}

func normalizeBase(base string) string {
	base = strings.TrimSuffix(strings.TrimSpace(base), "/")
	if base != "" && !strings.HasPrefix(base, "/") {
		base = "/" + base
	}
	return base
}

func split(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

func matchSegments(pattern, segs []string) (map[string]string, bool) {
	if len(pattern) != len(segs) {
		return nil, false
	}
	var params map[string]string
	for i, s := range pattern {
		if strings.HasPrefix(s, ":") {
			if segs[i] == "" {
				return nil, false
			}
			if params == nil {
				params = map[string]string{}
			}
			params[s[1:]] = segs[i]
			continue
		}
		if s != segs[i] {
			return nil, false
		}
	}
	return params, true
}
