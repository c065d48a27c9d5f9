package router

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/studytrack/internal/models"
)

func staticLookup(u *models.User, err error) UserLookup {
	return func(context.Context) (*models.User, error) { return u, err }
}

var alice = &models.User{ID: "u1", Email: "alice@example.com"}

func TestMatch(t *testing.T) {
	tbl := NewTable("", Routes())

	tests := []struct {
		path   string
		name   string
		params map[string]string
	}{
		{"/", Home, nil},
		{"/login", Login, nil},
		{"/register", Register, nil},
		{"/study-notes", StudyNotes, nil},
		{"/study-notes/", StudyNotes, nil},
		{"/study-plan", StudyPlan, nil},
		{"/learning-types", Types, nil},
		{"/issues", IssueList, nil},
		{"/issues/42", IssueDetail, map[string]string{"id": "42"}},
		{"/stocks", Stocks, nil},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			m, ok := tbl.Match(tt.path)
			require.True(t, ok)
			assert.Equal(t, tt.name, m.Leaf().Name)
			assert.Equal(t, tt.params, m.Params)
		})
	}

	for _, p := range []string{"/nope", "/issues/1/edit", "/login/extra"} {
		_, ok := tbl.Match(p)
		assert.False(t, ok, p)
	}
}

func TestMatchedChainCarriesLayout(t *testing.T) {
	tbl := NewTable("", Routes())
	m, ok := tbl.Match("/study-plan")
	require.True(t, ok)
	require.Len(t, m.Chain, 2)
	assert.Equal(t, Layout, m.Chain[0].Name)
	assert.True(t, m.RequiresAuth())

	m, ok = tbl.Match("/login")
	require.True(t, ok)
	assert.False(t, m.RequiresAuth())
}

func TestParentRequiresAuthCoversChild(t *testing.T) {
	routes := []Route{{
		Path: "/",
		Name: Layout,
		Meta: Meta{RequiresAuth: true},
		Children: []Route{
			{Path: "open", Name: "open"},
		},
	}}
	g := NewGuard(NewTable("", routes), staticLookup(nil, nil), nil)
	assert.Equal(t, "/login", g.Check(context.Background(), "/open").Redirect)
}

func TestGuardDecisions(t *testing.T) {
	tbl := NewTable("", Routes())

	tests := []struct {
		name     string
		path     string
		user     *models.User
		redirect string
	}{
		{"protected without session", "/study-notes", nil, "/login"},
		{"root without session", "/", nil, "/login"},
		{"detail without session", "/issues/7", nil, "/login"},
		{"protected with session", "/study-notes", alice, ""},
		{"login without session", "/login", nil, ""},
		{"register without session", "/register", nil, ""},
		{"login with session", "/login", alice, "/"},
		{"register with session", "/register", alice, "/"},
		{"unknown without session", "/missing", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGuard(tbl, staticLookup(tt.user, nil), nil)
			d := g.Check(context.Background(), tt.path)
			assert.Equal(t, tt.redirect, d.Redirect)
			assert.Equal(t, tt.redirect == "", d.Proceed())
		})
	}
}

func TestGuardLookupFailureCountsAsSignedOut(t *testing.T) {
	g := NewGuard(NewTable("", Routes()), staticLookup(alice, errors.New("network down")), nil)
	d := g.Check(context.Background(), "/stocks")
	assert.Equal(t, "/login", d.Redirect)
	assert.Nil(t, d.User)
}

func TestGuardHonorsBasePath(t *testing.T) {
	tbl := NewTable("/app/", Routes())
	assert.Equal(t, "/app", tbl.Base())

	g := NewGuard(tbl, staticLookup(nil, nil), nil)
	assert.Equal(t, "/app/login", g.Check(context.Background(), "/app/study-plan").Redirect)

	g = NewGuard(tbl, staticLookup(alice, nil), nil)
	assert.Equal(t, "/app/", g.Check(context.Background(), "/app/login").Redirect)
	assert.True(t, g.Check(context.Background(), "/app").Proceed())

	_, ok := tbl.Match("/study-plan")
	assert.False(t, ok, "paths outside the base do not match")
}

func TestMenuSkipsHiddenRoutes(t *testing.T) {
	menu := NewTable("", Routes()).Menu()
	var names []string
	for _, it := range menu {
		names = append(names, it.Name)
	}
	assert.Equal(t, []string{Home, StudyNotes, StudyPlan, Types, IssueList, Stocks}, names)
	assert.Equal(t, "/study-notes", menu[1].Path)
	assert.Equal(t, "学习笔记", menu[1].Title)
}

func TestEntryPattern(t *testing.T) {
	patterns := map[string]string{}
	for _, e := range NewTable("", Routes()).Entries() {
		patterns[e.Leaf().Name] = e.Pattern()
	}
	assert.Equal(t, "/", patterns[Home])
	assert.Equal(t, "/login", patterns[Login])
	assert.Equal(t, "/issues/{id}", patterns[IssueDetail])
}
