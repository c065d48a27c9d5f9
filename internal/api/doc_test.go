package api

import (
	"go/ast"
	"go/parser"
	"go/token"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Every HTTP handler method in handlers.go carries swag annotations.
func TestHandlersAreAnnotated(t *testing.T) {
	f, err := parser.ParseFile(token.NewFileSet(), "handlers.go", nil, parser.ParseComments)
	require.NoError(t, err)

	n := 0
	for _, decl := range f.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Recv == nil || !isHandlerFunc(fn.Type) {
			continue
		}
		n++
		doc := ""
		if fn.Doc != nil {
			doc = fn.Doc.Text()
		}
		assert.Contains(t, doc, "@Summary", fn.Name.Name)
		assert.Contains(t, doc, "@Router", fn.Name.Name)
	}
	assert.Equal(t, 13, n)
}

func isHandlerFunc(ft *ast.FuncType) bool {
	if ft.Results != nil || len(ft.Params.List) != 2 {
		return false
	}
	w, ok := ft.Params.List[0].Type.(*ast.SelectorExpr)
	return ok && strings.HasSuffix(w.Sel.Name, "ResponseWriter")
}
