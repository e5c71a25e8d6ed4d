package goasg

import (
	"go/ast"
	"go/token"
)

// cyclomatic counts decision points plus one. Function literals inside body
// are counted toward the enclosing function.
func cyclomatic(body *ast.BlockStmt) int {
	complexity := 1
	if body == nil {
		return complexity
	}
	ast.Inspect(body, func(n ast.Node) bool {
		switch bn := n.(type) {
		case *ast.IfStmt, *ast.ForStmt, *ast.RangeStmt, *ast.CaseClause, *ast.CommClause:
			complexity++
		case *ast.BinaryExpr:
			if bn.Op == token.LAND || bn.Op == token.LOR {
				complexity++
			}
		}
		return true
	})
	return complexity
}

// countParams returns the total number of parameters in a function signature.
func countParams(ft *ast.FuncType) int {
	if ft == nil || ft.Params == nil {
		return 0
	}
	n := 0
	for _, field := range ft.Params.List {
		if len(field.Names) == 0 {
			n++ // unnamed parameter
		} else {
			n += len(field.Names)
		}
	}
	return n
}

func lineCount(fset *token.FileSet, start, end token.Pos) int {
	return fset.Position(end).Line - fset.Position(start).Line + 1
}
