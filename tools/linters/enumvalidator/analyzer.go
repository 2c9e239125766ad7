package enumvalidator

import (
	"go/ast"
	"go/token"
	"go/types"

	"golang.org/x/tools/go/analysis"
)

// enumTypes are the string-backed model types whose values must come from
// their declared constants. Only types declared in the model package count.
var enumTypes = map[string]bool{
	"InvitationStatus":   true,
	"TeamRole":           true,
	"UserRole":           true,
	"SubscriptionStatus": true,
	"SubscriptionPlan":   true,
	"PatientStatus":      true,
}

var Analyzer = &analysis.Analyzer{
	Name: "enumvalidator",
	Doc:  "checks that model enum fields are set and compared with declared constants, not string literals",
	Run:  run,
}

var modelPkg string

func init() {
	Analyzer.Flags.StringVar(&modelPkg, "model-pkg", "wardline.app/api/internal/model", "import path of the package declaring the enums")
}

func run(pass *analysis.Pass) (any, error) {
	for _, file := range pass.Files {
		ast.Inspect(file, func(n ast.Node) bool {
			switch node := n.(type) {
			case *ast.AssignStmt:
				checkAssign(pass, node)
			case *ast.CompositeLit:
				checkCompositeLit(pass, node)
			case *ast.BinaryExpr:
				checkComparison(pass, node)
			}
			return true
		})
	}
	return nil, nil
}

func checkAssign(pass *analysis.Pass, assign *ast.AssignStmt) {
	if len(assign.Lhs) != len(assign.Rhs) {
		return
	}
	for i, lhs := range assign.Lhs {
		sel, ok := lhs.(*ast.SelectorExpr)
		if !ok || !isEnum(pass.TypesInfo.TypeOf(sel)) || !isStringLiteral(assign.Rhs[i]) {
			continue
		}
		pass.Reportf(assign.Pos(), "enum field %s assigned string literal; use defined constant instead", sel.Sel.Name)
	}
}

func checkCompositeLit(pass *analysis.Pass, lit *ast.CompositeLit) {
	for _, elt := range lit.Elts {
		kv, ok := elt.(*ast.KeyValueExpr)
		if !ok {
			continue
		}
		key, ok := kv.Key.(*ast.Ident)
		if !ok || !isStringLiteral(kv.Value) {
			continue
		}
		// Untyped constants take the field's type, so the value's type is the enum.
		if isEnum(pass.TypesInfo.TypeOf(kv.Value)) {
			pass.Reportf(kv.Pos(), "enum field %s initialized with string literal; use defined constant instead", key.Name)
		}
	}
}

func checkComparison(pass *analysis.Pass, expr *ast.BinaryExpr) {
	if expr.Op != token.EQL && expr.Op != token.NEQ {
		return
	}
	for _, pair := range [][2]ast.Expr{{expr.X, expr.Y}, {expr.Y, expr.X}} {
		if isEnum(pass.TypesInfo.TypeOf(pair[0])) && isStringLiteral(pair[1]) {
			pass.Reportf(expr.Pos(), "enum value compared with string literal; use defined constant instead")
			return
		}
	}
}

func isEnum(t types.Type) bool {
	if t == nil {
		return false
	}
	if ptr, ok := t.(*types.Pointer); ok {
		t = ptr.Elem()
	}
	named, ok := t.(*types.Named)
	if !ok || !enumTypes[named.Obj().Name()] {
		return false
	}
	pkg := named.Obj().Pkg()
	return pkg != nil && pkg.Path() == modelPkg
}

// isStringLiteral reports non-empty string literals. The empty string is the
// zero value and stays allowed.
func isStringLiteral(expr ast.Expr) bool {
	lit, ok := ast.Unparen(expr).(*ast.BasicLit)
	return ok && lit.Kind == token.STRING && lit.Value != `""` && lit.Value != "``"
}
