// Package goasg loads a Go module with golang.org/x/tools and exposes its
// declarations as an asg entity tree: Module, Package, File and then the
// types, functions and methods of each file.
package goasg

import (
	"context"
	"fmt"
	"go/ast"
	"go/token"
	"go/types"
	"maps"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/tools/go/packages"

	"sagraph/asg"
)

// Options controls Load.
type Options struct {
	// SkipTests drops _test.go files.
	SkipTests bool
	// SkipGenerated drops generated files (*.pb.go and files carrying the
	// standard "Code generated ... DO NOT EDIT." marker).
	SkipGenerated bool
	// Calls builds the call graph over SSA.
	Calls bool
	// History adds git change metrics to files.
	History bool
	Logger  *zap.Logger
}

// DefaultOptions mirrors the command-line defaults.
func DefaultOptions() Options {
	return Options{SkipTests: true, SkipGenerated: true, Calls: true}
}

// Program is a loaded module.
type Program struct {
	// Dir is the absolute module directory; positions are relative to it.
	Dir    string
	Module *Decl
	Fset   *token.FileSet

	pkgs []*packages.Package
	objs map[types.Object]*Decl
}

// Root returns the module entity, which also carries the relations.
func (p *Program) Root() asg.Entity { return p.Module }

// Find returns the declaration with the mangled name.
func (p *Program) Find(mangled string) *Decl {
	if e, ok := asg.Find(p.Module, mangled).(*Decl); ok {
		return e
	}
	return nil
}

// Relations returns every non-containment link found.
func (p *Program) Relations() []asg.Relation { return p.Module.rels }

// Load type-checks the packages under dir and builds the entity tree.
// Packages with type errors are kept; their errors are logged.
func Load(ctx context.Context, dir string, opts Options) (*Program, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", dir, err)
	}

	fset := token.NewFileSet()
	cfg := &packages.Config{
		Context: ctx,
		Mode: packages.NeedName |
			packages.NeedFiles |
			packages.NeedCompiledGoFiles |
			packages.NeedImports |
			packages.NeedDeps |
			packages.NeedTypes |
			packages.NeedSyntax |
			packages.NeedTypesInfo |
			packages.NeedTypesSizes |
			packages.NeedModule,
		Dir:   abs,
		Fset:  fset,
		Tests: false,
	}
	initial, err := packages.Load(cfg, "./...")
	if err != nil {
		return nil, fmt.Errorf("packages.Load: %w", err)
	}

	b := &builder{
		opts: opts,
		log:  log,
		prog: &Program{
			Dir:  abs,
			Fset: fset,
			objs: make(map[types.Object]*Decl),
		},
		seen:  make(map[string]int),
		byPkg: make(map[string]*Decl),
	}
	mod := modulePath(initial, abs)
	b.prog.Module = &Decl{kind: KindModule, name: mod, mangled: "module:" + mod}

	var errCount int
	for _, pkg := range initial {
		if pkg.Types == nil || len(pkg.Syntax) == 0 {
			continue
		}
		if len(pkg.Errors) > 0 {
			errCount++
			log.Warn("package has errors",
				zap.String("package", pkg.PkgPath),
				zap.Int("errors", len(pkg.Errors)),
				zap.String("first", pkg.Errors[0].Error()))
		}
		b.pkg(pkg)
		b.prog.pkgs = append(b.prog.pkgs, pkg)
	}
	b.imports()
	b.typeRelations()
	if opts.Calls {
		b.calls()
	}
	if opts.History {
		if err := b.history(ctx); err != nil {
			log.Warn("git history unavailable", zap.Error(err))
		}
	}

	log.Info("loaded packages",
		zap.Int("packages", len(b.prog.pkgs)),
		zap.Int("files", b.files),
		zap.Int("declarations", len(b.prog.objs)),
		zap.Int("relations", len(b.prog.Module.rels)),
		zap.Int("type_errors", errCount))
	return b.prog, nil
}

func modulePath(pkgs []*packages.Package, dir string) string {
	for _, p := range pkgs {
		if p.Module != nil && p.Module.Path != "" {
			return p.Module.Path
		}
	}
	return filepath.Base(dir)
}

type builder struct {
	opts  Options
	log   *zap.Logger
	prog  *Program
	seen  map[string]int
	byPkg map[string]*Decl
	files int
}

func (b *builder) relate(from, to *Decl, kind string) {
	b.prog.Module.rels = append(b.prog.Module.rels, asg.Relation{From: from, To: to, Kind: kind})
}

// unique disambiguates names that Go allows to repeat, such as init
// functions, by appending the declaring position.
func (b *builder) unique(mangled string, pos asg.Position) string {
	b.seen[mangled]++
	if b.seen[mangled] == 1 {
		return mangled
	}
	return fmt.Sprintf("%s@%s:%d", mangled, pos.Path, pos.Line)
}

// rel converts an absolute file name to a slash path relative to the module.
// Files outside the module yield "".
func (b *builder) rel(file string) string {
	r, err := filepath.Rel(b.prog.Dir, file)
	if err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return ""
	}
	return filepath.ToSlash(r)
}

func (b *builder) skipFile(relFile string, f *ast.File) bool {
	base := path.Base(relFile)
	if b.opts.SkipTests && strings.HasSuffix(base, "_test.go") {
		return true
	}
	if b.opts.SkipGenerated && (strings.HasSuffix(base, ".pb.go") || ast.IsGenerated(f)) {
		return true
	}
	return false
}

func (b *builder) position(relFile string, start, end token.Pos) asg.Position {
	s, e := b.prog.Fset.Position(start), b.prog.Fset.Position(end)
	return asg.Position{Path: relFile, Line: s.Line, Column: s.Column, EndLine: e.Line, EndColumn: e.Column}
}

func (b *builder) pkg(pkg *packages.Package) {
	pd := b.prog.Module.add(&Decl{kind: KindPackage, name: pkg.Name, mangled: pkg.PkgPath})
	b.byPkg[pkg.PkgPath] = pd

	for i, file := range pkg.Syntax {
		if i >= len(pkg.CompiledGoFiles) {
			continue
		}
		relFile := b.rel(pkg.CompiledGoFiles[i])
		if relFile == "" || b.skipFile(relFile, file) {
			continue
		}
		b.files++
		endLine := b.prog.Fset.Position(file.End()).Line
		fd := pd.add(&Decl{
			kind:    KindFile,
			name:    path.Base(relFile),
			mangled: relFile,
			pos:     []asg.Position{{Path: relFile, Line: 1, EndLine: endLine}},
		})
		fd.setMetric(MetricLOC, float64(endLine))

		for _, decl := range file.Decls {
			switch d := decl.(type) {
			case *ast.GenDecl:
				if d.Tok != token.TYPE {
					continue
				}
				for _, spec := range d.Specs {
					if ts, ok := spec.(*ast.TypeSpec); ok {
						b.typeSpec(pkg, fd, relFile, ts)
					}
				}
			case *ast.FuncDecl:
				b.funcDecl(pkg, fd, relFile, d)
			}
		}
	}
}

func (b *builder) typeSpec(pkg *packages.Package, fd *Decl, relFile string, ts *ast.TypeSpec) {
	obj, ok := pkg.TypesInfo.Defs[ts.Name].(*types.TypeName)
	if !ok {
		return
	}
	kind := KindType
	if types.IsInterface(obj.Type()) {
		kind = KindInterface
	}
	pos := b.position(relFile, ts.Pos(), ts.End())
	d := fd.add(&Decl{
		kind:    kind,
		name:    ts.Name.Name,
		mangled: b.unique(pkg.PkgPath+"."+ts.Name.Name, pos),
		pos:     []asg.Position{pos},
	})
	d.setMetric(MetricLOC, float64(lineCount(b.prog.Fset, ts.Pos(), ts.End())))
	b.prog.objs[obj] = d
}

func (b *builder) funcDecl(pkg *packages.Package, fd *Decl, relFile string, fn *ast.FuncDecl) {
	kind, display := KindFunction, fn.Name.Name
	if fn.Recv != nil && len(fn.Recv.List) > 0 {
		kind = KindMethod
		recv := strings.TrimPrefix(exprTypeName(fn.Recv.List[0].Type), "*")
		if i := strings.IndexByte(recv, '['); i >= 0 {
			recv = recv[:i]
		}
		display = recv + "." + fn.Name.Name
	}
	pos := b.position(relFile, fn.Pos(), fn.End())
	d := fd.add(&Decl{
		kind:    kind,
		name:    display,
		mangled: b.unique(pkg.PkgPath+"."+display, pos),
		pos:     []asg.Position{pos},
	})
	d.setMetric(MetricLOC, float64(lineCount(b.prog.Fset, fn.Pos(), fn.End())))
	d.setMetric(MetricMcCC, float64(cyclomatic(fn.Body)))
	d.setMetric(MetricNumPar, float64(countParams(fn.Type)))
	if obj := pkg.TypesInfo.Defs[fn.Name]; obj != nil {
		b.prog.objs[obj] = d
	}
}

// imports links packages of the module to the module packages they import.
func (b *builder) imports() {
	for _, pkg := range b.prog.pkgs {
		from := b.byPkg[pkg.PkgPath]
		for _, imp := range slices.Sorted(maps.Keys(pkg.Imports)) {
			if to := b.byPkg[imp]; to != nil {
				b.relate(from, to, RelImports)
			}
		}
	}
}

// exprTypeName extracts a human-readable name from a type expression.
func exprTypeName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.SelectorExpr:
		if x, ok := t.X.(*ast.Ident); ok {
			return x.Name + "." + t.Sel.Name
		}
		return t.Sel.Name
	case *ast.StarExpr:
		return "*" + exprTypeName(t.X)
	case *ast.IndexExpr:
		return exprTypeName(t.X) + "[" + exprTypeName(t.Index) + "]"
	case *ast.IndexListExpr:
		parts := make([]string, len(t.Indices))
		for i, idx := range t.Indices {
			parts[i] = exprTypeName(idx)
		}
		return exprTypeName(t.X) + "[" + strings.Join(parts, ", ") + "]"
	case *ast.ParenExpr:
		return exprTypeName(t.X)
	}
	return "?"
}
