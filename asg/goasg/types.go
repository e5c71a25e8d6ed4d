package goasg

import (
	"go/types"

	"go.uber.org/zap"
)

// typeRelations emits Implements, Embeds, AliasOf and HasMethod links
// between the declarations of the loaded packages.
func (b *builder) typeRelations() {
	var concretes, ifaces []*types.TypeName
	for _, pkg := range b.prog.pkgs {
		scope := pkg.Types.Scope()
		for _, name := range scope.Names() {
			obj, ok := scope.Lookup(name).(*types.TypeName)
			if !ok || b.prog.objs[obj] == nil {
				continue
			}
			if obj.IsAlias() {
				b.alias(obj)
				continue
			}
			if types.IsInterface(obj.Type()) {
				ifaces = append(ifaces, obj)
			} else {
				concretes = append(concretes, obj)
			}
		}
	}

	var implements, embeds int
	for _, c := range concretes {
		cd := b.prog.objs[c]
		ptr := types.NewPointer(c.Type())
		for _, i := range ifaces {
			it, ok := i.Type().Underlying().(*types.Interface)
			if !ok || it.NumMethods() == 0 {
				continue // skip empty interfaces
			}
			if types.Implements(c.Type(), it) || types.Implements(ptr, it) {
				b.relate(cd, b.prog.objs[i], RelImplements)
				implements++
			}
		}
		embeds += b.embeds(c)
		b.methods(c)
	}
	for _, i := range ifaces {
		embeds += b.embeds(i)
	}
	b.log.Debug("type relations", zap.Int("implements", implements), zap.Int("embeds", embeds))
}

// alias links a type alias to the named type it stands for.
func (b *builder) alias(obj *types.TypeName) {
	named, ok := types.Unalias(obj.Type()).(*types.Named)
	if !ok {
		return
	}
	if target := b.prog.objs[named.Obj()]; target != nil {
		b.relate(b.prog.objs[obj], target, RelAliasOf)
	}
}

// embeds links a struct to its embedded named types and an interface to
// the interfaces it embeds.
func (b *builder) embeds(obj *types.TypeName) int {
	from := b.prog.objs[obj]
	var targets []types.Type
	switch u := obj.Type().Underlying().(type) {
	case *types.Struct:
		for field := range u.Fields() {
			if field.Embedded() {
				targets = append(targets, field.Type())
			}
		}
	case *types.Interface:
		for i := range u.NumEmbeddeds() {
			targets = append(targets, u.EmbeddedType(i))
		}
	}
	n := 0
	for _, t := range targets {
		if ptr, ok := t.(*types.Pointer); ok {
			t = ptr.Elem()
		}
		named, ok := types.Unalias(t).(*types.Named)
		if !ok {
			continue
		}
		if to := b.prog.objs[named.Origin().Obj()]; to != nil {
			b.relate(from, to, RelEmbeds)
			n++
		}
	}
	return n
}

// methods links a type to the methods declared on it. Promoted methods are
// left out.
func (b *builder) methods(obj *types.TypeName) {
	named, ok := obj.Type().(*types.Named)
	if !ok {
		return
	}
	from := b.prog.objs[obj]
	for m := range named.Methods() {
		if to := b.prog.objs[m]; to != nil {
			b.relate(from, to, RelHasMethod)
		}
	}
}
