package vm

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"krait/internal/object"
	"krait/internal/symbol"
)

// repr implements repr(v).
func (vm *VM) repr(v Value) (string, error) { return vm.toString(v, true, true) }

// str implements str(v).
func (vm *VM) str(v Value) (string, error) { return vm.toString(v, false, true) }

// reprBuiltin formats v without calling __repr__ or __str__.
func (vm *VM) reprBuiltin(v Value) (string, error) { return vm.toString(v, true, false) }

// Repr formats v the way the REPL echoes it.
func (vm *VM) Repr(v Value) (string, error) {
	s, err := vm.repr(v)
	if err != nil {
		return "", vm.escape(err)
	}
	return s, nil
}

// Str formats v the way print does.
func (vm *VM) Str(v Value) (string, error) {
	s, err := vm.str(v)
	if err != nil {
		return "", vm.escape(err)
	}
	return s, nil
}

// escape converts an error raised outside of any frame for the embedder.
func (vm *VM) escape(err error) error {
	if len(vm.frames) > 0 {
		return err
	}
	return vm.finish(err, true)
}

func (vm *VM) addr(v Value) string { return fmt.Sprintf("0x%x", uint64(v.Handle())) }

func (vm *VM) toString(v Value, quote, user bool) (string, error) {
	switch {
	case v.IsSmallInt():
		return strconv.FormatInt(v.Int(), 10), nil
	case v.IsSmallFloat():
		return formatFloat(v.Float()), nil
	}
	switch v {
	case None, Nil:
		return "None", nil
	case True:
		return "True", nil
	case False:
		return "False", nil
	case NotImplemented:
		return "NotImplemented", nil
	case Ellipsis:
		return "Ellipsis", nil
	}
	o := vm.obj(v)
	if o == nil {
		return "<?>", nil
	}

	if user && (o.Kind == object.KInstance || o.Kind == object.KException) {
		if s, ok, err := vm.userString(v, o, quote); ok || err != nil {
			return s, err
		}
	}

	switch o.Kind {
	case object.KInt:
		return strconv.FormatInt(o.Int, 10), nil
	case object.KFloat:
		return formatFloat(o.Float), nil
	case object.KStr:
		if quote {
			return quoteString(o.Str), nil
		}
		return o.Str, nil
	case object.KList, object.KTuple, object.KDict:
		return vm.containerString(v, o, user)
	case object.KFunction:
		return fmt.Sprintf("<function %s at %s>", o.Data.(*object.Function).Decl.Name, vm.addr(v)), nil
	case object.KNative:
		return fmt.Sprintf("<built-in function %s>", o.Data.(*object.NativeFunc).Name), nil
	case object.KBoundMethod:
		bm := o.Data.(*object.BoundMethod)
		fn := "?"
		if fo := vm.obj(bm.Func); fo != nil {
			switch d := fo.Data.(type) {
			case *object.Function:
				fn = d.Decl.Name
			case *object.NativeFunc:
				fn = d.Name
			}
		}
		return fmt.Sprintf("<bound method %s.%s of <%s object at %s>>", vm.typeName(bm.Self), fn, vm.typeName(bm.Self), vm.addr(bm.Self)), nil
	case object.KType:
		ti := vm.typeInfo(v)
		if ti.Module == "" || ti.Module == "builtins" {
			return fmt.Sprintf("<class '%s'>", ti.Name), nil
		}
		return fmt.Sprintf("<class '%s.%s'>", ti.Module, ti.Name), nil
	case object.KModule:
		return fmt.Sprintf("<module '%s'>", o.Data.(*object.ModuleInfo).Name), nil
	case object.KException:
		return vm.exceptionString(v, o, quote, user)
	case object.KGenerator:
		return fmt.Sprintf("<generator object %s at %s>", o.Data.(*Generator).name, vm.addr(v)), nil
	case object.KRange:
		r := o.Data.(*object.Range)
		if r.Step == 1 {
			return fmt.Sprintf("range(%d, %d)", r.Start, r.Stop), nil
		}
		return fmt.Sprintf("range(%d, %d, %d)", r.Start, r.Stop, r.Step), nil
	case object.KSlice:
		s := o.Data.(*object.Slice)
		parts := make([]string, 3)
		for i, x := range []Value{s.Start, s.Stop, s.Step} {
			p, err := vm.toString(x, true, user)
			if err != nil {
				return "", err
			}
			parts[i] = p
		}
		return "slice(" + strings.Join(parts, ", ") + ")", nil
	case object.KInstance:
		ti := vm.typeInfo(o.Type)
		if ti != nil && ti.Module != "" && ti.Module != "builtins" {
			return fmt.Sprintf("<%s.%s object at %s>", ti.Module, ti.Name, vm.addr(v)), nil
		}
	}
	return fmt.Sprintf("<%s object at %s>", vm.typeName(v), vm.addr(v)), nil
}

// userString calls __str__ or __repr__ defined by a class.
func (vm *VM) userString(v Value, o *object.Object, quote bool) (string, bool, error) {
	var fn Value
	found := false
	if !quote {
		fn, found = vm.lookupType(o.Type, symbol.Str)
	}
	if !found {
		fn, found = vm.lookupType(o.Type, symbol.Repr)
	}
	if !found || vm.is(fn, object.KNative) {
		return "", false, nil
	}
	r, err := vm.Call(fn, v)
	if err != nil {
		return "", false, err
	}
	s, ok := vm.strOf(r)
	if !ok {
		which := "__repr__"
		if !quote {
			which = "__str__"
		}
		return "", false, vm.typeError("%s returned non-string (type %s)", which, vm.typeName(r))
	}
	return s, true, nil
}

func (vm *VM) exceptionString(v Value, o *object.Object, quote, user bool) (string, error) {
	info := o.Data.(*object.ExcInfo)
	args, _ := vm.elems(info.Args)
	if !quote {
		switch len(args) {
		case 0:
			return "", nil
		case 1:
			return vm.toString(args[0], false, user)
		}
		return vm.toString(info.Args, true, user)
	}
	parts := make([]string, len(args))
	for i, a := range args {
		s, err := vm.toString(a, true, user)
		if err != nil {
			return "", err
		}
		parts[i] = s
	}
	return vm.typeName(v) + "(" + strings.Join(parts, ", ") + ")", nil
}

func (vm *VM) containerString(v Value, o *object.Object, user bool) (string, error) {
	open, close := "[", "]"
	switch o.Kind {
	case object.KTuple:
		open, close = "(", ")"
	case object.KDict:
		open, close = "{", "}"
	}
	if vm.reprActive[v] {
		return open + "..." + close, nil
	}
	vm.reprActive[v] = true
	defer delete(vm.reprActive, v)

	var sb strings.Builder
	sb.WriteString(open)
	if o.Kind == object.KDict {
		d := o.Data.(*object.Dict)
		first := true
		for pos := 0; ; {
			k, x, next, ok := d.Next(pos)
			if !ok {
				break
			}
			pos = next
			if !first {
				sb.WriteString(", ")
			}
			first = false
			ks, err := vm.toString(k, true, user)
			if err != nil {
				return "", err
			}
			xs, err := vm.toString(x, true, user)
			if err != nil {
				return "", err
			}
			sb.WriteString(ks)
			sb.WriteString(": ")
			sb.WriteString(xs)
		}
	} else {
		items := o.Elems()
		// a __repr__ may mutate the list, so the length is re-read
		for i := 0; i < len(o.Elems()); i++ {
			if i > 0 {
				sb.WriteString(", ")
			}
			s, err := vm.toString(o.Elems()[i], true, user)
			if err != nil {
				return "", err
			}
			sb.WriteString(s)
		}
		if o.Kind == object.KTuple && len(items) == 1 {
			sb.WriteString(",")
		}
	}
	sb.WriteString(close)
	return sb.String(), nil
}

// formatFloat renders the shortest representation that reads back exactly,
// switching to exponent notation outside [1e-4, 1e16).
func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	e := strconv.FormatFloat(f, 'e', -1, 64)
	exp := 0
	if i := strings.IndexByte(e, 'e'); i >= 0 {
		exp, _ = strconv.Atoi(e[i+1:])
	}
	if f != 0 && (exp < -4 || exp >= 16) {
		return e
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".") {
		s += ".0"
	}
	return s
}

// quoteString renders a string literal, preferring single quotes.
func quoteString(s string) string {
	q := byte('\'')
	if strings.IndexByte(s, '\'') >= 0 && strings.IndexByte(s, '"') < 0 {
		q = '"'
	}
	var sb strings.Builder
	sb.Grow(len(s) + 2)
	sb.WriteByte(q)
	for i := 0; i < len(s); {
		r, w := utf8.DecodeRuneInString(s[i:])
		i += w
		switch {
		case r == '\\':
			sb.WriteString(`\\`)
		case r == rune(q):
			sb.WriteByte('\\')
			sb.WriteByte(q)
		case r == '\n':
			sb.WriteString(`\n`)
		case r == '\r':
			sb.WriteString(`\r`)
		case r == '\t':
			sb.WriteString(`\t`)
		case r == utf8.RuneError && w == 1:
			fmt.Fprintf(&sb, `\x%02x`, s[i-1])
		case r < 0x20 || r == 0x7f:
			fmt.Fprintf(&sb, `\x%02x`, r)
		case r >= 0x80 && !unicode.IsPrint(r):
			if r <= 0xffff {
				fmt.Fprintf(&sb, `\u%04x`, r)
			} else {
				fmt.Fprintf(&sb, `\U%08x`, r)
			}
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteByte(q)
	return sb.String()
}
