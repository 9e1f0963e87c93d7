package vm

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"krait/internal/object"
	"krait/internal/symbol"
)

// receiver checks the first argument of a builtin method.
func (vm *VM) receiver(args []Value, k object.Kind, meth, typ string) (*object.Object, error) {
	if o := vm.obj(args[0]); o != nil && o.Kind == k {
		return o, nil
	}
	return nil, vm.typeError("descriptor '%s' for '%s' objects doesn't apply to a '%s' object", meth, typ, vm.typeName(args[0]))
}

type strFn func(vm *VM, o *object.Object, args, kw []Value) (Value, error)

func (vm *VM) strMethod(nm string, argc int, fn strFn, kw ...object.NameArg) {
	vm.obj(vm.types.str).Attr.Set(symbol.Intern(nm), vm.newMethod(nm, argc, func(vm *VM, args, kwv []Value) (Value, error) {
		o, err := vm.receiver(args, object.KStr, nm, "str")
		if err != nil {
			return Nil, err
		}
		return fn(vm, o, args[1:], kwv)
	}, kw...))
}

// strMap registers a method that maps the whole string.
func (vm *VM) strMap(nm string, f func(string) string) {
	vm.strMethod(nm, 0, func(vm *VM, o *object.Object, _, _ []Value) (Value, error) {
		return vm.NewStr(f(o.Str)), nil
	})
}

// strTest registers an is* predicate; empty strings are false.
func (vm *VM) strTest(nm string, f func(rune) bool) {
	vm.strMethod(nm, 0, func(vm *VM, o *object.Object, _, _ []Value) (Value, error) {
		if o.Str == "" {
			return False, nil
		}
		for _, r := range o.Str {
			if !f(r) {
				return False, nil
			}
		}
		return True, nil
	})
}

func (vm *VM) strArg(meth string, v Value) (string, error) {
	s, ok := vm.strOf(v)
	if !ok {
		return "", vm.typeError("%s() argument must be str, not %s", meth, vm.typeName(v))
	}
	return s, nil
}

// strRange returns the part of o selected by optional start and end
// arguments and the code-point offset it begins at.
func (vm *VM) strRange(o *object.Object, start, end Value) (string, int, error) {
	start, end = noneIfNil(start), noneIfNil(end)
	if start == None && end == None {
		return o.Str, 0, nil
	}
	n := object.StrLen(o)
	b, e, _, err := vm.sliceIndices(&object.Slice{Start: start, Stop: end, Step: None}, n)
	if err != nil {
		return "", 0, err
	}
	if e < b {
		e = b
	}
	return object.Substr(o, b, e), b, nil
}

func noneIfNil(v Value) Value {
	if v == Nil {
		return None
	}
	return v
}

func (vm *VM) stripChars(v Value, meth string) (string, bool, error) {
	if v == None || v == Nil {
		return "", false, nil
	}
	s, err := vm.strArg(meth, v)
	return s, true, err
}

func (vm *VM) initStrMethods() {
	vm.strMap("upper", strings.ToUpper)
	vm.strMap("lower", strings.ToLower)
	vm.strMap("swapcase", func(s string) string {
		return strings.Map(func(r rune) rune {
			if unicode.IsUpper(r) {
				return unicode.ToLower(r)
			}
			return unicode.ToUpper(r)
		}, s)
	})
	vm.strMap("title", strTitle)
	vm.strMap("capitalize", func(s string) string {
		if s == "" {
			return s
		}
		r, w := utf8.DecodeRuneInString(s)
		return string(unicode.ToUpper(r)) + strings.ToLower(s[w:])
	})
	vm.strTest("isdigit", unicode.IsDigit)
	vm.strTest("isalpha", unicode.IsLetter)
	vm.strTest("isspace", unicode.IsSpace)
	vm.strTest("isalnum", func(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) })
	vm.strMethod("isupper", 0, func(vm *VM, o *object.Object, _, _ []Value) (Value, error) {
		return object.Bool(hasCased(o.Str) && strings.ToUpper(o.Str) == o.Str), nil
	})
	vm.strMethod("islower", 0, func(vm *VM, o *object.Object, _, _ []Value) (Value, error) {
		return object.Bool(hasCased(o.Str) && strings.ToLower(o.Str) == o.Str), nil
	})

	for _, m := range []struct {
		nm       string
		trim     func(string) string
		trimWith func(string, string) string
	}{
		{"strip", strings.TrimSpace, strings.Trim},
		{"lstrip", func(s string) string { return strings.TrimLeftFunc(s, unicode.IsSpace) }, strings.TrimLeft},
		{"rstrip", func(s string) string { return strings.TrimRightFunc(s, unicode.IsSpace) }, strings.TrimRight},
	} {
		vm.strMethod(m.nm, 0, func(vm *VM, o *object.Object, _, kw []Value) (Value, error) {
			chars, ok, err := vm.stripChars(kw[0], m.nm)
			if err != nil {
				return Nil, err
			}
			if !ok {
				return vm.NewStr(m.trim(o.Str)), nil
			}
			return vm.NewStr(m.trimWith(o.Str, chars)), nil
		}, opt("chars", None))
	}

	vm.strMethod("split", 0, func(vm *VM, o *object.Object, _, kw []Value) (Value, error) {
		return vm.strSplit(o.Str, kw[0], kw[1], false)
	}, opt("sep", None), opt("maxsplit", vm.NewInt(-1)))
	vm.strMethod("rsplit", 0, func(vm *VM, o *object.Object, _, kw []Value) (Value, error) {
		return vm.strSplit(o.Str, kw[0], kw[1], true)
	}, opt("sep", None), opt("maxsplit", vm.NewInt(-1)))
	vm.strMethod("splitlines", 0, func(vm *VM, o *object.Object, _, kw []Value) (Value, error) {
		keep, err := vm.truth(kw[0])
		if err != nil {
			return Nil, err
		}
		var out []Value
		s := o.Str
		for s != "" {
			i := strings.IndexAny(s, "\r\n")
			if i < 0 {
				out = append(out, vm.NewStr(s))
				break
			}
			w := 1
			if s[i] == '\r' && i+1 < len(s) && s[i+1] == '\n' {
				w = 2
			}
			line := s[:i]
			if keep {
				line = s[:i+w]
			}
			out = append(out, vm.NewStr(line))
			s = s[i+w:]
		}
		return vm.NewList(out), nil
	}, opt("keepends", False))
	vm.strMethod("join", 1, func(vm *VM, o *object.Object, args, _ []Value) (Value, error) {
		items, err := vm.sequence(args[0])
		if err != nil {
			return Nil, err
		}
		parts := make([]string, len(items))
		for i, x := range items {
			s, ok := vm.strOf(x)
			if !ok {
				return Nil, vm.typeError("sequence item %d: expected str instance, %s found", i, vm.typeName(x))
			}
			parts[i] = s
		}
		return vm.NewStr(strings.Join(parts, o.Str)), nil
	})
	vm.strMethod("replace", 2, func(vm *VM, o *object.Object, args, kw []Value) (Value, error) {
		old, err := vm.strArg("replace", args[0])
		if err != nil {
			return Nil, err
		}
		repl, err := vm.strArg("replace", args[1])
		if err != nil {
			return Nil, err
		}
		n, ok := vm.intOf(kw[0])
		if !ok {
			return Nil, vm.notInteger(kw[0])
		}
		return vm.NewStr(strings.Replace(o.Str, old, repl, int(n))), nil
	}, opt("count", vm.NewInt(-1)))

	for _, m := range []struct {
		nm   string
		test func(s, affix string) bool
	}{{"startswith", strings.HasPrefix}, {"endswith", strings.HasSuffix}} {
		vm.strMethod(m.nm, 1, func(vm *VM, o *object.Object, args, kw []Value) (Value, error) {
			s, _, err := vm.strRange(o, kw[0], kw[1])
			if err != nil {
				return Nil, err
			}
			affixes := []Value{args[0]}
			if t, ok := vm.elems(args[0]); ok && vm.is(args[0], object.KTuple) {
				affixes = t
			}
			for _, a := range affixes {
				as, ok := vm.strOf(a)
				if !ok {
					return Nil, vm.typeError("%s first arg must be str or a tuple of str, not %s", m.nm, vm.typeName(a))
				}
				if m.test(s, as) {
					return True, nil
				}
			}
			return False, nil
		}, opt("start", None), opt("end", None))
	}

	for _, m := range []struct {
		nm    string
		right bool
		raise bool
	}{{"find", false, false}, {"rfind", true, false}, {"index", false, true}, {"rindex", true, true}} {
		vm.strMethod(m.nm, 1, func(vm *VM, o *object.Object, args, kw []Value) (Value, error) {
			sub, err := vm.strArg(m.nm, args[0])
			if err != nil {
				return Nil, err
			}
			s, off, err := vm.strRange(o, kw[0], kw[1])
			if err != nil {
				return Nil, err
			}
			i := strings.Index(s, sub)
			if m.right {
				i = strings.LastIndex(s, sub)
			}
			if i < 0 {
				if m.raise {
					return Nil, vm.valueError("substring not found")
				}
				return vm.NewInt(-1), nil
			}
			return vm.NewInt(int64(off + utf8.RuneCountInString(s[:i]))), nil
		}, opt("start", None), opt("end", None))
	}
	vm.strMethod("count", 1, func(vm *VM, o *object.Object, args, kw []Value) (Value, error) {
		sub, err := vm.strArg("count", args[0])
		if err != nil {
			return Nil, err
		}
		s, _, err := vm.strRange(o, kw[0], kw[1])
		if err != nil {
			return Nil, err
		}
		if sub == "" {
			return vm.NewInt(int64(utf8.RuneCountInString(s) + 1)), nil
		}
		return vm.NewInt(int64(strings.Count(s, sub))), nil
	}, opt("start", None), opt("end", None))
	vm.strMethod("partition", 1, func(vm *VM, o *object.Object, args, _ []Value) (Value, error) {
		sep, err := vm.strArg("partition", args[0])
		if err != nil {
			return Nil, err
		}
		if sep == "" {
			return Nil, vm.valueError("empty separator")
		}
		before, after, found := strings.Cut(o.Str, sep)
		if !found {
			return vm.NewTuple([]Value{vm.NewStr(o.Str), vm.NewStr(""), vm.NewStr("")}), nil
		}
		return vm.NewTuple([]Value{vm.NewStr(before), vm.NewStr(sep), vm.NewStr(after)}), nil
	})

	for _, m := range []struct {
		nm    string
		align byte
	}{{"center", '^'}, {"ljust", '<'}, {"rjust", '>'}} {
		vm.strMethod(m.nm, 1, func(vm *VM, o *object.Object, args, kw []Value) (Value, error) {
			w, ok := vm.intOf(args[0])
			if !ok {
				return Nil, vm.notInteger(args[0])
			}
			fill, err := vm.strArg(m.nm, kw[0])
			if err != nil {
				return Nil, err
			}
			if utf8.RuneCountInString(fill) != 1 {
				return Nil, vm.typeError("The fill character must be exactly one character long")
			}
			r, _ := utf8.DecodeRuneInString(fill)
			return vm.NewStr(pad(o.Str, fmtSpec{fill: r, align: m.align, width: int(w)}, m.align)), nil
		}, opt("fillchar", vm.NewStr(" ")))
	}
	vm.strMethod("zfill", 1, func(vm *VM, o *object.Object, args, _ []Value) (Value, error) {
		w, ok := vm.intOf(args[0])
		if !ok {
			return Nil, vm.notInteger(args[0])
		}
		s := o.Str
		sign := ""
		if s != "" && (s[0] == '+' || s[0] == '-') {
			sign, s = s[:1], s[1:]
		}
		if n := int(w) - len(sign) - utf8.RuneCountInString(s); n > 0 {
			s = strings.Repeat("0", n) + s
		}
		return vm.NewStr(sign + s), nil
	})
	vm.strMethod("format", -1, func(vm *VM, o *object.Object, args, kw []Value) (Value, error) {
		var d *object.Dict
		if kw[0] != Nil {
			d, _ = vm.dictOf(kw[0])
		}
		s, err := vm.strFormat(o.Str, args, d)
		if err != nil {
			return Nil, err
		}
		return vm.NewStr(s), nil
	}, opt("**", Nil))
}

func hasCased(s string) bool {
	for _, r := range s {
		if unicode.IsUpper(r) || unicode.IsLower(r) {
			return true
		}
	}
	return false
}

// strTitle upper-cases the first letter of every run of letters.
func strTitle(s string) string {
	var sb strings.Builder
	prev := false
	for _, r := range s {
		switch {
		case !unicode.IsLetter(r):
			sb.WriteRune(r)
			prev = false
		case prev:
			sb.WriteRune(unicode.ToLower(r))
		default:
			sb.WriteRune(unicode.ToTitle(r))
			prev = true
		}
	}
	return sb.String()
}

func (vm *VM) strSplit(s string, sepv, maxv Value, right bool) (Value, error) {
	limit, ok := vm.intOf(maxv)
	if !ok {
		return Nil, vm.notInteger(maxv)
	}
	var parts []string
	if sepv == None {
		parts = splitFields(s, int(limit), right)
	} else {
		sep, err := vm.strArg("split", sepv)
		if err != nil {
			return Nil, err
		}
		if sep == "" {
			return Nil, vm.valueError("empty separator")
		}
		switch {
		case limit < 0:
			parts = strings.Split(s, sep)
		case !right:
			parts = strings.SplitN(s, sep, int(limit)+1)
		default:
			for ; limit > 0; limit-- {
				i := strings.LastIndex(s, sep)
				if i < 0 {
					break
				}
				parts = append(parts, s[i+len(sep):])
				s = s[:i]
			}
			parts = append(parts, s)
			for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
				parts[i], parts[j] = parts[j], parts[i]
			}
		}
	}
	out := make([]Value, len(parts))
	for i, p := range parts {
		out[i] = vm.NewStr(p)
	}
	return vm.NewList(out), nil
}

// splitFields splits on runs of whitespace, keeping the unsplit remainder
// once limit splits were made.
func splitFields(s string, limit int, right bool) []string {
	if limit < 0 {
		return strings.Fields(s)
	}
	var out []string
	if right {
		s = strings.TrimRightFunc(s, unicode.IsSpace)
		for s != "" && limit > 0 {
			i := strings.LastIndexFunc(s, unicode.IsSpace)
			if i < 0 {
				break
			}
			_, w := utf8.DecodeRuneInString(s[i:])
			out = append(out, s[i+w:])
			s = strings.TrimRightFunc(s[:i], unicode.IsSpace)
			limit--
		}
		if s != "" {
			out = append(out, s)
		}
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
		return out
	}
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	for s != "" && limit > 0 {
		i := strings.IndexFunc(s, unicode.IsSpace)
		if i < 0 {
			break
		}
		out = append(out, s[:i])
		s = strings.TrimLeftFunc(s[i:], unicode.IsSpace)
		limit--
	}
	if s != "" {
		out = append(out, s)
	}
	return out
}
