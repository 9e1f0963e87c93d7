package vm

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"krait/internal/code"
	"krait/internal/compiler"
	"krait/internal/object"
	"krait/internal/source"
)

func (vm *VM) jsonModule() Value {
	return vm.nativeModule("json", map[string]modFn{
		"loads": {argc: 1, fn: func(vm *VM, args, _ []Value) (Value, error) {
			s, ok := vm.strOf(args[0])
			if !ok {
				return Nil, vm.typeError("the JSON object must be str, not %s", vm.typeName(args[0]))
			}
			return vm.jsonLoads(s)
		}},
		"dumps": {argc: 1, fn: func(vm *VM, args, kw []Value) (Value, error) {
			indent := -1
			if kw[0] != None {
				i, ok := vm.intOf(kw[0])
				if !ok {
					return Nil, vm.notInteger(kw[0])
				}
				indent = int(max(i, 0))
			}
			sortKeys, err := vm.truth(kw[1])
			if err != nil {
				return Nil, err
			}
			e := &jsonEncoder{vm: vm, indent: indent, sortKeys: sortKeys, active: make(map[Value]bool)}
			if err := e.encode(args[0], 0); err != nil {
				return Nil, err
			}
			return vm.NewStr(e.sb.String()), nil
		}, kw: []object.NameArg{opt("indent", None), opt("sort_keys", False)}},
	})
}

// jsonLoads compiles s as a JSON literal and evaluates it.
func (vm *VM) jsonLoads(s string) (Value, error) {
	u, err := compiler.Compile(source.NewFile("<json>", []byte(s)), compiler.Options{Mode: code.ModeJSON})
	if err != nil {
		var ce *compiler.Error
		if errors.As(err, &ce) {
			return Nil, vm.valueError("%s", ce.Error())
		}
		return Nil, err
	}
	defer u.Release()
	if err := vm.pushModuleFrame(u, vm.Builtins(), -1); err != nil {
		return Nil, err
	}
	return vm.run(len(vm.frames) - 1)
}

type jsonEncoder struct {
	vm       *VM
	sb       strings.Builder
	indent   int // -1: compact
	sortKeys bool
	active   map[Value]bool
}

func (e *jsonEncoder) newline(depth int) {
	if e.indent < 0 {
		return
	}
	e.sb.WriteByte('\n')
	e.sb.WriteString(strings.Repeat(" ", e.indent*depth))
}

func (e *jsonEncoder) sep() {
	if e.indent < 0 {
		e.sb.WriteString(", ")
	} else {
		e.sb.WriteByte(',')
	}
}

func (e *jsonEncoder) encode(v Value, depth int) error {
	vm := e.vm
	switch v {
	case None, Nil:
		e.sb.WriteString("null")
		return nil
	case True:
		e.sb.WriteString("true")
		return nil
	case False:
		e.sb.WriteString("false")
		return nil
	}
	if i, ok := vm.intOf(v); ok {
		e.sb.WriteString(strconv.FormatInt(i, 10))
		return nil
	}
	if f, ok := vm.floatOf(v); ok {
		e.sb.WriteString(jsonFloat(f))
		return nil
	}
	if s, ok := vm.strOf(v); ok {
		jsonQuote(&e.sb, s)
		return nil
	}
	o := vm.obj(v)
	if o == nil || (o.Kind != object.KList && o.Kind != object.KTuple && o.Kind != object.KDict) {
		return vm.typeError("Object of type %s is not JSON serializable", vm.typeName(v))
	}
	if e.active[v] {
		return vm.valueError("Circular reference detected")
	}
	e.active[v] = true
	defer delete(e.active, v)

	if o.Kind == object.KDict {
		return e.encodeDict(o.Data.(*object.Dict), depth)
	}
	items := o.Elems()
	if len(items) == 0 {
		e.sb.WriteString("[]")
		return nil
	}
	e.sb.WriteByte('[')
	for i, x := range items {
		if i > 0 {
			e.sep()
		}
		e.newline(depth + 1)
		if err := e.encode(x, depth+1); err != nil {
			return err
		}
	}
	e.newline(depth)
	e.sb.WriteByte(']')
	return nil
}

func (e *jsonEncoder) encodeDict(d *object.Dict, depth int) error {
	vm := e.vm
	if d.Len() == 0 {
		e.sb.WriteString("{}")
		return nil
	}
	type entry struct {
		key string
		val Value
	}
	entries := make([]entry, 0, d.Len())
	var keyErr error
	d.Each(func(k, x Value) bool {
		var ks string
		switch {
		case k == None:
			ks = "null"
		case k == True:
			ks = "true"
		case k == False:
			ks = "false"
		default:
			if s, ok := vm.strOf(k); ok {
				ks = s
			} else if i, ok := vm.intOf(k); ok {
				ks = strconv.FormatInt(i, 10)
			} else if f, ok := vm.floatOf(k); ok {
				ks = jsonFloat(f)
			} else {
				keyErr = vm.typeError("keys must be str, int, float, bool or None, not %s", vm.typeName(k))
				return false
			}
		}
		entries = append(entries, entry{ks, x})
		return true
	})
	if keyErr != nil {
		return keyErr
	}
	if e.sortKeys {
		sort.SliceStable(entries, func(i, j int) bool { return entries[i].key < entries[j].key })
	}
	e.sb.WriteByte('{')
	for i, en := range entries {
		if i > 0 {
			e.sep()
		}
		e.newline(depth + 1)
		jsonQuote(&e.sb, en.key)
		e.sb.WriteString(": ")
		if err := e.encode(en.val, depth+1); err != nil {
			return err
		}
	}
	e.newline(depth)
	e.sb.WriteByte('}')
	return nil
}

func jsonFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return formatFloat(f)
}

// jsonQuote writes s as an ASCII-only JSON string.
func jsonQuote(sb *strings.Builder, s string) {
	sb.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		case '\b':
			sb.WriteString(`\b`)
		case '\f':
			sb.WriteString(`\f`)
		default:
			switch {
			case r < 0x20 || (r >= 0x7f && r <= 0xffff):
				if r < 0x7f {
					fmt.Fprintf(sb, `\u%04x`, r)
				} else if r == 0x7f {
					sb.WriteRune(r)
				} else {
					fmt.Fprintf(sb, `\u%04x`, r)
				}
			case r > 0xffff:
				r1, r2 := utf16Pair(r)
				fmt.Fprintf(sb, `\u%04x\u%04x`, r1, r2)
			default:
				sb.WriteRune(r)
			}
		}
	}
	sb.WriteByte('"')
}

func utf16Pair(r rune) (rune, rune) {
	if r > utf8.MaxRune {
		r = utf8.RuneError
	}
	r -= 0x10000
	return 0xd800 + (r>>10)&0x3ff, 0xdc00 + r&0x3ff
}
