package vm

import (
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"krait/internal/object"
	"krait/internal/symbol"
)

// fmtSpec is a parsed format specification:
// [[fill]align][sign][#][0][width][,|_][.precision][type]
type fmtSpec struct {
	fill      rune
	align     byte
	sign      byte
	alt       bool
	zero      bool
	width     int
	group     byte
	precision int // -1 when absent
	typ       byte
}

func (vm *VM) parseSpec(spec string) (fmtSpec, error) {
	s := fmtSpec{fill: ' ', precision: -1}
	bad := func() (fmtSpec, error) {
		return fmtSpec{}, vm.valueError("Invalid format specifier '%s'", spec)
	}
	i := 0
	if r, w := utf8.DecodeRuneInString(spec); w > 0 && w < len(spec) && strings.IndexByte("<>=^", spec[w]) >= 0 {
		s.fill, s.align = r, spec[w]
		i = w + 1
	} else if len(spec) > 0 && strings.IndexByte("<>=^", spec[0]) >= 0 {
		s.align = spec[0]
		i = 1
	}
	if i < len(spec) && strings.IndexByte("+- ", spec[i]) >= 0 {
		s.sign = spec[i]
		i++
	}
	if i < len(spec) && spec[i] == '#' {
		s.alt = true
		i++
	}
	if i < len(spec) && spec[i] == '0' {
		s.zero = true
		i++
	}
	start := i
	for i < len(spec) && spec[i] >= '0' && spec[i] <= '9' {
		i++
	}
	if i > start {
		w, err := strconv.Atoi(spec[start:i])
		if err != nil {
			return bad()
		}
		s.width = w
	}
	if i < len(spec) && (spec[i] == ',' || spec[i] == '_') {
		s.group = spec[i]
		i++
	}
	if i < len(spec) && spec[i] == '.' {
		i++
		start = i
		for i < len(spec) && spec[i] >= '0' && spec[i] <= '9' {
			i++
		}
		if i == start {
			return fmtSpec{}, vm.valueError("Format specifier missing precision")
		}
		s.precision, _ = strconv.Atoi(spec[start:i])
	}
	if i < len(spec) {
		s.typ = spec[i]
		i++
	}
	if i != len(spec) {
		return bad()
	}
	return s, nil
}

// formatValue implements FORMAT_VALUE and format().
func (vm *VM) formatValue(v Value, spec string, repr bool) (Value, error) {
	if repr {
		s, err := vm.repr(v)
		if err != nil {
			return Nil, err
		}
		if spec == "" {
			return vm.NewStr(s), nil
		}
		v = vm.NewStr(s)
	}
	s, err := vm.format(v, spec)
	if err != nil {
		return Nil, err
	}
	return vm.NewStr(s), nil
}

var formatName = symbol.Intern("__format__")

// format applies a format specification to v.
func (vm *VM) format(v Value, spec string) (string, error) {
	if vm.userObject(v) {
		if fn, ok := vm.lookupType(vm.typeOf(v), formatName); ok {
			r, err := vm.Call(fn, v, vm.NewStr(spec))
			if err != nil {
				return "", err
			}
			s, ok := vm.strOf(r)
			if !ok {
				return "", vm.typeError("__format__ must return a str, not %s", vm.typeName(r))
			}
			return s, nil
		}
	}
	if spec == "" {
		return vm.str(v)
	}
	fs, err := vm.parseSpec(spec)
	if err != nil {
		return "", err
	}
	return vm.applySpec(v, fs)
}

func (vm *VM) applySpec(v Value, fs fmtSpec) (string, error) {
	if v.IsBool() && fs.typ == 0 {
		s, _ := vm.str(v)
		return pad(s, fs, '<'), nil
	}
	if i, ok := vm.intOf(v); ok {
		switch fs.typ {
		case 'e', 'E', 'f', 'F', 'g', 'G', '%':
			return vm.formatFloatSpec(float64(i), fs)
		case 0, 'd', 'n', 'b', 'o', 'x', 'X', 'c':
			return vm.formatIntSpec(i, fs)
		}
		return "", vm.unknownFormat(fs.typ, v)
	}
	if f, ok := vm.floatOf(v); ok {
		switch fs.typ {
		case 0, 'e', 'E', 'f', 'F', 'g', 'G', '%', 'n':
			return vm.formatFloatSpec(f, fs)
		}
		return "", vm.unknownFormat(fs.typ, v)
	}
	var s string
	if str, ok := vm.strOf(v); ok {
		s = str
	} else {
		if fs.typ != 0 && fs.typ != 's' {
			return "", vm.unknownFormat(fs.typ, v)
		}
		var err error
		if s, err = vm.str(v); err != nil {
			return "", err
		}
	}
	if fs.typ != 0 && fs.typ != 's' {
		return "", vm.unknownFormat(fs.typ, v)
	}
	if fs.sign != 0 {
		return "", vm.valueError("Sign not allowed in string format specifier")
	}
	if fs.precision >= 0 && utf8.RuneCountInString(s) > fs.precision {
		s = string([]rune(s)[:fs.precision])
	}
	return pad(s, fs, '<'), nil
}

func (vm *VM) unknownFormat(c byte, v Value) error {
	return vm.valueError("Unknown format code '%c' for object of type '%s'", c, vm.typeName(v))
}

func (vm *VM) formatIntSpec(i int64, fs fmtSpec) (string, error) {
	if fs.precision >= 0 {
		return "", vm.valueError("Precision not allowed in integer format specifier")
	}
	neg := i < 0
	u := uint64(i) // #nosec G115 -- magnitude computed below
	if neg {
		u = -u
	}
	var digits, prefix string
	switch fs.typ {
	case 'b':
		digits, prefix = strconv.FormatUint(u, 2), "0b"
	case 'o':
		digits, prefix = strconv.FormatUint(u, 8), "0o"
	case 'x':
		digits, prefix = strconv.FormatUint(u, 16), "0x"
	case 'X':
		digits, prefix = strings.ToUpper(strconv.FormatUint(u, 16)), "0X"
	case 'c':
		if i < 0 || i > utf8.MaxRune {
			return "", vm.raisef(vm.types.overflowError, "%%c arg not in range(0x110000)")
		}
		return pad(string(rune(i)), fs, '<'), nil
	default:
		digits = strconv.FormatUint(u, 10)
	}
	if fs.group != 0 {
		every := 3
		if fs.typ == 'b' || fs.typ == 'o' || fs.typ == 'x' || fs.typ == 'X' {
			every = 4
		}
		digits = group(digits, fs.group, every)
	}
	if !fs.alt {
		prefix = ""
	}
	return padNumber(signOf(neg, fs.sign), prefix+digits, fs), nil
}

func (vm *VM) formatFloatSpec(f float64, fs fmtSpec) (string, error) {
	neg := math.Signbit(f) && !math.IsNaN(f)
	a := math.Abs(f)
	prec := fs.precision
	var body string
	switch fs.typ {
	case 0:
		if prec < 0 {
			body = formatFloat(a)
		} else {
			body = strconv.FormatFloat(a, 'g', max(prec, 1), 64)
			if !strings.ContainsAny(body, ".e") && !math.IsInf(a, 0) && !math.IsNaN(a) {
				body += ".0"
			}
		}
	case 'f', 'F':
		if prec < 0 {
			prec = 6
		}
		body = strconv.FormatFloat(a, 'f', prec, 64)
	case 'e', 'E':
		if prec < 0 {
			prec = 6
		}
		body = strconv.FormatFloat(a, 'e', prec, 64)
	case 'g', 'G', 'n':
		if prec < 0 {
			prec = 6
		}
		body = strconv.FormatFloat(a, 'g', max(prec, 1), 64)
		if fs.alt && !strings.Contains(body, ".") {
			body += "."
		}
	case '%':
		if prec < 0 {
			prec = 6
		}
		body = strconv.FormatFloat(a*100, 'f', prec, 64) + "%"
	}
	switch {
	case math.IsNaN(a):
		body = "nan"
	case math.IsInf(a, 0):
		body = "inf"
	}
	if fs.typ == 'F' || fs.typ == 'E' || fs.typ == 'G' {
		body = strings.ToUpper(body)
	}
	if fs.group != 0 {
		intPart, rest := body, ""
		if k := strings.IndexAny(body, ".e%"); k >= 0 {
			intPart, rest = body[:k], body[k:]
		}
		body = group(intPart, fs.group, 3) + rest
	}
	return padNumber(signOf(neg, fs.sign), body, fs), nil
}

func signOf(neg bool, sign byte) string {
	switch {
	case neg:
		return "-"
	case sign == '+':
		return "+"
	case sign == ' ':
		return " "
	}
	return ""
}

// group inserts sep every n digits from the right.
func group(digits string, sep byte, n int) string {
	if len(digits) <= n {
		return digits
	}
	var sb strings.Builder
	head := len(digits) % n
	if head > 0 {
		sb.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += n {
		if sb.Len() > 0 {
			sb.WriteByte(sep)
		}
		sb.WriteString(digits[i : i+n])
	}
	return sb.String()
}

// padNumber pads sign+body, honouring '=' and zero padding.
func padNumber(sign, body string, fs fmtSpec) string {
	if fs.zero && fs.align == 0 {
		fs.fill, fs.align = '0', '='
	}
	if fs.align == '=' {
		n := fs.width - utf8.RuneCountInString(sign) - utf8.RuneCountInString(body)
		if n > 0 {
			return sign + strings.Repeat(string(fs.fill), n) + body
		}
		return sign + body
	}
	return pad(sign+body, fs, '>')
}

// pad aligns s within the width; def is the default alignment.
func pad(s string, fs fmtSpec, def byte) string {
	n := fs.width - utf8.RuneCountInString(s)
	if n <= 0 {
		return s
	}
	align := fs.align
	if align == 0 || align == '=' {
		align = def
	}
	fill := string(fs.fill)
	switch align {
	case '<':
		return s + strings.Repeat(fill, n)
	case '^':
		return strings.Repeat(fill, n/2) + s + strings.Repeat(fill, n-n/2)
	}
	return strings.Repeat(fill, n) + s
}

// percentFormat implements str % args.
func (vm *VM) percentFormat(format string, args Value) (string, error) {
	var list []Value
	var mapping *object.Dict
	if o := vm.obj(args); o != nil && o.Kind == object.KTuple {
		list = o.Elems()
	} else if d, ok := vm.dictOf(args); ok {
		mapping = d
		list = []Value{args}
	} else {
		list = []Value{args}
	}
	next := 0
	take := func() (Value, error) {
		if next >= len(list) {
			return Nil, vm.typeError("not enough arguments for format string")
		}
		next++
		return list[next-1], nil
	}

	var sb strings.Builder
	usedMapping := false
	for i := 0; i < len(format); i++ {
		c := format[i]
		if c != '%' {
			sb.WriteByte(c)
			continue
		}
		i++
		if i >= len(format) {
			return "", vm.valueError("incomplete format")
		}
		if format[i] == '%' {
			sb.WriteByte('%')
			continue
		}
		var arg Value
		if format[i] == '(' {
			end := strings.IndexByte(format[i:], ')')
			if end < 0 {
				return "", vm.valueError("incomplete format key")
			}
			if mapping == nil {
				return "", vm.typeError("format requires a mapping")
			}
			key := vm.NewStr(format[i+1 : i+end])
			v, found, err := mapping.Get(vm, key)
			if err != nil {
				return "", err
			}
			if !found {
				return "", vm.raise(vm.newException(vm.types.keyError, key))
			}
			arg = v
			usedMapping = true
			i += end + 1
		}
		fs := fmtSpec{fill: ' ', precision: -1, align: '>'}
	flags:
		for ; i < len(format); i++ {
			switch format[i] {
			case '-':
				fs.align = '<'
			case '+':
				fs.sign = '+'
			case ' ':
				if fs.sign == 0 {
					fs.sign = ' '
				}
			case '#':
				fs.alt = true
			case '0':
				fs.zero = true
			default:
				break flags
			}
		}
		if i < len(format) && format[i] == '*' {
			w, err := take()
			if err != nil {
				return "", err
			}
			n, ok := vm.intOf(w)
			if !ok {
				return "", vm.typeError("* wants int")
			}
			fs.width = int(n)
			i++
		}
		for ; i < len(format) && format[i] >= '0' && format[i] <= '9'; i++ {
			fs.width = fs.width*10 + int(format[i]-'0')
		}
		if i < len(format) && format[i] == '.' {
			i++
			fs.precision = 0
			for ; i < len(format) && format[i] >= '0' && format[i] <= '9'; i++ {
				fs.precision = fs.precision*10 + int(format[i]-'0')
			}
		}
		if i >= len(format) {
			return "", vm.valueError("incomplete format")
		}
		if fs.align == '<' {
			fs.zero = false
		} else if fs.zero {
			fs.align = 0
		}
		conv := format[i]
		if arg == Nil {
			var err error
			if arg, err = take(); err != nil {
				return "", err
			}
		}
		s, err := vm.percentOne(conv, arg, fs)
		if err != nil {
			return "", err
		}
		sb.WriteString(s)
	}
	if next < len(list) && !usedMapping && mapping == nil {
		return "", vm.typeError("not all arguments converted during string formatting")
	}
	return sb.String(), nil
}

func (vm *VM) percentOne(conv byte, arg Value, fs fmtSpec) (string, error) {
	switch conv {
	case 's', 'r':
		var s string
		var err error
		if conv == 'r' {
			s, err = vm.repr(arg)
		} else {
			s, err = vm.str(arg)
		}
		if err != nil {
			return "", err
		}
		if fs.precision >= 0 && utf8.RuneCountInString(s) > fs.precision {
			s = string([]rune(s)[:fs.precision])
		}
		fs.zero = false
		return pad(s, fs, '>'), nil
	case 'd', 'i', 'u':
		i, ok := vm.intOf(arg)
		if !ok {
			f, isF := vm.floatOf(arg)
			if !isF {
				return "", vm.typeError("%%%c format: a number is required, not %s", conv, vm.typeName(arg))
			}
			i = int64(f)
		}
		fs.precision = -1
		return vm.formatIntSpec(i, fs)
	case 'x', 'X', 'o':
		i, ok := vm.intOf(arg)
		if !ok {
			return "", vm.typeError("%%%c format: an integer is required, not %s", conv, vm.typeName(arg))
		}
		fs.typ, fs.precision = conv, -1
		return vm.formatIntSpec(i, fs)
	case 'c':
		if s, ok := vm.strOf(arg); ok && utf8.RuneCountInString(s) == 1 {
			return pad(s, fs, '>'), nil
		}
		i, ok := vm.intOf(arg)
		if !ok {
			return "", vm.typeError("%%c requires int or char")
		}
		fs.typ, fs.precision = 'c', -1
		return vm.formatIntSpec(i, fs)
	case 'f', 'F', 'e', 'E', 'g', 'G':
		f, _, ok := vm.numOf(arg)
		if !ok {
			return "", vm.typeError("must be real number, not %s", vm.typeName(arg))
		}
		fs.typ = conv
		return vm.formatFloatSpec(f, fs)
	}
	return "", vm.valueError("unsupported format character '%c'", conv)
}

// strFormat implements str.format.
func (vm *VM) strFormat(format string, args []Value, kw *object.Dict) (string, error) {
	var sb strings.Builder
	auto := 0
	for i := 0; i < len(format); i++ {
		c := format[i]
		switch {
		case c == '{' && i+1 < len(format) && format[i+1] == '{':
			sb.WriteByte('{')
			i++
			continue
		case c == '}' && i+1 < len(format) && format[i+1] == '}':
			sb.WriteByte('}')
			i++
			continue
		case c == '}':
			return "", vm.valueError("Single '}' encountered in format string")
		case c != '{':
			sb.WriteByte(c)
			continue
		}
		end := i + 1
		depth := 1
		for ; end < len(format); end++ {
			if format[end] == '{' {
				depth++
			} else if format[end] == '}' {
				depth--
				if depth == 0 {
					break
				}
			}
		}
		if end >= len(format) {
			return "", vm.valueError("Single '{' encountered in format string")
		}
		field := format[i+1 : end]
		i = end

		spec, conv := "", byte(0)
		if k := strings.IndexByte(field, ':'); k >= 0 {
			field, spec = field[:k], field[k+1:]
		}
		if k := strings.IndexByte(field, '!'); k >= 0 {
			if k+2 != len(field) {
				return "", vm.valueError("expected ':' after conversion specifier")
			}
			conv = field[k+1]
			field = field[:k]
		}
		v, err := vm.formatField(field, args, kw, &auto)
		if err != nil {
			return "", err
		}
		if strings.IndexByte(spec, '{') >= 0 {
			if spec, err = vm.strFormat(spec, args, kw); err != nil {
				return "", err
			}
		}
		switch conv {
		case 0:
		case 'r', 's':
			var s string
			if conv == 'r' {
				s, err = vm.repr(v)
			} else {
				s, err = vm.str(v)
			}
			if err != nil {
				return "", err
			}
			v = vm.NewStr(s)
		default:
			return "", vm.valueError("Unknown conversion specifier %c", conv)
		}
		s, err := vm.format(v, spec)
		if err != nil {
			return "", err
		}
		sb.WriteString(s)
	}
	return sb.String(), nil
}

// formatField resolves "name.attr[key]" against the format arguments.
func (vm *VM) formatField(field string, args []Value, kw *object.Dict, auto *int) (Value, error) {
	head := field
	if k := strings.IndexAny(field, ".["); k >= 0 {
		head = field[:k]
	}
	rest := field[len(head):]
	var v Value
	switch n, err := strconv.Atoi(head); {
	case head == "":
		if *auto >= len(args) {
			return Nil, vm.raisef(vm.types.indexError, "Replacement index %d out of range for positional args tuple", *auto)
		}
		v = args[*auto]
		*auto++
	case err == nil:
		if n >= len(args) {
			return Nil, vm.raisef(vm.types.indexError, "Replacement index %d out of range for positional args tuple", n)
		}
		v = args[n]
	default:
		key := vm.NewStr(head)
		var found bool
		if kw != nil {
			var err error
			if v, found, err = kw.Get(vm, key); err != nil {
				return Nil, err
			}
		}
		if !found {
			return Nil, vm.raise(vm.newException(vm.types.keyError, key))
		}
	}
	for rest != "" {
		if rest[0] == '.' {
			end := strings.IndexAny(rest[1:], ".[")
			if end < 0 {
				end = len(rest) - 1
			}
			x, err := vm.getattr(v, symbol.Intern(rest[1:end+1]))
			if err != nil {
				return Nil, err
			}
			v, rest = x, rest[end+1:]
			continue
		}
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			return Nil, vm.valueError("Missing ']' in format string")
		}
		k := rest[1:end]
		var key Value
		if n, err := strconv.Atoi(k); err == nil {
			key = vm.NewInt(int64(n))
		} else {
			key = vm.NewStr(k)
		}
		x, err := vm.getitem(v, key)
		if err != nil {
			return Nil, err
		}
		v, rest = x, rest[end+1:]
	}
	return v, nil
}
