package vm_test

import (
	"testing"

	"krait/internal/vm"
)

type evalCase struct {
	expr string
	want string
}

func checkEval(t *testing.T, setup string, cases []evalCase) {
	t.Helper()
	h := newHarness(t, vm.Config{})
	if setup != "" {
		h.mustExec(setup)
	}
	for _, c := range cases {
		if got := h.eval(c.expr); got != c.want {
			t.Errorf("%s = %s, want %s", c.expr, got, c.want)
		}
	}
}

func TestBuiltinFunctions(t *testing.T) {
	checkEval(t, "", []evalCase{
		{"len([1, 2, 3])", "3"},
		{"abs(-4)", "4"},
		{"min(3, 1, 2)", "1"},
		{"max([3, 1, 2])", "3"},
		{"max([], default=0)", "0"},
		{"min(['bb', 'a', 'ccc'], key=len)", "'a'"},
		{"sum([1, 2, 3], 10)", "16"},
		{"sorted([3, 1, 2], reverse=True)", "[3, 2, 1]"},
		{"sorted(['bb', 'a', 'ccc'], key=len)", "['a', 'bb', 'ccc']"},
		{"list(reversed([1, 2, 3]))", "[3, 2, 1]"},
		{"list(enumerate('ab', 1))", "[(1, 'a'), (2, 'b')]"},
		{"list(zip([1, 2, 3], 'ab'))", "[(1, 'a'), (2, 'b')]"},
		{"list(map(lambda x: x * 2, [1, 2]))", "[2, 4]"},
		{"list(filter(None, [0, 1, '', 'x']))", "[1, 'x']"},
		{"chr(65) + str(ord('a'))", "'A97'"},
		{"hex(255)", "'0xff'"},
		{"bin(5)", "'0b101'"},
		{"oct(8)", "'0o10'"},
		{"round(2.675, 2)", "2.67"},
		{"round(7)", "7"},
		{"divmod(7, -2)", "(-4, -1)"},
		{"pow(2, 10, 1000)", "24"},
		{"any([0, 0, 1])", "True"},
		{"all([])", "True"},
		{"callable(len)", "True"},
		{"int('ff', 16)", "255"},
		{"int('1_000')", "1000"},
		{"float('2.5')", "2.5"},
		{"bool([])", "False"},
		{"tuple([1])", "(1,)"},
		{"dict(a=1)", "{'a': 1}"},
		{"list(range(10, 0, -3))", "[10, 7, 4, 1]"},
		{"type(1).__name__", "'int'"},
		{"isinstance(True, int)", "True"},
		{"hash(5) == hash(5)", "True"},
		{"format(3.14159, '.2f')", "'3.14'"},
		{"getattr(1, 'missing', 'dflt')", "'dflt'"},
	})
}

func TestBuiltinErrors(t *testing.T) {
	h := newHarness(t, vm.Config{})
	cases := []struct {
		src  string
		kind string
	}{
		{"len(5)", "TypeError"},
		{"int('x')", "ValueError"},
		{"[1][3]", "IndexError"},
		{"{}['k']", "KeyError"},
		{"undefined_name", "NameError"},
		{"(1).nope", "AttributeError"},
		{"1 + 'a'", "TypeError"},
		{"range(1, 2, 0)", "ValueError"},
		{"chr(-1)", "ValueError"},
		{"next(iter([]))", "StopIteration"},
	}
	for _, c := range cases {
		err := h.exec(c.src + "\n")
		if !vm.IsExceptionType(err, c.kind) {
			t.Errorf("%s: want %s, got %v", c.src, c.kind, err)
		}
	}
}

func TestStringMethods(t *testing.T) {
	checkEval(t, "", []evalCase{
		{"'Hello'.upper()", "'HELLO'"},
		{"'  pad  '.strip()", "'pad'"},
		{"'xxhixx'.strip('x')", "'hi'"},
		{"'a,b,,c'.split(',')", "['a', 'b', '', 'c']"},
		{"' a  b '.split()", "['a', 'b']"},
		{"'a b c'.rsplit(' ', 1)", "['a b', 'c']"},
		{"'-'.join(['x', 'y', 'z'])", "'x-y-z'"},
		{"'aaa'.replace('a', 'b', 2)", "'bba'"},
		{"'file.kr'.endswith(('.py', '.kr'))", "True"},
		{"'banana'.find('na')", "2"},
		{"'banana'.rfind('na')", "4"},
		{"'banana'.count('a')", "3"},
		{"'hello world'.title()", "'Hello World'"},
		{"'42'.isdigit()", "True"},
		{"'4x'.isalpha()", "False"},
		{"'k=v'.partition('=')", "('k', '=', 'v')"},
		{"'7'.zfill(3)", "'007'"},
		{"'ab'.center(6, '*')", "'**ab**'"},
		{"'{} and {name}'.format(1, name='two')", "'1 and two'"},
		{"'{0:>5}|{1:<4}|'.format('r', 'l')", "'    r|l   |'"},
		{"'%s=%05.1f' % ('pi', 3.14159)", "'pi=003.1'"},
		{"'a\\nb'.splitlines()", "['a', 'b']"},
		{"'héllo'[1]", "'é'"},
		{"'abcdef'[::2]", "'ace'"},
		{"'abc'[-1]", "'c'"},
	})
}

func TestFStrings(t *testing.T) {
	checkEval(t, "name = 'kr'\nn = 3.5\n", []evalCase{
		{"f'{name}!'", "'kr!'"},
		{"f'{name!r}'", "\"'kr'\""},
		{"f'{n:.2f}'", "'3.50'"},
		{"f'{n * 2}'", "'7.0'"},
		{"f'{{x}}'", "'{x}'"},
	})
}

func TestListAndTupleMethods(t *testing.T) {
	checkEval(t, `
xs = [3, 1, 2]
xs.append(4)
xs.extend((5, 6))
xs.insert(0, 0)
popped = xs.pop()
xs.remove(1)
ys = xs.copy()
ys.sort(reverse=True)
zs = [1, 2, 3]
zs.reverse()
ws = [1]
ws.clear()
`, []evalCase{
		{"xs", "[0, 3, 2, 4, 5]"},
		{"popped", "6"},
		{"ys", "[5, 4, 3, 2, 0]"},
		{"zs", "[3, 2, 1]"},
		{"ws", "[]"},
		{"xs.index(4)", "3"},
		{"[1, 1, 2].count(1)", "2"},
		{"(1, 2, 1).count(1)", "2"},
		{"(5, 6).index(6)", "1"},
		{"[1, 2] + [3]", "[1, 2, 3]"},
		{"[0] * 3", "[0, 0, 0]"},
		{"3 in [1, 2, 3]", "True"},
	})
}

func TestDictMethods(t *testing.T) {
	checkEval(t, `
d = {'a': 1, 'b': 2}
d['c'] = 3
v = d.pop('a')
d.update({'d': 4}, e=5)
d.setdefault('f', 6)
d.setdefault('b', 99)
del d['c']
`, []evalCase{
		{"d", "{'b': 2, 'd': 4, 'e': 5, 'f': 6}"},
		{"v", "1"},
		{"d.get('zz')", "None"},
		{"d.get('zz', 0)", "0"},
		{"d.keys()", "['b', 'd', 'e', 'f']"},
		{"d.values()", "[2, 4, 5, 6]"},
		{"list(d.items())[0]", "('b', 2)"},
		{"d.pop('nope', 'x')", "'x'"},
		{"'b' in d", "True"},
		{"len(d.copy())", "4"},
		{"{1: 'a'}.popitem()", "(1, 'a')"},
	})
}

func TestDictOrderAfterDelete(t *testing.T) {
	expectOutput(t, `
d = {}
for i in range(6):
    d[i] = i * i
for i in range(0, 6, 2):
    del d[i]
d[0] = 'back'
print(d)
`, "{1: 1, 3: 9, 5: 25, 0: 'back'}\n")
}

func TestSelfReferentialRepr(t *testing.T) {
	expectOutput(t, "xs = [1]\nxs.append(xs)\nprint(xs)\n", "[1, [...]]\n")
}

func TestExceptionObjects(t *testing.T) {
	checkEval(t, `
try:
    raise KeyError('k')
except LookupError as e:
    err = e
`, []evalCase{
		{"type(err).__name__", "'KeyError'"},
		{"err.args", "('k',)"},
		{"repr(ValueError('bad'))", "\"ValueError('bad')\""},
		{"str(ValueError('bad'))", "'bad'"},
		{"issubclass(ZeroDivisionError, ArithmeticError)", "True"},
	})
}

func TestEvalAndExec(t *testing.T) {
	expectOutput(t, `
print(eval("1 + 2"))
exec("y = 5")
print(y)

def f(a):
    return eval("a * 2")
print(f(21))

g = {'x': 10}
exec("z = x + 1", g)
print(g['z'])

def g2():
    q = 1
    exec("q = 2")
    return q
print(g2())
`, "3\n5\n42\n11\n2\n")
}

func TestGlobalsAndVars(t *testing.T) {
	checkEval(t, "alpha = 1\n", []evalCase{
		{"globals()['alpha']", "1"},
		{"'alpha' in vars()", "True"},
	})
}
