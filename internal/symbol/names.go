package symbol

// Well-known names used by the compiler and the VM.
var (
	Init      = Intern("__init__")
	New       = Intern("__new__")
	Call      = Intern("__call__")
	Repr      = Intern("__repr__")
	Str       = Intern("__str__")
	Hash      = Intern("__hash__")
	Eq        = Intern("__eq__")
	Ne        = Intern("__ne__")
	Lt        = Intern("__lt__")
	Le        = Intern("__le__")
	Gt        = Intern("__gt__")
	Ge        = Intern("__ge__")
	LenMethod = Intern("__len__")
	Bool      = Intern("__bool__")
	Iter      = Intern("__iter__")
	Next      = Intern("__next__")
	GetItem   = Intern("__getitem__")
	SetItem   = Intern("__setitem__")
	DelItem   = Intern("__delitem__")
	Contains  = Intern("__contains__")
	GetAttr   = Intern("__getattr__")
	Enter     = Intern("__enter__")
	Exit      = Intern("__exit__")
	Neg       = Intern("__neg__")
	Pos       = Intern("__pos__")
	Invert    = Intern("__invert__")
	NameAttr  = Intern("__name__")
	Module    = Intern("__module__")
	Class     = Intern("__class__")
	Dict      = Intern("__dict__")
	Doc       = Intern("__doc__")
	Builtins  = Intern("__builtins__")
	Path      = Intern("__path__")
	All       = Intern("__all__")
	Self      = Intern("self")
	Args      = Intern("args")
	Send      = Intern("send")
	Main      = Intern("__main__")
	Lambda    = Intern("<lambda>")
	ListComp  = Intern("<listcomp>")
	DictComp  = Intern("<dictcomp>")
	SetComp   = Intern("<setcomp>")
	GenExpr   = Intern("<genexpr>")
	ModuleTop = Intern("<module>")
)
