package diag

import (
	"fmt"
)

type Code uint16

const (
	UnknownCode Code = 0

	// Лексические
	LexInfo               Code = 1000
	LexUnknownChar        Code = 1001
	LexUnterminatedString Code = 1002
	LexBadNumber          Code = 1003
	LexIntOverflow        Code = 1004
	LexBadEscape          Code = 1005
	LexBadIdentifier      Code = 1006
	LexBadFString         Code = 1007
	LexStrayBackslash     Code = 1008

	// Синтаксические
	SynInfo              Code = 2000
	SynUnexpectedToken   Code = 2001
	SynUnclosedDelimiter Code = 2002
	SynInvalidTarget     Code = 2003
	SynExpectIdentifier  Code = 2004
	SynExpectExpression  Code = 2005
	SynOutsideLoop       Code = 2006
	SynOutsideFunction   Code = 2007
	SynNonLiteralDefault Code = 2008
	SynDuplicateArgument Code = 2009
	SynBadStarred        Code = 2010
	SynUnknownLabel      Code = 2011
	SynDuplicateLabel    Code = 2012
	SynBadJSON           Code = 2013
	SynTooManyLocals     Code = 2014
	SynTooManyConstants  Code = 2015
	SynJumpTooFar        Code = 2016
	SynBadScope          Code = 2017
	SynBadEvalInput      Code = 2018

	// Отступы
	IndInfo         Code = 3000
	IndUnexpected   Code = 3001
	IndExpected     Code = 3002
	IndInconsistent Code = 3003
	IndMixedTabs    Code = 3004

	// Ошибки выполнения, попадающие в отчёты (check/repl)
	RunInfo     Code = 4000
	RunUncaught Code = 4001
	RunFatal    Code = 4002

	// Ввод-вывод
	IOInfo          Code = 5000
	IOLoadFileError Code = 5001
	IOCacheError    Code = 5002
)

var codeDescription = map[Code]string{
	UnknownCode:           "Unknown error",
	LexInfo:               "Lexical information",
	LexUnknownChar:        "Unknown character",
	LexUnterminatedString: "Unterminated string literal",
	LexBadNumber:          "Malformed numeric literal",
	LexIntOverflow:        "Integer literal out of range",
	LexBadEscape:          "Invalid escape sequence",
	LexBadIdentifier:      "Invalid character in identifier",
	LexBadFString:         "Malformed f-string",
	LexStrayBackslash:     "Unexpected character after line continuation",
	SynInfo:               "Syntax information",
	SynUnexpectedToken:    "Unexpected token",
	SynUnclosedDelimiter:  "Unclosed delimiter",
	SynInvalidTarget:      "Invalid assignment target",
	SynExpectIdentifier:   "Expected identifier",
	SynExpectExpression:   "Expected expression",
	SynOutsideLoop:        "Statement outside loop",
	SynOutsideFunction:    "Statement outside function",
	SynNonLiteralDefault:  "Default argument must be a literal",
	SynDuplicateArgument:  "Duplicate argument name",
	SynBadStarred:         "Invalid starred expression",
	SynUnknownLabel:       "Unknown label",
	SynDuplicateLabel:     "Duplicate label",
	SynBadJSON:            "Invalid JSON literal",
	SynTooManyLocals:      "Too many local variables",
	SynTooManyConstants:   "Too many constants",
	SynJumpTooFar:         "Jump target out of range",
	SynBadScope:           "Invalid scope declaration",
	SynBadEvalInput:       "Invalid input for evaluation mode",
	IndInfo:               "Indentation information",
	IndUnexpected:         "Unexpected indent",
	IndExpected:           "Expected an indented block",
	IndInconsistent:       "Unindent does not match any outer indentation level",
	IndMixedTabs:          "Inconsistent use of tabs",
	RunInfo:               "Runtime information",
	RunUncaught:           "Uncaught exception",
	RunFatal:              "Fatal engine error",
	IOInfo:                "I/O information",
	IOLoadFileError:       "Failed to read source file",
	IOCacheError:          "Check cache unavailable",
}

// ID returns the stable short identifier, e.g. "SYN2001".
func (c Code) ID() string {
	switch ic := int(c); {
	case ic >= 1000 && ic < 2000:
		return fmt.Sprintf("LEX%04d", ic)
	case ic >= 2000 && ic < 3000:
		return fmt.Sprintf("SYN%04d", ic)
	case ic >= 3000 && ic < 4000:
		return fmt.Sprintf("IND%04d", ic)
	case ic >= 4000 && ic < 5000:
		return fmt.Sprintf("RUN%04d", ic)
	case ic >= 5000 && ic < 6000:
		return fmt.Sprintf("IO%04d", ic)
	}
	return "E0000"
}

func (c Code) Title() string {
	desc, ok := codeDescription[c]
	if !ok {
		return codeDescription[UnknownCode]
	}
	return desc
}

// IsIndentation reports whether the code belongs to the indentation group;
// the engine raises those as IndentationError rather than SyntaxError.
func (c Code) IsIndentation() bool {
	return c >= IndInfo && c < RunInfo
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}
