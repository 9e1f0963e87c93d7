package object

import (
	"unicode/utf8"
)

func IsASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// StrLen returns the length of a string object in code points.
func StrLen(o *Object) int {
	if o.ASCII() {
		return len(o.Str)
	}
	return utf8.RuneCountInString(o.Str)
}

// Substr returns code points [start, end) of a string object; the bounds
// must already be clamped.
func Substr(o *Object, start, end int) string {
	if start >= end {
		return ""
	}
	if o.ASCII() {
		return o.Str[start:end]
	}
	b := byteOffset(o.Str, start)
	e := b + byteOffset(o.Str[b:], end-start)
	return o.Str[b:e]
}

// RuneIndex returns the code-point index of the byte offset off.
func RuneIndex(o *Object, off int) int {
	if o.ASCII() {
		return off
	}
	return utf8.RuneCountInString(o.Str[:off])
}

// ByteOffset returns the byte offset of code point i of o.
func ByteOffset(o *Object, i int) int {
	if o.ASCII() {
		return i
	}
	return byteOffset(o.Str, i)
}

func byteOffset(s string, n int) int {
	off := 0
	for ; n > 0 && off < len(s); n-- {
		_, w := utf8.DecodeRuneInString(s[off:])
		off += w
	}
	return off
}
