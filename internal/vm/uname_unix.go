//go:build unix

package vm

import (
	"runtime"

	"golang.org/x/sys/unix"
)

func hostUname() uname {
	var u unix.Utsname
	if err := unix.Uname(&u); err != nil {
		return uname{sysname: runtime.GOOS, machine: runtime.GOARCH}
	}
	return uname{
		sysname:  unix.ByteSliceToString(u.Sysname[:]),
		nodename: unix.ByteSliceToString(u.Nodename[:]),
		release:  unix.ByteSliceToString(u.Release[:]),
		version:  unix.ByteSliceToString(u.Version[:]),
		machine:  unix.ByteSliceToString(u.Machine[:]),
	}
}
