//go:build !unix

package vm

import (
	"os"
	"runtime"
)

func hostUname() uname {
	host, _ := os.Hostname()
	return uname{sysname: runtime.GOOS, nodename: host, machine: runtime.GOARCH}
}
