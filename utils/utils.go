package utils

import (
	"errors"
	"fmt"
	"os"
	"unsafe"

	"github.com/jwaldrip/odin/cli"
)

// Exit codes per the command surface: 0 success, 2 invalid arguments, 3
// I/O or parse failure, 4 internal invariant violation.
const (
	ExitInvalidArgs = 2
	ExitIOError     = 3
	ExitInvariant   = 4
)

// Fatalf prints the message to stderr and exits with code, the same role
// log.Fatalf plays elsewhere except it reports the specific exit code the
// command surface contract requires instead of always exiting 1.
func Fatalf(code int, format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format, args...)
	os.Exit(code)
}

// ArgsOpt carries the flags defined on the root command, common to both
// the build and quasimap subcommands.
type ArgsOpt struct {
	Prefix string
	NumCPU int
}

// CheckGlobalArgs reads and validates the root command's flags.
func CheckGlobalArgs(c cli.Command) (opt ArgsOpt, succ bool) {
	opt.Prefix = c.Flag("p").String()
	if opt.Prefix == "" {
		Fatalf(ExitInvalidArgs, "[CheckGlobalArgs] args 'p' not set\n")
	}

	var ok bool
	opt.NumCPU, ok = c.Flag("t").Get().(int)
	if !ok {
		Fatalf(ExitInvalidArgs, "[CheckGlobalArgs] args 't': %v set error\n", c.Flag("t").String())
	}
	return opt, true
}

func AbsInt(a int) int {
	if a < 0 {
		return -a
	} else {
		return a
	}
}

func MaxInt(a, b int) int {
	if a > b {
		return a
	} else {
		return b
	}
}

func MinInt(a, b int) int {
	if a > b {
		return b
	} else {
		return a
	}
}

func ByteArrInt(id []byte) (d int, err error) {
	for _, c := range id {
		if c < '0' || c > '9' {
			err = errors.New("can't convert to digit...")
			return d, err
		}
		d = d*10 + int(c-'0')
	}
	return d, nil
}

func Bytes2String(b []byte) string {
	return *(*string)(unsafe.Pointer(&b))
}

func BytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	return Bytes2String(a) == Bytes2String(b)
}
