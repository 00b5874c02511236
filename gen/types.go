package gen

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Atom is a name of a process, message or handler.
type Atom string

func (a Atom) String() string {
	return string(a)
}

// Address locates the node a process belongs to.
type Address struct {
	Host string
	Port uint16
}

func (a Address) String() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(int(a.Port)))
}

func (a Address) IsZero() bool {
	return a.Host == "" && a.Port == 0
}

// PID identifies a process. It is a comparable value and stays valid after
// the process is gone: sending to a dead PID is dropped, dispatching to it
// fails with ErrProcessUnknown.
type PID struct {
	Name Atom
	// ID incarnation of the process. The node assigns a unique ID on spawn, so
	// a PID of the terminated process never resolves to another process spawned
	// with the same name. Zero matches any incarnation.
	ID   uint64
	Node Address
}

// String returns the external form name@host:port
func (p PID) String() string {
	return fmt.Sprintf("%s@%s", p.Name, p.Node)
}

func (p PID) IsZero() bool {
	return p.Name == "" && p.ID == 0 && p.Node.IsZero()
}

// ParsePID parses the external form name@host:port. The returned PID matches
// any incarnation of the named process.
func ParsePID(s string) (PID, error) {
	var pid PID
	i := strings.LastIndexByte(s, '@')
	if i < 1 {
		return pid, fmt.Errorf("%w: %q is not a PID", ErrMalformed, s)
	}
	host, port, err := net.SplitHostPort(s[i+1:])
	if err != nil {
		return pid, fmt.Errorf("%w: %s", ErrMalformed, err)
	}
	p, err := strconv.ParseUint(port, 10, 16)
	if err != nil {
		return pid, fmt.Errorf("%w: incorrect port %q", ErrMalformed, port)
	}
	pid.Name = Atom(s[:i])
	pid.Node = Address{Host: host, Port: uint16(p)}
	return pid, nil
}

// Version of the node. The major part of Release is used for the compatibility
// check of the incoming remote messages.
type Version struct {
	Name    string
	Release string
	License string
}

func (v Version) String() string {
	return fmt.Sprintf("%s:%s", v.Name, v.Release)
}

const (
	LicenseMIT string = "MIT"
)
