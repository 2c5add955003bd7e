// Package mac holds the 6-byte hardware address type used by the flash store
// and the command protocol.
package mac

import (
	"errors"
	"fmt"
	"net"
)

// Len is the number of bytes in an address.
const Len = 6

// TextLen is the length of the colon-hex text form, e.g. "11:22:33:44:aa:bb".
const TextLen = 17

// ErrInvalid is returned when a string is not a colon-hex MAC address.
var ErrInvalid = errors.New("invalid mac address")

// Addr is a hardware address as stored in flash.
type Addr [Len]byte

// Valid reports whether s is exactly six two-digit hex groups separated by
// colons. Case is ignored.
func Valid(s string) bool {
	if len(s) != TextLen {
		return false
	}
	for i := 0; i < TextLen; i++ {
		c := s[i]
		if i%3 == 2 {
			if c != ':' {
				return false
			}
			continue
		}
		if !isHex(c) {
			return false
		}
	}
	return true
}

// Parse converts the colon-hex text form into an Addr.
func Parse(s string) (Addr, error) {
	var a Addr
	if !Valid(s) {
		return a, fmt.Errorf("%w: %q", ErrInvalid, s)
	}
	for i := 0; i < Len; i++ {
		a[i] = unhex(s[i*3])<<4 | unhex(s[i*3+1])
	}
	return a, nil
}

// Next returns the address plus one, treating it as a big-endian 48-bit
// integer. ff:ff:ff:ff:ff:ff wraps to 00:00:00:00:00:00.
func (a Addr) Next() Addr {
	for i := Len - 1; i >= 0; i-- {
		a[i]++
		if a[i] != 0 {
			break
		}
	}
	return a
}

// String returns the lowercase colon-hex form.
func (a Addr) String() string {
	return a.HardwareAddr().String()
}

// HardwareAddr returns a copy of the address as a net.HardwareAddr.
func (a Addr) HardwareAddr() net.HardwareAddr {
	hw := make(net.HardwareAddr, Len)
	copy(hw, a[:])
	return hw
}

func isHex(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}

func unhex(c byte) byte {
	switch {
	case '0' <= c && c <= '9':
		return c - '0'
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}
