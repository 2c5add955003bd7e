// Package protocol implements the line grammar of the factory test port:
// space-separated tokens terminated by CRLF, and the fixed reply strings.
package protocol

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/smazurov/factoryd/internal/mac"
)

const (
	// MaxTokens is the maximum number of tokens in one command line.
	MaxTokens = 10
	// MaxTokenLen is the maximum length of a single token in bytes.
	MaxTokenLen = 255
	// MaxLine bounds a framed line, terminator included.
	MaxLine = 1024
)

// Replies sent back to the client.
const (
	ReplyOK   = "ok\r\n"
	ReplyFail = "fail\r\n"
)

// Command names understood by the test port.
const (
	CmdSetWiFiMAC = "set_wifi_mac"
	CmdTestPass   = "test_pass"
	CmdSetEthxMAC = "set_ethx_mac"
	CmdGetMAC     = "get_mac"
	CmdReboot     = "reboot"
	CmdLEDCtrl    = "led_ctrl"
)

// Commands lists every command name in the order of the command table.
var Commands = []string{CmdSetWiFiMAC, CmdTestPass, CmdSetEthxMAC, CmdGetMAC, CmdReboot, CmdLEDCtrl}

// IsCommand reports whether name is a known command.
func IsCommand(name string) bool {
	for _, c := range Commands {
		if c == name {
			return true
		}
	}
	return false
}

var (
	ErrNoTerminator  = errors.New("command line has no CRLF terminator")
	ErrEmpty         = errors.New("command line has no tokens")
	ErrTooManyTokens = fmt.Errorf("command line has more than %d tokens", MaxTokens)
	ErrTokenTooLong  = fmt.Errorf("token longer than %d bytes", MaxTokenLen)
)

var crlf = []byte("\r\n")

// Command is one decoded command line.
type Command struct {
	Tokens []string
}

// Name returns the first token.
func (c Command) Name() string {
	if len(c.Tokens) == 0 {
		return ""
	}
	return c.Tokens[0]
}

// Args returns the tokens after the name.
func (c Command) Args() []string {
	if len(c.Tokens) < 2 {
		return nil
	}
	return c.Tokens[1:]
}

// String joins the tokens back with single spaces.
func (c Command) String() string {
	return strings.Join(c.Tokens, " ")
}

// Decode splits data up to its first CRLF into space-separated tokens.
// Runs of spaces never produce empty tokens, a lone '\r' is token data, and
// anything after the terminator is ignored.
func Decode(data []byte) (Command, error) {
	var (
		tokens     []string
		cur        []byte
		terminated bool
	)

	push := func() error {
		if len(cur) == 0 {
			return nil
		}
		if len(tokens) == MaxTokens {
			return ErrTooManyTokens
		}
		tokens = append(tokens, string(cur))
		cur = cur[:0]
		return nil
	}

	for i := 0; i < len(data); i++ {
		b := data[i]
		if b == ' ' {
			if err := push(); err != nil {
				return Command{}, err
			}
			continue
		}
		if b == '\r' && i+1 < len(data) && data[i+1] == '\n' {
			if err := push(); err != nil {
				return Command{}, err
			}
			terminated = true
			break
		}
		if len(cur) == MaxTokenLen {
			return Command{}, ErrTokenTooLong
		}
		cur = append(cur, b)
	}

	if !terminated {
		return Command{}, ErrNoTerminator
	}
	if len(tokens) == 0 {
		return Command{}, ErrEmpty
	}
	return Command{Tokens: tokens}, nil
}

// NewScanner frames r into CRLF-terminated lines, terminator included.
// Lines longer than MaxLine are skipped whole, and a trailing line without a
// terminator is dropped at EOF.
func NewScanner(r io.Reader) *bufio.Scanner {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, MaxLine), 2*MaxLine)
	var ls lineSplitter
	s.Split(ls.split)
	return s
}

// lineSplitter remembers whether it is inside an overlong line so that the
// tail of that line is not mistaken for a command.
type lineSplitter struct {
	discarding bool
}

// Dropped lines are skipped within the same call, so a complete line already
// buffered behind them is returned without waiting for another read.
func (l *lineSplitter) split(data []byte, atEOF bool) (advance int, token []byte, err error) {
	skipped := 0
	for {
		rest := data[skipped:]
		i := bytes.Index(rest, crlf)
		if i < 0 {
			break
		}
		n := i + len(crlf)
		if l.discarding || n > MaxLine {
			l.discarding = false
			skipped += n
			continue
		}
		return skipped + n, rest[:n], nil
	}

	rest := data[skipped:]
	if atEOF {
		return len(data), nil, nil
	}
	if len(rest) >= MaxLine || (l.discarding && len(rest) > 0) {
		l.discarding = true
		// A trailing '\r' may pair with a '\n' from the next read.
		if rest[len(rest)-1] == '\r' {
			return len(data) - 1, nil, nil
		}
		return len(data), nil, nil
	}
	return skipped, nil, nil
}

// FormatMACs renders the get_mac reply: three lowercase addresses joined by
// commas, CRLF-terminated.
func FormatMACs(wifi, eth0, eth1 mac.Addr) string {
	return wifi.String() + "," + eth0.String() + "," + eth1.String() + "\r\n"
}
