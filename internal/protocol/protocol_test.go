package protocol

import (
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/smazurov/factoryd/internal/mac"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    []string
		wantErr error
	}{
		{
			name: "set_wifi_mac",
			in:   "set_wifi_mac 11:22:33:44:AA:BB\r\n",
			want: []string{"set_wifi_mac", "11:22:33:44:AA:BB"},
		},
		{
			name: "single token",
			in:   "get_mac\r\n",
			want: []string{"get_mac"},
		},
		{
			name: "runs of spaces",
			in:   "  led_ctrl    1  \r\n",
			want: []string{"led_ctrl", "1"},
		},
		{
			name: "trailing data ignored",
			in:   "reboot\r\nget_mac\r\n",
			want: []string{"reboot"},
		},
		{
			name: "lone carriage return is data",
			in:   "a\rb c\r\n",
			want: []string{"a\rb", "c"},
		},
		{
			name:    "no terminator",
			in:      "get_mac",
			wantErr: ErrNoTerminator,
		},
		{
			name:    "bare newline",
			in:      "get_mac\n",
			wantErr: ErrNoTerminator,
		},
		{
			name:    "empty line",
			in:      "\r\n",
			wantErr: ErrEmpty,
		},
		{
			name:    "only spaces",
			in:      "    \r\n",
			wantErr: ErrEmpty,
		},
		{
			name:    "too many tokens",
			in:      "a b c d e f g h i j k\r\n",
			wantErr: ErrTooManyTokens,
		},
		{
			name:    "token too long",
			in:      strings.Repeat("x", MaxTokenLen+1) + "\r\n",
			wantErr: ErrTokenTooLong,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := Decode([]byte(tt.in))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Decode() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if !reflect.DeepEqual(cmd.Tokens, tt.want) {
				t.Errorf("Decode() tokens = %q, want %q", cmd.Tokens, tt.want)
			}
		})
	}
}

func TestDecodeLimits(t *testing.T) {
	line := strings.TrimSpace(strings.Repeat("t ", MaxTokens)) + "\r\n"
	cmd, err := Decode([]byte(line))
	if err != nil {
		t.Fatalf("Decode() with %d tokens error = %v", MaxTokens, err)
	}
	if len(cmd.Tokens) != MaxTokens {
		t.Errorf("len(Tokens) = %d, want %d", len(cmd.Tokens), MaxTokens)
	}

	long := strings.Repeat("y", MaxTokenLen)
	cmd, err = Decode([]byte(long + "\r\n"))
	if err != nil {
		t.Fatalf("Decode() with %d-byte token error = %v", MaxTokenLen, err)
	}
	if cmd.Name() != long {
		t.Error("Decode() mangled a maximum-length token")
	}
}

func TestDecodeFreshCommand(t *testing.T) {
	first, err := Decode([]byte("set_wifi_mac 11:22:33:44:55:66\r\n"))
	if err != nil {
		t.Fatal(err)
	}
	second, err := Decode([]byte("get_mac\r\n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(second.Tokens) != 1 || second.Args() != nil {
		t.Errorf("second command carries stale tokens: %q", second.Tokens)
	}
	if first.Args()[0] != "11:22:33:44:55:66" {
		t.Errorf("first command changed after second decode: %q", first.Tokens)
	}
}

func TestScanner(t *testing.T) {
	overlong := strings.Repeat("z", MaxLine+10)
	input := "get_mac\r\n" +
		"led_ctrl 1\r\n" +
		overlong + "tail\r\n" +
		"reboot\r\n" +
		"partial"

	s := NewScanner(strings.NewReader(input))
	var lines []string
	for s.Scan() {
		lines = append(lines, s.Text())
	}
	if err := s.Err(); err != nil {
		t.Fatalf("scanner error = %v", err)
	}

	want := []string{"get_mac\r\n", "led_ctrl 1\r\n", "reboot\r\n"}
	if !reflect.DeepEqual(lines, want) {
		t.Errorf("lines = %q, want %q", lines, want)
	}
}

// The writer stays open, so a line can only be returned from bytes the
// scanner has already buffered.
func TestScanner_LineBehindDroppedLine(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"overlong", strings.Repeat("x", MaxLine+10) + "\r\ntest_pass\r\n", "test_pass\r\n"},
		{"overlong then two", strings.Repeat("x", MaxLine+10) + "\r\nget_mac\r\nreboot\r\n", "get_mac\r\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pr, pw := io.Pipe()
			defer pr.Close()
			defer pw.Close()
			go pw.Write([]byte(tt.input))

			lines := make(chan string, 1)
			go func() {
				s := NewScanner(pr)
				if s.Scan() {
					lines <- s.Text()
				}
			}()

			select {
			case got := <-lines:
				if got != tt.want {
					t.Errorf("line = %q, want %q", got, tt.want)
				}
			case <-time.After(time.Second):
				t.Fatal("buffered line not returned")
			}
		})
	}
}

func TestFormatMACs(t *testing.T) {
	wifi := mac.Addr{0x12, 0x11, 0x11, 0x11, 0x11, 0x11}
	got := FormatMACs(wifi, wifi.Next(), wifi.Next().Next())
	want := "12:11:11:11:11:11,12:11:11:11:11:12,12:11:11:11:11:13\r\n"
	if got != want {
		t.Errorf("FormatMACs() = %q, want %q", got, want)
	}

	upper := mac.Addr{0xAB, 0xCD, 0xEF, 0, 0, 0}
	if got := FormatMACs(upper, upper, upper); strings.ContainsAny(got, "ABCDEF") {
		t.Errorf("FormatMACs() = %q, want lowercase hex", got)
	}
}
