package connection

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// STOMP commands used by the client.
const (
	CmdConnect    = "CONNECT"
	CmdConnected  = "CONNECTED"
	CmdSubscribe  = "SUBSCRIBE"
	CmdDisconnect = "DISCONNECT"
	CmdMessage    = "MESSAGE"
	CmdReceipt    = "RECEIPT"
	CmdError      = "ERROR"
)

// Well-known STOMP headers.
const (
	HeaderAcceptVersion = "accept-version"
	HeaderHost          = "host"
	HeaderLogin         = "login"
	HeaderPasscode      = "passcode"
	HeaderHeartBeat     = "heart-beat"
	HeaderVersion       = "version"
	HeaderSession       = "session"
	HeaderDestination   = "destination"
	HeaderID            = "id"
	HeaderAck           = "ack"
	HeaderSubscription  = "subscription"
	HeaderMessageID     = "message-id"
	HeaderMessage       = "message"
	HeaderContentLength = "content-length"
)

// Frame is a single STOMP 1.2 frame.
type Frame struct {
	Command string
	Header  map[string]string
	Body    []byte
}

// NewFrame builds a frame from alternating header keys and values.
func NewFrame(command string, kv ...string) Frame {
	f := Frame{Command: command, Header: make(map[string]string, len(kv)/2)}
	for i := 0; i+1 < len(kv); i += 2 {
		f.Header[kv[i]] = kv[i+1]
	}
	return f
}

// Get returns a header value, or "" if absent.
func (f Frame) Get(key string) string {
	return f.Header[key]
}

// IsHeartbeat reports whether f is an empty keepalive frame.
func (f Frame) IsHeartbeat() bool {
	return f.Command == ""
}

// Marshal encodes the frame in wire format, including the NUL terminator.
// Headers are written in sorted order.
func (f Frame) Marshal() []byte {
	var b bytes.Buffer
	escape := escapesHeaders(f.Command)

	b.WriteString(f.Command)
	b.WriteByte('\n')

	keys := make([]string, 0, len(f.Header))
	for k := range f.Header {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := f.Header[k]
		if escape {
			k, v = escapeHeader(k), escapeHeader(v)
		}
		b.WriteString(k)
		b.WriteByte(':')
		b.WriteString(v)
		b.WriteByte('\n')
	}
	if len(f.Body) > 0 && f.Header[HeaderContentLength] == "" {
		b.WriteString(HeaderContentLength)
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(len(f.Body)))
		b.WriteByte('\n')
	}

	b.WriteByte('\n')
	b.Write(f.Body)
	b.WriteByte(0)
	return b.Bytes()
}

// ParseFrame decodes one frame from a WebSocket message.
// A message consisting only of EOLs is a heartbeat and yields a zero Frame.
func ParseFrame(data []byte) (Frame, error) {
	data = trimLeadingEOL(data)
	if len(data) == 0 || (len(data) == 1 && data[0] == 0) {
		return Frame{}, nil
	}

	line, rest, ok := cutLine(data)
	if !ok {
		return Frame{}, fmt.Errorf("%w: missing command line", ErrMalformedFrame)
	}
	f := Frame{Command: line, Header: make(map[string]string)}
	unescape := escapesHeaders(f.Command)

	for {
		line, rest, ok = cutLine(rest)
		if !ok {
			return Frame{}, fmt.Errorf("%w: unterminated headers", ErrMalformedFrame)
		}
		if line == "" {
			break
		}

		k, v, found := strings.Cut(line, ":")
		if !found {
			return Frame{}, fmt.Errorf("%w: header without colon %q", ErrMalformedFrame, line)
		}
		if unescape {
			var err error
			if k, err = unescapeHeader(k); err != nil {
				return Frame{}, err
			}
			if v, err = unescapeHeader(v); err != nil {
				return Frame{}, err
			}
		}
		// Repeated headers: only the first occurrence counts.
		if _, exists := f.Header[k]; !exists {
			f.Header[k] = v
		}
	}

	if cl := f.Header[HeaderContentLength]; cl != "" {
		n, err := strconv.Atoi(cl)
		if err != nil || n < 0 {
			return Frame{}, fmt.Errorf("%w: bad content-length %q", ErrMalformedFrame, cl)
		}
		if n > len(rest) {
			return Frame{}, fmt.Errorf("%w: body shorter than content-length", ErrMalformedFrame)
		}
		f.Body = rest[:n]
		return f, nil
	}

	end := bytes.IndexByte(rest, 0)
	if end < 0 {
		return Frame{}, fmt.Errorf("%w: missing NUL terminator", ErrMalformedFrame)
	}
	f.Body = rest[:end]
	return f, nil
}

// CONNECT and CONNECTED frames carry headers verbatim.
func escapesHeaders(command string) bool {
	return command != CmdConnect && command != CmdConnected
}

func trimLeadingEOL(data []byte) []byte {
	for len(data) > 0 {
		switch {
		case data[0] == '\n':
			data = data[1:]
		case len(data) > 1 && data[0] == '\r' && data[1] == '\n':
			data = data[2:]
		default:
			return data
		}
	}
	return data
}

// cutLine splits off one line, accepting "\n" or "\r\n".
func cutLine(data []byte) (line string, rest []byte, ok bool) {
	i := bytes.IndexByte(data, '\n')
	if i < 0 {
		return "", data, false
	}
	return strings.TrimSuffix(string(data[:i]), "\r"), data[i+1:], true
}

var headerEscaper = strings.NewReplacer(
	`\`, `\\`,
	"\r", `\r`,
	"\n", `\n`,
	":", `\c`,
)

func escapeHeader(s string) string {
	return headerEscaper.Replace(s)
}

func unescapeHeader(s string) (string, error) {
	if !strings.Contains(s, `\`) {
		return s, nil
	}

	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' {
			b.WriteByte(s[i])
			continue
		}
		if i+1 >= len(s) {
			return "", fmt.Errorf("%w: dangling escape in %q", ErrMalformedFrame, s)
		}
		i++
		switch s[i] {
		case 'r':
			b.WriteByte('\r')
		case 'n':
			b.WriteByte('\n')
		case 'c':
			b.WriteByte(':')
		case '\\':
			b.WriteByte('\\')
		default:
			return "", fmt.Errorf("%w: invalid escape \\%c", ErrMalformedFrame, s[i])
		}
	}
	return b.String(), nil
}
