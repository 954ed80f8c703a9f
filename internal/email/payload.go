package email

import (
	"bytes"
	"strings"
)

// Terminator ends the DATA section. It is written after the payload, whose
// own final line break is not part of it.
const Terminator = "\r\n.\r\n"

// Build renders the message headers and HTML body with every line ending
// normalized to CRLF. The result is not yet safe to send; see Encode.
func Build(msg Message, from string) []byte {
	var b strings.Builder
	b.WriteString("To: " + msg.Recipient + "\n")
	b.WriteString("From: " + from + "\n")
	b.WriteString("Subject: " + msg.Subject + "\n")
	b.WriteString("MIME-Version: 1.0\n")
	b.WriteString("Content-Type: text/html; charset=utf-8\n")
	b.WriteString("\n")
	b.WriteString(msg.Body)
	b.WriteString("\n\n")
	return normalizeLineEndings([]byte(b.String()))
}

// DotStuff doubles the leading dot of every line starting with '.', so the
// payload cannot contain the end-of-data sentinel. p must use CRLF endings.
func DotStuff(p []byte) []byte {
	n := bytes.Count(p, []byte("\r\n."))
	if bytes.HasPrefix(p, []byte(".")) {
		n++
	}
	if n == 0 {
		return p
	}

	out := make([]byte, 0, len(p)+n)
	if bytes.HasPrefix(p, []byte(".")) {
		out = append(out, '.')
	}
	for {
		i := bytes.Index(p, []byte("\r\n."))
		if i < 0 {
			return append(out, p...)
		}
		out = append(out, p[:i+3]...)
		out = append(out, '.')
		p = p[i+3:]
	}
}

// Encode builds the DATA payload for msg sent by from. It is pure: the same
// inputs always produce the same bytes.
func Encode(msg Message, from string) []byte {
	return DotStuff(Build(msg, from))
}

func normalizeLineEndings(data []byte) []byte {
	data = bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
	data = bytes.ReplaceAll(data, []byte("\r"), []byte("\n"))
	return bytes.ReplaceAll(data, []byte("\n"), []byte("\r\n"))
}
