package browser

import (
	"bufio"
	"crypto/sha1" //nolint:gosec // SHA-1 is mandated by RFC 6455 for the accept key
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

// websocketGUID is the fixed GUID from RFC 6455 §1.3.
const websocketGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// ErrNoWebSocketKey indicates an upgrade request without a
// Sec-WebSocket-Key header. The connection is aborted without upgrading.
var ErrNoWebSocketKey = errors.New("browser: missing Sec-WebSocket-Key header")

// acceptKey derives the Sec-WebSocket-Accept value for a client key:
// base64(SHA1(key + GUID)).
func acceptKey(key string) string {
	h := sha1.Sum([]byte(key + websocketGUID)) //nolint:gosec
	return base64.StdEncoding.EncodeToString(h[:])
}

// handshake consumes the HTTP upgrade request from r and writes the 101
// response to w. Headers are read until the blank line; only the
// Sec-WebSocket-Key header matters.
func handshake(r *bufio.Reader, w io.Writer) error {
	var key string

	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return fmt.Errorf("reading handshake: %w", err)
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}

		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(name), "Sec-WebSocket-Key") {
			key = strings.TrimSpace(value)
		}
	}

	if key == "" {
		return ErrNoWebSocketKey
	}

	response := "HTTP/1.1 101 Switching Protocols\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Accept: " + acceptKey(key) + "\r\n" +
		"\r\n"

	if _, err := w.Write([]byte(response)); err != nil {
		return fmt.Errorf("writing handshake response: %w", err)
	}
	return nil
}
