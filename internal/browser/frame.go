package browser

import (
	"encoding/binary"
	"fmt"
	"io"
)

// WebSocket opcodes (RFC 6455 §5.2).
const (
	opcodeText  = 0x1
	opcodeClose = 0x8
	opcodePing  = 0x9
	opcodePong  = 0xA
)

// Length-encoding markers in the second header byte.
const (
	len16Marker = 126
	len64Marker = 127
)

// maxFramePayload caps inbound payloads. Browser requests are small
// JSON commands; a 64-bit length is honoured only in its low 32 bits
// and anything above the cap is rejected.
const maxFramePayload = 1 << 20

// frame is one decoded WebSocket frame.
type frame struct {
	opcode  byte
	payload []byte
}

// readFrame decodes one frame: header byte, mask bit, 7/16/64-bit
// length, optional 4-byte mask key, payload. Masked payloads are
// unmasked in place with the cyclic XOR rule.
func readFrame(r io.Reader) (*frame, error) {
	var hdr [2]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}

	opcode := hdr[0] & 0x0F
	masked := hdr[1]&0x80 != 0
	length := uint64(hdr[1] & 0x7F)

	switch length {
	case len16Marker:
		var ext [2]byte
		if _, err := io.ReadFull(r, ext[:]); err != nil {
			return nil, err
		}
		length = uint64(binary.BigEndian.Uint16(ext[:]))
	case len64Marker:
		var ext [8]byte
		if _, err := io.ReadFull(r, ext[:]); err != nil {
			return nil, err
		}
		// Only the low 32 bits are honoured.
		length = binary.BigEndian.Uint64(ext[:]) & 0xFFFFFFFF
	}

	if length > maxFramePayload {
		return nil, fmt.Errorf("frame payload %d exceeds limit %d", length, maxFramePayload)
	}

	var mask [4]byte
	if masked {
		if _, err := io.ReadFull(r, mask[:]); err != nil {
			return nil, err
		}
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}

	if masked {
		for i := range payload {
			payload[i] ^= mask[i%4]
		}
	}

	return &frame{opcode: opcode, payload: payload}, nil
}

// writeTextFrame encodes payload as a single unmasked text frame
// (FIN=1, opcode=text) with the matching 7/16/64-bit length form.
func writeTextFrame(w io.Writer, payload []byte) error {
	length := len(payload)

	var header []byte
	switch {
	case length <= 125:
		header = []byte{0x80 | opcodeText, byte(length)}
	case length <= 0xFFFF:
		header = make([]byte, 4)
		header[0] = 0x80 | opcodeText
		header[1] = len16Marker
		binary.BigEndian.PutUint16(header[2:], uint16(length))
	default:
		header = make([]byte, 10)
		header[0] = 0x80 | opcodeText
		header[1] = len64Marker
		binary.BigEndian.PutUint64(header[2:], uint64(length))
	}

	if _, err := w.Write(header); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}
