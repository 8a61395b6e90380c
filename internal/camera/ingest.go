package camera

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"net"
)

// idScanLimit bounds the search for the id separator. Camera ids are
// short; a packet without a '|' in the prefix is not a frame.
const idScanLimit = 50

// ingestFrame parses one "id|jpeg" record and feeds it into the store
// and the open streams. Malformed records are dropped silently.
func (p *Pipeline) ingestFrame(data []byte) {
	limit := len(data)
	if limit > idScanLimit {
		limit = idScanLimit
	}

	sep := bytes.IndexByte(data[:limit], '|')
	if sep < 1 {
		return
	}

	id := string(data[:sep])
	jpeg := data[sep+1:]

	p.store.Put(id, jpeg)
	p.viewers.Push(id, jpeg)
}

// udpLoop receives one frame per datagram.
func (p *Pipeline) udpLoop() {
	defer p.wg.Done()

	buf := make([]byte, p.cfg.MaxFrameSize)
	for {
		n, _, err := p.udpConn.ReadFromUDP(buf)
		if err != nil {
			if p.closed.Load() {
				return
			}
			p.logger.Warn("udp receive failed", "error", err)
			continue
		}

		p.ingestFrame(buf[:n])
	}
}

// tcpLoop accepts feed connections for frames above the datagram limit.
func (p *Pipeline) tcpLoop() {
	defer p.wg.Done()

	for {
		conn, err := p.tcpLn.Accept()
		if err != nil {
			if p.closed.Load() {
				return
			}
			p.logger.Warn("tcp accept failed", "error", err)
			continue
		}

		p.addFeed(conn)
		p.wg.Add(1)
		go p.handleFeed(conn)
	}
}

// handleFeed reads length-prefixed records from one feed connection.
// Records announcing a length outside (0, MaxFrameSize] are skipped
// with the payload discarded, so one bad frame cannot desync or kill
// the feed.
func (p *Pipeline) handleFeed(conn net.Conn) {
	defer p.wg.Done()
	defer p.removeFeed(conn)
	defer conn.Close()

	p.logger.Info("camera feed connected", "remote", conn.RemoteAddr().String())
	defer p.logger.Info("camera feed disconnected", "remote", conn.RemoteAddr().String())

	r := bufio.NewReaderSize(conn, 64*1024)
	for {
		var lengthBytes [4]byte
		if _, err := io.ReadFull(r, lengthBytes[:]); err != nil {
			return
		}
		length := int32(binary.BigEndian.Uint32(lengthBytes[:]))

		if length <= 0 {
			p.logger.Warn("invalid frame length", "length", length)
			continue
		}
		if int(length) > p.cfg.MaxFrameSize {
			p.logger.Warn("frame exceeds limit, skipping",
				"length", length, "limit", p.cfg.MaxFrameSize)
			if _, err := io.CopyN(io.Discard, r, int64(length)); err != nil {
				return
			}
			continue
		}

		record := make([]byte, length)
		if _, err := io.ReadFull(r, record); err != nil {
			return
		}

		p.ingestFrame(record)
	}
}

func (p *Pipeline) addFeed(conn net.Conn) {
	p.feedMu.Lock()
	p.feeds[conn] = struct{}{}
	p.feedMu.Unlock()
}

func (p *Pipeline) removeFeed(conn net.Conn) {
	p.feedMu.Lock()
	delete(p.feeds, conn)
	p.feedMu.Unlock()
}
