package camera

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/lumina-home/lumina-core/internal/infrastructure/config"
	"github.com/lumina-home/lumina-core/internal/infrastructure/logging"
)

// testMaxFrameSize is kept small so oversize handling is cheap to test.
const testMaxFrameSize = 1024

func startTestPipeline(t *testing.T) *Pipeline {
	t.Helper()

	cfg := config.CameraConfig{
		Host:         "127.0.0.1",
		HTTPPort:     0,
		UDPPort:      0,
		TCPPort:      0,
		Timeouts:     config.CameraTimeoutConfig{Read: 5, Idle: 30},
		MaxFrameSize: testMaxFrameSize,
	}

	p := New(cfg, logging.Default())
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("starting pipeline: %v", err)
	}
	t.Cleanup(func() { p.Close() })

	return p
}

func sendUDPFrame(t *testing.T, p *Pipeline, record []byte) {
	t.Helper()

	conn, err := net.Dial("udp", p.UDPAddr())
	if err != nil {
		t.Fatalf("dialing udp: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write(record); err != nil {
		t.Fatalf("sending frame: %v", err)
	}
}

func httpGet(t *testing.T, p *Pipeline, path string) (int, []byte) {
	t.Helper()

	resp, err := http.Get("http://" + p.HTTPAddr() + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	return resp.StatusCode, body
}

// waitForFrame polls the single-frame endpoint until ingestion catches
// up with an asynchronously sent frame.
func waitForFrame(t *testing.T, p *Pipeline, id string, want []byte) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		code, body := httpGet(t, p, "/camera/frame?id="+id)
		if code == http.StatusOK && bytes.Equal(body, want) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("frame for %s never arrived", id)
}

func waitForCondition(t *testing.T, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}

func TestUDPIngestion(t *testing.T) {
	p := startTestPipeline(t)

	jpeg := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x01, 0x02}
	sendUDPFrame(t, p, append([]byte("cam-entrance|"), jpeg...))

	waitForFrame(t, p, "cam-entrance", jpeg)

	code, body := httpGet(t, p, "/camera/list")
	if code != http.StatusOK {
		t.Fatalf("list status = %d", code)
	}
	var list struct {
		Cameras []string `json:"cameras"`
	}
	if err := json.Unmarshal(body, &list); err != nil {
		t.Fatalf("parsing list %q: %v", body, err)
	}
	if len(list.Cameras) != 1 || list.Cameras[0] != "cam-entrance" {
		t.Errorf("cameras = %v, want [cam-entrance]", list.Cameras)
	}
}

func TestUDPIngestion_MalformedDroppedSilently(t *testing.T) {
	p := startTestPipeline(t)

	sendUDPFrame(t, p, []byte("no separator at all"))
	sendUDPFrame(t, p, []byte("|leading separator"))

	// A valid frame after the garbage proves the loop survived.
	jpeg := []byte{0xFF, 0xD8}
	sendUDPFrame(t, p, append([]byte("cam-garden|"), jpeg...))
	waitForFrame(t, p, "cam-garden", jpeg)

	var status struct {
		Cameras int `json:"cameras"`
	}
	_, body := httpGet(t, p, "/camera/status")
	if err := json.Unmarshal(body, &status); err != nil {
		t.Fatalf("parsing status %q: %v", body, err)
	}
	if status.Cameras != 1 {
		t.Errorf("cameras = %d, want 1", status.Cameras)
	}
}

func writeTCPRecord(t *testing.T, conn net.Conn, record []byte) {
	t.Helper()

	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(record)))
	if _, err := conn.Write(length[:]); err != nil {
		t.Fatalf("writing length: %v", err)
	}
	if _, err := conn.Write(record); err != nil {
		t.Fatalf("writing record: %v", err)
	}
}

func TestTCPIngestion(t *testing.T) {
	p := startTestPipeline(t)

	conn, err := net.Dial("tcp", p.TCPAddr())
	if err != nil {
		t.Fatalf("dialing tcp: %v", err)
	}
	defer conn.Close()

	jpeg := bytes.Repeat([]byte{0xAB}, 600)
	writeTCPRecord(t, conn, append([]byte("cam-hd|"), jpeg...))

	waitForFrame(t, p, "cam-hd", jpeg)
}

func TestTCPIngestion_OversizedRecordSkipped(t *testing.T) {
	p := startTestPipeline(t)

	conn, err := net.Dial("tcp", p.TCPAddr())
	if err != nil {
		t.Fatalf("dialing tcp: %v", err)
	}
	defer conn.Close()

	// Announces more than MaxFrameSize; payload must be discarded
	// without desyncing the record stream.
	writeTCPRecord(t, conn, bytes.Repeat([]byte{0xCC}, testMaxFrameSize+500))

	// A zero length header is skipped outright.
	if _, err := conn.Write([]byte{0, 0, 0, 0}); err != nil {
		t.Fatalf("writing zero length: %v", err)
	}

	jpeg := []byte{0xFF, 0xD8, 0x10}
	writeTCPRecord(t, conn, append([]byte("cam-hd|"), jpeg...))

	waitForFrame(t, p, "cam-hd", jpeg)

	if p.store.Count() != 1 {
		t.Errorf("Count() = %d, want 1", p.store.Count())
	}
}

// readPart consumes one multipart part from an open MJPEG stream.
func readPart(t *testing.T, r *bufio.Reader) []byte {
	t.Helper()

	line, err := r.ReadString('\n')
	if err != nil {
		t.Fatalf("reading boundary: %v", err)
	}
	if strings.TrimSpace(line) != "--boundary" {
		t.Fatalf("boundary line = %q", line)
	}

	var contentLength int
	for {
		line, err = r.ReadString('\n')
		if err != nil {
			t.Fatalf("reading part header: %v", err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			break
		}
		if n, ok := strings.CutPrefix(line, "Content-Length: "); ok {
			fmt.Sscanf(n, "%d", &contentLength)
		}
	}

	payload := make([]byte, contentLength)
	if _, err := io.ReadFull(r, payload); err != nil {
		t.Fatalf("reading part payload: %v", err)
	}
	if _, err := io.ReadFull(r, make([]byte, 2)); err != nil {
		t.Fatalf("reading part trailer: %v", err)
	}
	return payload
}

func TestStream_DeliversFrames(t *testing.T) {
	p := startTestPipeline(t)

	resp, err := http.Get("http://" + p.HTTPAddr() + "/camera/stream?id=cam-entrance")
	if err != nil {
		t.Fatalf("opening stream: %v", err)
	}
	defer resp.Body.Close()

	if got := resp.Header.Get("Content-Type"); !strings.HasPrefix(got, "multipart/x-mixed-replace") {
		t.Fatalf("Content-Type = %q", got)
	}

	waitForCondition(t, func() bool { return p.ViewerCount("cam-entrance") == 1 })

	first := []byte{0xFF, 0xD8, 0x01}
	second := []byte{0xFF, 0xD8, 0x02}
	sendUDPFrame(t, p, append([]byte("cam-entrance|"), first...))
	sendUDPFrame(t, p, append([]byte("cam-entrance|"), second...))

	r := bufio.NewReader(resp.Body)
	if got := readPart(t, r); !bytes.Equal(got, first) {
		t.Errorf("part 1 = %x, want %x", got, first)
	}
	if got := readPart(t, r); !bytes.Equal(got, second) {
		t.Errorf("part 2 = %x, want %x", got, second)
	}
}

func TestStream_DisconnectUnregistersViewer(t *testing.T) {
	p := startTestPipeline(t)

	resp, err := http.Get("http://" + p.HTTPAddr() + "/camera/stream?id=cam-entrance")
	if err != nil {
		t.Fatalf("opening stream: %v", err)
	}

	waitForCondition(t, func() bool { return p.ViewerCount("cam-entrance") == 1 })

	resp.Body.Close()
	waitForCondition(t, func() bool { return p.ViewerCount("cam-entrance") == 0 })
}

func TestStream_MissingID(t *testing.T) {
	p := startTestPipeline(t)

	code, body := httpGet(t, p, "/camera/stream")
	if code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", code)
	}
	if !strings.Contains(string(body), "missing camera id") {
		t.Errorf("body = %s", body)
	}
}

func TestFrame_Errors(t *testing.T) {
	p := startTestPipeline(t)

	code, _ := httpGet(t, p, "/camera/frame")
	if code != http.StatusBadRequest {
		t.Errorf("missing id status = %d, want 400", code)
	}

	code, _ = httpGet(t, p, "/camera/frame?id=cam-ghost")
	if code != http.StatusNotFound {
		t.Errorf("unknown id status = %d, want 404", code)
	}
}

func TestStatus_Empty(t *testing.T) {
	p := startTestPipeline(t)

	code, body := httpGet(t, p, "/camera/status")
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}

	var status struct {
		Status  string `json:"status"`
		Cameras int    `json:"cameras"`
	}
	if err := json.Unmarshal(body, &status); err != nil {
		t.Fatalf("parsing status %q: %v", body, err)
	}
	if status.Status != "OK" || status.Cameras != 0 {
		t.Errorf("status = %+v, want OK/0", status)
	}
}
