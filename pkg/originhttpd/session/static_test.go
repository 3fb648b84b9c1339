package session

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/yourusername/originhttpd/pkg/originhttpd/httpresp"
)

func writeTestFile(t *testing.T, dir, name string, content []byte) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), content, 0o644); err != nil {
		t.Fatalf("write fixture file: %v", err)
	}
}

func TestServeStaticStreamsFullFileThenClosesOnHTTP10(t *testing.T) {
	dir := t.TempDir()
	content := bytes.Repeat([]byte("0123456789abcdef"), 50) // 800 bytes
	writeTestFile(t, dir, "data.bin", content)

	cfg := defaultTestConfig(t)
	cfg.RootPath = dir
	cfg.FileChunkSize = 16 // force many write-complete iterations
	ctl, reg := buildController(cfg, nil)
	loop := newTestLoop()

	client, s, closed := acceptPipe(ctl, loop)
	if _, err := client.Write([]byte("GET /data.bin HTTP/1.0\r\n\r\n")); err != nil {
		t.Fatalf("write request: %v", err)
	}

	resp := readUntilEOF(t, client)
	want := append(httpresp.WriteStaticHeaders(int64(len(content)), false), content...)
	if !bytes.Equal(resp, want) {
		t.Fatalf("got response of %d bytes, want %d bytes (mismatch)", len(resp), len(want))
	}
	waitClosed(t, closed)

	if _, ok := reg.SearchOffset(s.ID); ok {
		t.Fatal("expected the offset entry to be erased once streaming finished")
	}
}

func TestServeStaticKeepAliveLeavesConnectionOpenAfterStreaming(t *testing.T) {
	dir := t.TempDir()
	content := bytes.Repeat([]byte("xyz123"), 200) // 1200 bytes
	writeTestFile(t, dir, "page.html", content)

	cfg := defaultTestConfig(t)
	cfg.RootPath = dir
	cfg.FileChunkSize = 64
	ctl, _ := buildController(cfg, nil)
	loop := newTestLoop()

	client, _, closed := acceptPipe(ctl, loop)
	if _, err := client.Write([]byte("GET /page.html HTTP/1.1\r\n\r\n")); err != nil {
		t.Fatalf("write request: %v", err)
	}

	want := append(httpresp.WriteStaticHeaders(int64(len(content)), true), content...)
	got := readExactly(t, client, len(want))
	if !bytes.Equal(got, want) {
		t.Fatal("got a different static response than expected on a keep-alive request")
	}

	assertStillOpen(t, closed)
	waitClosed(t, closed) // the shortened keep-alive timer in defaultTestConfig fires next
}

func TestServeStaticHomepageSubstitutionForRootRequest(t *testing.T) {
	dir := t.TempDir()
	content := []byte("<html>home</html>")
	writeTestFile(t, dir, "index.html", content)

	cfg := defaultTestConfig(t)
	cfg.RootPath = dir
	ctl, _ := buildController(cfg, nil)
	loop := newTestLoop()

	client, _, closed := acceptPipe(ctl, loop)
	if _, err := client.Write([]byte("GET / HTTP/1.0\r\n\r\n")); err != nil {
		t.Fatalf("write request: %v", err)
	}

	resp := readUntilEOF(t, client)
	want := append(httpresp.WriteStaticHeaders(int64(len(content)), false), content...)
	if !bytes.Equal(resp, want) {
		t.Fatalf("got %q, want %q", resp, want)
	}
	waitClosed(t, closed)
}

func TestServeStaticOffsetEntryClearedWhenConnectionClosesMidStream(t *testing.T) {
	dir := t.TempDir()
	content := bytes.Repeat([]byte("z"), 4096)
	writeTestFile(t, dir, "big.bin", content)

	cfg := defaultTestConfig(t)
	cfg.RootPath = dir
	cfg.FileChunkSize = 8
	ctl, reg := buildController(cfg, nil)
	loop := newTestLoop()

	client, s, closed := acceptPipe(ctl, loop)
	if _, err := client.Write([]byte("GET /big.bin HTTP/1.0\r\n\r\n")); err != nil {
		t.Fatalf("write request: %v", err)
	}

	// Read only the header block, then abandon the response mid-stream by
	// closing the client: the registry's offset entry must not leak.
	headers := httpresp.WriteStaticHeaders(int64(len(content)), false)
	_ = readExactly(t, client, len(headers))
	client.Close()

	waitClosed(t, closed)
	if _, ok := reg.SearchOffset(s.ID); ok {
		t.Fatal("expected the offset entry to be erased once the connection closed mid-stream")
	}
}
