package session

import (
	"testing"

	"github.com/yourusername/originhttpd/pkg/originhttpd/ioloop"
)

func feed(buf *ioloop.Buffer, s string) {
	buf.Append([]byte(s))
}

func TestParseSimpleGetKeepAlive(t *testing.T) {
	buf := ioloop.NewBuffer()
	feed(buf, "GET / HTTP/1.1\r\nHost: example\r\n\r\n")

	s := New(nil)
	if r := Parse(s, buf); r != ResultGood {
		t.Fatalf("expected ResultGood, got %v", r)
	}
	if s.Method != Get || s.Version != Http11 {
		t.Fatalf("got method=%v version=%v", s.Method, s.Version)
	}
	if !s.IsKeepAlive {
		t.Fatal("expected HTTP/1.1 to default to keep-alive")
	}
	if string(s.URL) != "/" {
		t.Fatalf("got url=%q", s.URL)
	}
}

func TestParsePartialByteAtATimeEquivalence(t *testing.T) {
	whole := "GET /a/./b HTTP/1.0\r\nConnection: close\r\n\r\n"

	full := ioloop.NewBuffer()
	feed(full, whole)
	fullSession := New(nil)
	if r := Parse(fullSession, full); r != ResultGood {
		t.Fatalf("whole-buffer parse: expected Good, got %v", r)
	}

	partial := ioloop.NewBuffer()
	partialSession := New(nil)
	var result Result
	for i := 0; i < len(whole); i++ {
		feed(partial, whole[i:i+1])
		result = Parse(partialSession, partial)
		if i < len(whole)-1 && result == ResultGood {
			t.Fatalf("got ResultGood before the full request arrived, at byte %d", i)
		}
	}
	if result != ResultGood {
		t.Fatalf("byte-at-a-time parse: expected Good, got %v", result)
	}

	if string(fullSession.URL) != string(partialSession.URL) {
		t.Fatalf("got different urls: %q vs %q", fullSession.URL, partialSession.URL)
	}
	if fullSession.IsKeepAlive != partialSession.IsKeepAlive {
		t.Fatal("expected matching keep-alive outcome")
	}
}

func TestParseUnsupportedVersionFails(t *testing.T) {
	buf := ioloop.NewBuffer()
	feed(buf, "GET / HTTP/2.0\r\n\r\n")
	s := New(nil)
	if r := Parse(s, buf); r != ResultError {
		t.Fatalf("expected ResultError, got %v", r)
	}
	if s.MetaError == nil || s.MetaError.Status != 400 {
		t.Fatalf("expected 400, got %+v", s.MetaError)
	}
}

func TestParseUnsupportedMethodFails405(t *testing.T) {
	buf := ioloop.NewBuffer()
	feed(buf, "DELETE / HTTP/1.1\r\n\r\n")
	s := New(nil)
	if r := Parse(s, buf); r != ResultError {
		t.Fatalf("expected ResultError, got %v", r)
	}
	if s.MetaError == nil || s.MetaError.Status != 405 {
		t.Fatalf("expected 405, got %+v", s.MetaError)
	}
}

func TestParseBadPercentEscapeFails400(t *testing.T) {
	buf := ioloop.NewBuffer()
	feed(buf, "GET /%zz HTTP/1.1\r\n\r\n")
	s := New(nil)
	if r := Parse(s, buf); r != ResultError {
		t.Fatalf("expected ResultError, got %v", r)
	}
	if s.MetaError == nil || s.MetaError.Status != 400 {
		t.Fatalf("expected 400, got %+v", s.MetaError)
	}
}

func TestParsePostWithBody(t *testing.T) {
	buf := ioloop.NewBuffer()
	feed(buf, "POST /app.so HTTP/1.1\r\nContent-Length: 5\r\n\r\nhello")
	s := New(nil)
	if r := Parse(s, buf); r != ResultGood {
		t.Fatalf("expected Good, got %v", r)
	}
	if string(s.Body) != "hello" {
		t.Fatalf("got body=%q", s.Body)
	}
	if s.IsStatic {
		t.Fatal("expected POST to always be dynamic")
	}
}

func TestParsePostBodyShortUntilFullyBuffered(t *testing.T) {
	buf := ioloop.NewBuffer()
	feed(buf, "POST /app.so HTTP/1.1\r\nContent-Length: 5\r\n\r\nhel")
	s := New(nil)
	if r := Parse(s, buf); r != ResultShort {
		t.Fatalf("expected Short with a partial body, got %v", r)
	}
	feed(buf, "lo")
	if r := Parse(s, buf); r != ResultGood {
		t.Fatalf("expected Good once the body completes, got %v", r)
	}
	if string(s.Body) != "hello" {
		t.Fatalf("got body=%q", s.Body)
	}
}

func TestParseConnectionCloseOverridesHttp11Default(t *testing.T) {
	buf := ioloop.NewBuffer()
	feed(buf, "GET / HTTP/1.1\r\nConnection: close\r\n\r\n")
	s := New(nil)
	if r := Parse(s, buf); r != ResultGood {
		t.Fatalf("expected Good, got %v", r)
	}
	if s.IsKeepAlive {
		t.Fatal("expected explicit Connection: close to win over the HTTP/1.1 default")
	}
}

func TestParseResetsBetweenRequestsRetainingCapacity(t *testing.T) {
	buf := ioloop.NewBuffer()
	feed(buf, "GET /one HTTP/1.1\r\n\r\n")
	s := New(nil)
	if r := Parse(s, buf); r != ResultGood {
		t.Fatalf("expected Good, got %v", r)
	}
	urlCap := cap(s.URL)

	feed(buf, "GET /two HTTP/1.1\r\n\r\n")
	if r := Parse(s, buf); r != ResultGood {
		t.Fatalf("expected Good on the second request, got %v", r)
	}
	if string(s.URL) != "/two" {
		t.Fatalf("got url=%q", s.URL)
	}
	if cap(s.URL) < urlCap {
		t.Fatalf("expected URL backing array capacity to be retained across Reset, got %d < %d", cap(s.URL), urlCap)
	}
}
