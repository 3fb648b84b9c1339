package session

import (
	"bytes"
	"strconv"

	"github.com/yourusername/originhttpd/pkg/originhttpd/ioloop"
)

// Result is the outcome of one Parse call: Good (a full request
// parsed), Short (need more bytes), Error (fatal, MetaError populated).
type Result int

const (
	ResultGood Result = iota
	ResultShort
	ResultError
)

// Parse drives the request-parse phase machine against buf, restarting
// automatically via Reset() when s is Finished from a prior call. A
// Short return leaves the phase and read cursor where the next call can
// resume, so feeding the parser byte by byte is equivalent to feeding it
// the whole request at once.
func Parse(s *Session, buf *ioloop.Buffer) Result {
	if s.ParsePhase == Finished {
		s.Reset()
	}

	for {
		switch s.ParsePhase {
		case HeaderLine:
			if r := parseHeaderLine(s, buf); r != ResultGood {
				return r
			}
		case HeaderFields:
			if r := parseHeaderFields(s, buf); r != ResultGood {
				return r
			}
		case Body:
			if r := parseBody(s, buf); r != ResultGood {
				return r
			}
			return ResultGood
		default:
			return ResultGood
		}
	}
}

func parseHeaderLine(s *Session, buf *ioloop.Buffer) Result {
	line, ok := buf.FindCRLF()
	if !ok {
		return ResultShort
	}

	methodSp := bytes.IndexByte(line, ' ')
	if methodSp < 0 {
		s.Fail(400, "the method isn't provided")
		buf.AdvanceRead(len(line) + 2)
		return ResultError
	}
	methodTok := line[:methodSp]
	rest := line[methodSp+1:]

	s.Method = parseMethod(methodTok)
	if s.Method == Unsupported {
		s.Fail(405, "the method is not supported")
		buf.AdvanceRead(len(line) + 2)
		return ResultError
	}
	if s.Method == Post {
		s.IsStatic = false
	}

	urlSp := bytes.IndexByte(rest, ' ')
	if urlSp < 0 {
		s.Fail(400, "the URL isn't provided")
		buf.AdvanceRead(len(line) + 2)
		return ResultError
	}
	rawURL := rest[:urlSp]
	versionTok := rest[urlSp+1:]

	if len(rawURL) == 0 {
		s.Fail(400, "the URL is empty")
		buf.AdvanceRead(len(line) + 2)
		return ResultError
	}
	if rawURL[0] != '/' {
		s.Fail(400, "the first character of the request target is not /")
		buf.AdvanceRead(len(line) + 2)
		return ResultError
	}

	classifyURL(s, rawURL)

	s.URL = append(s.URL[:0], rawURL...)

	version, versionOK := parseVersion(versionTok)
	if !versionOK {
		s.Fail(400, "the HTTP version isn't supported")
		buf.AdvanceRead(len(line) + 2)
		return ResultError
	}
	s.Version = version

	if s.IsComplex {
		url, query, ok := Normalize(s.URL, s.IsStatic)
		if !ok {
			s.Fail(400, "malformed percent-encoding in the request target")
			buf.AdvanceRead(len(line) + 2)
			return ResultError
		}
		s.URL = append(s.URL[:0], url...)
		s.Query = append(s.Query[:0], query...)
	}

	buf.AdvanceRead(len(line) + 2)
	s.ParsePhase = HeaderFields
	return ResultGood
}

// parseMethod matches the method token case-sensitively against GET,
// POST, PUT, HEAD.
func parseMethod(tok []byte) Method {
	switch string(tok) {
	case "GET":
		return Get
	case "POST":
		return Post
	case "PUT":
		return Put
	case "HEAD":
		return Head
	default:
		return Unsupported
	}
}

// parseVersion parses "HTTP/" MAJOR "." MINOR as major*100+minor,
// accepting only 100 (HTTP/1.0) and 101 (HTTP/1.1).
func parseVersion(tok []byte) (Version, bool) {
	const prefix = "HTTP/"
	if len(tok) < len(prefix) || string(tok[:len(prefix)]) != prefix {
		return VersionUnsupported, false
	}
	rest := tok[len(prefix):]
	dot := bytes.IndexByte(rest, '.')
	if dot < 0 {
		return VersionUnsupported, false
	}
	major, err := strconv.Atoi(string(rest[:dot]))
	if err != nil {
		return VersionUnsupported, false
	}
	minor, err := strconv.Atoi(string(rest[dot+1:]))
	if err != nil {
		return VersionUnsupported, false
	}
	switch major*100 + minor {
	case 100:
		return Http10, true
	case 101:
		return Http11, true
	default:
		return VersionUnsupported, false
	}
}

// classifyURL walks rawURL's "/"-separated segments: an empty segment,
// ".", "..", or any segment containing "%" marks the URL complex; any
// segment containing "?" marks it both complex and dynamic.
func classifyURL(s *Session, rawURL []byte) {
	path := rawURL[1:] // url[0] is already known to be '/'
	for len(path) > 0 {
		slash := bytes.IndexByte(path, '/')
		var segment []byte
		if slash < 0 {
			segment = path
			path = nil
		} else {
			segment = path[:slash]
			path = path[slash+1:]
		}
		if len(segment) == 0 || string(segment) == "." || string(segment) == ".." || bytes.IndexByte(segment, '%') >= 0 {
			s.IsComplex = true
		}
		if bytes.IndexByte(segment, '?') >= 0 {
			s.IsComplex = true
			s.IsStatic = false
		}
	}
}

func parseHeaderFields(s *Session, buf *ioloop.Buffer) Result {
	for {
		line, ok := buf.FindCRLF()
		if !ok {
			return ResultShort
		}
		if len(line) == 0 {
			buf.AdvanceRead(2)
			s.ParsePhase = Body
			return ResultGood
		}

		colon := bytes.IndexByte(line, ':')
		if colon < 0 {
			s.Fail(400, "the : of header isn't provided")
			buf.AdvanceRead(len(line) + 2)
			return ResultError
		}
		// The value starts two bytes after the colon (": " expected).
		valueStart := colon + 2
		if valueStart > len(line) {
			valueStart = len(line)
		}
		s.Headers.Add(string(line[:colon]), string(line[valueStart:]))
		buf.AdvanceRead(len(line) + 2)
	}
}

func parseBody(s *Session, buf *ioloop.Buffer) Result {
	if s.ContentLength == nil {
		deriveHeaderMetadata(s)
	}

	if s.ContentLength == nil {
		s.ParsePhase = Finished
		return ResultGood
	}

	n := int(*s.ContentLength)
	if buf.ReadableSize() < n {
		return ResultShort
	}
	s.Body = buf.RetrieveAsBytes(n)
	s.ParsePhase = Finished
	return ResultGood
}

// deriveHeaderMetadata computes the keep-alive decision and content
// length from the now-complete header set. An explicit
// "Connection: close" wins over the HTTP/1.1 keep-alive default.
func deriveHeaderMetadata(s *Session) {
	conn, hasConn := s.Headers.Get("Connection")

	switch {
	case hasConn && equalFold(conn, "keep-alive"):
		s.IsKeepAlive = true
	case hasConn && equalFold(conn, "close"):
		s.IsKeepAlive = false
	case s.Version == Http11:
		s.IsKeepAlive = true
	default:
		s.IsKeepAlive = false
	}

	if cl, ok := s.Headers.Get("Content-Length"); ok {
		if n, err := strconv.ParseUint(cl, 10, 64); err == nil {
			s.ContentLength = &n
		}
	}
}
