package session

import (
	"bytes"

	"github.com/yourusername/originhttpd/pkg/originhttpd/httpresp"
	"github.com/yourusername/originhttpd/pkg/originhttpd/metrics"
)

// serveDynamic answers a dynamic request: load the shared-object handler
// at path, invoke the method-appropriate entry point, and send whatever
// it returns. The server emits only the status line and optional
// Connection header; the handler's output continues the header block,
// supplying its own Content-Length and the blank line before its body.
func (ctl *Controller) serveDynamic(s *Session, path string, body []byte) {
	handler, err := ctl.plugins.Load(path)
	if err != nil {
		// A missing or malformed handler is indistinguishable to the
		// client from a missing resource.
		ctl.sendErrorAndClose(s, 404)
		return
	}

	var respBody []byte
	var handlerErr error
	if s.Method == Post {
		respBody, handlerErr = handler.RespondPost(body)
		metrics.DynamicInvocations.WithLabelValues("post").Inc()
	} else {
		respBody, handlerErr = handler.RespondGet(parseQuery(s.Query))
		metrics.DynamicInvocations.WithLabelValues("get").Inc()
	}
	if handlerErr != nil {
		ctl.sendErrorAndClose(s, 500)
		return
	}

	headers := httpresp.WriteDynamicHeaders(s.IsKeepAlive)
	s.Conn.Send(headers)
	s.Conn.Send(respBody)

	ctl.logRequest(s, 200, int64(len(headers)+len(respBody)))
	ctl.closeConnection(s)
}

// parseQuery splits a query string on "&", then each pair on the first
// "=": a pair with no "=" has an empty value.
func parseQuery(query []byte) map[string]string {
	args := make(map[string]string)
	if len(query) == 0 {
		return args
	}
	for _, pair := range bytes.Split(query, []byte("&")) {
		if len(pair) == 0 {
			continue
		}
		if eq := bytes.IndexByte(pair, '='); eq >= 0 {
			args[string(pair[:eq])] = string(pair[eq+1:])
		} else {
			args[string(pair)] = ""
		}
	}
	return args
}
