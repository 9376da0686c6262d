package loom

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
)

// SSEEvent is a single server-sent event. String and []byte payloads are
// written verbatim; any other Data value is JSON-encoded.
type SSEEvent struct {
	ID    string // id: field, omitted when empty
	Event string // event: field, omitted when empty
	Data  any
}

// encode renders the event in wire format, one Write per event.
func (e SSEEvent) encode() []byte {
	var b bytes.Buffer
	if e.ID != "" {
		fmt.Fprintf(&b, "id: %s\n", e.ID)
	}
	if e.Event != "" {
		fmt.Fprintf(&b, "event: %s\n", e.Event)
	}
	switch v := e.Data.(type) {
	case nil:
	case string:
		fmt.Fprintf(&b, "data: %s\n", v)
	case []byte:
		fmt.Fprintf(&b, "data: %s\n", v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			fmt.Fprintf(&b, "data: %s\n", err.Error())
		} else {
			fmt.Fprintf(&b, "data: %s\n", data)
		}
	}
	b.WriteByte('\n')
	return b.Bytes()
}

// SSE takes over the connection and streams events until the channel
// closes or the client disconnects. Headers staged on the Context before
// the call are carried onto the wire, so middleware-set headers such as
// CORS survive the takeover. A failed write means the client went away;
// SSE treats that as a normal end of stream and returns nil.
func (c *Context) SSE(events <-chan SSEEvent) error {
	staged := c.ResponseHeader()
	w, r := c.TakeOver()

	hdr := w.Header()
	for k, vs := range staged {
		hdr[k] = append(hdr[k], vs...)
	}
	hdr.Set("Content-Type", "text/event-stream")
	hdr.Set("Cache-Control", "no-cache")
	hdr.Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return nil
	}
	w.WriteHeader(http.StatusOK)

	for {
		select {
		case ev, open := <-events:
			if !open {
				return nil
			}
			if _, err := w.Write(ev.encode()); err != nil {
				return nil
			}
			flusher.Flush()
		case <-r.Context().Done():
			return nil
		}
	}
}
