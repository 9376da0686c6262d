package loom

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
)

// Encoder renders response bodies for one media type. JSON and XML are
// built in; WithEncoders registers more.
type Encoder interface {
	ContentType() string
	Encode(w io.Writer, v any) error
}

type jsonEncoder struct{}

func (jsonEncoder) ContentType() string { return "application/json" }

func (jsonEncoder) Encode(w io.Writer, v any) error {
	return json.NewEncoder(w).Encode(v)
}

type xmlEncoder struct{}

func (xmlEncoder) ContentType() string { return "application/xml" }

func (xmlEncoder) Encode(w io.Writer, v any) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	return xml.NewEncoder(w).Encode(v)
}

// Negotiate stages v rendered in the best representation the Accept
// header allows. A missing Accept header, or */*, picks the first
// encoder (JSON). An explicit Accept matching no encoder yields a 406
// problem.
func (c *Context) Negotiate(status int, v any) error {
	enc, ok := pickEncoder(c.app.encoders, c.Header("Accept"))
	if !ok {
		return Error(http.StatusNotAcceptable, "no acceptable representation for this resource")
	}

	var buf bytes.Buffer
	if err := enc.Encode(&buf, v); err != nil {
		return fmt.Errorf("encode %s response: %w", enc.ContentType(), err)
	}
	return c.Blob(status, enc.ContentType(), buf.Bytes())
}

// pickEncoder resolves an Accept header against the encoder set by
// highest quality value; on a tie the earlier Accept entry wins.
func pickEncoder(encoders []Encoder, accept string) (Encoder, bool) {
	if accept == "" {
		return encoders[0], true
	}

	var best Encoder
	bestQ := -1.0
	for part := range strings.SplitSeq(accept, ",") {
		mediaType, params, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err != nil {
			continue
		}

		q := 1.0
		if qs, ok := params["q"]; ok {
			if parsed, err := strconv.ParseFloat(qs, 64); err == nil {
				q = parsed
			}
		}
		if q <= bestQ {
			continue
		}

		if mediaType == "*/*" {
			best, bestQ = encoders[0], q
			continue
		}
		for _, enc := range encoders {
			if enc.ContentType() == mediaType {
				best, bestQ = enc, q
				break
			}
		}
	}

	if best == nil {
		return nil, false
	}
	return best, true
}
