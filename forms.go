package loom

import (
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
)

// defaultMultipartMemory bounds the in-memory portion of a parsed
// multipart form; larger uploads spill to temp files.
const defaultMultipartMemory = 32 << 20

// FileUpload is one file posted in a multipart form.
type FileUpload struct {
	Filename string
	Size     int64
	Header   *multipart.FileHeader

	file multipart.File
}

// Open returns a reader over the uploaded file contents. The first call
// opens the underlying file; later calls return the same handle, so one
// Close closes the upload.
func (f *FileUpload) Open() (io.ReadCloser, error) {
	if f.file != nil {
		return f.file, nil
	}
	if f.Header == nil {
		return nil, errors.New("loom: file upload has no header")
	}
	file, err := f.Header.Open()
	if err != nil {
		return nil, err
	}
	f.file = file
	return file, nil
}

// FormValues parses the request body as a form, urlencoded or multipart,
// and returns the posted fields. Parsing consumes the body: a later Body
// or BodyStream call returns ErrBodyConsumed, and FormValues after Body
// returns it too. Query parameters are not included; use Query for those.
func (c *Context) FormValues() (url.Values, error) {
	if err := c.parseForm(); err != nil {
		return nil, err
	}
	return c.req.PostForm, nil
}

// FormValue returns the first posted value of the named form field, or ""
// when the field is absent or the body is not a parseable form.
func (c *Context) FormValue(name string) string {
	vs, err := c.FormValues()
	if err != nil {
		return ""
	}
	return vs.Get(name)
}

// FormFile returns the named file from a multipart form upload. A request
// without that file yields a 400 problem when the error is returned
// unwrapped from the handler.
func (c *Context) FormFile(name string) (*FileUpload, error) {
	if err := c.parseForm(); err != nil {
		return nil, err
	}
	mf := c.req.MultipartForm
	if mf == nil || len(mf.File[name]) == 0 {
		return nil, Errorf(http.StatusBadRequest, "no form file %q", name)
	}
	header := mf.File[name][0]
	return &FileUpload{Filename: header.Filename, Size: header.Size, Header: header}, nil
}

// MultipartForm parses and returns the whole multipart form, fields and
// files both. The form's temp files live until the request ends.
func (c *Context) MultipartForm() (*multipart.Form, error) {
	if err := c.parseForm(); err != nil {
		return nil, err
	}
	if c.req.MultipartForm == nil {
		return nil, Errorf(http.StatusBadRequest, "request body is not a multipart form")
	}
	return c.req.MultipartForm, nil
}

// parseForm parses the body once and caches the outcome, so every form
// accessor sees the same values or the same error.
func (c *Context) parseForm() error {
	if c.formParsed {
		return c.formErr
	}
	if c.bodyConsumed {
		return ErrBodyConsumed
	}
	c.formParsed = true
	c.bodyConsumed = true

	ct, _, _ := mime.ParseMediaType(c.req.Header.Get("Content-Type"))
	var err error
	if ct == "multipart/form-data" {
		err = c.req.ParseMultipartForm(defaultMultipartMemory)
	} else {
		err = c.req.ParseForm()
	}
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			// Keep the original error so the terminal maps it to 413.
			c.formErr = err
		} else {
			c.formErr = Errorf(http.StatusBadRequest, "malformed form body: %v", err)
		}
	}
	return c.formErr
}
