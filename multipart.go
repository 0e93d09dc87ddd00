package resilient

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
)

// MultipartForm is a fully-encoded multipart/form-data body, built by
// NewMultipartForm or promoted from a map by asMultipartForm (spec §3
// "multipart form" body kind, §4.6/§4.8 form()). Its Content-Type (including
// boundary) travels with the value itself rather than through the header
// pipeline, since the boundary is only known once encoding is finished.
type MultipartForm struct {
	buf         bytes.Buffer
	contentType string
}

// FormFile is a single file part for NewMultipartForm/Form (spec §3).
type FormFile struct {
	FieldName string
	FileName  string
	Content   io.Reader
}

// NewMultipartForm encodes fields (scalar values, stringified) and files into
// a ready-to-send multipart body. A field whose value is nil is omitted
// entirely, matching the "omits null/undefined fields" requirement of spec
// §4.8's form() rather than encoding an empty part.
func NewMultipartForm(fields map[string]any, files ...FormFile) (*MultipartForm, error) {
	form := &MultipartForm{}
	w := multipart.NewWriter(&form.buf)

	for key, val := range fields {
		if val == nil {
			continue
		}
		if err := w.WriteField(key, fmt.Sprint(val)); err != nil {
			return nil, fmt.Errorf("resilient: failed to write form field %q: %w", key, err)
		}
	}

	for _, f := range files {
		part, err := w.CreateFormFile(f.FieldName, f.FileName)
		if err != nil {
			return nil, fmt.Errorf("resilient: failed to create form file %q: %w", f.FieldName, err)
		}
		if _, err := io.Copy(part, f.Content); err != nil {
			return nil, fmt.Errorf("resilient: failed to copy form file %q: %w", f.FieldName, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("resilient: failed to close multipart writer: %w", err)
	}
	form.contentType = w.FormDataContentType()
	return form, nil
}

// asMultipartForm accepts either an already-built *MultipartForm or a
// map[string]any to be promoted into one (spec §4.8 form(): "accepts either
// a multipart-form value or a mapping to be promoted into one").
func asMultipartForm(body any) (*MultipartForm, error) {
	switch v := body.(type) {
	case *MultipartForm:
		return v, nil
	case map[string]any:
		return NewMultipartForm(v)
	default:
		return nil, fmt.Errorf("resilient: form body must be a *MultipartForm or map[string]any, got %T", body)
	}
}
