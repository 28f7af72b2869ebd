package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"nutrifit-backend/internal/fault"
	"nutrifit-backend/internal/request"
)

type bodyKind int

const (
	bodyOther bodyKind = iota
	bodyJSON
	bodyForm
)

// BodyDecoder parses JSON and urlencoded bodies of at most limit bytes into
// the request context. Other content types pass through unread.
func BodyDecoder(limit int64, parameterLimit int) Stage {
	return Stage{
		Name: "body-decoder",
		Run: func(w http.ResponseWriter, r *http.Request, next Next) error {
			if !hasBody(r) {
				return next(w, r)
			}
			mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
			if err != nil {
				return next(w, r)
			}
			kind := kindOf(mediaType)
			if kind == bodyOther {
				return next(w, r)
			}
			if cs := strings.ToLower(strings.TrimSpace(params["charset"])); cs != "" && cs != "utf-8" && cs != "utf8" {
				return fault.Payload(http.StatusUnsupportedMediaType, fault.ErrUnsupportedCharset,
					fmt.Sprintf("unsupported charset %q", strings.ToUpper(cs)))
			}

			raw, err := readBody(r, limit)
			if err != nil {
				return err
			}

			var parsed any
			switch kind {
			case bodyJSON:
				parsed, err = decodeJSON(raw)
			case bodyForm:
				parsed, err = parseForm(string(raw), parameterLimit)
			}
			if err != nil {
				return err
			}

			if rc := request.From(r.Context()); rc != nil {
				rc.Body = parsed
				rc.Raw = raw
			}
			r.Body = io.NopCloser(bytes.NewReader(raw))
			return next(w, r)
		},
	}
}

func hasBody(r *http.Request) bool {
	if r.Body == nil || r.Body == http.NoBody {
		return false
	}
	return r.ContentLength > 0 || (r.ContentLength < 0 && len(r.TransferEncoding) > 0)
}

func kindOf(mediaType string) bodyKind {
	switch {
	case mediaType == "application/json":
		return bodyJSON
	case strings.HasPrefix(mediaType, "application/") && strings.HasSuffix(mediaType, "+json"):
		return bodyJSON
	case mediaType == "application/x-www-form-urlencoded":
		return bodyForm
	default:
		return bodyOther
	}
}

func tooLarge() *fault.Fault {
	return fault.Payload(http.StatusRequestEntityTooLarge, fault.ErrPayloadTooLarge, "request entity too large")
}

// readBody reads at most limit bytes. A declared or actual size above limit
// is a 413; the body is not read further.
func readBody(r *http.Request, limit int64) ([]byte, error) {
	if r.ContentLength > limit {
		return nil, tooLarge()
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		return nil, fault.Payload(http.StatusBadRequest, err, "request aborted")
	}
	if int64(len(raw)) > limit {
		return nil, tooLarge()
	}
	return raw, nil
}

// decodeJSON accepts only objects and arrays at the top level. Numbers stay
// json.Number so re-encoding reproduces them exactly.
func decodeJSON(raw []byte) (any, error) {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	if len(trimmed) == 0 {
		return map[string]any{}, nil
	}
	if trimmed[0] != '{' && trimmed[0] != '[' {
		return nil, fault.Payload(http.StatusBadRequest, fault.ErrMalformedBody,
			fmt.Sprintf("Unexpected token %q in JSON at position 0", trimmed[0]))
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fault.Payload(http.StatusBadRequest, errors.Join(fault.ErrMalformedBody, err), "invalid JSON body: "+err.Error())
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fault.Payload(http.StatusBadRequest, fault.ErrMalformedBody, "invalid JSON body: trailing data after top-level value")
	}
	return v, nil
}
