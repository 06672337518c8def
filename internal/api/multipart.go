package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"strings"

	"github.com/cockroachdb/errors"
)

// Image is an uploaded room photo.
type Image struct {
	Filename    string
	ContentType string
	Data        io.Reader
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// roomForm encodes an optional image and the room metadata as one multipart body. The metadata
// travels as a JSON part named "room", the way a browser Blob would be sent.
func roomForm(img *Image, meta interface{}) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if img != nil {
		ct := img.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		name := img.Filename
		if name == "" {
			name = "image"
		}
		part, err := w.CreatePart(partHeader("image", name, ct))
		if err != nil {
			return nil, "", errors.Wrap(err, "creating image part")
		}
		if _, err := io.Copy(part, img.Data); err != nil {
			return nil, "", errors.Wrap(err, "writing image part")
		}
	}

	payload, err := json.Marshal(meta)
	if err != nil {
		return nil, "", errors.Wrap(err, "encoding room metadata")
	}
	part, err := w.CreatePart(partHeader("room", "blob", "application/json"))
	if err != nil {
		return nil, "", errors.Wrap(err, "creating room part")
	}
	if _, err := part.Write(payload); err != nil {
		return nil, "", errors.Wrap(err, "writing room part")
	}

	if err := w.Close(); err != nil {
		return nil, "", errors.Wrap(err, "closing multipart body")
	}
	return &buf, w.FormDataContentType(), nil
}

func partHeader(field, filename, contentType string) textproto.MIMEHeader {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(field), quoteEscaper.Replace(filename)))
	h.Set("Content-Type", contentType)
	return h
}
