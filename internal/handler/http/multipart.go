package httphandler

import (
	"mime/multipart"

	"github.com/jgivc/quickdrop/internal/service/upload"
)

// multipartSource streams the file parts of field from a multipart body, one at a time.
type multipartSource struct {
	mr      *multipart.Reader
	field   string
	current *multipart.Part
}

func newMultipartSource(mr *multipart.Reader, field string) *multipartSource {
	return &multipartSource{mr: mr, field: field}
}

func (s *multipartSource) Next() (*upload.IncomingFile, error) {
	if s.current != nil {
		_ = s.current.Close()
		s.current = nil
	}

	for {
		part, err := s.mr.NextPart()
		if err != nil {
			return nil, err
		}

		// plain form values and other fields are ignored
		if part.FormName() != s.field || part.FileName() == "" {
			_ = part.Close()

			continue
		}

		s.current = part

		return &upload.IncomingFile{
			Name:        part.FileName(),
			ContentType: part.Header.Get("Content-Type"),
			Body:        part,
		}, nil
	}
}
