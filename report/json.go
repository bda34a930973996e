package report

import (
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/sugawarayuuta/sonnet"
)

// ErrKeyEncoding reports a key that JSON cannot carry byte for byte.
var ErrKeyEncoding = errors.New("report: key is not valid UTF-8")

// Document is the JSON shape written by WriteJSON.
type Document struct {
	Source   string   `json:"source,omitempty"`
	Strategy string   `json:"strategy,omitempty"`
	Capacity int      `json:"capacity,omitempty"`
	Rows     uint64   `json:"rows"`
	Digest   string   `json:"digest"`
	Results  []Result `json:"results"`
}

// WriteJSON writes doc with its Rows and Digest filled from doc.Results.
// Keys must be valid UTF-8; JSON strings would otherwise replace the bad
// bytes and the document could no longer be verified by ReadJSON.
func WriteJSON(w io.Writer, doc Document) error {
	for i := range doc.Results {
		if !utf8.ValidString(doc.Results[i].Key) {
			return fmt.Errorf("%w: %q", ErrKeyEncoding, doc.Results[i].Key)
		}
	}
	doc.Rows = Rows(doc.Results)
	doc.Digest = Digest(doc.Results)
	if doc.Results == nil {
		doc.Results = []Result{}
	}
	buf, err := sonnet.Marshal(doc)
	if err != nil {
		return fmt.Errorf("report: encode json: %w", err)
	}
	buf = append(buf, '\n')
	_, err = w.Write(buf)
	return err
}

// ReadJSON decodes a Document written by WriteJSON and verifies its digest.
func ReadJSON(r io.Reader) (Document, error) {
	var doc Document
	buf, err := io.ReadAll(r)
	if err != nil {
		return doc, fmt.Errorf("report: read json: %w", err)
	}
	if err := sonnet.Unmarshal(buf, &doc); err != nil {
		return doc, fmt.Errorf("report: decode json: %w", err)
	}
	if got := Digest(doc.Results); got != doc.Digest {
		return doc, fmt.Errorf("report: digest mismatch: have %s, computed %s", doc.Digest, got)
	}
	return doc, nil
}
