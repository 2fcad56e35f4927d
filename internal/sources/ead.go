package sources

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"strings"
)

// xmlText collects the character data of an element and all of its
// descendants, so mixed content such as <emph> inside a title survives.
type xmlText string

func (t *xmlText) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var b strings.Builder
	depth := 1
	for depth > 0 {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch tok := tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		case xml.CharData:
			b.Write(tok)
		}
	}
	*t = xmlText(b.String())
	return nil
}

type eadDocument struct {
	XMLName xml.Name `xml:"ead"`
	EADID   xmlText  `xml:"eadheader>eadid"`
	Did     struct {
		Origination []struct {
			Label    string    `xml:"label,attr"`
			PersName []xmlText `xml:"persname"`
			CorpName []xmlText `xml:"corpname"`
		} `xml:"origination"`
		UnitTitle []xmlText `xml:"unittitle"`
		UnitDate  []struct {
			Normal string `xml:"normal,attr"`
		} `xml:"unitdate"`
	} `xml:"archdesc>did"`
}

// ErrNotEAD is returned for well-formed XML whose root is not <ead>.
var ErrNotEAD = errors.New("document is not an EAD finding aid")

// ParseEAD extracts metadata from an EAD finding aid. The creator is the
// first personal or corporate name of the origination labelled "Creator",
// the date is the normalized form of the collection date and the target is
// the eadid.
func ParseEAD(data []byte) (Metadata, error) {
	var doc eadDocument
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = true
	if err := dec.Decode(&doc); err != nil {
		var unexpected xml.UnmarshalError
		if errors.As(err, &unexpected) {
			return Metadata{}, ErrNotEAD
		}
		return Metadata{}, fmt.Errorf("parse EAD: %w", err)
	}

	var m Metadata
	for _, o := range doc.Did.Origination {
		if o.Label != "Creator" {
			continue
		}
		switch {
		case len(o.PersName) > 0:
			m.Creator = string(o.PersName[0])
		case len(o.CorpName) > 0:
			m.Creator = string(o.CorpName[0])
		}
		if m.Creator != "" {
			break
		}
	}
	if len(doc.Did.UnitTitle) > 0 {
		m.Title = string(doc.Did.UnitTitle[0])
	}
	if len(doc.Did.UnitDate) > 0 {
		m.Date = strings.TrimSpace(doc.Did.UnitDate[0].Normal)
	}
	m.Target = strings.TrimSpace(string(doc.EADID))

	if strings.TrimSpace(m.Title) == "" {
		return m, errors.New("EAD finding aid has no archdesc unittitle")
	}
	if m.Target == "" {
		return m, errors.New("EAD finding aid has no eadid")
	}
	return m, nil
}

// EADError reports a finding aid that could not be read.
type EADError struct {
	Location string
	Err      error
}

func (e *EADError) Error() string {
	return fmt.Sprintf("%s: %v", e.Location, e.Err)
}

func (e *EADError) Unwrap() error { return e.Err }

// ErrorKind classifies the error for batch reporting.
func (e *EADError) ErrorKind() string { return "format" }

// ParseEADDocuments parses every document. Malformed documents are returned
// as errors alongside the metadata of the documents that parsed.
func ParseEADDocuments(docs []Document) ([]Metadata, []error) {
	var (
		out  []Metadata
		errs []error
	)
	for _, doc := range docs {
		m, err := ParseEAD(doc.Data)
		if err != nil {
			errs = append(errs, &EADError{Location: doc.Location, Err: err})
			continue
		}
		out = append(out, m)
	}
	return out, errs
}
