// Package ubl extracts line items from UBL-flavored invoice XML.
package ubl

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strconv"
)

const (
	nsCBC = "urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2"
	nsCAC = "urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2"
)

// Line is one invoice line item. All monetary/quantity fields are kept as the
// raw strings found in the document; downstream code decides how to parse them.
type Line struct {
	LineID      string `json:"line_id"`
	Description string `json:"description"`
	Quantity    string `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	LineTotal   string `json:"line_total"`
}

// ParseError reports a malformed invoice document.
type ParseError struct {
	Source string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("parse invoice %s: %v", e.Source, e.Err)
	}
	return fmt.Sprintf("parse invoice: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

type xmlItem struct {
	Description *string `xml:"urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2 Description"`
}

type xmlPrice struct {
	PriceAmount *string `xml:"urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2 PriceAmount"`
}

type xmlInvoiceLine struct {
	InvoicedQuantity    *string   `xml:"urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2 InvoicedQuantity"`
	LineExtensionAmount *string   `xml:"urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2 LineExtensionAmount"`
	Item                *xmlItem  `xml:"urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2 Item"`
	Price               *xmlPrice `xml:"urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2 Price"`
}

// ExtractFile reads the invoice at path and extracts its lines.
func ExtractFile(path string) ([]Line, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ParseError{Source: path, Err: err}
	}
	defer f.Close()
	lines, err := Extract(f)
	if err != nil {
		return nil, &ParseError{Source: path, Err: err}
	}
	return lines, nil
}

// Extract walks the document in order and collects every cac:InvoiceLine.
// Missing scalar fields default to "" (description) or "0" (amounts); absent
// fields are tolerated on purpose, only malformed XML is an error. Line IDs
// are assigned 1-based in document order, independent of any source ID.
func Extract(r io.Reader) ([]Line, error) {
	dec := xml.NewDecoder(r)
	var lines []Line
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if start.Name.Space != nsCAC || start.Name.Local != "InvoiceLine" {
			continue
		}
		var raw xmlInvoiceLine
		if err := dec.DecodeElement(&raw, &start); err != nil {
			return nil, err
		}
		lines = append(lines, Line{
			LineID:      strconv.Itoa(len(lines) + 1),
			Description: textOf(itemDescription(raw.Item), ""),
			Quantity:    textOf(raw.InvoicedQuantity, "0"),
			UnitPrice:   textOf(priceAmount(raw.Price), "0"),
			LineTotal:   textOf(raw.LineExtensionAmount, "0"),
		})
	}
	return lines, nil
}

func itemDescription(it *xmlItem) *string {
	if it == nil {
		return nil
	}
	return it.Description
}

func priceAmount(p *xmlPrice) *string {
	if p == nil {
		return nil
	}
	return p.PriceAmount
}

func textOf(s *string, def string) string {
	if s == nil {
		return def
	}
	return *s
}
