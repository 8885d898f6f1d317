package capability

import "errors"

// ErrPDFUnsupported is returned by UnsupportedPDFExtractor for every call.
var ErrPDFUnsupported = errors.New("pdf extraction is not configured")

// PDFExtractor extracts UTF-8 text from PDF document bytes — the seam
// spec §1 names alongside JSON/text byte-to-string extraction, and §4.5
// step 6 dispatches File requests with ContentKind Pdf through. It is
// treated as best-effort: an empty result should be surfaced as a
// failure rather than silently ingested as an empty document (spec §9).
type PDFExtractor interface {
	ExtractText(content []byte) (string, error)
}

// UnsupportedPDFExtractor is the PDFExtractor used when the ingestion
// pipeline is not configured with a real one. It fails closed rather
// than treating PDF bytes as text, since this pack carries no PDF
// parsing library; a deployment wires a real extractor (e.g. backed by
// pdfium or poppler) through the same interface.
type UnsupportedPDFExtractor struct{}

func (UnsupportedPDFExtractor) ExtractText([]byte) (string, error) {
	return "", ErrPDFUnsupported
}
