// Package export parses the Snapchat memories HTML export into memory records.
package export

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// MediaType is the declared kind of a memory, as spelled in the export.
type MediaType string

const (
	MediaImage MediaType = "Image"
	MediaVideo MediaType = "Video"
)

// MemoryRecord is one row of the memories table. Records are recreated fresh
// every run by re-parsing the export; only outcomes are persisted, keyed by SID.
type MemoryRecord struct {
	// SID is the stable unique identifier, taken from the download URL.
	SID string
	// Date is the export's raw timestamp string, e.g. "2025-10-16 19:47:03 UTC".
	Date      string
	MediaType MediaType
	// Location is the raw coordinate string, e.g.
	// "Latitude, Longitude: 42.438072, -82.91975". May be empty.
	Location    string
	DownloadURL string
}

// IsVideo reports whether the record's declared media type is video.
func (r MemoryRecord) IsVideo() bool {
	return strings.EqualFold(string(r.MediaType), string(MediaVideo))
}

// ShortSID returns the 8-character SID prefix used in canonical filenames.
func (r MemoryRecord) ShortSID() string {
	if len(r.SID) > 8 {
		return r.SID[:8]
	}
	return r.SID
}

// The export embeds the download link in an onclick handler:
// onclick="downloadMemories('URL', this, true)".
var downloadURLPattern = regexp.MustCompile(`downloadMemories\('(.+?)',\s*this,\s*(?:true|false)\)`)

// ParseFile reads and parses a memories_history.html export.
func ParseFile(path string) ([]MemoryRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open export: %w", err)
	}
	defer file.Close()

	doc, err := goquery.NewDocumentFromReader(file)
	if err != nil {
		return nil, fmt.Errorf("parse export html: %w", err)
	}
	return parseDocument(doc), nil
}

// Parse parses export HTML from a string. Used by tests and by callers that
// already hold the document in memory.
func Parse(html string) ([]MemoryRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse export html: %w", err)
	}
	return parseDocument(doc), nil
}

func parseDocument(doc *goquery.Document) []MemoryRecord {
	var records []MemoryRecord

	doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		record := MemoryRecord{}

		row.Find("td").Each(func(col int, cell *goquery.Selection) {
			text := strings.TrimSpace(cell.Text())
			if text == "" || text == "Download" || text == "Downloaded" {
				text = ""
			}
			switch col {
			case 0:
				record.Date = text
			case 1:
				record.MediaType = MediaType(text)
			case 2:
				record.Location = text
			}
		})

		row.Find("a").EachWithBreak(func(_ int, link *goquery.Selection) bool {
			onclick, _ := link.Attr("onclick")
			if match := downloadURLPattern.FindStringSubmatch(onclick); match != nil {
				record.DownloadURL = match[1]
				return false
			}
			return true
		})

		// Malformed rows (header rows, rows without a link or date) are
		// dropped without comment.
		if record.DownloadURL == "" || record.Date == "" {
			return
		}
		sid, ok := sidFromURL(record.DownloadURL)
		if !ok {
			return
		}
		record.SID = sid
		records = append(records, record)
	})

	return records
}

func sidFromURL(raw string) (string, bool) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	sid := parsed.Query().Get("sid")
	if sid == "" {
		return "", false
	}
	return sid, true
}
