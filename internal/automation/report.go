// Package automation drives the radiology portal through a headless browser
// to generate and download a radiologist productivity report.
package automation

import (
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Payload carries the inputs for one report retrieval. Credentials are used
// for the portal login only and are never stored.
type Payload struct {
	Username  string
	Password  string
	StartDate string // MM/DD/YYYY
	EndDate   string // MM/DD/YYYY
	Debug     bool
}

// reportFileName builds the timestamped name a finished report is saved
// under, e.g. medvet_radiologist_report_01-01-2026_01-31-2026_20260130_154503.xls.
func reportFileName(startDate, endDate string, now time.Time) string {
	startSlug := strings.ReplaceAll(startDate, "/", "-")
	endSlug := strings.ReplaceAll(endDate, "/", "-")
	return fmt.Sprintf("medvet_radiologist_report_%s_%s_%s.xls",
		startSlug, endSlug, now.Format("20060102_150405"))
}

// findReportLink scans rendered page HTML for the generated report link. The
// portal labels the link with the .xls file name once generation finishes.
// Returns the link text (used to click it) and whether a link was found.
func findReportLink(html string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", false
	}

	var found string
	doc.Find("a").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := strings.TrimSpace(sel.Text())
		href, _ := sel.Attr("href")
		if strings.Contains(text, ".xls") || strings.Contains(href, ".xls") {
			found = text
			if found == "" {
				found = href
			}
			return false
		}
		return true
	})
	return found, found != ""
}
