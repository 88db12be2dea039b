package extract

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"pricesync/internal/price"
)

// Table is the outcome of reading the history table out of a rendered page.
// Reason is set when the page had no usable table; that is not an error.
type Table struct {
	Headers []string
	Rows    []price.RawRow
	// Skipped counts body rows whose cell count did not match the headers.
	Skipped int
	Reason  string
}

// ParseTable finds the container with id containerID, takes its
// "table.kurs-table" (or first table) and reads one RawRow per body row,
// keyed by the header cells.
func ParseTable(html, containerID string) (Table, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Table{}, fmt.Errorf("parse html: %w", err)
	}

	container := doc.Find("#" + containerID).First()
	if container.Length() == 0 {
		return Table{Reason: fmt.Sprintf("container #%s not found", containerID)}, nil
	}

	table := container.Find("table.kurs-table").First()
	if table.Length() == 0 {
		table = container.Find("table").First()
	}
	if table.Length() == 0 {
		return Table{Reason: "no table inside container"}, nil
	}

	var out Table
	table.Find("thead th").Each(func(_ int, th *goquery.Selection) {
		out.Headers = append(out.Headers, strings.TrimSpace(th.Text()))
	})
	if len(out.Headers) == 0 {
		out.Reason = "table has no header cells"
		return out, nil
	}

	tbody := table.Find("tbody").First()
	if tbody.Length() == 0 {
		out.Reason = "table has no body"
		return out, nil
	}

	tbody.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("td")
		if cells.Length() != len(out.Headers) {
			out.Skipped++
			return
		}
		row := make(price.RawRow, 0, len(out.Headers))
		cells.Each(func(i int, td *goquery.Selection) {
			row = append(row, price.Cell{Header: out.Headers[i], Value: strings.TrimSpace(td.Text())})
		})
		out.Rows = append(out.Rows, row)
	})
	return out, nil
}
