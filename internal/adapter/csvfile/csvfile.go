// Package csvfile reads and writes the delimited tables the climate projections
// are delivered in.
package csvfile

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/couchcryptid/minesite-climate-service/internal/domain"
)

const bom = "\ufeff"

// ReadTable loads a CSV file with a header row. A missing or unparsable file is
// reported as domain.ErrDataUnavailable.
func ReadTable(path string) (domain.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.Table{}, fmt.Errorf("%w: open %s: %v", domain.ErrDataUnavailable, path, err)
	}
	defer f.Close()

	t, err := DecodeTable(f)
	if err != nil {
		return domain.Table{}, fmt.Errorf("%w: %s: %v", domain.ErrDataUnavailable, path, err)
	}
	t.Source = path
	return t, nil
}

// DecodeTable parses CSV from r. Every record must have as many fields as the header.
func DecodeTable(r io.Reader) (domain.Table, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return domain.Table{}, errors.New("empty file")
	}
	if err != nil {
		return domain.Table{}, fmt.Errorf("read header: %w", err)
	}
	header[0] = strings.TrimPrefix(header[0], bom)

	rows, err := cr.ReadAll()
	if err != nil {
		return domain.Table{}, fmt.Errorf("read records: %w", err)
	}
	return domain.Table{Columns: header, Rows: rows}, nil
}

// WriteTable encodes t as CSV, header first.
func WriteTable(w io.Writer, t domain.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("write records: %w", err)
	}
	return nil
}

// ReadSites loads the minesite point file. It needs a Name column; Latitude and
// Longitude are optional per row so that missing positions can be geocoded.
func ReadSites(path string) ([]domain.Site, error) {
	t, err := ReadTable(path)
	if err != nil {
		return nil, err
	}
	sites, err := SitesFromTable(t)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrDataUnavailable, path, err)
	}
	return sites, nil
}

// SitesFromTable converts a Name/Latitude/Longitude table into sites. Names are
// normalized to underscore identifiers so they match melted minesite columns.
func SitesFromTable(t domain.Table) ([]domain.Site, error) {
	nameCol, latCol, lonCol := -1, -1, -1
	for i, c := range t.Columns {
		switch strings.ToLower(strings.TrimSpace(c)) {
		case "name", "minesite":
			nameCol = i
		case "latitude", "lat":
			latCol = i
		case "longitude", "lon", "long":
			lonCol = i
		}
	}
	if nameCol < 0 {
		return nil, errors.New("no Name column")
	}

	sites := make([]domain.Site, 0, len(t.Rows))
	for r, row := range t.Rows {
		name := strings.TrimSpace(row[nameCol])
		if name == "" {
			continue
		}
		lat, err := parseCoordinate(row, latCol)
		if err != nil {
			return nil, fmt.Errorf("row %d latitude: %w", r+1, err)
		}
		lon, err := parseCoordinate(row, lonCol)
		if err != nil {
			return nil, fmt.Errorf("row %d longitude: %w", r+1, err)
		}
		id := domain.SiteID(name)
		sites = append(sites, domain.Site{
			Name:      id,
			Label:     domain.DisplayName(id),
			Latitude:  lat,
			Longitude: lon,
		})
	}
	return sites, nil
}

func parseCoordinate(row []string, col int) (float64, error) {
	if col < 0 || col >= len(row) {
		return 0, nil
	}
	s := strings.TrimSpace(row[col])
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}
