// Package input loads the venue batch that the pipeline processes.
package input

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/venueminer/venueminer/internal/venue"
)

// Options controls batch parsing.
type Options struct {
	// Delimiter separates fields; defaults to ','.
	Delimiter rune
}

// Column names recognized in a batch header, normalized to lower case.
var knownColumns = map[string]bool{
	"id":      true,
	"name":    true,
	"adresse": true,
	"address": true,
	"url":     true,
}

var requiredColumns = []string{"name", "adresse", "url"}

// LoadBatch parses a venue batch. The header must carry the named columns
// `name`, `adresse` and `URL` (matched case-insensitively; an optional `id`
// column overrides generated IDs). Any unknown or missing required header
// rejects the whole batch before anything is scheduled.
func LoadBatch(r io.Reader, opts Options) ([]venue.Venue, error) {
	cr := csv.NewReader(r)
	if opts.Delimiter != 0 {
		cr.Comma = opts.Delimiter
	}
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: empty batch", venue.ErrBatchSchema)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read header: %v", venue.ErrBatchSchema, err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF")))
		if !knownColumns[name] {
			return nil, fmt.Errorf("%w: unknown column %q", venue.ErrBatchSchema, h)
		}
		if _, dup := cols[name]; dup {
			return nil, fmt.Errorf("%w: duplicate column %q", venue.ErrBatchSchema, h)
		}
		cols[name] = i
	}
	// French batches say "adresse", others "address"; either satisfies the
	// address requirement.
	if i, ok := cols["address"]; ok {
		if _, both := cols["adresse"]; both {
			return nil, fmt.Errorf("%w: both adresse and address columns present", venue.ErrBatchSchema)
		}
		cols["adresse"] = i
	}
	for _, req := range requiredColumns {
		if _, ok := cols[req]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", venue.ErrBatchSchema, req)
		}
	}

	var venues []venue.Venue
	line := 1
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("batch row %d: %w", line, err)
		}
		if blankRecord(record) {
			continue
		}
		v := venue.Venue{
			Name:    field(record, cols, "name"),
			Address: field(record, cols, "adresse"),
			PageURL: field(record, cols, "url"),
		}
		if v.Name == "" || v.PageURL == "" {
			return nil, fmt.Errorf("batch row %d: name and URL are required", line)
		}
		if id := field(record, cols, "id"); id != "" {
			v.ID = id
		} else {
			v.ID = uuid.NewString()
		}
		venues = append(venues, v)
	}
	return venues, nil
}

// LoadBatchFile opens and parses a batch file.
func LoadBatchFile(path string, opts Options) ([]venue.Venue, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open batch file: %w", err)
	}
	defer f.Close()
	return LoadBatch(f, opts)
}

func field(record []string, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func blankRecord(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
