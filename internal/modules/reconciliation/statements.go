package reconciliation

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Statement CSV layout: reference,utr,amount,status,date (date is 2006-01-02).
// A header row is detected and skipped.

func parseStatement(r io.Reader, name string) ([]BankRecord, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	var out []BankRecord
	line := 0
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		line++
		if len(row) < 5 {
			return nil, fmt.Errorf("parse %s line %d: expected 5 columns, got %d", name, line, len(row))
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(row[0]), "reference") {
			continue
		}
		amount, err := decimal.NewFromString(strings.TrimSpace(row[2]))
		if err != nil {
			return nil, fmt.Errorf("parse %s line %d: amount: %w", name, line, err)
		}
		date, err := time.Parse("2006-01-02", strings.TrimSpace(row[4]))
		if err != nil {
			return nil, fmt.Errorf("parse %s line %d: date: %w", name, line, err)
		}
		out = append(out, BankRecord{
			Reference: strings.TrimSpace(row[0]),
			UTR:       strings.TrimSpace(row[1]),
			Amount:    amount,
			Status:    strings.ToUpper(strings.TrimSpace(row[3])),
			Date:      date,
		})
	}
	return out, nil
}

func inRange(d, from, to time.Time) bool {
	return !d.Before(from) && !d.After(to)
}

// LocalDirSource reads every *.csv statement file under a directory.
type LocalDirSource struct {
	dir string
}

func NewLocalDirSource(dir string) *LocalDirSource {
	return &LocalDirSource{dir: dir}
}

func (s *LocalDirSource) Fetch(ctx context.Context, from, to time.Time) ([]BankRecord, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read statement dir %s: %w", s.dir, err)
	}

	var out []BankRecord
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path := filepath.Join(s.dir, e.Name())
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open statement %s: %w", path, err)
		}
		recs, err := parseStatement(f, e.Name())
		f.Close()
		if err != nil {
			return nil, err
		}
		for _, rec := range recs {
			if inRange(rec.Date, from, to) {
				out = append(out, rec)
			}
		}
	}
	return out, nil
}

func (s *LocalDirSource) String() string { return fmt.Sprintf("local(%s)", s.dir) }
