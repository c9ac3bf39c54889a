package catalog

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"
)

const (
	PricesFile = "prices.csv"
	OffersFile = "offers.csv"
)

// ReadPrices parses a "code,price" CSV with a header row.
func ReadPrices(r io.Reader) ([]PriceRow, error) {
	records, err := readCSV(r, []string{"code", "price"})
	if err != nil {
		return nil, fmt.Errorf("read prices: %w", err)
	}
	out := make([]PriceRow, 0, len(records))
	for i, rec := range records {
		price, err := strconv.ParseInt(strings.TrimSpace(rec[1]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("read prices: line %d: invalid price %q", i+2, rec[1])
		}
		row := PriceRow{Code: normalizeCode(rec[0]), Price: price}
		if err := validatePrice(row); err != nil {
			return nil, fmt.Errorf("read prices: line %d: %w", i+2, err)
		}
		out = append(out, row)
	}
	return out, nil
}

// ReadOffers parses a "code,amount,offerprice" CSV with a header row.
func ReadOffers(r io.Reader) ([]OfferRow, error) {
	records, err := readCSV(r, []string{"code", "amount", "offerprice"})
	if err != nil {
		return nil, fmt.Errorf("read offers: %w", err)
	}
	out := make([]OfferRow, 0, len(records))
	for i, rec := range records {
		amount, err := strconv.Atoi(strings.TrimSpace(rec[1]))
		if err != nil {
			return nil, fmt.Errorf("read offers: line %d: invalid amount %q", i+2, rec[1])
		}
		price, err := strconv.ParseInt(strings.TrimSpace(rec[2]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("read offers: line %d: invalid offerprice %q", i+2, rec[2])
		}
		row := OfferRow{Code: normalizeCode(rec[0]), Amount: amount, OfferPrice: price}
		if err := validateOffer(row); err != nil {
			return nil, fmt.Errorf("read offers: line %d: %w", i+2, err)
		}
		out = append(out, row)
	}
	return out, nil
}

func readCSV(r io.Reader, header []string) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(header)
	reader.TrimLeadingSpace = true
	head, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("missing header")
	}
	if err != nil {
		return nil, err
	}
	for i, want := range header {
		if !strings.EqualFold(strings.TrimSpace(head[i]), want) {
			return nil, fmt.Errorf("unexpected column %q, want %q", head[i], want)
		}
	}
	return reader.ReadAll()
}

// SeedResult reports how many rows were written by Seed.
type SeedResult struct {
	Prices int
	Offers int
}

// Seed loads prices.csv and offers.csv from dir and upserts them into w.
// Prices are written before offers. A missing offers.csv is not an error.
func Seed(ctx context.Context, w Writer, dir string) (SeedResult, error) {
	var (
		prices []PriceRow
		offers []OfferRow
	)
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		f, err := os.Open(filepath.Join(dir, PricesFile))
		if err != nil {
			return err
		}
		defer f.Close()
		prices, err = ReadPrices(f)
		return err
	})
	g.Go(func() error {
		f, err := os.Open(filepath.Join(dir, OffersFile))
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		if err != nil {
			return err
		}
		defer f.Close()
		offers, err = ReadOffers(f)
		return err
	})
	if err := g.Wait(); err != nil {
		return SeedResult{}, err
	}

	var res SeedResult
	for _, row := range prices {
		if err := w.UpsertPrice(ctx, row); err != nil {
			return res, err
		}
		res.Prices++
	}
	for _, row := range offers {
		if err := w.UpsertOffer(ctx, row); err != nil {
			return res, err
		}
		res.Offers++
	}
	return res, nil
}
