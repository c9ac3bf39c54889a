package catalog

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadPrices(t *testing.T) {
	rows, err := ReadPrices(strings.NewReader("code,price\nA,50\n b, 35\n"))
	require.NoError(t, err)
	require.Equal(t, []PriceRow{{"a", 50}, {"b", 35}}, rows)
}

func TestReadPricesErrors(t *testing.T) {
	cases := map[string]string{
		"empty":         "",
		"bad header":    "sku,price\na,1\n",
		"bad price":     "code,price\na,fifty\n",
		"negative":      "code,price\na,-1\n",
		"missing field": "code,price\na\n",
		"inner space":   "code,price\ngift card,10\n",
		"control char":  "code,price\ngift\tcard,10\n",
		"too long":      "code,price\n" + strings.Repeat("x", 65) + ",10\n",
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ReadPrices(strings.NewReader(input))
			require.Error(t, err)
		})
	}
}

func TestReadOffers(t *testing.T) {
	rows, err := ReadOffers(strings.NewReader("code,amount,offerprice\na,3,140\nB,2,60\n"))
	require.NoError(t, err)
	require.Equal(t, []OfferRow{{"a", 3, 140}, {"b", 2, 60}}, rows)

	_, err = ReadOffers(strings.NewReader("code,amount,offerprice\na,0,140\n"))
	require.Error(t, err)
}

func TestSeed(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, PricesFile), []byte("code,price\na,50\nc,25\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, OffersFile), []byte("code,amount,offerprice\na,3,140\n"), 0o600))

	store := NewMemoryStore()
	res, err := Seed(context.Background(), store, dir)
	require.NoError(t, err)
	require.Equal(t, SeedResult{Prices: 2, Offers: 1}, res)

	rec, err := store.Lookup(context.Background(), "a")
	require.NoError(t, err)
	require.NotNil(t, rec.Offer)
	require.Equal(t, 3, rec.Offer.BundleQuantity)
}

func TestSeedWithoutOffersFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, PricesFile), []byte("code,price\nd,12\n"), 0o600))

	res, err := Seed(context.Background(), NewMemoryStore(), dir)
	require.NoError(t, err)
	require.Equal(t, SeedResult{Prices: 1}, res)
}

func TestSeedRequiresPricesFile(t *testing.T) {
	_, err := Seed(context.Background(), NewMemoryStore(), t.TempDir())
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestSeedBundledData(t *testing.T) {
	store := NewMemoryStore()
	res, err := Seed(context.Background(), store, filepath.Join("..", "..", "data"))
	require.NoError(t, err)
	require.Positive(t, res.Prices)
}

func TestSeedRejectsCodesCheckoutCannotPrice(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, PricesFile), []byte("code,price\na,50\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, OffersFile), []byte("code,amount,offerprice\ngift card,2,30\n"), 0o600))

	_, err := Seed(context.Background(), NewMemoryStore(), dir)
	require.ErrorContains(t, err, "line 2")
}

func TestSeedRejectsOrphanOffers(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, PricesFile), []byte("code,price\na,50\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, OffersFile), []byte("code,amount,offerprice\nz,2,30\n"), 0o600))

	_, err := Seed(context.Background(), NewMemoryStore(), dir)
	require.ErrorIs(t, err, ErrOrphanOffer)
}
