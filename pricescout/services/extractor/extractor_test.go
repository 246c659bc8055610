package extractor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"pricescout/pricescout/config"
	"pricescout/pricescout/services/browser/browsertest"
	"pricescout/pricescout/utils/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadFixture(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("failed to read fixture %s: %v", name, err)
	}
	return string(data)
}

func mercadoLibre(t *testing.T) *SiteStrategy {
	t.Helper()
	sites, err := config.LoadSites("")
	require.NoError(t, err)
	strategy, err := ForSite(sites, "mercadolibre_ar")
	require.NoError(t, err)
	return strategy.(*SiteStrategy)
}

func TestSearchURL_CollapsesWhitespace(t *testing.T) {
	s := mercadoLibre(t)

	got := s.SearchURL(types.ProductQuery{Name: "  taladro   percutor\t500w "})
	assert.Equal(t,
		"https://listado.mercadolibre.com.ar/taladro-percutor-500w_OrderId_PRICE_ITEM*CONDITION_2230284_NoIndex_True",
		got)
	assert.Equal(t, got, s.SearchURL(types.ProductQuery{Name: "taladro percutor 500w"}), "must be deterministic")
}

func TestForSite_Unknown(t *testing.T) {
	_, err := ForSite(map[string]*config.SiteConfig{}, "nope")
	assert.Error(t, err)
}

func TestParseListings_Fixture(t *testing.T) {
	s := mercadoLibre(t)
	q := types.ProductQuery{Name: "taladro percutor"}

	listings, err := s.ParseListings(q, loadFixture(t, "search_results.html"))
	require.NoError(t, err)
	require.Len(t, listings, 4, "the ad card does not match the result selector")

	assert.InDelta(t, 45999.90, listings[0].Price, 0.0001)
	assert.Equal(t, "Taladro Percutor 500W", listings[0].Title)
	assert.Equal(t, "https://articulo.mercadolibre.com.ar/MLA-1001-taladro", listings[0].DetailURL)
	assert.Empty(t, listings[0].ImageURL)

	assert.Equal(t, 1234567.0, listings[1].Price)

	assert.False(t, listings[2].Available(), "card without a price is unavailable")
	assert.Equal(t, "Taladro a consultar", listings[2].Title)

	assert.Equal(t, 12000.0, listings[3].Price)
	assert.Equal(t, "taladro percutor", listings[3].Title, "falls back to the product name")
}

func TestParseListings_NoResultsIsNotAnError(t *testing.T) {
	listings, err := mercadoLibre(t).ParseListings(types.ProductQuery{Name: "zzz"}, loadFixture(t, "no_results.html"))
	require.NoError(t, err)
	assert.NotNil(t, listings)
	assert.Empty(t, listings)
}

func TestParseListings_BlankPage(t *testing.T) {
	_, err := mercadoLibre(t).ParseListings(types.ProductQuery{Name: "zzz"}, "   ")
	assert.ErrorIs(t, err, types.ErrParse)
}

func TestParseImage(t *testing.T) {
	s := mercadoLibre(t)

	src, err := s.ParseImage(loadFixture(t, "detail.html"))
	require.NoError(t, err)
	assert.Equal(t, "https://http2.mlstatic.com/D_NQ_NP_1001-O.webp", src)

	_, err = s.ParseImage(loadFixture(t, "no_results.html"))
	assert.ErrorIs(t, err, types.ErrParse)
}

func TestParsePrice(t *testing.T) {
	cases := []struct {
		name           string
		integer, cents string
		want           float64
		ok             bool
	}{
		{"integer only", "1.299", "", 1299, true},
		{"with cents", "45.999", "90", 45999.90, true},
		{"padded", " 7 ", " 05 ", 7.05, true},
		{"bad cents default to zero", "10", "xx", 10, true},
		{"missing integer", "", "50", 0, false},
		{"not numeric", "consultar", "", 0, false},
		{"negative", "-5", "", 0, false},
		{"exponent", "1e3", "", 0, false},
		{"hex", "0x10", "", 0, false},
		{"infinity", "Inf", "", 0, false},
		{"negative cents ignored", "12", "-5", 12, true},
		{"exponent cents ignored", "12", "1e1", 12, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ParsePrice(tc.integer, tc.cents, ".")
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.InDelta(t, tc.want, got, 0.0001)
			}
		})
	}
}

func TestFetch_NavigatesAndClosesPage(t *testing.T) {
	s := mercadoLibre(t)
	html := loadFixture(t, "search_results.html")
	conn := &browsertest.Connector{
		Serve: func(ctx context.Context, url string) (string, error) { return html, nil },
	}
	sess, err := conn.Connect(context.Background())
	require.NoError(t, err)

	q := types.ProductQuery{Name: "taladro percutor"}
	listings, err := Fetch(context.Background(), sess, s, q, time.Second)
	require.NoError(t, err)
	assert.Len(t, listings, 4)
	assert.Equal(t, []string{s.SearchURL(q)}, sess.(*browsertest.Session).Visited())
	assert.Equal(t, 1, conn.PageOpens())
	assert.Equal(t, 1, conn.PageCloses())
}

func TestFetch_NavigationFailure(t *testing.T) {
	conn := &browsertest.Connector{
		Serve: func(ctx context.Context, url string) (string, error) {
			return "", errors.New("net::ERR_NAME_NOT_RESOLVED")
		},
	}
	sess, err := conn.Connect(context.Background())
	require.NoError(t, err)

	_, err = Fetch(context.Background(), sess, mercadoLibre(t), types.ProductQuery{Name: "x"}, time.Second)
	assert.ErrorIs(t, err, types.ErrNavigation)
	assert.Equal(t, 1, conn.PageCloses())
}

func TestFetch_TimeoutIsNavigationError(t *testing.T) {
	conn := &browsertest.Connector{Delay: time.Second}
	sess, err := conn.Connect(context.Background())
	require.NoError(t, err)

	start := time.Now()
	_, err = Fetch(context.Background(), sess, mercadoLibre(t), types.ProductQuery{Name: "x"}, 20*time.Millisecond)
	assert.ErrorIs(t, err, types.ErrNavigation)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}
