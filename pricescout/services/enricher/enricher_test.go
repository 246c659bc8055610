package enricher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"pricescout/pricescout/config"
	"pricescout/pricescout/services/browser/browsertest"
	"pricescout/pricescout/services/extractor"
	"pricescout/pricescout/utils/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func detailPage(image string) string {
	return fmt.Sprintf(`<html><body><img class="ui-pdp-image ui-pdp-gallery__figure__image" src="%s"></body></html>`, image)
}

func strategy(t *testing.T) extractor.Strategy {
	t.Helper()
	sites, err := config.LoadSites("")
	require.NoError(t, err)
	s, err := extractor.ForSite(sites, "mercadolibre_ar")
	require.NoError(t, err)
	return s
}

func TestEnrich_FillsImagesInOrder(t *testing.T) {
	conn := &browsertest.Connector{
		Serve: func(ctx context.Context, url string) (string, error) {
			return detailPage(url + ".webp"), nil
		},
	}
	sess, err := conn.Connect(context.Background())
	require.NoError(t, err)

	in := []types.Listing{
		{Price: 10, DetailURL: "https://item/1"},
		{Price: 20, DetailURL: "https://item/2"},
		{Price: 30, DetailURL: "https://item/3"},
	}
	out, errs := Enrich(context.Background(), sess, strategy(t), in, time.Second)

	require.Len(t, out, 3)
	for i, l := range out {
		assert.Equal(t, in[i].Price, l.Price)
		assert.Equal(t, in[i].DetailURL+".webp", l.ImageURL)
	}
	assert.Zero(t, Failures(errs))
	assert.Empty(t, in[0].ImageURL, "input is not mutated")
	assert.Equal(t, 3, conn.PageOpens())
	assert.Equal(t, 3, conn.PageCloses())
}

func TestEnrich_FailureLeavesImageEmpty(t *testing.T) {
	conn := &browsertest.Connector{
		Serve: func(ctx context.Context, url string) (string, error) {
			switch {
			case strings.HasSuffix(url, "/broken"):
				return "", errors.New("net::ERR_CONNECTION_RESET")
			case strings.HasSuffix(url, "/noimage"):
				return "<html><body><p>gone</p></body></html>", nil
			}
			return detailPage("https://img/ok.webp"), nil
		},
	}
	sess, err := conn.Connect(context.Background())
	require.NoError(t, err)

	in := []types.Listing{
		{Price: 1, DetailURL: "https://item/broken"},
		{Price: 2, DetailURL: "https://item/ok"},
		{Price: 3, DetailURL: "https://item/noimage"},
		{Price: 4},
	}
	out, errs := Enrich(context.Background(), sess, strategy(t), in, time.Second)

	require.Len(t, out, 4)
	assert.Empty(t, out[0].ImageURL)
	assert.Equal(t, "https://img/ok.webp", out[1].ImageURL)
	assert.Empty(t, out[2].ImageURL)
	assert.Empty(t, out[3].ImageURL)

	assert.Equal(t, 3, Failures(errs))
	assert.NoError(t, errs[1])
	for _, i := range []int{0, 2, 3} {
		assert.ErrorIs(t, errs[i], types.ErrImageFetch)
	}
	assert.Equal(t, conn.PageOpens(), conn.PageCloses(), "every opened page is closed")
}

func TestEnrich_Empty(t *testing.T) {
	out, errs := Enrich(context.Background(), nil, nil, nil, time.Second)
	assert.Empty(t, out)
	assert.Empty(t, errs)
}

type explodingImages struct {
	extractor.Strategy
}

func (e explodingImages) ParseImage(html string) (string, error) {
	if strings.Contains(html, "boom") {
		panic("image selector exploded")
	}
	return e.Strategy.ParseImage(html)
}

func TestEnrich_PanicBecomesImageError(t *testing.T) {
	conn := &browsertest.Connector{
		Serve: func(ctx context.Context, url string) (string, error) {
			if strings.HasSuffix(url, "/2") {
				return detailPage("https://img/boom.webp"), nil
			}
			return detailPage(url + ".webp"), nil
		},
	}
	sess, err := conn.Connect(context.Background())
	require.NoError(t, err)

	in := []types.Listing{
		{Price: 10, DetailURL: "https://item/1"},
		{Price: 20, DetailURL: "https://item/2"},
		{Price: 30, DetailURL: "https://item/3"},
	}
	out, errs := Enrich(context.Background(), sess, explodingImages{strategy(t)}, in, time.Second)

	require.Len(t, out, 3)
	assert.Equal(t, "https://item/1.webp", out[0].ImageURL)
	assert.Empty(t, out[1].ImageURL)
	assert.Equal(t, "https://item/3.webp", out[2].ImageURL)
	assert.Equal(t, 1, Failures(errs))
	assert.ErrorIs(t, errs[1], types.ErrImageFetch)
	assert.ErrorContains(t, errs[1], "panic")
	assert.Equal(t, conn.PageOpens(), conn.PageCloses())
}
