package repository

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"PriceCast/internal/domain/models"
	pkghttp "PriceCast/pkg/http"
	applogger "PriceCast/pkg/logger"
	"PriceCast/pkg/util"
)

// YahooPriceSource pulls daily closes from the Yahoo Finance chart API.
type YahooPriceSource struct {
	baseURL string
	client  *pkghttp.Client
	l       *applogger.Logger
}

func NewYahooPriceSource(baseURL string, client *pkghttp.Client, l *applogger.Logger) *YahooPriceSource {
	if l == nil {
		l = applogger.Nop()
	}
	return &YahooPriceSource{baseURL: strings.TrimRight(baseURL, "/"), client: client, l: l}
}

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta struct {
		Symbol    string `json:"symbol"`
		GMTOffset int64  `json:"gmtoffset"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Close []*float64 `json:"close"`
		} `json:"quote"`
	} `json:"indicators"`
}

func (s *YahooPriceSource) DailyCloses(ctx context.Context, symbol string, from, to time.Time) (models.PriceSeries, error) {
	opts := &pkghttp.RequestOptions{
		URL: s.baseURL + "/v8/finance/chart/" + url.PathEscape(symbol),
		QueryParams: map[string][]string{
			"period1":  {strconv.FormatInt(util.StartOfDay(from).Unix(), 10)},
			"period2":  {strconv.FormatInt(util.StartOfDay(to).AddDate(0, 0, 1).Unix(), 10)},
			"interval": {"1d"},
			"events":   {"history"},
		},
	}

	var resp chartResponse
	if err := s.client.GetJSON(ctx, opts, &resp); err != nil {
		var se *pkghttp.StatusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			return models.PriceSeries{}, fmt.Errorf("%s: %w", symbol, models.ErrSymbolNotFound)
		}
		s.l.Error("yahoo chart request failed", applogger.String("symbol", symbol), applogger.Error(err))
		return models.PriceSeries{}, fmt.Errorf("yahoo chart %s: %w", symbol, err)
	}
	if resp.Chart.Error != nil {
		return models.PriceSeries{}, fmt.Errorf("%s: %s: %w", symbol, resp.Chart.Error.Description, models.ErrSymbolNotFound)
	}
	if len(resp.Chart.Result) == 0 {
		return models.PriceSeries{}, fmt.Errorf("%s: %w", symbol, models.ErrSymbolNotFound)
	}

	series := parseChart(symbol, resp.Chart.Result[0])
	if series.Len() == 0 {
		return models.PriceSeries{}, fmt.Errorf("%s: %w", symbol, models.ErrSymbolNotFound)
	}
	s.l.Debug("yahoo closes fetched", applogger.String("symbol", symbol), applogger.Int("points", series.Len()))
	return series, nil
}

// parseChart keeps one close per exchange-local day; nulls and non-finite
// values are dropped and a later bar for the same day replaces the earlier.
func parseChart(symbol string, r chartResult) models.PriceSeries {
	series := models.PriceSeries{Symbol: symbol}
	if len(r.Indicators.Quote) == 0 {
		return series
	}
	closes := r.Indicators.Quote[0].Close
	for i, ts := range r.Timestamp {
		if i >= len(closes) || closes[i] == nil {
			continue
		}
		c := *closes[i]
		if math.IsNaN(c) || math.IsInf(c, 0) {
			continue
		}
		day := util.StartOfDay(time.Unix(ts+r.Meta.GMTOffset, 0).UTC())
		if last, ok := series.Last(); ok {
			if !day.After(last.Date) {
				if day.Equal(last.Date) {
					series.Points[len(series.Points)-1].Close = c
				}
				continue
			}
		}
		series.Points = append(series.Points, models.PricePoint{Date: day, Close: c})
	}
	return series
}
