/*
Copyright 2026

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/ashare-lab/kline-scan/series"
)

const yahooChartURL = "https://query1.finance.yahoo.com/v8/finance/chart/%s"

// YahooClient fetches daily history from the Yahoo Finance chart API.
type YahooClient struct {
	client *resty.Client
}

// NewYahooClient returns a QuoteClient backed by a fresh resty client.
func NewYahooClient() *YahooClient {
	return &YahooClient{client: resty.New()}
}

// YahooSymbol maps a six-digit A-share code to its Yahoo ticker: Shanghai
// listings (6xxxxx) get .SS, everything else .SZ.
func YahooSymbol(code string) string {
	if len(code) > 0 && code[0] == '6' {
		return code + ".SS"
	}
	return code + ".SZ"
}

// yahooChart is the relevant subset of the chart API response. Quote arrays
// use pointers because holidays come back as nulls.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// History fetches the trailing window of daily bars for an instrument code.
func (y *YahooClient) History(ctx context.Context, code, window string) ([]series.Bar, error) {
	symbol := YahooSymbol(code)
	resp, err := y.client.R().
		SetContext(ctx).
		SetHeader("User-Agent", "Mozilla/5.0").
		SetQueryParams(map[string]string{
			"interval": "1d",
			"range":    window,
			"events":   "div,splits",
		}).
		Get(fmt.Sprintf(yahooChartURL, symbol))
	if err != nil {
		return nil, fmt.Errorf("yahoo fetch %s: %w", symbol, err)
	}
	if resp.StatusCode() >= 400 {
		return nil, fmt.Errorf("yahoo fetch %s: status %d", symbol, resp.StatusCode())
	}

	var chart yahooChart
	if err := json.Unmarshal(resp.Body(), &chart); err != nil {
		return nil, fmt.Errorf("yahoo decode %s: %w", symbol, err)
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo api error %s: %s", symbol, chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, nil
	}

	result := chart.Chart.Result[0]
	quote := result.Indicators.Quote[0]
	bars := make([]series.Bar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(quote.Close) || quote.Close[i] == nil {
			continue // null bar (holiday, halted session)
		}
		b := series.Bar{
			Date:  time.Unix(ts, 0).UTC(),
			Close: *quote.Close[i],
		}
		if i < len(quote.Open) && quote.Open[i] != nil {
			b.Open = *quote.Open[i]
		}
		if i < len(quote.High) && quote.High[i] != nil {
			b.High = *quote.High[i]
		}
		if i < len(quote.Low) && quote.Low[i] != nil {
			b.Low = *quote.Low[i]
		}
		if i < len(quote.Volume) && quote.Volume[i] != nil {
			b.Volume = *quote.Volume[i]
		}
		bars = append(bars, b)
	}
	return bars, nil
}
