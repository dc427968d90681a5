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
package universe

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

const (
	eastmoneyURL = "http://80.push2.eastmoney.com/api/qt/clist/get"
	// Shanghai + Shenzhen listed A shares.
	eastmoneyMarkets = "m:0 t:6,m:0 t:80,m:1 t:2,m:1 t:23"
	eastmoneyPage    = 2000
)

// EastmoneyLister fetches the A-share code/name listing from the eastmoney
// quote-list API.
type EastmoneyLister struct {
	client *resty.Client
}

// NewEastmoneyLister returns a Lister backed by a fresh resty client.
func NewEastmoneyLister() *EastmoneyLister {
	return &EastmoneyLister{client: resty.New()}
}

type eastmoneyResponse struct {
	Data *struct {
		Total int `json:"total"`
		Diff  []struct {
			Code string `json:"f12"`
			Name string `json:"f14"`
		} `json:"diff"`
	} `json:"data"`
}

// Listing pages through the quote-list endpoint until the reported total is
// reached.
func (l *EastmoneyLister) Listing(ctx context.Context) ([]Instrument, error) {
	var insts []Instrument
	for page := 1; ; page++ {
		resp, err := l.client.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"pn":     fmt.Sprintf("%d", page),
				"pz":     fmt.Sprintf("%d", eastmoneyPage),
				"po":     "0",
				"np":     "1",
				"fltt":   "2",
				"fid":    "f12",
				"fs":     eastmoneyMarkets,
				"fields": "f12,f14",
			}).
			Get(eastmoneyURL)
		if err != nil {
			return nil, fmt.Errorf("eastmoney listing request: %w", err)
		}
		if resp.StatusCode() >= 400 {
			return nil, fmt.Errorf("eastmoney listing: status %d", resp.StatusCode())
		}

		var body eastmoneyResponse
		if err := json.Unmarshal(resp.Body(), &body); err != nil {
			return nil, fmt.Errorf("eastmoney listing decode: %w", err)
		}
		if body.Data == nil || len(body.Data.Diff) == 0 {
			break
		}
		for _, d := range body.Data.Diff {
			insts = append(insts, Instrument{Code: d.Code, Name: d.Name})
		}
		log.Debug().Int("page", page).Int("collected", len(insts)).Int("total", body.Data.Total).Msg("listing page loaded")
		if len(insts) >= body.Data.Total {
			break
		}
	}
	if len(insts) == 0 {
		return nil, fmt.Errorf("eastmoney listing: no instruments returned")
	}
	return insts, nil
}
