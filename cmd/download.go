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
package cmd

import (
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ashare-lab/kline-scan/fetch"
	"github.com/ashare-lab/kline-scan/series"
	"github.com/ashare-lab/kline-scan/universe"
)

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Resolve the instrument universe and download daily history",
	Run: func(cmd *cobra.Command, args []string) {
		store, err := series.NewStore(seriesDir(), viper.GetInt64("min_resume_bytes"))
		if err != nil {
			log.Fatal().Err(err).Msg("cannot create series storage")
		}

		provider, err := universe.NewProvider(universe.Config{
			Market:      viper.GetString("market"),
			CacheDir:    listDir(),
			Threshold:   viper.GetInt("list_threshold"),
			MaxAttempts: viper.GetInt("list_attempts"),
		}, universe.NewEastmoneyLister())
		if err != nil {
			log.Fatal().Err(err).Msg("cannot create universe provider")
		}

		snap := provider.Resolve(cmd.Context())
		if snap.Degraded() {
			log.Warn().Str("source", string(snap.Source)).Int("count", len(snap.Instruments)).Msg("running on a degraded universe")
		}

		instruments := snap.Instruments
		if limit := viper.GetInt("limit"); limit > 0 && limit < len(instruments) {
			instruments = instruments[:limit]
		}
		log.Info().Int("count", len(instruments)).Msg("starting download")

		pool, err := fetch.NewPool(fetch.Config{
			Workers:    viper.GetInt("threads"),
			Window:     viper.GetString("window"),
			Timeout:    viper.GetDuration("timeout"),
			RatePerSec: viper.GetInt("rate_limit"),
			Progress:   true,
		}, store, fetch.NewYahooClient())
		if err != nil {
			log.Fatal().Err(err).Msg("cannot create fetch pool")
		}

		counts := fetch.Tally(pool.Run(cmd.Context(), instruments))
		log.Info().
			Str("source", string(snap.Source)).
			Int("success", counts.Success).
			Int("exists", counts.Exists).
			Int("empty", counts.Empty).
			Int("error", counts.Error).
			Msg("download finished")
	},
}

func init() {
	rootCmd.AddCommand(downloadCmd)

	downloadCmd.Flags().IntP("threads", "t", 4, "concurrent download workers")
	viper.BindPFlag("threads", downloadCmd.Flags().Lookup("threads"))

	downloadCmd.Flags().Uint32P("limit", "l", 0, "limit universe to N instruments")
	viper.BindPFlag("limit", downloadCmd.Flags().Lookup("limit"))

	downloadCmd.Flags().Int("rate-limit", 0, "shared request rate limit (items per second, 0 disables)")
	viper.BindPFlag("rate_limit", downloadCmd.Flags().Lookup("rate-limit"))

	downloadCmd.Flags().String("window", "2y", "trailing history window to request")
	viper.BindPFlag("window", downloadCmd.Flags().Lookup("window"))

	downloadCmd.Flags().Duration("timeout", 20*time.Second, "per-instrument fetch timeout")
	viper.BindPFlag("timeout", downloadCmd.Flags().Lookup("timeout"))

	downloadCmd.Flags().Int("list-threshold", 4000, "minimum instrument count for a listing to be trusted")
	viper.BindPFlag("list_threshold", downloadCmd.Flags().Lookup("list-threshold"))

	downloadCmd.Flags().Int("list-attempts", 3, "listing fetch attempts before falling back")
	viper.BindPFlag("list_attempts", downloadCmd.Flags().Lookup("list-attempts"))

	downloadCmd.Flags().Int64("min-resume-bytes", 1000, "minimum stored file size to treat an instrument as already downloaded")
	viper.BindPFlag("min_resume_bytes", downloadCmd.Flags().Lookup("min-resume-bytes"))
}
