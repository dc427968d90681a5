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
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ashare-lab/kline-scan/analyze"
	"github.com/ashare-lab/kline-scan/series"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Compute trailing return distributions over the stored series",
	Run: func(cmd *cobra.Command, args []string) {
		market := viper.GetString("market")

		store, err := series.NewStore(seriesDir(), viper.GetInt64("min_resume_bytes"))
		if err != nil {
			log.Fatal().Err(err).Msg("cannot open series storage")
		}

		rows, err := analyze.NewAggregator(store, true).ComputeAll()
		if err != nil {
			log.Fatal().Err(err).Msg("cannot scan stored series")
		}
		log.Info().Int("instruments", len(rows)).Msg("return summary computed")
		if len(rows) == 0 {
			log.Warn().Msg("no analyzable series found, nothing to report")
			return
		}

		binner := analyze.NewBinner(
			viper.GetFloat64("bin_size"),
			viper.GetFloat64("x_min"),
			viper.GetFloat64("x_max"),
		)

		// Histogram charts, one per horizon × return kind.
		renderer, err := analyze.NewPNGRenderer(filepath.Join(viper.GetString("output_dir"), "images", market))
		if err != nil {
			log.Fatal().Err(err).Msg("cannot create image output dir")
		}
		for _, spec := range analyze.BuildCharts(rows, binner) {
			if err := renderer.Render(spec, renderer.Path(spec.ID)); err != nil {
				log.Error().Err(err).Str("chart", spec.ID).Msg("chart render failed")
				continue
			}
			log.Info().Str("chart", spec.ID).Str("path", renderer.Path(spec.ID)).Msg("chart written")
		}

		// Per-bin membership listings over the High column of each horizon.
		reportDir := filepath.Join(viper.GetString("output_dir"), "reports", market)
		if err := os.MkdirAll(reportDir, 0o755); err != nil {
			log.Fatal().Err(err).Msg("cannot create report output dir")
		}
		for _, h := range analyze.Horizons {
			column := h.Label + "_High"
			values, refs := analyze.ColumnMembers(rows, column)
			if len(values) == 0 {
				continue
			}
			bins, err := binner.Bin(values, refs)
			if err != nil {
				log.Error().Err(err).Str("column", column).Msg("binning failed")
				continue
			}
			path := filepath.Join(reportDir, strings.ToLower(h.Label)+"_high.txt")
			if err := os.WriteFile(path, []byte(analyze.TextReport(bins)), 0o644); err != nil {
				log.Error().Err(err).Str("path", path).Msg("report write failed")
				continue
			}
			log.Info().Str("path", path).Msg("report written")
		}

		if fn := viper.GetString("parquet_file"); fn != "" {
			if err := analyze.SaveToParquet(rows, fn); err != nil {
				log.Error().Err(err).Msg("parquet export failed")
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().Float64("bin-size", 10, "histogram bin width in percent")
	viper.BindPFlag("bin_size", analyzeCmd.Flags().Lookup("bin-size"))

	analyzeCmd.Flags().Float64("x-min", -100, "lower bound of the clamped return domain")
	viper.BindPFlag("x_min", analyzeCmd.Flags().Lookup("x-min"))

	analyzeCmd.Flags().Float64("x-max", 100, "upper bound of the clamped return domain")
	viper.BindPFlag("x_max", analyzeCmd.Flags().Lookup("x-max"))

	analyzeCmd.Flags().String("parquet-file", "", "save the summary table to parquet")
	viper.BindPFlag("parquet_file", analyzeCmd.Flags().Lookup("parquet-file"))
}
