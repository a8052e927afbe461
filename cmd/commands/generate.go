/*
Copyright 2022 The Numaproj Authors.

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

package commands

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/numaproj/linearroad/pkg/shared/config"
	"github.com/numaproj/linearroad/pkg/shared/logging"
	filesource "github.com/numaproj/linearroad/pkg/sources/file"
	"github.com/numaproj/linearroad/pkg/sources/generator"
)

func NewGenerateCommand() *cobra.Command {
	var (
		output string
		g      = config.Default().Source.Generator
	)

	command := &cobra.Command{
		Use:   "generate",
		Short: "Write generated traffic as an LRB input file",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.NewLogger().Named("generate")
			gen, err := generator.NewMemGen(g)
			if err != nil {
				return err
			}
			var out io.Writer = cmd.OutOrStdout()
			if output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create output file, %w", err)
				}
				defer f.Close()
				out = f
			}
			w := csv.NewWriter(out)
			n := 0
			for {
				p, err := gen.Read(cmd.Context())
				if errors.Is(err, io.EOF) {
					break
				}
				if err != nil {
					return err
				}
				if err := filesource.WriteReport(w, p); err != nil {
					return fmt.Errorf("failed to write report, %w", err)
				}
				n++
			}
			w.Flush()
			if err := w.Error(); err != nil {
				return fmt.Errorf("failed to write reports, %w", err)
			}
			logger.Infow("Generated position reports", "reports", n, "output", output)
			return nil
		},
	}
	command.Flags().StringVarP(&output, "output", "o", "-", "Output file, - for stdout")
	command.Flags().Int64Var(&g.Seed, "seed", g.Seed, "Random seed")
	command.Flags().IntVar(&g.XWays, "xways", g.XWays, "Number of expressways")
	command.Flags().IntVar(&g.Vehicles, "vehicles", g.Vehicles, "Number of vehicles")
	command.Flags().IntVar(&g.Minutes, "minutes", g.Minutes, "Simulated minutes")
	command.Flags().IntVar(&g.Accidents, "accidents", g.Accidents, "Number of staged accidents")
	return command
}
