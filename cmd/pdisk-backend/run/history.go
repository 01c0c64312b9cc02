/*
   Copyright 2022 The StratusLab pdisk Authors.

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

package run

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/stratuslab/pdisk"
	"github.com/stratuslab/pdisk/pkg/journal"
	"github.com/stratuslab/pdisk/pkg/pdiskbackend"
)

var historyConfig struct {
	limit int
}

var historyCmd = &cobra.Command{
	Use:   "history [<volume-id>]",
	Short: "List the journal of past operations",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		volume := ""
		if len(args) == 1 {
			volume = args[0]
		}
		return history(cmd.Context(), cmd.OutOrStdout(), volume)
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyConfig.limit, "limit", 20, "number of operations to show, 0 for all")
	rootCmd.AddCommand(historyCmd)
}

func history(ctx context.Context, out io.Writer, volume string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Main.JournalPath == "" {
		return &pdiskbackend.ConfigurationError{Section: pdisk.MainSection, Key: "journal_path", Reason: "the operation journal is not configured"}
	}
	repo, err := journal.NewRepository(cfg.Main.JournalPath)
	if err != nil {
		return err
	}
	defer repo.Close()

	if ctx == nil {
		ctx = context.Background()
	}
	ops, err := repo.List(ctx, volume, historyConfig.limit)
	if err != nil {
		return err
	}
	printOperations(out, ops)
	return nil
}

func printOperations(out io.Writer, ops []*journal.Operation) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTARTED\tDURATION\tPROXY\tBACKEND\tACTION\tVOLUME\tSTATUS\tVALUE/ERROR")
	for _, op := range ops {
		duration := "-"
		if !op.FinishedAt.IsZero() {
			duration = op.FinishedAt.Sub(op.StartedAt).Round(time.Millisecond).String()
		}
		detail := op.Value
		if op.ErrorMessage != "" {
			detail = op.ErrorMessage
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n", op.ID, op.StartedAt.Format(time.RFC3339),
			duration, op.Proxy, op.Backend, op.Action, op.Volume, op.Status, detail)
	}
	w.Flush()
}
