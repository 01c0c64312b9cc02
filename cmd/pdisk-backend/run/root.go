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
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/stratuslab/pdisk"
	"github.com/stratuslab/pdisk/pkg/configuration"
	"github.com/stratuslab/pdisk/pkg/dispatcher"
	"github.com/stratuslab/pdisk/pkg/journal"
	"github.com/stratuslab/pdisk/pkg/pdiskbackend"
	"github.com/stratuslab/pdisk/utils/log"
)

var gitCommitID string

var config struct {
	configFile  string
	proxy       string
	newVolumeID string
}

var rootCmd = &cobra.Command{
	Use:     pdisk.ProgramName + " [flags] <action> <volume-id> [<size>]",
	Version: pdisk.Version,
	Short:   "Persistent disk backend command dispatcher",
	Long: `pdisk-backend runs a persistent disk action on the storage backend
configured for an iSCSI proxy.

Actions: check, create, delete, getturl, map, unmap, rebase, size, snapshot.
The size is given in megabytes. snapshot and rebase need --new-volume-id.
Results such as transfer URLs are printed on stdout.`,
	Args:          cobra.RangeArgs(2, 3),
	SilenceUsage:  true,
	SilenceErrors: true,

	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runAction(ctx, cmd.OutOrStdout(), args)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute(commit string) {
	gitCommitID = commit
	err := rootCmd.Execute()
	log.Sync()
	if code := report(os.Stderr, err); code != 0 {
		os.Exit(code)
	}
}

// report prints err the way callers of the backend expect and returns the exit code.
func report(w io.Writer, err error) int {
	if err == nil {
		return 0
	}
	fmt.Fprintf(w, "%s%s\n", pdisk.FailurePrefix, err)
	return pdisk.ExitCodePdiskOpFailed
}

func init() {
	rootCmd.PersistentFlags().StringVar(&config.configFile, "config", "",
		fmt.Sprintf("configuration file, defaults to $%s or %s", pdisk.ConfigEnv, pdisk.DefaultConfigFile))
	fs := rootCmd.Flags()
	fs.StringVar(&config.proxy, "proxy", "", "iSCSI proxy whose backend runs the action, defaults to the first of iscsi_proxies")
	fs.StringVar(&config.newVolumeID, "new-volume-id", "", "id of the volume created by snapshot and rebase")
}

// loadConfig reads the configuration and switches logging to it.
func loadConfig() (*configuration.Config, error) {
	cfg, err := configuration.Load(configuration.Path(config.configFile))
	if err != nil {
		return nil, err
	}
	if err := log.Setup(cfg.Logging()); err != nil {
		return nil, &pdiskbackend.ConfigurationError{Section: pdisk.MainSection, Reason: err.Error()}
	}
	return cfg, nil
}

func openJournal(cfg *configuration.Config) (*journal.Repository, error) {
	if cfg.Main.JournalPath == "" {
		return nil, nil
	}
	return journal.NewRepository(cfg.Main.JournalPath)
}

func runAction(ctx context.Context, out io.Writer, args []string) error {
	action, err := pdiskbackend.ParseAction(args[0])
	if err != nil {
		return err
	}
	req := dispatcher.Request{
		Proxy:       config.proxy,
		VolumeID:    args[1],
		Action:      action,
		NewVolumeID: config.newVolumeID,
	}
	if len(args) == 3 {
		size, err := strconv.ParseInt(args[2], 10, 64)
		if err != nil {
			return &pdiskbackend.InvalidRequestError{Action: action, Reason: fmt.Sprintf("size %q is not a number of MB", args[2])}
		}
		req.SizeMB = size
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	var opts []dispatcher.Option
	repo, err := openJournal(cfg)
	if err != nil {
		log.Warnf("Operation journal disabled: %v", err)
	}
	if repo != nil {
		defer repo.Close()
		opts = append(opts, dispatcher.WithJournal(repo))
	}

	res, err := dispatcher.New(cfg, opts...).Dispatch(ctx, req)
	if err != nil {
		var execErr *pdiskbackend.CommandExecutionError
		if errors.As(err, &execErr) {
			log.Errorf("%s on %s failed: %v", action, req.VolumeID, err)
		}
		return err
	}
	if res.Value != "" {
		fmt.Fprintln(out, res.Value)
	}
	return nil
}
