/*
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

package main

import (
	"fmt"
	"log"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/escrowhq/escrow"
	"github.com/escrowhq/escrow/config"
	"github.com/escrowhq/escrow/database"
	"github.com/escrowhq/escrow/gateway"
	"github.com/escrowhq/escrow/internal/notification"
)

// CLI encapsulates the root Cobra command.
type CLI struct {
	cmd *cobra.Command
}

// escrowInstance holds the service instance and its configuration, shared by
// every subcommand after preRun has run.
type escrowInstance struct {
	escrow *escrow.Escrow
	cnf    *config.Configuration
}

// recoverPanic handles any panics during program execution and logs the error.
func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

// preRun loads the configuration and initializes the service before any
// command runs.
func preRun(app *escrowInstance, configFile *string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := config.InitConfig(*configFile)
		if err != nil {
			log.Fatal("error loading config", err)
		}

		cnf, err := config.Fetch()
		if err != nil {
			return err
		}

		newEscrow, err := setupEscrow(cnf)
		if err != nil {
			notification.NotifyError(err)
			log.Fatal(err)
		}

		app.escrow = newEscrow
		app.cnf = cnf

		return nil
	}
}

// setupEscrow wires the datasource and the payment gateway client into a new
// service instance.
func setupEscrow(cfg *config.Configuration) (*escrow.Escrow, error) {
	db, err := database.NewDataSource(cfg)
	if err != nil {
		return nil, fmt.Errorf("error getting datasource: %v", err)
	}

	gw := gateway.NewClient(cfg.Gateway)
	newEscrow, err := escrow.NewEscrow(db, gw)
	if err != nil {
		return nil, fmt.Errorf("error creating escrow service: %v", err)
	}
	return newEscrow, nil
}

// NewCLI creates the command-line interface for the escrow service.
func NewCLI() *CLI {
	var configFile string
	b := &escrowInstance{}

	var rootCmd = &cobra.Command{
		Use:   "escrow",
		Short: "Escrow transaction lifecycle service",
		Run:   func(cmd *cobra.Command, args []string) {},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./escrow.json", "Configuration file for the escrow service")

	rootCmd.PersistentPreRunE = preRun(b, &configFile)

	rootCmd.AddCommand(serverCommands(b))
	rootCmd.AddCommand(workerCommands(b))

	return &CLI{cmd: rootCmd}
}

// executeCLI runs the root command, handling any errors that occur during
// execution.
func (w CLI) executeCLI() {
	if err := w.cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	defer recoverPanic()

	cli := NewCLI()
	cli.executeCLI()
}
