/*
 * Licensed to the Apache Software Foundation (ASF) under one or more
 * contributor license agreements. See the NOTICE file distributed with
 * this work for additional information regarding copyright ownership.
 * The ASF licenses this file to You under the Apache License, Version 2.0
 * (the "License"); you may not use this file except in compliance with
 * the License. You may obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"fmt"
	"github.com/goccy/go-json"
	"github.com/noctarius/timescaledb-chunk-dispatcher/internal"
	"github.com/noctarius/timescaledb-chunk-dispatcher/internal/executor"
	"github.com/noctarius/timescaledb-chunk-dispatcher/internal/supporting"
	"github.com/noctarius/timescaledb-chunk-dispatcher/internal/supporting/logging"
	"github.com/noctarius/timescaledb-chunk-dispatcher/internal/sysconfig"
	spicatalog "github.com/noctarius/timescaledb-chunk-dispatcher/spi/catalog"
	spiconfig "github.com/noctarius/timescaledb-chunk-dispatcher/spi/config"
	"github.com/noctarius/timescaledb-chunk-dispatcher/spi/version"
	"github.com/urfave/cli"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
)

var (
	configurationFile string
	verbose           bool
	withCaller        bool
	logToStdErr       bool
	versionOnly       bool

	hypertableName string
	inputFile      string
	jsonReport     bool
)

func main() {
	app := &cli.App{
		Name:  version.BinName,
		Usage: "Routes rows inserted into TimescaleDB hypertables to their chunks",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config,c",
				Value:       "",
				Usage:       "Load configuration from `FILE`",
				Destination: &configurationFile,
			},
			&cli.BoolFlag{
				Name:        "verbose",
				Usage:       "Show verbose output",
				Destination: &verbose,
			},
			&cli.BoolFlag{
				Name:        "caller",
				Usage:       "Collect caller information for log messages",
				Destination: &withCaller,
			},
			&cli.BoolFlag{
				Name:        "log-to-stderr",
				Usage:       "Redirects logging output to stderr",
				Destination: &logToStdErr,
			},
			&cli.BoolFlag{
				Name:        "version",
				Usage:       "Prints the version and exits",
				Destination: &versionOnly,
			},
		},
		Action: printVersion,
		Commands: []cli.Command{
			{
				Name:  "insert",
				Usage: "Inserts JSON lines rows into a hypertable",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:        "hypertable,t",
						Usage:       "Target hypertable as `SCHEMA.TABLE`",
						Destination: &hypertableName,
					},
					&cli.StringFlag{
						Name:        "input,i",
						Usage:       "Read rows from `FILE` instead of stdin",
						Destination: &inputFile,
					},
					&cli.BoolFlag{
						Name:        "json",
						Usage:       "Print the statement result as JSON",
						Destination: &jsonReport,
					},
				},
				Action: insert,
			},
			{
				Name:   "define",
				Usage:  "Defines the configured hypertables in the catalog",
				Action: define,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func printVersion(*cli.Context) error {
	fmt.Printf("%s version %s (git revision %s; branch %s)\n",
		version.BinName, version.Version, version.CommitHash, version.Branch,
	)
	if versionOnly {
		return nil
	}
	fmt.Println("Use --help to list the available commands")
	return nil
}

func insert(*cli.Context) error {
	if hypertableName == "" {
		return cli.NewExitError("Target hypertable required", 2)
	}

	return withDispatcher(func(ctx context.Context, _ *spiconfig.Config, dispatcher *internal.Dispatcher) error {
		schemaName, tableName := splitRelationName(hypertableName)
		hypertable, present, err := dispatcher.Catalog().FindHypertable(ctx, schemaName, tableName)
		if err != nil {
			return supporting.AdaptError(err, 11)
		}
		if !present {
			return cli.NewExitError(fmt.Sprintf("Hypertable %s doesn't exist", hypertableName), 12)
		}

		reader := io.Reader(os.Stdin)
		if inputFile != "" {
			f, err := os.Open(inputFile)
			if err != nil {
				return supporting.AdaptErrorWithMessage(err, "Input file couldn't be opened", 13)
			}
			reader = f
		}

		source := executor.NewJSONLinesSource(reader, hypertable.Columns())
		result, err := dispatcher.Engine().Insert(ctx, hypertable.Id(), source)
		if result != nil {
			if printErr := printResult(result); printErr != nil {
				return supporting.AdaptError(printErr, 15)
			}
		}
		if err != nil {
			return supporting.AdaptError(err, 14)
		}
		return nil
	})
}

func define(*cli.Context) error {
	return withDispatcher(func(ctx context.Context, config *spiconfig.Config, dispatcher *internal.Dispatcher) error {
		definer, ok := dispatcher.Catalog().(spicatalog.Definer)
		if !ok {
			return cli.NewExitError("Configured catalog doesn't support defining hypertables", 16)
		}

		for _, definition := range config.Catalog.Hypertables {
			schemaName := definition.Schema
			if schemaName == "" {
				schemaName = "public"
			}
			hypertable, present, err := dispatcher.Catalog().FindHypertable(ctx, schemaName, definition.Table)
			if err != nil {
				return supporting.AdaptError(err, 11)
			}
			if !present {
				if hypertable, err = definer.DefineHypertable(ctx, definition); err != nil {
					return supporting.AdaptError(err, 17)
				}
			}
			fmt.Printf("%s\n", hypertable)
		}
		return nil
	})
}

func withDispatcher(fn func(ctx context.Context, config *spiconfig.Config, dispatcher *internal.Dispatcher) error) error {
	config, err := loadConfiguration()
	if err != nil {
		return err
	}

	dispatcher, err := internal.NewDispatcher(sysconfig.NewSystemConfig(config))
	if err != nil {
		return supporting.AdaptError(err, 7)
	}
	if err := dispatcher.Start(); err != nil {
		return supporting.AdaptError(err, 8)
	}
	defer func() {
		if err := dispatcher.Stop(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to stop dispatcher: %v\n", err)
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer cancel()

	return fn(ctx, config, dispatcher)
}

func loadConfiguration() (*spiconfig.Config, error) {
	logging.WithCaller = withCaller
	logging.WithVerbose = verbose

	config := &spiconfig.Config{}

	// No configuration file set? Try env variable!
	if configurationFile == "" {
		if cf, present := os.LookupEnv("TIMESCALEDB_CHUNK_DISPATCHER_CONFIG"); present {
			fmt.Fprintf(os.Stderr, "Using configuration file from environment variable\n")
			configurationFile = cf
		}
	}

	if configurationFile != "" {
		fmt.Fprintf(os.Stderr, "Loading configuration file: %s\n", configurationFile)
		b, err := os.ReadFile(configurationFile)
		if err != nil {
			return nil, cli.NewExitError(fmt.Sprintf("Configuration file couldn't be read: %v\n", err), 4)
		}

		tomlConfig := filepath.Ext(strings.ToLower(configurationFile)) == ".toml"
		if err := spiconfig.Unmarshall(b, config, tomlConfig); err != nil {
			return nil, cli.NewExitError(fmt.Sprintf("Configuration file couldn't be decoded: %v\n", err), 5)
		}
	}

	if err := logging.InitializeLogging(config, logToStdErr); err != nil {
		return nil, supporting.AdaptError(err, 6)
	}
	return config, nil
}

func printResult(result *executor.Result) error {
	if !jsonReport {
		fmt.Print(result.Report())
		return nil
	}

	summary := map[string]any{
		"statementId":  result.StatementId,
		"rowsInserted": result.RowsInserted,
		"duration":     result.Duration.String(),
		"statistics":   result.Statistics,
	}
	if result.Err != nil {
		summary["error"] = result.Err.Error()
	}

	b, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}

func splitRelationName(name string) (schemaName, tableName string) {
	if i := strings.Index(name, "."); i != -1 {
		return name[:i], name[i+1:]
	}
	return "public", name
}
