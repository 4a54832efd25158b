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

package containers

import (
	"context"
	"fmt"
	"github.com/jackc/pgx/v5"
	"github.com/noctarius/timescaledb-chunk-dispatcher/internal/supporting/logging"
	spiconfig "github.com/noctarius/timescaledb-chunk-dispatcher/spi/config"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"time"
)

const (
	databaseName   = "tsdb"
	databaseSchema = "tsdb"
	postgresUser   = "postgres"
	postgresPass   = "postgres"
	tsdbUser       = "tsdb"
	tsdbPass       = "tsdb"
)

// DatabaseSchema is the default schema of the test user
const DatabaseSchema = databaseSchema

type ConfigProvider struct {
	host string
	port int
}

// ConnectionString returns the connection string of the
// unprivileged test user
func (c *ConfigProvider) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s", tsdbUser, tsdbPass, c.host, c.port, databaseName)
}

// Configure returns a configuration which points the postgres
// catalog and storage to the container
func (c *ConfigProvider) Configure(configurator func(config *spiconfig.Config)) *spiconfig.Config {
	config := &spiconfig.Config{
		PostgreSQL: spiconfig.PostgreSQLConfig{
			Connection: c.ConnectionString(),
			Connect: spiconfig.ConnectConfig{
				MaxAttempts: 5,
				Timeout:     time.Second * 10,
			},
		},
		Catalog: spiconfig.CatalogConfig{
			Type: spiconfig.PostgresCatalog,
		},
		Storage: spiconfig.StorageConfig{
			Type: spiconfig.PostgresStorage,
		},
	}
	if configurator != nil {
		configurator(config)
	}
	return config
}

func SetupTimescaleContainer() (testcontainers.Container, *ConfigProvider, error) {
	logger, err := logging.NewLogger("testcontainers")
	if err != nil {
		return nil, nil, err
	}
	timescaledbLogger, err := logging.NewLogger("testcontainers-timescaledb")
	if err != nil {
		return nil, nil, err
	}

	containerRequest := testcontainers.ContainerRequest{
		Image:        "timescale/timescaledb:latest-pg15",
		ExposedPorts: []string{"5432/tcp"},
		Cmd:          []string{"-c", "fsync=off"},
		WaitingFor:   wait.ForListeningPort("5432/tcp"),
		Env: map[string]string{
			"POSTGRES_DB":       databaseName,
			"POSTGRES_PASSWORD": postgresPass,
			"POSTGRES_USER":     postgresUser,
		},
		LogConsumerCfg: &testcontainers.LogConsumerConfig{
			Consumers: []testcontainers.LogConsumer{newLogConsumer(timescaledbLogger)},
		},
	}

	container, err := testcontainers.GenericContainer(
		context.Background(),
		testcontainers.GenericContainerRequest{
			ContainerRequest: containerRequest,
			Started:          true,
			Logger:           logger,
		},
	)
	if err != nil {
		return nil, nil, err
	}

	host, err := container.Host(context.Background())
	if err != nil {
		_ = container.Terminate(context.Background())
		return nil, nil, err
	}

	port, err := container.MappedPort(context.Background(), "5432/tcp")
	if err != nil {
		_ = container.Terminate(context.Background())
		return nil, nil, err
	}

	connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
		postgresUser, postgresPass, host, port.Int(), databaseName)

	config, err := pgx.ParseConfig(connString)
	if err != nil {
		_ = container.Terminate(context.Background())
		return nil, nil, err
	}

	// The port is bound before the init scripts are done
	var conn *pgx.Conn
	for i := 0; ; i++ {
		conn, err = pgx.ConnectConfig(context.Background(), config)
		if err == nil {
			break
		}
		if i == 9 {
			_ = container.Terminate(context.Background())
			return nil, nil, err
		}
		time.Sleep(time.Second)
	}

	exec := func(query string) error {
		if _, err := conn.Exec(context.Background(), query); err != nil {
			_ = conn.Close(context.Background())
			_ = container.Terminate(context.Background())
			return err
		}
		return nil
	}

	// Chunks live in plain tables, the extension is not used
	timescaledbLogger.Verbosef("Drop timescaledb extension")
	if err := exec("DROP EXTENSION IF EXISTS timescaledb CASCADE"); err != nil {
		return nil, nil, err
	}

	timescaledbLogger.Verbosef("Create default user login")
	if err := exec(
		fmt.Sprintf("CREATE ROLE %s LOGIN ENCRYPTED PASSWORD '%s'", tsdbUser, tsdbPass),
	); err != nil {
		return nil, nil, err
	}
	timescaledbLogger.Verbosef("Grant permissions to default user")
	if err := exec(
		fmt.Sprintf("GRANT ALL PRIVILEGES ON DATABASE %s TO %s", databaseName, tsdbUser),
	); err != nil {
		return nil, nil, err
	}
	timescaledbLogger.Verbosef("Create %s schema", databaseSchema)
	if err := exec(
		fmt.Sprintf("CREATE SCHEMA %s AUTHORIZATION %s", databaseSchema, tsdbUser),
	); err != nil {
		return nil, nil, err
	}
	timescaledbLogger.Verbosef("Set default schema for default user")
	if err := exec(
		fmt.Sprintf("ALTER ROLE %s SET search_path TO %s, public", tsdbUser, databaseSchema),
	); err != nil {
		return nil, nil, err
	}

	// Close database setup connection when done
	_ = conn.Close(context.Background())

	return container, &ConfigProvider{host, port.Int()}, nil
}
