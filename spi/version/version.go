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

package version

import (
	"fmt"
	"github.com/go-errors/errors"
	"regexp"
	"strconv"
)

var postgresqlVersionRegex = regexp.MustCompile(`^((1[0-9])\.([0-9]+))?`)

const (
	PG_MIN_VERSION PostgresVersion = 130000
	PG_15_VERSION  PostgresVersion = 150000
)

var (
	BinName    = "timescaledb-chunk-dispatcher"
	Version    = "0.1.0"
	CommitHash = "unknown"
	Branch     = "unknown"
)

// PostgresVersion represents the parsed and comparable
// version number of the connected PostgreSQL server
type PostgresVersion uint

// Major returns the major version
func (pv PostgresVersion) Major() uint {
	return uint(pv) / 10000
}

// Minor returns the minor version
func (pv PostgresVersion) Minor() uint {
	return uint(pv) % 100
}

func (pv PostgresVersion) String() string {
	return fmt.Sprintf("%d.%d", pv.Major(), pv.Minor())
}

// Compare returns a negative value if the current version
// is lower than other, 0 if the versions match, and a
// positive value otherwise.
func (pv PostgresVersion) Compare(other PostgresVersion) int {
	switch {
	case pv < other:
		return -1
	case pv > other:
		return 1
	}
	return 0
}

// ParsePostgresVersion parses the output of SHOW SERVER_VERSION
func ParsePostgresVersion(version string) (PostgresVersion, error) {
	matches := postgresqlVersionRegex.FindStringSubmatch(version)
	if len(matches) < 4 || matches[1] == "" {
		return 0, errors.Errorf("failed to extract postgresql version from '%s'", version)
	}

	major, err := strconv.ParseUint(matches[2], 10, 32)
	if err != nil {
		return 0, errors.Wrap(err, 0)
	}
	minor, err := strconv.ParseUint(matches[3], 10, 32)
	if err != nil {
		return 0, errors.Wrap(err, 0)
	}
	return PostgresVersion(uint(major)*10000 + uint(minor)), nil
}
