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

package supporting

import (
	"github.com/go-errors/errors"
	"github.com/stretchr/testify/assert"
	"github.com/urfave/cli"
	"testing"
)

func Test_Adapt_Error_Keeps_Exit_Errors(t *testing.T) {
	exitError := cli.NewExitError("failed", 3)
	assert.Same(t, exitError, AdaptError(exitError, 1))
	assert.Nil(t, AdaptError(nil, 1))

	adapted := AdaptErrorWithMessage(errors.New("boom"), "insert failed", 2)
	assert.Equal(t, 2, adapted.ExitCode())
	assert.Equal(t, "insert failed => err: boom", adapted.Error())
}
