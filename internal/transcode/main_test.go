// SPDX-License-Identifier: MIT

package transcode

import (
	"testing"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	// Orchestration runs spawn goroutines; none may outlive the tests.
	goleak.VerifyTestMain(m)
}
