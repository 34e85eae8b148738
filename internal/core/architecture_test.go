package core

import (
	"testing"

	"procureflow/testutil"
)

func TestCoreDoesNotImportOuterLayers(t *testing.T) {
	testutil.Layer{
		Dir:       ".",
		Forbidden: []string{"procureflow/internal/adapters", "procureflow/internal/config", "procureflow/cmd"},
		Reason:    "internal/core is driven by adapters and commands, never the reverse",
	}.Check(t)
}
