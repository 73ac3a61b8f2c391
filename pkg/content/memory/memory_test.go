package memory_test

import (
	"testing"

	"github.com/treelinehq/canopy/pkg/content"
	"github.com/treelinehq/canopy/pkg/content/memory"
	contenttesting "github.com/treelinehq/canopy/pkg/content/testing"
)

func TestMemoryContentStore(t *testing.T) {
	suite := &contenttesting.StoreTestSuite{
		NewStore: func(maxBytes int64) content.Store {
			return memory.NewMemoryContentStore(memory.Options{MaxBytes: maxBytes})
		},
	}
	suite.Run(t)
}
