package memory

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"spendly/internal/storage"
	"spendly/internal/storage/storagetest"
)

func TestMemoryStore(t *testing.T) {
	suite.Run(t, &storagetest.StoreSuite{
		New: func() storage.Store { return NewStore() },
	})
}
