package repositories

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRepositories(t *testing.T) {
	t.Parallel()

	t.Run("DocumentRepository", func(t *testing.T) {
		repo := NewDocumentRepository(nil, nil)
		assert.NotNil(t, repo)
		assert.NotNil(t, repo.logger)
	})

	t.Run("CaseRepository", func(t *testing.T) {
		repo := NewCaseRepository(nil, nil)
		assert.NotNil(t, repo)
		assert.NotNil(t, repo.logger)
	})
}
