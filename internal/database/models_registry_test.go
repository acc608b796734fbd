package database

import (
	"testing"

	modelspkg "warden/internal/models"

	"github.com/stretchr/testify/require"
)

func TestPersistentModels_IncludesLedgerTables(t *testing.T) {
	var foundAudit, foundRestriction bool
	for _, model := range PersistentModels() {
		switch model.(type) {
		case *modelspkg.AuditLogEntry:
			foundAudit = true
		case *modelspkg.Restriction:
			foundRestriction = true
		}
	}
	require.True(t, foundAudit, "PersistentModels should include AuditLogEntry")
	require.True(t, foundRestriction, "PersistentModels should include Restriction")
}
