package dbutil

import (
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/require"
)

func TestFinalizeRewritesLimitOffset(t *testing.T) {
	query, args := Finalize("SELECT id FROM document_sources WHERE status=? LIMIT ?,?", []interface{}{"processing", 10, 50})
	require.Equal(t, "SELECT id FROM document_sources WHERE status=$1 LIMIT $2 OFFSET $3", query)
	require.Equal(t, []interface{}{"processing", 50, 10}, args)
}

func TestFinalizeQuotesIdentifiers(t *testing.T) {
	query, _ := Finalize("INSERT INTO `document_chunks` (`id`,`title`) VALUES (?,?)", []interface{}{"c1", "t"})
	require.Equal(t, `INSERT INTO "document_chunks" ("id","title") VALUES ($1,$2)`, query)
}

func TestFinalizeWithoutLimit(t *testing.T) {
	query, args := Finalize("UPDATE document_sources SET status=? WHERE id=?", []interface{}{"failed", "src-1"})
	require.Equal(t, "UPDATE document_sources SET status=$1 WHERE id=$2", query)
	require.Len(t, args, 2)
}

func TestErrorCodes(t *testing.T) {
	wrapped := fmt.Errorf("insert: %w", &pq.Error{Code: "23505"})
	require.True(t, IsConflict(wrapped))
	require.False(t, IsForeignKeyViolation(wrapped))
	require.True(t, IsUndefinedObject(&pq.Error{Code: "42883"}))
	require.False(t, IsUndefinedObject(fmt.Errorf("boom")))
}
