package preference

import (
	"context"
	"strings"
	"testing"

	"freelancer_ops_backend/platform/apperr"

	"github.com/google/uuid"
)

func normalize(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}

func TestPreferenceQueriesAreScoped(t *testing.T) {
	if !strings.Contains(normalize(findQuery), "where tenant_id = $1 and user_id = $2") {
		t.Fatal("find query must be tenant and user scoped")
	}
	if !strings.Contains(normalize(listByTenantQuery), "where tenant_id = $1") {
		t.Fatal("list query must be tenant scoped")
	}
	if !strings.Contains(normalize(markStaleQuery), "push_subscription->>'endpoint' = $3") {
		t.Fatal("stale flag must only hit the rejected endpoint")
	}
}

func TestUpsertIsLastWriteWins(t *testing.T) {
	q := normalize(upsertQuery)
	if !strings.Contains(q, "on conflict (tenant_id, user_id) do update") {
		t.Fatal("expected upsert on the preference key")
	}
	if !strings.Contains(q, "updated_at = now()") {
		t.Fatal("expected updated_at bump")
	}
}

func TestNilRepositoryReturnsInternal(t *testing.T) {
	var repo *Repository
	if _, err := repo.Find(context.Background(), uuid.New(), uuid.New()); !apperr.Is(err, apperr.KindInternal) {
		t.Fatalf("expected internal error, got %v", err)
	}
}
