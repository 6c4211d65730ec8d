package notiflog

import (
	"context"
	"strings"
	"testing"

	"freelancer_ops_backend/internal/notification/channel"
	"freelancer_ops_backend/platform/apperr"

	"github.com/google/uuid"
)

func TestNewEntryFromFailedResult(t *testing.T) {
	userID := uuid.New()
	e := NewEntry(uuid.New(), &userID, channel.Desktop, "job:captured", "New job", channel.Result{Error: "no push subscription registered"})
	if e.Status != StatusFailed {
		t.Fatalf("expected failed status, got %s", e.Status)
	}
	if e.ErrorMessage == nil || *e.ErrorMessage == "" {
		t.Fatal("expected error message on failed entry")
	}
}

func TestNewEntryFailedWithoutProviderText(t *testing.T) {
	e := NewEntry(uuid.New(), nil, channel.SMS, "job:captured", "New job", channel.Result{})
	if e.ErrorMessage == nil || *e.ErrorMessage == "" {
		t.Fatal("expected a non-empty error message even without provider text")
	}
}

func TestNewEntryFromSuccess(t *testing.T) {
	e := NewEntry(uuid.New(), nil, channel.InApp, "job:captured", "New job", channel.Result{Success: true})
	if e.Status != StatusSent || e.ErrorMessage != nil {
		t.Fatalf("unexpected entry %+v", e)
	}
}

func TestQueriesAreUserScoped(t *testing.T) {
	for name, query := range map[string]string{"count": countQuery, "list": listQuery} {
		normalized := strings.Join(strings.Fields(strings.ToLower(query)), " ")
		if !strings.Contains(normalized, "where tenant_id = $1 and user_id = $2") {
			t.Fatalf("%s query is not tenant and user scoped", name)
		}
	}
	if !strings.Contains(strings.ToLower(listQuery), "order by created_at desc") {
		t.Fatal("expected newest first")
	}
}

func TestNilRepositoryReturnsInternal(t *testing.T) {
	var repo *Repository
	if _, err := repo.Create(context.Background(), Entry{}); !apperr.Is(err, apperr.KindInternal) {
		t.Fatalf("expected internal error, got %v", err)
	}
	if _, err := repo.Recent(context.Background(), uuid.New(), uuid.New(), 20); !apperr.Is(err, apperr.KindInternal) {
		t.Fatalf("expected internal error, got %v", err)
	}
}
