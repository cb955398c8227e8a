package notify

import (
	"context"
	"encoding/json"
	"testing"
)

func TestNotifyUsersStoresAndPushes(t *testing.T) {
	t.Parallel()

	repo := setupRepository(t)
	hub := NewHub()
	service, err := NewService(repo, hub, silentLogger())
	if err != nil {
		t.Fatalf("NewService returned error: %v", err)
	}

	ch, unsubscribe := hub.Subscribe(1)
	defer unsubscribe()

	ctx := context.Background()
	if err := service.NotifyUsers(ctx, []uint{1, 2}, "Review me", "/review/42"); err != nil {
		t.Fatalf("NotifyUsers returned error: %v", err)
	}

	for _, recipient := range []uint{1, 2} {
		stored, err := repo.ListForRecipient(ctx, recipient)
		if err != nil {
			t.Fatalf("ListForRecipient returned error: %v", err)
		}
		if len(stored) != 1 || stored[0].Message != "Review me" || stored[0].Link != "/review/42" {
			t.Fatalf("unexpected stored notification for %d: %#v", recipient, stored)
		}
	}

	select {
	case payload := <-ch:
		var decoded map[string]string
		if err := json.Unmarshal([]byte(payload), &decoded); err != nil {
			t.Fatalf("decoding pushed payload: %v", err)
		}
		if decoded["message"] != "Review me" || decoded["link"] != "/review/42" {
			t.Fatalf("unexpected pushed payload: %q", payload)
		}
	default:
		t.Fatalf("expected live push to connected subscriber")
	}
}

func TestNotifyUsersWithNoRecipientsIsNoOp(t *testing.T) {
	t.Parallel()

	repo := setupRepository(t)
	service, err := NewService(repo, NewHub(), silentLogger())
	if err != nil {
		t.Fatalf("NewService returned error: %v", err)
	}

	if err := service.NotifyUsers(context.Background(), nil, "nothing", ""); err != nil {
		t.Fatalf("expected no-op for empty recipients, got %v", err)
	}
}
