package session_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/prasadmotors/dealerbot/internal/bot/session"
	"github.com/prasadmotors/dealerbot/internal/bot/storage"
)

func TestMemoryStoreNotFound(t *testing.T) {
	store := session.NewMemoryStore()
	if _, err := store.Get(context.Background(), "nobody"); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreHandsOutCopies(t *testing.T) {
	store := session.NewMemoryStore()
	ctx := context.Background()

	sess := session.New("room")
	sess.SetSlot("budget", "₹5-10 Lakhs")
	if err := store.Put(ctx, sess); err != nil {
		t.Fatalf("Put: %v", err)
	}

	// Mutating the original after Put must not leak into the store.
	sess.SetSlot("budget", "Above ₹20 Lakhs")

	got, err := store.Get(ctx, "room")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Slot("budget") != "₹5-10 Lakhs" {
		t.Fatalf("stored budget = %q, want the value at Put time", got.Slot("budget"))
	}

	// Nor must mutating a Get result change what the next Get sees.
	got.SetSlot("budget", "Under ₹5 Lakhs")
	again, err := store.Get(ctx, "room")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if again.Slot("budget") != "₹5-10 Lakhs" {
		t.Fatalf("Get result aliased store state: %q", again.Slot("budget"))
	}
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	db, err := storage.Open(filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	defer db.Close()

	store := session.NewSQLiteStore(db)
	ctx := context.Background()

	if _, err := store.Get(ctx, "room"); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	sess := session.New("room")
	sess.Flow = session.FlowBrowse
	sess.Step = session.StepResults
	sess.SetSlot("budget", "₹5-10 Lakhs")
	sess.SetSlot("car_type", "Sedan")
	sess.MarkExplicit("budget")
	sess.Pending = &session.PendingConfirmation{
		Kind:     "slot_change",
		Slot:     "budget",
		Proposed: "₹10-20 Lakhs",
	}
	if err := store.Put(ctx, sess); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := store.Get(ctx, "room")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Flow != session.FlowBrowse || got.Step != session.StepResults {
		t.Fatalf("position = %v/%v", got.Flow, got.Step)
	}
	if got.Slot("budget") != "₹5-10 Lakhs" || got.Slot("car_type") != "Sedan" {
		t.Fatalf("slots = %v", got.Slots)
	}
	if !got.IsExplicit("budget") || got.IsExplicit("car_type") {
		t.Fatalf("explicit choices = %v", got.ExplicitChoices)
	}
	if got.Pending == nil || got.Pending.Proposed != "₹10-20 Lakhs" {
		t.Fatalf("pending = %+v", got.Pending)
	}

	// Overwrite clears the pending confirmation.
	sess.Pending = nil
	sess.ConversationEnded = true
	if err := store.Put(ctx, sess); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err = store.Get(ctx, "room")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Pending != nil {
		t.Fatalf("pending survived overwrite: %+v", got.Pending)
	}
	if !got.ConversationEnded {
		t.Fatal("conversation_ended not persisted")
	}
}
