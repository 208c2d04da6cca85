package domain

import (
	"testing"

	"github.com/google/uuid"
)

func strptr(s string) *string { return &s }

func TestMergeKeepsExistingOnEmptyIncoming(t *testing.T) {
	contact := Contact{
		Phone: "5511987654321",
		Name:  "Ana",
		CPF:   strptr("12345678901"),
	}

	changed := contact.Merge(ContactPatch{Name: "", CPF: strptr("")})
	if changed {
		t.Fatal("expected no change from empty patch")
	}
	if contact.Name != "Ana" || contact.CPF == nil || *contact.CPF != "12345678901" {
		t.Fatalf("existing fields blanked: %+v", contact)
	}
}

func TestMergeOverridesWithNonEmpty(t *testing.T) {
	contact := Contact{Name: "Ana", CPF: strptr("123")}

	changed := contact.Merge(ContactPatch{Name: "Ana Souza", CPF: strptr("456")})
	if !changed {
		t.Fatal("expected change")
	}
	if contact.Name != "Ana Souza" {
		t.Errorf("expected name overridden, got %q", contact.Name)
	}
	if *contact.CPF != "456" {
		t.Errorf("expected cpf overridden, got %q", *contact.CPF)
	}
}

func TestMergeRespectsNameLock(t *testing.T) {
	contact := Contact{Name: "Ana Corrigida", NameLocked: true}

	contact.Merge(ContactPatch{Name: "Ana Upload"})
	if contact.Name != "Ana Corrigida" {
		t.Errorf("locked name overwritten: %q", contact.Name)
	}
}

func TestMergeIsIdempotent(t *testing.T) {
	segment := uuid.New()
	patch := ContactPatch{Name: "Ana", CPF: strptr("123"), Contract: strptr("C-9"), SegmentID: &segment}

	contact := Contact{}
	if !contact.Merge(patch) {
		t.Fatal("expected first merge to change")
	}
	if contact.Merge(patch) {
		t.Fatal("expected second merge to be a no-op")
	}
}

func TestSpeedDelayFallsBackToMedium(t *testing.T) {
	if SpeedFast.Delay() >= SpeedMedium.Delay() {
		t.Error("fast should be shorter than medium")
	}
	if Speed("bogus").Delay() != SpeedMedium.Delay() {
		t.Error("unknown tier should fall back to medium")
	}
}

func TestParseTimeOfDay(t *testing.T) {
	tod, err := ParseTimeOfDay("18:30")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tod.Hour != 18 || tod.Minute != 30 {
		t.Fatalf("unexpected value: %+v", tod)
	}

	for _, bad := range []string{"25:00", "12:75", "noon", ""} {
		if _, err := ParseTimeOfDay(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}
