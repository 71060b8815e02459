package event

import (
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	e := New(TypeRequisitionSubmitted, 42, "REQ-2026-000042", map[string]interface{}{
		"role_code": "HOD",
	})

	if e.ID == "" {
		t.Error("expected non-empty event ID")
	}
	if e.Type != TypeRequisitionSubmitted {
		t.Errorf("expected type %s, got %s", TypeRequisitionSubmitted, e.Type)
	}
	if e.RequisitionID != 42 {
		t.Errorf("expected requisition ID 42, got %d", e.RequisitionID)
	}
	if e.RequisitionNo != "REQ-2026-000042" {
		t.Errorf("unexpected requisition number: %s", e.RequisitionNo)
	}
	if time.Since(e.Timestamp) > time.Minute {
		t.Error("timestamp should be recent")
	}
	if e.Payload["role_code"] != "HOD" {
		t.Errorf("unexpected payload value: %v", e.Payload["role_code"])
	}
}

func TestNew_UniqueIDs(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		e := New(TypeStepAwaiting, 1, "REQ-2026-000001", nil)
		if seen[e.ID] {
			t.Fatalf("duplicate event ID: %s", e.ID)
		}
		seen[e.ID] = true
	}
}

func TestWithPayload_Immutable(t *testing.T) {
	original := New(TypeRequisitionApproved, 7, "REQ-2026-000007", map[string]interface{}{
		"status": "APPROVED",
	})

	derived := original.WithPayload("final_step", int64(3))

	if _, ok := original.Payload["final_step"]; ok {
		t.Error("original payload must not be mutated")
	}
	if derived.Payload["final_step"] != int64(3) {
		t.Errorf("expected final_step 3, got %v", derived.Payload["final_step"])
	}
	if derived.Payload["status"] != "APPROVED" {
		t.Error("derived event should retain original payload entries")
	}
	if derived.ID != original.ID {
		t.Error("derived event keeps the same identity")
	}
}

func TestTypeIsValid(t *testing.T) {
	for _, typ := range []Type{
		TypeRequisitionSubmitted, TypeStepAwaiting, TypeInfoSent,
		TypeRequisitionApproved, TypeRequisitionRejected,
		TypeRequisitionExecuted, TypeRequisitionCancelled,
	} {
		if !typ.IsValid() {
			t.Errorf("%s should be valid", typ)
		}
	}
	if Type("voucher.generated").IsValid() {
		t.Error("unknown type should be invalid")
	}
}
