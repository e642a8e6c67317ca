package keys

import "testing"

func TestAuditLogRingBufferDropsOldest(t *testing.T) {
	log := NewAuditLog(3)
	log.Record("generate", "kek", "v1")
	log.Record("wrap", "dek", "obj-1")
	log.Record("unwrap", "dek", "obj-1")
	log.Record("rotate_kek", "kek", "v1 -> v2")

	recent := log.Recent(0)
	if len(recent) != 3 {
		t.Fatalf("expected ring buffer capped at 3, got %d", len(recent))
	}
	if recent[0].Operation != "wrap" {
		t.Fatalf("expected oldest event dropped, got %q first", recent[0].Operation)
	}
	if recent[len(recent)-1].Operation != "rotate_kek" {
		t.Fatalf("expected most recent event last, got %q", recent[len(recent)-1].Operation)
	}
}

func TestAuditLogRecentN(t *testing.T) {
	log := NewAuditLog(10)
	for _, op := range []string{"a", "b", "c", "d"} {
		log.Record(op, "subject", "")
	}
	recent := log.Recent(2)
	if len(recent) != 2 {
		t.Fatalf("expected 2 events, got %d", len(recent))
	}
	if recent[0].Operation != "c" || recent[1].Operation != "d" {
		t.Fatalf("expected [c d], got [%s %s]", recent[0].Operation, recent[1].Operation)
	}
}
