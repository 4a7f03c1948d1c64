package store

import (
	"errors"
	"path/filepath"
	"testing"

	"panaudit/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "data", "panaudit.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestCreateAndGetSession(t *testing.T) {
	st := openTestStore(t)

	meta := model.Metadata{FirmwareVersion: "10.1.3", RuleCount: 2, AddressObjectCount: 1}
	session, err := st.CreateSession("Audit_1", "config.xml", "abc123", meta)
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	if session.ID == 0 {
		t.Fatal("expected a non-zero session id")
	}
	if session.EndTime != nil {
		t.Error("new sessions must have no end time")
	}

	got, err := st.GetSession(session.ID)
	if err != nil {
		t.Fatalf("failed to get session: %v", err)
	}
	if got.SessionName != "Audit_1" || got.Filename != "config.xml" || got.FileHash != "abc123" {
		t.Errorf("session round-trip wrong: %+v", got)
	}
	mm := got.MetadataMap()
	if mm["firmware_version"] != "10.1.3" {
		t.Errorf("metadata round-trip wrong: %v", mm)
	}
}

func TestGetSessionNotFound(t *testing.T) {
	st := openTestStore(t)

	if _, err := st.GetSession(999); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
	if _, _, err := st.Snapshot(999); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("snapshot of unknown session: expected ErrSessionNotFound, got %v", err)
	}
}

func TestFinishSessionStampsEndTime(t *testing.T) {
	st := openTestStore(t)

	session, err := st.CreateSession("Audit_1", "config.xml", "abc123", model.Metadata{})
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	if err := st.FinishSession(session.ID); err != nil {
		t.Fatalf("failed to finish session: %v", err)
	}

	got, err := st.GetSession(session.ID)
	if err != nil {
		t.Fatalf("failed to get session: %v", err)
	}
	if got.EndTime == nil {
		t.Error("expected end time to be set")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	st := openTestStore(t)

	session, err := st.CreateSession("Audit_1", "config.set", "abc123", model.Metadata{})
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}

	rules := []model.Rule{
		{Name: "Second", Type: "security", SrcZone: "trust", DstZone: "untrust", Src: "Host-A", Dst: "any", Service: "service-http", Action: "allow", Position: 2},
		{Name: "First", Type: "security", SrcZone: "any", DstZone: "any", Src: "any", Dst: "any", Service: "any", Action: "deny", Position: 1, IsDisabled: true},
	}
	objects := []model.Object{
		{Name: "Host-A", Type: model.ObjectTypeAddress, Value: "10.0.0.1/32", UsedInRules: 1},
	}

	if n, err := st.SaveRules(session.ID, rules); err != nil || n != 2 {
		t.Fatalf("SaveRules = %d, %v", n, err)
	}
	if n, err := st.SaveObjects(session.ID, objects); err != nil || n != 1 {
		t.Fatalf("SaveObjects = %d, %v", n, err)
	}

	gotRules, gotObjects, err := st.Snapshot(session.ID)
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	if len(gotRules) != 2 || len(gotObjects) != 1 {
		t.Fatalf("snapshot sizes wrong: %d rules, %d objects", len(gotRules), len(gotObjects))
	}
	if gotRules[0].Name != "First" || gotRules[1].Name != "Second" {
		t.Errorf("snapshot rules must come back in position order: %+v", gotRules)
	}
	if !gotRules[0].IsDisabled || gotRules[0].Action != "deny" {
		t.Errorf("rule fields lost in round trip: %+v", gotRules[0])
	}
	if gotObjects[0].Value != "10.0.0.1/32" || gotObjects[0].UsedInRules != 1 {
		t.Errorf("object fields lost in round trip: %+v", gotObjects[0])
	}
}

func TestSaveEmptySlicesIsNoOp(t *testing.T) {
	st := openTestStore(t)

	session, err := st.CreateSession("Audit_1", "config.set", "abc123", model.Metadata{})
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	if n, err := st.SaveRules(session.ID, nil); err != nil || n != 0 {
		t.Errorf("SaveRules(nil) = %d, %v", n, err)
	}
	if n, err := st.SaveObjects(session.ID, nil); err != nil || n != 0 {
		t.Errorf("SaveObjects(nil) = %d, %v", n, err)
	}
}

func TestListSessionsNewestFirst(t *testing.T) {
	st := openTestStore(t)

	for _, name := range []string{"Audit_1", "Audit_2", "Audit_3"} {
		if _, err := st.CreateSession(name, "config.xml", "h", model.Metadata{}); err != nil {
			t.Fatalf("failed to create session %s: %v", name, err)
		}
	}

	sessions, err := st.ListSessions()
	if err != nil {
		t.Fatalf("failed to list sessions: %v", err)
	}
	if len(sessions) != 3 {
		t.Fatalf("expected 3 sessions, got %d", len(sessions))
	}
	if sessions[0].SessionName != "Audit_3" || sessions[2].SessionName != "Audit_1" {
		t.Errorf("expected newest first, got %q .. %q", sessions[0].SessionName, sessions[2].SessionName)
	}
}

func TestCountForSessionIsScoped(t *testing.T) {
	st := openTestStore(t)

	s1, _ := st.CreateSession("Audit_1", "a.set", "h1", model.Metadata{})
	s2, _ := st.CreateSession("Audit_2", "b.set", "h2", model.Metadata{})

	if _, err := st.SaveRules(s1.ID, []model.Rule{{Name: "R1", Position: 1}, {Name: "R2", Position: 2}}); err != nil {
		t.Fatalf("failed to save rules: %v", err)
	}
	if _, err := st.SaveObjects(s2.ID, []model.Object{{Name: "O1"}}); err != nil {
		t.Fatalf("failed to save objects: %v", err)
	}

	ruleCount, objectCount, err := st.CountForSession(s1.ID)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if ruleCount != 2 || objectCount != 0 {
		t.Errorf("session 1 counts wrong: %d rules, %d objects", ruleCount, objectCount)
	}

	ruleCount, objectCount, err = st.CountForSession(s2.ID)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if ruleCount != 0 || objectCount != 1 {
		t.Errorf("session 2 counts wrong: %d rules, %d objects", ruleCount, objectCount)
	}
}
