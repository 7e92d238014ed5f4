package tracking

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	cerrors "github.com/zhubert/claude-menu/internal/errors"
)

var fixedNow = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

func testPaths(t *testing.T) Paths {
	t.Helper()
	dir := t.TempDir()
	return Paths{
		Mapping:     filepath.Join(dir, "session-mapping.json"),
		Registry:    filepath.Join(dir, "profile-registry.json"),
		Backgrounds: filepath.Join(dir, "background-tracking.json"),
	}
}

func openStore(t *testing.T, p Paths) *Store {
	t.Helper()
	s, err := Open(p, func() time.Time { return fixedNow })
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	return s
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestOpen_MissingFiles(t *testing.T) {
	p := testPaths(t)
	s := openStore(t, p)

	if len(s.Mappings()) != 0 || len(s.ProfileEntries()) != 0 || len(s.Backgrounds()) != 0 {
		t.Fatal("expected empty tables")
	}
	if w := s.Warnings(); len(w) != 0 {
		t.Errorf("unexpected warnings: %v", w)
	}
	for _, st := range s.Status() {
		if st.Version != CurrentVersion {
			t.Errorf("%s version = %d, want %d", st.Name, st.Version, CurrentVersion)
		}
	}

	// Nothing changed, so nothing is written.
	if err := s.Save(); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	if _, err := os.Stat(p.Mapping); !os.IsNotExist(err) {
		t.Error("Save() should not create an unchanged empty table")
	}
}

func TestSave_RoundTripIsByteIdentical(t *testing.T) {
	p := testPaths(t)
	// Hand formatted, unusual key order, null fields and a legacy version.
	mapping := `{ "sessions": [
    {"created": "2025-01-01T00:00:00Z", "sessionId": "aaa", "profileName": "Claude-exp1",
     "projectPath": null, "model": "opus", "forkedFrom": "bbb"}
  ],
  "version": 0 }
`
	registry := "{\"version\":1,\"profiles\":[{\"sessionName\":\"old\",\"profileHandle\":\"{1}\",\"originalSessionId\":\"ccc\"}]}"
	writeFile(t, p.Mapping, mapping)
	writeFile(t, p.Registry, registry)

	s := openStore(t, p)
	if err := s.Save(); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	for path, want := range map[string]string{p.Mapping: mapping, p.Registry: registry} {
		got, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != want {
			t.Errorf("%s changed on round trip:\n%s", filepath.Base(path), got)
		}
	}
}

func TestSave_WritesChangedTablesOnly(t *testing.T) {
	p := testPaths(t)
	writeFile(t, p.Registry, `{"version":1,"profiles":[]}`)

	s := openStore(t, p)
	if err := s.AddMapping(Mapping{SessionID: "new", ProfileName: "Claude-exp1", Model: "opus", ForkedFrom: "A"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	reopened := openStore(t, p)
	m, ok := reopened.Mapping("new")
	if !ok {
		t.Fatal("mapping not persisted")
	}
	if m.ForkedFrom != "A" || m.ProfileName != "Claude-exp1" || m.Created != fixedNow.Format(time.RFC3339) {
		t.Errorf("unexpected mapping: %+v", m)
	}

	data, _ := os.ReadFile(p.Registry)
	if string(data) != `{"version":1,"profiles":[]}` {
		t.Errorf("registry should be untouched, got %s", data)
	}
}

func TestOpen_QuarantinesCorruptFile(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"truncated json", `{"version":1,"sessions":[{"sessionId":`},
		{"wrong shape", `{"version":1,"sessions":{"sessionId":"a"}}`},
		{"missing id", `{"version":1,"sessions":[{"profileName":"Claude-x"}]}`},
		{"not an object", `[1,2,3]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testPaths(t)
			writeFile(t, p.Mapping, tt.content)

			s := openStore(t, p)
			if len(s.Mappings()) != 0 {
				t.Error("corrupt table should load empty")
			}
			warnings := s.Warnings()
			if len(warnings) != 1 || !cerrors.Is(warnings[0], cerrors.KindCorruptStore) {
				t.Fatalf("warnings = %v", warnings)
			}
			if _, err := os.Stat(p.Mapping); !os.IsNotExist(err) {
				t.Error("corrupt file should have been moved aside")
			}
			matches, _ := filepath.Glob(p.Mapping + ".corrupt-*")
			if len(matches) != 1 {
				t.Fatalf("quarantine files = %v", matches)
			}
			data, _ := os.ReadFile(matches[0])
			if string(data) != tt.content {
				t.Error("quarantined file must keep the original bytes")
			}
		})
	}
}

func TestOpen_FutureVersionIsReadOnly(t *testing.T) {
	p := testPaths(t)
	future := `{"version":7,"sessions":[{"sessionId":"aaa","profileName":"Claude-x","shiny":true}]}`
	writeFile(t, p.Mapping, future)

	s := openStore(t, p)
	if _, ok := s.Mapping("aaa"); !ok {
		t.Error("future table should still be readable")
	}
	var status TableStatus
	for _, st := range s.Status() {
		if st.Name == mappingName {
			status = st
		}
	}
	if !status.ReadOnly || status.OnDisk != 7 {
		t.Errorf("status = %+v", status)
	}

	// Unmodified: saving is fine.
	if err := s.Save(); err != nil {
		t.Fatalf("Save() of unmodified read-only table failed: %v", err)
	}

	if err := s.AddMapping(Mapping{SessionID: "bbb"}); err != nil {
		t.Fatal(err)
	}
	err := s.Save()
	if !cerrors.Is(err, cerrors.KindReadOnly) {
		t.Fatalf("Save() = %v, want read-only error", err)
	}
	data, _ := os.ReadFile(p.Mapping)
	if string(data) != future {
		t.Error("read-only table must not be rewritten")
	}
}

func TestOpen_FutureVersionDecodeErrorIsAWarning(t *testing.T) {
	p := testPaths(t)
	writeFile(t, p.Backgrounds, `{"version":7,"backgrounds":{"moved":"elsewhere"}}`)

	s := openStore(t, p)
	w := s.Warnings()
	if len(w) != 1 {
		t.Fatalf("warnings = %v, want one", w)
	}
	if !cerrors.Is(w[0], cerrors.KindReadOnly) {
		t.Errorf("warning = %v, want read-only kind", w[0])
	}
	if !strings.Contains(w[0].Error(), "version 7") {
		t.Errorf("warning should name the version: %v", w[0])
	}
	if len(s.Backgrounds()) != 0 {
		t.Error("undecodable table should load empty")
	}
}

func TestSave_ReadOnlyTableBlocksOtherWrites(t *testing.T) {
	p := testPaths(t)
	writeFile(t, p.Registry, `{"version":7,"profiles":[]}`)

	s := openStore(t, p)
	if err := s.AddMapping(Mapping{SessionID: "a", ProfileName: "Claude-a"}); err != nil {
		t.Fatal(err)
	}
	if err := s.UpsertProfile(ProfileEntry{SessionName: "a", ProfileHandle: "{1}", OriginalSessionID: "a"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(); !cerrors.Is(err, cerrors.KindReadOnly) {
		t.Fatalf("Save() = %v, want read-only error", err)
	}
	if _, err := os.Stat(p.Mapping); !os.IsNotExist(err) {
		t.Error("writable tables must not be saved when a read-only table blocks")
	}
}

func TestAddMapping_DuplicateProfileName(t *testing.T) {
	s := openStore(t, testPaths(t))
	if err := s.AddMapping(Mapping{SessionID: "a", ProfileName: "Claude-exp1"}); err != nil {
		t.Fatal(err)
	}
	// Same session may update its own mapping.
	if err := s.AddMapping(Mapping{SessionID: "a", ProfileName: "Claude-exp1", Model: "haiku"}); err != nil {
		t.Fatalf("self update failed: %v", err)
	}
	err := s.AddMapping(Mapping{SessionID: "b", ProfileName: "Claude-exp1"})
	if !cerrors.Is(err, cerrors.KindDuplicateName) {
		t.Fatalf("err = %v, want duplicate name", err)
	}
	if len(s.Mappings()) != 1 {
		t.Error("rejected mapping must not be stored")
	}
}

func TestRenameSession(t *testing.T) {
	s := openStore(t, testPaths(t))
	must(t, s.AddMapping(Mapping{SessionID: "parent", ProfileName: "Claude-root"}))
	must(t, s.AddMapping(Mapping{SessionID: "child", ProfileName: "Claude-exp1", ForkedFrom: "parent", Model: "opus", ProjectPath: `C:\repos\proj`}))
	must(t, s.UpsertProfile(ProfileEntry{SessionName: "exp1", ProfileHandle: "{h1}", OriginalSessionID: "child", BackgroundImage: "/bg/exp1.png"}))
	must(t, s.AddBackground(BackgroundEntry{SessionName: "exp1", BackgroundPath: "/bg/exp1.png", ImageType: ImageFork}))

	if err := s.RenameSession("child", "parser rework"); err != nil {
		t.Fatalf("RenameSession() failed: %v", err)
	}

	m, _ := s.Mapping("child")
	if m.ProfileName != "Claude-parser rework" {
		t.Errorf("ProfileName = %q", m.ProfileName)
	}
	if m.ForkedFrom != "parent" || m.Model != "opus" || m.ProjectPath != `C:\repos\proj` {
		t.Errorf("rename dropped fields: %+v", m)
	}
	if _, ok := s.Profile("parser rework"); !ok {
		t.Error("registry entry should follow the rename")
	}
	if _, ok := s.Background("parser rework"); !ok {
		t.Error("background entry should follow the rename")
	}
	if rec, ok := s.ProfileForSession("child"); !ok || rec.ProfileHandle != "{h1}" {
		t.Errorf("ProfileForSession = %+v, %v", rec, ok)
	}

	tests := []struct {
		name string
		id   string
		to   string
		kind cerrors.Kind
	}{
		{"unknown session", "nope", "x", cerrors.KindNotFound},
		{"taken name", "child", "root", cerrors.KindDuplicateName},
		{"invalid name", "child", "a/b", cerrors.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.RenameSession(tt.id, tt.to); !cerrors.Is(err, tt.kind) {
				t.Errorf("RenameSession(%q, %q) = %v, want %v", tt.id, tt.to, err, tt.kind)
			}
		})
	}
}

func TestLineage(t *testing.T) {
	s := openStore(t, testPaths(t))
	must(t, s.AddMapping(Mapping{SessionID: "a"}))
	must(t, s.AddMapping(Mapping{SessionID: "b", ForkedFrom: "a"}))
	must(t, s.AddMapping(Mapping{SessionID: "c", ForkedFrom: "b"}))
	must(t, s.AddMapping(Mapping{SessionID: "d", ForkedFrom: "a"}))
	must(t, s.AddMapping(Mapping{SessionID: "x"}))

	got := s.Lineage("b")
	for _, id := range []string{"a", "b", "c"} {
		if !got[id] {
			t.Errorf("lineage of b should include %s", id)
		}
	}
	if got["x"] || got["d"] {
		t.Errorf("lineage of b = %v", got)
	}
	if children := s.Children("a"); strings.Join(children, ",") != "b,d" {
		t.Errorf("Children(a) = %v", children)
	}

	// A cycle in hand-edited data must not hang.
	must(t, s.AddMapping(Mapping{SessionID: "a", ForkedFrom: "c"}))
	if got := s.Lineage("a"); !got["c"] {
		t.Errorf("cyclic lineage = %v", got)
	}
}

func TestArtifacts_ReferenceCounts(t *testing.T) {
	s := openStore(t, testPaths(t))
	must(t, s.UpsertProfile(ProfileEntry{SessionName: "one", ProfileHandle: "{1}", OriginalSessionID: "s1", BackgroundImage: "/bg/shared.png"}))
	must(t, s.UpsertProfile(ProfileEntry{SessionName: "two", ProfileHandle: "{2}", OriginalSessionID: "s2", BackgroundImage: "/bg/shared.png"}))
	must(t, s.AddBackground(BackgroundEntry{SessionName: "one", BackgroundPath: "/bg/shared.png", ImageType: ImageCustomText, TextContent: "hi"}))
	must(t, s.AddBackground(BackgroundEntry{SessionName: "gone", BackgroundPath: "/bg/orphan.png", ImageType: ImageFork}))

	shared := s.Artifact("/bg/shared.png")
	if strings.Join(shared.ReferencingProfiles, ",") != "Claude-one,Claude-two" {
		t.Errorf("shared refs = %v", shared.ReferencingProfiles)
	}
	if shared.SourceKind != ImageCustomText || shared.TextContent != "hi" {
		t.Errorf("shared = %+v", shared)
	}
	if !s.Artifact("/bg/orphan.png").Orphaned() {
		t.Error("orphan.png should be orphaned")
	}
	if !s.Artifact("/never/seen.png").Orphaned() {
		t.Error("unknown paths are orphaned")
	}

	if !s.RemoveProfile("two") {
		t.Fatal("RemoveProfile(two) = false")
	}
	if refs := s.Artifact("/bg/shared.png").ReferencingProfiles; len(refs) != 1 {
		t.Errorf("refs after removal = %v", refs)
	}

	pruned := s.PruneBackgrounds()
	if len(pruned) != 1 || pruned[0].SessionName != "gone" {
		t.Errorf("pruned = %+v", pruned)
	}
}

func TestAddBackground_Validation(t *testing.T) {
	s := openStore(t, testPaths(t))
	if err := s.AddBackground(BackgroundEntry{SessionName: "x", BackgroundPath: "/p", ImageType: "sketch"}); !cerrors.Is(err, cerrors.KindValidation) {
		t.Errorf("unknown image type err = %v", err)
	}
	if err := s.AddBackground(BackgroundEntry{SessionName: "x", ImageType: ImageFork}); !cerrors.Is(err, cerrors.KindValidation) {
		t.Errorf("missing path err = %v", err)
	}
	must(t, s.AddBackground(BackgroundEntry{SessionName: "x", BackgroundPath: "/a", ImageType: ImageFork}))
	must(t, s.AddBackground(BackgroundEntry{SessionName: "x", BackgroundPath: "/b", ImageType: ImageContinue}))
	if bgs := s.Backgrounds(); len(bgs) != 1 || bgs[0].BackgroundPath != "/b" {
		t.Errorf("backgrounds = %+v", bgs)
	}
}

func TestTrackedSessions_IncludesLegacyProfiles(t *testing.T) {
	s := openStore(t, testPaths(t))
	must(t, s.AddMapping(Mapping{SessionID: "a", ProfileName: "Claude-a"}))
	must(t, s.UpsertProfile(ProfileEntry{SessionName: "a", ProfileHandle: "{a}", OriginalSessionID: "a"}))
	must(t, s.UpsertProfile(ProfileEntry{SessionName: "legacy", ProfileHandle: "{l}", OriginalSessionID: "old", Model: "sonnet"}))

	tracked := s.TrackedSessions()
	if len(tracked) != 2 {
		t.Fatalf("tracked = %+v", tracked)
	}
	if tracked[1].SessionID != "old" || tracked[1].ProfileName != "Claude-legacy" || tracked[1].Model != "sonnet" {
		t.Errorf("legacy entry = %+v", tracked[1])
	}
	if len(s.Mappings()) != 1 {
		t.Error("TrackedSessions must not add mappings")
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}
