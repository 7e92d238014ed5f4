package terminal

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tailscale/hujson"
	"github.com/tidwall/gjson"
	cerrors "github.com/zhubert/claude-menu/internal/errors"
)

const settingsFixture = `{
    "$schema": "https://aka.ms/terminal-profiles-schema",
    "defaultProfile": "{61c54bbd-c2c6-5271-96e7-009a87ff44bf}",
    "profiles": {
        "defaults": {"font": {"face": "Cascadia Mono"}},
        "list": [
            {
                "guid": "{61c54bbd-c2c6-5271-96e7-009a87ff44bf}",
                "name": "Windows PowerShell",
                "commandline": "powershell.exe",
                "hidden": false
            },
            {
                "guid": "{0caa0dad-35be-5f56-a8ff-afceeeaa6101}",
                "name": "Claude-Base",
                "hidden": true,
                "colorScheme": "One Half Dark",
                "font": {"face": "JetBrains Mono", "size": 11},
                "someFutureSetting": [1, 2, 3]
            }
        ]
    },
    "schemes": [],
    "actions": [{"command": "find", "keys": "ctrl+shift+f"}]
}
`

// tickingClock returns a clock that advances one second per call.
func tickingClock() func() time.Time {
	t := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func newTestSync(t *testing.T, content string) *Synchronizer {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.json")
	if content != "" {
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return &Synchronizer{
		Path:        path,
		BackupDir:   filepath.Join(dir, "backups"),
		KeepBackups: DefaultKeepBackups,
		Opacity:     0.3,
		BaseProfile: "Claude-Base",
		Now:         tickingClock(),
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func exp1() CreateProfile {
	return CreateProfile{
		Handle:            "{11111111-2222-3333-4444-555555555555}",
		Name:              "Claude-exp1",
		SessionID:         "new-session",
		StartingDirectory: `C:\repos\proj`,
		Commandline:       "claude --resume new-session",
		BackgroundImage:   `C:\menu\backgrounds\exp1\background.png`,
	}
}

func TestApply_CreateProfile(t *testing.T) {
	s := newTestSync(t, settingsFixture)

	res, err := s.Apply(exp1())
	require.NoError(t, err)
	require.True(t, res.Changed)
	require.Equal(t, exp1().Handle, res.Handle)
	require.Equal(t, []State{StateIdle, StateBackupTaken, StateValidated, StateMutated, StateWrittenBack, StateIdle}, res.History)

	// The backup holds the original bytes.
	require.Equal(t, settingsFixture, readFile(t, res.BackupPath))

	after := readFile(t, s.Path)
	list := gjson.Get(after, "profiles.list").Array()
	require.Len(t, list, 3, "existing base profile must be reused")

	created := list[2]
	require.Equal(t, "Claude-exp1", created.Get("name").String())
	require.Equal(t, "claude --resume new-session", created.Get("commandline").String())
	require.Equal(t, 0.3, created.Get("backgroundImageOpacity").Float())
	require.False(t, created.Get("hidden").Bool())
	// Appearance comes from the base profile.
	require.Equal(t, "One Half Dark", created.Get("colorScheme").String())
	require.Equal(t, "JetBrains Mono", created.Get("font.face").String())
	require.False(t, created.Get("someFutureSetting").Exists())

	// Everything else is untouched, byte for byte.
	for _, path := range []string{"$schema", "defaultProfile", "profiles.defaults", "profiles.list.0", "profiles.list.1", "schemes", "actions"} {
		require.Equal(t, gjson.Get(settingsFixture, path).Raw, gjson.Get(after, path).Raw, path)
	}
}

func TestApply_CreateProfileAddsBaseOnce(t *testing.T) {
	s := newTestSync(t, `{"profiles":{"list":[]}}`)

	_, err := s.Apply(exp1())
	require.NoError(t, err)

	second := exp1()
	second.Handle = "{99999999-2222-3333-4444-555555555555}"
	second.Name = "Claude-exp2"
	second.SessionID = "other"
	second.Commandline = "claude --resume other"
	_, err = s.Apply(second)
	require.NoError(t, err)

	snap, err := s.Read()
	require.NoError(t, err)
	require.Len(t, snap.Profiles, 3)

	base, ok := snap.ByName("Claude-Base")
	require.True(t, ok)
	require.True(t, base.Hidden)
	require.Equal(t, BaseHandle("Claude-Base"), base.Handle)

	after := readFile(t, s.Path)
	require.Equal(t, "Campbell", gjson.Get(after, "profiles.list.1.colorScheme").String())
}

func TestApply_CreateIsIdempotent(t *testing.T) {
	s := newTestSync(t, settingsFixture)
	_, err := s.Apply(exp1())
	require.NoError(t, err)
	before := readFile(t, s.Path)

	res, err := s.Apply(exp1())
	require.NoError(t, err)
	require.False(t, res.Changed)
	require.Equal(t, []State{StateIdle, StateBackupTaken, StateValidated, StateMutated, StateIdle}, res.History)
	require.Equal(t, before, readFile(t, s.Path))
}

func TestApply_CreateDuplicateName(t *testing.T) {
	s := newTestSync(t, `{"profiles":{"list":[
  {"guid":"{aaaaaaaa-0000-0000-0000-000000000000}","name":"Claude-exp1","commandline":"claude --resume someone-else"}
]}}`)
	before := readFile(t, s.Path)

	res, err := s.Apply(exp1())
	require.Error(t, err)
	require.True(t, cerrors.Is(err, cerrors.KindDuplicateName), "got %v", err)
	require.Contains(t, err.Error(), "someone-else")
	require.Equal(t, ReasonMutateFailed, res.Reason)
	require.Contains(t, res.History, StateFailed)
	require.Contains(t, res.History, StateRestoredFromBackup)
	require.Equal(t, before, readFile(t, s.Path))
}

func TestApply_CreateAdoptsOwnProfile(t *testing.T) {
	// Same name, different handle, but it launches the same session.
	s := newTestSync(t, `{"profiles":{"list":[
  {"guid":"{aaaaaaaa-0000-0000-0000-000000000000}","name":"Claude-exp1","commandline":"claude --resume new-session"}
]}}`)

	res, err := s.Apply(exp1())
	require.NoError(t, err)
	require.Equal(t, "{aaaaaaaa-0000-0000-0000-000000000000}", res.Handle)
}

func TestApply_UpdateProfile(t *testing.T) {
	s := newTestSync(t, settingsFixture)
	_, err := s.Apply(exp1())
	require.NoError(t, err)

	image := `C:\menu\backgrounds\exp1\background-2.png`
	opacity := 0.5
	res, err := s.Apply(UpdateProfile{Handle: "{11111111-2222-3333-4444-555555555555}", BackgroundImage: &image, Opacity: &opacity})
	require.NoError(t, err)
	require.True(t, res.Changed)

	after := readFile(t, s.Path)
	require.Equal(t, image, gjson.Get(after, "profiles.list.2.backgroundImage").String())
	require.Equal(t, 0.5, gjson.Get(after, "profiles.list.2.backgroundImageOpacity").Float())
	require.Equal(t, "Claude-exp1", gjson.Get(after, "profiles.list.2.name").String())

	// Handles match regardless of case and braces.
	name := "Claude-renamed"
	_, err = s.Apply(UpdateProfile{Handle: "11111111-2222-3333-4444-555555555555", Name: &name})
	require.NoError(t, err)
	require.Equal(t, name, gjson.Get(readFile(t, s.Path), "profiles.list.2.name").String())
}

func TestApply_UpdateMissingHandle(t *testing.T) {
	s := newTestSync(t, settingsFixture)
	name := "x"
	_, err := s.Apply(UpdateProfile{Handle: "{deadbeef-0000-0000-0000-000000000000}", Name: &name})
	require.True(t, cerrors.Is(err, cerrors.KindDanglingReference), "got %v", err)
	require.Equal(t, settingsFixture, readFile(t, s.Path))
}

func TestApply_DeleteIsIdempotent(t *testing.T) {
	s := newTestSync(t, settingsFixture)
	_, err := s.Apply(exp1())
	require.NoError(t, err)

	res, err := s.Apply(DeleteProfile{Handle: exp1().Handle})
	require.NoError(t, err)
	require.True(t, res.Changed)
	require.Len(t, gjson.Get(readFile(t, s.Path), "profiles.list").Array(), 2)

	res, err = s.Apply(DeleteProfile{Handle: exp1().Handle})
	require.NoError(t, err)
	require.False(t, res.Changed)
}

func TestApply_CorruptSource(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"truncated", `{"profiles": {"list": [`},
		{"unterminated comment", "{\n  /* user comment\n  \"profiles\": {\"list\": []}\n}"},
		{"array root", `[]`},
		{"list is object", `{"profiles":{"list":{}}}`},
		{"profiles is string", `{"profiles":"nope"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestSync(t, tt.content)

			res, err := s.Apply(exp1())
			require.True(t, cerrors.Is(err, cerrors.KindExternalConfigCorrupt), "got %v", err)
			require.Equal(t, ReasonCorruptSource, res.Reason)
			require.Equal(t, []State{StateIdle, StateBackupTaken, StateFailed, StateRestoredFromBackup, StateIdle}, res.History)
			require.Equal(t, tt.content, readFile(t, s.Path))

			_, err = s.Read()
			require.True(t, cerrors.Is(err, cerrors.KindExternalConfigCorrupt))
		})
	}
}

const commentedFixture = `{
    // Edited by hand.
    "profiles": {
        "list": [
            {
                "guid": "{61c54bbd-c2c6-5271-96e7-009a87ff44bf}",
                "name": "Windows PowerShell", // keep me
            },
        ],
    },
    /* trailing block */
}
`

func TestApply_CommentedSettingsKeepComments(t *testing.T) {
	s := newTestSync(t, commentedFixture)

	snap, err := s.Read()
	require.NoError(t, err)
	require.Len(t, snap.Profiles, 1)

	res, err := s.Apply(exp1())
	require.NoError(t, err)
	require.True(t, res.Changed)
	require.Equal(t, commentedFixture, readFile(t, res.BackupPath))

	after := readFile(t, s.Path)
	for _, c := range []string{"// Edited by hand.", "// keep me", "/* trailing block */"} {
		require.Contains(t, after, c)
	}
	std, err := hujson.Standardize([]byte(after))
	require.NoError(t, err)
	created := gjson.GetBytes(std, `profiles.list.#(name=="Claude-exp1")`)
	require.True(t, created.Exists())
	require.Equal(t, "claude --resume new-session", created.Get("commandline").String())

	name := "Claude-renamed"
	_, err = s.Apply(UpdateProfile{Handle: exp1().Handle, Name: &name})
	require.NoError(t, err)
	snap, err = s.Read()
	require.NoError(t, err)
	p, ok := snap.ByHandle(exp1().Handle)
	require.True(t, ok)
	require.Equal(t, "Claude-renamed", p.Name)

	_, err = s.Apply(DeleteProfile{Handle: exp1().Handle})
	require.NoError(t, err)
	after = readFile(t, s.Path)
	require.Contains(t, after, "// keep me")
	snap, err = s.Read()
	require.NoError(t, err)
	require.False(t, snap.Has(exp1().Handle))
	require.True(t, snap.Has("{61c54bbd-c2c6-5271-96e7-009a87ff44bf}"))
}

func TestApply_CommentedSettingsWithoutProfiles(t *testing.T) {
	s := newTestSync(t, "{\n  // empty\n  \"theme\": \"dark\",\n}\n")

	_, err := s.Apply(exp1())
	require.NoError(t, err)
	after := readFile(t, s.Path)
	require.Contains(t, after, "// empty")
	snap, err := s.Read()
	require.NoError(t, err)
	require.True(t, snap.Has(exp1().Handle))
}

func TestApply_InjectedFailuresRestoreOriginal(t *testing.T) {
	intents := map[string]Intent{
		"create": exp1(),
		"delete": DeleteProfile{Handle: "{61c54bbd-c2c6-5271-96e7-009a87ff44bf}"},
	}
	for _, failAt := range []State{StateBackupTaken, StateValidated, StateMutated, StateWrittenBack} {
		for name, intent := range intents {
			t.Run(failAt.String()+"/"+name, func(t *testing.T) {
				s := newTestSync(t, settingsFixture)
				injected := errors.New("injected")
				s.Hook = func(st State) error {
					if st == failAt {
						return injected
					}
					return nil
				}

				res, err := s.Apply(intent)
				require.ErrorIs(t, err, injected)
				require.Contains(t, res.History, StateFailed)
				require.Contains(t, res.History, StateRestoredFromBackup)
				require.Equal(t, StateRestoredFromBackup, res.Final())
				require.Equal(t, settingsFixture, readFile(t, s.Path))
			})
		}
	}
}

func TestApply_MissingFile(t *testing.T) {
	s := newTestSync(t, "")

	res, err := s.Apply(exp1())
	require.NoError(t, err)
	require.True(t, res.Changed)
	require.Empty(t, res.BackupPath)

	snap, err := s.Read()
	require.NoError(t, err)
	require.True(t, snap.Exists)
	require.True(t, snap.Has(exp1().Handle))
	p, _ := snap.ByHandle(exp1().Handle)
	require.Equal(t, "new-session", p.SessionID)

	// Deleting from a missing file changes nothing and creates nothing.
	s2 := newTestSync(t, "")
	res, err = s2.Apply(DeleteProfile{Handle: "{x}"})
	require.NoError(t, err)
	require.False(t, res.Changed)
	_, statErr := os.Stat(s2.Path)
	require.True(t, os.IsNotExist(statErr))
}

func TestApply_MissingFileFailureRemovesCreatedFile(t *testing.T) {
	s := newTestSync(t, "")
	s.Hook = func(st State) error {
		if st == StateWrittenBack {
			return errors.New("boom")
		}
		return nil
	}
	_, err := s.Apply(exp1())
	require.Error(t, err)
	_, statErr := os.Stat(s.Path)
	require.True(t, os.IsNotExist(statErr))
}

func TestApply_LegacyProfilesArray(t *testing.T) {
	legacy := `{"profiles":[{"guid":"{0}","name":"cmd"}],"other":true}`
	s := newTestSync(t, legacy)

	_, err := s.Apply(exp1())
	require.NoError(t, err)

	after := readFile(t, s.Path)
	list := gjson.Get(after, "profiles").Array()
	require.Len(t, list, 3)
	require.Equal(t, "cmd", list[0].Get("name").String())
	require.Equal(t, "Claude-exp1", list[2].Get("name").String())
	require.True(t, gjson.Get(after, "other").Bool())
}

func TestApply_BackupFailureLeavesFileAlone(t *testing.T) {
	s := newTestSync(t, settingsFixture)
	// A regular file where the backup directory should be.
	require.NoError(t, os.WriteFile(s.BackupDir, []byte("x"), 0o644))

	res, err := s.Apply(exp1())
	require.True(t, cerrors.Is(err, cerrors.KindIO), "got %v", err)
	require.Equal(t, ReasonBackupFailed, res.Reason)
	require.Equal(t, []State{StateIdle, StateFailed, StateIdle}, res.History)
	require.Equal(t, settingsFixture, readFile(t, s.Path))
}

func TestApply_PrunesOldBackups(t *testing.T) {
	s := newTestSync(t, settingsFixture)
	s.KeepBackups = 2

	for i := 0; i < 4; i++ {
		opacity := 0.1 * float64(i+1)
		if i == 0 {
			_, err := s.Apply(exp1())
			require.NoError(t, err)
			continue
		}
		_, err := s.Apply(UpdateProfile{Handle: exp1().Handle, Opacity: &opacity})
		require.NoError(t, err)
	}

	matches, err := filepath.Glob(filepath.Join(s.BackupDir, "settings.json.*.bak"))
	require.NoError(t, err)
	require.Len(t, matches, 2)
}

func TestApply_CyclesInOneClockTick(t *testing.T) {
	s := newTestSync(t, settingsFixture)
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.Now = func() time.Time { return fixed }

	first, err := s.Apply(exp1())
	require.NoError(t, err)
	second, err := s.Apply(DeleteProfile{Handle: exp1().Handle})
	require.NoError(t, err)
	require.True(t, second.Changed)
	require.NotEqual(t, first.BackupPath, second.BackupPath)

	// Each backup holds the bytes its own cycle started from.
	require.Equal(t, settingsFixture, readFile(t, first.BackupPath))
	require.Contains(t, readFile(t, second.BackupPath), "Claude-exp1")

	snap, err := s.Read()
	require.NoError(t, err)
	require.False(t, snap.Has(exp1().Handle))
}

func TestState_String(t *testing.T) {
	require.Equal(t, "backup-taken", StateBackupTaken.String())
	require.Equal(t, "restored-from-backup", StateRestoredFromBackup.String())
	require.Equal(t, "unknown", State(42).String())
}
