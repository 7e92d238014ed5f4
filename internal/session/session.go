package session

import (
	"fmt"
	"regexp"
	"strings"

	cerrors "github.com/zhubert/claude-menu/internal/errors"
)

// ProfilePrefix is prepended to every session name to form its profile name.
const ProfilePrefix = "Claude-"

// MaxNameLength is the longest accepted session name.
const MaxNameLength = 64

// CLI is the conversation CLI binary.
const CLI = "claude"

// UnnamedDisplay is shown for sessions nobody has named.
const UnnamedDisplay = "(unnamed)"

// Models accepted for forks.
var Models = []string{"opus", "sonnet", "haiku"}

var validNameRegex = regexp.MustCompile(`^[A-Za-z0-9 ._-]+$`)

// ValidateName checks a user-supplied session name.
func ValidateName(name string) error {
	if name == "" {
		return cerrors.InvalidName(name, "name is required")
	}
	if len(name) > MaxNameLength {
		return cerrors.InvalidName(name, fmt.Sprintf("name too long (max %d characters)", MaxNameLength))
	}
	if strings.TrimSpace(name) != name {
		return cerrors.InvalidName(name, "name cannot start or end with a space")
	}
	if name == "." || name == ".." {
		return cerrors.InvalidName(name, "name cannot be a relative path element")
	}
	if !validNameRegex.MatchString(name) {
		return cerrors.InvalidName(name, "use letters, numbers, space, '-', '_' or '.'")
	}
	return nil
}

// ValidateModel checks a fork model; empty means "inherit".
func ValidateModel(model string) error {
	if model == "" {
		return nil
	}
	for _, m := range Models {
		if m == model {
			return nil
		}
	}
	return cerrors.E(cerrors.Op("validate.Model"), cerrors.KindValidation,
		fmt.Sprintf("unknown model %q (use %s)", model, strings.Join(Models, ", ")))
}

// ProfileName returns the terminal profile name for a session name.
func ProfileName(name string) string {
	return ProfilePrefix + name
}

// NameFromProfile strips the profile prefix. ok is false when profile does
// not carry it.
func NameFromProfile(profile string) (name string, ok bool) {
	if !strings.HasPrefix(profile, ProfilePrefix) {
		return profile, false
	}
	return strings.TrimPrefix(profile, ProfilePrefix), true
}

// ResumeArgs returns the CLI arguments that continue a session.
func ResumeArgs(id string) []string {
	return []string{"--resume", id}
}

// NewArgs returns the CLI arguments that start a conversation under a
// chosen id.
func NewArgs(id, model string) []string {
	args := []string{"--session-id", id}
	if model != "" {
		args = append(args, "--model", model)
	}
	return args
}

// ForkArgs returns the CLI arguments that fork parent into newID. An empty
// model keeps the parent's.
func ForkArgs(parent, newID, model string) []string {
	args := []string{"--resume", parent, "--fork-session", "--session-id", newID}
	if model != "" {
		args = append(args, "--model", model)
	}
	return args
}

// Commandline joins the CLI and args into a single command line suitable for
// a terminal profile. Arguments containing spaces are double-quoted.
func Commandline(args []string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, CLI)
	for _, a := range args {
		if strings.ContainsAny(a, " \t") {
			a = `"` + a + `"`
		}
		parts = append(parts, a)
	}
	return strings.Join(parts, " ")
}
