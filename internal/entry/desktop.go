package entry

import (
	"os"
	"strings"

	"gopkg.in/ini.v1"

	"github.com/lumen-launcher/lumen/internal/errors"
)

const (
	mainSectionName   = "Desktop Entry"
	actionSectionPref = "Desktop Action "
)

// ErrNotDisplayable is returned for descriptors that parse cleanly but
// do not qualify for the launcher (NoDisplay, Hidden, or no Exec line).
var ErrNotDisplayable = errors.New(errors.ErrCodeEntryParse, "entry is not displayable", nil)

// ParseDesktopFile parses one .desktop descriptor into an Entry.
//
// Per-entry failures are the caller's to contain: a malformed file yields
// an error, never a panic. Descriptors with NoDisplay=true, Hidden=true,
// or without an Exec line return ErrNotDisplayable.
func ParseDesktopFile(path string) (*Entry, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.ParseError("stat descriptor", err).WithDetail("path", path)
	}

	f, err := ini.Load(path)
	if err != nil {
		return nil, errors.ParseError("malformed descriptor", err).WithDetail("path", path)
	}

	sec, err := f.GetSection(mainSectionName)
	if err != nil {
		return nil, errors.ParseError("descriptor has no Desktop Entry section", err).WithDetail("path", path)
	}

	name := sec.Key("Name").String()
	if name == "" {
		return nil, errors.ParseError("descriptor has no Name", nil).WithDetail("path", path)
	}

	exec := sec.Key("Exec").String()
	if exec == "" {
		return nil, ErrNotDisplayable
	}
	if sec.Key("NoDisplay").MustBool(false) || sec.Key("Hidden").MustBool(false) {
		return nil, ErrNotDisplayable
	}

	description := sec.Key("Comment").String()
	if description == "" {
		description = sec.Key("GenericName").String()
	}

	e := &Entry{
		ID:          IDForPath(path),
		Name:        name,
		Description: description,
		Categories:  splitList(sec.Key("Categories").String()),
		Icon:        sec.Key("Icon").String(),
		Keywords:    splitList(sec.Key("Keywords").String()),
		SourcePath:  path,
		ModTime:     info.ModTime(),
	}
	e.Actions = append(e.Actions, Action{ID: DefaultActionID, Label: name, Exec: exec})
	e.Actions = append(e.Actions, parseActions(f, sec)...)
	e.Searchable = buildSearchable(e.Name, e.Description, e.Keywords)

	return e, nil
}

// parseActions collects the additional [Desktop Action X] sections
// declared in the main section's Actions key. Sections that are
// declared but missing or incomplete are skipped.
func parseActions(f *ini.File, main *ini.Section) []Action {
	declared := splitList(main.Key("Actions").String())
	if len(declared) == 0 {
		return nil
	}

	actions := make([]Action, 0, len(declared))
	for _, id := range declared {
		sec, err := f.GetSection(actionSectionPref + id)
		if err != nil {
			continue
		}
		label := sec.Key("Name").String()
		exec := sec.Key("Exec").String()
		if label == "" || exec == "" {
			continue
		}
		actions = append(actions, Action{ID: id, Label: label, Exec: exec})
	}
	return actions
}

// splitList splits a semicolon-separated desktop list value.
func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// IsDesktopFile reports whether the path looks like a descriptor file.
func IsDesktopFile(path string) bool {
	return strings.HasSuffix(path, ".desktop")
}
