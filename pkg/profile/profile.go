// Package profile reads freelancer profiles from .ini files.
//
// A profile file has a single [profile] section:
//
//	[profile]
//	name = Ada Lovelace
//	upwork_profile = '''
//	    Mathematician and analytical engine programmer.
//	    '''
//	job_profile = Ten years of numerical analysis.
//
// Multi-line values continue on indented lines. Surrounding ''' delimiters
// and whitespace are trimmed.
package profile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/ini.v1"
)

// Ext is the file extension of profile files.
const Ext = ".ini"

const section = "profile"

// ErrNotFound is returned when a named profile has no file.
var ErrNotFound = errors.New("profile: not found")

// Profile is the freelancer identity injected into workflow prompts.
type Profile struct {
	ID            string // File name without extension.
	Name          string
	UpworkProfile string
	JobProfile    string
}

// Load reads the profile at path. Missing keys are left empty.
func Load(path string) (Profile, error) {
	f, err := ini.LoadSources(ini.LoadOptions{
		AllowPythonMultilineValues: true,
		SpaceBeforeInlineComment:   true,
	}, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Profile{}, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return Profile{}, fmt.Errorf("profile: load %s: %w", path, err)
	}

	sec := f.Section(section)

	return Profile{
		ID:            strings.TrimSuffix(filepath.Base(path), Ext),
		Name:          strings.TrimSpace(sec.Key("name").String()),
		UpworkProfile: trimQuotes(sec.Key("upwork_profile").String()),
		JobProfile:    trimQuotes(sec.Key("job_profile").String()),
	}, nil
}

// LoadNamed reads profile id from dir.
func LoadNamed(dir, id string) (Profile, error) {
	return Load(filepath.Join(dir, id+Ext))
}

// List returns the IDs of the profiles in dir, sorted.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("profile: list %s: %w", dir, err)
	}

	var ids []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != Ext {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), Ext))
	}

	slices.Sort(ids)

	return ids, nil
}

func trimQuotes(v string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(v), "'"))
}
