package config

import (
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"golang.org/x/mod/semver"
)

// FileName is the optional project settings file, looked up from the
// pipeline's directory upward.
const FileName = "loom.toml"

type Settings struct {
	Loom    Loom              `toml:"loom"`
	Defines map[string]string `toml:"defines"`
}

type Loom struct {
	MinVersion string `toml:"min_version"`
	// Sandbox confines on-disk module loading to the pipeline directory.
	Sandbox bool `toml:"sandbox"`
}

func ParseSettings(r io.Reader) (s Settings, err error) {
	if _, err = toml.DecodeReader(r, &s); err != nil {
		return s, err
	}
	if s.Loom.MinVersion != "" && !semver.IsValid("v"+s.Loom.MinVersion) {
		return s, errors.Errorf("min_version %q is not a valid semantic version number", s.Loom.MinVersion)
	}
	return s, nil
}

func ReadSettings(location string) (s Settings, err error) {
	f, err := os.Open(location)
	if err != nil {
		return s, errors.Wrapf(err, "error loading %q", location)
	}
	defer f.Close()
	s, err = ParseSettings(f)
	return s, errors.Wrapf(err, "error decoding %q", location)
}

// FindSettings walks up from dir looking for a settings file. A missing file
// is not an error, it returns zero Settings and an empty location.
func FindSettings(dir string) (s Settings, location string, err error) {
	dir, err = filepath.Abs(dir)
	if err != nil {
		return s, "", err
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if fi, err := os.Stat(candidate); err == nil && !fi.IsDir() {
			s, err = ReadSettings(candidate)
			return s, candidate, err
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return s, "", nil
		}
		dir = parent
	}
}

// CheckVersion errors if the running tool is older than min_version.
func (s Settings) CheckVersion(toolVersion string) error {
	if s.Loom.MinVersion == "" {
		return nil
	}
	if semver.Compare("v"+toolVersion, "v"+s.Loom.MinVersion) < 0 {
		return errors.Errorf("this project requires loom %s or newer, running %s", s.Loom.MinVersion, toolVersion)
	}
	return nil
}
