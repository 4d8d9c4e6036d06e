package cli

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/StitchDesign/Stitch-sub007/internal/harness"
)

// scenarioExts are the file extensions LoadScenario understands.
var scenarioExts = []string{".yaml", ".yml", ".cue"}

// loadScenario reads a scenario file and fingerprints its bytes. The
// fingerprint is stored with recorded runs so replay can tell when the
// document changed since the recording.
func loadScenario(path string) (*harness.Scenario, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read scenario file: %w", err)
	}
	var s *harness.Scenario
	if filepath.Ext(path) == ".cue" {
		s, err = harness.ParseCUE(data, path)
	} else {
		s, err = harness.ParseYAML(data)
	}
	if err != nil {
		return nil, "", err
	}
	return s, documentHash(data), nil
}

func documentHash(data []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(data))
}

// findScenarioFiles lists scenario files under dir, sorted. filter is a
// glob matched against the file name without its extension.
func findScenarioFiles(dir, filter string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && d.Name() == "golden" {
				return filepath.SkipDir
			}
			return nil
		}
		ext := filepath.Ext(path)
		if !slices.Contains(scenarioExts, ext) {
			return nil
		}
		if filter != "" {
			matched, err := filepath.Match(filter, strings.TrimSuffix(d.Name(), ext))
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	slices.Sort(files)
	return files, err
}
