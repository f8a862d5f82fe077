package vocabstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

// LockFileName is written next to the downloaded vocabularies.
const LockFileName = "download-manifest.lock.json"

type lockManifest struct {
	Source    string                `json:"source"`
	Generated string                `json:"generated"`
	Files     map[string]lockRecord `json:"files"`
}

type lockRecord struct {
	SHA256  string `json:"sha256"`
	Ranked  string `json:"ranked"`
	Entries int    `json:"entries"`
}

var shaHexPattern = regexp.MustCompile(`(?i)^[a-f0-9]{64}$`)

func isSHA256Hex(v string) bool {
	return shaHexPattern.MatchString(v)
}

func lockPath(dir string) string {
	return filepath.Join(dir, LockFileName)
}

// readLockManifest returns an empty manifest when the file is missing or
// unreadable, so a corrupt lock only costs a re-download.
func readLockManifest(path string) lockManifest {
	b, err := os.ReadFile(path)
	if err != nil {
		return lockManifest{Files: map[string]lockRecord{}}
	}
	var out lockManifest
	if err := json.Unmarshal(b, &out); err != nil {
		return lockManifest{Files: map[string]lockRecord{}}
	}
	if out.Files == nil {
		out.Files = map[string]lockRecord{}
	}
	return out
}

func writeLockManifest(path string, lock lockManifest) error {
	b, err := json.MarshalIndent(lock, "", "  ")
	if err != nil {
		return fmt.Errorf("encode lock manifest: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write lock manifest: %w", err)
	}
	return nil
}
