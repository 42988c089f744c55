package worker

import (
	"os"
	"path/filepath"
	"testing"
)

func TestReadOriginsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.txt")
	content := `# cohort profiles
https://www.myneta.info/TamilNadu2021/candidate.php?candidate_id=1

https://www.myneta.info/TamilNadu2021/candidate.php?candidate_id=2
https://www.myneta.info/TamilNadu2021/candidate.php?candidate_id=1
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	origins, err := ReadOriginsFromFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(origins) != 2 {
		t.Fatalf("expected 2 origins, got %d: %v", len(origins), origins)
	}
	if origins[0] != "https://www.myneta.info/TamilNadu2021/candidate.php?candidate_id=1" {
		t.Errorf("unexpected first origin %q", origins[0])
	}
}

func TestReadOriginsFromFile_NonExistent(t *testing.T) {
	if _, err := ReadOriginsFromFile(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Error("expected error for missing file")
	}
}
