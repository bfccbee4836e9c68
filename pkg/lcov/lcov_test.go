package lcov

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"git.kernel.fun/chapati.systems/covfix/pkg/coverage"
)

func writeTempSource(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

func TestCodecReadBasic(t *testing.T) {
	dir := t.TempDir()
	writeTempSource(t, dir, "main.rs", "fn main() {}\n")

	input := strings.Join([]string{
		"TN:mypkg",
		"SF:main.rs",
		"BRDA:1,0,0,1",
		"BRDA:1,0,1,-",
		"BRF:2",
		"BRH:1",
		"DA:1,3",
		"DA:2,0",
		"LF:2",
		"LH:1",
		"end_of_record",
		"",
	}, "\n")

	pkg, err := NewCodec(dir).Read(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	if pkg.Name != "mypkg" {
		t.Errorf("Name = %q, want %q", pkg.Name, "mypkg")
	}
	if len(pkg.Files) != 1 {
		t.Fatalf("len(Files) = %d, want 1", len(pkg.Files))
	}

	file := pkg.Files[0]
	if len(file.Lines) != 2 {
		t.Fatalf("len(Lines) = %d, want 2", len(file.Lines))
	}
	if file.Lines[0].LineNumber != 0 || *file.Lines[0].Count != 3 {
		t.Errorf("Lines[0] = %+v, want line 0 count 3", file.Lines[0])
	}
	if file.Lines[1].LineNumber != 1 || *file.Lines[1].Count != 0 {
		t.Errorf("Lines[1] = %+v, want line 1 count 0", file.Lines[1])
	}

	if len(file.Branches) != 2 {
		t.Fatalf("len(Branches) = %d, want 2", len(file.Branches))
	}
	if !*file.Branches[0].Taken {
		t.Error("Branches[0] should be taken")
	}
	if *file.Branches[1].Taken {
		t.Error("Branches[1] should not be taken (- token)")
	}
}

func TestCodecReadLineZeroSkipped(t *testing.T) {
	dir := t.TempDir()
	writeTempSource(t, dir, "main.rs", "fn main() {}\n")

	input := strings.Join([]string{
		"TN:",
		"SF:main.rs",
		"DA:0,1",
		"DA:1,1",
		"BRDA:0,0,0,1",
		"LF:1",
		"LH:1",
		"end_of_record",
		"",
	}, "\n")

	pkg, err := NewCodec(dir).Read(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	file := pkg.Files[0]
	if len(file.Lines) != 1 {
		t.Fatalf("len(Lines) = %d, want 1 (line 0 record must be skipped)", len(file.Lines))
	}
	if len(file.Branches) != 0 {
		t.Fatalf("len(Branches) = %d, want 0 (line 0 record must be skipped)", len(file.Branches))
	}
}

func TestCodecReadMissingSourceFile(t *testing.T) {
	dir := t.TempDir()

	input := strings.Join([]string{
		"TN:pkg",
		"SF:missing.rs",
		"DA:1,1",
		"LF:1",
		"LH:1",
		"end_of_record",
		"",
	}, "\n")

	_, err := NewCodec(dir).Read(strings.NewReader(input))
	if err == nil {
		t.Fatal("expected error for missing source file")
	}
	var notFound *coverage.SourceFileNotFoundError
	if !errors.As(err, &notFound) {
		t.Errorf("error = %v, want *coverage.SourceFileNotFoundError", err)
	}
}

func TestCodecWriteRoundTrip(t *testing.T) {
	dir := t.TempDir()
	writeTempSource(t, dir, "main.rs", "fn main() {}\nfn other() {}\n")

	block := 0
	pkg := &coverage.PackageCoverage{
		Name: "roundtrip",
		Files: []coverage.FileCoverage{
			{
				Path: filepath.Join(dir, "main.rs"),
				Lines: []coverage.LineCoverage{
					coverage.NewLineCoverage(0, 5),
					coverage.NewLineCoverage(1, 0),
				},
				Branches: []coverage.BranchCoverage{
					coverage.NewBranchCoverage(0, &block, true),
					coverage.NewBranchCoverage(0, &block, false),
				},
			},
		},
	}

	codec := NewCodec(dir)
	var buf strings.Builder
	if err := codec.Write(&buf, pkg); err != nil {
		t.Fatalf("Write: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"TN:roundtrip",
		"SF:main.rs",
		"BRDA:1,0,0,1",
		"BRDA:1,0,1,-",
		"BRF:2",
		"BRH:1",
		"DA:1,5",
		"DA:2,0",
		"LF:2",
		"LH:1",
		"end_of_record",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q\ngot:\n%s", want, out)
		}
	}

	reparsed, err := codec.Read(strings.NewReader(out))
	if err != nil {
		t.Fatalf("re-reading written output: %v", err)
	}
	if reparsed.Files[0].LineExecuted() != pkg.Files[0].LineExecuted() {
		t.Errorf("round trip changed LineExecuted: got %d, want %d",
			reparsed.Files[0].LineExecuted(), pkg.Files[0].LineExecuted())
	}
}

func TestCodecWriteBranchIndexResetsPerLine(t *testing.T) {
	dir := t.TempDir()
	writeTempSource(t, dir, "main.rs", "fn main() {}\n")

	pkg := &coverage.PackageCoverage{
		Files: []coverage.FileCoverage{
			{
				Path: filepath.Join(dir, "main.rs"),
				Branches: []coverage.BranchCoverage{
					coverage.NewBranchCoverage(0, nil, true),
					coverage.NewBranchCoverage(0, nil, false),
					coverage.NewBranchCoverage(1, nil, true),
				},
			},
		},
	}

	var buf strings.Builder
	if err := NewCodec(dir).Write(&buf, pkg); err != nil {
		t.Fatalf("Write: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"BRDA:1,0,0,1",
		"BRDA:1,0,1,-",
		"BRDA:2,0,0,1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q\ngot:\n%s", want, out)
		}
	}
}
