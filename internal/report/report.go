package report

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"textdedup/internal/domain"
)

// DefaultFileName is the report written at the output root.
const DefaultFileName = "stats.md"

// Writer persists a Markdown report. By default a report is written only
// when at least one duplicate group exists; Always lifts that restriction.
type Writer struct {
	fileName string
	always   bool
}

func NewWriter(fileName string, always bool) *Writer {
	if fileName == "" {
		fileName = DefaultFileName
	}
	return &Writer{fileName: fileName, always: always}
}

// FileName is the report's name relative to the output root.
func (w *Writer) FileName() string { return w.fileName }

// Needed reports whether r gets a report file under the writer's policy.
func (w *Writer) Needed(r domain.RunReport) bool {
	return w.always || r.HasDuplicates()
}

func (w *Writer) Write(dir string, r domain.RunReport) (string, bool, error) {
	if !w.Needed(r) {
		return "", false, nil
	}
	path := filepath.Join(dir, w.fileName)
	if err := os.WriteFile(path, []byte(Render(r)), 0o644); err != nil {
		return path, false, fmt.Errorf("write report %s: %w", path, err)
	}
	return path, true, nil
}

// Render formats the report as Markdown. Output depends only on r.
func Render(r domain.RunReport) string {
	p := message.NewPrinter(language.English)
	var b strings.Builder

	b.WriteString("# Text Deduplication Statistics\n\n")
	b.WriteString("## Summary\n")
	p.Fprintf(&b, "- **Total files scanned**: %d\n", r.TotalFiles)
	p.Fprintf(&b, "- **Files processed**: %d\n", r.ProcessedFiles)
	p.Fprintf(&b, "- **Files kept**: %d\n", r.KeptFiles)
	p.Fprintf(&b, "- **Files removed**: %d\n", r.DroppedFiles)
	fmt.Fprintf(&b, "- **Removal percentage**: %.2f%%\n", r.RemovalPercentage())
	p.Fprintf(&b, "- **Empty files**: %d\n", r.EmptyFiles)
	p.Fprintf(&b, "- **Unreadable files**: %d\n", r.UnreadableFiles)
	p.Fprintf(&b, "- **Write failures**: %d\n\n", r.WriteFailures())

	b.WriteString("## Token Statistics\n")
	p.Fprintf(&b, "- **Total tokens**: %d\n", r.TotalTokens)
	p.Fprintf(&b, "- **Tokens removed**: %d\n", r.RemovedTokens)
	fmt.Fprintf(&b, "- **Token removal percentage**: %.2f%%\n\n", r.TokenRemovalPercentage())

	b.WriteString("## Duplicate Groups\n")
	var groups []domain.GroupReport
	for _, g := range r.Groups {
		if len(g.Members) > 1 {
			groups = append(groups, g)
		}
	}
	if len(groups) == 0 {
		b.WriteString("No duplicate groups found.\n")
	} else {
		fmt.Fprintf(&b, "Found %d groups of duplicate files:\n", len(groups))
	}
	for i, g := range groups {
		fmt.Fprintf(&b, "\n### Group %d\n", i+1)
		for _, m := range g.Members {
			mark := "removed"
			if m.RelPath == g.Kept {
				mark = "kept"
			}
			p.Fprintf(&b, "- `%s` (%d tokens, %d bytes) **%s**\n", m.RelPath, m.Tokens, m.SizeBytes, mark)
		}
	}

	if len(r.Failures) > 0 {
		b.WriteString("\n## Errors\n")
		for _, f := range r.Failures {
			fmt.Fprintf(&b, "- `%s`: %s\n", f.Path, kindName(f))
		}
	}
	return b.String()
}

func kindName(f *domain.FileError) string {
	for _, kind := range []error{domain.ErrUnreadableFile, domain.ErrWriteFailure, domain.ErrEmptyDocument} {
		if errors.Is(f, kind) {
			return kind.Error()
		}
	}
	return "error"
}
