package service

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"textdedup/internal/corpus"
	"textdedup/internal/domain"
	"textdedup/internal/index"
	"textdedup/internal/logging"
	"textdedup/internal/replicator"
	"textdedup/internal/report"
	"textdedup/internal/signature"
	"textdedup/internal/tokenizer"
)

type testSetup struct {
	bands, rows  int
	reportAlways bool
	extensions   []string
	logger       *zerolog.Logger
	replicator   domain.Replicator
}

func newService(t *testing.T, in, out string, setup testSetup) *DedupService {
	t.Helper()
	signer, err := signature.NewMinHash(signature.DefaultSize, signature.DefaultSeed)
	require.NoError(t, err)
	idx, err := index.NewLSH(0.7, signature.DefaultSize, setup.bands, setup.rows)
	require.NoError(t, err)
	logger := zerolog.Nop()
	if setup.logger != nil {
		logger = *setup.logger
	}
	repl := setup.replicator
	if repl == nil {
		repl = replicator.New(logger)
	}
	return NewDedupService(
		Options{InputRoot: in, OutputRoot: out},
		corpus.NewScanner(setup.extensions),
		tokenizer.New(tokenizer.DefaultMinLength, nil),
		signer,
		idx,
		repl,
		report.NewWriter(report.DefaultFileName, setup.reportAlways),
		logger,
	)
}

// blockingReplicator puts a directory where one kept file must be written,
// after the output tree has been prepared.
type blockingReplicator struct {
	*replicator.TreeReplicator
	block string
}

func (b blockingReplicator) Prepare(outputRoot string, keep []string) error {
	if err := b.TreeReplicator.Prepare(outputRoot, keep); err != nil {
		return err
	}
	return os.MkdirAll(filepath.Join(outputRoot, b.block, "occupied"), 0o755)
}

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func readTree(t *testing.T, root string) map[string]string {
	t.Helper()
	out := map[string]string{}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(root, path)
		out[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	require.NoError(t, err)
	return out
}

func vocabulary(prefix string, n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = fmt.Sprintf("%s%03d", prefix, i)
	}
	return strings.Join(words, " ")
}

const (
	electric = `
    Electric Service Requirements Manual
    This document outlines the requirements for electric service installation.
    All installations must comply with safety standards and local regulations.
    Proper grounding and circuit protection are essential for safe operation.
    `
	electricExtended = electric + `    Additional requirements may apply based on local codes.
    `
	conduit = `
    Underground Conduit Specifications
    This specification covers the requirements for underground conduit systems.
    All conduits must be properly sealed and protected from moisture.
    Installation depth must meet local code requirements.
    `
	conduitExtended = conduit + `    Material specifications are detailed in section 3.2.
    `
	unrelated = `
    Completely Different Document
    This is a unique document with different content.
    It should not be considered a duplicate of any other file.
    `
)

func sevenFileFixture() map[string]string {
	return map[string]string{
		"file1.txt":           electric,
		"file2.txt":           electricExtended,
		"file3.txt":           conduit,
		"file4.txt":           conduitExtended,
		"file5.txt":           unrelated,
		"subfolder/file6.txt": electric,
		"subfolder/file7.txt": conduit,
	}
}

func TestRunThreeFileScenario(t *testing.T) {
	in, out := t.TempDir(), filepath.Join(t.TempDir(), "out")
	a := vocabulary("alpha", 50)
	writeTree(t, in, map[string]string{
		"A.txt": a,
		"B.txt": a + " extraword",
		"C.txt": vocabulary("gamma", 50),
	})

	rep, err := newService(t, in, out, testSetup{}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, rep.TotalFiles)
	assert.Equal(t, 2, rep.KeptFiles)
	assert.Equal(t, 1, rep.DroppedFiles)
	assert.Equal(t, 33.33, rep.RemovalPercentage())
	require.Len(t, rep.Groups, 1)
	assert.Equal(t, "A.txt", rep.Groups[0].Kept)
	assert.Len(t, rep.Groups[0].Members, 2)
	assert.Equal(t, 51, rep.RemovedTokens)

	tree := readTree(t, out)
	assert.Contains(t, tree, "A.txt")
	assert.Contains(t, tree, "C.txt")
	assert.NotContains(t, tree, "B.txt")
	assert.Equal(t, a, tree["A.txt"])
	assert.Contains(t, tree[report.DefaultFileName], "- **Removal percentage**: 33.33%")
}

func TestRunSevenFileFixture(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	writeTree(t, in, sevenFileFixture())

	rep, err := newService(t, in, out, testSetup{bands: 32, rows: 4}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 7, rep.TotalFiles)
	assert.Equal(t, 3, rep.KeptFiles)
	assert.Equal(t, 4, rep.DroppedFiles)
	assert.Equal(t, 57.14, rep.RemovalPercentage())
	require.Len(t, rep.Groups, 2)
	assert.Equal(t, "file1.txt", rep.Groups[0].Kept)
	assert.Equal(t, "file3.txt", rep.Groups[1].Kept)

	members := func(g domain.GroupReport) []string {
		var out []string
		for _, m := range g.Members {
			out = append(out, m.RelPath)
		}
		return out
	}
	assert.Equal(t, []string{"file1.txt", "file2.txt", "subfolder/file6.txt"}, members(rep.Groups[0]))
	assert.Equal(t, []string{"file3.txt", "file4.txt", "subfolder/file7.txt"}, members(rep.Groups[1]))

	tree := readTree(t, out)
	assert.Len(t, tree, 4)
	for _, kept := range []string{"file1.txt", "file3.txt", "file5.txt", report.DefaultFileName} {
		assert.Contains(t, tree, kept)
	}
}

func TestRunEmptyDocumentsAreKept(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	writeTree(t, in, map[string]string{
		"empty.txt": "",
		"blank.txt": "  \n\t ",
		"stop.txt":  "the and of it",
		"text.txt":  vocabulary("beta", 20),
	})

	rep, err := newService(t, in, out, testSetup{}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, rep.KeptFiles)
	assert.Equal(t, 0, rep.DroppedFiles)
	assert.Equal(t, 3, rep.EmptyFiles)
	assert.Empty(t, rep.Groups)
	for _, d := range rep.Decisions {
		if d.RelPath == "text.txt" {
			assert.Equal(t, domain.ReasonUnique, d.Reason)
			continue
		}
		assert.Equal(t, domain.ReasonEmpty, d.Reason, d.RelPath)
		assert.Equal(t, domain.Keep, d.Verdict)
	}

	tree := readTree(t, out)
	assert.Len(t, tree, 4)
	assert.Equal(t, "", tree["empty.txt"])
	assert.NotContains(t, tree, report.DefaultFileName)
}

func TestRunEmptyInputTree(t *testing.T) {
	in := t.TempDir()

	out := filepath.Join(t.TempDir(), "out")
	rep, err := newService(t, in, out, testSetup{}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, rep.TotalFiles)
	assert.Equal(t, 0.0, rep.RemovalPercentage())
	assert.DirExists(t, out)
	assert.Empty(t, readTree(t, out))

	always := filepath.Join(t.TempDir(), "out")
	_, err = newService(t, in, always, testSetup{reportAlways: true}).Run(context.Background())
	require.NoError(t, err)
	tree := readTree(t, always)
	require.Contains(t, tree, report.DefaultFileName)
	assert.Contains(t, tree[report.DefaultFileName], "- **Total files scanned**: 0")
	assert.Contains(t, tree[report.DefaultFileName], "No duplicate groups found.")
}

func TestRunSkipsUnreadableFiles(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	writeTree(t, in, map[string]string{
		"good.txt": vocabulary("delta", 10),
		"bad.txt":  string([]byte{0xff, 0xfe, 'x'}),
	})

	rep, err := newService(t, in, out, testSetup{}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, rep.TotalFiles)
	assert.Equal(t, 1, rep.ProcessedFiles)
	assert.Equal(t, 1, rep.UnreadableFiles)
	require.Len(t, rep.Failures, 1)
	assert.Equal(t, "bad.txt", rep.Failures[0].Path)
	assert.ErrorIs(t, rep.Failures[0], domain.ErrUnreadableFile)

	tree := readTree(t, out)
	assert.Contains(t, tree, "good.txt")
	assert.NotContains(t, tree, "bad.txt")
}

func TestRunRecordsWriteFailures(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	writeTree(t, in, map[string]string{
		"a.txt": vocabulary("one", 10),
		"b.txt": vocabulary("two", 10),
		"c.txt": vocabulary("three", 10),
	})
	blocking := blockingReplicator{TreeReplicator: replicator.New(zerolog.Nop()), block: "b.txt"}

	rep, err := newService(t, in, out, testSetup{replicator: blocking}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, rep.KeptFiles)
	assert.Equal(t, 2, rep.CopiedFiles)
	assert.Equal(t, 1, rep.WriteFailures())
	assert.FileExists(t, filepath.Join(out, "c.txt"))
}

func TestRunIsDeterministic(t *testing.T) {
	in := t.TempDir()
	writeTree(t, in, sevenFileFixture())

	out1, out2 := t.TempDir(), t.TempDir()
	rep1, err := newService(t, in, out1, testSetup{}).Run(context.Background())
	require.NoError(t, err)
	rep2, err := newService(t, in, out2, testSetup{}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, rep1.Decisions, rep2.Decisions)
	assert.Equal(t, rep1.Groups, rep2.Groups)
	assert.Equal(t, readTree(t, out1), readTree(t, out2))
}

func TestRunOnOwnOutputRemovesNothing(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	writeTree(t, in, sevenFileFixture())

	first, err := newService(t, in, out, testSetup{bands: 32, rows: 4}).Run(context.Background())
	require.NoError(t, err)
	require.Positive(t, first.DroppedFiles)

	second, err := newService(t, out, t.TempDir(), testSetup{bands: 32, rows: 4}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first.KeptFiles, second.TotalFiles)
	assert.Equal(t, 0, second.DroppedFiles)
}

func TestRunOutputInsideInputIsNotRescanned(t *testing.T) {
	in := t.TempDir()
	writeTree(t, in, sevenFileFixture())
	out := filepath.Join(in, "cleaned")

	first, err := newService(t, in, out, testSetup{bands: 32, rows: 4}).Run(context.Background())
	require.NoError(t, err)
	second, err := newService(t, in, out, testSetup{bands: 32, rows: 4}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 7, first.TotalFiles)
	assert.Equal(t, first.TotalFiles, second.TotalFiles)
	assert.Equal(t, first.Decisions, second.Decisions)
}

func TestRunRegeneratesOutputTree(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	writeTree(t, in, sevenFileFixture())

	first, err := newService(t, in, out, testSetup{bands: 32, rows: 4}).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 4, first.DroppedFiles)
	require.FileExists(t, filepath.Join(out, report.DefaultFileName))

	for _, rel := range []string{"file2.txt", "file4.txt", "file5.txt", "subfolder/file6.txt", "subfolder/file7.txt"} {
		require.NoError(t, os.Remove(filepath.Join(in, filepath.FromSlash(rel))))
	}
	second, err := newService(t, in, out, testSetup{bands: 32, rows: 4}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, second.DroppedFiles)
	assert.Equal(t, 2, second.KeptFiles)

	tree := readTree(t, out)
	assert.Len(t, tree, 2)
	assert.Contains(t, tree, "file1.txt")
	assert.Contains(t, tree, "file3.txt")
	assert.NoDirExists(t, filepath.Join(out, "subfolder"))
}

func TestRunReportDoesNotOverwriteKeptDocument(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	files := sevenFileFixture()
	notes := "my own notes about widgets and gadgets"
	files[report.DefaultFileName] = notes
	writeTree(t, in, files)

	rep, err := newService(t, in, out, testSetup{bands: 32, rows: 4, extensions: []string{".txt", ".md"}}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 8, rep.TotalFiles)
	assert.Equal(t, 4, rep.DroppedFiles)
	assert.Equal(t, 1, rep.WriteFailures())
	var collision *domain.FileError
	for _, f := range rep.Failures {
		if f.Path == report.DefaultFileName {
			collision = f
		}
	}
	require.NotNil(t, collision)
	assert.ErrorIs(t, collision, domain.ErrWriteFailure)

	data, err := os.ReadFile(filepath.Join(out, report.DefaultFileName))
	require.NoError(t, err)
	assert.Equal(t, notes, string(data))
}

func TestRunAuditLogAtDefaultLevel(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	files := sevenFileFixture()
	files["empty.txt"] = ""
	writeTree(t, in, files)

	logPath := filepath.Join(t.TempDir(), "deduplication.log")
	logger, closer, err := logging.New(logPath, "info", nil)
	require.NoError(t, err)
	_, err = newService(t, in, out, testSetup{bands: 32, rows: 4, logger: &logger}).Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	lines := strings.Split(string(data), "\n")
	logged := func(file, event string) bool {
		for _, l := range lines {
			if strings.Contains(l, " "+event+" ") && strings.Contains(l, "file="+file) {
				return true
			}
		}
		return false
	}

	for _, event := range []string{"read", "tokenized", "kept", "copied"} {
		assert.True(t, logged("file5.txt", event), "file5.txt %s", event)
	}
	for _, member := range []string{"file1.txt", "file2.txt", "subfolder/file6.txt"} {
		assert.True(t, logged(member, "grouped"), "%s grouped", member)
	}
	assert.True(t, logged("file2.txt", "dropped"))
	assert.Contains(t, string(data), "empty.txt: empty document")
}

func TestRunMissingInputRoot(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing")
	_, err := newService(t, missing, t.TempDir(), testSetup{}).Run(context.Background())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRunCancelled(t *testing.T) {
	in := t.TempDir()
	writeTree(t, in, sevenFileFixture())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newService(t, in, t.TempDir(), testSetup{}).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
