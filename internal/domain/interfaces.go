package domain

import "context"

// Document represents a single text file read from the input tree.
// RelPath is slash-separated and relative to the input root; it is the
// document's identity.
type Document struct {
	RelPath   string
	AbsPath   string
	Content   string
	SizeBytes int
	CharCount int
}

// TokenSet holds the normalized tokens of a document.
// Tokens are unique and kept in first-seen order; Count includes repeats.
type TokenSet struct {
	Tokens []string
	Count  int
}

// Empty reports whether no token survived normalization.
func (t TokenSet) Empty() bool { return len(t.Tokens) == 0 }

// Signature is a fixed-size MinHash summary of a TokenSet.
type Signature []uint64

// Group is a set of document identities judged near-duplicate by a
// SimilarityIndex, in the order they were added to the index.
//
// Membership is the transitive closure of the pairwise relation found by
// the index: A~B and B~C place A, B and C together even when A and C are
// not directly similar.
type Group struct {
	Members []string
}

// Tokenizer normalizes raw text into a TokenSet.
type Tokenizer interface {
	Tokenize(text string) TokenSet
}

// SignatureBuilder converts a TokenSet into a Signature of fixed size.
type SignatureBuilder interface {
	Size() int
	Build(tokens TokenSet) Signature
}

// SimilarityIndex groups signatures whose estimated similarity reaches a
// threshold without comparing every pair.
type SimilarityIndex interface {
	Add(id string, sig Signature) error
	// Groups returns every group with more than one member.
	Groups() []Group
	Reset()
}

// Replicator copies kept documents into the output tree. Prepare leaves
// only the paths in keep under outputRoot, so every run regenerates the
// tree from scratch.
type Replicator interface {
	Prepare(outputRoot string, keep []string) error
	Copy(ctx context.Context, outputRoot string, docs []Document) (int, []*FileError)
}

// Reporter persists the run report. Needed tells whether this run gets a
// report file at all; Write returns the path written and whether a file was
// produced.
type Reporter interface {
	FileName() string
	Needed(report RunReport) bool
	Write(dir string, report RunReport) (string, bool, error)
}
