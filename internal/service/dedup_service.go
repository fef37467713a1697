package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"textdedup/internal/corpus"
	"textdedup/internal/domain"
	"textdedup/internal/grouper"
	"textdedup/internal/logging"
)

// Options carries the per-run paths.
type Options struct {
	InputRoot  string
	OutputRoot string
}

var errReportCollision = errors.New("report would overwrite a kept document")

// DedupService runs the pipeline: read, tokenize, sign, group, filter,
// copy the kept tree and report.
type DedupService struct {
	opts       Options
	scanner    *corpus.Scanner
	tokenizer  domain.Tokenizer
	signer     domain.SignatureBuilder
	index      domain.SimilarityIndex
	replicator domain.Replicator
	reporter   domain.Reporter
	logger     zerolog.Logger
}

func NewDedupService(opts Options, scanner *corpus.Scanner, tokenizer domain.Tokenizer, signer domain.SignatureBuilder, index domain.SimilarityIndex, replicator domain.Replicator, reporter domain.Reporter, logger zerolog.Logger) *DedupService {
	return &DedupService{
		opts:       opts,
		scanner:    scanner,
		tokenizer:  tokenizer,
		signer:     signer,
		index:      index,
		replicator: replicator,
		reporter:   reporter,
		logger:     logger,
	}
}

type indexedDoc struct {
	doc    domain.Document
	tokens domain.TokenSet
}

// Run executes one full pass. Per-file problems are recorded in the
// returned report; an error is returned only when the run itself cannot
// proceed (missing input root, output root not creatable, cancellation).
func (s *DedupService) Run(ctx context.Context) (domain.RunReport, error) {
	start := time.Now()
	var rep domain.RunReport
	log := s.logger

	log.Info().
		Str("input", s.opts.InputRoot).
		Str("output", s.opts.OutputRoot).
		Int("signature_size", s.signer.Size()).
		Msg("starting deduplication")

	paths, skipped, err := s.scanner.List(s.opts.InputRoot, s.opts.OutputRoot)
	if err != nil {
		return rep, fmt.Errorf("scan input: %w", err)
	}
	for _, fe := range skipped {
		log.Error().Err(fe).Str("dir", fe.Path).Msg("skipping unreadable directory")
	}
	rep.Failures = append(rep.Failures, skipped...)
	rep.TotalFiles = len(paths)
	log.Info().Int("files", len(paths)).Msg("found text files")
	if len(paths) == 0 {
		log.Warn().Msg("no text files found in input directory")
	}

	s.index.Reset()
	var docs []indexedDoc
	for _, rel := range paths {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		doc, err := s.scanner.Read(s.opts.InputRoot, rel)
		if err != nil {
			rep.UnreadableFiles++
			rep.Failures = append(rep.Failures, asFileError(rel, domain.ErrUnreadableFile, err))
			log.Error().Err(err).Str("file", rel).Msg("skipping unreadable file")
			continue
		}
		log.Info().Str("file", rel).Int("bytes", doc.SizeBytes).Msg("read")

		tokens := s.tokenizer.Tokenize(doc.Content)
		log.Info().Str("file", rel).Int("tokens", tokens.Count).Int("unique", len(tokens.Tokens)).Msg("tokenized")
		rep.TotalTokens += tokens.Count
		docs = append(docs, indexedDoc{doc: doc, tokens: tokens})

		if tokens.Empty() {
			rep.EmptyFiles++
			log.Warn().Err(domain.NewFileError(rel, domain.ErrEmptyDocument, nil)).Str("file", rel).Msg("no tokens after normalization, keeping as low-signal document")
			continue
		}
		if err := s.index.Add(rel, s.signer.Build(tokens)); err != nil {
			return rep, fmt.Errorf("index %s: %w", rel, err)
		}
	}
	rep.ProcessedFiles = len(docs)

	order := make([]string, len(docs))
	byPath := make(map[string]indexedDoc, len(docs))
	for i, d := range docs {
		order[i] = d.doc.RelPath
		byPath[d.doc.RelPath] = d
	}
	groups := s.index.Groups()
	log.Info().Int("groups", len(groups)).Msg("grouped near-duplicates")

	result := grouper.Resolve(groups, order)
	for i, g := range result.Groups {
		for _, m := range g.Members {
			log.Info().Str("file", m).Int("group", i+1).Str("kept_as", g.Kept).Msg("grouped")
		}
	}
	var kept []domain.Document
	for _, d := range result.Decisions {
		item := byPath[d.RelPath]
		if item.tokens.Empty() {
			d.Reason = domain.ReasonEmpty
		}
		rep.Decisions = append(rep.Decisions, d)
		if d.Verdict == domain.Drop {
			rep.DroppedFiles++
			rep.RemovedTokens += item.tokens.Count
			log.Info().Str("file", d.RelPath).Str("kept_as", d.KeptAs).Msg("dropped")
			continue
		}
		rep.KeptFiles++
		kept = append(kept, item.doc)
		log.Info().Str("file", d.RelPath).Str("reason", string(d.Reason)).Msg("kept")
	}

	for _, g := range result.Groups {
		gr := domain.GroupReport{Kept: g.Kept}
		for _, m := range g.Members {
			item := byPath[m]
			gr.Members = append(gr.Members, domain.FileStat{RelPath: m, Tokens: item.tokens.Count, SizeBytes: item.doc.SizeBytes})
		}
		rep.Groups = append(rep.Groups, gr)
	}

	keep := make([]string, len(kept))
	for i, d := range kept {
		keep[i] = d.RelPath
	}
	if err := s.replicator.Prepare(s.opts.OutputRoot, keep); err != nil {
		return rep, err
	}
	copied, failures := s.replicator.Copy(ctx, s.opts.OutputRoot, kept)
	rep.CopiedFiles = copied
	rep.Failures = append(rep.Failures, failures...)
	if err := ctx.Err(); err != nil {
		return rep, err
	}
	log.Info().Int("copied", copied).Int("removed", rep.DroppedFiles).Msg("output tree written")

	reportName := s.reporter.FileName()
	switch {
	case !s.reporter.Needed(rep):
		log.Info().Msg("no duplicates found, no statistics file created")
	case containsPath(keep, reportName):
		fe := domain.NewFileError(reportName, domain.ErrWriteFailure, errReportCollision)
		rep.Failures = append(rep.Failures, fe)
		log.Error().Err(fe).Msg("statistics not saved")
	default:
		path, _, err := s.reporter.Write(s.opts.OutputRoot, rep)
		if err != nil {
			rep.Failures = append(rep.Failures, asFileError(reportName, domain.ErrWriteFailure, err))
			log.Error().Err(err).Msg("statistics not saved")
		} else {
			log.Info().Str("path", path).Msg("statistics saved")
		}
	}

	log.Info().
		Int("total", rep.TotalFiles).
		Int("kept", rep.KeptFiles).
		Int("dropped", rep.DroppedFiles).
		Int("copied", rep.CopiedFiles).
		Int("empty", rep.EmptyFiles).
		Int("unreadable", rep.UnreadableFiles).
		Int("write_failures", rep.WriteFailures()).
		Float64("removal_pct", rep.RemovalPercentage()).
		Dur("elapsed", logging.Since(start)).
		Msg("deduplication finished")
	return rep, nil
}

func containsPath(paths []string, name string) bool {
	for _, p := range paths {
		if p == name {
			return true
		}
	}
	return false
}

func asFileError(path string, kind, err error) *domain.FileError {
	var fe *domain.FileError
	if errors.As(err, &fe) {
		return fe
	}
	return domain.NewFileError(path, kind, err)
}
