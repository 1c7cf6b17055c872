package repair

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/xxxsen/retrojunk/internal/analyzer"
	"github.com/xxxsen/retrojunk/internal/datindex"
	"github.com/xxxsen/retrojunk/internal/hasher"
)

type outcome int

const (
	outcomeCorrect outcome = iota + 1
	outcomeRepairable
	outcomeNoMatch
)

// PlanRepairs checks every file of folder the analyzer claims by extension.
// Files that already match are reported as correct; for the rest the
// strategies of BuildStrategies are tried and the first one whose padded
// hash is catalogued becomes an Action. Per file failures end up in
// Plan.Errors; only a failed folder scan aborts the run.
func PlanRepairs(folder string, idx *datindex.Index, a analyzer.Analyzer, opts Options, progress ProgressFunc) (*Plan, error) {
	if progress == nil {
		progress = func(Progress) {}
	}
	progress(Progress{Kind: ProgressScanning, Path: folder})
	files, err := scanFolder(folder, a, opts.Recursive)
	if err != nil {
		return nil, err
	}

	plan := &Plan{}
	for i, path := range files {
		progress(Progress{Kind: ProgressCheckingFile, Path: path, Current: i + 1, Total: len(files)})
		res, act, err := planFile(path, idx, a, opts, func(s Strategy) {
			progress(Progress{Kind: ProgressTryingStrategy, Path: path, Current: i + 1, Total: len(files), Strategy: s.Name})
		})
		if err != nil {
			plan.Errors = append(plan.Errors, FileError{Path: path, Err: err})
			continue
		}
		switch res {
		case outcomeCorrect:
			plan.AlreadyCorrect = append(plan.AlreadyCorrect, path)
		case outcomeRepairable:
			plan.Repairable = append(plan.Repairable, act)
		case outcomeNoMatch:
			plan.NoMatch = append(plan.NoMatch, path)
		}
	}
	progress(Progress{Kind: ProgressDone, Path: folder, Current: len(files), Total: len(files)})
	return plan, nil
}

func scanFolder(folder string, a analyzer.Analyzer, recursive bool) ([]string, error) {
	var files []string
	err := filepath.WalkDir(folder, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != folder && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !analyzer.MatchesExtension(a, path) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan folder %s: %w", folder, err)
	}
	return files, nil
}

func planFile(path string, idx *datindex.Index, a analyzer.Analyzer, opts Options, onStrategy func(Strategy)) (outcome, Action, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, Action{}, fmt.Errorf("open rom: %w", err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return 0, Action{}, fmt.Errorf("stat rom: %w", err)
	}
	headerSkip, err := a.DatHeaderSize(f, uint64(st.Size()))
	if err != nil {
		return 0, Action{}, fmt.Errorf("detect header: %w", err)
	}
	plain, err := hasher.HashPlain(f, headerSkip)
	if err != nil {
		return 0, Action{}, fmt.Errorf("hash rom: %w", err)
	}
	dataSize := plain.DataSize
	_, matched := idx.MatchByHash(dataSize, plain)

	var expected uint64
	// a header the analyzer cannot read only means the size is unknown
	if ident, err := a.Analyze(f, opts.Analyze); err == nil && ident != nil {
		expected = ident.ExpectedSize
	}
	trimmed := expected > dataSize
	if matched && !trimmed {
		return outcomeCorrect, Action{}, nil
	}

	for _, s := range BuildStrategies(dataSize, expected, a.DatSource()) {
		onStrategy(s)
		if idx.CandidatesBySize(s.TargetSize(dataSize)) == nil {
			continue
		}
		padded, err := hasher.HashWithPadding(f, headerSkip, s.Padding)
		if err != nil {
			return 0, Action{}, fmt.Errorf("hash rom with %s: %w", s.Name, err)
		}
		m, ok := idx.MatchByHash(padded.DataSize, padded)
		if !ok {
			continue
		}
		entry, _ := idx.Entry(m.GameIndex)
		return outcomeRepairable, Action{
			FilePath:   path,
			GameName:   entry.Name,
			Method:     s.Method,
			Padding:    s.Padding,
			HeaderSize: headerSkip,
		}, nil
	}
	if matched {
		return outcomeCorrect, Action{}, nil
	}
	return outcomeNoMatch, Action{}, nil
}
