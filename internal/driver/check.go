package driver

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"krait/internal/code"
	"krait/internal/compiler"
	"krait/internal/diag"
	"krait/internal/lexer"
	"krait/internal/observ"
	"krait/internal/project"
	"krait/internal/source"
	"krait/internal/token"
	"krait/internal/trace"
	"krait/internal/version"
)

// SourceExt is the extension of script files.
const SourceExt = ".kr"

// CheckOptions configures Check.
type CheckOptions struct {
	// Jobs limits parallelism; 0 means GOMAXPROCS.
	Jobs           int
	MaxDiagnostics int
	// Cache, if set, stores diagnostics keyed by file content.
	Cache    *DiskCache
	Tracer   trace.Tracer
	Progress ProgressFunc
}

// CheckResult is the outcome for one file.
type CheckResult struct {
	Path   string
	File   *source.File // nil when the file could not be read
	Bag    *diag.Bag
	Cached bool
	// Units is the number of code units the file compiled to.
	Units  int
	Timing observ.Report
}

// OK reports whether the file compiled cleanly.
func (r *CheckResult) OK() bool { return r.Bag != nil && !r.Bag.HasErrors() }

// Summary counts files by outcome.
type Summary struct {
	Files  int
	Failed int
	Cached int
	Timing observ.Report
}

// Summarize aggregates results.
func Summarize(results []CheckResult) Summary {
	s := Summary{Files: len(results)}
	reports := make([]observ.Report, 0, len(results))
	for i := range results {
		if !results[i].OK() {
			s.Failed++
		}
		if results[i].Cached {
			s.Cached++
		}
		reports = append(reports, results[i].Timing)
	}
	s.Timing = observ.Merge(reports...)
	return s
}

// Expand turns files and directories into a sorted, de-duplicated list of
// script files. Directories are walked for *.kr.
func Expand(paths []string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			// отсутствующий файл проверяем как есть, ошибка попадёт в отчёт
			add(p)
			continue
		}
		if !info.IsDir() {
			add(p)
			continue
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() && path != p && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			if !d.IsDir() && strings.HasSuffix(path, SourceExt) {
				add(path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", p, err)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Check compiles every file without running it. Files are loaded up front
// into one FileSet and then compiled in parallel.
func Check(ctx context.Context, paths []string, opts CheckOptions) (*source.FileSet, []CheckResult, error) {
	tracer := opts.Tracer
	if tracer == nil {
		tracer = trace.FromContext(ctx)
	}
	span := trace.Begin(tracer, trace.ScopeEngine, "check", 0).
		WithExtra("files", fmt.Sprint(len(paths)))
	defer span.End("")

	fileSet := source.NewFileSet()
	results := make([]CheckResult, len(paths))
	loaded := make([]*source.File, len(paths))
	loadTimes := make([]time.Duration, len(paths))
	loadErrs := make([]error, len(paths))
	for i, path := range paths {
		opts.Progress.emit(Event{File: path, Status: StatusQueued})
		start := time.Now()
		id, err := fileSet.Load(path)
		loadTimes[i] = time.Since(start)
		if err != nil {
			loadErrs[i] = err
			continue
		}
		loaded[i] = fileSet.Get(id)
	}

	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, min(jobs, len(paths))))

	for i, path := range paths {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			// индекс i уникален, мьютекс не нужен
			results[i] = checkOne(path, loaded[i], loadErrs[i], loadTimes[i], opts, tracer, span.ID())
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fileSet, results, err
	}
	return fileSet, results, nil
}

func checkOne(path string, file *source.File, loadErr error, loadTime time.Duration, opts CheckOptions, tracer trace.Tracer, parent uint64) CheckResult {
	res := CheckResult{Path: path, File: file, Bag: diag.NewBag(opts.MaxDiagnostics)}
	timer := observ.NewTimer().WithTracer(tracer, parent)
	res.Timing = observ.Report{
		TotalMS: float64(loadTime) / float64(time.Millisecond),
		Phases:  []observ.PhaseReport{{Name: string(StageLoad), DurationMS: float64(loadTime) / float64(time.Millisecond)}},
	}

	if loadErr != nil {
		res.Bag.Add(diag.NewError(diag.IOLoadFileError, source.Span{}, fmt.Sprintf("%s: %v", path, loadErr)))
		opts.Progress.emit(Event{File: path, Stage: StageLoad, Status: StatusError, Err: loadErr})
		return res
	}

	key := project.Hash(version.Version, file.Content)
	var cached CheckPayload
	if ok, err := opts.Cache.Get(key, &cached); err == nil && ok {
		payloadToBag(&cached, file.ID, res.Bag)
		res.Cached = true
		opts.Progress.emit(Event{File: path, Status: StatusCached})
		return res
	}

	opts.Progress.emit(Event{File: path, Stage: StageLex, Status: StatusWorking})
	idx := timer.Begin(string(StageLex))
	lx := lexer.New(file, lexer.Options{Reporter: diag.Dedup(diag.BagReporter{Bag: res.Bag})})
	for lx.Next().Kind != token.EOF {
	}
	timer.End(idx, "")

	if !res.Bag.HasErrors() {
		opts.Progress.emit(Event{File: path, Stage: StageCompile, Status: StatusWorking})
		_ = timer.Track(string(StageCompile), func() error {
			u, err := compiler.Compile(file, compiler.Options{Mode: code.ModeExec})
			if err != nil {
				var ce *compiler.Error
				if errors.As(err, &ce) {
					res.Bag.Add(ce.Diag)
				}
				return err
			}
			u.Walk(func(*code.Unit) { res.Units++ })
			u.Release()
			return nil
		})
	}
	res.Bag.Sort()

	r := timer.Report()
	res.Timing = observ.Merge(res.Timing, r)

	if err := opts.Cache.Put(key, bagToPayload(path, res.Bag)); err != nil {
		res.Bag.Add(diag.New(diag.SevWarning, diag.IOCacheError, source.Span{File: file.ID}, err.Error()))
	}

	status := StatusDone
	if res.Bag.HasErrors() {
		status = StatusError
	}
	opts.Progress.emit(Event{File: path, Status: status, Elapsed: time.Duration(res.Timing.TotalMS * float64(time.Millisecond))})
	return res
}
