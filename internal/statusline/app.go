package statusline

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/tau/claude-statusline/internal/auth"
	"github.com/tau/claude-statusline/internal/cache"
	"github.com/tau/claude-statusline/internal/render"
	"github.com/tau/claude-statusline/internal/transcript"
	"github.com/tau/claude-statusline/internal/usage"
	"github.com/tau/claude-statusline/internal/version"
)

// UsageSource yields the current usage snapshot, or nil when unavailable.
type UsageSource interface {
	Get() *usage.Snapshot
}

// VersionSource yields the latest published version, or "".
type VersionSource interface {
	Latest() string
}

// App bundles the three data sources behind the orchestrator.
type App struct {
	Usage   UsageSource
	Version VersionSource
	Scan    func(path string, now time.Time) transcript.State
	Now     func() time.Time
}

// New wires the production app: file-backed caches in the user cache
// directory and the default credential store.
func New() *App {
	store := cache.NewFileStore(cache.Dir())
	return &App{
		Usage:   usage.NewClient(store, auth.NewStore()),
		Version: version.NewClient(store),
		Scan:    transcript.Scan,
		Now:     time.Now,
	}
}

// Gather runs the usage fetch, transcript scan, and version fetch
// concurrently and joins on all three, so total latency is bounded by the
// slowest source rather than their sum.
func (a *App) Gather(in *Input) render.Data {
	now := a.Now()
	d := render.Data{
		ContextPercent: in.ContextPercent(),
		ModelLabel:     in.ModelLabel(),
		CurrentVersion: in.Version,
		LinesAdded:     in.Cost.TotalLinesAdded,
		LinesRemoved:   in.Cost.TotalLinesRemoved,
		Now:            now,
	}

	// Failures are isolated per source: a panicking collaborator degrades
	// to its unavailable value instead of taking the render down.
	var wg sync.WaitGroup
	wg.Add(3)
	go safely(&wg, func() { d.Usage = a.Usage.Get() })
	go safely(&wg, func() { d.State = a.Scan(in.TranscriptPath, now) })
	go safely(&wg, func() { d.LatestVersion = a.Version.Latest() })
	wg.Wait()

	return d
}

func safely(wg *sync.WaitGroup, f func()) {
	defer wg.Done()
	defer func() { recover() }()
	f()
}

// Run is the whole one-shot invocation: parse stdin, gather, render. Any
// panic is caught and reported as a single diagnostic line; the caller
// always exits successfully.
func (a *App) Run(stdin io.Reader, stdout io.Writer) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(stdout, "statusline error: %v\n", r)
		}
	}()

	in, err := ParseInput(stdin)
	if err != nil {
		fmt.Fprintln(stdout, Placeholder)
		return
	}
	fmt.Fprintln(stdout, render.Statusline(a.Gather(in)))
}
