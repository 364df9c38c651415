package loader

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/psantana5/landing/pkg/fallback"
	"github.com/psantana5/landing/pkg/fetch"
	"github.com/psantana5/landing/pkg/fragments"
	"github.com/psantana5/landing/pkg/page"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const shellHTML = `<!DOCTYPE html><html><head><title>EFFETA</title></head><body>` +
	`<div id="header-container"></div><main>` +
	`<div id="hero-container"><p>stale</p></div>` +
	`<div id="about-container"></div><div id="stories-container"></div>` +
	`<div id="events-container"></div><div id="join-container"></div>` +
	`</main><div id="footer-container"></div></body></html>`

// mapFetcher serves fixed markup per path; unknown paths are a 404.
type mapFetcher struct {
	mu    sync.Mutex
	pages map[string]string
	calls map[string]int
}

func newMapFetcher(pages map[string]string) *mapFetcher {
	return &mapFetcher{pages: pages, calls: make(map[string]int)}
}

func (f *mapFetcher) Fetch(_ context.Context, path string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[path]++
	content, ok := f.pages[path]
	if !ok {
		return "", &fetch.FetchError{Path: path, Status: 404}
	}
	return content, nil
}

func (f *mapFetcher) set(path, content string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages[path] = content
}

type panicFetcher struct{ path string }

func (p panicFetcher) Fetch(_ context.Context, path string) (string, error) {
	if path == p.path {
		panic("boom")
	}
	return "<p>ok</p>", nil
}

func allPages() map[string]string {
	pages := make(map[string]string)
	for _, id := range fragments.Default().IDs() {
		pages["modules/"+id+".html"] = fmt.Sprintf("<p>%s content</p>", id)
	}
	return pages
}

func newTestOrchestrator(t *testing.T, shell string, reg *fragments.Registry, f fetch.Fetcher) *Orchestrator {
	t.Helper()
	doc, err := page.ParseString(shell)
	require.NoError(t, err)

	m, err := NewMounter(MounterConfig{Document: doc, Fetcher: f, Fallbacks: fallback.Default()})
	require.NoError(t, err)

	o, err := NewOrchestrator(Config{Registry: reg, Mounter: m})
	require.NoError(t, err)
	return o
}

func heroRegistry() *fragments.Registry {
	return fragments.MustRegistry([]fragments.Descriptor{
		{ID: "hero", SourcePath: "modules/hero.html", ContainerID: "hero-container", Kind: fragments.KindSection},
	})
}

func TestMountSuccess(t *testing.T) {
	f := newMapFetcher(map[string]string{"modules/hero.html": "<h1>Welcome</h1>"})
	o := newTestOrchestrator(t, shellHTML, heroRegistry(), f)

	report, err := o.Load(context.Background())
	require.NoError(t, err)

	res, ok := report.Result("hero")
	require.True(t, ok)
	assert.True(t, res.OK())
	assert.Equal(t, OutcomeMounted, res.Outcome)

	children, err := o.Document().Children("hero-container")
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, "section", children[0].Data)

	inner, err := o.Document().InnerHTML("hero")
	require.NoError(t, err)
	assert.Equal(t, "<h1>Welcome</h1>", inner)
}

func TestMountNotFoundUsesFallback(t *testing.T) {
	f := newMapFetcher(map[string]string{})
	o := newTestOrchestrator(t, shellHTML, heroRegistry(), f)

	report, err := o.Load(context.Background())
	require.NoError(t, err)

	res, _ := report.Result("hero")
	assert.Equal(t, OutcomeFallback, res.Outcome)
	assert.False(t, res.OK())

	var fe *fetch.FetchError
	require.True(t, errors.As(res.Err, &fe))
	assert.Equal(t, 404, fe.Status)

	inner, err := o.Document().InnerHTML("hero-container")
	require.NoError(t, err)
	assert.Equal(t, fallback.Default().Content("hero"), inner)
	assert.NotContains(t, inner, "<section")
}

func TestMissingContainerStillInitializes(t *testing.T) {
	reg := fragments.MustRegistry([]fragments.Descriptor{
		{ID: "hero", SourcePath: "modules/hero.html", ContainerID: "hero-container", Kind: fragments.KindSection},
		{ID: "gallery", SourcePath: "modules/gallery.html", ContainerID: "gallery-container", Kind: fragments.KindSection},
	})
	f := newMapFetcher(map[string]string{
		"modules/hero.html":    "<h1>Welcome</h1>",
		"modules/gallery.html": "<p>pics</p>",
	})
	o := newTestOrchestrator(t, shellHTML, reg, f)

	var calls int
	o.OnLoaded("count", func(context.Context, *page.Document) error {
		calls++
		return nil
	})

	report, err := o.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.True(t, report.Initialized)

	res, _ := report.Result("gallery")
	assert.Equal(t, OutcomeMissing, res.Outcome)
	assert.True(t, errors.Is(res.Err, ErrContainerNotFound))
	assert.Equal(t, 0, f.calls["modules/gallery.html"], "missing container must not trigger a fetch")
	assert.False(t, strings.Contains(o.Document().String(), "Error cargando gallery"))
}

func TestAllFetchesStartConcurrently(t *testing.T) {
	reg := fragments.Default()
	var inFlight int32
	release := make(chan struct{})
	var once sync.Once

	f := fetcherFunc(func(ctx context.Context, path string) (string, error) {
		if atomic.AddInt32(&inFlight, 1) == int32(reg.Len()) {
			once.Do(func() { close(release) })
		}
		select {
		case <-release:
			return "<p>" + path + "</p>", nil
		case <-time.After(2 * time.Second):
			return "", errors.New("fetch started before the others were in flight")
		}
	})
	o := newTestOrchestrator(t, shellHTML, reg, f)

	report, err := o.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, reg.Len(), report.Count(OutcomeMounted))
}

func TestFailureIsIsolated(t *testing.T) {
	pages := allPages()
	delete(pages, "modules/stories.html")
	o := newTestOrchestrator(t, shellHTML, fragments.Default(), newMapFetcher(pages))

	report, err := o.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, report.Count(OutcomeMounted))
	assert.Equal(t, 1, report.Count(OutcomeFallback))

	inner, _ := o.Document().InnerHTML("stories-container")
	assert.Equal(t, fallback.Generic("stories"), inner)

	header, _ := o.Document().InnerHTML("header-container")
	assert.Equal(t, `<header id="header"><p>header content</p></header>`, header)
	footer, _ := o.Document().InnerHTML("footer-container")
	assert.Equal(t, `<footer id="footer"><p>footer content</p></footer>`, footer)
}

func TestReloadIsIdempotent(t *testing.T) {
	o := newTestOrchestrator(t, shellHTML, fragments.Default(), newMapFetcher(allPages()))

	_, err := o.Load(context.Background())
	require.NoError(t, err)
	first := o.Document().String()

	_, err = o.Reload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, o.Document().String())

	children, _ := o.Document().Children("hero-container")
	assert.Len(t, children, 1, "stale content must be cleared before mounting")
}

func TestRemountTouchesOnlyItsContainer(t *testing.T) {
	f := newMapFetcher(allPages())
	o := newTestOrchestrator(t, shellHTML, fragments.Default(), f)

	_, err := o.Load(context.Background())
	require.NoError(t, err)

	before := make(map[string][]interface{})
	for _, d := range o.Registry().All() {
		children, err := o.Document().Children(d.ContainerID)
		require.NoError(t, err)
		for _, c := range children {
			before[d.ID] = append(before[d.ID], c)
		}
	}

	f.set("modules/about.html", "<p>new about</p>")
	res, err := o.Remount(context.Background(), "about")
	require.NoError(t, err)
	assert.Equal(t, OutcomeMounted, res.Outcome)

	for _, d := range o.Registry().All() {
		children, _ := o.Document().Children(d.ContainerID)
		if d.ID == "about" {
			require.Len(t, children, 1)
			assert.NotSame(t, before["about"][0], children[0])
			continue
		}
		require.Len(t, children, len(before[d.ID]))
		for i, c := range children {
			assert.Same(t, before[d.ID][i], c, "container %s changed", d.ContainerID)
		}
	}

	inner, _ := o.Document().InnerHTML("about")
	assert.Equal(t, "<p>new about</p>", inner)

	last := o.LastReport()
	got, _ := last.Result("about")
	assert.Equal(t, OutcomeMounted, got.Outcome)
}

func TestRemountUnknownModule(t *testing.T) {
	o := newTestOrchestrator(t, shellHTML, fragments.Default(), newMapFetcher(allPages()))

	_, err := o.Remount(context.Background(), "gallery")
	assert.True(t, errors.Is(err, ErrUnknownModule))
}

func TestPanicSkipsInitializers(t *testing.T) {
	o := newTestOrchestrator(t, shellHTML, fragments.Default(), panicFetcher{path: "modules/events.html"})

	var called bool
	o.OnLoaded("never", func(context.Context, *page.Document) error {
		called = true
		return nil
	})

	report, err := o.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mount events panicked")
	assert.False(t, called)
	assert.True(t, report.Failed)
	assert.False(t, report.Initialized)

	res, _ := report.Result("events")
	assert.Equal(t, OutcomeAborted, res.Outcome)
	assert.Equal(t, 6, report.Count(OutcomeMounted))
}

func TestInitializerOrderAndErrors(t *testing.T) {
	o := newTestOrchestrator(t, shellHTML, heroRegistry(), newMapFetcher(allPages()))

	var order []string
	o.OnLoaded("first", func(context.Context, *page.Document) error {
		order = append(order, "first")
		return errors.New("broken")
	})
	o.OnLoaded("second", func(_ context.Context, doc *page.Document) error {
		order = append(order, "second")
		if !doc.HasElement("hero") {
			return errors.New("hero not mounted before initializers")
		}
		return nil
	})

	report, err := o.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, order)
	assert.Equal(t, []string{"first"}, report.InitFailures)
}

func TestSettleDelayBeforeInitializers(t *testing.T) {
	o := newTestOrchestrator(t, shellHTML, heroRegistry(), newMapFetcher(allPages()))
	o.settleDelay = DefaultSettleDelay

	var slept time.Duration
	o.sleep = func(d time.Duration) { slept = d }

	var sawSleep bool
	o.OnLoaded("check", func(context.Context, *page.Document) error {
		sawSleep = slept == DefaultSettleDelay
		return nil
	})

	_, err := o.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, sawSleep)
}

func TestLoadsAreSerialized(t *testing.T) {
	var active, maxActive int32
	f := fetcherFunc(func(ctx context.Context, path string) (string, error) {
		n := atomic.AddInt32(&active, 1)
		for {
			m := atomic.LoadInt32(&maxActive)
			if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&active, -1)
		return "<p>x</p>", nil
	})
	o := newTestOrchestrator(t, shellHTML, heroRegistry(), f)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = o.Reload(context.Background())
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&maxActive))
}

func TestNewOrchestratorValidation(t *testing.T) {
	_, err := NewOrchestrator(Config{})
	assert.Error(t, err)

	doc, _ := page.ParseString(shellHTML)
	m, err := NewMounter(MounterConfig{Document: doc, Fetcher: newMapFetcher(nil)})
	require.NoError(t, err)
	_, err = NewOrchestrator(Config{Registry: heroRegistry(), Mounter: m, SettleDelay: -time.Second})
	assert.Error(t, err)

	_, err = NewMounter(MounterConfig{Document: doc})
	assert.Error(t, err)
}

type fetcherFunc func(ctx context.Context, path string) (string, error)

func (f fetcherFunc) Fetch(ctx context.Context, path string) (string, error) {
	return f(ctx, path)
}
