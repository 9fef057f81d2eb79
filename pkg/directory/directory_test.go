package directory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"github.com/codeGROOVE-dev/creatorscope/pkg/creator"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// call is one request observed by fakeSource.
type call struct {
	kind string // "top" or "search"
	arg  string
}

// fakeSource answers from fixed tables. When gate is set, every request
// blocks until a value arrives on it; a request whose argument has an entry
// in gates blocks until that channel closes. Both ignore cancellation.
type fakeSource struct {
	top     map[creator.Platform][]creator.DirectoryEntry
	search  map[string][]creator.DirectoryEntry
	err     error
	gate    chan struct{}
	gates   map[string]chan struct{}
	started chan struct{}

	mu    sync.Mutex
	calls []call
}

func (f *fakeSource) record(c call) {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	f.mu.Unlock()
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.gate != nil {
		<-f.gate
	}
	if g, ok := f.gates[c.arg]; ok {
		<-g
	}
}

func (f *fakeSource) TopCreators(_ context.Context, p creator.Platform) ([]creator.DirectoryEntry, error) {
	f.record(call{"top", string(p)})
	if f.err != nil {
		return nil, f.err
	}
	return f.top[p], nil
}

func (f *fakeSource) SearchCreators(_ context.Context, q string) ([]creator.DirectoryEntry, error) {
	f.record(call{"search", q})
	if f.err != nil {
		return nil, f.err
	}
	return f.search[q], nil
}

func (f *fakeSource) Calls() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

func entry(id string) creator.DirectoryEntry {
	return creator.DirectoryEntry{ID: id, Name: id}
}

func ids(es []creator.DirectoryEntry) []string {
	out := make([]string, 0, len(es))
	for _, e := range es {
		out = append(out, e.ID)
	}
	return out
}

func newFake() *fakeSource {
	return &fakeSource{
		top: map[creator.Platform][]creator.DirectoryEntry{
			creator.YouTube:   {entry("yt1"), entry("yt2")},
			creator.Instagram: {entry("ig1")},
		},
		search: map[string][]creator.DirectoryEntry{
			"tech": {entry("s1")},
			"cats": {entry("cat1")},
			"dogs": {entry("dog1"), entry("dog2")},
		},
	}
}

func TestLoadRoutesByQuery(t *testing.T) {
	tests := []struct {
		name     string
		platform creator.Platform
		query    string
		want     []string
		wantCall call
	}{
		{"top", creator.Instagram, "", []string{"ig1"}, call{"top", "instagram"}},
		{"blank query lists top", creator.YouTube, "   ", []string{"yt1", "yt2"}, call{"top", "youtube"}},
		{"search ignores platform", creator.Instagram, " tech ", []string{"s1"}, call{"search", "tech"}},
		{"no results", creator.Twitter, "", []string{}, call{"top", "twitter"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := newFake()
			d := New(src)
			got, err := d.Load(context.Background(), tt.platform, tt.query)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, ids(got)); diff != "" {
				t.Errorf("Load() mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff([]call{tt.wantCall}, src.Calls(), cmp.AllowUnexported(call{})); diff != "" {
				t.Errorf("calls mismatch (-want +got):\n%s", diff)
			}
			st := d.State()
			if st.Loading || st.Err != nil {
				t.Errorf("State() = loading %v err %v", st.Loading, st.Err)
			}
		})
	}
}

func TestSearchKeepsPlatform(t *testing.T) {
	ctx := context.Background()
	src := newFake()
	d := New(src)

	if _, err := d.SelectPlatform(ctx, creator.Instagram); err != nil {
		t.Fatalf("SelectPlatform() error = %v", err)
	}
	if _, err := d.Search(ctx, "tech"); err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	st := d.State()
	if st.Platform != creator.Instagram || !st.Searching() {
		t.Errorf("State() after Search = platform %q query %q", st.Platform, st.Query)
	}

	got, err := d.ClearSearch(ctx)
	if err != nil {
		t.Fatalf("ClearSearch() error = %v", err)
	}
	if diff := cmp.Diff([]string{"ig1"}, ids(got)); diff != "" {
		t.Errorf("ClearSearch() mismatch (-want +got):\n%s", diff)
	}
	if d.State().Query != "" {
		t.Errorf("Query = %q after ClearSearch()", d.State().Query)
	}
}

func TestSelectPlatformClearsQuery(t *testing.T) {
	ctx := context.Background()
	d := New(newFake())

	if _, err := d.Search(ctx, "tech"); err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if _, err := d.SelectPlatform(ctx, creator.Instagram); err != nil {
		t.Fatalf("SelectPlatform() error = %v", err)
	}
	if st := d.State(); st.Query != "" || st.Platform != creator.Instagram {
		t.Errorf("State() = platform %q query %q", st.Platform, st.Query)
	}
}

func TestLoadFailureClearsList(t *testing.T) {
	ctx := context.Background()
	src := newFake()
	d := New(src)

	if _, err := d.Load(ctx, creator.YouTube, ""); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	boom := errors.New("boom")
	src.err = boom
	if _, err := d.Load(ctx, creator.YouTube, ""); !errors.Is(err, boom) {
		t.Fatalf("Load() error = %v, want boom", err)
	}

	st := d.State()
	if len(st.Entries) != 0 {
		t.Errorf("Entries = %v, want empty", ids(st.Entries))
	}
	if !errors.Is(st.Err, boom) || st.Loading {
		t.Errorf("State() = err %v loading %v", st.Err, st.Loading)
	}
}

func TestSupersededResponseDropped(t *testing.T) {
	ctx := context.Background()
	src := newFake()
	cats, dogs := make(chan struct{}), make(chan struct{})
	src.gates = map[string]chan struct{}{"cats": cats, "dogs": dogs}
	src.started = make(chan struct{})
	d := New(src)

	type result struct {
		entries []creator.DirectoryEntry
		err     error
	}
	first := make(chan result, 1)
	go func() {
		es, err := d.Search(ctx, "cats")
		first <- result{es, err}
	}()
	<-src.started

	if !d.State().Loading {
		t.Error("Loading = false while a request is in flight")
	}

	second := make(chan result, 1)
	go func() {
		es, err := d.Search(ctx, "dogs")
		second <- result{es, err}
	}()
	<-src.started

	// The newer search answers first.
	close(dogs)
	r2 := <-second
	if r2.err != nil {
		t.Fatalf("Search(dogs) error = %v", r2.err)
	}
	if diff := cmp.Diff([]string{"dog1", "dog2"}, ids(d.State().Entries)); diff != "" {
		t.Errorf("Entries after dogs mismatch (-want +got):\n%s", diff)
	}

	// The older one arrives afterwards and must not replace it.
	close(cats)
	r1 := <-first
	if !errors.Is(r1.err, creator.ErrSuperseded) {
		t.Errorf("Search(cats) error = %v, want ErrSuperseded", r1.err)
	}
	if r1.entries != nil {
		t.Errorf("Search(cats) entries = %v, want nil", ids(r1.entries))
	}

	st := d.State()
	if diff := cmp.Diff([]string{"dog1", "dog2"}, ids(st.Entries)); diff != "" {
		t.Errorf("Entries mismatch (-want +got):\n%s", diff)
	}
	if st.Query != "dogs" || st.Loading {
		t.Errorf("State() = query %q loading %v, want dogs and not loading", st.Query, st.Loading)
	}
}

func TestCloseDropsLateResponse(t *testing.T) {
	ctx := context.Background()
	src := newFake()
	src.gate = make(chan struct{})
	src.started = make(chan struct{})
	d := New(src)

	done := make(chan error, 1)
	go func() {
		_, err := d.Load(ctx, creator.YouTube, "")
		done <- err
	}()
	<-src.started

	d.Close()
	src.gate <- struct{}{}

	if err := <-done; !errors.Is(err, creator.ErrClosed) {
		t.Errorf("Load() after Close() error = %v, want ErrClosed", err)
	}
	if len(d.State().Entries) != 0 {
		t.Error("late response was committed after Close()")
	}
	if _, err := d.Load(ctx, creator.YouTube, ""); !errors.Is(err, creator.ErrClosed) {
		t.Errorf("Load() on closed directory error = %v, want ErrClosed", err)
	}
}

func TestStateIsCopy(t *testing.T) {
	d := New(newFake())
	if _, err := d.Load(context.Background(), creator.YouTube, ""); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	st := d.State()
	st.Entries[0].ID = "mutated"
	if d.State().Entries[0].ID != "yt1" {
		t.Error("mutating State() result changed the directory")
	}
}
