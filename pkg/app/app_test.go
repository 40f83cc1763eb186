package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"tableflip.dev/todosync/pkg/remote/remotetest"
	"tableflip.dev/todosync/pkg/state"
	"tableflip.dev/todosync/pkg/todo"
)

func newService(t *testing.T, items ...todo.Item) (*Service, *remotetest.Fake) {
	t.Helper()
	fake := remotetest.NewFake(items...)
	svc := New(fake, 7, state.Options{})
	svc.State.Items.ReplaceAll(items)
	return svc, fake
}

func item(id int, title string, completed bool) todo.Item {
	return todo.Item{ID: id, UserID: 7, Title: title, Completed: completed}
}

func assertIdle(t *testing.T, svc *Service) {
	t.Helper()
	if got := svc.State.Loading.Current(); got.Mode != state.LoadingNone {
		t.Fatalf("expected loading released, got %+v", got)
	}
}

func assertNotice(t *testing.T, svc *Service, want state.Kind) {
	t.Helper()
	cur, _ := svc.State.Notices.Current()
	if cur.Kind != want {
		t.Fatalf("expected notice %s, got %s (%q)", want, cur.Kind, cur.Message)
	}
}

func TestServiceRequiresRemote(t *testing.T) {
	svc := &Service{State: state.New(state.Options{})}
	if err := svc.Load(context.Background()); !errors.Is(err, ErrNoRemote) {
		t.Fatalf("expected ErrNoRemote, got %v", err)
	}
	svc = &Service{Remote: remotetest.NewFake()}
	if err := svc.ClearCompleted(context.Background()); !errors.Is(err, ErrNoState) {
		t.Fatalf("expected ErrNoState, got %v", err)
	}
}

func TestLoad(t *testing.T) {
	fake := remotetest.NewFake(item(1, "a", false), item(2, "b", true))
	svc := New(fake, 7, state.Options{})

	var during state.LoadingSet
	fake.Before = func(op remotetest.Op, _ int) { during = svc.State.Loading.Current() }

	if err := svc.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	if during.Mode != state.LoadingAll {
		t.Fatalf("expected all busy while loading, got %+v", during)
	}
	if diff := cmp.Diff(fake.Stored(), svc.State.Items.Items()); diff != "" {
		t.Fatalf("collection mismatch (-want +got):\n%s", diff)
	}
	assertIdle(t, svc)
}

func TestLoadFailureShowsLoad(t *testing.T) {
	fake := remotetest.NewFake()
	fake.FailFetch(nil)
	svc := New(fake, 7, state.Options{})

	if err := svc.Load(context.Background()); !errors.Is(err, remotetest.ErrInjected) {
		t.Fatalf("expected injected error, got %v", err)
	}
	assertNotice(t, svc, state.KindLoad)
	assertIdle(t, svc)
}

func TestEditItemStoresCanonicalItem(t *testing.T) {
	svc, fake := newService(t, item(1, "a", false), item(2, "b", false))
	fake.Canonicalize = func(it todo.Item) todo.Item {
		it.Title = strings.ToUpper(it.Title)
		return it
	}

	var busy state.LoadingSet
	fake.Before = func(op remotetest.Op, id int) { busy = svc.State.Loading.Current() }

	for _, title := range []string{"x", "y", "z"} {
		if _, err := svc.EditItem(context.Background(), 2, todo.TitlePatch(title)); err != nil {
			t.Fatalf("edit: %v", err)
		}
	}

	if diff := cmp.Diff(state.LoadingSet{Mode: state.LoadingExplicit, IDs: []int{2}}, busy); diff != "" {
		t.Fatalf("busy set during edit (-want +got):\n%s", diff)
	}
	want := []todo.Item{item(1, "a", false), item(2, "Z", false)}
	if diff := cmp.Diff(want, svc.State.Items.Items()); diff != "" {
		t.Fatalf("collection mismatch (-want +got):\n%s", diff)
	}
	assertIdle(t, svc)
}

func TestEditItemFailure(t *testing.T) {
	svc, fake := newService(t, item(1, "a", false))
	fake.FailPatch(1, nil)

	_, err := svc.EditItem(context.Background(), 1, todo.CompletedPatch(true))
	if !errors.Is(err, remotetest.ErrInjected) {
		t.Fatalf("expected injected error, got %v", err)
	}
	assertNotice(t, svc, state.KindUpdate)
	assertIdle(t, svc)
	if it, _ := svc.State.Items.Get(1); it.Completed {
		t.Fatal("failed edit must not change the local item")
	}
}

func TestCreateItemAppendsWithoutLoading(t *testing.T) {
	svc, fake := newService(t, item(1, "a", false))
	fake.Before = func(op remotetest.Op, _ int) {
		if got := svc.State.Loading.Current(); got.Mode != state.LoadingNone {
			t.Errorf("create must not mark anything busy, got %+v", got)
		}
	}

	it, err := svc.CreateItem(context.Background(), todo.Draft{UserID: 7, Title: "b"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if it.ID != 2 {
		t.Fatalf("expected server id 2, got %d", it.ID)
	}
	if diff := cmp.Diff([]int{1, 2}, todo.IDs(svc.State.Items.Items())); diff != "" {
		t.Fatalf("append order mismatch:\n%s", diff)
	}
}

func TestCreateItemFailureShowsAdd(t *testing.T) {
	svc, fake := newService(t)
	fake.FailCreate(nil)

	if _, err := svc.CreateItem(context.Background(), todo.Draft{Title: "b"}); err == nil {
		t.Fatal("expected error")
	}
	assertNotice(t, svc, state.KindAdd)
	if svc.State.Items.Len() != 0 {
		t.Fatal("failed create must not append")
	}
}

func TestDeleteItemsStopsAtFirstFailure(t *testing.T) {
	svc, fake := newService(t, item(1, "a", false), item(2, "b", false), item(3, "c", false))
	fake.FailRemove(2, nil)

	var busy state.LoadingSet
	var focusedDuring bool
	fake.Before = func(op remotetest.Op, id int) {
		if id == 1 {
			busy = svc.State.Loading.Current()
			focusedDuring = svc.State.Focus.Locked()
		}
	}

	err := svc.DeleteItems(context.Background(), []int{1, 2, 3})
	if !errors.Is(err, remotetest.ErrInjected) {
		t.Fatalf("expected injected error, got %v", err)
	}

	if diff := cmp.Diff([]int{1, 2}, fake.CallsOf(remotetest.OpRemove)); diff != "" {
		t.Fatalf("remote deletes must be sequential and stop at the failure:\n%s", diff)
	}
	if diff := cmp.Diff([]int{2, 3}, todo.IDs(svc.State.Items.Items())); diff != "" {
		t.Fatalf("collection mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(state.LoadingSet{Mode: state.LoadingExplicit, IDs: []int{1, 2, 3}}, busy); diff != "" {
		t.Fatalf("busy set during delete:\n%s", diff)
	}
	if focusedDuring {
		t.Fatal("focus must be released while deleting")
	}
	if !svc.State.Focus.Locked() {
		t.Fatal("focus must be locked after delete")
	}
	assertNotice(t, svc, state.KindDelete)
	assertIdle(t, svc)
}

func TestDeleteItemsRemovesEachAfterItsOwnSuccess(t *testing.T) {
	svc, fake := newService(t, item(1, "a", false), item(2, "b", false))

	var presentAtSecond []int
	fake.Before = func(op remotetest.Op, id int) {
		if id == 2 {
			presentAtSecond = todo.IDs(svc.State.Items.Items())
		}
	}

	if err := svc.DeleteItems(context.Background(), []int{1, 2}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if diff := cmp.Diff([]int{2}, presentAtSecond); diff != "" {
		t.Fatalf("id 1 should already be gone locally when id 2 is deleted:\n%s", diff)
	}
	if svc.State.Items.Len() != 0 {
		t.Fatal("expected empty collection")
	}
	if !svc.State.Focus.Locked() {
		t.Fatal("focus must be locked after delete")
	}
}

func TestDeleteItemsClearsStaleNotice(t *testing.T) {
	svc, fake := newService(t, item(1, "a", false))
	svc.State.Notices.Show(state.KindAdd)

	var during state.Kind
	fake.Before = func(op remotetest.Op, id int) {
		cur, _ := svc.State.Notices.Current()
		during = cur.Kind
	}
	if err := svc.DeleteItems(context.Background(), []int{1}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if during != state.KindNone {
		t.Fatalf("stale notice still shown during delete: %s", during)
	}
}

func TestDeleteOneLeavesFocusAlone(t *testing.T) {
	svc, fake := newService(t, item(1, "a", false), item(2, "b", false))
	svc.State.Focus.Lock()
	fake.FailRemove(2, nil)

	if err := svc.DeleteOne(context.Background(), 1); err != nil {
		t.Fatalf("delete one: %v", err)
	}
	if err := svc.DeleteOne(context.Background(), 2); err == nil {
		t.Fatal("expected failure")
	}
	if !svc.State.Focus.Locked() {
		t.Fatal("delete one must not touch focus")
	}
	if diff := cmp.Diff([]int{2}, todo.IDs(svc.State.Items.Items())); diff != "" {
		t.Fatalf("collection mismatch:\n%s", diff)
	}
	assertNotice(t, svc, state.KindDelete)
	assertIdle(t, svc)
}

func TestClearCompletedKeepsFailedIDs(t *testing.T) {
	svc, fake := newService(t, item(1, "a", true), item(2, "b", true), item(3, "c", false))
	fake.FailRemove(2, nil)

	err := svc.ClearCompleted(context.Background())
	be, ok := IsBatchError(err)
	if !ok {
		t.Fatalf("expected batch error, got %v", err)
	}
	if diff := cmp.Diff([]int{2}, be.IDs()); diff != "" {
		t.Fatalf("failed ids mismatch:\n%s", diff)
	}
	if !errors.Is(err, remotetest.ErrInjected) {
		t.Fatal("batch error must unwrap to the remote failure")
	}

	want := []todo.Item{item(2, "b", true), item(3, "c", false)}
	if diff := cmp.Diff(want, svc.State.Items.Items()); diff != "" {
		t.Fatalf("collection mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{1, 2}, fake.SortedCallsOf(remotetest.OpRemove)); diff != "" {
		t.Fatalf("only completed ids are deleted:\n%s", diff)
	}
	assertNotice(t, svc, state.KindDelete)
	assertIdle(t, svc)
	if !svc.State.Focus.Locked() {
		t.Fatal("focus must be locked after clear completed")
	}
}

func TestClearCompletedDeleteNoticeSurvivesSiblings(t *testing.T) {
	for i := 0; i < 100; i++ {
		svc, fake := newService(t, item(1, "a", true), item(2, "b", true), item(3, "c", false))
		fake.FailRemove(2, nil)
		// Hold the successful delete until the failing one has been answered.
		failed := make(chan struct{})
		fake.Before = func(op remotetest.Op, id int) {
			if op != remotetest.OpRemove {
				return
			}
			if id == 2 {
				defer close(failed)
				return
			}
			select {
			case <-failed:
			case <-time.After(2 * time.Second):
			}
		}

		if err := svc.ClearCompleted(context.Background()); err == nil {
			t.Fatal("expected partial failure")
		}
		assertNotice(t, svc, state.KindDelete)
	}
}

func TestClearCompletedClearsStaleNotice(t *testing.T) {
	svc, _ := newService(t, item(1, "a", true), item(2, "b", false))
	svc.State.Notices.Show(state.KindUpdate)

	if err := svc.ClearCompleted(context.Background()); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if cur, ok := svc.State.Notices.Current(); ok {
		t.Fatalf("expected no notice, got %s", cur.Kind)
	}
}

func TestClearCompletedIsIdempotent(t *testing.T) {
	svc, fake := newService(t, item(1, "a", true), item(2, "b", false), item(3, "c", true))

	if err := svc.ClearCompleted(context.Background()); err != nil {
		t.Fatalf("first clear: %v", err)
	}
	after := svc.State.Items.Items()
	calls := len(fake.Calls())

	if err := svc.ClearCompleted(context.Background()); err != nil {
		t.Fatalf("second clear: %v", err)
	}
	if diff := cmp.Diff(after, svc.State.Items.Items()); diff != "" {
		t.Fatalf("second clear changed the collection:\n%s", diff)
	}
	if len(fake.Calls()) != calls {
		t.Fatal("second clear must not call the remote")
	}
	if diff := cmp.Diff([]todo.Item{item(2, "b", false)}, after); diff != "" {
		t.Fatalf("collection mismatch:\n%s", diff)
	}
}

func TestClearCompletedRetryAfterPartialFailure(t *testing.T) {
	svc, fake := newService(t, item(1, "a", true), item(2, "b", true))
	fake.FailRemove(2, nil)

	if err := svc.ClearCompleted(context.Background()); err == nil {
		t.Fatal("expected partial failure")
	}
	fake.Heal()
	if err := svc.ClearCompleted(context.Background()); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if svc.State.Items.Len() != 0 {
		t.Fatalf("expected everything cleared, got %v", svc.State.Items.Items())
	}
}

func TestClearCompletedLaunchesConcurrently(t *testing.T) {
	svc, fake := newService(t, item(1, "a", true), item(2, "b", true), item(3, "c", true))

	var mu sync.Mutex
	arrived := 0
	release := make(chan struct{})
	fake.Before = func(op remotetest.Op, id int) {
		if op != remotetest.OpRemove {
			return
		}
		mu.Lock()
		arrived++
		if arrived == 3 {
			close(release)
		}
		mu.Unlock()
		select {
		case <-release:
		case <-time.After(2 * time.Second):
			t.Errorf("delete of %d was not issued alongside its siblings", id)
		}
	}

	if err := svc.ClearCompleted(context.Background()); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if svc.State.Items.Len() != 0 {
		t.Fatal("expected empty collection")
	}
}

func TestToggleAllReopensWithServerItems(t *testing.T) {
	svc, fake := newService(t, item(1, "a", true), item(2, "b", true))
	fake.Canonicalize = func(it todo.Item) todo.Item {
		it.Title += " (server)"
		return it
	}

	if err := svc.ToggleAllCompleted(context.Background()); err != nil {
		t.Fatalf("toggle all: %v", err)
	}
	want := []todo.Item{item(1, "a (server)", false), item(2, "b (server)", false)}
	if diff := cmp.Diff(want, svc.State.Items.Items()); diff != "" {
		t.Fatalf("collection mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{1, 2}, fake.SortedCallsOf(remotetest.OpPatch)); diff != "" {
		t.Fatalf("patch calls:\n%s", diff)
	}
	assertIdle(t, svc)
}

func TestToggleAllCompletesOnlyTheRest(t *testing.T) {
	svc, fake := newService(t, item(1, "a", true), item(2, "b", false), item(3, "c", false))
	fake.Canonicalize = func(it todo.Item) todo.Item {
		it.Title += " (server)"
		return it
	}

	var mu sync.Mutex
	var busy []state.LoadingSet
	fake.Before = func(op remotetest.Op, id int) {
		mu.Lock()
		busy = append(busy, svc.State.Loading.Current())
		mu.Unlock()
	}

	if err := svc.ToggleAllCompleted(context.Background()); err != nil {
		t.Fatalf("toggle all: %v", err)
	}

	if diff := cmp.Diff([]int{2, 3}, fake.SortedCallsOf(remotetest.OpPatch)); diff != "" {
		t.Fatalf("only incomplete ids are patched:\n%s", diff)
	}
	for _, set := range busy {
		if set.Has(1) || !set.Has(2) || !set.Has(3) {
			t.Fatalf("busy set must be exactly the incomplete ids, got %+v", set)
		}
	}
	want := []todo.Item{item(1, "a", true), item(2, "b", true), item(3, "c", true)}
	if diff := cmp.Diff(want, svc.State.Items.Items()); diff != "" {
		t.Fatalf("in-place transform must keep local representations (-want +got):\n%s", diff)
	}
	assertIdle(t, svc)
}

func TestToggleAllReopenFailureLeavesCollectionStale(t *testing.T) {
	svc, fake := newService(t, item(1, "a", true), item(2, "b", true), item(3, "c", true))
	fake.FailPatch(2, nil)

	err := svc.ToggleAllCompleted(context.Background())
	if !errors.Is(err, remotetest.ErrInjected) {
		t.Fatalf("expected injected error, got %v", err)
	}

	// The remote applied the patches that succeeded, the local list did not.
	stored := fake.Stored()
	if stored[0].Completed || !stored[1].Completed || stored[2].Completed {
		t.Fatalf("unexpected remote state %+v", stored)
	}
	want := []todo.Item{item(1, "a", true), item(2, "b", true), item(3, "c", true)}
	if diff := cmp.Diff(want, svc.State.Items.Items()); diff != "" {
		t.Fatalf("collection must stay unreconciled (-want +got):\n%s", diff)
	}
	assertNotice(t, svc, state.KindUpdate)
	assertIdle(t, svc)
}

func TestToggleAllCompleteRestFailure(t *testing.T) {
	svc, fake := newService(t, item(1, "a", true), item(2, "b", false), item(3, "c", false))
	fake.FailPatch(3, nil)

	if err := svc.ToggleAllCompleted(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	want := []todo.Item{item(1, "a", true), item(2, "b", false), item(3, "c", false)}
	if diff := cmp.Diff(want, svc.State.Items.Items()); diff != "" {
		t.Fatalf("collection mismatch (-want +got):\n%s", diff)
	}
	assertNotice(t, svc, state.KindUpdate)
	assertIdle(t, svc)
}

func TestToggleAllEmptyIsNoop(t *testing.T) {
	svc, fake := newService(t)
	if err := svc.ToggleAllCompleted(context.Background()); err != nil {
		t.Fatalf("toggle all: %v", err)
	}
	if len(fake.Calls()) != 0 {
		t.Fatal("empty toggle must not call the remote")
	}
}

func TestDecideToggle(t *testing.T) {
	if DecideToggle([]todo.Item{item(1, "a", true)}) != AllCompleted {
		t.Fatal("expected all completed")
	}
	if DecideToggle([]todo.Item{item(1, "a", true), item(2, "b", false)}) != SomeIncomplete {
		t.Fatal("expected some incomplete")
	}
}

func TestSubmitTitleEmptyDeletesAndClearsNotice(t *testing.T) {
	svc, fake := newService(t, item(1, "a", false))
	svc.State.Notices.Show(state.KindUpdate)

	var during state.Kind = -1
	fake.Before = func(op remotetest.Op, id int) {
		cur, _ := svc.State.Notices.Current()
		during = cur.Kind
	}

	res, err := svc.SubmitTitle(context.Background(), 1, "   ")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res != EditClosed {
		t.Fatalf("expected closed, got %s", res)
	}
	if during != state.KindNone {
		t.Fatalf("prior notice must be cleared before deleting, saw %s", during)
	}
	if len(fake.CallsOf(remotetest.OpPatch)) != 0 {
		t.Fatal("empty title must never patch")
	}
	if diff := cmp.Diff([]int{1}, fake.CallsOf(remotetest.OpRemove)); diff != "" {
		t.Fatalf("remove calls:\n%s", diff)
	}
	if svc.State.Items.Len() != 0 {
		t.Fatal("item should be gone")
	}
}

func TestSubmitTitleUnchangedMakesNoCall(t *testing.T) {
	svc, fake := newService(t, item(1, "milk", false))
	res, err := svc.SubmitTitle(context.Background(), 1, " milk ")
	if err != nil || res != EditClosed {
		t.Fatalf("unexpected %s %v", res, err)
	}
	if len(fake.Calls()) != 0 {
		t.Fatal("unchanged title must not call the remote")
	}
}

func TestSubmitTitlePatchesTrimmed(t *testing.T) {
	svc, fake := newService(t, item(1, "milk", false))
	if _, err := svc.SubmitTitle(context.Background(), 1, "  oat milk "); err != nil {
		t.Fatalf("submit: %v", err)
	}
	calls := fake.Calls()
	if len(calls) != 1 || calls[0].Op != remotetest.OpPatch || *calls[0].Patch.Title != "oat milk" {
		t.Fatalf("unexpected calls %+v", calls)
	}
	if it, _ := svc.State.Items.Get(1); it.Title != "oat milk" {
		t.Fatalf("unexpected title %q", it.Title)
	}
}

func TestSubmitTitleFailureKeepsEditOpen(t *testing.T) {
	svc, fake := newService(t, item(1, "milk", false))
	fake.FailPatch(1, nil)

	focused := 0
	svc.State.Focus.Attach(state.FocuserFunc(func() { focused++ }))

	res, err := svc.SubmitTitle(context.Background(), 1, "bread")
	if err == nil {
		t.Fatal("expected error")
	}
	if res != EditOpen {
		t.Fatalf("expected edit to stay open, got %s", res)
	}
	if !svc.State.Focus.Locked() || focused != 1 {
		t.Fatalf("expected focus re-locked, locked=%t focused=%d", svc.State.Focus.Locked(), focused)
	}
	assertNotice(t, svc, state.KindUpdate)
}

func TestBeginEditLocksFocus(t *testing.T) {
	svc, _ := newService(t, item(1, "milk", false))
	if err := svc.BeginEdit(1); err != nil {
		t.Fatalf("begin edit: %v", err)
	}
	if !svc.State.Focus.Locked() {
		t.Fatal("expected focus locked")
	}
	if err := svc.BeginEdit(9); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestToggleItem(t *testing.T) {
	svc, _ := newService(t, item(1, "milk", false))
	it, err := svc.ToggleItem(context.Background(), 1)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if !it.Completed || svc.CompletedCount() != 1 || svc.ActiveCount() != 0 || !svc.AllCompleted() {
		t.Fatalf("unexpected state after toggle %+v", svc.State.Items.Items())
	}
}

func TestAddTitle(t *testing.T) {
	svc, fake := newService(t)

	if _, err := svc.AddTitle(context.Background(), "   "); !errors.Is(err, ErrEmptyTitle) {
		t.Fatalf("expected ErrEmptyTitle, got %v", err)
	}
	assertNotice(t, svc, state.KindEmpty)
	if len(fake.Calls()) != 0 {
		t.Fatal("blank title must not call the remote")
	}

	it, err := svc.AddTitle(context.Background(), "  eggs ")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if it.Title != "eggs" || it.UserID != 7 || it.Completed {
		t.Fatalf("unexpected item %+v", it)
	}
}
