package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/m3rciful/orbitbot/core/command"
)

type fakeStore struct {
	owner   string
	admins  []string
	readErr error
	saveErr error
	saved   [][]string
}

func (f *fakeStore) Owner(context.Context) (string, error) { return f.owner, f.readErr }

func (f *fakeStore) Admins(context.Context) ([]string, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	return f.admins, nil
}

func (f *fakeStore) SaveAdmins(_ context.Context, ids []string) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, append([]string(nil), ids...))
	return nil
}

type fakeGroups struct {
	admins map[string]bool
	err    error
	calls  int
}

func (f *fakeGroups) IsGroupAdmin(_ context.Context, _, id string) (bool, error) {
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	return f.admins[id], nil
}

func newGate(t *testing.T, st *fakeStore, opts ...Option) *Gate {
	t.Helper()
	g := NewGate(st, opts...)
	g.Load(context.Background())
	return g
}

func TestOwnerIsImplicitAdmin(t *testing.T) {
	g := newGate(t, &fakeStore{owner: "O", admins: []string{"A"}})
	if !g.IsOwner("O") || g.IsOwner("A") {
		t.Fatal("owner match wrong")
	}
	if !g.IsAdmin("O") || !g.IsAdmin("A") || g.IsAdmin("X") {
		t.Fatal("admin match wrong")
	}
}

func TestAuthorizeAdminFlipsAfterAddAdmin(t *testing.T) {
	ctx := context.Background()
	st := &fakeStore{owner: "O"}
	g := newGate(t, st)
	req := command.Requirements{Admin: true}

	if g.Authorize(ctx, "U1", "c", false, req) {
		t.Fatal("non-admin authorized")
	}
	if err := g.AddAdmin(ctx, "U1", "O"); err != nil {
		t.Fatalf("AddAdmin: %v", err)
	}
	if !g.Authorize(ctx, "U1", "c", false, req) {
		t.Fatal("new admin denied")
	}
	if len(st.saved) != 1 || st.saved[0][0] != "U1" {
		t.Fatalf("saved = %v", st.saved)
	}
}

func TestOnlyOwnerMutatesAdmins(t *testing.T) {
	ctx := context.Background()
	st := &fakeStore{owner: "O", admins: []string{"A"}}
	g := newGate(t, st)

	if err := g.AddAdmin(ctx, "U2", "A"); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("AddAdmin by admin: %v", err)
	}
	if err := g.RemoveAdmin(ctx, "A", "A"); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("RemoveAdmin by admin: %v", err)
	}
	if got := g.Admins(); len(got) != 1 || got[0] != "A" {
		t.Fatalf("admins changed: %v", got)
	}
	if len(st.saved) != 0 {
		t.Fatal("store written by non-owner")
	}
}

func TestAddRemoveSentinels(t *testing.T) {
	ctx := context.Background()
	g := newGate(t, &fakeStore{owner: "O", admins: []string{"A"}})
	if err := g.AddAdmin(ctx, "A", "O"); !errors.Is(err, ErrAlreadyAdmin) {
		t.Fatalf("got %v", err)
	}
	if err := g.RemoveAdmin(ctx, "Z", "O"); !errors.Is(err, ErrNotAdmin) {
		t.Fatalf("got %v", err)
	}
	if err := g.RemoveAdmin(ctx, "A", "O"); err != nil {
		t.Fatalf("RemoveAdmin: %v", err)
	}
	if g.IsAdmin("A") {
		t.Fatal("admin not removed")
	}
}

func TestPersistFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	st := &fakeStore{owner: "O", admins: []string{"A"}}
	g := newGate(t, st)
	st.saveErr = errors.New("disk full")

	if err := g.AddAdmin(ctx, "U1", "O"); err == nil {
		t.Fatal("expected error")
	}
	if g.IsAdmin("U1") {
		t.Fatal("add not rolled back")
	}
	if err := g.RemoveAdmin(ctx, "A", "O"); err == nil {
		t.Fatal("expected error")
	}
	if !g.IsAdmin("A") {
		t.Fatal("remove not rolled back")
	}
}

func TestReadFailureGrantsNothing(t *testing.T) {
	g := newGate(t, &fakeStore{owner: "O", admins: []string{"A"}, readErr: errors.New("io")})
	if g.IsOwner("") || g.IsOwner("O") || g.IsAdmin("A") {
		t.Fatal("failed read must leave role sets empty")
	}
	if g.Authorize(context.Background(), "", "c", false, command.Requirements{Owner: true}) {
		t.Fatal("empty requester matched empty owner")
	}
}

func TestConfiguredOwnerWins(t *testing.T) {
	g := newGate(t, &fakeStore{owner: "stored"}, WithOwner("pinned"))
	if !g.IsOwner("pinned") || g.IsOwner("stored") {
		t.Fatalf("owner = %q", g.Owner())
	}
}

func TestGroupAdminRequirement(t *testing.T) {
	ctx := context.Background()
	groups := &fakeGroups{admins: map[string]bool{"G": true}}
	g := newGate(t, &fakeStore{owner: "O"}, WithGroupLookup(groups))
	req := command.Requirements{GroupAdmin: true}

	if !g.Authorize(ctx, "G", "grp", true, req) {
		t.Fatal("group admin denied")
	}
	if g.Authorize(ctx, "U", "grp", true, req) {
		t.Fatal("member authorized")
	}
	if !g.Authorize(ctx, "U", "dm", false, req) {
		t.Fatal("group requirement applied outside a group")
	}
	calls := groups.calls
	if !g.Authorize(ctx, "O", "grp", true, req) || groups.calls != calls {
		t.Fatal("owner should short-circuit before the lookup")
	}

	groups.err = errors.New("timeout")
	if g.IsGroupAdmin(ctx, "grp", "G") {
		t.Fatal("lookup failure must fail closed")
	}
}
