package registration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/m3rciful/orbitbot/core/store"
	"github.com/m3rciful/orbitbot/core/store/jsonstore"
)

type memStore struct {
	regs    map[string]store.Registration
	readErr error
	saveErr error
}

func (m *memStore) Registration(_ context.Context, username string) (store.Registration, error) {
	if m.readErr != nil {
		return store.Registration{}, m.readErr
	}
	r, ok := m.regs[username]
	if !ok {
		return store.Registration{}, store.ErrNotFound
	}
	return r, nil
}

func (m *memStore) SaveRegistration(_ context.Context, r store.Registration) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.regs[r.Username] = r
	return nil
}

func newService() (*Service, *memStore) {
	st := &memStore{regs: map[string]store.Registration{}}
	s := New(st)
	s.cost = bcrypt.MinCost
	return s, st
}

func TestRegisterHashesAndRejectsDuplicates(t *testing.T) {
	s, st := newService()
	ctx := context.Background()

	reg, err := s.Register(ctx, "alice", "s3cret!", "+100")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if reg.ID == "" || reg.PasswordHash == "s3cret!" {
		t.Fatalf("unexpected registration %+v", reg)
	}
	if _, ok := st.regs["alice"]; !ok {
		t.Fatal("not persisted")
	}
	if _, err := s.Register(ctx, "alice", "another1", ""); !errors.Is(err, ErrUserExists) {
		t.Fatalf("duplicate: %v", err)
	}
	if ok, _ := s.Verify(ctx, "alice", "s3cret!"); !ok {
		t.Fatal("Verify rejected the right password")
	}
	if ok, _ := s.Verify(ctx, "alice", "wrong"); ok {
		t.Fatal("Verify accepted a wrong password")
	}
}

func TestRegisterValidates(t *testing.T) {
	s, _ := newService()
	cases := map[string][2]string{
		"empty user":    {"", "password"},
		"short pass":    {"bob", "123"},
		"space in user": {"bo b", "password"},
		"slash":         {"../x", "password"},
	}
	for name, in := range cases {
		if _, err := s.Register(context.Background(), in[0], in[1], ""); !errors.Is(err, ErrInvalid) {
			t.Fatalf("%s: err = %v", name, err)
		}
	}
}

func TestRegisterSurfacesStoreErrors(t *testing.T) {
	s, st := newService()
	st.readErr = errors.New("db down")
	if _, err := s.Register(context.Background(), "carol", "password", ""); err == nil || errors.Is(err, ErrUserExists) {
		t.Fatalf("err = %v", err)
	}
}

func TestRegisterMapsStoreConflict(t *testing.T) {
	s, st := newService()
	st.saveErr = store.ErrExists
	if _, err := s.Register(context.Background(), "dave", "password", ""); !errors.Is(err, ErrUserExists) {
		t.Fatalf("err = %v, want ErrUserExists", err)
	}
}

func TestRegisterConcurrentSameUsername(t *testing.T) {
	st, err := jsonstore.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	s := New(st)
	s.cost = bcrypt.MinCost
	ctx := context.Background()

	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ok      int
		winner  string
		badErrs []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			pass := fmt.Sprintf("secret%d", i)
			_, err := s.Register(ctx, "alice", pass, "p")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
				winner = pass
			case !errors.Is(err, ErrUserExists):
				badErrs = append(badErrs, err)
			}
		}(i)
	}
	wg.Wait()

	if len(badErrs) > 0 {
		t.Fatalf("unexpected errors: %v", badErrs)
	}
	if ok != 1 {
		t.Fatalf("successful registrations = %d, want 1", ok)
	}
	if match, err := s.Verify(ctx, "alice", winner); err != nil || !match {
		t.Fatalf("stored password is not the winner's: match=%v err=%v", match, err)
	}
}
