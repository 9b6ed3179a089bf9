package live

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeSocket struct {
	failing bool
	sent    [][]byte
}

func (s *fakeSocket) Send(data []byte) error {
	if s.failing {
		return errors.New("send failed")
	}
	s.sent = append(s.sent, data)
	return nil
}

func TestRegistryBroadcastDeliversToEverySocketInProject(t *testing.T) {
	r := NewRegistry()
	a := &fakeSocket{}
	b := &fakeSocket{}
	r.Add("proj1", a)
	r.Add("proj1", b)
	r.Add("proj2", &fakeSocket{})

	r.Broadcast("proj1", []byte("hello"))

	require.Len(t, a.sent, 1)
	require.Len(t, b.sent, 1)
	require.Equal(t, 2, r.Count("proj1"))
	require.Equal(t, 1, r.Count("proj2"))
}

func TestRegistryBroadcastReapsDeadSockets(t *testing.T) {
	r := NewRegistry()
	alive := &fakeSocket{}
	dead := &fakeSocket{failing: true}
	r.Add("proj1", alive)
	r.Add("proj1", dead)

	r.Broadcast("proj1", []byte("ping"))

	require.Equal(t, 1, r.Count("proj1"), "a failing socket must be removed from the registry")
	require.Len(t, alive.sent, 1)
}

func TestRegistryRemoveIsIdempotent(t *testing.T) {
	r := NewRegistry()
	s := &fakeSocket{}
	r.Add("proj1", s)
	r.Remove("proj1", s)
	r.Remove("proj1", s)
	require.Equal(t, 0, r.Count("proj1"))
}

func TestRegistryBroadcastOnUnknownProjectIsNoop(t *testing.T) {
	r := NewRegistry()
	require.NotPanics(t, func() {
		r.Broadcast("does-not-exist", []byte("x"))
	})
}
