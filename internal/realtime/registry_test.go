package realtime

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu     sync.Mutex
	frames []any
	fail   error
	closed bool
}

func (c *fakeConn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail != nil {
		return c.fail
	}
	c.frames = append(c.frames, v)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

func newTestRegistry() *Registry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewRegistry(log)
}

func envelope(typ string) Envelope {
	return Envelope{Type: typ, Data: map[string]string{"k": "v"}, Timestamp: time.Now()}
}

func TestRegistry_AddLookupRemove(t *testing.T) {
	t.Parallel()

	r := newTestRegistry()
	conn := &fakeConn{}

	s := r.Add("user-1", RolePassenger, conn)
	assert.True(t, r.Connected("user-1"))
	assert.Equal(t, 1, r.Count())
	assert.Len(t, r.Lookup("user-1"), 1)

	r.Remove(s)
	assert.False(t, r.Connected("user-1"))
	assert.Equal(t, 0, r.Count())
	assert.True(t, conn.closed)
}

func TestRegistry_SendToUser_AllSessions(t *testing.T) {
	t.Parallel()

	r := newTestRegistry()
	phone, tablet := &fakeConn{}, &fakeConn{}
	r.Add("user-1", RolePassenger, phone)
	r.Add("user-1", RolePassenger, tablet)

	require.NoError(t, r.SendToUser(context.Background(), "user-1", envelope("trip_status")))
	assert.Equal(t, 1, phone.count())
	assert.Equal(t, 1, tablet.count())
}

func TestRegistry_SendToUser_NoSession(t *testing.T) {
	t.Parallel()

	r := newTestRegistry()
	err := r.SendToUser(context.Background(), "ghost", envelope("trip_status"))
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestRegistry_SendToUser_DropsBrokenSession(t *testing.T) {
	t.Parallel()

	r := newTestRegistry()
	broken := &fakeConn{fail: errors.New("broken pipe")}
	healthy := &fakeConn{}
	r.Add("user-1", RoleDriver, broken)
	r.Add("user-1", RoleDriver, healthy)

	require.NoError(t, r.SendToUser(context.Background(), "user-1", envelope("x")))
	assert.Len(t, r.Lookup("user-1"), 1)
	assert.True(t, broken.closed)

	r2 := newTestRegistry()
	r2.Add("user-2", RoleDriver, &fakeConn{fail: errors.New("broken pipe")})
	assert.Error(t, r2.SendToUser(context.Background(), "user-2", envelope("x")))
	assert.False(t, r2.Connected("user-2"))
}

func TestRegistry_BroadcastByRole(t *testing.T) {
	t.Parallel()

	r := newTestRegistry()
	d1, d2, p1 := &fakeConn{}, &fakeConn{}, &fakeConn{}
	r.Add("driver-1", RoleDriver, d1)
	r.Add("driver-2", RoleDriver, d2)
	r.Add("passenger-1", RolePassenger, p1)

	assert.Equal(t, 2, r.Broadcast(context.Background(), RoleDriver, envelope("trip_request")))
	assert.Equal(t, 0, p1.count())

	assert.Equal(t, 3, r.Broadcast(context.Background(), "", envelope("announcement")))
	assert.Equal(t, 1, p1.count())
	assert.Equal(t, 2, d1.count())
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	r := newTestRegistry()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := r.Add("user-1", RolePassenger, &fakeConn{})
			_ = r.SendToUser(context.Background(), "user-1", envelope("ping"))
			r.Broadcast(context.Background(), "", envelope("ping"))
			r.Remove(s)
		}()
	}

	wg.Wait()
	assert.Equal(t, 0, r.Count())
}
