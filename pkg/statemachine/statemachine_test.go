package statemachine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type door struct {
	open   bool
	broken bool
}

func doorClosed(d *door, cb func(string, StateEvent)) StateFn[door] {
	if d.broken {
		return nil
	}
	if d.open {
		if cb != nil {
			cb("closed", StateExited)
		}
		return doorOpen
	}
	if cb != nil {
		cb("closed", StateEntered)
	}
	return doorClosed
}

func doorOpen(d *door, cb func(string, StateEvent)) StateFn[door] {
	if !d.open {
		if cb != nil {
			cb("open", StateExited)
		}
		return doorClosed
	}
	if cb != nil {
		cb("open", StateEntered)
	}
	return doorOpen
}

func TestDispatchTransitions(t *testing.T) {
	d := &door{}
	sm := New(d, doorClosed)
	require.True(t, sm.Is(doorClosed))

	d.open = true
	sm.Dispatch(nil)
	require.True(t, sm.Is(doorOpen))

	d.open = false
	sm.Dispatch(nil)
	require.True(t, sm.Is(doorClosed))
}

func TestCallbackEvents(t *testing.T) {
	d := &door{open: true}
	sm := New(d, doorClosed)

	var events []string
	sm.Dispatch(func(name string, ev StateEvent) {
		switch ev {
		case StateEntered:
			events = append(events, "enter:"+name)
		case StateExited:
			events = append(events, "exit:"+name)
		}
	})
	require.Equal(t, []string{"exit:closed"}, events)
	require.True(t, sm.Is(doorOpen))
}

func TestTerminalState(t *testing.T) {
	d := &door{broken: true}
	sm := New(d, doorClosed)
	require.False(t, sm.Terminated())

	sm.Dispatch(nil)
	require.True(t, sm.Terminated())

	// Dispatching a terminated machine is a no-op.
	sm.Dispatch(nil)
	require.True(t, sm.Terminated())
}

func TestSetDispatchesOnce(t *testing.T) {
	d := &door{open: true}
	sm := New(d, doorClosed)

	// Set settles into the state the entity's flags demand.
	sm.Set(doorClosed)
	require.True(t, sm.Is(doorOpen))
}
