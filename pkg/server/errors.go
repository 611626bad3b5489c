package server

import "errors"

// Authorization failures reported back to the sender only.
var (
	errNoSession    = errors.New("no session; connect or resume first")
	errNotInRoom    = errors.New("not in a room")
	errNotHost      = errors.New("only the host can do that")
	errRoomNotFound = errors.New("room not found")
	errRoomFull     = errors.New("room is full")
	errRoomStarted  = errors.New("game already in progress")
	errNoMatch      = errors.New("no game in progress")
)
