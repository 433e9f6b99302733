package client

import "github.com/pkg/errors"

// ErrUnableToConnect indicates that the reconnect attempt budget ran out
// without ever re-establishing a session.
var ErrUnableToConnect = errors.New("unable to connect")

// ErrVersionMismatch indicates a server speaking a different protocol
// version; reconnecting would not help.
var ErrVersionMismatch = errors.New("protocol version mismatch")

// ErrHandshakeRefused indicates the server rejected the handshake (duplicate
// username, full server, invalid identity).
var ErrHandshakeRefused = errors.New("handshake refused")

// ErrNotConnected indicates an API call on an engine with no live session.
var ErrNotConnected = errors.New("not connected")

// errQuit marks a client-initiated, intentional shutdown of the session.
var errQuit = errors.New("client quit")

// errServerClosed marks a server-initiated CONNECTION_END that is not a
// timeout, which the engine treats as intentional.
var errServerClosed = errors.New("server closed the connection")

// errTimedOut marks a server-reported timeout, which is eligible for
// reconnection.
var errTimedOut = errors.New("server reported timeout")
