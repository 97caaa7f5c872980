package pdu

import (
	"errors"
	"net"
	"time"

	dimseerrors "github.com/caio-sobreiro/dimsenet/errors"
)

// deadliner is implemented by *net.TCPListener and *net.UnixListener.
type deadliner interface {
	SetDeadline(t time.Time) error
}

// Listener accepts associations on a network listener. It satisfies
// dimse.Listener so a C-MOVE user can wait on it next to its main
// association.
type Listener struct {
	ln    net.Listener
	cfg   Config
	ready net.Conn
}

// Listen opens a TCP listener on address.
func Listen(address string, cfg Config) (*Listener, error) {
	ln, err := net.Listen("tcp", address)
	if err != nil {
		return nil, dimseerrors.NewNetworkError("listen", err)
	}
	return NewListener(ln, cfg), nil
}

// NewListener wraps ln.
func NewListener(ln net.Listener, cfg Config) *Listener {
	return &Listener{ln: ln, cfg: cfg.withDefaults()}
}

// Addr returns the listening address.
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

// Pending reports whether a connection can be accepted within timeout. A
// connection found this way is kept for the next Accept.
func (l *Listener) Pending(timeout time.Duration) bool {
	if l.ready != nil {
		return true
	}
	d, ok := l.ln.(deadliner)
	if !ok {
		return false
	}
	if timeout <= 0 {
		timeout = pollSlice
	}
	if err := d.SetDeadline(time.Now().Add(timeout)); err != nil {
		return false
	}
	defer d.SetDeadline(time.Time{})

	conn, err := l.ln.Accept()
	if err != nil {
		return false
	}
	l.ready = conn
	return true
}

// Accept waits for the next connection and negotiates an association on
// it.
func (l *Listener) Accept() (*Conn, error) {
	conn := l.ready
	l.ready = nil
	if conn == nil {
		var err error
		if conn, err = l.ln.Accept(); err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil, dimseerrors.ErrConnectionClosed
			}
			return nil, dimseerrors.NewNetworkError("accept", err)
		}
	}
	return Accept(conn, l.cfg)
}

// Close stops listening.
func (l *Listener) Close() error {
	if l.ready != nil {
		l.ready.Close()
		l.ready = nil
	}
	return l.ln.Close()
}
