package link

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"
)

const maxFrameBytes = 1 << 20

// WSTransport carries frames over a single websocket. The companion serves it
// as an HTTP handler; the watch dials out with DialLoop. The counterpart is
// reachable exactly while a connection is attached.
type WSTransport struct {
	logger       zerolog.Logger
	writeTimeout time.Duration

	frames chan []byte
	reach  chan bool
	closed chan struct{}

	mu        sync.Mutex
	conn      *websocket.Conn
	closeOnce sync.Once
}

var _ Transport = (*WSTransport)(nil)

func NewWSTransport(logger zerolog.Logger, writeTimeout time.Duration) *WSTransport {
	if writeTimeout <= 0 {
		writeTimeout = sendTimeout
	}
	return &WSTransport{
		logger:       logger.With().Str("component", "WSTransport").Logger(),
		writeTimeout: writeTimeout,
		frames:       make(chan []byte, 64),
		reach:        make(chan bool, 16),
		closed:       make(chan struct{}),
	}
}

// ServeHTTP accepts the counterpart's connection. A newer connection replaces
// an older one and is reported as a drop followed by a reconnect.
func (t *WSTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		t.logger.Warn().Err(err).Msg("websocket accept failed")
		return
	}
	t.logger.Info().Str("remote", r.RemoteAddr).Msg("counterpart connected")
	t.serve(r.Context(), conn)
}

// DialLoop keeps a connection to the URL returned by resolve open until ctx
// ends, reconnecting after interval whenever it drops.
func (t *WSTransport) DialLoop(ctx context.Context, resolve func(ctx context.Context) (string, error), interval time.Duration) {
	for {
		url, err := resolve(ctx)
		if err == nil {
			var conn *websocket.Conn
			conn, _, err = websocket.Dial(ctx, url, nil)
			if err == nil {
				t.logger.Info().Str("url", url).Msg("connected to counterpart")
				t.serve(ctx, conn)
			}
		}
		if err != nil && ctx.Err() == nil {
			t.logger.Debug().Err(err).Msg("counterpart not available")
		}

		select {
		case <-ctx.Done():
			return
		case <-t.closed:
			return
		case <-time.After(interval):
		}
	}
}

func (t *WSTransport) serve(ctx context.Context, conn *websocket.Conn) {
	conn.SetReadLimit(maxFrameBytes)
	t.attach(conn)
	defer t.detach(conn)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure && ctx.Err() == nil {
				t.logger.Info().Err(err).Msg("connection lost")
			}
			return
		}
		select {
		case t.frames <- data:
		case <-ctx.Done():
			return
		case <-t.closed:
			return
		}
	}
}

func (t *WSTransport) attach(conn *websocket.Conn) {
	t.mu.Lock()
	old := t.conn
	t.conn = conn
	t.mu.Unlock()

	if old != nil {
		t.emit(false)
		t.emit(true)
		old.Close(websocket.StatusGoingAway, "replaced by newer connection")
		return
	}
	t.emit(true)
}

func (t *WSTransport) detach(conn *websocket.Conn) {
	t.mu.Lock()
	current := t.conn == conn
	if current {
		t.conn = nil
	}
	t.mu.Unlock()

	conn.CloseNow()
	if current {
		t.emit(false)
	}
}

func (t *WSTransport) emit(reachable bool) {
	select {
	case t.reach <- reachable:
	case <-t.closed:
	}
}

func (t *WSTransport) Send(ctx context.Context, frame []byte) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return ErrUnreachable
	}

	writeCtx, cancel := context.WithTimeout(ctx, t.writeTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, frame)
}

func (t *WSTransport) Frames() <-chan []byte {
	return t.frames
}

func (t *WSTransport) Reachability() <-chan bool {
	return t.reach
}

func (t *WSTransport) Close() error {
	t.closeOnce.Do(func() {
		close(t.closed)
		t.mu.Lock()
		conn := t.conn
		t.conn = nil
		t.mu.Unlock()
		if conn != nil {
			conn.Close(websocket.StatusNormalClosure, "shutting down")
		}
	})
	return nil
}
