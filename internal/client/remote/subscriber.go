package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/dmitrijs2005/promptvault/internal/client/models"
	"github.com/dmitrijs2005/promptvault/internal/logging"
)

// WSSubscriber implements Subscriber over the store's websocket change feed.
type WSSubscriber struct {
	baseURL string
	session func() models.Session
	log     logging.Logger
}

// NewWSSubscriber returns a subscriber dialing baseURL (http/https scheme;
// it is rewritten to ws/wss). session supplies the current identity at dial
// time.
func NewWSSubscriber(baseURL string, session func() models.Session, log logging.Logger) *WSSubscriber {
	return &WSSubscriber{baseURL: baseURL, session: session, log: log}
}

func (s *WSSubscriber) Subscribe(ctx context.Context, ownerID string) (Subscription, error) {
	u, err := wsURL(s.baseURL)
	if err != nil {
		return nil, err
	}
	u = fmt.Sprintf("%s/api/v1/changes?owner=%s", u, url.QueryEscape(ownerID))

	header := http.Header{}
	if token := s.session().AccessToken; token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, _, err := websocket.Dial(ctx, u, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		return nil, fmt.Errorf("failed to open change feed: %w", err)
	}

	sub := &wsSubscription{
		conn:   conn,
		events: make(chan models.ChangeEvent, 16),
		log:    s.log,
	}
	go sub.readLoop(ctx)
	return sub, nil
}

type wsSubscription struct {
	conn   *websocket.Conn
	events chan models.ChangeEvent
	log    logging.Logger

	mu  sync.Mutex
	err error
}

func (s *wsSubscription) Events() <-chan models.ChangeEvent { return s.events }

func (s *wsSubscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *wsSubscription) Close() error {
	return s.conn.Close(websocket.StatusNormalClosure, "detached")
}

func (s *wsSubscription) readLoop(ctx context.Context) {
	defer close(s.events)

	for {
		var dto changeEventDTO
		if err := wsjson.Read(ctx, s.conn, &dto); err != nil {
			s.mu.Lock()
			s.err = err
			s.mu.Unlock()
			return
		}

		ev, err := dto.toModel()
		if err != nil {
			// A malformed event is not worth tearing the feed down for.
			s.log.Warn(ctx, "dropping malformed change event", "error", err)
			continue
		}

		select {
		case s.events <- ev:
		case <-ctx.Done():
			s.mu.Lock()
			s.err = ctx.Err()
			s.mu.Unlock()
			return
		}
	}
}

// CloseCause classifies why a subscription ended, driving the reconnect
// backoff choice.
type CloseCause int

const (
	// CauseError is a hard transport or protocol failure.
	CauseError CloseCause = iota
	// CauseTimeout is an I/O or context deadline expiry.
	CauseTimeout
	// CauseClosed is an ordinary close (server went away cleanly).
	CauseClosed
)

func (c CloseCause) String() string {
	switch c {
	case CauseTimeout:
		return "timeout"
	case CauseClosed:
		return "closed"
	default:
		return "error"
	}
}

// Classify maps a subscription-ending error to its CloseCause.
func Classify(err error) CloseCause {
	if err == nil || errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return CauseClosed
	}
	if websocket.CloseStatus(err) != -1 {
		return CauseClosed
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return CauseTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return CauseTimeout
	}
	return CauseError
}

func wsURL(base string) (string, error) {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://"), nil
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://"), nil
	case strings.HasPrefix(base, "wss://"), strings.HasPrefix(base, "ws://"):
		return base, nil
	default:
		return "", fmt.Errorf("unsupported endpoint scheme: %s", base)
	}
}
