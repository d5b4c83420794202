package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog"
)

const (
	listenerMinReconnect = 10 * time.Second
	listenerMaxReconnect = time.Minute
	listenerPing         = 90 * time.Second
)

// Notifier wraps LISTEN/NOTIFY.  Notify is called whenever a profile
// changes; the clinician dashboard streams the profile ids from Listen.
type Notifier struct {
	DB      *sql.DB
	DSN     string
	Channel string
	logger  zerolog.Logger
}

// NewNotifier constructs a Notifier.  The channel should match the
// POSTGRES_NOTIFY_CHANNEL setting.
func NewNotifier(db *sql.DB, dsn, channel string, logger zerolog.Logger) *Notifier {
	return &Notifier{
		DB:      db,
		DSN:     dsn,
		Channel: channel,
		logger:  logger.With().Str("component", "notifier").Str("channel", channel).Logger(),
	}
}

// Notify sends the profile id on the channel.
func (n *Notifier) Notify(ctx context.Context, profileID string) error {
	_, err := n.DB.ExecContext(ctx, `SELECT pg_notify($1, $2)`, n.Channel, profileID)
	return err
}

// Listen opens a dedicated connection and yields profile ids until ctx is
// cancelled.  The returned channel is closed when listening stops.
func (n *Notifier) Listen(ctx context.Context) (<-chan string, error) {
	l := pq.NewListener(n.DSN, listenerMinReconnect, listenerMaxReconnect, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			n.logger.Warn().Err(err).Int("event", int(ev)).Msg("listener connection event")
		}
	})
	if err := l.Listen(n.Channel); err != nil {
		l.Close()
		return nil, err
	}

	out := make(chan string, 16)
	go func() {
		defer close(out)
		defer l.Close()
		ping := time.NewTicker(listenerPing)
		defer ping.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case note, ok := <-l.Notify:
				if !ok {
					return
				}
				// nil after a reconnect; notifications may have been missed
				if note == nil {
					continue
				}
				select {
				case out <- note.Extra:
				case <-ctx.Done():
					return
				}
			case <-ping.C:
				if err := l.Ping(); err != nil {
					n.logger.Warn().Err(err).Msg("listener ping failed")
				}
			}
		}
	}()
	return out, nil
}
