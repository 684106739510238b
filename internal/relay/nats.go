package relay

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Tyrowin/chatd/internal/events"
)

// DefaultSubject is where the channel management service publishes new
// channels.
const DefaultSubject = "chat.channel.created"

const handleTimeout = 5 * time.Second

// Connect dials NATS with unlimited reconnects.
func Connect(url, name string, logger *zap.Logger) (*nats.Conn, error) {
	log := logger.Named("nats")
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(500*time.Millisecond),
		nats.ReconnectJitter(100*time.Millisecond, 500*time.Millisecond),
		nats.Timeout(3*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "connect %s", url)
	}
	return nc, nil
}

// Subscriber feeds channelCreated messages from NATS into a Relay.
type Subscriber struct {
	relay  *Relay
	sub    *nats.Subscription
	logger *zap.Logger
}

// Subscribe starts relaying messages published on subject. Each message is
// a JSON channel summary {"id", "name", "workspaceId"}.
func Subscribe(nc *nats.Conn, subject string, r *Relay, logger *zap.Logger) (*Subscriber, error) {
	if subject == "" {
		subject = DefaultSubject
	}
	s := &Subscriber{relay: r, logger: logger.Named("relay.nats")}

	sub, err := nc.Subscribe(subject, s.handle)
	if err != nil {
		return nil, errors.Wrapf(err, "subscribe %s", subject)
	}
	_ = sub.SetPendingLimits(1_000_000, 64*1024*1024)
	s.sub = sub
	s.logger.Info("subscribed", zap.String("subject", subject))
	return s, nil
}

func (s *Subscriber) handle(m *nats.Msg) {
	if err := s.process(m.Data); err != nil {
		s.logger.Warn("dropping channel announcement",
			zap.String("subject", m.Subject),
			zap.Error(err))
	}
}

func (s *Subscriber) process(data []byte) error {
	var ev events.ChannelCreatedEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return errors.Wrap(err, "decode")
	}
	if ev.ID <= 0 {
		return errors.New("missing channel id")
	}

	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()
	_, err := s.relay.Announce(ctx, ev)
	return err
}

// Close drains the subscription so that messages already received are
// still relayed.
func (s *Subscriber) Close() error {
	if s.sub == nil {
		return nil
	}
	return errors.Wrap(s.sub.Drain(), "drain subscription")
}
