package recording

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fogfish/opts"

	"github.com/casualjim/tether/address"
	"github.com/casualjim/tether/pkg/slogx"
	"github.com/casualjim/tether/transport"
)

// ErrNothingToPlay is returned when infinite playback has no entry to publish.
var ErrNothingToPlay = errors.New("recording: nothing to play")

// Publisher sends a payload to a topic. *tether.Agent implements it.
type Publisher interface {
	PublishRaw(ctx context.Context, topic string, payload []byte, qos transport.QoS, retain bool) error
}

// Player republishes recorded entries.
type Player struct {
	speed         float64
	filters       []string
	overrideTopic string
	loops         int
	infinite      bool
	qos           transport.QoS
	sleep         func(context.Context, time.Duration) error
}

var (
	// Speed scales playback: 2 plays twice as fast.
	Speed = opts.ForName[Player, float64]("speed")
	// Filters restricts playback to matching topics. A filter containing a
	// wildcard is a topic filter; any other filter matches topics containing it.
	Filters = opts.ForName[Player, []string]("filters")
	// OverrideTopic publishes every entry to one topic.
	OverrideTopic = opts.ForName[Player, string]("overrideTopic")
	// Loops sets how often the recording is played.
	Loops = opts.ForName[Player, int]("loops")
	// Infinite plays the recording until the context is done.
	Infinite = opts.ForName[Player, bool]("infinite")
	// PublishQoS sets the delivery guarantee of republished messages.
	PublishQoS = opts.ForName[Player, transport.QoS]("qos")
)

// NewPlayer creates a player. It plays once, at recorded speed, by default.
func NewPlayer(options ...opts.Option[Player]) (*Player, error) {
	p := &Player{speed: 1, loops: 1, qos: transport.AtLeastOnce, sleep: sleep}
	if err := opts.Apply(p, options); err != nil {
		return nil, fmt.Errorf("recording: %w", err)
	}
	if p.speed <= 0 {
		return nil, fmt.Errorf("recording: speed must be positive, got %v", p.speed)
	}
	if !p.infinite && p.loops < 1 {
		return nil, fmt.Errorf("recording: loops must be at least 1, got %d", p.loops)
	}
	return p, nil
}

// Play publishes the entries with their recorded delays and returns how many
// were published. It stops early, with the context's error, when ctx is done.
func (p *Player) Play(ctx context.Context, entries []Entry, pub Publisher) (int, error) {
	log := slog.Default().With(slogx.LoggerName("playback"))
	if p.overrideTopic != "" {
		log.Warn("every entry is published to the override topic", slogx.Topic(p.overrideTopic))
	}

	published := 0
	for loop := 1; p.infinite || loop <= p.loops; loop++ {
		log.Info("starting loop", slog.Int("loop", loop), slog.Int("entries", len(entries)))
		played := 0
		for _, e := range entries {
			if !p.accepts(e.Topic) {
				continue
			}
			delay := time.Duration(float64(e.DeltaTime) * float64(time.Millisecond) / p.speed)
			if err := p.sleep(ctx, delay); err != nil {
				return published, err
			}

			topic := e.Topic
			if p.overrideTopic != "" {
				topic = p.overrideTopic
			}
			if err := pub.PublishRaw(ctx, topic, e.Message.Data, p.qos, false); err != nil {
				return published, fmt.Errorf("recording: play: %w", err)
			}
			published++
			played++
		}
		if played == 0 && p.infinite {
			return published, ErrNothingToPlay
		}
	}
	return published, nil
}

func (p *Player) accepts(topic string) bool {
	if len(p.filters) == 0 {
		return true
	}
	for _, f := range p.filters {
		if strings.ContainsAny(f, address.SingleLevelWildcard+address.MultiLevelWildcard) {
			if address.MatchFilter(f, topic) {
				return true
			}
			continue
		}
		if strings.Contains(topic, f) {
			return true
		}
	}
	return false
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
