package actor

import (
	"fmt"
	"time"

	"github.com/berfenger/rover2mqtt/internal/core/domain"
	"github.com/berfenger/rover2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/carlmjohnson/versioninfo"
	"go.uber.org/zap"
)

const (
	STATE_WAITING = "waiting"
	STATE_POLLING = "polling"
	STATE_STALE   = "stale"
)

// ReadingStoreActor keeps the latest reading for the HTTP API. It reports unhealthy
// until the first reading arrives and when no reading was stored within staleAfter.
type ReadingStoreActor struct {
	behavior   actor.Behavior
	latest     *domain.Reading
	received   time.Time
	staleAfter time.Duration
	now        func() time.Time
	logger     *zap.Logger
}

func NewReadingStoreActor(staleAfter time.Duration, logger *zap.Logger) *ReadingStoreActor {
	act := &ReadingStoreActor{
		behavior:   actor.NewBehavior(),
		staleAfter: staleAfter,
		now:        time.Now,
		logger:     actorutil.ActorLogger(domain.ACTOR_ID_READING_STORE, logger),
	}
	act.behavior.Become(act.WaitingReceive)
	return act
}

func (state *ReadingStoreActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *ReadingStoreActor) WaitingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.StoreReadingRequest:
		state.logger.Debug("store@waiting: first reading")
		state.store(msg.Reading)
		state.behavior.Become(state.DefaultReceive)
	case domain.GetLatestReadingRequest:
		actorutil.ForRequest(msg).Respond(ctx, domain.GetLatestReadingResponse{})
	case domain.ActorHealthRequest:
		actorutil.ForRequest(msg).Respond(ctx, state.health(false, STATE_WAITING))
	default:
		state.logger.Debug("store@waiting default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *ReadingStoreActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.StoreReadingRequest:
		state.store(msg.Reading)
	case domain.GetLatestReadingRequest:
		reading := *state.latest
		actorutil.ForRequest(msg).Respond(ctx, domain.GetLatestReadingResponse{Reading: &reading})
	case domain.ActorHealthRequest:
		if state.staleAfter > 0 && state.now().Sub(state.received) > state.staleAfter {
			actorutil.ForRequest(msg).Respond(ctx, state.health(false, STATE_STALE))
		} else {
			actorutil.ForRequest(msg).Respond(ctx, state.health(true, STATE_POLLING))
		}
	default:
		state.logger.Debug("store@default default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *ReadingStoreActor) store(reading domain.Reading) {
	state.latest = &reading
	state.received = state.now()
}

func (state *ReadingStoreActor) health(healthy bool, s string) domain.ActorHealthResponse {
	return domain.ActorHealthResponse{
		Id:      domain.ACTOR_ID_READING_STORE,
		Healthy: healthy,
		State:   s,
		Version: versioninfo.Short(),
	}
}

// StoreSink returns a sink that forwards every reading to the store actor.
func StoreSink(root *actor.RootContext, pid *actor.PID) func(domain.Reading) error {
	return func(reading domain.Reading) error {
		root.Send(pid, domain.StoreReadingRequest{Reading: reading})
		return nil
	}
}
