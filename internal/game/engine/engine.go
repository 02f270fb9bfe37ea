package engine

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"TrickTable/internal/game/dealer"
	"TrickTable/internal/game/model"
	"TrickTable/internal/game/rules"
	"TrickTable/internal/session"
	"TrickTable/internal/utils"
	"TrickTable/internal/websocket"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var ErrStopped = errors.New("engine stopped")

const internalError = "internal error"

// ---------------------
//       ENGINE
// ---------------------

// Engine 一个 session 一个：串行处理该 session 的所有 Action（单写者），
// 读-规则-写-广播都在 actionLoop 里完成
type Engine struct {
	SessionID string
	Store     session.Store
	Dealer    rules.Dealer
	Hub       *websocket.Hub
	Tracer    trace.Tracer

	actionChan chan model.Action
	quit       chan struct{}
	done       chan struct{}
	stopOnce   sync.Once
}

func NewEngine(id string, store session.Store, queueSize int) *Engine {
	return &Engine{
		SessionID:  id,
		Store:      store,
		Dealer:     dealer.NewDealer(time.Now().UnixNano()),
		Hub:        websocket.NewHub(id),
		Tracer:     otel.Tracer("TrickTable/internal/game/engine"),
		actionChan: make(chan model.Action, queueSize),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start 启动 hub 与 action loop
func (e *Engine) Start() {
	go e.Hub.Run()
	go e.actionLoop()
	utils.Log.Debug("engine started", "session", e.SessionID)
}

// Stop 停止处理并关闭该 session 的所有订阅；队列里未处理的 Action 丢弃
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.quit) })
	<-e.done
}

// 动作循环：一次只处理一个 Action
func (e *Engine) actionLoop() {
	defer func() {
		e.Hub.Close()
		close(e.done)
		utils.Log.Debug("engine stopped", "session", e.SessionID)
	}()
	for {
		select {
		case a := <-e.actionChan:
			e.handleAction(a)
		case <-e.quit:
			return
		}
	}
}

// EnqueueAction 玩家动作入口（GameManager 调用），按接收顺序排队
func (e *Engine) EnqueueAction(ctx context.Context, a model.Action) error {
	if a.Session() != e.SessionID {
		return fmt.Errorf("action for session %s sent to %s", a.Session(), e.SessionID)
	}
	select {
	case <-e.quit:
		return ErrStopped
	default:
	}
	select {
	case e.actionChan <- a:
		return nil
	case <-e.quit:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) handleAction(a model.Action) {
	ctx, span := e.Tracer.Start(context.Background(), "session.apply", trace.WithAttributes(
		attribute.String("session.id", e.SessionID),
		attribute.String("player.id", a.Player()),
		attribute.String("action", fmt.Sprintf("%T", a)),
	))
	defer span.End()

	state, err := e.Store.Get(ctx, e.SessionID)
	if err != nil {
		e.fail(span, a, "load session", err)
		return
	}

	next, events := rules.Apply(state, a, e.Dealer)

	if !reflect.DeepEqual(state, next) {
		if err := e.Store.Put(ctx, e.SessionID, next); err != nil {
			// 写失败：状态不前进，只告诉发起者
			e.fail(span, a, "persist session", err)
			return
		}
		span.SetAttributes(attribute.String("state.phase", string(next.Phase())))
	}

	for _, ev := range events {
		if rejected, ok := ev.Body.(model.ErrorEvent); ok {
			span.SetAttributes(attribute.String("rejected", rejected.Reason))
			utils.Log.Debug("action rejected", "session", e.SessionID, "player", a.Player(), "action", fmt.Sprintf("%T", a), "reason", rejected.Reason)
		}
		e.Hub.Publish(ev)
	}
}

func (e *Engine) fail(span trace.Span, a model.Action, op string, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, op)
	utils.Log.Error(op+" failed", "session", e.SessionID, "player", a.Player(), "err", err)
	e.Hub.Publish(model.To(e.SessionID, a.Player(), model.ErrorEvent{Reason: internalError}))
}
