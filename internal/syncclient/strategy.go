package syncclient

import (
	"context"
	"fmt"
)

// 持久化策略名称
const (
	StrategyBroadcastFirst = "broadcast-first"
	StrategyPersistFirst   = "persist-first"
)

// EditEffects 是一次本地编辑需要产生的两个独立副作用
type EditEffects interface {
	// Broadcast 把编辑发送给房间内其他成员 (不等待确认)
	Broadcast() error
	// Persist 把同样的内容写入文件树
	Persist(ctx context.Context) error
	// Async 在会话跟踪的 goroutine 中执行 fn
	Async(fn func())
}

// PersistStrategy 决定广播与持久化的先后顺序。两者之间没有事务。
type PersistStrategy interface {
	Name() string
	Apply(ctx context.Context, fx EditEffects) error
}

// BroadcastFirst 先广播，再异步持久化。
// 持久化失败不会撤回已经广播的内容，本地调用也不会看到这个错误。
type BroadcastFirst struct{}

func (BroadcastFirst) Name() string { return StrategyBroadcastFirst }

func (BroadcastFirst) Apply(ctx context.Context, fx EditEffects) error {
	broadcastErr := fx.Broadcast()
	persistCtx := context.WithoutCancel(ctx)
	fx.Async(func() {
		_ = fx.Persist(persistCtx)
	})
	return broadcastErr
}

// PersistFirst 先同步持久化，成功后才广播。
// 持久化失败时不广播，错误返回给调用方。
type PersistFirst struct{}

func (PersistFirst) Name() string { return StrategyPersistFirst }

func (PersistFirst) Apply(ctx context.Context, fx EditEffects) error {
	if err := fx.Persist(ctx); err != nil {
		return err
	}
	return fx.Broadcast()
}

// ParseStrategy 根据名称返回策略，空字符串返回默认的 BroadcastFirst
func ParseStrategy(name string) (PersistStrategy, error) {
	switch name {
	case "", StrategyBroadcastFirst:
		return BroadcastFirst{}, nil
	case StrategyPersistFirst:
		return PersistFirst{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
}
