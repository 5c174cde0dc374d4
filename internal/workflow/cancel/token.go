// Package cancel 提供协作式取消令牌。
//
// 令牌只在轮询点被观察：补全调用前后、退避与节流等待期间、精修循环每一步之前。
// nil 令牌合法，永远不会被取消。
package cancel

import (
	"context"
	"errors"
	"time"
)

// ErrCancelled 调用方主动取消；不是失败，不计入重试预算
var ErrCancelled = errors.New("generation cancelled")

// IsCancelled 判断错误链中是否包含取消
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}

// Token 可观察的取消标记。父令牌取消时子令牌随之取消。
type Token struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// New 创建令牌；parent 可为 nil
func New(parent *Token) *Token {
	base := context.Background()
	if parent != nil {
		base = parent.ctx
	}
	ctx, cancelFn := context.WithCancel(base)
	return &Token{ctx: ctx, cancel: cancelFn}
}

// Cancel 请求取消，可重复调用
func (t *Token) Cancel() {
	if t == nil {
		return
	}
	t.cancel()
}

// Cancelled 是否已请求取消
func (t *Token) Cancelled() bool {
	if t == nil {
		return false
	}
	return t.ctx.Err() != nil
}

// Done 取消时关闭的通道；nil 令牌返回 nil（永不就绪）
func (t *Token) Done() <-chan struct{} {
	if t == nil {
		return nil
	}
	return t.ctx.Done()
}

// Err 已取消时返回 ErrCancelled
func (t *Token) Err() error {
	if t.Cancelled() {
		return ErrCancelled
	}
	return nil
}

// Bind 派生一个在令牌取消时一并取消的 context，用于中止进行中的 HTTP 往返。
// 调用方必须调用返回的 stop。
func (t *Token) Bind(ctx context.Context) (context.Context, context.CancelFunc) {
	bound, cancelFn := context.WithCancel(ctx)
	if t == nil {
		return bound, cancelFn
	}
	unregister := context.AfterFunc(t.ctx, cancelFn)
	return bound, func() {
		unregister()
		cancelFn()
	}
}

// Sleep 可取消的等待。令牌取消返回 ErrCancelled，ctx 结束返回 ctx.Err()。
func Sleep(ctx context.Context, t *Token, d time.Duration) error {
	if err := t.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-t.Done():
		return ErrCancelled
	case <-ctx.Done():
		return ctx.Err()
	}
}
