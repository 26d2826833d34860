// Package schedule запускает периодические колбэки как независимо
// отменяемые задачи.
//
// Stop не ждёт колбэк, который уже сработал: он может выполниться после
// возврата Stop. Колбэк сам проверяет, что его владелец ещё актуален.
package schedule

import (
	"sync"
	"time"
)

type Task struct {
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// Every вызывает fn каждые interval, пока задачу не остановят.
func Every(interval time.Duration, fn func()) *Task {
	t := &Task{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer close(t.done)
		defer ticker.Stop()
		for {
			// Остановка приоритетнее уже накопившегося тика
			select {
			case <-t.stop:
				return
			default:
			}
			select {
			case <-t.stop:
				return
			case <-ticker.C:
				fn()
			}
		}
	}()
	return t
}

// After вызывает fn один раз через delay, если задачу не остановили раньше.
func After(delay time.Duration, fn func()) *Task {
	t := &Task{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}

	timer := time.NewTimer(delay)
	go func() {
		defer close(t.done)
		select {
		case <-t.stop:
			timer.Stop()
		case <-timer.C:
			fn()
		}
	}()
	return t
}

// Stop безопасен для nil и для повторных вызовов, в том числе из самого fn.
func (t *Task) Stop() {
	if t == nil {
		return
	}
	t.once.Do(func() {
		close(t.stop)
	})
}

// Done закрывается, когда горутина задачи завершилась.
func (t *Task) Done() <-chan struct{} {
	return t.done
}
