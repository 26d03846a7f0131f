package redis

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"

	"github.com/redis/go-redis/v9"
)

// recordingHook answers every command in process, so clients built on it
// never open a connection. reply may set a value or return an error for
// a command; commands it ignores succeed with their zero value.
type recordingHook struct {
	mu    sync.Mutex
	cmds  [][]any
	reply func(cmd redis.Cmder) error
}

func (h *recordingHook) DialHook(redis.DialHook) redis.DialHook {
	return func(context.Context, string, string) (net.Conn, error) {
		return nil, errors.New("dial disabled in tests")
	}
}

func (h *recordingHook) ProcessHook(redis.ProcessHook) redis.ProcessHook {
	return func(_ context.Context, cmd redis.Cmder) error {
		return h.handle(cmd)
	}
}

func (h *recordingHook) ProcessPipelineHook(redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(_ context.Context, cmds []redis.Cmder) error {
		var first error
		for _, cmd := range cmds {
			if err := h.handle(cmd); err != nil && first == nil {
				first = err
			}
		}
		return first
	}
}

func (h *recordingHook) handle(cmd redis.Cmder) error {
	h.mu.Lock()
	h.cmds = append(h.cmds, cmd.Args())
	h.mu.Unlock()
	if h.reply == nil {
		return nil
	}
	err := h.reply(cmd)
	if err != nil {
		cmd.SetErr(err)
	}
	return err
}

func (h *recordingHook) commands() [][]any {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cmds
}

func newHookedClient(t *testing.T, hook *recordingHook) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	client.AddHook(hook)
	t.Cleanup(func() { _ = client.Close() })
	return client
}
