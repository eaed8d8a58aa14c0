package application

import (
	"context"
	"log"
	"time"
)

// A batch may take minutes; the pipeline is cut off well beyond that so
// a wedged engine call cannot hold a goroutine forever.
const detachedRunTimeout = 30 * time.Minute

// runDetached is an indirection over detach so tests can run the
// pipeline synchronously. Production code uses detach (goroutine).
var runDetached = detach

// detach runs fn in a goroutine with a timeout and structured error
// logging, decoupling the pipeline's lifetime from the request that
// triggered it.
func detach(logger *log.Logger, op string, fn func(ctx context.Context)) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), detachedRunTimeout)
		defer cancel()
		if logger != nil {
			logger.Printf("billing: detached op started: op=%s", op)
		}
		fn(ctx)
	}()
}
