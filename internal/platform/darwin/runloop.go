//go:build darwin && cgo

package darwin

/*
#include "hidbridge.h"
*/
import "C"

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/mj1618/hidbridge/internal/hid"
)

// kCFRunLoopRunFinished: the loop has no sources or timers yet.
const runFinished = 1

// RunLoop is a CFRunLoop serviced by a goroutine locked to its OS thread.
type RunLoop struct {
	name string
	ref  C.CFTypeRef
	done chan struct{}
}

// StartRunLoop starts a run loop thread that runs until ctx is done.
func StartRunLoop(ctx context.Context, name string) *RunLoop {
	rl := &RunLoop{name: name, done: make(chan struct{})}
	ready := make(chan struct{})
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		defer close(rl.done)

		rl.ref = C.hb_runloop_current()
		close(ready)
		defer C.hb_cf_release(rl.ref)

		for ctx.Err() == nil {
			if C.hb_runloop_run(0.25) == runFinished {
				// Nothing scheduled yet; CFRunLoopRunInMode returns at once.
				time.Sleep(10 * time.Millisecond)
			}
		}
	}()
	<-ready
	go func() {
		select {
		case <-ctx.Done():
			C.hb_runloop_stop(rl.ref)
		case <-rl.done:
		}
	}()
	return rl
}

func (rl *RunLoop) Name() string { return rl.name }

// Done is closed once the loop thread has exited.
func (rl *RunLoop) Done() <-chan struct{} { return rl.done }

func asRunLoop(rl hid.RunLoop) C.CFTypeRef {
	r, ok := rl.(*RunLoop)
	if !ok {
		panic(fmt.Sprintf("iokit: foreign run loop %T", rl))
	}
	return r.ref
}
