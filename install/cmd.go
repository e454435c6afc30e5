// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package install

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// A Runner executes one external command of a fetch or build.
type Runner interface {
	Run(ctx context.Context, dir string, env []string, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands as subprocesses. A command that writes nothing for
// longer than Timeout is killed; zero means DefaultTimeout.
type ExecRunner struct {
	Timeout time.Duration
}

// DefaultTimeout is the inactivity limit of ExecRunner.
const DefaultTimeout = 10 * time.Minute

// Run starts the command in dir with env appended to the environment, and
// returns its combined output.
func (r ExecRunner) Run(ctx context.Context, dir string, env []string, name string, args ...string) ([]byte, error) {
	timeout := r.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	c := exec.Command(name, args...)
	c.Dir = dir
	if len(env) > 0 {
		c.Env = append(os.Environ(), env...)
	}
	return newMonitoredCmd(c, timeout).combinedOutput(ctx)
}

// monitoredCmd wraps a cmd and will keep monitoring the process until it
// finishes, the context is cancelled, or a certain amount of time has passed
// and the command showed no signs of activity.
type monitoredCmd struct {
	cmd     *exec.Cmd
	timeout time.Duration
	buf     *activityBuffer
}

func newMonitoredCmd(cmd *exec.Cmd, timeout time.Duration) *monitoredCmd {
	buf := newActivityBuffer()
	cmd.Stderr = buf
	cmd.Stdout = buf
	return &monitoredCmd{cmd, timeout, buf}
}

// run will wait for the command to finish and return the error, if any. If the
// command does not show any activity for more than the specified timeout the
// process will be killed.
func (c *monitoredCmd) run(ctx context.Context) error {
	// Check for cancellation before even starting
	if ctx.Err() != nil {
		return ctx.Err()
	}

	ticker := time.NewTicker(c.timeout)
	defer ticker.Stop()

	if err := c.cmd.Start(); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() { done <- c.cmd.Wait() }()

	for {
		select {
		case <-ticker.C:
			if c.hasTimedOut() {
				if err := c.stop(done); err != nil {
					return errors.Errorf("error killing process after command timed out: %s", err)
				}
				return errors.Errorf("command timed out after %s of no activity", c.timeout)
			}
		case <-ctx.Done():
			if err := c.stop(done); err != nil {
				return errors.Wrap(err, "error killing cancelled process")
			}
			return ctx.Err()
		case err := <-done:
			return err
		}
	}
}

// stop interrupts the process, and kills it if it has not exited after 3s.
func (c *monitoredCmd) stop(done <-chan error) error {
	if err := interruptProcess(c.cmd); err != nil {
		// If an error comes back from attempting to signal, proceed immediately
		// to hard kill.
		if err := c.cmd.Process.Kill(); err != nil {
			return err
		}
		<-done
		return nil
	}

	to := time.NewTimer(3 * time.Second)
	defer to.Stop()
	select {
	case <-done:
		return nil
	case <-to.C:
	}
	err := c.cmd.Process.Kill()
	<-done
	return err
}

func (c *monitoredCmd) hasTimedOut() bool {
	return c.buf.since() > c.timeout
}

func (c *monitoredCmd) combinedOutput(ctx context.Context) ([]byte, error) {
	err := c.run(ctx)
	return c.buf.Bytes(), err
}

// activityBuffer is a buffer that keeps track of the last time a Write
// operation was performed on it.
type activityBuffer struct {
	sync.Mutex
	buf          *bytes.Buffer
	lastActivity time.Time
}

func newActivityBuffer() *activityBuffer {
	return &activityBuffer{
		buf:          bytes.NewBuffer(nil),
		lastActivity: time.Now(),
	}
}

func (b *activityBuffer) Write(p []byte) (int, error) {
	b.Lock()
	defer b.Unlock()
	b.lastActivity = time.Now()
	return b.buf.Write(p)
}

func (b *activityBuffer) since() time.Duration {
	b.Lock()
	defer b.Unlock()
	return time.Since(b.lastActivity)
}

func (b *activityBuffer) Bytes() []byte {
	b.Lock()
	defer b.Unlock()
	return append([]byte(nil), b.buf.Bytes()...)
}
