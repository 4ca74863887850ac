package engine

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// killDrainDelay bounds how long output is still read after Kill. Only a
// descendant that left the process group can keep a pipe open that long.
const killDrainDelay = 2 * time.Second

// Result is what a finished command left behind.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Process is one shell command running in its own process group.
type Process struct {
	cmd     *exec.Cmd
	stdout  bytes.Buffer
	stderr  bytes.Buffer
	readers []*os.File
	drained sync.WaitGroup
	done    chan struct{}
	result  Result
}

// Start launches command through shell -c and captures its output until
// every process holding stdout or stderr has closed it. When input is
// non-nil it is written to the command's stdin; otherwise stdin is empty.
func Start(shell, command string, input *string) (*Process, error) {
	return start(shell, command, input, true)
}

// startDiscarding launches command with stdout and stderr on the null
// device, so daemons it leaves behind hold no pipe of ours.
func startDiscarding(shell, command string) (*Process, error) {
	return start(shell, command, nil, false)
}

func start(shell, command string, input *string, capture bool) (*Process, error) {
	p := &Process{done: make(chan struct{})}

	cmd := exec.Command(shell, "-c", command)
	if input != nil {
		cmd.Stdin = strings.NewReader(*input)
	}
	setProcessGroup(cmd)

	var writers []*os.File
	if capture {
		// stdout, then stderr
		for range 2 {
			r, w, err := os.Pipe()
			if err != nil {
				closeAll(p.readers)
				closeAll(writers)
				return nil, err
			}
			p.readers = append(p.readers, r)
			writers = append(writers, w)
		}
		cmd.Stdout = writers[0]
		cmd.Stderr = writers[1]
	}

	err := cmd.Start()
	// The child has its own copies; ours would keep the pipes from ever
	// reaching EOF.
	closeAll(writers)
	if err != nil {
		closeAll(p.readers)
		return nil, err
	}
	p.cmd = cmd

	if capture {
		p.drain(&p.stdout, p.readers[0])
		p.drain(&p.stderr, p.readers[1])
	}
	go p.wait()
	return p, nil
}

func (p *Process) drain(buf *bytes.Buffer, r *os.File) {
	p.drained.Add(1)
	go func() {
		defer p.drained.Done()
		_, _ = io.Copy(buf, r)
	}()
}

func (p *Process) wait() {
	// Exit status comes from ProcessState; a non-nil error here is an
	// ExitError and changes nothing we report.
	_ = p.cmd.Wait()
	p.drained.Wait()
	closeAll(p.readers)

	code := -1
	if p.cmd.ProcessState != nil {
		code = p.cmd.ProcessState.ExitCode()
	}
	p.result = Result{
		Stdout:   p.stdout.String(),
		Stderr:   p.stderr.String(),
		ExitCode: code,
	}
	close(p.done)
}

// Wait blocks until the process has exited and its output is fully read,
// the timeout elapses or ctx is done. A timeout <= 0 waits without a
// deadline. ok is false if Wait gave up; the caller must Kill and Await.
func (p *Process) Wait(ctx context.Context, timeout time.Duration) (res Result, ok bool) {
	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	select {
	case <-p.done:
		return p.result, true
	case <-deadline:
		return Result{}, false
	case <-ctx.Done():
		return Result{}, false
	}
}

// Kill sends SIGKILL to the whole process group. Output still buffered in
// the pipes is read for at most killDrainDelay afterwards.
func (p *Process) Kill() error {
	err := killProcessGroup(p.cmd)
	time.AfterFunc(killDrainDelay, func() { closeAll(p.readers) })
	return err
}

// Await blocks until the process has been reaped and returns its result.
func (p *Process) Await() Result {
	<-p.done
	return p.result
}

func closeAll(files []*os.File) {
	for _, f := range files {
		_ = f.Close()
	}
}
