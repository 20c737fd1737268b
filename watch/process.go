package watch

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// Process is a running child.
type Process interface {
	// Stop asks the process to exit and kills it if it is still running after grace. It returns once the process has
	// exited.
	Stop(grace time.Duration) error
	// Done is closed when the process exits.
	Done() <-chan struct{}
}

// Starter starts the child that runs the freshly built server.
type Starter interface {
	Start(ctx context.Context) (Process, error)
}

// CommandStarter starts a command, usually node running the server bundle.
type CommandStarter struct {
	Name   string
	Args   []string
	Dir    string
	Env    []string
	Stdout io.Writer
	Stderr io.Writer
}

// NodeStarter runs the built server with node, with source maps enabled.
func NodeStarter(node, dir, main string, stdout, stderr io.Writer) CommandStarter {
	return CommandStarter{
		Name:   node,
		Args:   []string{"--enable-source-maps", main},
		Dir:    dir,
		Stdout: stdout,
		Stderr: stderr,
	}
}

func (s CommandStarter) Start(ctx context.Context) (Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// Not tied to ctx: the orchestrator stops the child itself so it gets a chance to shut down cleanly.
	cmd := exec.Command(s.Name, s.Args...)
	cmd.Dir = s.Dir
	cmd.Env = s.Env
	cmd.Stdout = s.Stdout
	cmd.Stderr = s.Stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", s.Name, err)
	}
	p := &execProcess{cmd: cmd, done: make(chan struct{})}
	go func() {
		p.err = cmd.Wait()
		close(p.done)
	}()
	return p, nil
}

type execProcess struct {
	cmd  *exec.Cmd
	done chan struct{}
	err  error
	once sync.Once
}

func (p *execProcess) Done() <-chan struct{} {
	return p.done
}

func (p *execProcess) Stop(grace time.Duration) error {
	var err error
	p.once.Do(func() {
		select {
		case <-p.done:
			return
		default:
		}
		// SIGTERM is not supported on Windows; Signal fails there and the process is killed right away.
		if sigErr := p.cmd.Process.Signal(syscall.SIGTERM); sigErr != nil {
			err = p.kill()
			return
		}
		timer := time.NewTimer(grace)
		defer timer.Stop()
		select {
		case <-p.done:
		case <-timer.C:
			err = p.kill()
		}
	})
	return err
}

func (p *execProcess) kill() error {
	if err := p.cmd.Process.Kill(); err != nil {
		select {
		case <-p.done:
			return nil
		default:
			return fmt.Errorf("kill %d: %w", p.cmd.Process.Pid, err)
		}
	}
	<-p.done
	return nil
}
