package trigger

import (
	"bytes"
	"context"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bassamadnan/mailcmd/mailbox"
)

// Execution describes one run of the configured command for a message.
type Execution struct {
	ID         string
	MessageID  string
	Command    string
	StartedAt  time.Time
	FinishedAt time.Time
	ExitCode   int
	Stdout     string
	Stderr     string

	// Err is set when the command could not start or exited non-zero.
	Err error

	MarkedRead bool
	MarkErr    error
}

// Succeeded reports whether the command itself completed without error.
func (e Execution) Succeeded() bool { return e.Err == nil }

// Recorder keeps a history of executions.
type Recorder interface {
	Record(ctx context.Context, e Execution) error
}

// Notifier tells the user that an execution happened.
type Notifier interface {
	Notify(e Execution) error
}

// Executor runs the configured command for a matched message and, only if the
// command succeeds, marks the message read.
type Executor struct {
	command  string
	mailbox  mailbox.Mailbox
	recorder Recorder
	notifier Notifier
	logger   *zap.SugaredLogger
}

// NewExecutor creates an Executor. recorder and notifier may be nil.
func NewExecutor(command string, mb mailbox.Mailbox, recorder Recorder, notifier Notifier, logger *zap.SugaredLogger) *Executor {
	return &Executor{
		command:  command,
		mailbox:  mb,
		recorder: recorder,
		notifier: notifier,
		logger:   logger,
	}
}

// Execute runs the command through the shell, inheriting the environment.
// A failing command leaves the message unread so the next poll finds it
// again. A failing mark-read is logged and not retried.
func (e *Executor) Execute(ctx context.Context, messageID string) Execution {
	run := Execution{
		ID:        uuid.NewString(),
		MessageID: messageID,
		Command:   e.command,
		StartedAt: time.Now(),
	}

	e.logger.Infof("Executor: executing command: %s", e.command)
	cmd := shellCommand(e.command)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	run.FinishedAt = time.Now()
	run.Stdout = stdout.String()
	run.Stderr = stderr.String()
	run.ExitCode = -1
	if cmd.ProcessState != nil {
		run.ExitCode = cmd.ProcessState.ExitCode()
	}

	if err != nil {
		run.Err = err
		e.logger.Errorf("Executor: command execution error: %v", err)
		if msg := strings.TrimSpace(run.Stderr); msg != "" {
			e.logger.Errorf("Executor: command stderr: %s", msg)
		}
		e.logger.Warnf("Executor: leaving message %s unread so it is retried on the next check", messageID)
		e.finish(ctx, run)
		return run
	}

	if msg := strings.TrimSpace(run.Stderr); msg != "" {
		e.logger.Warnf("Executor: command stderr: %s", msg)
	}
	e.logger.Infof("Executor: command stdout: %s", strings.TrimSpace(run.Stdout))

	// The command has run; finish marking the message even during shutdown.
	markCtx := context.WithoutCancel(ctx)
	e.logger.Infof("Executor: marking message %s as read", messageID)
	if err := e.mailbox.MarkRead(markCtx, messageID); err != nil {
		run.MarkErr = err
		e.logger.Errorf("Executor: error marking message %s as read: %v", messageID, err)
	} else {
		run.MarkedRead = true
		e.logger.Infof("Executor: message %s marked as read successfully", messageID)
	}

	e.finish(ctx, run)
	return run
}

func (e *Executor) finish(ctx context.Context, run Execution) {
	if e.recorder != nil {
		if err := e.recorder.Record(context.WithoutCancel(ctx), run); err != nil {
			e.logger.Errorf("Executor: unable to record execution %s: %v", run.ID, err)
		}
	}
	if e.notifier != nil {
		if err := e.notifier.Notify(run); err != nil {
			e.logger.Warnf("Executor: unable to send notification: %v", err)
		}
	}
}

func shellCommand(command string) *exec.Cmd {
	if runtime.GOOS == "windows" {
		return exec.Command("cmd", "/C", command)
	}
	return exec.Command("sh", "-c", command)
}
