package speech

import (
	"bufio"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// CommandNarrator narrates by running a TTS command (espeak, say, piper)
// with the text as its final argument.
type CommandNarrator struct {
	command string
	args    []string
	logger  *zap.Logger

	mu  sync.Mutex
	cmd *exec.Cmd
}

func NewCommandNarrator(command string, args []string, logger *zap.Logger) *CommandNarrator {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &CommandNarrator{
		command: command,
		args:    append([]string(nil), args...),
		logger:  logger,
	}
}

func (n *CommandNarrator) Speak(text string, ev NarrationEvents) error {
	n.Stop()

	n.mu.Lock()
	cmd := exec.Command(n.command, append(append([]string(nil), n.args...), text)...)
	if err := cmd.Start(); err != nil {
		n.mu.Unlock()
		return fmt.Errorf("start narration: %w", err)
	}
	n.cmd = cmd
	n.mu.Unlock()

	if ev.OnStart != nil {
		ev.OnStart()
	}

	go func() {
		err := cmd.Wait()

		n.mu.Lock()
		if n.cmd == cmd {
			n.cmd = nil
		}
		n.mu.Unlock()

		if err != nil {
			n.logger.Debug("narration command exited with error", zap.Error(err))
			if ev.OnError != nil {
				ev.OnError(err)
			}
			return
		}

		if ev.OnEnd != nil {
			ev.OnEnd()
		}
	}()

	return nil
}

func (n *CommandNarrator) Stop() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.cmd != nil && n.cmd.Process != nil {
		_ = n.cmd.Process.Kill()
		n.cmd = nil
	}
}

// CommandTranscriber captures speech by running a recognizer command that
// streams interim transcript lines on stdout. Each line replaces the
// running transcript, matching continuous recognition with interim results.
type CommandTranscriber struct {
	command string
	args    []string
	logger  *zap.Logger

	mu         sync.Mutex
	cmd        *exec.Cmd
	transcript string
	listening  bool
}

func NewCommandTranscriber(command string, args []string, logger *zap.Logger) *CommandTranscriber {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &CommandTranscriber{
		command: command,
		args:    append([]string(nil), args...),
		logger:  logger,
	}
}

func (t *CommandTranscriber) Start(opts CaptureOptions) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.listening {
		return nil
	}

	args := append([]string(nil), t.args...)
	if opts.Language != "" {
		args = append(args, "--language", opts.Language)
	}
	if opts.Continuous {
		args = append(args, "--continuous")
	}
	if opts.InterimResults {
		args = append(args, "--interim")
	}

	cmd := exec.Command(t.command, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("open recognizer output: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start capture: %w", err)
	}

	t.cmd = cmd
	t.listening = true

	go func() {
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}

			t.mu.Lock()
			t.transcript = line
			t.mu.Unlock()
		}

		err := cmd.Wait()

		t.mu.Lock()
		if t.cmd == cmd {
			t.cmd = nil
			t.listening = false
		}
		t.mu.Unlock()

		if err != nil {
			t.logger.Debug("recognizer command exited with error", zap.Error(err))
		}
	}()

	return nil
}

func (t *CommandTranscriber) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cmd != nil && t.cmd.Process != nil {
		_ = t.cmd.Process.Kill()
		t.cmd = nil
	}
	t.listening = false

	return nil
}

func (t *CommandTranscriber) Listening() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.listening
}

func (t *CommandTranscriber) Transcript() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.transcript
}

func (t *CommandTranscriber) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.transcript = ""
}
