package osctl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	"github.com/smazurov/factoryd/internal/logging"
)

// runShell runs command through /bin/sh and streams its output into logger.
func runShell(ctx context.Context, command string, logger logging.Logger) error {
	command = strings.TrimSpace(command)
	if command == "" {
		return errors.New("empty command")
	}

	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", command)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %q: %w", command, err)
	}
	logger.Debug("Command started", "pid", cmd.Process.Pid, "command", command)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		streamOutput(stdout, "stdout", logger)
	}()
	go func() {
		defer wg.Done()
		streamOutput(stderr, "stderr", logger)
	}()
	// Pipes must be drained before Wait closes them.
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("%q: %w", command, err)
	}
	return nil
}

func streamOutput(r io.Reader, source string, logger logging.Logger) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if source == "stderr" {
			logger.Warn(line, "source", source)
		} else {
			logger.Info(line, "source", source)
		}
	}
	if err := scanner.Err(); err != nil {
		logger.Warn("Error reading output", "source", source, "error", err)
	}
}
