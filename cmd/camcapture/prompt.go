package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"camcapture/internal/core/domain"
	"camcapture/internal/core/ports"
)

// terminalPrompt asks on the terminal whether a finished recording should be
// converted to mp4. Anything but an explicit yes keeps the webm.
type terminalPrompt struct {
	in  *bufio.Reader
	out io.Writer
}

func newTerminalPrompt(in io.Reader, out io.Writer) *terminalPrompt {
	return &terminalPrompt{in: bufio.NewReader(in), out: out}
}

func (p *terminalPrompt) Decide(ctx context.Context, recording *domain.Artifact) ports.TranscodeDecision {
	fmt.Fprintf(p.out, "Convert %s recording (%d bytes) to MP4? [y/N]: ", recording.Extension(), recording.Size)

	answer := make(chan string, 1)
	go func() {
		line, _ := p.in.ReadString('\n')
		answer <- line
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(p.out)
		return ports.KeepOriginal
	case line := <-answer:
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return ports.ConvertToMP4
		}
		return ports.KeepOriginal
	}
}
