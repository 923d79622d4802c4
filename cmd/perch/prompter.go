package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/perchbrowser/perch/internal/policy"
)

// errPrompterClosed reports that the prompter's input reached EOF, so
// no further questions can be answered.
var errPrompterClosed = errors.New("prompter input closed")

// stdioPrompter asks questions on the terminal. One goroutine owns the
// input stream and feeds lines into a channel; Ask writes the prompt
// and waits for a line or ctx cancellation, so an abandoned question
// (page navigated away, shutdown) unblocks immediately even though the
// pending read does not.
type stdioPrompter struct {
	out   io.Writer
	lines chan string

	// mu serializes questions so two pages can't interleave prompts.
	mu sync.Mutex
}

var _ policy.Prompter = (*stdioPrompter)(nil)

func newStdioPrompter(in io.Reader, out io.Writer) *stdioPrompter {
	p := &stdioPrompter{
		out:   out,
		lines: make(chan string),
	}
	go func() {
		defer close(p.lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			p.lines <- scanner.Text()
		}
	}()
	return p
}

// Ask presents q and blocks until the user answers, the input closes,
// or ctx is cancelled.
func (p *stdioPrompter) Ask(ctx context.Context, q policy.Question) (policy.Answer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if q.URL != nil {
		fmt.Fprintf(p.out, "\n\033[1m%s\033[0m \033[2m(%s)\033[0m\n", q.Title, q.URL)
	} else {
		fmt.Fprintf(p.out, "\n\033[1m%s\033[0m\n", q.Title)
	}
	if q.Text != "" {
		fmt.Fprintf(p.out, "%s\n", q.Text)
	}

	switch q.Kind {
	case policy.QuestionAlert:
		fmt.Fprint(p.out, "[press enter] ")
		if _, err := p.readLine(ctx); err != nil {
			return policy.Answer{}, err
		}
		return policy.Answer{}, nil

	case policy.QuestionYesNo:
		fmt.Fprint(p.out, "[y/N] ")
		line, err := p.readLine(ctx)
		if err != nil {
			return policy.Answer{}, err
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return policy.Answer{Yes: true}, nil
		default:
			return policy.Answer{}, nil
		}

	case policy.QuestionText:
		if q.Default != "" {
			fmt.Fprintf(p.out, "[%s] ", q.Default)
		} else {
			fmt.Fprint(p.out, "> ")
		}
		line, err := p.readLine(ctx)
		if err != nil {
			return policy.Answer{}, err
		}
		if line == "" {
			line = q.Default
		}
		return policy.Answer{Text: line}, nil

	case policy.QuestionCredentials:
		fmt.Fprint(p.out, "username: ")
		user, err := p.readLine(ctx)
		if err != nil {
			return policy.Answer{}, err
		}
		fmt.Fprint(p.out, "password: ")
		password, err := p.readLine(ctx)
		if err != nil {
			return policy.Answer{}, err
		}
		return policy.Answer{User: user, Password: password}, nil

	default:
		return policy.Answer{}, fmt.Errorf("unhandled question kind %v", q.Kind)
	}
}

func (p *stdioPrompter) readLine(ctx context.Context) (string, error) {
	select {
	case line, ok := <-p.lines:
		if !ok {
			return "", errPrompterClosed
		}
		return line, nil
	case <-ctx.Done():
		fmt.Fprintln(p.out, "(cancelled)")
		return "", ctx.Err()
	}
}
