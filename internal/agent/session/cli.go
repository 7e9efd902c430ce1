package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	errx "github.com/mozo-virtual-core/server/internal/core/error"
	"github.com/mozo-virtual-core/server/internal/presentation/console"
	logx "github.com/mozo-virtual-core/server/pkg/logger"
)

const (
	promptGuest  = "Cliente: "
	closedInput  = "Conversación terminada."
	replyTooLong = "Tu mensaje es demasiado largo. ¿Puedes resumirlo en pocas líneas?"

	// MaxLineBytes bounds one guest line. Longer lines are discarded whole and
	// the conversation goes on.
	MaxLineBytes = 64 * 1024
)

type cliOptions struct {
	render     console.Renderer
	restaurant string
	banner     bool
	colored    bool
}

type CLIOption func(*cliOptions)

// WithRenderer sets how replies are rendered. The default prints them as is.
func WithRenderer(r console.Renderer) CLIOption {
	return func(o *cliOptions) {
		if r != nil {
			o.render = r
		}
	}
}

// WithBanner prints the welcome banner before the first prompt and the
// closing banner after a paid checkout.
func WithBanner(restaurant string, colored bool) CLIOption {
	return func(o *cliOptions) {
		o.restaurant = restaurant
		o.banner = true
		o.colored = colored
	}
}

// RunCLI drives s from line-oriented input until the session terminates,
// the input ends or ctx is cancelled.
func RunCLI(ctx context.Context, s *Session, in io.Reader, out io.Writer, opts ...CLIOption) error {
	o := cliOptions{render: console.Plain}
	for _, opt := range opts {
		opt(&o)
	}
	assistant := s.opts.AssistantName

	if o.banner {
		fmt.Fprintln(out, console.Banner(o.restaurant, assistant, o.colored))
	}

	reader := bufio.NewReader(in)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		fmt.Fprint(out, promptGuest)
		raw, tooLong, err := readLine(reader, MaxLineBytes)
		if err != nil {
			fmt.Fprintln(out)
			fmt.Fprintln(out, closedInput)
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if tooLong {
			logx.Warn().Str("session_id", s.ID()).Int("limit", MaxLineBytes).Msg("Guest line too long - discarded")
			fmt.Fprintf(out, "\n%s: %s\n\n", assistant, replyTooLong)
			continue
		}
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		res, err := s.Handle(ctx, line)
		if err != nil {
			if errors.Is(err, ErrSessionTerminated) {
				return nil
			}
			logx.Warn().Err(err).Str("session_id", s.ID()).Msg("Turn rejected")
			fmt.Fprintf(out, "\n%s: %s\n\n", assistant, errx.UserMessage(err))
			continue
		}

		fmt.Fprintf(out, "\n%s: %s\n\n", assistant, render(o.render, res.Reply))

		if res.Status == Terminated {
			if !res.Exit && o.banner {
				fmt.Fprint(out, console.Goodbye(o.restaurant))
			}
			return nil
		}
	}
}

// readLine reads one newline-terminated line of at most limit bytes. A longer
// line is consumed to its end and reported as tooLong. A final line without
// a newline is returned before io.EOF.
func readLine(r *bufio.Reader, limit int) (line string, tooLong bool, err error) {
	var buf []byte
	for {
		chunk, err := r.ReadSlice('\n')
		if !tooLong && len(buf)+len(chunk) <= limit {
			buf = append(buf, chunk...)
		} else {
			tooLong = true
			buf = nil
		}
		switch {
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF) && (len(buf) > 0 || tooLong):
			return string(buf), tooLong, nil
		case err != nil:
			return "", false, err
		}
		return string(buf), tooLong, nil
	}
}

func render(r console.Renderer, reply string) string {
	out, err := r(reply)
	if err != nil || strings.TrimSpace(out) == "" {
		return reply
	}
	return out
}
