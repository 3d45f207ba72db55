package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/airenas/supaquery/internal/pkg/api"
	"github.com/airenas/supaquery/internal/pkg/batch"
	"github.com/airenas/supaquery/internal/pkg/intent"
	"github.com/labstack/gommon/color"
)

// Router executes a query
type Router interface {
	Classify(ctx context.Context, q string) *intent.Intent
	HandleIntent(ctx context.Context, q string, in *intent.Intent, pf func(batch.Progress)) *api.Response
}

// REPL reads queries line by line and prints routed results
type REPL struct {
	router  Router
	in      io.Reader
	out     *color.Color
	outLock sync.Mutex
	slot    *Slot
	history *History
	wg      sync.WaitGroup

	// waits for each query before reading the next line
	sequential bool
}

// New creates REPL
func New(router Router, in io.Reader, out io.Writer) (*REPL, error) {
	if router == nil {
		return nil, fmt.Errorf("no router")
	}
	if in == nil || out == nil {
		return nil, fmt.Errorf("no input/output")
	}
	cl := color.New()
	cl.SetOutput(out)
	return &REPL{router: router, in: in, out: cl, slot: &Slot{}, history: NewHistory(5)}, nil
}

// NoColor disables colored output
func (r *REPL) NoColor() *REPL {
	r.out.Disable()
	return r
}

// Sequential makes REPL finish a query before taking the next line, used for piped input
func (r *REPL) Sequential() *REPL {
	r.sequential = true
	return r
}

// Run loops until exit command, end of input or ctx is done
func (r *REPL) Run(ctx context.Context) error {
	r.println("")
	r.println(r.out.Green("Welcome to supaquery"))
	r.println("Ask me anything...")

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r.in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- sc.Err()
	}()

	defer r.wg.Wait()
	for {
		r.prompt()
		select {
		case <-ctx.Done():
			r.slot.Cancel()
			return nil
		case line, ok := <-lines:
			if !ok {
				if err := r.slot.Wait(ctx); err != nil {
					r.slot.Cancel()
				}
				select {
				case err := <-readErr:
					if err != nil {
						return fmt.Errorf("can't read input: %w", err)
					}
				default:
				}
				return nil
			}
			if !r.handleLine(ctx, line) {
				r.slot.Cancel()
				return nil
			}
		}
	}
}

// handleLine returns false on exit
func (r *REPL) handleLine(ctx context.Context, line string) bool {
	q := strings.TrimSpace(line)
	switch strings.ToLower(q) {
	case "":
		return true
	case "exit", "quit":
		r.println("")
		r.println("Thank you for using supaquery. Goodbye!")
		return false
	case "history":
		r.printHistory()
		return true
	case "cancel":
		if r.slot.Cancel() {
			r.println(r.out.Yellow("Canceling current request..."))
		} else {
			r.println("Nothing to cancel.")
		}
		return true
	}

	tCtx, task, err := r.slot.Start(ctx, q)
	if errors.Is(err, ErrBusy) {
		r.println(r.out.Yellow("Still processing the previous request. Wait or type 'cancel'."))
		return true
	}
	r.history.Add(q)
	r.println("")
	r.println("Processing your request...")
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer task.Finish()
		r.process(tCtx, q)
	}()
	if r.sequential {
		<-task.done
	}
	return true
}

func (r *REPL) process(ctx context.Context, q string) {
	defer func() {
		if rec := recover(); rec != nil {
			goapp.Log.Error().Interface("panic", rec).Msg("query failed")
			r.println(r.out.Red(fmt.Sprintf("I encountered an unexpected error: %v", rec)))
		}
	}()
	in := r.router.Classify(ctx, q)
	goapp.Log.Debug().Str("intent", string(in.Kind)).Msg("classified")
	res := r.router.HandleIntent(ctx, q, in, r.progress)
	r.print(format(res, r.out))
}

func (r *REPL) progress(p batch.Progress) {
	r.println(fmt.Sprintf("  %d/%d done, ETA %s", p.Done, p.Total, p.ETA.Round(time.Second)))
}

func (r *REPL) printHistory() {
	items := r.history.Items()
	if len(items) == 0 {
		r.println("No queries yet.")
		return
	}
	for i, q := range items {
		r.println(fmt.Sprintf("%d. %s", i+1, q))
	}
}

func (r *REPL) prompt() {
	r.outLock.Lock()
	defer r.outLock.Unlock()
	r.out.Print("> ")
}

func (r *REPL) println(s string) {
	r.print(s + "\n")
}

func (r *REPL) print(s string) {
	r.outLock.Lock()
	defer r.outLock.Unlock()
	r.out.Print(s)
}
