package repl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"

	"github.com/gareflow/gareflow/internal/gara"
	"github.com/gareflow/gareflow/internal/tender"
)

// QAService is the part of the tender service the REPL drives.
type QAService interface {
	GenerateQuestions(ctx context.Context, tenantID, tenderID string) (tender.QuestionsResult, error)
	Answer(ctx context.Context, tenantID, tenderID string, q gara.GuidedQuestion, answer string) (tender.Result, error)
	Autofill(ctx context.Context, tenantID, tenderID string, index int) (tender.AutofillResult, error)
}

// LineReader reads one line of input. *readline.Instance satisfies it.
type LineReader interface {
	Readline() (string, error)
	Close() error
}

// Config holds REPL configuration
type Config struct {
	Service  QAService
	TenantID string
	TenderID string

	// In defaults to a readline instance on the terminal
	In LineReader
	// Out defaults to stdout
	Out io.Writer
}

// Summary counts what happened to each question.
type Summary struct {
	Total    int
	Answered int
	Drafted  int
	Skipped  int
	Quit     bool
}

// REPL walks guided questions one at a time.
type REPL struct {
	svc    QAService
	tenant string
	tender string
	in     LineReader
	out    io.Writer

	cyan   func(a ...interface{}) string
	green  func(a ...interface{}) string
	yellow func(a ...interface{}) string
	red    func(a ...interface{}) string
}

// errQuit ends the session early.
var errQuit = errors.New("quit")

// New creates a new REPL instance
func New(cfg *Config) (*REPL, error) {
	if cfg.Service == nil {
		return nil, fmt.Errorf("tender service is required")
	}
	if strings.TrimSpace(cfg.TenderID) == "" {
		return nil, fmt.Errorf("tender id is required")
	}

	out := cfg.Out
	if out == nil {
		out = os.Stdout
	}
	in := cfg.In
	if in == nil {
		rl, err := readline.NewEx(&readline.Config{
			Prompt:            color.New(color.FgCyan).Sprint("answer> "),
			InterruptPrompt:   "^C",
			EOFPrompt:         "quit",
			HistorySearchFold: true,
			Stdout:            out,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create readline: %w", err)
		}
		in = rl
	}

	return &REPL{
		svc:    cfg.Service,
		tenant: cfg.TenantID,
		tender: cfg.TenderID,
		in:     in,
		out:    out,
		cyan:   color.New(color.FgCyan, color.Bold).SprintFunc(),
		green:  color.New(color.FgGreen).SprintFunc(),
		yellow: color.New(color.FgYellow).SprintFunc(),
		red:    color.New(color.FgRed).SprintFunc(),
	}, nil
}

// Run generates questions for the tender and asks them in turn. Each
// answer is saved before the next question is shown.
func (r *REPL) Run(ctx context.Context) (Summary, error) {
	defer r.in.Close()

	res, err := r.svc.GenerateQuestions(ctx, r.tenant, r.tender)
	if err != nil {
		return Summary{}, err
	}
	if res.Degraded {
		fmt.Fprintf(r.out, "%s %s\n", r.yellow("Note:"), res.Note)
	}
	fmt.Fprintln(r.out, res.Reply)

	summary := Summary{Total: len(res.Questions)}
	if len(res.Questions) == 0 {
		return summary, nil
	}
	r.printHelp()

	for i, q := range res.Questions {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		r.printQuestion(i+1, len(res.Questions), q)

		err := r.ask(ctx, q, &summary)
		if errors.Is(err, errQuit) {
			summary.Quit = true
			break
		}
		if err != nil {
			return summary, err
		}
	}

	fmt.Fprintf(r.out, "\n%s %d answered, %d drafted, %d skipped\n",
		r.green("✓"), summary.Answered, summary.Drafted, summary.Skipped)
	return summary, nil
}

// ask reads input until the question is answered, drafted or skipped.
func (r *REPL) ask(ctx context.Context, q gara.GuidedQuestion, summary *Summary) error {
	for {
		line, err := r.in.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			if err == io.EOF {
				return errQuit
			}
			return err
		}

		line = strings.TrimSpace(line)
		switch strings.ToLower(line) {
		case "":
			continue
		case "help", "?":
			r.printHelp()
			continue
		case "quit", "exit", "q":
			return errQuit
		case "skip", "s":
			summary.Skipped++
			return nil
		case "auto", "a":
			res, err := r.svc.Autofill(ctx, r.tenant, r.tender, q.ItemIndex)
			if err != nil {
				fmt.Fprintf(r.out, "%s %v\n", r.red("Error:"), err)
				continue
			}
			fmt.Fprintf(r.out, "%s %s\n", r.green("Draft:"), res.Answer.Answer)
			if len(res.Answer.Gaps) > 0 {
				fmt.Fprintf(r.out, "%s %s\n", r.yellow("Missing:"), strings.Join(res.Answer.Gaps, "; "))
			}
			fmt.Fprintln(r.out, res.Reply)
			summary.Drafted++
			return nil
		}

		res, err := r.svc.Answer(ctx, r.tenant, r.tender, q, line)
		if err != nil {
			fmt.Fprintf(r.out, "%s %v\n", r.red("Error:"), err)
			continue
		}
		fmt.Fprintln(r.out, res.Reply)
		summary.Answered++
		return nil
	}
}

func (r *REPL) printQuestion(n, total int, q gara.GuidedQuestion) {
	fmt.Fprintf(r.out, "\n%s %s\n", r.cyan(fmt.Sprintf("[%d/%d]", n, total)), q.Requirement)
	fmt.Fprintf(r.out, "  %s\n", q.Question)
	if q.Suggestion != "" {
		fmt.Fprintf(r.out, "  %s %s\n", r.yellow("Hint:"), q.Suggestion)
	}
	if q.Owner != "" {
		fmt.Fprintf(r.out, "  Owner: %s\n", q.Owner)
	}
}

func (r *REPL) printHelp() {
	fmt.Fprintln(r.out, "Type an answer, or one of:")
	fmt.Fprintf(r.out, "  %s  draft an answer from the company profile\n", r.green("auto"))
	fmt.Fprintf(r.out, "  %s  leave this question for later\n", r.green("skip"))
	fmt.Fprintf(r.out, "  %s  stop here\n", r.green("quit"))
}
