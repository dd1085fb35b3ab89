// Package dispatch routes named session functions onto the engine and wraps
// every outcome in a tagged Result.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"runtime/debug"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/MJE43/mapgame-session-go/internal/engine"
)

// Function names accepted by Invoke.
const (
	FuncPreviousMapActions = "getPreviousMapActions"
	FuncPromptCount        = "getPromptCount"
	FuncPrompt             = "getPrompt"
	FuncActions            = "getActions"
	FuncGameOverContent    = "getGameOverContent"
)

// Result is the outcome of one Invoke call. Exactly one of Payload and Error
// is meaningful, selected by Success.
type Result struct {
	Success bool     `json:"success"`
	Payload any      `json:"payload,omitempty"`
	Error   *Failure `json:"error,omitempty"`
}

type handler func(ctx context.Context, d *Dispatcher, token string, info engine.SessionInfo, args []any) (any, error)

type route struct {
	schema *jsonschema.Schema
	handle handler
}

// Dispatcher is a typed, validated router over the session engine.
type Dispatcher struct {
	engine  *engine.Engine
	routes  map[string]route
	printer *message.Printer
	logger  *log.Logger
}

type Option func(*Dispatcher)

// WithLanguage selects the language of the game-over summary.
func WithLanguage(tag language.Tag) Option {
	return func(d *Dispatcher) { d.printer = message.NewPrinter(tag) }
}

func WithLogger(logger *log.Logger) Option {
	return func(d *Dispatcher) { d.logger = logger }
}

// New builds a dispatcher for e and compiles the argument schemas.
func New(e *engine.Engine, opts ...Option) (*Dispatcher, error) {
	if err := registerSummaries(); err != nil {
		return nil, fmt.Errorf("register summaries: %w", err)
	}
	d := &Dispatcher{
		engine:  e,
		routes:  make(map[string]route),
		printer: message.NewPrinter(language.English),
		logger:  log.New(os.Stdout, "[DISPATCH] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(d)
	}

	table := []struct {
		name   string
		schema string
		handle handler
	}{
		{FuncPreviousMapActions, noArgsSchema, previousMapActions},
		{FuncPromptCount, noArgsSchema, promptCount},
		{FuncPrompt, promptArgsSchema, prompt},
		{FuncActions, choiceArgsSchema, actions},
		{FuncGameOverContent, noArgsSchema, gameOverContent},
	}
	for _, r := range table {
		schema, err := compileArgsSchema(r.name, r.schema)
		if err != nil {
			return nil, err
		}
		d.routes[r.name] = route{schema: schema, handle: r.handle}
	}
	return d, nil
}

// Functions lists the routable function names.
func (d *Dispatcher) Functions() []string {
	return []string{FuncPreviousMapActions, FuncPromptCount, FuncPrompt, FuncActions, FuncGameOverContent}
}

// Invoke checks the token and its definition, then the function name and
// arguments, and routes the call. The returned error is the cause of a failed
// Result and is nil when Success is true.
func (d *Dispatcher) Invoke(ctx context.Context, token, function string, args []any) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Printf("invoke_panic function=%s token=%s panic=%v\n%s", function, engine.Fingerprint(token), r, debug.Stack())
			err = fmt.Errorf("%w: %v", errInternal, r)
			res = Result{Error: failureFor(err)}
		}
	}()

	payload, err := d.invoke(ctx, token, function, args)
	if err != nil {
		f := failureFor(err)
		d.logger.Printf("invoke_failed function=%q token=%s kind=%s", function, engine.Fingerprint(token), f.Kind)
		return Result{Error: f}, err
	}
	return Result{Success: true, Payload: payload}, nil
}

func (d *Dispatcher) invoke(ctx context.Context, token, function string, args []any) (any, error) {
	info, err := d.engine.Describe(ctx, token)
	if err != nil {
		// A finished game has no session left; a repeat submit reports that.
		if function == FuncGameOverContent && token != "" && errors.Is(err, engine.ErrInvalidToken) {
			return nil, engine.ErrSessionNotFound
		}
		return nil, err
	}

	r, ok := d.routes[function]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFunction, function)
	}

	normalized, err := normalizeArgs(args)
	if err != nil {
		return nil, err
	}
	if err := r.schema.Validate(normalized); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidArguments, function, err)
	}
	return r.handle(ctx, d, token, info, normalized)
}

func previousMapActions(ctx context.Context, d *Dispatcher, token string, _ engine.SessionInfo, _ []any) (any, error) {
	return d.engine.PastActions(ctx, token)
}

func promptCount(_ context.Context, _ *Dispatcher, _ string, info engine.SessionInfo, _ []any) (any, error) {
	return info.PromptCount, nil
}

func prompt(ctx context.Context, d *Dispatcher, token string, _ engine.SessionInfo, args []any) (any, error) {
	idx, err := intArg(args[0])
	if err != nil {
		return nil, err
	}
	return d.engine.GoToPrompt(ctx, token, idx)
}

func actions(ctx context.Context, d *Dispatcher, token string, _ engine.SessionInfo, args []any) (any, error) {
	promptIdx, err := intArg(args[0])
	if err != nil {
		return nil, err
	}
	optionIdx, err := intArg(args[1])
	if err != nil {
		return nil, err
	}
	return d.engine.ChooseOption(ctx, token, promptIdx, optionIdx)
}

func gameOverContent(ctx context.Context, d *Dispatcher, token string, _ engine.SessionInfo, _ []any) (any, error) {
	score, err := d.engine.ComputeScore(ctx, token)
	if err != nil {
		return nil, err
	}
	return GameOver{Score: score, Summary: summarize(d.printer, score)}, nil
}
