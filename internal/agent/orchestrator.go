// Package agent runs a conversation turn: it composes the prompt, calls the
// model, dispatches the tools the model asks for and loops until the model
// answers in plain text or the round ceiling is reached.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/paimy-ai/paimy/internal/conversation"
	"github.com/paimy-ai/paimy/internal/cost"
	apperrors "github.com/paimy-ai/paimy/internal/errors"
	"github.com/paimy-ai/paimy/internal/logging"
	"github.com/paimy-ai/paimy/internal/model"
	"github.com/paimy-ai/paimy/internal/prompt"
	"github.com/paimy-ai/paimy/internal/stats"
	"github.com/paimy-ai/paimy/internal/tools/executor"
	"github.com/paimy-ai/paimy/pkg/protocol"
)

const (
	// DefaultMaxIterations caps model calls per turn.
	DefaultMaxIterations = 5

	defaultToolConcurrency = 4

	// FallbackMessage is returned when a turn ends without a usable answer.
	FallbackMessage = "요청을 처리하는 데 문제가 발생했습니다. 다시 시도해 주세요."
)

// State is a step of the turn state machine.
type State string

const (
	StateComposing     State = "composing"
	StateAwaitingModel State = "awaiting_model"
	StateInterpreting  State = "interpreting"
	StateDispatching   State = "dispatching"
	StateDone          State = "done"
)

// Dispatcher executes tools and describes them to the model.
type Dispatcher interface {
	ModelTools() []model.Tool
	Execute(ctx context.Context, name string, input map[string]any) (*executor.Result, error)
}

// Composer builds the system prompt.
type Composer interface {
	Compose(ctx context.Context, in prompt.Input) string
}

// Config configures an Orchestrator. Model, Tools and Prompt are required.
type Config struct {
	Model           model.Model
	Tools           Dispatcher
	Prompt          Composer
	Logger          *zap.Logger
	Stats           *stats.Collector
	Cost            *cost.Tracker
	MaxIterations   int
	MaxTokens       int
	ToolConcurrency int
}

// Orchestrator handles conversation turns. It holds no per-turn state and
// may process turns for different threads concurrently.
type Orchestrator struct {
	model           model.Model
	tools           Dispatcher
	prompt          Composer
	logger          *zap.Logger
	stats           *stats.Collector
	cost            *cost.Tracker
	maxIterations   int
	maxTokens       int
	toolConcurrency int
}

// New creates an orchestrator.
func New(cfg Config) *Orchestrator {
	o := &Orchestrator{
		model:           cfg.Model,
		tools:           cfg.Tools,
		prompt:          cfg.Prompt,
		logger:          logging.OrNop(cfg.Logger),
		stats:           cfg.Stats,
		cost:            cfg.Cost,
		maxIterations:   cfg.MaxIterations,
		maxTokens:       cfg.MaxTokens,
		toolConcurrency: cfg.ToolConcurrency,
	}
	if o.maxIterations <= 0 {
		o.maxIterations = DefaultMaxIterations
	}
	if o.toolConcurrency <= 0 {
		o.toolConcurrency = defaultToolConcurrency
	}
	return o
}

// Input is one inbound message.
type Input struct {
	ThreadID  string
	Message   string
	Requester protocol.Requester
	Context   conversation.Context
}

// Output is the result of a turn. Delta is what the caller should merge
// into the thread's context.
type Output struct {
	Response   string
	ToolsUsed  []string
	Delta      conversation.Delta
	Rounds     int
	TokensUsed int
	HitCeiling bool
	Duration   time.Duration
}

// outcome is the interpreted model response: finalText or toolRequests.
type outcome interface{ isOutcome() }

type finalText struct{ text string }

type toolRequests struct {
	calls   []model.ToolCall
	content []model.ContentBlock
}

func (finalText) isOutcome()    {}
func (toolRequests) isOutcome() {}

// Process runs one turn. A failed model call aborts the turn; tool failures
// are reported back to the model instead.
func (o *Orchestrator) Process(ctx context.Context, in Input) (*Output, error) {
	if strings.TrimSpace(in.Message) == "" {
		return nil, apperrors.User(apperrors.CodeInvalidInput, "message is empty")
	}

	start := time.Now()
	ctx = executor.WithRequester(ctx, in.Requester)
	log := o.logger.With(zap.String("thread", in.ThreadID))

	var (
		out      = &Output{}
		system   string
		tools    []model.Tool
		messages []model.Message
		resp     *model.Response
		next     outcome
	)

	state := StateComposing
	for {
		log.Debug("turn state", zap.String("state", string(state)), zap.Int("round", out.Rounds))

		switch state {
		case StateComposing:
			system = o.prompt.Compose(ctx, prompt.Input{Requester: in.Requester, Context: in.Context})
			tools = o.tools.ModelTools()
			messages = buildMessages(in.Context.ThreadHistory, in.Requester.DisplayName, in.Message)
			state = StateAwaitingModel

		case StateAwaitingModel:
			if out.Rounds >= o.maxIterations {
				log.Warn("round ceiling reached", zap.Int("rounds", out.Rounds), zap.Strings("tools", out.ToolsUsed))
				o.stats.RecordCeilingHit()
				out.Response = FallbackMessage
				out.HitCeiling = true
				state = StateDone
				continue
			}

			out.Rounds++
			o.stats.RecordRound()
			var err error
			resp, err = o.model.Generate(ctx, &model.Request{
				System:    system,
				Messages:  messages,
				Tools:     tools,
				MaxTokens: o.maxTokens,
			})
			if err != nil {
				o.stats.RecordModelError()
				log.Error("model call failed", zap.Int("round", out.Rounds), zap.Error(err))
				return nil, apperrors.Wrap(err, apperrors.CodeModelUnavailable, "model call failed", apperrors.GetCategory(err))
			}
			out.TokensUsed += resp.Usage.Total()
			o.cost.Record(resp.Model, resp.Usage.InputTokens, resp.Usage.OutputTokens)
			state = StateInterpreting

		case StateInterpreting:
			next = interpret(resp)
			switch r := next.(type) {
			case finalText:
				out.Response = r.text
				if strings.TrimSpace(out.Response) == "" {
					log.Warn("model returned an empty answer", zap.String("stop_reason", resp.StopReason))
					out.Response = FallbackMessage
				}
				state = StateDone
			case toolRequests:
				state = StateDispatching
			}

		case StateDispatching:
			req := next.(toolRequests)
			results := o.dispatch(ctx, log.With(zap.Int("round", out.Rounds)), req.calls)

			blocks := make([]model.ContentBlock, len(results))
			for i, r := range results {
				out.ToolsUsed = append(out.ToolsUsed, r.call.Name)
				if r.result != nil {
					out.Delta = out.Delta.Then(r.result.Delta)
				}
				blocks[i] = r.block()
			}
			messages = append(messages,
				model.Message{Role: model.RoleAssistant, Content: req.content},
				model.Message{Role: model.RoleUser, Content: blocks},
			)
			state = StateAwaitingModel

		case StateDone:
			out.Duration = time.Since(start)
			o.stats.RecordTurn(out.TokensUsed, out.Duration)
			log.Info("turn complete",
				zap.Int("rounds", out.Rounds),
				zap.Strings("tools", out.ToolsUsed),
				zap.Int("tokens", out.TokensUsed),
				zap.Duration("duration", out.Duration))
			return out, nil
		}
	}
}

// interpret classifies a model response.
func interpret(resp *model.Response) outcome {
	calls := resp.ToolCalls()
	if len(calls) == 0 {
		return finalText{text: resp.Text()}
	}
	return toolRequests{calls: calls, content: resp.Content}
}

// buildMessages turns the thread history plus the new message into the
// alternating message list the model expects.
func buildMessages(history []conversation.Turn, speaker, message string) []model.Message {
	turns := make([]conversation.Turn, 0, len(history)+1)
	turns = append(turns, history...)
	turns = append(turns, conversation.Turn{Role: conversation.RoleUser, Speaker: speaker, Content: message})

	normalized := conversation.Normalize(turns)
	messages := make([]model.Message, 0, len(normalized))
	for _, t := range normalized {
		if t.Role == conversation.RoleAssistant {
			messages = append(messages, model.AssistantText(t.Content))
		} else {
			messages = append(messages, model.UserText(t.Content))
		}
	}
	return messages
}

// toolOutcome is one executed tool request.
type toolOutcome struct {
	call   model.ToolCall
	result *executor.Result
	err    error
}

// dispatch runs every call of a round concurrently. Results keep the order
// of calls. Calls never see each other's side effects.
func (o *Orchestrator) dispatch(ctx context.Context, log *zap.Logger, calls []model.ToolCall) []toolOutcome {
	results := make([]toolOutcome, len(calls))

	var g errgroup.Group
	g.SetLimit(o.toolConcurrency)
	for i, call := range calls {
		g.Go(func() error {
			res, err := o.tools.Execute(ctx, call.Name, call.Input)
			results[i] = toolOutcome{call: call, result: res, err: err}

			failed := err != nil || res == nil || !res.Success
			o.stats.RecordToolCall(failed)

			var notFound *executor.ToolNotFoundError
			switch {
			case errors.As(err, &notFound):
				log.Error("model requested an unknown tool", zap.String("tool", call.Name))
			case err != nil:
				log.Warn("tool failed", zap.String("tool", call.Name), zap.Error(err))
			case res == nil:
				log.Error("tool returned no result", zap.String("tool", call.Name))
			case failed:
				log.Info("tool reported a failure", zap.String("tool", call.Name), zap.String("code", res.Code))
			default:
				log.Debug("tool succeeded", zap.String("tool", call.Name), zap.Int64("duration_ms", res.DurationMs))
			}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// block renders the outcome as a tool_result for the model. Errors are
// marked is_error; request-level failures are ordinary results with
// success false.
func (t toolOutcome) block() model.ContentBlock {
	if t.err != nil || t.result == nil {
		payload := protocol.ToolResult{Success: false, Error: "tool returned no result"}
		if t.err != nil {
			payload.Error = t.err.Error()
			payload.Code = errorCode(t.err)
		}
		return model.ToolResultBlock(t.call.ID, encode(payload), true)
	}
	return model.ToolResultBlock(t.call.ID, encode(t.result.Payload()), false)
}

func errorCode(err error) string {
	var coded interface{ Code() string }
	if errors.As(err, &coded) {
		return coded.Code()
	}
	return apperrors.GetCode(err)
}

func encode(v protocol.ToolResult) string {
	data, err := json.Marshal(v)
	if err != nil {
		data, _ = json.Marshal(protocol.ToolResult{Success: false, Error: "result could not be encoded: " + err.Error()})
	}
	return string(data)
}
