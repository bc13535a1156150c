// Package mcp exposes an engine as Model Context Protocol tools.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/DJA-prog/serialmacro"
	"github.com/DJA-prog/serialmacro/pkg/domain"
	"github.com/DJA-prog/serialmacro/pkg/loader"
	"github.com/DJA-prog/serialmacro/pkg/runner"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Engine defines what the MCP server needs from the macro engine.
type Engine interface {
	Macros() ([]string, error)
	Macro(name string) (domain.Macro, error)
	Start(ctx context.Context, name string) (string, error)
	StartMacro(ctx context.Context, m domain.Macro) (string, error)
	Stop()
	Snapshot() domain.RunRecord
	Runs(ctx context.Context) ([]*domain.RunRecord, error)
	RunRecord(ctx context.Context, id string) (*domain.RunRecord, error)
}

// Prompts is the answering side of the UI bridge.
type Prompts interface {
	Pending() []domain.Request
	Reply(id string, reply domain.Reply) error
}

// Server wraps the engine and exposes it as an MCP Server.
type Server struct {
	engine    Engine
	prompts   Prompts
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP Server instance.
func NewServer(engine Engine, prompts Prompts, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		engine:    engine,
		prompts:   prompts,
		logger:    logger,
		mcpServer: server.NewMCPServer("serialmacro-mcp", strings.TrimSpace(serialmacro.Version)),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves MCP over SSE on port until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

// MacroInfo describes one available macro.
type MacroInfo struct {
	Name  string `json:"name" jsonschema_description:"Macro name"`
	Steps int    `json:"steps" jsonschema_description:"Number of steps"`
}

// MacroList is returned by list_macros.
type MacroList struct {
	Macros []MacroInfo `json:"macros"`
}

// RunArgs are the arguments of run_macro.
type RunArgs struct {
	Name       string `json:"name,omitempty"`
	Definition string `json:"definition,omitempty"`
}

// RunStarted is returned by run_macro.
type RunStarted struct {
	RunID string `json:"run_id" jsonschema_description:"ID of the started run"`
}

// StatusArgs are the arguments of run_status.
type StatusArgs struct {
	RunID string `json:"run_id,omitempty"`
}

// PromptList is returned by pending_prompts.
type PromptList struct {
	Prompts []domain.Request `json:"prompts"`
}

// AnswerArgs are the arguments of answer_prompt.
type AnswerArgs struct {
	ID     string `json:"id"`
	Action string `json:"action"`
	Choice int    `json:"choice,omitempty"`
	Text   string `json:"text,omitempty"`
}

// Ack is returned by tools without a payload.
type Ack struct {
	OK bool `json:"ok"`
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("list_macros",
		mcp.WithDescription("List the macros that can be run."),
		mcp.WithOutputSchema[MacroList](),
	), mcp.NewStructuredToolHandler(s.handleListMacros))

	s.mcpServer.AddTool(mcp.NewTool("run_macro",
		mcp.WithDescription("Start a macro on the serial device. Give either the name of a known macro or a YAML definition. Only one run can be active at a time."),
		mcp.WithString("name", mcp.Description("Name of a known macro")),
		mcp.WithString("definition", mcp.Description("Inline YAML macro definition")),
		mcp.WithOutputSchema[RunStarted](),
	), mcp.NewStructuredToolHandler(s.handleRunMacro))

	s.mcpServer.AddTool(mcp.NewTool("stop_macro",
		mcp.WithDescription("Stop the running macro. No further commands are written once the stop is observed."),
		mcp.WithOutputSchema[Ack](),
	), mcp.NewStructuredToolHandler(s.handleStopMacro))

	s.mcpServer.AddTool(mcp.NewTool("run_status",
		mcp.WithDescription("Get the state and statistics of a run. Defaults to the most recent run."),
		mcp.WithString("run_id", mcp.Description("Run ID (optional)")),
		mcp.WithOutputSchema[domain.RunRecord](),
	), mcp.NewStructuredToolHandler(s.handleRunStatus))

	s.mcpServer.AddTool(mcp.NewTool("pending_prompts",
		mcp.WithDescription("List the questions the running macro is waiting on."),
		mcp.WithOutputSchema[PromptList](),
	), mcp.NewStructuredToolHandler(s.handlePendingPrompts))

	s.mcpServer.AddTool(mcp.NewTool("answer_prompt",
		mcp.WithDescription("Answer a pending prompt. Dialogs take continue or end, menus take choose (with a zero-based choice) or cancel, multi-choice menus also take continue, text prompts take submit (with text) or cancel."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Prompt ID")),
		mcp.WithString("action", mcp.Required(), mcp.Description("continue, end, choose, submit or cancel")),
		mcp.WithNumber("choice", mcp.Description("Zero-based option index for choose")),
		mcp.WithString("text", mcp.Description("Command text for submit")),
		mcp.WithOutputSchema[Ack](),
	), mcp.NewStructuredToolHandler(s.handleAnswerPrompt))
}

func (s *Server) handleListMacros(ctx context.Context, request mcp.CallToolRequest, args struct{}) (MacroList, error) {
	names, err := s.engine.Macros()
	if err != nil {
		return MacroList{}, err
	}
	out := MacroList{Macros: make([]MacroInfo, 0, len(names))}
	for _, name := range names {
		m, err := s.engine.Macro(name)
		if err != nil {
			return MacroList{}, err
		}
		out.Macros = append(out.Macros, MacroInfo{Name: name, Steps: len(m.Steps)})
	}
	return out, nil
}

func (s *Server) handleRunMacro(ctx context.Context, request mcp.CallToolRequest, args RunArgs) (RunStarted, error) {
	var (
		runID string
		err   error
	)
	switch {
	case args.Definition != "":
		var m domain.Macro
		if m, err = loader.Parse([]byte(args.Definition)); err == nil {
			runID, err = s.engine.StartMacro(ctx, m)
		}
	case args.Name != "":
		runID, err = s.engine.Start(ctx, args.Name)
	default:
		return RunStarted{}, errors.New("name or definition is required")
	}
	if err != nil {
		s.logger.Warn("MCP run_macro failed", "err", err)
		return RunStarted{}, fmt.Errorf("run failed: %w", err)
	}
	return RunStarted{RunID: runID}, nil
}

func (s *Server) handleStopMacro(ctx context.Context, request mcp.CallToolRequest, args struct{}) (Ack, error) {
	s.engine.Stop()
	return Ack{OK: true}, nil
}

func (s *Server) handleRunStatus(ctx context.Context, request mcp.CallToolRequest, args StatusArgs) (domain.RunRecord, error) {
	if args.RunID == "" {
		rec := s.engine.Snapshot()
		if rec.ID == "" {
			return domain.RunRecord{}, domain.ErrRunNotFound
		}
		return rec, nil
	}
	rec, err := s.engine.RunRecord(ctx, args.RunID)
	if err != nil {
		return domain.RunRecord{}, err
	}
	return *rec, nil
}

func (s *Server) handlePendingPrompts(ctx context.Context, request mcp.CallToolRequest, args struct{}) (PromptList, error) {
	return PromptList{Prompts: s.prompts.Pending()}, nil
}

func (s *Server) handleAnswerPrompt(ctx context.Context, request mcp.CallToolRequest, args AnswerArgs) (Ack, error) {
	reply := domain.Reply{
		Action: domain.ReplyAction(strings.ToLower(strings.TrimSpace(args.Action))),
		Choice: args.Choice,
		Text:   args.Text,
	}
	if reply.Action == domain.ReplySubmit {
		clean, err := runner.SanitizeInput(reply.Text)
		if err != nil {
			s.logger.Warn("MCP answer_prompt: Input rejected", "err", err, "size", len(reply.Text))
			return Ack{}, fmt.Errorf("input rejected: %w", err)
		}
		reply.Text = clean
	}
	if err := s.prompts.Reply(args.ID, reply); err != nil {
		return Ack{}, err
	}
	return Ack{OK: true}, nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource("serialmacro://runs", "Run History",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		runs, err := s.engine.Runs(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list runs: %w", err)
		}
		jsonBytes, err := json.Marshal(runs)
		if err != nil {
			return nil, err
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "serialmacro://runs",
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}
