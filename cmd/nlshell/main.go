// Package main runs the nlshell terminal assistant: natural language in,
// permission-checked OS actions out.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/Cyclone1070/nlshell/internal/appcontrol"
	"github.com/Cyclone1070/nlshell/internal/backend"
	"github.com/Cyclone1070/nlshell/internal/backend/gemini"
	"github.com/Cyclone1070/nlshell/internal/backend/ollama"
	"github.com/Cyclone1070/nlshell/internal/config"
	"github.com/Cyclone1070/nlshell/internal/executor"
	"github.com/Cyclone1070/nlshell/internal/fsops"
	"github.com/Cyclone1070/nlshell/internal/gitinfo"
	"github.com/Cyclone1070/nlshell/internal/logging"
	"github.com/Cyclone1070/nlshell/internal/safety"
	"github.com/Cyclone1070/nlshell/internal/session"
	"github.com/Cyclone1070/nlshell/internal/shell"
	"github.com/Cyclone1070/nlshell/internal/ui"
	"google.golang.org/genai"
)

const helpText = `Available commands:
- help               Show this help
- history            List undoable operations
- rollback <id>      Undo a recorded operation
- clear              Reset conversation, plan and rollback state
- exit / quit        Leave nlshell

Anything else is interpreted as a natural language request.`

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load config: %v\n", err)
		fmt.Fprintf(os.Stderr, "Using default configuration.\n")
		cfg = config.DefaultConfig()
	}

	logger, logCloser, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logCloser.Close()

	channels := ui.NewChannels()
	userInterface := ui.New(channels, ui.NewGlamourRenderer())

	runInteractive(context.Background(), cfg, logger, userInterface)
}

func buildBackend(ctx context.Context, kind, endpoint, model string, cfg *config.Config) (backend.Backend, error) {
	switch kind {
	case "ollama":
		if endpoint == "" {
			endpoint = cfg.Backend.Endpoint
		}
		options := ollama.Options{
			Temperature: cfg.Backend.Temperature,
			TopP:        cfg.Backend.TopP,
		}
		return ollama.New(endpoint, model, options, cfg.Features.MaxContextMessages, nil), nil

	case "gemini":
		apiKey := os.Getenv("GEMINI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY environment variable is required for the gemini backend")
		}
		genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini client: %w", err)
		}
		return gemini.New(
			gemini.NewSDKClient(genaiClient),
			model,
			float32(cfg.Backend.Temperature),
			float32(cfg.Backend.TopP),
			cfg.Features.MaxContextMessages,
		), nil
	}

	return nil, fmt.Errorf("unknown backend kind %q", kind)
}

func buildRouter(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*backend.Router, error) {
	primary, err := buildBackend(ctx, cfg.Backend.Kind, cfg.Backend.Endpoint, cfg.Backend.Model, cfg)
	if err != nil {
		return nil, err
	}

	var fallback backend.Backend
	if cfg.Backend.Fallback != nil {
		fallback, err = buildBackend(ctx, cfg.Backend.Fallback.Kind, cfg.Backend.Fallback.Endpoint, cfg.Backend.Fallback.Model, cfg)
		if err != nil {
			return nil, fmt.Errorf("fallback backend: %w", err)
		}
	}

	return backend.NewRouter(
		primary,
		fallback,
		time.Duration(cfg.Backend.HardTimeoutSeconds)*time.Second,
		time.Duration(cfg.Backend.StallTimeoutSeconds)*time.Second,
		cfg.Routing,
		logger,
	), nil
}

func policyFromConfig(cfg *config.Config) *safety.Policy {
	return &safety.Policy{
		AllowAppControl:     cfg.Permissions.AllowAppControl,
		AllowFileOperations: cfg.Permissions.AllowFileOperations,
		AllowBrowserControl: cfg.Permissions.AllowBrowserControl,
		AllowSystemCommands: cfg.Permissions.AllowSystemCommands,
		SensitivePaths:      cfg.Security.SensitivePaths,
		RequireConfirmation: safety.ConfirmSettings{
			FileDeletion:     cfg.Permissions.RequireConfirmation.FileDeletion,
			FileModification: cfg.Permissions.RequireConfirmation.FileModification,
			AppClosure:       cfg.Permissions.RequireConfirmation.AppClosure,
			SystemCommands:   cfg.Permissions.RequireConfirmation.SystemCommands,
		},
	}
}

func runInteractive(ctx context.Context, cfg *config.Config, logger *slog.Logger, userInterface *ui.UI) {
	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		sessionLoop(loopCtx, cfg, logger, userInterface)
	}()

	if err := userInterface.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running UI: %v\n", err)
		os.Exit(1)
	}

	cancel()
	wg.Wait()
}

func sessionLoop(ctx context.Context, cfg *config.Config, logger *slog.Logger, userInterface *ui.UI) {
	<-userInterface.Ready()

	userInterface.WriteStatus("thinking", "Starting up...")

	workDir, err := os.Getwd()
	if err != nil {
		userInterface.WriteStatus("error", "Startup failed")
		userInterface.WriteMessage(fmt.Sprintf("Error: failed to get working directory: %v", err))
		return
	}

	router, err := buildRouter(ctx, cfg, logger)
	if err != nil {
		userInterface.WriteStatus("error", "Backend setup failed")
		userInterface.WriteMessage(fmt.Sprintf("Error: %v", err))
		userInterface.WriteMessage("The application cannot start. Press Ctrl+C to exit.")
		return
	}
	userInterface.SetModel(router.Model())

	if !router.CheckConnection(ctx) {
		userInterface.WriteMessage("Warning: the model backend is not reachable. Requests will fail until it is up.")
	}

	gate := safety.NewGate(policyFromConfig(cfg))
	ledger := safety.NewLedger(cfg.Security.MaxRollbackOperations, nil, logger)

	confirm := func(ctx context.Context, op safety.Operation) bool {
		prompt := fmt.Sprintf("Allow %s on %q?", op.Kind, op.Target)
		answer, err := userInterface.Confirm(ctx, prompt)
		if err != nil {
			return false
		}
		return answer
	}

	dispatcher := executor.New(
		router,
		gate,
		ledger,
		fsops.New(logger),
		appcontrol.New(logger),
		shell.New(workDir, time.Duration(cfg.Backend.HardTimeoutSeconds)*time.Second, logger),
		confirm,
		cfg.Features.MinAnswerLength,
		logger,
	)

	dispatcher.SetOperationLogging(cfg.Logging.LogOperations)

	sess := session.New(cfg.Features.MaxContextMessages, ledger)

	if git := gitinfo.New(workDir); git.InRepository() {
		dispatcher.SetRepoInfo(git)
		if summary := git.Summary(); summary != "" {
			if commits, err := git.Log(1); err == nil && len(commits) > 0 {
				summary += fmt.Sprintf(" (last commit %s %s)", commits[0].Hash, commits[0].Message)
			}
			userInterface.WriteMessage("Workspace: " + summary)
		}
	}

	userInterface.WriteStatus("ready", "")

	for {
		input, err := userInterface.ReadInput(ctx, "Tell me what to do...")
		if err != nil {
			return
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if handled := runBuiltin(cfg, sess, userInterface, input); handled {
			if input == "exit" || input == "quit" {
				userInterface.Quit()
				return
			}
			continue
		}

		if cfg.Features.EnableTaskPlanning {
			userInterface.WriteStatus("thinking", "Planning...")
			sess.SetPlan(dispatcher.PlanTask(ctx, input))
		}

		userInterface.WriteStatus("thinking", "Generating...")

		response, err := dispatcher.Execute(ctx, input, sess.History(), sess.Plan())
		if err != nil {
			logger.Error("turn failed", slog.Any("error", err))
			response = fmt.Sprintf("Error: %v", err)
		}

		sess.Append("user", input)
		sess.Append("assistant", response)

		userInterface.WriteMessage(response)
		userInterface.WriteStatus("ready", "")
	}
}

// runBuiltin handles session commands locally, without a model round trip.
func runBuiltin(cfg *config.Config, sess *session.Session, userInterface *ui.UI, input string) bool {
	switch {
	case input == "exit" || input == "quit":
		return true

	case input == "help":
		userInterface.WriteMessage(helpText)
		return true

	case input == "clear":
		sess.Reset()
		userInterface.WriteMessage("Session cleared.")
		return true

	case input == "history":
		ops := sess.Operations()
		if len(ops) == 0 {
			userInterface.WriteMessage("No recorded operations.")
			return true
		}
		var b strings.Builder
		b.WriteString("Recorded operations:\n")
		for _, op := range ops {
			fmt.Fprintf(&b, "- %s  %s %s\n", op.ID, op.Kind, op.Target)
		}
		userInterface.WriteMessage(strings.TrimRight(b.String(), "\n"))
		return true

	case strings.HasPrefix(input, "rollback"):
		if !cfg.Security.EnableRollback {
			userInterface.WriteMessage("Rollback is disabled in configuration.")
			return true
		}
		parts := strings.Fields(input)
		if len(parts) != 2 {
			userInterface.WriteMessage("Usage: rollback <operation_id>")
			return true
		}
		if sess.Rollback(parts[1]) {
			userInterface.WriteMessage("Operation rolled back: " + parts[1])
		} else {
			userInterface.WriteMessage("Could not roll back " + parts[1] + ": unknown, evicted or unsupported operation.")
		}
		return true
	}

	return false
}
