package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/corebrain/agentcore/internal/agent"
	"github.com/corebrain/agentcore/internal/agent/providers"
	"github.com/corebrain/agentcore/internal/audit"
	"github.com/corebrain/agentcore/internal/brain"
	"github.com/corebrain/agentcore/internal/config"
	"github.com/corebrain/agentcore/internal/observability"
	"github.com/corebrain/agentcore/internal/tools"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func buildRunCmd() *cobra.Command {
	var (
		configPath   string
		providerName string
		prompt       string
		systemPrompt string
		workspace    string
		traceFile    string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a single prompt through a configured provider with tool access",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(prompt) == "" {
				return fmt.Errorf("run: --prompt is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("run: %w", err)
			}
			if providerName == "" {
				providerName = cfg.Providers.Default
			}

			logger := observability.NewLogger(observability.LogConfig{
				Level:  cfg.Logging.Level,
				Format: cfg.Logging.Format,
			})
			metrics := observability.NewMetrics()
			tracer, shutdownTracer := observability.NewTracer(observability.TraceConfig{
				ServiceName: "agentcore",
			})
			defer func() { _ = shutdownTracer(cmd.Context()) }()

			provider, err := buildProvider(cfg, providerName, tracer)
			if err != nil {
				return fmt.Errorf("run: %w", err)
			}

			b := brain.New(provider, systemPrompt)

			sandbox, err := tools.NewSandbox(workspace)
			if err != nil {
				return fmt.Errorf("run: %w", err)
			}
			registry := tools.NewRegistry()
			if err := registry.Register(tools.NewReadFileTool(sandbox)); err != nil {
				return fmt.Errorf("run: %w", err)
			}
			if err := registry.Register(tools.NewWriteFileTool(sandbox)); err != nil {
				return fmt.Errorf("run: %w", err)
			}
			executor := tools.NewExecutor(registry, cfg.Tools.MaxConcurrent, logger, metrics).WithTracer(tracer)

			sessionID, taskID := uuid.New(), uuid.New()
			trace := audit.New(sessionID, taskID, prompt)

			conversation := []agent.Message{agent.NewTextMessage(agent.RoleUser, prompt)}

			resp, err := b.ThinkWithRetry(cmd.Context(), conversation, registry.Definitions(), cfg.Retry.MaxRetries)
			if err != nil {
				trace.PushEvent(audit.TraceEvent{Kind: audit.KindError, Message: err.Error()})
				trace.Complete(false, 1)
				return fmt.Errorf("run: %w", err)
			}
			trace.PushEvent(audit.TraceEvent{
				Kind:         audit.KindLLMCall,
				Model:        resp.Model,
				InputTokens:  resp.Usage.InputTokens,
				OutputTokens: resp.Usage.OutputTokens,
				Backend:      providerName,
			})
			out := cmd.OutOrStdout()

			for _, call := range resp.Message.ToolCalls() {
				t, lookupErr := registry.Get(call.Name)
				risk := agent.RiskReadOnly
				if lookupErr == nil {
					risk = t.RiskLevel()
				}
				trace.PushEvent(audit.TraceEvent{Kind: audit.KindToolRequested, Tool: call.Name, RiskLevel: risk})

				result := executor.ExecuteOne(cmd.Context(), call)
				if result.Err != nil {
					trace.PushEvent(audit.TraceEvent{Kind: audit.KindError, Tool: call.Name, Message: result.Err.Error()})
					fmt.Fprintf(out, "tool %s failed: %v\n", call.Name, result.Err)
					continue
				}
				trace.PushEvent(audit.TraceEvent{Kind: audit.KindToolExecuted, Tool: call.Name, OutputPreview: truncate(result.Output.Content, 200)})
				fmt.Fprintf(out, "tool %s: %s\n", call.Name, result.Output.Content)
			}

			trace.Complete(true, 1)
			fmt.Fprintln(out, resp.Message.Text())
			fmt.Fprintf(out, "usage: %d input + %d output tokens, cost $%.6f\n",
				resp.Usage.InputTokens, resp.Usage.OutputTokens, b.CumulativeCost().Total())

			if traceFile == "" {
				traceFile = filepath.Join(cfg.Audit.TraceDir, "traces.json")
			}
			store, err := openTraceStore(traceFile, cfg.Audit.Backend)
			if err != nil {
				return fmt.Errorf("run: opening trace store: %w", err)
			}
			defer store.Close()
			if err := store.Put(trace); err != nil {
				return fmt.Errorf("run: persisting trace: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "agentcore.yaml", "Path to YAML configuration file")
	cmd.Flags().StringVar(&providerName, "provider", "", "Provider name (defaults to providers.default)")
	cmd.Flags().StringVar(&prompt, "prompt", "", "User prompt to send")
	cmd.Flags().StringVar(&systemPrompt, "system", "You are a helpful assistant with file access.", "System prompt")
	cmd.Flags().StringVar(&workspace, "workspace", ".", "Directory tool calls are sandboxed to")
	cmd.Flags().StringVar(&traceFile, "trace-file", "", "File to persist the execution trace JSON to (defaults under audit.trace_dir)")
	return cmd
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func buildProvider(cfg *config.Config, name string, tracer *observability.Tracer) (agent.Provider, error) {
	p, ok := cfg.Providers.Providers[name]
	if !ok {
		return nil, fmt.Errorf("no such provider %q", name)
	}
	apiKey, err := cfg.APIKey(name)
	if err != nil {
		return nil, err
	}

	switch p.Dialect {
	case "anthropic":
		return providers.NewAnthropicProvider(p.BaseURL, apiKey, p.DefaultModel, p.ContextWindow, p.InputRate, p.OutputRate).WithTracer(tracer), nil
	case "openai":
		provider, err := providers.NewOpenAICompatibleProvider(p.BaseURL, apiKey, p.DefaultModel, p.ContextWindow, p.InputRate, p.OutputRate)
		if err != nil {
			return nil, err
		}
		return provider.WithTracer(tracer), nil
	default:
		return nil, fmt.Errorf("unknown dialect %q for provider %q", p.Dialect, name)
	}
}
