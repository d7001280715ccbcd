package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cognisearch/ragchat/ai/chat"
	"github.com/cognisearch/ragchat/ai/llm"
	"github.com/cognisearch/ragchat/ai/metrics"
	"github.com/cognisearch/ragchat/ai/rag"
	"github.com/cognisearch/ragchat/ai/search"
	"github.com/cognisearch/ragchat/internal/profile"
	"github.com/cognisearch/ragchat/internal/version"

	// Register LLM providers.
	_ "github.com/cognisearch/ragchat/ai/llm/providers/gemini"
	_ "github.com/cognisearch/ragchat/ai/llm/providers/ollama"
	_ "github.com/cognisearch/ragchat/ai/llm/providers/openai"
)

var rootCmd = &cobra.Command{
	Use:     "ragchat",
	Short:   `A retrieval-augmented chat service over a document search index.`,
	Version: version.StringFull(),
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		// Try to load .env file from current directory (ignore error if file doesn't exist)
		_ = godotenv.Load()
		return nil
	},
	RunE: func(cmd *cobra.Command, _ []string) error {
		p := &profile.Profile{}
		p.FromEnv()

		// Flags override environment.
		if v := viper.GetString("mode"); v != "" {
			p.Mode = v
		}
		if v := viper.GetString("llm-type"); v != "" {
			p.LLMType = v
		}
		if v := viper.GetString("llm-model"); v != "" {
			p.LLMModel = v
		}
		if v := viper.GetString("search-url"); v != "" {
			p.SearchBaseURL = v
		}
		if v := viper.GetString("metrics-addr"); v != "" {
			p.MetricsAddr = v
		}
		if v := viper.GetString("language"); v != "" {
			p.Language = v
		}
		if err := p.Validate(); err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		orch, manager, sessions, m, err := buildPipeline(ctx, p)
		if err != nil {
			return err
		}
		defer manager.Stop()
		defer sessions.Stop()

		if p.MetricsAddr != "" {
			go serveMetrics(p.MetricsAddr, m)
		}

		c := make(chan os.Signal, 1)
		signal.Notify(c, terminationSignals...)
		go func() {
			<-c
			cancel()
		}()

		printGreetings(p, orch.Available(ctx))
		runREPL(ctx, orch)
		return nil
	},
}

func buildPipeline(ctx context.Context, p *profile.Profile) (*chat.Orchestrator, *llm.Manager, *chat.Store, *metrics.Metrics, error) {
	llmType, err := llm.ParseType(p.LLMType)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	var client llm.Client
	if llmType != llm.TypeNone {
		client, err = llm.NewClient(llmType, llm.NewConfig(
			llm.WithAPIKey(p.LLMAPIKey),
			llm.WithBaseURL(p.LLMBaseURL),
			llm.WithModel(p.LLMModel),
			llm.WithTimeout(time.Duration(p.LLMTimeout)*time.Second),
			llm.WithTemperature(p.LLMTemperature),
			llm.WithMaxTokens(p.LLMMaxTokens),
		))
		if err != nil {
			return nil, nil, nil, nil, err
		}
	}

	m := metrics.New(metrics.DefaultConfig())

	manager := llm.NewManager(llm.ManagerConfig{
		Enabled:       p.LLMEnabled,
		Type:          llmType,
		CheckInterval: time.Duration(p.LLMCheckInterval) * time.Second,
	}, client)
	manager.SetMetrics(m)
	manager.Start(ctx)

	searcher, err := search.NewClient(search.ClientConfig{
		BaseURL: p.SearchBaseURL,
		Timeout: time.Duration(p.SearchTimeout) * time.Second,
	})
	if err != nil {
		manager.Stop()
		return nil, nil, nil, nil, err
	}

	engine := rag.NewEngine(manager, rag.Config{
		SystemPrompt:    p.SystemPrompt,
		Language:        p.Language,
		MaxContextChars: p.MaxContextChars,
		MaxRelevantDocs: p.MaxRelevantDocs,
	})

	sessions := chat.NewStore(chat.StoreConfig{
		MaxMessages: p.MaxSessionMessages,
		IdleTimeout: time.Duration(p.SessionIdleMinutes) * time.Minute,
	})
	sessions.SetMetrics(m)
	sessions.Start(ctx)

	orch := chat.NewOrchestrator(engine, searcher, sessions, m, chat.Config{
		MaxSearchDocs: p.SearchMaxDocs,
		ContentFields: p.ContentFieldList(),
	})
	return orch, manager, sessions, m, nil
}

func serveMetrics(addr string, m *metrics.Metrics) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	slog.Info("metrics endpoint listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("metrics endpoint failed", "error", err)
	}
}

// consoleCallback prints pipeline progress to stderr and streamed
// answer chunks to stdout.
type consoleCallback struct{}

func (consoleCallback) OnPhaseStart(_ chat.Phase, label, detail string) {
	if detail != "" {
		fmt.Fprintf(os.Stderr, "* %s (%s)\n", label, detail)
		return
	}
	fmt.Fprintf(os.Stderr, "* %s\n", label)
}

func (consoleCallback) OnPhaseComplete(chat.Phase) {}

func (consoleCallback) OnChunk(chunk string, done bool) {
	fmt.Print(chunk)
	if done {
		fmt.Println()
	}
}

func (consoleCallback) OnError(phase chat.Phase, message string) {
	fmt.Fprintf(os.Stderr, "error (%s): %s\n", phase, message)
}

func runREPL(ctx context.Context, orch *chat.Orchestrator) {
	scanner := bufio.NewScanner(os.Stdin)
	var sessionID string

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return
		}

		result, err := orch.StreamChatWithPipeline(ctx, sessionID, "console", line, consoleCallback{})
		if err != nil {
			continue
		}
		sessionID = result.SessionID

		for _, src := range result.Sources {
			fmt.Printf("[%d] %s (%s)\n", src.Index, src.Document.String("title"), src.Document.String("url"))
		}
	}
}

func printGreetings(p *profile.Profile, llmAvailable bool) {
	fmt.Printf("ragchat %s\n", version.String())
	fmt.Printf("Mode: %s\n", p.Mode)
	fmt.Printf("Search index: %s\n", p.SearchBaseURL)
	if p.LLMType == "none" || !llmAvailable {
		fmt.Println("LLM backend: unavailable (chat is disabled)")
	} else {
		fmt.Printf("LLM backend: %s (%s)\n", p.LLMType, p.LLMModel)
	}
	fmt.Println(`Type a question, or "exit" to quit.`)
}

func init() {
	rootCmd.PersistentFlags().String("mode", "", `mode of service, can be "prod" or "dev"`)
	rootCmd.PersistentFlags().String("llm-type", "", "LLM provider (openai, gemini, ollama, none)")
	rootCmd.PersistentFlags().String("llm-model", "", "LLM model name")
	rootCmd.PersistentFlags().String("search-url", "", "base url of the search index JSON API")
	rootCmd.PersistentFlags().String("metrics-addr", "", "address to expose Prometheus metrics on")
	rootCmd.PersistentFlags().String("language", "", "response language (BCP 47 tag)")

	for _, flag := range []string{"mode", "llm-type", "llm-model", "search-url", "metrics-addr", "language"} {
		if err := viper.BindPFlag(flag, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("ragchat")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("ragchat failed", "error", err)
		os.Exit(1)
	}
}
