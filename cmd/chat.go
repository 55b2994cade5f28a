package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/spf13/cobra"

	"github.com/raggydev/raggy/internal/chat"
	"github.com/raggydev/raggy/internal/rag"
	"github.com/raggydev/raggy/internal/session"
	"github.com/raggydev/raggy/internal/tools"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive question-answering session",
	RunE:  runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	rt, err := setupRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	retriever := rag.NewRetriever(rt.store, rt.embedder, rt.cfg.PartitionKey,
		rt.cfg.VectorSearch, rt.logger)

	var toolRefs []ai.ToolRef
	if rt.cfg.EnableTools {
		toolRefs = append(toolRefs, tools.RegisterSearch(rt.genkit, retriever, rt.logger))
	}

	generator, err := chat.NewGenerator(chat.GeneratorConfig{
		Genkit:      rt.genkit,
		ModelName:   rt.cfg.ModelName,
		Temperature: rt.cfg.Temperature,
		Tools:       toolRefs,
		Logger:      rt.logger,
	})
	if err != nil {
		return fmt.Errorf("creating generator: %w", err)
	}

	history := session.NewHistory()
	if err := history.SetSystem(chat.DefaultSystemPrompt); err != nil {
		return fmt.Errorf("initializing history: %w", err)
	}

	orchestrator, err := chat.NewOrchestrator(chat.OrchestratorConfig{
		Retriever: retriever,
		Generator: generator,
		History:   history,
		TopK:      rt.cfg.TopK,
		Logger:    rt.logger,
	})
	if err != nil {
		return fmt.Errorf("creating orchestrator: %w", err)
	}

	count, err := rt.store.Count(ctx, rt.cfg.PartitionKey)
	if err != nil {
		return fmt.Errorf("checking corpus: %w", err)
	}

	fmt.Printf("raggy %s — %d documents in partition %q (backend: %s)\n",
		AppVersion, count, rt.cfg.PartitionKey, retriever.Backend())
	if count == 0 {
		fmt.Println("The corpus is empty. Run 'raggy ingest --file corpus.jsonl' first.")
	}
	fmt.Println("Type 'exit' or 'quit' to leave.")
	fmt.Println()

	return chatLoop(ctx, orchestrator, os.Stdin, os.Stdout)
}

// turner runs one conversation turn. Satisfied by *chat.Orchestrator.
type turner interface {
	Turn(ctx context.Context, userText string) (*chat.TurnResult, error)
}

// chatLoop reads questions until EOF or an exit sentinel. A failed turn is
// reported and the loop continues; the conversation survives the error.
func chatLoop(ctx context.Context, orchestrator turner, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "You > ")

		if !scanner.Scan() {
			fmt.Fprintln(out, "\nGoodbye!")
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			fmt.Fprintln(out, "Goodbye!")
			break
		}

		start := time.Now()
		result, err := orchestrator.Turn(ctx, input)
		if err != nil {
			fmt.Fprintf(out, "Error after %.1fs: %v\n\n", time.Since(start).Seconds(), err)
			continue
		}

		fmt.Fprintf(out, "\n%s\n", result.Answer)
		fmt.Fprintf(out, "%s\n\n", turnInfo(result))
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}
	return nil
}

// turnInfo formats the one-line stats trailer shown after each answer.
func turnInfo(result *chat.TurnResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%d passages | retrieval %dms | generation %dms",
		result.PassageCount,
		result.RetrievalLatency.Milliseconds(),
		result.GenerationLatency.Milliseconds())
	if result.Usage != nil {
		fmt.Fprintf(&sb, " | %d tokens (%d prompt, %d completion)",
			result.Usage.TotalTokens,
			result.Usage.PromptTokens,
			result.Usage.CompletionTokens)
	}
	sb.WriteString("]")
	return sb.String()
}
