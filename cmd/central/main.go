// Command central is an interactive chat client built directly on the
// conversation engine: no daemon in between, the terminal is the
// conversation. Configuration follows the same layered loading as
// centrald; flags override the resolved values.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/noctics/central/pkg/backend"
	"github.com/noctics/central/pkg/config"
	"github.com/noctics/central/pkg/engine"
	"github.com/noctics/central/pkg/sanitize"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "central:", err)
		os.Exit(1)
	}
}

func run() error {
	urlFlag := flag.String("url", "", "inference endpoint URL (mode derived from path)")
	modelFlag := flag.String("model", "", "model identifier")
	systemFlag := flag.String("system", "", "system message to seed the conversation")
	streamFlag := flag.Bool("stream", true, "stream deltas as they arrive")
	keepReasoning := flag.Bool("keep-reasoning", false, "keep <think> spans in output")
	sanitizeFlag := flag.Bool("sanitize", false, "redact PII from input before sending")
	flag.Parse()

	// Quiet the structured log on the interactive terminal.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})))

	cfg, err := config.Load(os.Getenv("CENTRAL_CONFIG"))
	if err != nil {
		return err
	}
	if *urlFlag != "" {
		cfg.LLM.URL = *urlFlag
	}
	if *modelFlag != "" {
		cfg.LLM.Model = *modelFlag
	}

	engCfg := engine.Config{
		Endpoint: backend.ResolveEndpoint(cfg.LLM.URL),
		Options: backend.Options{
			Model:         cfg.LLM.Model,
			ModelOverride: cfg.LLM.ModelOverride,
			APIKey:        cfg.LLM.APIKey,
			Stream:        *streamFlag,
			Temperature:   cfg.LLM.Temperature,
			MaxTokens:     cfg.LLM.MaxTokens,
		},
		HelperLabel:   cfg.Engine.HelperLabel,
		KeepReasoning: *keepReasoning,
		Timeout:       cfg.LLM.Timeout,
	}
	if *sanitizeFlag || cfg.Engine.Sanitize {
		engCfg.Sanitize = sanitize.Redact
	}
	eng := engine.New(engCfg)
	defer eng.Close()

	if err := eng.CheckConnectivity(3 * time.Second); err != nil {
		return fmt.Errorf("backend unreachable: %w", err)
	}
	if *systemFlag != "" {
		eng.Reset(*systemFlag)
	}

	target := eng.DescribeTarget()
	fmt.Printf("connected to %s (%s mode, model %s)\n", target.URL, target.Mode, target.Model)
	fmt.Println("type /help for commands, /quit to leave")

	return repl(eng, *streamFlag, *systemFlag)
}

func repl(eng *engine.Engine, stream bool, system string) error {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("you> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if quit := command(eng, line, system); quit {
				return nil
			}
			continue
		}
		turn(eng, line, stream, func(text string) (string, error) {
			return eng.OneTurn(context.Background(), text, deltaPrinter(stream))
		})
	}
}

// turn runs one exchange and handles the helper envelope protocol: when
// the reply is a helper query, the user supplies the result on the next
// prompt and the conversation resumes with it.
func turn(eng *engine.Engine, text string, stream bool, exchange func(string) (string, error)) {
	reply, err := exchange(text)
	if err != nil {
		fmt.Fprintf(os.Stderr, "\nrequest failed: %v\n", err)
		return
	}
	if !stream {
		fmt.Println(reply)
	} else {
		fmt.Println()
	}

	if eng.Awaiting() {
		fmt.Printf("helper query: %s\n", eng.HelperQuery())
		fmt.Print("result> ")
		scanner := bufio.NewScanner(os.Stdin)
		if !scanner.Scan() {
			return
		}
		result := strings.TrimSpace(scanner.Text())
		if result == "" {
			fmt.Println("no result supplied, query left pending")
			return
		}
		turn(eng, result, stream, func(r string) (string, error) {
			return eng.ProcessResult(context.Background(), r, deltaPrinter(stream))
		})
	}
}

func deltaPrinter(stream bool) func(string) {
	if !stream {
		return nil
	}
	return func(d string) { fmt.Print(d) }
}

// command handles slash commands. Returns true when the loop should end.
func command(eng *engine.Engine, line, system string) bool {
	cmd, rest, _ := strings.Cut(line, " ")
	switch cmd {
	case "/quit", "/exit":
		return true
	case "/help":
		fmt.Println(`commands:
  /history        show the committed conversation
  /target         show the configured backend
  /title          show the derived conversation title
  /result TEXT    supply a helper result for the pending query
  /reset          clear history (keeps the system message)
  /quit           leave`)
	case "/history":
		for _, m := range eng.Messages() {
			fmt.Printf("[%s] %s\n", m.Role, m.Content)
		}
	case "/target":
		t := eng.DescribeTarget()
		fmt.Printf("url=%s mode=%s model=%s stream=%t helper_label=%s\n",
			t.URL, t.Mode, t.Model, t.Stream, t.HelperLabel)
	case "/title":
		if title := eng.Title(); title != "" {
			fmt.Println(title)
		} else {
			fmt.Println("(no title yet)")
		}
	case "/result":
		if rest == "" {
			fmt.Println("usage: /result TEXT")
			break
		}
		turn(eng, rest, true, func(r string) (string, error) {
			return eng.ProcessResult(context.Background(), r, deltaPrinter(true))
		})
	case "/reset":
		eng.Reset(system)
		fmt.Println("context reset")
	default:
		fmt.Printf("unknown command %s, try /help\n", cmd)
	}
	return false
}
