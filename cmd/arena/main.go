package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"
	"github.com/mpataki/arena/internal/intent"
	"github.com/mpataki/arena/internal/models"
	"github.com/mpataki/arena/internal/optimizer"
	"github.com/mpataki/arena/internal/orchestrator"
	"github.com/mpataki/arena/internal/tui"
	"github.com/mpataki/arena/internal/workflowdef"
	"github.com/spf13/cobra"
)

var (
	flagOut     string
	flagBackend string
	flagConfig  string
	flagVerbose bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "arena",
		Short: "Agent battle and collaboration arena",
		Long: "Arena runs agents head to head, chains them into collaborations and\n" +
			"workflows, and keeps a log of every run.",
		SilenceUsage: true,
		RunE:         runTUI,
	}

	rootCmd.PersistentFlags().StringVarP(&flagOut, "out", "o", "", "Run log export path (default $ARENA_DATA_DIR/runs.json)")
	rootCmd.PersistentFlags().StringVar(&flagBackend, "backend", "", "Execution backend: local or isolated")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file (default $ARENA_DATA_DIR/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Mirror the debug log to stderr")

	rootCmd.AddCommand(newTaskCommand())
	rootCmd.AddCommand(newBattleCommand())
	rootCmd.AddCommand(newCollabCommand())
	rootCmd.AddCommand(newWorkflowCommand())
	rootCmd.AddCommand(newAgentCommand())
	rootCmd.AddCommand(newDoCommand())
	rootCmd.AddCommand(newOptimizeCommand())
	rootCmd.AddCommand(newRunsCommand())
	rootCmd.AddCommand(&cobra.Command{
		Use:   "tui",
		Short: "Browse the run log",
		RunE:  runTUI,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func runTUI(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	defs, err := workflowdef.LoadAll(e.workflowDirs())
	if err != nil {
		return fmt.Errorf("failed to load workflows: %w", err)
	}

	ctx := cmd.Context()
	run := func(def *workflowdef.Definition) error {
		if _, err := runDefinition(ctx, e, def); err != nil {
			return err
		}
		return e.persist(ctx)
	}

	app := tui.NewApp(e.store, defs, run)
	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))

	_, err = p.Run()
	return err
}

func newTaskCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "task <agent> <task>",
		Short: "Run one task on one agent (not recorded)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			out := e.orch.RunTask(cmd.Context(), models.AgentRef(args[0]), models.Task(args[1]))
			printOutcome(out, -1)
			if !out.Succeeded() {
				return fmt.Errorf("task failed")
			}
			return nil
		},
	}
}

func newBattleCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "battle <agent-a> <agent-b> <task>",
		Short: "Run the same task on two agents and compare them",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			ctx := cmd.Context()
			rec := e.orch.RunBattle(ctx, models.AgentRef(args[0]), models.AgentRef(args[1]), models.Task(args[2]))

			fmt.Printf("Battle %s\n", rec.ID)
			printOutcome(rec.OutcomeA, rec.LatencyA)
			printOutcome(rec.OutcomeB, rec.LatencyB)
			if faster := rec.Faster(); faster != "" {
				fmt.Printf("Faster: %s\n", color.CyanString(string(faster)))
			}

			return persistAndReport(ctx, e)
		},
	}
}

func newCollabCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "collab <objective> [agent...]",
		Short: "Pass an objective through a chain of agents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			agents := make([]models.AgentRef, 0, len(args)-1)
			for _, a := range args[1:] {
				agents = append(agents, models.AgentRef(a))
			}

			ctx := cmd.Context()
			rec := e.orch.RunCollaboration(ctx, agents, args[0])

			fmt.Printf("Collaboration %s (%d steps)\n", rec.ID, len(rec.Steps))
			for i, step := range rec.Steps {
				fmt.Printf("  %d. %s: %s\n", i+1, color.CyanString(string(step.Agent)), truncate(step.Output, 100))
			}
			if final := rec.FinalOutput(); final != "" {
				fmt.Printf("\n%s\n", final)
			}

			return persistAndReport(ctx, e)
		},
	}
}

func newWorkflowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workflow",
		Short: "Run and list workflow definitions",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "run <name-or-file>",
		Short: "Execute a workflow definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			def, err := resolveWorkflow(e, args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			outcomes, err := runDefinition(ctx, e, def)
			if err != nil {
				return err
			}

			fmt.Printf("Workflow %q (%d steps)\n", def.Name, len(outcomes))
			for i, out := range outcomes {
				fmt.Printf("  %d. ", i+1)
				printOutcome(out, -1)
			}

			return persistAndReport(ctx, e)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List workflow definitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			defs, err := workflowdef.LoadAll(e.workflowDirs())
			if err != nil {
				return err
			}
			if len(defs) == 0 {
				fmt.Println("No workflows found.")
				return nil
			}

			for _, name := range workflowdef.Names(defs) {
				def := defs[name]
				fmt.Printf("%-24s %d steps  %s\n", name, len(def.Steps), color.HiBlackString(def.Path))
			}
			return nil
		},
	})

	return cmd
}

// resolveWorkflow accepts a YAML path, a workflow name or a workflow id.
func resolveWorkflow(e *env, arg string) (*workflowdef.Definition, error) {
	if info, err := os.Stat(arg); err == nil && !info.IsDir() {
		return workflowdef.Parse(arg)
	}

	defs, err := workflowdef.LoadAll(e.workflowDirs())
	if err != nil {
		return nil, err
	}
	if def, ok := defs[arg]; ok {
		return def, nil
	}
	for _, def := range defs {
		if orchestrator.WorkflowID(def.Name) == arg {
			return def, nil
		}
	}
	return nil, fmt.Errorf("workflow %q not found", arg)
}

func runDefinition(ctx context.Context, e *env, def *workflowdef.Definition) ([]models.Outcome, error) {
	id, err := workflowdef.Register(e.orch, def)
	if err != nil {
		return nil, fmt.Errorf("invalid workflow %q: %w", def.Name, err)
	}
	return e.orch.ExecuteWorkflow(ctx, id)
}

func newAgentCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Manage agent definitions",
	}

	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Create or replace an agent definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			description, _ := cmd.Flags().GetString("description")
			model, _ := cmd.Flags().GetString("model")
			tools, _ := cmd.Flags().GetStringSlice("tools")

			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			def, err := e.registry.Create(args[0], description, model, tools)
			if err != nil {
				return err
			}
			printStatus("✓", fmt.Sprintf("Created agent %s (%s)", def.ID, def.Model), color.FgGreen)
			return nil
		},
	}
	create.Flags().StringP("description", "d", "", "What the agent does")
	create.Flags().StringP("model", "m", "", "Model name (default "+models.DefaultAgentModel+")")
	create.Flags().StringSlice("tools", nil, "Tools available to the agent")
	cmd.AddCommand(create)

	cmd.AddCommand(&cobra.Command{
		Use:   "get <id>",
		Short: "Show an agent definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			def, err := e.registry.Get(models.AgentRef(args[0]))
			if err != nil {
				return err
			}
			if def == nil {
				return fmt.Errorf("agent %q not found", args[0])
			}

			data, err := json.MarshalIndent(def, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List agent definitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			defs, err := e.registry.List()
			if err != nil {
				return err
			}
			if len(defs) == 0 {
				fmt.Println("No agents found.")
				return nil
			}

			for _, def := range defs {
				fmt.Printf("%-20s %-10s %s\n", def.ID, def.Model, truncate(def.Description, 50))
			}
			return nil
		},
	})

	return cmd
}

func newDoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "do <request>",
		Short: "Act on a plain-language request",
		Long: "Understands requests such as:\n" +
			"  create an agent named Researcher\n" +
			"  add a tool called search that looks things up\n" +
			"  setup a workflow named Daily Digest",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := intent.NewParser().Parse(strings.Join(args, " "))

			switch req.Intent {
			case models.IntentCreateAgent:
				e, err := openEnv()
				if err != nil {
					return err
				}
				defer e.Close()

				def, err := e.registry.Create(req.Params["name"], "", "", nil)
				if err != nil {
					return err
				}
				printStatus("✓", fmt.Sprintf("Created agent %s", def.ID), color.FgGreen)

			case models.IntentCreateWorkflow:
				e, err := openEnv()
				if err != nil {
					return err
				}
				defer e.Close()

				name := req.Params["name"]
				path := filepath.Join(e.cfg.WorkflowsDir(), orchestrator.WorkflowID(name)+".yaml")
				if err := workflowdef.Save(path, &workflowdef.Definition{Name: name}); err != nil {
					return err
				}
				printStatus("✓", fmt.Sprintf("Created workflow %q; add steps in %s", name, path), color.FgGreen)

			case models.IntentDefineTool:
				printStatus("•", fmt.Sprintf("Tool %s: %s", req.Params["name"], req.Params["desc"]), color.FgCyan)
				fmt.Println("Attach it with: arena agent create <name> --tools " + req.Params["name"])

			default:
				printStatus("?", fmt.Sprintf("Could not understand %q", req.Original), color.FgYellow)
				return fmt.Errorf("unknown request")
			}
			return nil
		},
	}
}

func newOptimizeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "optimize <agent>",
		Short: "Refine an agent's system prompt through self-play",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt, _ := cmd.Flags().GetString("prompt")
			iterations, _ := cmd.Flags().GetInt("iterations")
			if err := checkIterations(iterations); err != nil {
				return err
			}

			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			agent := models.AgentRef(args[0])
			req := optimizer.Request{Agent: agent, SystemPrompt: prompt, Iterations: iterations}
			if def, err := e.registry.Get(agent); err == nil && def != nil {
				req.Name = def.Name
			}

			res, err := e.orch.Optimize(cmd.Context(), req)
			if err != nil {
				return err
			}

			printStatus("✓", fmt.Sprintf("%s after %d iterations", res.Status, res.Iterations), color.FgGreen)
			fmt.Println(res.NewPrompt)
			return nil
		},
	}

	cmd.Flags().StringP("prompt", "p", "", "Starting system prompt (default \""+optimizer.DefaultPrompt+"\")")
	cmd.Flags().IntP("iterations", "n", optimizer.DefaultIterations, "Self-play rounds (at least 1)")
	return cmd
}

func checkIterations(n int) error {
	if n < 1 {
		return fmt.Errorf("--iterations must be at least 1, got %d", n)
	}
	return nil
}

func newRunsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List archived runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")

			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			records, err := e.store.ListRecords(limit)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Println("No runs found.")
				return nil
			}

			for _, rec := range records {
				fmt.Printf("%s %s  %s\n", color.YellowString("%-13s", rec.Kind()), rec.RecordID(), summarize(rec))
			}
			return nil
		},
	}

	cmd.Flags().IntP("limit", "n", 20, "Number of most recent runs to show (0 for all)")
	return cmd
}

func summarize(rec models.Record) string {
	switch r := rec.(type) {
	case *models.BattleRecord:
		return fmt.Sprintf("%s vs %s: %s", r.AgentA, r.AgentB, truncate(string(r.Task), 40))
	case *models.CollaborationRecord:
		return fmt.Sprintf("%d steps: %s", len(r.Steps), truncate(r.Objective, 40))
	case *models.WorkflowRun:
		return fmt.Sprintf("%s, %d steps, %d failed", r.WorkflowID, len(r.Results), r.Failures())
	}
	return ""
}

func persistAndReport(ctx context.Context, e *env) error {
	if err := e.persist(ctx); err != nil {
		return fmt.Errorf("run finished but the log was not saved: %w", err)
	}
	fmt.Println(color.HiBlackString("Run log: %s", e.out))
	return nil
}

func printOutcome(out models.Outcome, latency float64) {
	msg := fmt.Sprintf("%s: %s", out.Agent, truncate(out.Output, 100))
	if latency >= 0 {
		msg += color.HiBlackString(" (%.3fs)", latency)
	}
	if out.Succeeded() {
		printStatus("✓", msg, color.FgGreen)
	} else {
		printStatus("✗", msg, color.FgRed)
	}
}

// printStatus prints a status line with a colored symbol
func printStatus(symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Printf("%s %s\n", c.Sprint(symbol), message)
}

// truncate shortens s to at most maxLen runes, cutting on a rune boundary.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
