package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/morgansundqvist/mbacklog/internal/adapters"
	"github.com/morgansundqvist/mbacklog/internal/application"
	"github.com/morgansundqvist/mbacklog/internal/config"
	"github.com/morgansundqvist/mbacklog/internal/domain"
	"github.com/morgansundqvist/mbacklog/internal/ports"
	"github.com/spf13/cobra"
)

type ctxKey string

const appKey ctxKey = "cliApp"

// cliApp bundles the services the commands share.
type cliApp struct {
	cfg        config.Config
	backlog    *application.BacklogService
	controller *application.SessionController
	trackers   map[domain.Platform]ports.Tracker
	csv        *adapters.CSVExporter
	files      ports.FileReader
}

func appFrom(cmd *cobra.Command) *cliApp {
	return cmd.Context().Value(appKey).(*cliApp)
}

func newCLIApp(cfg config.Config, logger *slog.Logger) *cliApp {
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	llm := adapters.NewOpenAILLMService(adapters.OpenAIConfig{
		APIKey:  cfg.OpenAI.APIKey,
		BaseURL: cfg.OpenAI.BaseURL,
		Models: map[domain.ModelType]string{
			domain.ModelTypeAdvanced: cfg.OpenAI.BacklogModel,
			domain.ModelTypeSimple:   cfg.OpenAI.ClarifyModel,
		},
	}, logger)
	backlog := application.NewBacklogService(llm, logger)
	trackers := map[domain.Platform]ports.Tracker{
		domain.PlatformJira: adapters.NewJiraClient(httpClient, logger),
		domain.PlatformADO:  adapters.NewAdoClient(httpClient, cfg.ExportWorkers, logger),
	}
	csv := adapters.NewCSVExporter()

	return &cliApp{
		cfg:     cfg,
		backlog: backlog,
		controller: application.NewSessionController(
			adapters.NewMemorySessionRepository(0, 0, logger),
			backlog,
			trackers,
			csv,
			adapters.NewHTMLMarkdownConverter(),
			application.SessionControllerConfig{ImportDismissAfter: cfg.ImportDismiss, Logger: logger},
		),
		trackers: trackers,
		csv:      csv,
		files:    adapters.NewLocalFileReader(),
	}
}

func main() {
	var verbose bool

	rootCmd := &cobra.Command{
		Use:           "mbacklog",
		Short:         "Turn epics into user story backlogs with LLM support",
		Long:          "A CLI tool to generate a product backlog from an epic, ask questions about it, and move it in and out of Jira and Azure DevOps.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			level := cfg.SlogLevel()
			if !verbose && level < slog.LevelWarn {
				level = slog.LevelWarn
			}
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

			ctx := context.WithValue(cmd.Context(), appKey, newCLIApp(cfg, logger))
			cmd.SetContext(ctx)
			return nil
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log requests to stderr.")
	rootCmd.PersistentFlags().StringP("backlog", "b", "backlog.json", "Backlog file (.json, or .md for a rendered markdown backlog).")

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(clarifyCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, styleError.Render("Error: "+err.Error()))
		os.Exit(1)
	}
}

var generateCmd = &cobra.Command{
	Use:   "generate [epic]",
	Short: "Generate a backlog from an epic",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := appFrom(cmd)
		epicFile, _ := cmd.Flags().GetString("epic-file")
		kbFile, _ := cmd.Flags().GetString("kb")
		out := cmd.Flag("backlog").Value.String()

		epic := strings.Join(args, " ")
		if epicFile != "" {
			content, err := app.files.ReadFileContent(epicFile)
			if err != nil {
				return err
			}
			epic = content
		}

		session, err := app.controller.NewSession()
		if err != nil {
			return err
		}
		if _, err := app.controller.SetEpic(session.ID, epic); err != nil {
			return err
		}
		if kbFile != "" {
			content, err := app.files.ReadFileContent(kbFile)
			if err != nil {
				return err
			}
			if _, err := app.controller.LoadKnowledgeBaseFile(session.ID, filepath.Base(kbFile), []byte(content)); err != nil {
				return err
			}
		}

		printInfo("Generating backlog...")
		session, err = app.controller.Generate(cmd.Context(), session.ID)
		if err != nil {
			return err
		}

		if err := writeBacklog(out, backlogFile{
			Epic:          session.EpicText,
			KnowledgeBase: session.KnowledgeBase,
			GeneratedAt:   time.Now().UTC(),
			Stories:       session.Stories,
		}); err != nil {
			return err
		}

		for _, story := range session.Stories {
			fmt.Printf("%s %s\n", styleTitle.Render("•"), story.Title)
			fmt.Println(styleMuted.Render(fmt.Sprintf("  value: %s  risk: %s  criteria: %d", story.BusinessValue, story.RiskLevel, len(story.AcceptanceCriteria))))
		}
		printSuccess("%s (%d stories written to %s)", session.Generation.Message, len(session.Stories), out)
		return nil
	},
}

var clarifyCmd = &cobra.Command{
	Use:   "clarify [question]",
	Short: "Ask a question about the backlog",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := appFrom(cmd)
		b, err := readBacklog(cmd.Flag("backlog").Value.String())
		if err != nil {
			return err
		}
		kb := b.KnowledgeBase
		if kbFile, _ := cmd.Flags().GetString("kb"); kbFile != "" {
			if kb, err = app.files.ReadFileContent(kbFile); err != nil {
				return err
			}
		}

		question := strings.Join(args, " ")
		if strings.TrimSpace(question) == "" {
			return domain.ErrEmptyQuestion
		}
		answer, err := app.backlog.GetClarification(cmd.Context(), b.Stories, kb, question)
		if err != nil {
			return err
		}
		fmt.Println(answer)
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the backlog as CSV or markdown, or to Jira or Azure DevOps",
}

var exportCSVCmd = &cobra.Command{
	Use:   "csv",
	Short: "Write the backlog in the CSV import format of Jira or Azure DevOps",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := appFrom(cmd)
		platformFlag, _ := cmd.Flags().GetString("platform")
		platform, err := domain.ParsePlatform(platformFlag)
		if err != nil {
			return err
		}
		b, err := readBacklog(cmd.Flag("backlog").Value.String())
		if err != nil {
			return err
		}
		if len(b.Stories) == 0 {
			return domain.ErrNoStories
		}

		out, _ := cmd.Flags().GetString("out")
		if out == "" {
			out = app.csv.FileName(platform)
		}
		file, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("error creating %s: %w", out, err)
		}
		defer file.Close()

		if err := app.csv.WriteCSV(file, platform, b.Stories); err != nil {
			return err
		}
		printSuccess("Wrote %d stories to %s", len(b.Stories), out)
		return nil
	},
}

var exportMarkdownCmd = &cobra.Command{
	Use:   "markdown",
	Short: "Render the backlog as a markdown document",
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := readBacklog(cmd.Flag("backlog").Value.String())
		if err != nil {
			return err
		}
		doc := domain.NewBacklogDocument(b.Epic, b.Stories, time.Now())

		out, _ := cmd.Flags().GetString("out")
		if out == "" {
			return doc.Write(os.Stdout)
		}
		if err := doc.WriteToFile(out); err != nil {
			return err
		}
		printSuccess("Wrote %d stories to %s", len(b.Stories), out)
		return nil
	},
}

func runTrackerExport(cmd *cobra.Command, cfg domain.ExportConfig) error {
	app := appFrom(cmd)
	if err := cfg.Validate(); err != nil {
		return err
	}
	b, err := readBacklog(cmd.Flag("backlog").Value.String())
	if err != nil {
		return err
	}
	if len(b.Stories) == 0 {
		return domain.ErrNoStories
	}

	printInfo("Exporting %d stories...", len(b.Stories))
	result, err := app.trackers[cfg.Platform].ExportStories(cmd.Context(), cfg, b.Stories)
	for _, item := range result.Items {
		if item.Succeeded() {
			fmt.Printf("%s %s %s\n", styleSuccess.Render(item.Key), styleMuted.Render("←"), item.Title)
		} else {
			fmt.Printf("%s %s: %s\n", styleError.Render("failed"), item.Title, styleMuted.Render(item.Error))
		}
	}
	if err != nil {
		return err
	}
	if result.Partial() {
		printWarning("%s", result.Message)
		return nil
	}
	printSuccess("%s", result.Message)
	return nil
}

var exportJiraCmd = &cobra.Command{
	Use:   "jira",
	Short: "Create Jira issues for every story",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := appFrom(cmd)
		projectKey, _ := cmd.Flags().GetString("project-key")
		issueType, _ := cmd.Flags().GetString("issue-type")
		return runTrackerExport(cmd, domain.ExportConfig{
			Platform:   domain.PlatformJira,
			URL:        app.cfg.Jira.URL,
			Email:      app.cfg.Jira.Email,
			Token:      app.cfg.Jira.APIToken,
			ProjectKey: projectKey,
			IssueType:  issueType,
		})
	},
}

var exportAdoCmd = &cobra.Command{
	Use:   "ado",
	Short: "Create Azure DevOps work items for every story",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := appFrom(cmd)
		project, _ := cmd.Flags().GetString("project")
		if project == "" {
			project = app.cfg.Ado.Project
		}
		workItemType, _ := cmd.Flags().GetString("work-item-type")
		return runTrackerExport(cmd, domain.ExportConfig{
			Platform:     domain.PlatformADO,
			OrgURL:       app.cfg.Ado.OrgURL,
			Project:      project,
			Token:        app.cfg.Ado.PAT,
			WorkItemType: workItemType,
		})
	},
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import issues or work items into a knowledge base file",
}

func runTrackerImport(cmd *cobra.Command, cfg domain.ImportConfig) error {
	app := appFrom(cmd)
	if err := cfg.Validate(); err != nil {
		return err
	}

	printInfo("Fetching data...")
	text, err := app.trackers[cfg.Platform].ImportItems(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	kbFile, _ := cmd.Flags().GetString("kb")
	if kbFile == "" {
		fmt.Println(text)
		return nil
	}
	if err := appendKnowledgeBase(kbFile, cfg.Platform, text); err != nil {
		return err
	}
	printSuccess("Successfully imported data into %s", kbFile)
	return nil
}

var importJiraCmd = &cobra.Command{
	Use:   "jira [jql]",
	Short: "Import Jira issues matching a JQL query",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := appFrom(cmd)
		return runTrackerImport(cmd, domain.ImportConfig{
			Platform: domain.PlatformJira,
			URL:      app.cfg.Jira.URL,
			Email:    app.cfg.Jira.Email,
			Token:    app.cfg.Jira.APIToken,
			Query:    strings.Join(args, " "),
		})
	},
}

var importAdoCmd = &cobra.Command{
	Use:   "ado [wiql]",
	Short: "Import Azure DevOps work items matching a WIQL query",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := appFrom(cmd)
		project, _ := cmd.Flags().GetString("project")
		if project == "" {
			project = app.cfg.Ado.Project
		}
		return runTrackerImport(cmd, domain.ImportConfig{
			Platform: domain.PlatformADO,
			OrgURL:   app.cfg.Ado.OrgURL,
			Project:  project,
			Token:    app.cfg.Ado.PAT,
			Query:    strings.Join(args, " "),
		})
	},
}

func init() {
	generateCmd.Flags().String("epic-file", "", "Read the epic from a file instead of the arguments.")
	generateCmd.Flags().String("kb", "", "Knowledge base file (.txt .md .json .csv .html .js .ts .css).")
	clarifyCmd.Flags().String("kb", "", "Knowledge base file; defaults to the one stored with the backlog.")

	exportCSVCmd.Flags().StringP("platform", "p", "jira", "CSV flavour: jira or ado.")
	exportCSVCmd.Flags().StringP("out", "o", "", "Output file; defaults to <platform>-export-stories.csv.")
	exportMarkdownCmd.Flags().StringP("out", "o", "", "Output file; defaults to stdout.")
	exportJiraCmd.Flags().String("project-key", "", "Jira project key.")
	exportJiraCmd.Flags().String("issue-type", "Story", "Jira issue type.")
	exportAdoCmd.Flags().String("project", "", "Azure DevOps project; defaults to ADO_PROJECT.")
	exportAdoCmd.Flags().String("work-item-type", "User Story", "Azure DevOps work item type.")
	exportCmd.AddCommand(exportCSVCmd, exportMarkdownCmd, exportJiraCmd, exportAdoCmd)

	importCmd.PersistentFlags().String("kb", "", "Knowledge base file to append to; prints to stdout when empty.")
	importAdoCmd.Flags().String("project", "", "Azure DevOps project; defaults to ADO_PROJECT.")
	importCmd.AddCommand(importJiraCmd, importAdoCmd)
}
