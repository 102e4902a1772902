package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/voxflow/voxflow/internal/autorun"
	"github.com/voxflow/voxflow/internal/engine"
)

var rootCmd = &cobra.Command{
	Use:   "voxflow",
	Short: "Workflow engine for voice-memo post-processing",
	Long:  "Voxflow runs typed step workflows over voice-memo transcripts: transform, route by intent, and fan out to notes, reminders, files and webhooks.",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the MCP stdio interface",
	Long:  "Start the scheduler and serve workflow tools over MCP stdio until stdin closes or the process is signalled.",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(loadConfig())
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a.importDefinitions(ctx)

		if err := a.sched.RecoverMissed(ctx); err != nil {
			a.logger.Warn("missed-job recovery failed", "error", err.Error())
		}
		if err := a.sched.Start(ctx); err != nil {
			return err
		}
		defer a.sched.Stop()

		return a.server.Serve(ctx)
	},
}

var runCmd = &cobra.Command{
	Use:   "run <workflow-id>",
	Short: "Run a workflow on a transcript",
	Long:  "Run a workflow definition on transcript text from --file (or stdin with --file -) and print the run result as JSON.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		title, _ := cmd.Flags().GetString("title")
		audio, _ := cmd.Flags().GetString("audio")
		memoID, _ := cmd.Flags().GetString("memo-id")

		transcript, err := readTranscript(file)
		if err != nil {
			return err
		}

		a, err := buildApp(loadConfig())
		if err != nil {
			return err
		}
		defer a.Close()

		def, err := a.library.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		result, runErr := a.recorder.Dispatch(cmd.Context(), def, engine.Input{
			SourceText: transcript,
			Title:      title,
			Date:       time.Now().UTC(),
			AudioPath:  audio,
		}, memoID)
		if result != nil {
			printJSON(result)
		}
		return runErr
	},
}

var replayCmd = &cobra.Command{
	Use:   "replay <run-id>",
	Short: "Rebuild a run from its event log",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(loadConfig())
		if err != nil {
			return err
		}
		defer a.Close()

		run, err := a.store.Replay(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printJSON(run)
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <path>",
	Short: "Import workflow definitions from a YAML/JSON file or directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(loadConfig())
		if err != nil {
			return err
		}
		defer a.Close()

		info, err := os.Stat(args[0])
		if err != nil {
			return err
		}
		if info.IsDir() {
			imported, err := a.library.ImportDir(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, def := range imported {
				fmt.Printf("imported %s (%s)\n", def.ID, def.Name)
			}
			return nil
		}
		def, err := a.library.ImportFile(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("imported %s (%s)\n", def.ID, def.Name)
		return nil
	},
}

var processCmd = &cobra.Command{
	Use:   "process <memo-id>",
	Short: "Run the auto-run pipeline for a new memo",
	Long:  "Fire every enabled auto-run workflow for the memo, transcription-first ones on the audio and the rest on the transcript, deduplicating against earlier runs.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		title, _ := cmd.Flags().GetString("title")
		audio, _ := cmd.Flags().GetString("audio")

		transcript := ""
		if file != "" {
			var err error
			if transcript, err = readTranscript(file); err != nil {
				return err
			}
		}

		a, err := buildApp(loadConfig())
		if err != nil {
			return err
		}
		defer a.Close()

		summary, err := a.processor.ProcessNewMemo(cmd.Context(), autorun.Memo{
			ID:         args[0],
			Title:      title,
			Transcript: transcript,
			AudioPath:  audio,
			RecordedAt: time.Now().UTC(),
		})
		if err != nil {
			return err
		}
		printJSON(summary)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the voxflow version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version)
	},
}

func init() {
	runCmd.Flags().String("file", "-", "transcript file, or - for stdin")
	runCmd.Flags().String("title", "", "memo title")
	runCmd.Flags().String("audio", "", "path to the source audio file")
	runCmd.Flags().String("memo-id", "", "source memo id")

	processCmd.Flags().String("file", "", "transcript file, or - for stdin")
	processCmd.Flags().String("title", "", "memo title")
	processCmd.Flags().String("audio", "", "path to the source audio file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(versionCmd)
}

func readTranscript(file string) (string, error) {
	if file == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return "", fmt.Errorf("read transcript: %w", err)
	}
	return string(data), nil
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
