// Command cicd-lambda generates the CloudFormation template and CodeBuild
// buildspec of a CI/CD pipeline for a single Lambda function.
//
// Usage:
//
//	cicd-lambda build pipeline.yaml        Generate CloudFormation template
//	cicd-lambda buildspec pipeline.yaml    Print the CodeBuild buildspec
//	cicd-lambda validate pipeline.yaml     Check quotas and run cfn-lint
//	cicd-lambda diff pipeline.yaml old.json Compare with a deployed template
//	cicd-lambda version                    Show version
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		logLevel  string
		logFormat string
	)

	rootCmd := &cobra.Command{
		Use:   "cicd-lambda",
		Short: "Generate a CI/CD pipeline for a Lambda function",
		Long: `cicd-lambda generates a CloudFormation template with a CodeCommit
repository, a CodeBuild project and a CodePipeline that deploy one Lambda
function on every push to master.

Describe the pipeline in YAML:

    prefix: MyFn
    lambda:
      handler: manage.runner

Then generate the template:

    cicd-lambda build pipeline.yaml -o template.json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			slog.SetDefault(newLogger(logLevel, logFormat, cmd.ErrOrStderr()))
		},
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format: text or json")

	rootCmd.AddCommand(
		newBuildCmd(),
		newBuildspecCmd(),
		newDiffCmd(),
		newGraphCmd(),
		newValidateCmd(),
		newWatchCmd(),
		newPublishCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

// newLogger creates a logger without touching the global one.
func newLogger(levelStr, formatStr string, outW io.Writer) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler

	if formatStr == "json" {
		handler = slog.NewJSONHandler(outW, handlerOpts)
	} else {
		handler = slog.NewTextHandler(outW, handlerOpts)
	}

	return slog.New(handler)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "cicd-lambda %s\n", getVersion())
		},
	}
}
