package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"neural-how/internal/client"
	"neural-how/internal/config"
	"neural-how/internal/dispatch"
	"neural-how/internal/httpclient"
	"neural-how/internal/logger"
	"neural-how/internal/models"
	"neural-how/internal/provider/factory"
)

const long = `how asks a text-completion provider for a shell command.

The HOW_TOKEN environment variable selects the provider:
  openai-<engine>-<secret>      e.g. openai-text_davinci_003-sk-...
  textsynth-<engine>-<secret>   e.g. textsynth-gptj_6B-...
Any other token is forwarded to the server named by HOW_SERVER
(default ` + config.DefaultServerURL + `).

Quote questions that begin with a subcommand name, e.g. how "serve static files".`

// Execute runs the CLI with the provided arguments.
func Execute(ctx context.Context, args []string) error {
	return newRootCommand(nil).executeWith(ctx, args)
}

type rootCommand struct {
	*cobra.Command
	debug bool
}

func (r *rootCommand) executeWith(ctx context.Context, args []string) error {
	r.SetArgs(args)
	return r.ExecuteContext(ctx)
}

func newRootCommand(out io.Writer) *rootCommand {
	root := &rootCommand{}
	root.Command = &cobra.Command{
		Use:           "how [question...]",
		Short:         "Turn a question into a shell command",
		Long:          long,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("a question is required\n\n%s", strings.TrimSpace(cmd.UsageString()))
			}
			return root.ask(cmd.Context(), cmd.OutOrStdout(), strings.Join(args, " "))
		},
	}
	if out != nil {
		root.SetOut(out)
	}

	root.CompletionOptions.DisableDefaultCmd = true

	root.PersistentFlags().BoolVarP(&root.debug, "debug", "d", false, "enable debug logging")
	// Everything after the first word belongs to the question.
	root.Flags().SetInterspersed(false)

	root.AddCommand(newServeCommand(&root.debug))
	root.AddCommand(newVersionCommand())

	return root
}

func (r *rootCommand) ask(ctx context.Context, out io.Writer, question string) error {
	log, err := logger.NewCLI(r.debug)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	cfg, err := config.LoadClient()
	if err != nil {
		return err
	}

	d, err := newDispatcher(cfg, log)
	if err != nil {
		return err
	}

	answer, err := d.Ask(ctx, models.NewQuestion(question, cfg.Token))
	if err != nil {
		return err
	}
	log.Debug("answered", zap.Stringer("route", answer.Route))

	_, err = fmt.Fprintln(out, answer.Text)
	return err
}

func newDispatcher(cfg config.ClientConfig, log *zap.Logger) (*dispatch.Dispatcher, error) {
	httpClient := httpclient.New(0)

	adapters, err := factory.NewRegistry(config.ProvidersConfig{})
	if err != nil {
		return nil, err
	}

	completer, err := client.New(httpClient, adapters, log, nil)
	if err != nil {
		return nil, err
	}

	delegator, err := dispatch.NewRemoteDelegator(httpClient, cfg.Server)
	if err != nil {
		return nil, err
	}

	return dispatch.New(completer, delegator, log)
}
