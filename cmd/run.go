package cmd

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cierrelabs/cierrebot/internal/audit"
	"github.com/cierrelabs/cierrebot/internal/batch"
	"github.com/cierrelabs/cierrebot/internal/config"
	"github.com/cierrelabs/cierrebot/internal/inference"
	"github.com/cierrelabs/cierrebot/internal/ledger"
	"github.com/cierrelabs/cierrebot/internal/ledger/sheets"
	"github.com/cierrelabs/cierrebot/internal/mutation"
	"github.com/cierrelabs/cierrebot/internal/router"
	"github.com/cierrelabs/cierrebot/internal/session"
	"github.com/cierrelabs/cierrebot/internal/transport"
	"github.com/cierrelabs/cierrebot/internal/transport/telegram"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the bot (same as invoking cierrebot with no subcommand)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBot()
		},
	}
}

// runBot wires every component and blocks until interrupted.
func runBot() error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := sheets.New(ctx, cfg.Sheet.ID, cfg.Sheet.CredentialsJSON, cfg.Sheet.CredentialsFile)
	if err != nil {
		return err
	}
	layout := ledger.Layout{
		Sheet:           cfg.Sheet.Name,
		FirstDataRow:    cfg.Sheet.FirstDataRow,
		DateColumn:      cfg.Sheet.DateColumn,
		ShortfallColumn: cfg.Sheet.ShortfallColumn,
	}
	resolver := ledger.NewRowResolver(store, layout)

	var journal *audit.Journal
	if cfg.AuditDB != "" {
		journal, err = audit.Open(cfg.AuditDB)
		if err != nil {
			return err
		}
		defer journal.Close()
	}

	tg, err := telegram.New(cfg.Telegram.Token)
	if err != nil {
		return err
	}
	log.Printf("connected to telegram as @%s", tg.BotName())

	sessions := session.NewStore(session.Config{
		Teams:          cfg.Flow.Teams,
		CommissionRate: cfg.Flow.CommissionRate,
		ExpensesStep:   cfg.Flow.ExpensesStep,
	}, store, layout, resolver, journal)
	queue := mutation.NewQueue(store, resolver, journal)

	rt := router.New(router.Options{
		Vocab:          buildVocab(cfg),
		Columns:        cfg.Sheet.Columns,
		MaxPromptChars: cfg.MaxPromptChars,
	}, sessions, queue, buildInference(cfg), tg, store, resolver, layout)
	defer rt.Close()

	agg := batch.New(time.Duration(cfg.Flow.WindowSeconds)*time.Second, rt.Dispatch)
	defer agg.Close()

	log.Printf("listening (window=%ds, teams=%d)", cfg.Flow.WindowSeconds, len(cfg.Flow.Teams))
	err = tg.Run(ctx, func(ev transport.Event) {
		agg.Enqueue(ev.ConversationID, ev.Text, ev.Attachments...)
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func buildVocab(cfg *config.Config) router.Vocab {
	v := router.DefaultVocab()
	if len(cfg.Flow.TriggerWords) > 0 {
		v.Trigger = cfg.Flow.TriggerWords
	}
	if len(cfg.Flow.ConfirmWords) > 0 {
		v.Confirm = cfg.Flow.ConfirmWords
	}
	if len(cfg.Flow.CancelWords) > 0 {
		v.Cancel = cfg.Flow.CancelWords
	}
	return v
}

// buildInference picks the configured provider. A missing API key disables
// inference rather than failing startup: the wizard works without it.
func buildInference(cfg *config.Config) inference.Service {
	pc := cfg.GetProviderConfig(cfg.Provider)
	if pc.APIKey == "" {
		log.Printf("no api key for provider %q; vision and fallback disabled", cfg.Provider)
		return nil
	}
	model := cfg.Model
	if model == "" {
		model = pc.Model
	}
	if cfg.Provider == "anthropic" {
		return inference.NewAnthropicService(pc.APIKey, model)
	}
	return inference.NewOpenAIService(pc.APIKey, pc.BaseURL, model)
}
