package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/zoobzio/capitan"

	"github.com/zoobzio/formstate"
	"github.com/zoobzio/formstate/definition"
)

func newWatchCmd() *cobra.Command {
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch <file>",
		Short: "Follow a definition file and report every epoch",
		Long:  "Watches a definition file and re-initializes the form each time its baseline changes.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			logger := newLogger(cmd.ErrOrStderr())

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			ctrl := formstate.New(formstate.Settings{})
			hookLogger(logger, ctrl)
			defer capitan.Shutdown()

			binding := definition.Bind(ctrl, definition.NewFileWatcher(path), nil).
				Codec(definition.CodecFor(path)).
				Debounce(debounce)

			if err := binding.Start(ctx); err != nil {
				if binding.LastError() == nil {
					return fmt.Errorf("watch %s: %w", path, err)
				}
				logger.Error("initial definition rejected", "path", path, "error", err)
			}

			logger.Info("watching", "path", path)
			<-ctx.Done()
			return nil
		},
	}

	cmd.Flags().DurationVar(&debounce, "debounce", definition.DefaultDebounce, "Delay before applying a changed file")

	return cmd
}

func newLogger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// hookLogger routes controller and binding signals to the logger.
func hookLogger(logger *slog.Logger, ctrl *formstate.Controller) {
	capitan.Hook(formstate.FormSeeded, func(_ context.Context, e *capitan.Event) {
		epoch, _ := formstate.KeyEpoch.From(e)
		fields, _ := formstate.KeyFields.From(e)
		logger.Info("epoch started", "epoch", epoch, "fields", fields)
	})

	capitan.Hook(formstate.EligibilityChanged, func(_ context.Context, e *capitan.Event) {
		from, _ := formstate.KeyOldEligibility.From(e)
		to, _ := formstate.KeyNewEligibility.From(e)
		logger.Info("eligibility changed", "from", from, "to", to)
	})

	capitan.Hook(formstate.FieldInvalid, func(_ context.Context, e *capitan.Event) {
		field, _ := formstate.KeyField.From(e)
		msg, _ := formstate.KeyError.From(e)
		logger.Debug("field invalid", "field", field, "error", msg)
	})

	capitan.Hook(definition.DefinitionLoaded, func(_ context.Context, e *capitan.Event) {
		reseeded, _ := definition.KeyReseeded.From(e)
		logger.Info("definition applied",
			"reseeded", reseeded,
			"eligibility", ctrl.Eligibility().String(),
			"errors", ctrl.Errors(),
		)
	})

	capitan.Hook(definition.DefinitionFailed, func(_ context.Context, e *capitan.Event) {
		msg, _ := formstate.KeyError.From(e)
		logger.Error("definition rejected", "error", msg)
	})
}
