package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ashureev/slotwatch/internal/config"
	"github.com/ashureev/slotwatch/internal/domain"
	"github.com/ashureev/slotwatch/internal/portal"
)

var checkCourses []string

var checkCmd = &cobra.Command{
	Use:   "check --course CODE [--course CODE...]",
	Short: "Run one portal check with PORTAL_USERNAME/PORTAL_PASSWORD and print the result",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCheck(cmd.Context())
	},
}

func init() {
	checkCmd.Flags().StringSliceVar(&checkCourses, "course", nil, "course code to look for (repeatable, comma separated)")
}

func runCheck(parent context.Context) error {
	cfg, err := config.LoadPortal()
	if err != nil {
		return err
	}
	slog.SetDefault(newLogger(cfg.LogFormat, cfg.LogLevel))

	courses := domain.ParseCourseCodes(strings.Join(checkCourses, ","))
	if len(courses) == 0 {
		return errors.New("at least one --course is required")
	}
	creds := domain.Credentials{Username: cfg.Owner.Username, Password: cfg.Owner.Password}
	if !creds.Complete() && !cfg.PortalMock {
		return errors.New("PORTAL_USERNAME and PORTAL_PASSWORD are required")
	}

	client, err := newPortalClient(cfg, slog.Default())
	if err != nil {
		return err
	}

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := client.CheckCourses(ctx, creds, courses)
	if err != nil {
		kind, _ := portal.KindOf(err)
		return fmt.Errorf("check failed (%s): %w", kind, err)
	}

	for _, code := range courses {
		if slot, ok := report.Slot(code); ok {
			fmt.Printf("%s\tfound in slot %s\n", code, slot.Label)
		} else {
			fmt.Printf("%s\tnot found\n", code)
		}
	}
	return nil
}

// newPortalClient returns the ARMS scraper, or an empty fake in PORTAL_MOCK mode.
func newPortalClient(cfg *config.Config, logger *slog.Logger) (portal.Client, error) {
	if cfg.PortalMock {
		logger.Warn("PORTAL_MOCK enabled, no real portal checks will run")
		return portal.NewFake(nil), nil
	}
	client, err := portal.NewARMSClient(cfg.PortalBaseURL,
		portal.WithTimeout(cfg.PortalTimeout),
		portal.WithSlots(cfg.PortalSlots),
		portal.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	return client, nil
}
