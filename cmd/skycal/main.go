package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/urfave/cli/v2"
	"golang.org/x/oauth2"

	"github.com/carrieskye/calendar/internal/caldav"
	"github.com/carrieskye/calendar/internal/config"
	"github.com/carrieskye/calendar/internal/geo"
	"github.com/carrieskye/calendar/internal/google"
	"github.com/carrieskye/calendar/internal/location"
	"github.com/carrieskye/calendar/internal/reconcile"
	"github.com/carrieskye/calendar/internal/syncer"
	"github.com/carrieskye/calendar/internal/timeline"
	"github.com/carrieskye/calendar/internal/trakt"
)

const dateLayout = "2006-01-02"

func main() {
	// Load .env file first, but don't error if it doesn't exist.
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "skycal",
		Usage: "Reconstruct days from location history and keep calendars in sync.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Value: "config.yaml", Usage: "Path to the YAML config file."},
		},
		Commands: []*cli.Command{
			authCommand(),
			locationsCommand(),
			placesCommand(),
			mediaCommand(),
			daemonCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authenticate with a Google account to get an API token.",
		Action: func(c *cli.Context) error {
			logger := setupLogger()
			logger.Info("Starting Google authentication flow.")

			oauthConfig, err := google.GetOAuthConfigForAuthFlow(os.Getenv("GOOGLE_CLIENT_ID"), os.Getenv("GOOGLE_CLIENT_SECRET"))
			if err != nil {
				return fmt.Errorf("failed to get google oauth config: %w", err)
			}

			authURL := oauthConfig.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
			fmt.Printf("Go to the following link in your browser then type the "+
				"authorization code: \n%v\n", authURL)

			fmt.Print("Enter Authorization Code: ")
			reader := bufio.NewReader(os.Stdin)
			authCode, _ := reader.ReadString('\n')
			authCode = strings.TrimSpace(authCode)

			token, err := google.TokenFromWeb(oauthConfig, authCode)
			if err != nil {
				return fmt.Errorf("unable to retrieve token from web: %w", err)
			}

			fmt.Print("Enter a name for this account (e.g., 'personal', 'work'): ")
			accountName, _ := reader.ReadString('\n')
			accountName = strings.TrimSpace(accountName)
			tokenFile := "token-" + accountName + ".json"

			if err := google.SaveToken(tokenFile, token); err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}

			logger.Info("Successfully authenticated and saved token.", "file", tokenFile)
			return nil
		},
	}
}

func locationsCommand() *cli.Command {
	return &cli.Command{
		Name:  "locations",
		Usage: "Location history commands.",
		Subcommands: []*cli.Command{
			{
				Name:  "sync",
				Usage: "Reconstruct days from location history and write them to the calendar.",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "owner", Required: true, Usage: "Owner to sync, as named in the config."},
					&cli.StringFlag{Name: "date", Usage: "Single day to sync (YYYY-MM-DD). Defaults to yesterday."},
					&cli.StringFlag{Name: "from", Usage: "First day of a range (YYYY-MM-DD)."},
					&cli.StringFlag{Name: "to", Usage: "Last day of a range (YYYY-MM-DD)."},
					&cli.BoolFlag{Name: "dry-run", Usage: "Log what would change without writing to the calendar."},
				},
				Action: runLocationsSync,
			},
		},
	}
}

func runLocationsSync(c *cli.Context) error {
	logger := setupLogger()
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	zone, err := cfg.Location()
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}
	from, to, err := resolveWindow(c, zone)
	if err != nil {
		return err
	}

	owner := c.String("owner")
	s, cleanup, err := buildSyncer(c.Context, logger, cfg, owner, c.Bool("dry-run"))
	if err != nil {
		return err
	}
	defer cleanup()

	return s.SyncRange(c.Context, owner, from, to)
}

// resolveWindow turns the date flags into a [from, to] day range. The default
// is yesterday in the configured zone, not in UTC: near midnight the two can
// disagree on what day it is.
func resolveWindow(c *cli.Context, zone *time.Location) (time.Time, time.Time, error) {
	if c.IsSet("from") != c.IsSet("to") {
		return time.Time{}, time.Time{}, fmt.Errorf("--from and --to must be used together")
	}
	if c.IsSet("from") {
		from, err := time.Parse(dateLayout, c.String("from"))
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --from date: %w", err)
		}
		to, err := time.Parse(dateLayout, c.String("to"))
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --to date: %w", err)
		}
		if to.Before(from) {
			return time.Time{}, time.Time{}, fmt.Errorf("--to is before --from")
		}
		return from, to, nil
	}
	if c.IsSet("date") {
		day, err := time.Parse(dateLayout, c.String("date"))
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --date: %w", err)
		}
		return day, day, nil
	}
	yesterday := dayBefore(time.Now(), zone)
	return yesterday, yesterday, nil
}

// dayBefore returns the calendar day before t, at midnight in the given zone.
func dayBefore(t time.Time, zone *time.Location) time.Time {
	local := t.In(zone).AddDate(0, 0, -1)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, zone)
}

// buildSyncer wires the full pipeline for one owner.
func buildSyncer(ctx context.Context, logger *slog.Logger, cfg *config.Config, owner string, dryRun bool) (*syncer.Syncer, func(), error) {
	ownerCfg, ok := cfg.Owners[owner]
	if !ok {
		return nil, nil, fmt.Errorf("owner %q is not in the config", owner)
	}

	zone, err := cfg.Location()
	if err != nil {
		return nil, nil, fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}

	registry, err := geo.LoadRegistry(cfg.RegistryPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load place registry: %w", err)
	}

	source, cleanup, err := buildSource(ctx, logger, cfg)
	if err != nil {
		return nil, nil, err
	}

	client, err := google.NewClient(ctx, logger, os.Getenv("GOOGLE_CLIENT_ID"), os.Getenv("GOOGLE_CLIENT_SECRET"), ownerCfg.Account)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to create google client: %w", err)
	}

	calendarID, err := findCalendarID(ctx, client, ownerCfg.Calendar)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	var mirror syncer.Mirror
	if cfg.CalDAV != nil {
		caldavClient, err := caldav.NewClient(ctx, logger,
			cfg.CalDAV.Endpoint, os.Getenv("CALDAV_USERNAME"), os.Getenv("CALDAV_PASSWORD"), cfg.CalDAV.Calendar)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to create caldav client: %w", err)
		}
		mirror = caldavClient
	}

	rules := cfg.Rules()
	s := syncer.NewSyncer(logger, syncer.Options{
		Source:       source,
		Labeler:      geo.NewResolver(registry),
		Merger:       timeline.NewMerger(rules, zone, logger),
		Reconciler:   reconcile.NewReconciler(registry, cfg.MinStay(), logger),
		Calendar:     client,
		CalendarID:   calendarID,
		Mirror:       mirror,
		Zone:         zone,
		DayStartHour: rules.DayStartHour,
		DryRun:       dryRun,
	})
	return s, cleanup, nil
}

// buildSource picks the position source: exported takeout files when
// configured, the position database otherwise.
func buildSource(ctx context.Context, logger *slog.Logger, cfg *config.Config) (location.Source, func(), error) {
	if cfg.TakeoutDir != "" {
		return &location.Takeout{Dir: cfg.TakeoutDir, MaxAccuracy: cfg.MaxAccuracyMeters}, func() {}, nil
	}

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		return nil, nil, fmt.Errorf("DATABASE_URL not set and no takeout_dir configured")
	}
	users := make(map[string]int, len(cfg.Owners))
	for name, owner := range cfg.Owners {
		users[name] = owner.UserID
	}
	store, err := location.NewPGStore(ctx, logger, dsn, users, cfg.MaxAccuracyMeters)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to position store: %w", err)
	}
	return store, store.Close, nil
}

func findCalendarID(ctx context.Context, client *google.CalendarClient, name string) (string, error) {
	if name == "" {
		return "primary", nil
	}
	calendars, err := client.Calendars(ctx)
	if err != nil {
		return "", err
	}
	id, ok := calendars[name]
	if !ok {
		return "", fmt.Errorf("account %q has no calendar named %q", client.Account(), name)
	}
	return id, nil
}

func placesCommand() *cli.Command {
	return &cli.Command{
		Name:  "places",
		Usage: "Manage the place registry.",
		Subcommands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "Add a place to the registry from a JSON definition file.",
				ArgsUsage: "<place.json>",
				Action:    runPlacesAdd,
			},
			{
				Name:   "list",
				Usage:  "List the registered places.",
				Action: runPlacesList,
			},
		},
	}
}

func runPlacesAdd(c *cli.Context) error {
	logger := setupLogger()
	if c.NArg() != 1 {
		return fmt.Errorf("expected one argument: the place definition file")
	}
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	registry, err := geo.LoadRegistry(cfg.RegistryPath)
	if err != nil {
		return fmt.Errorf("failed to load place registry: %w", err)
	}

	place, err := geo.ReadPlace(c.Args().First())
	if err != nil {
		return fmt.Errorf("failed to read place definition: %w", err)
	}
	if err := registry.Add(place); err != nil {
		return fmt.Errorf("failed to add place: %w", err)
	}

	logger.Info("Added place to registry", "label", place.Label, "category", place.Category)
	return nil
}

func runPlacesList(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	registry, err := geo.LoadRegistry(cfg.RegistryPath)
	if err != nil {
		return fmt.Errorf("failed to load place registry: %w", err)
	}
	for _, place := range registry.Places() {
		fmt.Printf("%-20s %-10s %s\n", place.Label, place.Category, place.Address)
	}
	return nil
}

func mediaCommand() *cli.Command {
	return &cli.Command{
		Name:  "media",
		Usage: "Watch history commands.",
		Subcommands: []*cli.Command{
			{
				Name:  "sync",
				Usage: "Group watch history into sittings and write them to the calendar.",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "account", Usage: "Google account whose token to use. Overrides the config."},
					&cli.StringFlag{Name: "from", Required: true, Usage: "First day of the window (YYYY-MM-DD)."},
					&cli.StringFlag{Name: "to", Required: true, Usage: "Last day of the window (YYYY-MM-DD)."},
					&cli.IntFlag{Name: "gap", Usage: "Maximum break between plays in one sitting, in minutes. Overrides the config."},
					&cli.BoolFlag{Name: "dry-run", Usage: "Log what would be created without writing to the calendar."},
				},
				Action: runMediaSync,
			},
		},
	}
}

func runMediaSync(c *cli.Context) error {
	logger := setupLogger()
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	from, err := time.Parse(dateLayout, c.String("from"))
	if err != nil {
		return fmt.Errorf("invalid --from date: %w", err)
	}
	to, err := time.Parse(dateLayout, c.String("to"))
	if err != nil {
		return fmt.Errorf("invalid --to date: %w", err)
	}

	account := cfg.Media.Account
	if c.IsSet("account") {
		account = c.String("account")
	}
	gap := cfg.Media.GapMinutes
	if c.IsSet("gap") {
		gap = c.Int("gap")
	}

	m, err := buildMediaSyncer(c.Context, logger, cfg, account, gap, c.Bool("dry-run"))
	if err != nil {
		return err
	}
	return m.Sync(c.Context, from, to.AddDate(0, 0, 1))
}

// buildMediaSyncer wires the watch-history pipeline.
func buildMediaSyncer(ctx context.Context, logger *slog.Logger, cfg *config.Config, account string, gapMinutes int, dryRun bool) (*syncer.MediaSyncer, error) {
	if account == "" {
		return nil, fmt.Errorf("no Google account configured for media sync")
	}

	registry, err := geo.LoadRegistry(cfg.RegistryPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load place registry: %w", err)
	}
	place, ok := registry.Get(cfg.Media.Place)
	if !ok {
		return nil, fmt.Errorf("media place %q is not in the registry", cfg.Media.Place)
	}

	client, err := google.NewClient(ctx, logger, os.Getenv("GOOGLE_CLIENT_ID"), os.Getenv("GOOGLE_CLIENT_SECRET"), account)
	if err != nil {
		return nil, fmt.Errorf("failed to create google client: %w", err)
	}
	calendarID, err := findCalendarID(ctx, client, cfg.Media.Calendar)
	if err != nil {
		return nil, err
	}

	cache, err := trakt.OpenRuntimeCache(cfg.Media.CachePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open runtime cache: %w", err)
	}
	traktClient := trakt.NewClient(logger, os.Getenv("TRAKT_CLIENT_ID"), os.Getenv("TRAKT_ACCESS_TOKEN"), cache)

	return syncer.NewMediaSyncer(logger, syncer.MediaOptions{
		History:    traktClient,
		Runtimes:   traktClient,
		Calendar:   client,
		CalendarID: calendarID,
		Place:      place,
		Gap:        time.Duration(gapMinutes) * time.Minute,
		DryRun:     dryRun,
	}), nil
}

func daemonCommand() *cli.Command {
	return &cli.Command{
		Name:  "daemon",
		Usage: "Sync yesterday for every configured owner on a cron schedule.",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "dry-run", Usage: "Log what would change without writing to the calendar."},
		},
		Action: func(c *cli.Context) error {
			logger := setupLogger()
			cfg, err := config.Load(c.String("config"))
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			zone, err := cfg.Location()
			if err != nil {
				return fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
			}

			runAll := func() {
				yesterday := dayBefore(time.Now(), zone)
				for owner := range cfg.Owners {
					s, cleanup, err := buildSyncer(c.Context, logger, cfg, owner, c.Bool("dry-run"))
					if err != nil {
						logger.Error("Failed to build pipeline for owner", "owner", owner, "error", err)
						continue
					}
					if err := s.SyncDay(c.Context, owner, yesterday); err != nil {
						logger.Error("Scheduled sync failed", "owner", owner, "error", err)
					}
					cleanup()
				}

				if cfg.Media.Place == "" {
					return
				}
				m, err := buildMediaSyncer(c.Context, logger, cfg, cfg.Media.Account, cfg.Media.GapMinutes, c.Bool("dry-run"))
				if err != nil {
					logger.Error("Failed to build media pipeline", "error", err)
					return
				}
				if err := m.Sync(c.Context, yesterday, yesterday.AddDate(0, 0, 1)); err != nil {
					logger.Error("Scheduled media sync failed", "error", err)
				}
			}

			scheduler := cron.New()
			if _, err := scheduler.AddFunc(cfg.DaemonCron, runAll); err != nil {
				return fmt.Errorf("invalid daemon_cron %q: %w", cfg.DaemonCron, err)
			}
			logger.Info("Starting daemon", "schedule", cfg.DaemonCron, "owners", len(cfg.Owners))
			scheduler.Start()
			defer scheduler.Stop()

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
			<-stop
			logger.Info("Shutting down daemon")
			return nil
		},
	}
}

func setupLogger() *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)
	return logger
}
