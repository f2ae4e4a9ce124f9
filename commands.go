package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"collabspace/config"
	"collabspace/events"
	"collabspace/handlers"
	"collabspace/logging"
	"collabspace/models"
	"collabspace/repositories"
	"collabspace/services"
	"collabspace/utils"

	"github.com/urfave/cli/v2"
	"golang.org/x/term"
)

// webhookOpenFor is how long the webhook breaker stays open before probing.
const webhookOpenFor = 30 * time.Second

// App holds what every command needs once the configuration is loaded.
type App struct {
	cfg *config.Config
}

func (a *App) Commands() []*cli.Command {
	return []*cli.Command{
		{
			Name:   "serve",
			Usage:  "Run the HTTP server",
			Action: a.Serve,
		},
		{
			Name:   "seed",
			Usage:  "Insert the demo accounts into an empty user directory",
			Action: a.Seed,
		},
		{
			Name:  "user",
			Usage: "Manage users",
			Subcommands: []*cli.Command{
				{
					Name:   "add",
					Usage:  "Create a user",
					Action: a.UserAdd,
					Flags: []cli.Flag{
						&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Usage: "Email address", Required: true},
						&cli.StringFlag{Name: "first-name", Usage: "First name", Required: true},
						&cli.StringFlag{Name: "last-name", Usage: "Last name", Required: true},
						&cli.StringFlag{Name: "role", Aliases: []string{"r"}, Usage: "Admin, Manager or Member", Value: string(models.RoleMember)},
						&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Usage: "Password (prompted when omitted)"},
					},
				},
				{
					Name:   "list",
					Usage:  "List users",
					Action: a.UserList,
				},
			},
		},
	}
}

func (a *App) Before(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if err := logging.InitLogger(logging.Options{
		SystemName: cfg.Logging.SystemName,
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
	}); err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}

func (a *App) openStore(ctx context.Context) (*repositories.Store, error) {
	switch a.cfg.Storage.Driver {
	case "sqlite":
		return repositories.NewSQLiteStore(a.cfg.Storage.SQLitePath)
	case "mongo":
		return repositories.NewMongoStore(ctx, a.cfg.Storage.MongoURI, a.cfg.Storage.MongoDatabase)
	}
	logging.Logger.Warn("Event ID: MEMORY_STORAGE, Description: Using in-memory storage, data is lost on exit")
	return repositories.NewMemoryStore(), nil
}

func (a *App) openNotifications() (repositories.NotificationRepository, error) {
	if a.cfg.Notifications.Driver == "cassandra" {
		return repositories.NewNotificationRepo(a.cfg.Notifications.CassandraHosts, a.cfg.Notifications.CassandraKeyspace)
	}
	return repositories.NewMemoryNotificationRepo(), nil
}

func closeStore(store *repositories.Store) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := store.Close(ctx); err != nil {
		logging.Logger.Errorf("Event ID: DB_CLOSE_FAILED, Description: %v", err)
	}
}

func (a *App) Serve(c *cli.Context) error {
	cfg := a.cfg
	logging.Logger.Info("Event ID: SERVICE_START, Description: Starting CollabSpace...")

	store, err := a.openStore(c.Context)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer closeStore(store)

	notificationRepo, err := a.openNotifications()
	if err != nil {
		return fmt.Errorf("failed to open notification storage: %w", err)
	}
	defer notificationRepo.Close()

	em := events.NewEventManager()
	users := services.NewUserService(store.Users, em, cfg.Auth.BcryptCost)
	if cfg.SeedDefaults {
		if _, err := users.SeedDefaults(c.Context); err != nil {
			return err
		}
	}

	if cfg.Auth.JWTSecret == "" {
		logging.Logger.Warn("Event ID: JWT_SECRET_MISSING, Description: No JWT secret configured, tokens will not survive a restart")
	}
	tokens, err := utils.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}

	teams := services.NewTeamService(store.Teams, store.Projects, users, em)
	projects := services.NewProjectService(store.Projects, store.Teams, users, em)

	notifications := services.NewNotificationService(notificationRepo)
	notifications.Register(em)
	if url := cfg.Notifications.WebhookURL; url != "" {
		services.NewWebhookNotifier(url, utils.NewHTTPClient(cfg.Notifications.WebhookTimeout), webhookOpenFor).Register(em)
		logging.Logger.Infof("Event ID: WEBHOOK_ENABLED, Description: Forwarding change events to %s", url)
	}

	watcher := services.NewVisibilityWatcher(teams, projects, cfg.Visibility.RefreshInterval)
	watcher.Register(em)
	watcher.Start()
	defer watcher.Stop()

	router := handlers.NewRouter(handlers.Services{
		Auth:          services.NewAuthService(users, tokens),
		Users:         users,
		Teams:         teams,
		Projects:      projects,
		Tasks:         services.NewTaskService(store.Projects, projects, em),
		Dashboard:     services.NewDashboardService(projects),
		Notifications: notifications,
		Watcher:       watcher,
	}, cfg.Server.CORSOrigin)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	srv.RegisterOnShutdown(watcher.CloseAll)

	serverErr := make(chan error, 1)
	go func() {
		logging.Logger.Infof("Event ID: SERVER_START_INFO, Description: Server running on http://localhost%s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case sig := <-stop:
		logging.Logger.Infof("Event ID: SERVER_SHUTDOWN, Description: Received %s, shutting down", sig)
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logging.Logger.Errorf("Event ID: SERVER_SHUTDOWN_FAILED, Description: %v", err)
	}
	em.Wait()
	logging.Logger.Info("Event ID: SERVER_STOPPED, Description: Server stopped")
	return nil
}

func (a *App) Seed(c *cli.Context) error {
	store, err := a.openStore(c.Context)
	if err != nil {
		return err
	}
	defer closeStore(store)

	n, err := services.NewUserService(store.Users, nil, a.cfg.Auth.BcryptCost).SeedDefaults(c.Context)
	if err != nil {
		return err
	}
	if n == 0 {
		fmt.Println("Users already present, nothing seeded.")
		return nil
	}
	fmt.Printf("Seeded %d users.\n", n)
	return nil
}

func (a *App) UserAdd(c *cli.Context) error {
	password := c.String("password")
	if password == "" {
		var err error
		if password, err = promptPassword(); err != nil {
			return err
		}
	}

	store, err := a.openStore(c.Context)
	if err != nil {
		return err
	}
	defer closeStore(store)

	user, err := services.NewUserService(store.Users, nil, a.cfg.Auth.BcryptCost).Create(c.Context, models.NewUser{
		Email:     c.String("email"),
		FirstName: c.String("first-name"),
		LastName:  c.String("last-name"),
		Password:  password,
		Role:      models.Role(c.String("role")),
	})
	if err != nil {
		return err
	}
	fmt.Printf("Created %s <%s> with id %s\n", user.DisplayName(), user.Email, user.ID)
	return nil
}

// promptPassword reads without echo from a terminal, or a plain line when
// stdin is piped.
func promptPassword() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	fmt.Fprint(os.Stderr, "Password: ")
	first, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	fmt.Fprint(os.Stderr, "Confirm password: ")
	second, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	if string(first) != string(second) {
		return "", errors.New("passwords do not match")
	}
	return string(first), nil
}

func (a *App) UserList(c *cli.Context) error {
	store, err := a.openStore(c.Context)
	if err != nil {
		return err
	}
	defer closeStore(store)

	users, err := services.NewUserService(store.Users, nil, a.cfg.Auth.BcryptCost).List(c.Context)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tEMAIL\tROLE\tSTATUS")
	for _, u := range users {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", u.ID, u.DisplayName(), u.Email, u.Role, u.Status)
	}
	return w.Flush()
}
