package main

import (
	"context"
	"expvar"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"reviewhook/internal"
	"reviewhook/pkg/processor"
	"reviewhook/pkg/router"
	"reviewhook/pkg/scm"
	"reviewhook/pkg/storage"
	"reviewhook/pkg/storage/pullrequests"
	"reviewhook/pkg/storage/teams"
	"reviewhook/webhook"

	"reviewhook/pkg/auth"
)

func main() {
	logger := internal.NewLogger("server")
	configPath := flag.String("config", "config.yaml", "Path to config file")
	flag.Parse()

	config, err := internal.LoadConfig(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	publisher, err := internal.NewPublisher(config.Watermill)
	if err != nil {
		logger.Fatalf("publisher: %v", err)
	}
	defer publisher.Close()

	dispatcher, err := internal.NewTriggerDispatcher(config, publisher, internal.NewLogger("dispatcher"))
	if err != nil {
		logger.Fatalf("dispatcher: %v", err)
	}

	teamStore, err := teams.Open(teams.Config{
		Driver:      config.Storage.Driver,
		DSN:         config.Storage.DSN,
		Dialect:     config.Storage.Dialect,
		Table:       config.Storage.TeamsTable,
		AutoMigrate: config.Storage.AutoMigrate,
	})
	if err != nil {
		logger.Fatalf("team store: %v", err)
	}

	var prStore storage.PullRequestStore
	prs, err := pullrequests.Open(pullrequests.Config{
		Driver:      config.Storage.Driver,
		DSN:         config.Storage.DSN,
		Dialect:     config.Storage.Dialect,
		Table:       config.Storage.PullRequestsTable,
		AutoMigrate: config.Storage.AutoMigrate,
	})
	if err != nil {
		logger.Printf("pull request store unavailable, state checks disabled: %v", err)
	} else {
		prStore = prs
	}

	resolver := auth.NewResolver(config.Auth)
	clients := scm.NewFactory(config.Auth)
	ruleSync := internal.NewRuleSyncPublisher(publisher, "", internal.NewLogger("rulesync"))

	proc := processor.New(
		processor.Config{
			DefaultBranchPatterns: config.Review.BranchPatterns,
			MentionToken:          config.Review.Mention,
			DedupTTL:              config.Review.DedupTTL(),
		},
		teamStore,
		prStore,
		resolver,
		clients,
		dispatcher,
		ruleSync,
		nil,
		internal.NewLogger("processor"),
	)
	eventRouter := router.New(proc, internal.NewLogger("router"))

	mux := http.NewServeMux()

	if config.Providers.GitHub.Enabled {
		ghHandler, err := webhook.NewGitHubHandler(
			config.Providers.GitHub.Secret,
			eventRouter,
			internal.NewLogger("webhook/github"),
			config.Server.MaxBodyBytes,
		)
		if err != nil {
			logger.Fatalf("github handler: %v", err)
		}
		mux.Handle(config.Providers.GitHub.Path, ghHandler)
		logger.Printf("github webhook enabled on %s", config.Providers.GitHub.Path)
	}

	if config.Providers.GitLab.Enabled {
		glHandler, err := webhook.NewGitLabHandler(
			config.Providers.GitLab.Secret,
			eventRouter,
			internal.NewLogger("webhook/gitlab"),
			config.Server.MaxBodyBytes,
		)
		if err != nil {
			logger.Fatalf("gitlab handler: %v", err)
		}
		mux.Handle(config.Providers.GitLab.Path, glHandler)
		logger.Printf("gitlab webhook enabled on %s", config.Providers.GitLab.Path)
	}

	if config.Providers.Bitbucket.Enabled {
		bbHandler, err := webhook.NewBitbucketHandler(
			config.Providers.Bitbucket.Secret,
			eventRouter,
			internal.NewLogger("webhook/bitbucket"),
			config.Server.MaxBodyBytes,
		)
		if err != nil {
			logger.Fatalf("bitbucket handler: %v", err)
		}
		mux.Handle(config.Providers.Bitbucket.Path, bbHandler)
		logger.Printf("bitbucket webhook enabled on %s", config.Providers.Bitbucket.Path)
	}

	if config.Providers.AzureRepos.Enabled {
		azHandler := webhook.NewAzureHandler(
			config.Providers.AzureRepos.Secret,
			eventRouter,
			internal.NewLogger("webhook/azure"),
			config.Server.MaxBodyBytes,
		)
		mux.Handle(config.Providers.AzureRepos.Path, azHandler)
		logger.Printf("azure repos webhook enabled on %s", config.Providers.AzureRepos.Path)
	}

	if config.Server.MetricsEnabled {
		mux.Handle(config.Server.MetricsPath, expvar.Handler())
		logger.Printf("metrics enabled on %s", config.Server.MetricsPath)
	}

	handler := internal.NewRateLimitHandler(mux, config.Server.RateLimitRPS, config.Server.RateLimitBurst, 5*time.Minute)

	addr := ":" + strconv.Itoa(config.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       time.Duration(config.Server.ReadTimeoutMS) * time.Millisecond,
		WriteTimeout:      time.Duration(config.Server.WriteTimeoutMS) * time.Millisecond,
		IdleTimeout:       time.Duration(config.Server.IdleTimeoutMS) * time.Millisecond,
		ReadHeaderTimeout: time.Duration(config.Server.ReadHeaderMS) * time.Millisecond,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Printf("listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("listen: %v", err)
		}
	}()

	<-shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Printf("shutdown: %v", err)
	}
	if err := proc.Shutdown(ctx); err != nil {
		logger.Printf("drain: %v", err)
	}
}
