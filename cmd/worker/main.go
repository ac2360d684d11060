package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ThreeDotsLabs/watermill/message/router/middleware"

	"reviewhook/internal"
	"reviewhook/pkg/worker"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to app config")
	flag.Parse()

	log.SetPrefix("reviewhook/worker ")
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	appCfg, err := internal.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	subCfg, err := worker.LoadSubscriberConfig(*configPath)
	if err != nil {
		log.Fatalf("load subscriber config: %v", err)
	}

	sub, err := worker.BuildSubscriber(subCfg)
	if err != nil {
		log.Fatalf("subscriber: %v", err)
	}
	defer func() {
		if err := sub.Close(); err != nil {
			log.Printf("subscriber close: %v", err)
		}
	}()

	topics, err := worker.LoadTopicsFromConfig(*configPath)
	if err != nil {
		log.Fatalf("load topics: %v", err)
	}
	if len(topics) == 0 {
		topics = []string{appCfg.Review.DefaultTopic}
	}

	wk := worker.New(
		worker.WithSubscriber(sub),
		worker.WithTopics(topics...),
		worker.WithConcurrency(5),
		worker.WithClientProvider(worker.NewSCMClientProvider(appCfg.Auth)),
		worker.WithMiddleware(worker.MiddlewareFromWatermill(middleware.Recoverer)),
	)

	for _, topic := range topics {
		wk.HandleTopic(topic, handleReviewTrigger)
	}

	if err := wk.Run(ctx); err != nil {
		log.Fatal(err)
	}
}

// handleReviewTrigger is the consumer side of the trigger topics. It
// decodes the trigger, lists the changed files through the platform API
// when a client is available, and logs the work item.
func handleReviewTrigger(ctx context.Context, evt *worker.Event) error {
	trigger, ok := evt.ReviewTrigger()
	if !ok {
		log.Printf("skipping non-trigger message topic=%s platform=%s", evt.Topic, evt.Platform)
		return nil
	}

	files := 0
	if client, ok := worker.SCMClient(evt); ok {
		changed, err := client.GetFilesByPullRequestID(ctx, trigger.Repository, trigger.PullRequest.Number)
		if err != nil {
			log.Printf("list files failed repo=%s pr=%d: %v", trigger.Repository.FullName, trigger.PullRequest.Number, err)
		} else {
			files = len(changed)
		}
	}

	log.Printf("review trigger topic=%s platform=%s repo=%s pr=%d action=%s origin=%s files=%d",
		evt.Topic, trigger.Platform, trigger.Repository.FullName, trigger.PullRequest.Number,
		trigger.Action, trigger.Origin, files)
	return nil
}
