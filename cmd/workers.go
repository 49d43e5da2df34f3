/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/hibiken/asynq"
	"github.com/hibiken/asynqmon"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/escrowhq/escrow"
	"github.com/escrowhq/escrow/config"
	redis_db "github.com/escrowhq/escrow/internal/redis-db"
)

// initializeQueues returns the queue-to-priority map for the worker server.
// Both queues run at the same priority; ordering between them does not matter.
func initializeQueues(conf *config.Configuration) map[string]int {
	return map[string]int{
		conf.Queue.WebhookQueue:     3,
		conf.Queue.AutoReleaseQueue: 3,
	}
}

// initializeWorkerServer creates an Asynq server backed by the configured
// Redis instance.
func initializeWorkerServer(conf *config.Configuration, queues map[string]int) (*asynq.Server, error) {
	opts, err := redis_db.ParseRedisURL(conf.Redis.Dns)
	if err != nil {
		return nil, fmt.Errorf("error parsing redis url: %v", err)
	}

	redisOption := asynq.RedisClientOpt{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}

	srv := asynq.NewServer(redisOption, asynq.Config{
		Concurrency: 1,
		Queues:      queues,
	})
	return srv, nil
}

// initializeTaskHandlers registers the task handlers on the mux.
func initializeTaskHandlers(b *escrowInstance, conf *config.Configuration, mux *asynq.ServeMux) {
	mux.HandleFunc(conf.Queue.WebhookQueue, escrow.ProcessWebhook)
	mux.HandleFunc(conf.Queue.AutoReleaseQueue, b.escrow.ProcessAutoRelease)
}

// startSweeper periodically scans for submissions whose review period has
// lapsed and releases them. The per-transaction delayed tasks are the primary
// mechanism; the sweep catches tasks lost to queue failures.
func startSweeper(ctx context.Context, b *escrowInstance, conf *config.Configuration) {
	interval := time.Duration(conf.Queue.SweepIntervalSec) * time.Second
	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := b.escrow.ProcessDueReleases(ctx); err != nil {
					logrus.Errorf("auto-release sweep error: %v", err)
				}
			}
		}
	}()
}

func workerCommands(b *escrowInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workers",
		Short: "start the escrow background workers",
		Run: func(cmd *cobra.Command, args []string) {
			conf, err := config.Fetch()
			if err != nil {
				log.Fatal("error fetching config:", err)
			}

			queues := initializeQueues(conf)
			srv, err := initializeWorkerServer(conf, queues)
			if err != nil {
				log.Fatal(err)
			}

			mux := asynq.NewServeMux()
			initializeTaskHandlers(b, conf, mux)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			startSweeper(ctx, b, conf)

			go func() {
				opts, err := redis_db.ParseRedisURL(conf.Redis.Dns)
				if err != nil {
					logrus.Errorf("monitoring disabled, cannot parse redis url: %v", err)
					return
				}
				h := asynqmon.New(asynqmon.Options{
					RootPath: "/monitoring",
					RedisConnOpt: asynq.RedisClientOpt{
						Addr:     opts.Addr,
						Password: opts.Password,
						DB:       opts.DB,
					},
				})
				monitoringAddr := fmt.Sprintf(":%s", conf.Queue.MonitoringPort)
				log.Printf("starting queue monitoring on %s", monitoringAddr)
				if err := http.ListenAndServe(monitoringAddr, h); err != nil {
					logrus.Errorf("queue monitoring server error: %v", err)
				}
			}()

			if err := srv.Run(mux); err != nil {
				log.Fatal(err)
			}
		},
	}

	return cmd
}
