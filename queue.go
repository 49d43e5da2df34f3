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

package escrow

import (
	"encoding/json"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"github.com/escrowhq/escrow/config"
	redis_db "github.com/escrowhq/escrow/internal/redis-db"
)

// Queue wraps the asynq client used for webhook delivery and scheduled
// auto-release tasks.
type Queue struct {
	Client    *asynq.Client
	Inspector *asynq.Inspector
}

// NewQueue initializes a new Queue instance with the provided configuration.
func NewQueue(conf *config.Configuration) *Queue {
	redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns)
	if err != nil {
		log.Fatalf("Error parsing Redis URL: %v", err)
	}

	queueOptions := asynq.RedisClientOpt{Addr: redisOption.Addr, Password: redisOption.Password, DB: redisOption.DB}
	client := asynq.NewClient(queueOptions)
	inspector := asynq.NewInspector(queueOptions)
	return &Queue{
		Client:    client,
		Inspector: inspector,
	}
}

// queueAutoRelease enqueues a delayed task that fires once a transaction's
// review period ends. The task id is the transaction id, so rescheduling a
// resubmission replaces the previous task instead of stacking a second one.
//
// Parameters:
// - transactionID string: The ID of the transaction.
// - releaseAt time.Time: When the review period ends.
//
// Returns:
// - error: An error if the task could not be enqueued.
func (q *Queue) queueAutoRelease(transactionID string, releaseAt time.Time) error {
	cfg, err := config.Fetch()
	if err != nil {
		return err
	}

	payload, err := json.Marshal(transactionID)
	if err != nil {
		return err
	}

	// Replace any task scheduled by a previous submission.
	_ = q.Inspector.DeleteTask(cfg.Queue.AutoReleaseQueue, transactionID)

	taskOptions := []asynq.Option{
		asynq.TaskID(transactionID),
		asynq.Queue(cfg.Queue.AutoReleaseQueue),
		asynq.ProcessIn(time.Until(releaseAt)),
	}
	task := asynq.NewTask(cfg.Queue.AutoReleaseQueue, payload, taskOptions...)
	info, err := q.Client.Enqueue(task)
	if err != nil {
		log.Println(err, info)
		return err
	}
	log.Printf(" [*] Successfully enqueued auto release: %+v", transactionID)
	return nil
}
