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
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/escrowhq/escrow/config"
	"github.com/escrowhq/escrow/database"
	"github.com/escrowhq/escrow/gateway"
	"github.com/escrowhq/escrow/internal/pubsub"
	redis_db "github.com/escrowhq/escrow/internal/redis-db"
)

// EventChannel is the redis channel status change events are published on.
const EventChannel = "escrow:events"

// Escrow is the main service struct. It drives the transaction lifecycle
// against the datasource and the payment gateway, and fans out status
// change events to webhooks and in-process subscribers.
type Escrow struct {
	queue      *Queue
	redis      redis.UniversalClient
	datasource database.IDataSource
	gateway    gateway.Gateway
	events     *pubsub.Service
}

// NewEscrow initializes a new Escrow service with the provided datasource and
// payment gateway. It fetches the configuration and initializes the Redis
// client, the task queue, and the event pub/sub service.
//
// Parameters:
// - db database.IDataSource: The datasource for database operations.
// - gw gateway.Gateway: The payment gateway adapter.
//
// Returns:
// - *Escrow: A pointer to the newly created Escrow instance.
// - error: An error if any of the initialization steps fail.
func NewEscrow(db database.IDataSource, gw gateway.Gateway) (*Escrow, error) {
	configuration, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	redisClient, err := redis_db.NewRedisClient([]string{fmt.Sprintf("redis://%s", configuration.Redis.Dns)})
	if err != nil {
		return nil, err
	}
	newQueue := NewQueue(configuration)
	events := pubsub.NewService(redisClient.Client(), EventChannel)

	return &Escrow{
		datasource: db,
		gateway:    gw,
		queue:      newQueue,
		redis:      redisClient.Client(),
		events:     events,
	}, nil
}

// Events returns the status change pub/sub service, for callers that want to
// subscribe to transitions in-process.
func (l *Escrow) Events() *pubsub.Service {
	return l.events
}
