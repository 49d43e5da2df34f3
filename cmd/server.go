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
	"log"

	"github.com/spf13/cobra"

	"github.com/escrowhq/escrow/api"
	"github.com/escrowhq/escrow/config"
)

func serverCommands(b *escrowInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "start the escrow HTTP server",
		Run: func(cmd *cobra.Command, args []string) {
			router := api.NewAPI(b.escrow).Router()

			cfg, err := config.Fetch()
			if err != nil {
				log.Fatal(err)
			}

			log.Printf("starting server on port %s", cfg.Server.Port)
			if err := router.Run(":" + cfg.Server.Port); err != nil {
				log.Fatal(err)
			}
		},
	}

	return cmd
}
