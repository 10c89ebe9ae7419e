// @title                       Todo API
// @version                     1.0
// @description                 Multi-user todo API: bearer auth, subtasks, tags, search, overdue.
// @host                        localhost:8080
// @BasePath                    /api/v1
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
package main

import (
	"os"

	"TodoAPI/internal/commands"

	_ "TodoAPI/docs"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersion(version, commit, date)
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
