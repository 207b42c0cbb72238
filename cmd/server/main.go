package main

import (
	"graphchat/internal/server"
	"graphchat/internal/util"
	"graphchat/pkg/logger"
	"graphchat/pkg/logger/console"
)

func main() {
	util.LoadEnv()

	debug := util.GetEnvBool("DEBUG", false)

	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	server.Init()
}
