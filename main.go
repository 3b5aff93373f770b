package main

import (
	"github.com/junnushon/voice-chat-5/cmd"
	"github.com/junnushon/voice-chat-5/internal/logging"
)

func main() {
	// Initialize logging
	logging.Init()
	cmd.Execute()
}
