package main

import (
	"vkusync-backend/cmd/vkusync/commands"
	"vkusync-backend/pkg/serviceutil"
)

func main() {
	commands.ExecuteContext(serviceutil.SignalContext())
}
