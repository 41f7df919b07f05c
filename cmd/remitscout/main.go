package main

import (
	"remitscout-backend/cmd/remitscout/commands"
	"remitscout-backend/internal/components/serviceutil"
)

func main() {
	commands.ExecuteContext(serviceutil.SignalContext())
}
