package main

import (
	"go-bankaccount-api/app"
)

// @title           Bank Account API
// @version         1.0
// @description     Minimal bank account service: list/get/create accounts, deposit, withdrawal and transfer.

// @host      localhost:8080
// @BasePath  /
// @securityDefinitions.basic BasicAuth
func main() {
	app.Run()
}
