package main

import (
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"

	"github.com/libcirc/circulation-service/app"
	"github.com/libcirc/circulation-service/config"
)

// @title           Library Circulation Service
// @version         1.0
// @description     Reservation, borrowing and copy lifecycle management.

// @host      localhost:8080
// @BasePath  /api/v1
func main() {
	_ = godotenv.Load()

	cfg := config.NewConfig(
		config.WithLogLevel(zapcore.DebugLevel),
		config.WithWriteTimeout(time.Minute),
	)

	app.Run(cfg)
}
