package app

import (
	"time"

	"go.uber.org/fx"

	"github.com/fatflowers/storepay/internal/app/api/server"
	notificationhandler "github.com/fatflowers/storepay/internal/app/service/notification_handler"
	notificationlog "github.com/fatflowers/storepay/internal/app/service/notification_log"
	"github.com/fatflowers/storepay/internal/app/service/order"
	"github.com/fatflowers/storepay/internal/app/service/payment"
	"github.com/fatflowers/storepay/internal/app/service/reconcile"
	"github.com/fatflowers/storepay/internal/app/service/statistics"
	"github.com/fatflowers/storepay/internal/platform/db"
	"github.com/fatflowers/storepay/internal/platform/kafka"
	"github.com/fatflowers/storepay/internal/platform/mpesa"
	"github.com/fatflowers/storepay/internal/platform/pesapal"
	"github.com/fatflowers/storepay/pkg/config"
	"github.com/fatflowers/storepay/pkg/logger"
)

const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 10 * time.Second
)

// CoreModule is everything except the HTTP server and background jobs. The operator CLI
// runs on it alone.
var CoreModule = fx.Options(
	logger.Module,
	config.Module,
	db.Module,
	kafka.Module,
	mpesa.Module,
	pesapal.Module,
	order.Module,
	reconcile.Module,
	payment.Module,
	statistics.Module,
	notificationlog.Module,
	notificationhandler.Module,
)

var Module = fx.Options(
	CoreModule,
	reconcile.JobModule,
	server.Module,
)
