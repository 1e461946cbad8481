package app

import (
	"time"

	"go.uber.org/fx"

	"github.com/fabriq/billing/internal/app/api/server"
	billingsvc "github.com/fabriq/billing/internal/app/service/billing"
	"github.com/fabriq/billing/internal/app/service/eventlog"
	"github.com/fabriq/billing/internal/app/service/reconciler"
	"github.com/fabriq/billing/internal/platform/db"
	stripeplatform "github.com/fabriq/billing/internal/platform/stripe"
	"github.com/fabriq/billing/pkg/config"
	"github.com/fabriq/billing/pkg/logger"
)

const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 10 * time.Second
)

var Module = fx.Options(
	logger.Module,
	config.Module,
	db.Module,
	stripeplatform.Module,
	server.Module,
	billingsvc.Module,
	eventlog.Module,
	reconciler.Module,
)
