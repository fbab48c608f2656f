package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "time/tzdata"

	"github.com/cmlabs-hris/hris-timekeeping/internal/config"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/attendance"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/audit"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/leave"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/notification"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/worktype"
	appHTTP "github.com/cmlabs-hris/hris-timekeeping/internal/handler/http"
	"github.com/cmlabs-hris/hris-timekeeping/internal/pkg/clickhouse"
	"github.com/cmlabs-hris/hris-timekeeping/internal/pkg/cron"
	"github.com/cmlabs-hris/hris-timekeeping/internal/pkg/database"
	"github.com/cmlabs-hris/hris-timekeeping/internal/pkg/jwt"
	"github.com/cmlabs-hris/hris-timekeeping/internal/pkg/kafka"
	"github.com/cmlabs-hris/hris-timekeeping/internal/pkg/sse"
	"github.com/cmlabs-hris/hris-timekeeping/internal/repository/memory"
	"github.com/cmlabs-hris/hris-timekeeping/internal/repository/postgresql"
	attendanceService "github.com/cmlabs-hris/hris-timekeeping/internal/service/attendance"
	auditService "github.com/cmlabs-hris/hris-timekeeping/internal/service/audit"
	leaveService "github.com/cmlabs-hris/hris-timekeeping/internal/service/leave"
	notificationService "github.com/cmlabs-hris/hris-timekeeping/internal/service/notification"
	workTypeService "github.com/cmlabs-hris/hris-timekeeping/internal/service/worktype"
	"github.com/go-chi/httplog/v3"
)

type repositories struct {
	transactor   database.Transactor
	attendance   attendance.AttendanceRepository
	ledger       leave.LedgerRepository
	leaveRequest leave.LeaveRequestRepository
	workType     worktype.WorkTypeRepository
	close        func()
}

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logFormat := httplog.SchemaECS.Concise(cfg.App.Env != "development")
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:       cfg.LogLevel(),
		ReplaceAttr: logFormat.ReplaceAttr,
	})).With(
		slog.String("app", "hris-timekeeping"),
		slog.String("env", cfg.App.Env),
	)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repos, err := openRepositories(ctx, cfg)
	if err != nil {
		return err
	}
	defer repos.close()

	recorder, closeRecorder, err := newRecorder(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRecorder()

	hub := sse.NewHub(cfg.Notification.StreamBuffer)
	defer hub.Close()

	sinks := []notification.Sink{notificationService.NewHubSink(hub)}
	if cfg.Kafka.Enabled {
		writer, err := kafka.NewWriter(kafka.Config{
			Brokers:  cfg.Kafka.Brokers,
			Topic:    cfg.Kafka.Topic,
			Username: cfg.Kafka.Username,
			Password: cfg.Kafka.Password,
			TLS:      cfg.Kafka.TLS,
		})
		if err != nil {
			return fmt.Errorf("kafka writer: %w", err)
		}
		publisher := kafka.NewPublisher(writer)
		defer publisher.Close()
		sinks = append(sinks, publisher)
	}
	dispatcher := notificationService.NewDispatcher(notificationService.Config{
		WorkerCount:     cfg.Notification.Workers,
		QueueSize:       cfg.Notification.QueueSize,
		DeliveryTimeout: cfg.Notification.DeliveryTimeout,
	}, sinks...)
	defer dispatcher.Stop()

	workTypes := workTypeService.NewWorkTypeService(repos.workType, cfg.Attendance.DefaultTimezone)
	attendanceSvc := attendanceService.NewAttendanceService(repos.transactor, repos.attendance, workTypes, recorder, attendanceService.Options{
		MaxRetries: cfg.Attendance.MaxRetries,
	})
	ledgerSvc := leaveService.NewLedgerService(repos.transactor, repos.ledger, recorder)
	requestSvc := leaveService.NewRequestService(repos.transactor, repos.leaveRequest, ledgerSvc, dispatcher, recorder)

	JWTService, err := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessExpiration)
	if err != nil {
		return err
	}

	scheduler := cron.NewScheduler()
	cron.NewAttendanceJobs(attendanceSvc, cfg.Attendance.StaleCheckInterval, cfg.Attendance.StaleAfter).RegisterJobs(scheduler)
	cron.NewLedgerJobs(ledgerSvc, recorder, cron.LedgerJobsConfig{
		Interval:    cfg.Ledger.ReconcileInterval,
		LeakAfter:   cfg.Ledger.LeakAfter,
		AutoResolve: cfg.Ledger.AutoResolve,
	}).RegisterJobs(scheduler)
	scheduler.Start()
	defer scheduler.Stop()

	router := appHTTP.NewRouter(appHTTP.RouterConfig{
		Logger:         logger,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
	}, JWTService, appHTTP.Handlers{
		Attendance: appHTTP.NewAttendanceHandler(attendanceSvc),
		Leave:      appHTTP.NewLeaveHandler(ledgerSvc, requestSvc),
		WorkType:   appHTTP.NewWorkTypeHandler(workTypes),
		Events:     appHTTP.NewEventHandler(hub, JWTService),
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server starting", "port", cfg.App.Port, "db_driver", cfg.Database.Driver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	// open event streams end when the hub closes
	hub.Close()
	return server.Shutdown(shutdownCtx)
}

func openRepositories(ctx context.Context, cfg *config.Config) (repositories, error) {
	if cfg.Database.Driver == config.DriverMemory {
		slog.Warn("using in-memory storage, data is lost on restart")
		store := memory.NewStore()
		return repositories{
			transactor:   memory.NewTransactor(store),
			attendance:   memory.NewAttendanceRepository(store),
			ledger:       memory.NewLedgerRepository(store),
			leaveRequest: memory.NewLeaveRequestRepository(store),
			workType:     memory.NewWorkTypeRepository(store),
			close:        func() {},
		}, nil
	}

	db, err := database.NewPostgreSQLDB(ctx, cfg.DatabaseURL(), database.PoolConfig{})
	if err != nil {
		return repositories{}, fmt.Errorf("connect database: %w", err)
	}
	if cfg.Database.Migrate {
		if err := postgresql.Migrate(ctx, db); err != nil {
			db.Close()
			return repositories{}, err
		}
	}
	return repositories{
		transactor:   postgresql.NewTransactor(db),
		attendance:   postgresql.NewAttendanceRepository(db),
		ledger:       postgresql.NewLeaveLedgerRepository(db),
		leaveRequest: postgresql.NewLeaveRequestRepository(db),
		workType:     postgresql.NewWorkTypeRepository(db),
		close:        db.Close,
	}, nil
}

// newRecorder always logs audit events and also writes them to ClickHouse
// when enabled.
func newRecorder(ctx context.Context, cfg *config.Config) (audit.Recorder, func(), error) {
	logRecorder := auditService.NewLogRecorder(slog.Default())
	if !cfg.ClickHouse.Enabled {
		return logRecorder, func() {}, nil
	}

	conn, err := clickhouse.Connect(ctx, clickhouse.Config{
		Addr:     cfg.ClickHouse.Addr,
		Database: cfg.ClickHouse.Database,
		Username: cfg.ClickHouse.Username,
		Password: cfg.ClickHouse.Password,
	})
	if err != nil {
		return nil, nil, err
	}
	chRecorder, err := clickhouse.NewRecorder(ctx, conn, cfg.ClickHouse.Table)
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	return auditService.Fanout{logRecorder, chRecorder}, func() { conn.Close() }, nil
}
