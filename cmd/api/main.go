package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/ecolehub/presence-api/api/swagger"
	"github.com/ecolehub/presence-api/internal/handler"
	"github.com/ecolehub/presence-api/internal/middleware"
	"github.com/ecolehub/presence-api/internal/repository"
	"github.com/ecolehub/presence-api/internal/service"
	"github.com/ecolehub/presence-api/pkg/cache"
	"github.com/ecolehub/presence-api/pkg/config"
	"github.com/ecolehub/presence-api/pkg/database"
	"github.com/ecolehub/presence-api/pkg/logger"
	corsmiddleware "github.com/ecolehub/presence-api/pkg/middleware/cors"
	reqidmiddleware "github.com/ecolehub/presence-api/pkg/middleware/requestid"
)

// @title Presence API
// @version 1.0.0
// @description School attendance management backend
// @BasePath /api
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	metrics := service.NewMetricsService()

	var cacheRepo service.CacheRepository
	if cfg.Redis.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, stats caching disabled", zap.Error(err))
		} else {
			defer redisClient.Close()
			cacheRepo = repository.NewRedisCacheRepository(redisClient)
		}
	}
	statsCache := service.NewCacheService(cacheRepo, metrics, cfg.Cache.StatsTTL, logr)

	userRepo := repository.NewUserRepository(db)
	schoolRepo := repository.NewSchoolRepository(db)
	institutionTypeRepo := repository.NewInstitutionTypeRepository(db)
	classroomRepo := repository.NewClassroomRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	teacherRepo := repository.NewTeacherRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	assignmentRepo := repository.NewClassroomAssignmentRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)

	authService := service.NewAuthService(userRepo, nil, logr, service.AuthConfig{
		TokenSecret: cfg.JWT.Secret,
		TokenExpiry: cfg.JWT.Expiration,
		Issuer:      cfg.JWT.Issuer,
	})
	institutionTypeService := service.NewInstitutionTypeService(institutionTypeRepo, nil, logr)
	schoolService := service.NewSchoolService(schoolRepo, institutionTypeRepo, classroomRepo, teacherRepo, studentRepo, teacherRepo, nil, logr)
	classroomService := service.NewClassroomService(classroomRepo, schoolRepo, studentRepo, assignmentRepo, teacherRepo, nil, logr)
	subjectService := service.NewSubjectService(subjectRepo, schoolRepo, assignmentRepo, teacherRepo, nil, logr)
	teacherService := service.NewTeacherService(teacherRepo, schoolRepo, assignmentRepo, nil, logr)
	studentService := service.NewStudentService(studentRepo, schoolRepo, classroomRepo, attendanceRepo, nil, logr)
	assignmentService := service.NewClassroomAssignmentService(assignmentRepo, classroomRepo, subjectRepo, teacherRepo, attendanceRepo, nil, logr)
	attendanceService := service.NewAttendanceService(
		attendanceRepo,
		assignmentRepo,
		studentRepo,
		classroomRepo,
		teacherRepo,
		statsCache,
		repository.IsUniqueViolation,
		nil,
		logr,
	)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	metricsHandler := handler.NewMetricsHandler(metrics)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.RegisterRoutes(r, cfg.APIPrefix, authService, handler.Handlers{
		Auth:                 handler.NewAuthHandler(authService),
		Attendances:          handler.NewAttendanceHandler(attendanceService),
		Schools:              handler.NewSchoolHandler(schoolService),
		InstitutionTypes:     handler.NewInstitutionTypeHandler(institutionTypeService),
		Classrooms:           handler.NewClassroomHandler(classroomService),
		Subjects:             handler.NewSubjectHandler(subjectService),
		Teachers:             handler.NewTeacherHandler(teacherService),
		Students:             handler.NewStudentHandler(studentService),
		ClassroomAssignments: handler.NewClassroomAssignmentHandler(assignmentService),
		Metrics:              metricsHandler,
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
